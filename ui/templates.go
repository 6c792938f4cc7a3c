package ui

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Template names
const (
	tmplLayoutPage = "page.html"
	tmplState      = "state.html"
	tmplImageSlot  = "image_slot.html"
	tmplError      = "error.html"
)

// renderTemplate executes a template with the given data
func (s *Server) renderTemplate(c *gin.Context, status int, templateName string, data interface{}) {
	// First render to a buffer to catch any errors before writing to response
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, templateName, data); err != nil {
		s.logger.Error("Template error for %s: %v (data type %T)", templateName, err, data)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Template rendering failed"})
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Writer.WriteHeader(status)
	if _, err := buf.WriteTo(c.Writer); err != nil {
		s.logger.Warn("Error writing template response: %v", err)
	}
}

// wantsJSON reports whether the client asked for JSON instead of a fragment
func wantsJSON(c *gin.Context) bool {
	return c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON && c.GetHeader("HX-Request") == ""
}
