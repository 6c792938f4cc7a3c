package ui

import (
	"context"
	stderrors "errors"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"oncodetect/app"
	"oncodetect/domain/core"
	"oncodetect/domain/submission"
	"oncodetect/domain/view"
	"oncodetect/internal/errors"
	"oncodetect/ui/middleware"
)

// formFieldNames are the inputs accepted by the fields and submit endpoints
var formFieldNames = []string{
	"text",
	submission.FieldOrgan,
	submission.FieldCancerType,
	submission.FieldAge,
	submission.FieldSymptoms,
	submission.FieldRiskFactors,
}

type navItem struct {
	Title  string
	Path   string
	Active bool
}

// pageData is the model of page.html
type pageData struct {
	Title      string
	Nav        []navItem
	Content    template.HTML
	Form       *formData
	Disclaimer string
}

// formData is the model of the form and result fragments
type formData struct {
	Variant    submission.Variant
	Snap       app.Snapshot
	Error      string
	MaxImageMB int64
}

func (s *Server) navFor(current view.Page, analyzer bool) []navItem {
	items := make([]navItem, 0, len(view.Pages)+1)
	for _, p := range view.Pages {
		items = append(items, navItem{Title: p.Title(), Path: p.Path(), Active: !analyzer && p == current})
	}
	items = append(items, navItem{Title: "Quick Analyzer", Path: "/analysis", Active: analyzer})
	return items
}

func (s *Server) formFor(snap app.Snapshot, errMsg string) *formData {
	return &formData{
		Variant:    snap.Variant,
		Snap:       snap,
		Error:      errMsg,
		MaxImageMB: s.config.MaxImageBytes >> 20,
	}
}

// handlePage serves a navigation page. Arriving on a different page
// returns the session's forms to Idle.
func (s *Server) handlePage(page view.Page) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid := middleware.SessionID(c)
		if _, err := s.cases.Navigate(sid, page); err != nil {
			s.renderError(c, err)
			return
		}

		data := pageData{
			Title:      page.Title(),
			Nav:        s.navFor(page, false),
			Content:    s.pages[page],
			Disclaimer: view.Disclaimer,
		}
		if page == view.PageScreening {
			snap, err := s.cases.Snapshot(sid, submission.VariantStructured)
			if err != nil {
				s.renderError(c, err)
				return
			}
			data.Form = s.formFor(snap, "")
		}
		s.renderTemplate(c, http.StatusOK, tmplLayoutPage, data)
	}
}

// handleAnalysis serves the single-view free-form analyzer
func (s *Server) handleAnalysis(c *gin.Context) {
	sid := middleware.SessionID(c)
	snap, err := s.cases.Snapshot(sid, submission.VariantFreeForm)
	if err != nil {
		s.renderError(c, err)
		return
	}
	s.renderTemplate(c, http.StatusOK, tmplLayoutPage, pageData{
		Title:      "Quick Analyzer",
		Nav:        s.navFor(snap.Page, true),
		Form:       s.formFor(snap, ""),
		Disclaimer: view.Disclaimer,
	})
}

func (s *Server) variantParam(c *gin.Context) (submission.Variant, bool) {
	variant, err := submission.ParseVariant(c.Param("variant"))
	if err != nil {
		s.renderError(c, core.ErrUnknownVariant)
		return "", false
	}
	return variant, true
}

// handleSetImage stores the uploaded image of a form
func (s *Server) handleSetImage(c *gin.Context) {
	variant, ok := s.variantParam(c)
	if !ok {
		return
	}
	sid := middleware.SessionID(c)

	// one extra MiB for the multipart envelope; the collector enforces the exact ceiling
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxImageBytes+(1<<20))

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			s.respondImage(c, sid, variant, errors.ValidationError("Image exceeds the upload limit."))
			return
		}
		s.respondImage(c, sid, variant, errors.ValidationError("No image file received."))
		return
	}
	f, err := header.Open()
	if err != nil {
		s.respondImage(c, sid, variant, errors.Wrap(err, "failed to open upload"))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.config.MaxImageBytes+1))
	if err != nil {
		s.respondImage(c, sid, variant, errors.Wrap(err, "failed to read upload"))
		return
	}

	err = s.cases.SetImage(sid, variant, header.Filename, data, header.Header.Get("Content-Type"))
	s.respondImage(c, sid, variant, err)
}

// handleClearImage drops the image of a form
func (s *Server) handleClearImage(c *gin.Context) {
	variant, ok := s.variantParam(c)
	if !ok {
		return
	}
	sid := middleware.SessionID(c)
	s.respondImage(c, sid, variant, s.cases.ClearImage(sid, variant))
}

func (s *Server) respondImage(c *gin.Context, sid core.SessionID, variant submission.Variant, opErr error) {
	snap, err := s.cases.Snapshot(sid, variant)
	if err != nil {
		s.renderError(c, err)
		return
	}
	if opErr != nil && !core.IsValidationError(opErr) {
		s.renderError(c, opErr)
		return
	}

	msg := ""
	if opErr != nil {
		msg = userMessage(opErr)
	}
	if wantsJSON(c) {
		status := http.StatusOK
		if opErr != nil {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"snapshot": snap, "error": msg})
		return
	}
	s.renderTemplate(c, http.StatusOK, tmplImageSlot, s.formFor(snap, msg))
}

// handleSetFields stores text and structured inputs of a form
func (s *Server) handleSetFields(c *gin.Context) {
	variant, ok := s.variantParam(c)
	if !ok {
		return
	}
	sid := middleware.SessionID(c)

	if err := s.applyFields(c, sid, variant); err != nil {
		s.renderError(c, err)
		return
	}
	if wantsJSON(c) {
		snap, err := s.cases.Snapshot(sid, variant)
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) applyFields(c *gin.Context, sid core.SessionID, variant submission.Variant) error {
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil && !stderrors.Is(err, http.ErrNotMultipart) {
		return errors.ValidationError("Malformed form data.")
	}
	fields := make(map[string]string)
	for _, name := range formFieldNames {
		if values, ok := c.Request.PostForm[name]; ok && len(values) > 0 {
			fields[name] = values[0]
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return s.cases.SetFields(sid, variant, fields)
}

// handleSubmit applies any posted fields and submits the form. The response
// is the result fragment (or JSON snapshot); the analysis itself completes
// in the background.
func (s *Server) handleSubmit(c *gin.Context) {
	variant, ok := s.variantParam(c)
	if !ok {
		return
	}
	sid := middleware.SessionID(c)

	if err := s.applyFields(c, sid, variant); err != nil {
		s.renderError(c, err)
		return
	}

	snap, err := s.cases.Submit(c.Request.Context(), sid, variant)
	switch {
	case err == nil:
	case core.IsValidationError(err), stderrors.Is(err, core.ErrAttemptInFlight):
		if wantsJSON(c) {
			status := http.StatusUnprocessableEntity
			if stderrors.Is(err, core.ErrAttemptInFlight) {
				status = http.StatusConflict
			}
			c.JSON(status, gin.H{"snapshot": snap, "error": userMessage(err)})
			return
		}
	default:
		s.renderError(c, err)
		return
	}
	s.respondState(c, snap)
}

// handleState returns the current result area of a form
func (s *Server) handleState(c *gin.Context) {
	variant, ok := s.variantParam(c)
	if !ok {
		return
	}
	snap, err := s.cases.Snapshot(middleware.SessionID(c), variant)
	if err != nil {
		s.renderError(c, err)
		return
	}
	s.respondState(c, snap)
}

func (s *Server) respondState(c *gin.Context, snap app.Snapshot) {
	if wantsJSON(c) {
		c.JSON(http.StatusOK, snap)
		return
	}
	s.renderTemplate(c, http.StatusOK, tmplState, s.formFor(snap, ""))
}

// handlePreview serves the bytes of a selected image
func (s *Server) handlePreview(c *gin.Context) {
	token, err := core.ParsePreviewToken(c.Param("token"))
	if err != nil {
		s.renderError(c, core.ErrPreviewNotFound)
		return
	}
	p, err := s.cases.Preview(middleware.SessionID(c), token)
	if err != nil {
		s.renderError(c, err)
		return
	}

	etag := `"` + p.Hash.String() + `"`
	c.Header("Cache-Control", "private, max-age=300")
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, p.MediaType, p.Data)
}

// handleEvents streams the session's state transitions
func (s *Server) handleEvents(c *gin.Context) {
	s.hub.HandleSSE(c, middleware.SessionID(c))
}

// handleHealth reports console and upstream health
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := s.cases.Health(ctx); err != nil {
		s.logger.Warn("[Health] Analysis service unavailable: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "degraded",
			"upstream": "unavailable",
			"sessions": s.cases.Sessions(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"upstream": "healthy",
		"sessions": s.cases.Sessions(),
	})
}

// renderError maps an error onto an HTTP status and a safe message
func (s *Server) renderError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case core.IsNotFoundError(err):
		status = http.StatusNotFound
	case core.IsValidationError(err):
		status = http.StatusUnprocessableEntity
	case stderrors.Is(err, core.ErrAttemptInFlight):
		status = http.StatusConflict
	}
	msg := userMessage(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("[HTTP] %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		msg = errors.MsgGenericFailure
	}

	if wantsJSON(c) {
		c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": errors.GetCode(err)})
		return
	}
	s.renderTemplate(c, status, tmplError, gin.H{"Status": status, "Message": msg})
	c.Abort()
}

func userMessage(err error) string {
	if appErr, ok := errors.As(err); ok {
		return appErr.UserMessage()
	}
	switch {
	case core.IsNotFoundError(err):
		return "Not found."
	case stderrors.Is(err, core.ErrAttemptInFlight):
		return "An analysis is already in progress."
	}
	return errors.MsgGenericFailure
}
