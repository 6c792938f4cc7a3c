package ui

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"oncodetect/app"
	"oncodetect/domain/submission"
	"oncodetect/domain/view"
	"oncodetect/internal"
	"oncodetect/internal/api"
	"oncodetect/ui/middleware"
)

//go:embed templates static content
var embeddedFiles embed.FS

// Config holds UI server settings
type Config struct {
	CookieName    string
	SessionTTL    time.Duration
	MaxImageBytes int64
}

// Server is the triage console web server
type Server struct {
	router    *gin.Engine
	cases     *app.CaseService
	hub       *api.SSEHub
	templates *template.Template
	pages     map[view.Page]template.HTML
	config    Config
	logger    *internal.Logger
}

// NewServer parses templates, renders the info pages and registers routes
func NewServer(config Config, cases *app.CaseService, hub *api.SSEHub, logger *internal.Logger) (*Server, error) {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	if config.CookieName == "" {
		config.CookieName = middleware.DefaultCookieName
	}

	funcMap := template.FuncMap{
		"add":   func(a, b int) int { return a + b },
		"upper": strings.ToUpper,
		"organs": func() []submission.Organ {
			return submission.Organs
		},
		"toJSON": func(v interface{}) (string, error) {
			b, err := json.Marshal(v)
			if err != nil {
				return "", err
			}
			return string(b), nil
		},
		"fmtCRI": func(v float64) string { return fmt.Sprintf("%.1f", v) },
	}

	templates, err := template.New("").Funcs(funcMap).ParseFS(embeddedFiles, "templates/*.html", "templates/fragments/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	pages, err := renderInfoPages(embeddedFiles)
	if err != nil {
		return nil, fmt.Errorf("failed to render info pages: %w", err)
	}

	s := &Server{
		router:    gin.New(),
		cases:     cases,
		hub:       hub,
		templates: templates,
		pages:     pages,
		config:    config,
		logger:    logger,
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

// Handler exposes the router for http.Server and tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures Gin middleware
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.RequestLogger(s.logger))

	staticFS, err := fs.Sub(embeddedFiles, "static")
	if err != nil {
		s.logger.Error("[setupMiddleware] Error creating static filesystem: %v", err)
		return
	}
	s.router.StaticFS("/static", http.FS(staticFS))
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)

	sessions := s.router.Group("/")
	sessions.Use(middleware.EnsureSession(s.cases, s.config.CookieName, s.config.SessionTTL, s.logger))

	// Navigation pages
	for _, page := range view.Pages {
		sessions.GET(page.Path(), s.handlePage(page))
	}
	sessions.GET("/analysis", s.handleAnalysis)

	// Case endpoints (HTMX fragments or JSON)
	cases := sessions.Group("/api/cases/:variant")
	cases.POST("/image", s.handleSetImage)
	cases.DELETE("/image", s.handleClearImage)
	cases.POST("/fields", s.handleSetFields)
	cases.POST("/submit", s.handleSubmit)
	cases.GET("/state", s.handleState)

	sessions.GET("/preview/:token", s.handlePreview)
	sessions.GET("/events", s.handleEvents)
}
