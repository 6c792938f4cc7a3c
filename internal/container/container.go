package container

import (
	"context"
	"fmt"

	analysisapi "oncodetect/adapters/api"
	"oncodetect/adapters/preview"
	"oncodetect/app"
	"oncodetect/domain/core"
	"oncodetect/internal"
	"oncodetect/internal/api"
	"oncodetect/internal/config"
	"oncodetect/ports"
	"oncodetect/ui"
)

// Container holds all console dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Adapters
	Client   *analysisapi.Client
	Previews ports.PreviewStore
	SSEHub   *api.SSEHub

	// Services
	Cases *app.CaseService

	// Presentation
	Server *ui.Server
}

// New creates a new dependency injection container
func New(cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if logger == nil {
		logger = internal.NewNopLogger()
	}

	c := &Container{Config: cfg, Logger: logger}

	if err := c.initAdapters(); err != nil {
		return nil, fmt.Errorf("failed to initialize adapters: %w", err)
	}
	c.initServices()
	if err := c.initUI(); err != nil {
		c.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize UI: %w", err)
	}

	logger.Info("[Container] Console components initialized")
	return c, nil
}

// initAdapters builds the analysis client, preview store and SSE hub
func (c *Container) initAdapters() error {
	clientConfig := analysisapi.DefaultClientConfig()
	clientConfig.BaseURL = c.Config.Analysis.BaseURL
	clientConfig.Timeout = c.Config.Analysis.Timeout

	client, err := analysisapi.NewClient(clientConfig, c.Logger)
	if err != nil {
		return err
	}
	c.Client = client
	c.Previews = preview.NewMemoryStore(0)
	c.SSEHub = api.NewSSEHub(c.Logger)
	return nil
}

func (c *Container) initServices() {
	c.Cases = app.NewCaseService(c.Client, c.Previews, c.SSEHub, core.SystemClock{}, app.CaseServiceConfig{
		MaxImageBytes:   c.Config.Upload.MaxImageBytes,
		AnalysisTimeout: c.Config.Analysis.Timeout,
		MaxConcurrency:  c.Config.Analysis.MaxConcurrency,
		SessionTTL:      c.Config.Session.TTL,
	}, c.Logger)
}

func (c *Container) initUI() error {
	server, err := ui.NewServer(ui.Config{
		CookieName:    c.Config.Session.CookieName,
		SessionTTL:    c.Config.Session.TTL,
		MaxImageBytes: c.Config.Upload.MaxImageBytes,
	}, c.Cases, c.SSEHub, c.Logger)
	if err != nil {
		return err
	}
	c.Server = server
	return nil
}

// Shutdown ends SSE streams, cancels outstanding analyses and releases
// previews. It is safe to call more than once.
func (c *Container) Shutdown(ctx context.Context) {
	if c.SSEHub != nil {
		c.SSEHub.Close()
	}
	if c.Cases == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		c.Cases.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		c.Logger.Warn("[Container] Shutdown deadline reached before analyses drained")
	}
}
