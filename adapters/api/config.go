package api

import (
	"fmt"
	"net/url"
	"time"
)

// Remote endpoint paths
const (
	PathFreeForm   = "/api/v1/ai-analyze"
	PathStructured = "/api/v1/analyze"
	PathHealth     = "/health"
)

// ClientConfig holds configuration for the analysis service client
type ClientConfig struct {
	BaseURL string        `json:"base_url"`
	Timeout time.Duration `json:"timeout"`

	// Upper bound on bytes read from any response body
	MaxResponseBytes int64  `json:"max_response_bytes"`
	UserAgent        string `json:"user_agent"`
}

// DefaultClientConfig returns sensible defaults for a local analysis service
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:          "http://localhost:8000",
		Timeout:          60 * time.Second,
		MaxResponseBytes: 4 << 20,
		UserAgent:        "oncodetect-console/1.0",
	}
}

// Validate checks the configuration for consistency
func (c *ClientConfig) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base URL %q must be an absolute URL", c.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base URL scheme %q is not supported", u.Scheme)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxResponseBytes <= 0 {
		return fmt.Errorf("max response bytes must be positive")
	}
	return nil
}
