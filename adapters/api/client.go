package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"oncodetect/domain/submission"
	"oncodetect/domain/triage"
	"oncodetect/internal"
	"oncodetect/internal/errors"
)

// Client talks to the remote analysis service over HTTP
type Client struct {
	config     *ClientConfig
	baseURL    string
	httpClient *http.Client
	logger     *internal.Logger
}

// NewClient creates a client. A nil config uses DefaultClientConfig.
func NewClient(config *ClientConfig, logger *internal.Logger) (*Client, error) {
	if config == nil {
		config = DefaultClientConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(errors.ConfigInvalid(err.Error()), "invalid analysis client configuration")
	}
	if logger == nil {
		logger = internal.NewNopLogger()
	}

	logger.Info("[AnalysisClient] Initializing client with baseURL=%s, timeout=%v", config.BaseURL, config.Timeout)

	return &Client{
		config:  config,
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}, nil
}

// AnalyzeFreeForm posts an image and/or notes to endpoint A
func (c *Client) AnalyzeFreeForm(ctx context.Context, sub submission.Submission) (*triage.ScreeningResult, error) {
	p, err := encodeFreeForm(sub)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode free-form submission")
	}

	body, err := c.post(ctx, PathFreeForm, p)
	if err != nil {
		return nil, err
	}

	res, err := triage.DecodeScreening(body)
	if err != nil {
		c.logger.Error("[AnalysisClient] Contract violation on %s: %v (body=%s)", PathFreeForm, err, preview(body))
		return nil, errors.ContractViolation(err)
	}
	c.logger.Debug("[AnalysisClient] Screening result: relevant=%t", res.IsRelevant)
	return res, nil
}

// AnalyzeStructured posts a scan with structured fields to endpoint B
func (c *Client) AnalyzeStructured(ctx context.Context, sub submission.Submission) (*triage.TriageAssessment, error) {
	p, err := encodeStructured(sub)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode structured submission")
	}

	body, err := c.post(ctx, PathStructured, p)
	if err != nil {
		return nil, err
	}

	res, err := triage.DecodeAssessment(body)
	if err != nil {
		c.logger.Error("[AnalysisClient] Contract violation on %s: %v (body=%s)", PathStructured, err, preview(body))
		return nil, errors.ContractViolation(err)
	}
	c.logger.Debug("[AnalysisClient] Assessment: level=%s, final_cri=%.1f", res.TriageLevel, res.FinalCRI)
	return res, nil
}

// Health checks GET /health on the analysis service
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+PathHealth, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create health request")
	}
	_, err = c.do(req)
	return err
}

func (c *Client) post(ctx context.Context, path string, p *payload) ([]byte, error) {
	target := c.baseURL + path
	if len(p.query) > 0 {
		target += "?" + p.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, p.body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", p.contentType)

	c.logger.Debug("[AnalysisClient] POST %s (%d bytes)", path, p.body.Len())
	return c.do(req)
}

// do sends the request and maps every failure onto a transport AppError
func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(req.Context(), err) {
			c.logger.Warn("[AnalysisClient] %s %s timed out after %v", req.Method, req.URL.Path, time.Since(start))
			return nil, errors.Transport(errors.MsgTimeout, err)
		}
		c.logger.Warn("[AnalysisClient] %s %s failed: %v", req.Method, req.URL.Path, err)
		return nil, errors.Transport("", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxResponseBytes))
	if err != nil {
		if isTimeout(req.Context(), err) {
			return nil, errors.Transport(errors.MsgTimeout, err)
		}
		return nil, errors.Transport("", fmt.Errorf("failed to read response: %w", err))
	}

	c.logger.Debug("[AnalysisClient] %s %s -> %d in %v", req.Method, req.URL.Path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := errorDetail(body)
		c.logger.Warn("[AnalysisClient] %s %s returned status %d: %q", req.Method, req.URL.Path, resp.StatusCode, detail)
		return nil, errors.Transport(detail, fmt.Errorf("status %d", resp.StatusCode))
	}
	return body, nil
}

// errorDetail extracts the service's {detail} message. Validation errors
// from the service carry a list of {msg}; the first message is used.
// Anything else yields "" so the caller falls back to the generic text.
func errorDetail(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	detail := gjson.GetBytes(body, "detail")
	switch {
	case detail.Type == gjson.String:
		return strings.TrimSpace(detail.Str)
	case detail.IsArray():
		if msg := detail.Get("0.msg"); msg.Type == gjson.String {
			return strings.TrimSpace(msg.Str)
		}
	}
	return ""
}

func isTimeout(ctx context.Context, err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}

func preview(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
