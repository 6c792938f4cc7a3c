package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"oncodetect/domain/core"
	"oncodetect/domain/request"
	"oncodetect/domain/submission"
	"oncodetect/domain/triage"
	"oncodetect/domain/view"
	"oncodetect/internal"
	"oncodetect/internal/errors"
	"oncodetect/ports"
)

// CaseServiceConfig bounds the work the service takes on
type CaseServiceConfig struct {
	MaxImageBytes   int64
	AnalysisTimeout time.Duration
	MaxConcurrency  int64
	SessionTTL      time.Duration
}

// DefaultCaseServiceConfig returns the production defaults
func DefaultCaseServiceConfig() CaseServiceConfig {
	return CaseServiceConfig{
		MaxImageBytes:   10 << 20,
		AnalysisTimeout: 60 * time.Second,
		MaxConcurrency:  8,
		SessionTTL:      2 * time.Hour,
	}
}

// CaseService owns every session's workspace and runs submissions against
// the analysis service. Calls are fire-and-forget: Submit returns as soon
// as the attempt is in flight and the response is applied later through
// the session's request machine.
type CaseService struct {
	analysis    ports.AnalysisService
	previews    ports.PreviewStore
	broadcaster ports.StateBroadcaster
	clock       core.Clock
	config      CaseServiceConfig
	logger      *internal.Logger

	// bounds outbound analyses across all sessions
	sem *semaphore.Weighted

	mu         sync.Mutex
	workspaces map[core.SessionID]*Workspace

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCaseService creates the service. broadcaster, clock and logger may be nil.
func NewCaseService(
	analysis ports.AnalysisService,
	previews ports.PreviewStore,
	broadcaster ports.StateBroadcaster,
	clock core.Clock,
	config CaseServiceConfig,
	logger *internal.Logger,
) *CaseService {
	defaults := DefaultCaseServiceConfig()
	if config.AnalysisTimeout <= 0 {
		config.AnalysisTimeout = defaults.AnalysisTimeout
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = defaults.SessionTTL
	}
	if clock == nil {
		clock = core.SystemClock{}
	}
	if logger == nil {
		logger = internal.NewNopLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &CaseService{
		analysis:    analysis,
		previews:    previews,
		broadcaster: broadcaster,
		clock:       clock,
		config:      config,
		logger:      logger,
		sem:         semaphore.NewWeighted(config.MaxConcurrency),
		workspaces:  make(map[core.SessionID]*Workspace),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// EnsureSession returns the workspace of sessionID, creating it on first use
func (s *CaseService) EnsureSession(sessionID core.SessionID) *Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ws, ok := s.workspaces[sessionID]; ok {
		ws.mu.Lock()
		ws.lastSeen = s.clock.Now()
		ws.mu.Unlock()
		return ws
	}

	ws := &Workspace{
		id:       sessionID,
		nav:      view.NewNavigator(),
		forms:    make(map[submission.Variant]*form, 2),
		lastSeen: s.clock.Now(),
	}
	for _, variant := range []submission.Variant{submission.VariantFreeForm, submission.VariantStructured} {
		f := &form{
			collector: submission.NewCollector(variant, s.config.MaxImageBytes, s.previews),
			machine:   request.NewMachine(),
		}
		f.machine.OnTransition(s.transitionObserver(sessionID, variant))
		ws.forms[variant] = f
	}
	s.workspaces[sessionID] = ws

	s.logger.Debug("[CaseService] Created workspace for session %s", sessionID)
	return ws
}

// Sessions returns the number of live workspaces
func (s *CaseService) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workspaces)
}

func (s *CaseService) lookup(sessionID core.SessionID) (*Workspace, error) {
	s.mu.Lock()
	ws, ok := s.workspaces[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	return ws, nil
}

// withForm runs fn with the workspace locked
func (s *CaseService) withForm(sessionID core.SessionID, variant submission.Variant, fn func(ws *Workspace, f *form) error) error {
	ws, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.closed {
		return core.ErrSessionNotFound
	}
	f, err := ws.form(variant)
	if err != nil {
		return err
	}
	ws.lastSeen = s.clock.Now()
	return fn(ws, f)
}

// SetImage selects an image for a form. Rejected files leave the current
// selection in place.
func (s *CaseService) SetImage(sessionID core.SessionID, variant submission.Variant, filename string, data []byte, declaredType string) error {
	return s.withForm(sessionID, variant, func(_ *Workspace, f *form) error {
		if err := f.collector.SetImage(filename, data, declaredType); err != nil {
			s.logger.Debug("[CaseService] Image rejected for session %s: %v", sessionID, err)
			return err
		}
		return nil
	})
}

// ClearImage drops a form's image and its preview
func (s *CaseService) ClearImage(sessionID core.SessionID, variant submission.Variant) error {
	return s.withForm(sessionID, variant, func(_ *Workspace, f *form) error {
		f.collector.ClearImage()
		return nil
	})
}

// SetFields updates text and structured fields. The key "text" holds the
// clinical notes; the others are structured field names.
func (s *CaseService) SetFields(sessionID core.SessionID, variant submission.Variant, fields map[string]string) error {
	return s.withForm(sessionID, variant, func(_ *Workspace, f *form) error {
		for name, value := range fields {
			if name == "text" {
				f.collector.SetText(value)
				continue
			}
			if err := f.collector.SetStructuredField(name, value); err != nil {
				return errors.ValidationError(err.Error())
			}
		}
		return nil
	})
}

// Submit validates the form and, when valid, starts an analysis attempt in
// the background. Validation failures are surfaced on the form's state and
// returned; a submit while an attempt is in flight returns
// core.ErrAttemptInFlight and changes nothing.
func (s *CaseService) Submit(ctx context.Context, sessionID core.SessionID, variant submission.Variant) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	var (
		sub     submission.Submission
		attempt core.AttemptID
	)
	err := s.withForm(sessionID, variant, func(_ *Workspace, f *form) error {
		sub = f.collector.Build()
		id, err := f.machine.Submit(func() error { return submission.Validate(sub) })
		if err != nil {
			return err
		}
		attempt = id
		return nil
	})
	if err != nil {
		if core.IsValidationError(err) {
			s.logger.Debug("[CaseService] Validation failed for session %s (%s): %v", sessionID, variant, err)
		}
		snap, snapErr := s.Snapshot(sessionID, variant)
		if snapErr != nil {
			return Snapshot{}, err
		}
		return snap, err
	}

	s.logger.Info("[CaseService] Attempt %s started for session %s (%s)", attempt, sessionID, variant)

	s.wg.Add(1)
	go s.run(sessionID, variant, attempt, sub)

	return s.Snapshot(sessionID, variant)
}

// run performs one analysis call and resolves its attempt
func (s *CaseService) run(sessionID core.SessionID, variant submission.Variant, attempt core.AttemptID, sub submission.Submission) {
	defer s.wg.Done()

	var out request.Outcome
	if err := s.sem.Acquire(s.ctx, 1); err != nil {
		out = request.OutcomeFrom(nil, errors.Transport("", err))
	} else {
		ctx, cancel := context.WithTimeout(s.ctx, s.config.AnalysisTimeout)
		started := time.Now()
		result, callErr := s.analyze(ctx, sub)
		cancel()
		s.sem.Release(1)

		if callErr != nil && core.IsContractViolation(callErr) {
			s.logger.Error("[CaseService] Contract violation on attempt %s for session %s: %v", attempt, sessionID, callErr)
		} else if callErr != nil {
			s.logger.Warn("[CaseService] Attempt %s for session %s failed after %v: %v", attempt, sessionID, time.Since(started), callErr)
		} else {
			s.logger.Debug("[CaseService] Attempt %s for session %s answered in %v", attempt, sessionID, time.Since(started))
		}
		out = request.OutcomeFrom(result, callErr)
	}

	ws, err := s.lookup(sessionID)
	if err != nil {
		s.logger.Debug("[CaseService] Dropping attempt %s: session %s expired", attempt, sessionID)
		return
	}
	ws.mu.Lock()
	f, err := ws.form(variant)
	ws.mu.Unlock()
	if err != nil {
		return
	}

	if !f.machine.Resolve(attempt, out) {
		s.logger.Debug("[CaseService] Dropped stale response for attempt %s (latest %s) in session %s",
			attempt, f.machine.Latest(), sessionID)
	}
}

func (s *CaseService) analyze(ctx context.Context, sub submission.Submission) (triage.AnalysisResult, error) {
	switch sub.Variant {
	case submission.VariantStructured:
		r, err := s.analysis.AnalyzeStructured(ctx, sub)
		if err != nil || r == nil {
			return nil, err
		}
		return r, nil
	case submission.VariantFreeForm:
		r, err := s.analysis.AnalyzeFreeForm(ctx, sub)
		if err != nil || r == nil {
			return nil, err
		}
		return r, nil
	}
	return nil, errors.InternalError(fmt.Sprintf("no endpoint for variant %q", sub.Variant))
}

// Navigate moves the session to page. Changing page returns both forms to
// Idle and orphans any attempt still in flight; the form inputs are kept.
func (s *CaseService) Navigate(sessionID core.SessionID, page view.Page) (bool, error) {
	ws, err := s.lookup(sessionID)
	if err != nil {
		return false, err
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.lastSeen = s.clock.Now()

	if !ws.nav.Go(page) {
		return false, nil
	}
	for _, f := range ws.forms {
		f.machine.Reset()
	}
	s.logger.Debug("[CaseService] Session %s navigated to %s", sessionID, page)
	return true, nil
}

// Snapshot returns the current form values and request state of a form
func (s *CaseService) Snapshot(sessionID core.SessionID, variant submission.Variant) (Snapshot, error) {
	var snap Snapshot
	err := s.withForm(sessionID, variant, func(ws *Workspace, f *form) error {
		st := f.machine.State()
		snap = Snapshot{
			SessionID: sessionID,
			Variant:   variant,
			Page:      ws.nav.Current(),
			Kind:      st.Kind().String(),
			View:      view.Select(st),
			Values:    f.collector.Values(),
			Preview:   f.collector.PreviewToken(),
			State:     st,
		}
		if img := f.collector.Image(); img != nil {
			snap.ImageName = img.Filename
		}
		return nil
	})
	return snap, err
}

// Preview returns a preview owned by the session
func (s *CaseService) Preview(sessionID core.SessionID, token core.PreviewToken) (*ports.Preview, error) {
	ws, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	ws.mu.Lock()
	owned := ws.ownsPreview(token)
	ws.mu.Unlock()
	if !owned {
		return nil, core.ErrPreviewNotFound
	}
	return s.previews.Get(token)
}

// Health checks the analysis service
func (s *CaseService) Health(ctx context.Context) error {
	return s.analysis.Health(ctx)
}

// ExpireIdle closes workspaces unseen for longer than the session TTL.
// Workspaces with an attempt in flight are kept.
func (s *CaseService) ExpireIdle() int {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := 0
	for id, ws := range s.workspaces {
		ws.mu.Lock()
		stale := ws.lastSeen.Add(s.config.SessionTTL).Before(now) && !ws.busy()
		if stale {
			ws.close()
			delete(s.workspaces, id)
			expired++
		}
		ws.mu.Unlock()
	}
	if expired > 0 {
		s.logger.Info("[CaseService] Expired %d idle sessions (%d remaining)", expired, len(s.workspaces))
	}
	return expired
}

// RunJanitor expires idle sessions every interval until ctx is done
func (s *CaseService) RunJanitor(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.ExpireIdle()
		}
	}
}

// Wait blocks until every outstanding analysis call has finished
func (s *CaseService) Wait() {
	s.wg.Wait()
}

// Close cancels outstanding calls, waits for them and releases every
// workspace's previews
func (s *CaseService) Close() {
	s.logger.Info("[CaseService] Shutting down...")
	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ws := range s.workspaces {
		ws.mu.Lock()
		ws.close()
		ws.mu.Unlock()
		delete(s.workspaces, id)
	}
}

func (s *CaseService) transitionObserver(sessionID core.SessionID, variant submission.Variant) request.TransitionFunc {
	return func(from, to request.State) {
		s.logger.Trace("[CaseService] %s/%s: %s -> %s (attempt %s)", sessionID, variant, from.Kind(), to.Kind(), to.Attempt())
		if s.broadcaster == nil {
			return
		}
		event := ports.StateEvent{
			SessionID: sessionID,
			Variant:   string(variant),
			From:      from.Kind().String(),
			To:        to.Kind().String(),
			Message:   to.Message(),
			At:        s.clock.Now(),
		}
		if !to.Attempt().IsZero() {
			event.Attempt = to.Attempt().String()
		}
		s.broadcaster.BroadcastState(event)
	}
}
