package app

import (
	"sync"

	"oncodetect/domain/core"
	"oncodetect/domain/request"
	"oncodetect/domain/submission"
	"oncodetect/domain/view"
)

// form pairs the editable input of one variant with its request machine
type form struct {
	collector *submission.Collector
	machine   *request.Machine
}

// Workspace is the per-browser-session pipeline: one form per variant and
// the page navigator. Collector access is serialized by mu; machines carry
// their own lock.
type Workspace struct {
	id  core.SessionID
	nav *view.Navigator

	mu       sync.Mutex
	forms    map[submission.Variant]*form
	lastSeen core.Timestamp
	closed   bool
}

// ID returns the owning session id
func (w *Workspace) ID() core.SessionID {
	return w.id
}

// Page returns the page the session is on
func (w *Workspace) Page() view.Page {
	return w.nav.Current()
}

func (w *Workspace) form(variant submission.Variant) (*form, error) {
	f, ok := w.forms[variant]
	if !ok {
		return nil, core.ErrUnknownVariant
	}
	return f, nil
}

func (w *Workspace) busy() bool {
	for _, f := range w.forms {
		if f.machine.State().Is(request.KindInFlight) {
			return true
		}
	}
	return false
}

// ownsPreview reports whether token is the live preview of one of the forms
func (w *Workspace) ownsPreview(token core.PreviewToken) bool {
	for _, f := range w.forms {
		if f.collector.PreviewToken() == token {
			return true
		}
	}
	return false
}

func (w *Workspace) close() {
	if w.closed {
		return
	}
	w.closed = true
	for _, f := range w.forms {
		f.machine.Reset()
		f.collector.Close()
	}
}

// Snapshot is a read-only copy of one form and its request state
type Snapshot struct {
	SessionID core.SessionID     `json:"session_id"`
	Variant   submission.Variant `json:"variant"`
	Page      view.Page          `json:"page"`
	Kind      string             `json:"state"`
	View      view.ResultView    `json:"view"`
	Values    map[string]string  `json:"values"`
	Preview   core.PreviewToken  `json:"preview,omitempty"`
	ImageName string             `json:"image_name,omitempty"`

	State request.State `json:"-"`
}
