package ports

import "oncodetect/domain/core"

// StateEvent describes one request state transition of a session
type StateEvent struct {
	SessionID core.SessionID `json:"session_id"`
	Variant   string         `json:"variant"`
	From      string         `json:"from"`
	To        string         `json:"to"`
	Attempt   string         `json:"attempt,omitempty"`
	Message   string         `json:"message,omitempty"`
	At        core.Timestamp `json:"at"`
}

// StateBroadcaster pushes state transitions to connected browsers
type StateBroadcaster interface {
	BroadcastState(event StateEvent)
}
