package request

import (
	"oncodetect/domain/core"
	"oncodetect/domain/triage"
	"oncodetect/internal/errors"
)

// Kind enumerates the request lifecycle states
type Kind int

const (
	KindIdle Kind = iota
	KindValidating
	KindInFlight
	KindSucceeded
	KindRejected
	KindFailed
)

var kindNames = map[Kind]string{
	KindIdle:       "idle",
	KindValidating: "validating",
	KindInFlight:   "in_flight",
	KindSucceeded:  "succeeded",
	KindRejected:   "rejected",
	KindFailed:     "failed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Settled reports whether the kind ends an attempt
func (k Kind) Settled() bool {
	return k == KindSucceeded || k == KindRejected || k == KindFailed
}

// State is a tagged union over Kind. The zero value is Idle. Fields are
// unexported so only the constructors below can produce a State, and each
// constructor fills exactly the fields legal for its kind.
type State struct {
	kind    Kind
	attempt core.AttemptID
	result  triage.AnalysisResult
	reason  string
	err     *errors.AppError
}

// Idle is the initial, re-enterable state
func Idle() State {
	return State{kind: KindIdle}
}

// IdleWithNotice is Idle with a surfaced validation message
func IdleWithNotice(err *errors.AppError) State {
	return State{kind: KindIdle, err: err}
}

// Validating covers the synchronous validation window
func Validating() State {
	return State{kind: KindValidating}
}

// InFlightFor marks attempt id as awaiting a response
func InFlightFor(id core.AttemptID) State {
	return State{kind: KindInFlight, attempt: id}
}

// SucceededWith carries an accepted result
func SucceededWith(id core.AttemptID, result triage.AnalysisResult) State {
	return State{kind: KindSucceeded, attempt: id, result: result}
}

// RejectedWith carries the service's out-of-domain reason
func RejectedWith(id core.AttemptID, reason string) State {
	return State{kind: KindRejected, attempt: id, reason: reason}
}

// FailedWith carries a transport, service or contract failure
func FailedWith(id core.AttemptID, err *errors.AppError) State {
	if err == nil {
		err = errors.Transport("", nil)
	}
	return State{kind: KindFailed, attempt: id, err: err}
}

func (s State) Kind() Kind                    { return s.kind }
func (s State) Attempt() core.AttemptID       { return s.attempt }
func (s State) Result() triage.AnalysisResult { return s.result }
func (s State) Reason() string                { return s.reason }
func (s State) Err() *errors.AppError         { return s.err }

// Message returns the single status line to surface, or ""
func (s State) Message() string {
	switch {
	case s.kind == KindRejected:
		return s.reason
	case s.err != nil:
		return s.err.UserMessage()
	}
	return ""
}

// Is reports whether the state has the given kind
func (s State) Is(k Kind) bool {
	return s.kind == k
}
