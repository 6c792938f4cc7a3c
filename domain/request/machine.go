package request

import (
	"sync"

	"oncodetect/domain/core"
	"oncodetect/internal/errors"
)

// TransitionFunc observes a state change. It runs with the machine locked
// and must not call back into the machine.
type TransitionFunc func(from, to State)

// Machine owns the RequestState of one form. Attempt ids increase strictly
// and a response is applied only when it carries the latest id while the
// machine is still in flight.
type Machine struct {
	mu      sync.Mutex
	state   State
	latest  core.AttemptID
	watches []TransitionFunc
}

// NewMachine creates a machine in Idle
func NewMachine() *Machine {
	return &Machine{state: Idle()}
}

// OnTransition registers an observer
func (m *Machine) OnTransition(fn TransitionFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watches = append(m.watches, fn)
}

// State returns a copy of the current state
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Latest returns the most recently issued attempt id
func (m *Machine) Latest() core.AttemptID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest
}

// Submit runs one submission through Validating. A validation failure
// returns to Idle with the message surfaced and issues no attempt; success
// moves to InFlight under a fresh attempt id.
func (m *Machine) Submit(validate func() error) (core.AttemptID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.markValidatingLocked(); err != nil {
		return 0, err
	}
	if validate != nil {
		if err := validate(); err != nil {
			m.surfaceLocked(err)
			return 0, err
		}
	}
	return m.beginLocked()
}

// MarkValidating enters the synchronous validation window. The previous
// result and any surfaced message are discarded immediately.
func (m *Machine) MarkValidating() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markValidatingLocked()
}

// SurfaceValidation leaves Validating for Idle with err shown to the user
func (m *Machine) SurfaceValidation(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.surfaceLocked(err)
}

// Begin issues a new attempt and moves to InFlight. A second submission
// while in flight is refused with core.ErrAttemptInFlight.
func (m *Machine) Begin() (core.AttemptID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.beginLocked()
}

// Resolve applies the outcome of attempt id. Stale or unexpected responses
// are dropped and false is returned.
func (m *Machine) Resolve(id core.AttemptID, out Outcome) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id.IsZero() || id != m.latest || m.state.kind != KindInFlight {
		return false
	}
	m.setLocked(out.StateFor(id))
	return true
}

// Reset returns to Idle and orphans any attempt still in flight
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.kind == KindInFlight {
		// bump so the orphaned response can never match
		m.latest++
	}
	m.setLocked(Idle())
}

func (m *Machine) markValidatingLocked() error {
	switch m.state.kind {
	case KindInFlight:
		return core.ErrAttemptInFlight
	case KindValidating:
		return nil
	}
	m.setLocked(Validating())
	return nil
}

func (m *Machine) surfaceLocked(err error) {
	appErr, ok := errors.As(err)
	if !ok {
		appErr = errors.ValidationError(err.Error())
	}
	m.setLocked(IdleWithNotice(appErr))
}

func (m *Machine) beginLocked() (core.AttemptID, error) {
	if m.state.kind == KindInFlight {
		return 0, core.ErrAttemptInFlight
	}
	m.latest++
	m.setLocked(InFlightFor(m.latest))
	return m.latest, nil
}

func (m *Machine) setLocked(next State) {
	prev := m.state
	m.state = next
	for _, fn := range m.watches {
		fn(prev, next)
	}
}
