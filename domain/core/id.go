package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	SessionID    ID
	PreviewToken ID
)

func (id SessionID) String() string    { return ID(id).String() }
func (id PreviewToken) String() string { return ID(id).String() }

// NewSessionID creates a browser session identifier
func NewSessionID() SessionID { return SessionID(NewID()) }

// NewPreviewToken creates a preview resource token
func NewPreviewToken() PreviewToken { return PreviewToken(NewID()) }

// ParseSessionID parses a cookie value into a SessionID.
// Only well-formed UUIDs are accepted so arbitrary cookie values never
// become map keys.
func ParseSessionID(s string) (SessionID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("session ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("invalid session ID %q: %w", s, err)
	}
	return SessionID(s), nil
}

// ParsePreviewToken parses a string into a PreviewToken
func ParsePreviewToken(s string) (PreviewToken, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("preview token cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("invalid preview token %q: %w", s, err)
	}
	return PreviewToken(s), nil
}

// AttemptID tags a single submission. Attempt ids are issued by a request
// machine in strictly increasing order; zero means "no attempt".
type AttemptID uint64

// String returns the decimal representation
func (a AttemptID) String() string {
	return strconv.FormatUint(uint64(a), 10)
}

// IsZero reports whether no attempt has been issued
func (a AttemptID) IsZero() bool {
	return a == 0
}
