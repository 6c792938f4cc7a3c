package preview

import (
	"sync"

	"oncodetect/domain/core"
	"oncodetect/ports"
)

// DefaultMaxBytes bounds the image bytes held across all sessions
const DefaultMaxBytes = 512 << 20

// MemoryStore keeps image previews in memory, keyed by random tokens.
// Stored bytes are shared with the caller and must not be mutated after
// Acquire.
type MemoryStore struct {
	mu       sync.RWMutex
	items    map[core.PreviewToken]*ports.Preview
	bytes    int64
	maxBytes int64
}

// NewMemoryStore creates a store holding at most maxBytes of image data
func NewMemoryStore(maxBytes int64) *MemoryStore {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &MemoryStore{
		items:    make(map[core.PreviewToken]*ports.Preview),
		maxBytes: maxBytes,
	}
}

// Acquire registers data as a preview and returns its token. When the
// byte budget is spent it returns core.ErrPreviewCapacity.
func (s *MemoryStore) Acquire(data []byte, mediaType string) (core.PreviewToken, error) {
	size := int64(len(data))
	hash := core.NewContentHash(data)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bytes+size > s.maxBytes {
		return "", core.ErrPreviewCapacity
	}

	token := core.NewPreviewToken()
	s.items[token] = &ports.Preview{
		Token:     token,
		MediaType: mediaType,
		Data:      data,
		Hash:      hash,
	}
	s.bytes += size
	return token, nil
}

// Release drops a preview. Releasing twice reports core.ErrPreviewReleased.
func (s *MemoryStore) Release(token core.PreviewToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.items[token]
	if !ok {
		return core.ErrPreviewReleased
	}
	s.bytes -= int64(len(p.Data))
	delete(s.items, token)
	return nil
}

// Get returns a live preview
func (s *MemoryStore) Get(token core.PreviewToken) (*ports.Preview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.items[token]
	if !ok {
		return nil, core.ErrPreviewNotFound
	}
	return p, nil
}

// Live returns the number of outstanding previews
func (s *MemoryStore) Live() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Bytes returns the image bytes currently held
func (s *MemoryStore) Bytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bytes
}

var _ ports.PreviewStore = (*MemoryStore)(nil)
