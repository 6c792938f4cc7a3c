package ports

import "oncodetect/domain/core"

// Preview is a stored image preview
type Preview struct {
	Token     core.PreviewToken
	MediaType string
	Data      []byte
	Hash      core.ContentHash
}

// PreviewStore holds single-owner preview resources for selected images.
// Every acquired token must be released exactly once.
type PreviewStore interface {
	Acquire(data []byte, mediaType string) (core.PreviewToken, error)
	Release(token core.PreviewToken) error
	Get(token core.PreviewToken) (*Preview, error)
	Live() int
}
