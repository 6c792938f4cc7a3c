package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorDetail(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"detail":"bad image"}`, "bad image"},
		{`{"detail":" padded "}`, "padded"},
		{`{"detail":[{"msg":"Field required"},{"msg":"second"}]}`, "Field required"},
		{`{"detail":[]}`, ""},
		{`{"detail":42}`, ""},
		{`{"message":"nope"}`, ""},
		{`Internal Server Error`, ""},
		{``, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorDetail([]byte(tt.body)), tt.body)
	}
}
