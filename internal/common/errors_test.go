package common

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAuthFailure(t *testing.T) {
	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "unauthorized", err: ErrorUnauthorized, want: true},
		{name: "bad signature", err: ErrInvalidSignature, want: true},
		{name: "expired wrapped", err: fmt.Errorf("verify: %w", ErrTokenExpired), want: true},
		{name: "hash format is not an auth failure", err: ErrInvalidHashFormat, want: false},
		{name: "not found", err: ErrorNotFound, want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAuthFailure(tt.err))
		})
	}
}
