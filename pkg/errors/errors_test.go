package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Creation(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		kind     Kind
		expected string
	}{
		{
			name:     "validation error",
			err:      Validation("name is required"),
			kind:     KindValidation,
			expected: "name is required",
		},
		{
			name:     "malformed request with cause",
			err:      MalformedRequest("invalid request body", errors.New("unexpected EOF")),
			kind:     KindMalformedRequest,
			expected: "invalid request body: unexpected EOF",
		},
		{
			name:     "unauthorized default message",
			err:      Unauthorized(""),
			kind:     KindUnauthorized,
			expected: "unauthorized",
		},
		{
			name:     "not found",
			err:      NotFound("contact 7 not found"),
			kind:     KindNotFound,
			expected: "contact 7 not found",
		},
		{
			name:     "internal",
			err:      Internal("panic: boom", nil),
			kind:     KindUnclassified,
			expected: "panic: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{"nil", nil, KindUnclassified},
		{"plain error", errors.New("boom"), KindUnclassified},
		{"tagged", NotFound("missing"), KindNotFound},
		{"wrapped with fmt", fmt.Errorf("handler: %w", Unauthorized("bad token")), KindUnauthorized},
		{"wrapped with Wrap", Wrap(Validation("bad"), "create contact"), KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindOf(tt.err))
		})
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "boom", Message(errors.New("boom")))
	assert.Equal(t, "invalid id", Message(MalformedRequest("invalid id", errors.New("strconv"))))
	assert.Equal(t, "outer", Message(fmt.Errorf("ctx: %w", Internal("outer", errors.New("inner")))))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal("store unavailable", cause)

	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, cause))
	assert.Nil(t, Wrap(nil, "ignored"))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "VALIDATION", KindValidation.String())
	assert.Equal(t, "MALFORMED_REQUEST", KindMalformedRequest.String())
	assert.Equal(t, "UNAUTHORIZED", KindUnauthorized.String())
	assert.Equal(t, "NOT_FOUND", KindNotFound.String())
	assert.Equal(t, "UNCLASSIFIED", KindUnclassified.String())
	assert.True(t, IsNotFound(NotFound("x")))
	assert.True(t, IsValidation(Validation("x")))
	assert.True(t, IsUnauthorized(Unauthorized("x")))
}
