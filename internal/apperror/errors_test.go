package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationKinds(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"token", InvalidToken(), CodeInvalidToken, http.StatusForbidden},
		{"method", InvalidMethod("GET"), CodeInvalidMethod, http.StatusMethodNotAllowed},
		{"event", MissingEvent(), CodeMissingEvent, http.StatusBadRequest},
		{"signature missing", MissingSignature(), CodeMissingSignature, http.StatusUnauthorized},
		{"signature malformed", MalformedSignature(), CodeMalformedSignature, http.StatusUnauthorized},
		{"signature invalid", InvalidSignature(), CodeInvalidSignature, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rich, ok := As(tt.err)
			require.True(t, ok, "expected go-errors envelope, got %T", tt.err)
			assert.Equal(t, tt.code, rich.TextCode)
			assert.Equal(t, tt.status, rich.Code)
			assert.True(t, IsValidation(tt.err))
			assert.False(t, IsInternal(tt.err))
		})
	}
}

func TestIsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("dispatch: %w", NoResponse())
	assert.True(t, Is(err, CodeNoResponse))
	assert.True(t, IsInternal(err))
	assert.False(t, IsValidation(err))
}

func TestMalformedPayloadKeepsCause(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := MalformedPayload(cause)

	rich, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, CodeMalformedPayload, rich.TextCode)
	assert.Equal(t, goerrors.CategoryBadInput, rich.Category)
	assert.Contains(t, rich.Message, "unexpected end of JSON input")
}

func TestPlainErrorsAreInternal(t *testing.T) {
	assert.True(t, IsInternal(errors.New("boom")))
	assert.False(t, Is(errors.New("boom"), CodeConfig))
	_, ok := As(nil)
	assert.False(t, ok)
}
