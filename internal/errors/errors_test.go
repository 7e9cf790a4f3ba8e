package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrCodeNotFound, CodeOf(NewNotFoundError("zip 00000")))
	assert.Equal(t, ErrCodeTransport, CodeOf(fmt.Errorf("search: %w", NewTransportError("places", nil))))
	assert.Equal(t, ErrCodeInternal, CodeOf(stderrors.New("boom")))
	assert.Equal(t, ErrCodeInternal, CodeOf(nil))
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewSessionNotFoundError("abc"))
	assert.True(t, Is(err, ErrCodeSessionNotFound))
	assert.False(t, Is(err, ErrCodeNotFound))
	assert.False(t, Is(nil, ErrCodeInternal))
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("connection refused")

	err := NewTransportError("geocode", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "geocode: connection refused", err.Details)

	load := NewLoadFailedError("metadata.json", cause)
	assert.ErrorIs(t, load, cause)

	assert.Nil(t, NewNotFoundError("").Unwrap())
}

func TestError(t *testing.T) {
	assert.Equal(t, "NO_RESULTS: No facilities found", NewNoResultsError("").Error())
	assert.Equal(t, "NOT_READY: The voice model is still loading (recognizer state: loading)",
		NewNotReadyError("loading").Error())
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeNotFound, http.StatusUnprocessableEntity},
		{ErrCodeNoResults, http.StatusUnprocessableEntity},
		{ErrCodeTransport, http.StatusBadGateway},
		{ErrCodeLoadFailed, http.StatusServiceUnavailable},
		{ErrCodeNotReady, http.StatusServiceUnavailable},
		{ErrCodeInvalidInput, http.StatusBadRequest},
		{ErrCodeSessionNotFound, http.StatusNotFound},
		{ErrCodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.code))
		})
	}
}

func TestNotice(t *testing.T) {
	assert.Equal(t, "Invalid zip code", Notice(ErrCodeNotFound))
	assert.Equal(t, "No facilities found", Notice(ErrCodeNoResults))
	assert.Equal(t, "Unexpected error", Notice("SOMETHING_ELSE"))
	assert.Equal(t, Notice(ErrCodeLoadFailed), NewLoadFailedError("tf.min.js", nil).Message)
}
