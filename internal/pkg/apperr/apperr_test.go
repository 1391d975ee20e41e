package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), true},
		{"transport", New(KindTransport, "timeout"), true},
		{"rate limited", New(KindRateLimited, "429"), true},
		{"empty response", New(KindEmptyResponse, "empty"), true},
		{"upstream 500", &Error{Kind: KindUpstream, StatusCode: 500}, true},
		{"upstream 400", &Error{Kind: KindUpstream, StatusCode: 400}, false},
		{"auth", New(KindAuth, "401"), false},
		{"config", Config("no key"), false},
		{"no content", NoContent("empty doc"), false},
		{"wrapped transport", fmt.Errorf("generate: %w", New(KindTransport, "x")), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(Config("x")))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("x")))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(NoContent("x")))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(New(KindRateLimited, "x")))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(New(KindAuth, "x")))
	assert.Equal(t, http.StatusGatewayTimeout, HTTPStatus(New(KindTransport, "x")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("x")))
}

func TestErrorMessage(t *testing.T) {
	inner := errors.New("dial tcp: refused")
	err := Wrap(KindTransport, "request failed", inner)
	assert.Equal(t, "request failed: dial tcp: refused", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, KindTransport, KindOf(fmt.Errorf("outer: %w", err)))
}

func TestSanitize(t *testing.T) {
	msg := "Incorrect API key provided: sk-abcdef123456 (header Bearer sk-abcdef123456)"
	out := Sanitize(msg)
	assert.NotContains(t, out, "abcdef123456")

	out = Sanitize("key secret-value-9 rejected", "secret-value-9")
	assert.Equal(t, "key [redacted] rejected", out)
}
