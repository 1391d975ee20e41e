// Package apperr defines the failure taxonomy shared by the summary pipeline.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// Kind classifies a failure so callers can decide between retry, defer and abandon.
type Kind string

const (
	KindConfig        Kind = "config"
	KindTransport     Kind = "transport"
	KindAuth          Kind = "auth"
	KindRateLimited   Kind = "rate_limited"
	KindNoContent     Kind = "no_content"
	KindEmptyResponse Kind = "empty_response"
	KindUpstream      Kind = "upstream"
	KindNotFound      Kind = "not_found"
	KindInvalid       Kind = "invalid"
)

// Error is a classified failure. StatusCode carries the upstream HTTP status when known.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Config(msg string) *Error    { return New(KindConfig, msg) }
func NoContent(msg string) *Error { return New(KindNoContent, msg) }
func NotFound(msg string) *Error  { return New(KindNotFound, msg) }
func Invalid(msg string) *Error   { return New(KindInvalid, msg) }

// KindOf returns the kind of err, or "" for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether the queue layer should schedule another attempt.
// Unclassified errors are treated as transient.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return true
	}
	switch e.Kind {
	case KindTransport, KindRateLimited, KindEmptyResponse:
		return true
	case KindUpstream:
		return e.StatusCode == 0 || e.StatusCode >= http.StatusInternalServerError
	default:
		return false
	}
}

// HTTPStatus maps err to the status used by interactive requests.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalid, KindConfig:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindNoContent:
		return http.StatusUnprocessableEntity
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindAuth, KindEmptyResponse, KindUpstream:
		return http.StatusBadGateway
	case KindTransport:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

var bearerPattern = regexp.MustCompile(`(?i)(bearer\s+|sk-)[A-Za-z0-9._\-]{6,}`)

// Sanitize removes credentials from a message before it is shown to a user.
func Sanitize(msg string, secrets ...string) string {
	for _, s := range secrets {
		s = strings.TrimSpace(s)
		if len(s) < 4 {
			continue
		}
		msg = strings.ReplaceAll(msg, s, "[redacted]")
	}
	return bearerPattern.ReplaceAllString(msg, "${1}[redacted]")
}
