package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies an API failure by how the caller should react to it.
type Kind string

const (
	// KindTransport means the request never produced an HTTP response.
	KindTransport Kind = "transport"
	// KindUnauthorized means the server rejected the bearer token (401).
	KindUnauthorized Kind = "unauthorized"
	// KindValidation means the server returned a list of field errors.
	KindValidation Kind = "validation"
	// KindDomain covers every other non-success response.
	KindDomain Kind = "domain"
)

const (
	// MsgTransport is shown when the API cannot be reached.
	MsgTransport = "Unable to reach ProductLogik. Please check your connection and try again."
	// MsgUnauthorized is used for 401 responses without a detail.
	MsgUnauthorized = "Your session has expired. Please log in again."
	// MsgNoSession is used when an authenticated call is attempted without
	// a token.
	MsgNoSession = "You are not logged in. Please log in and try again."

	validationPrefix = "Value error, "
)

// Error is the single error type returned by Client operations.
type Error struct {
	// StatusCode is the HTTP status, zero for transport failures.
	StatusCode int
	Kind       Kind
	// Message is human readable and safe to show to the user.
	Message string
	// Err is the underlying cause for transport failures.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// NoSession returns the error for an authenticated operation attempted
// without a token. It matches ErrNoSession under errors.Is.
func NoSession() *Error {
	return &Error{Kind: KindUnauthorized, Message: MsgNoSession, Err: ErrNoSession}
}

// IsUnauthorized returns true if the server rejected the session.
func (e *Error) IsUnauthorized() bool {
	return e.Kind == KindUnauthorized
}

// IsValidation returns true for field validation failures.
func (e *Error) IsValidation() bool {
	return e.Kind == KindValidation
}

// IsTransport returns true if no HTTP response was received.
func (e *Error) IsTransport() bool {
	return e.Kind == KindTransport
}

// IsUnauthorized reports whether err is an *Error of kind unauthorized.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.IsUnauthorized()
}

// IsValidation reports whether err is an *Error of kind validation.
func IsValidation(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.IsValidation()
}

// IsTransport reports whether err is an *Error of kind transport.
func IsTransport(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.IsTransport()
}

// StatusCode returns the HTTP status carried by err, or zero.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func transportError(cause error) *Error {
	return &Error{Kind: KindTransport, Message: MsgTransport, Err: cause}
}

// parseError turns a non-success response into an *Error.
//
// The body is expected to be a FastAPI style {"detail": ...} document where
// detail is either a string or a list of {"msg": ...} entries. Anything else,
// including a body that is not JSON at all, yields fallback plus the status.
func parseError(statusCode int, body []byte, fallback string) error {
	e := &Error{StatusCode: statusCode, Kind: KindDomain}
	if statusCode == http.StatusUnauthorized {
		e.Kind = KindUnauthorized
	}

	msg, isList := parseDetail(body)
	if isList && e.Kind == KindDomain {
		e.Kind = KindValidation
	}

	switch {
	case msg != "":
		e.Message = msg
	case e.Kind == KindUnauthorized:
		e.Message = MsgUnauthorized
	default:
		e.Message = genericMessage(statusCode, fallback)
	}
	return e
}

func genericMessage(statusCode int, fallback string) string {
	if text := http.StatusText(statusCode); text != "" {
		return fmt.Sprintf("%s: %d %s", fallback, statusCode, text)
	}
	return fmt.Sprintf("%s: %d", fallback, statusCode)
}

// parseDetail extracts the user-facing message from an error body. It
// never fails: an unusable body returns "".
func parseDetail(body []byte) (msg string, isList bool) {
	var doc struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &doc); err != nil || len(doc.Detail) == 0 {
		return "", false
	}

	var s string
	if err := json.Unmarshal(doc.Detail, &s); err == nil {
		return strings.TrimSpace(s), false
	}

	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(doc.Detail, &list); err == nil {
		if len(list) == 0 {
			return "", true
		}
		return strings.TrimPrefix(list[0].Msg, validationPrefix), true
	}

	// Some handlers return {"detail": {"message": "..."}}.
	var obj struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
	}
	if err := json.Unmarshal(doc.Detail, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message, false
		}
		return obj.Msg, false
	}
	return "", false
}
