package onecloud

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Kind classifies why a dispatch failed.
type Kind string

const (
	// KindPacing means the gate refused the call locally; nothing was sent.
	KindPacing Kind = "pacing"
	// KindStatus means the API answered with a documented error status.
	KindStatus Kind = "status"
	// KindUnknownStatus means the API answered with an undocumented status.
	KindUnknownStatus Kind = "unknown_status"
	// KindTransport covers connect failures, timeouts and cancellation.
	KindTransport Kind = "transport"
	// KindDecode means a 200 response carried a body that is not JSON.
	KindDecode Kind = "decode"
	// KindValidation means the call was rejected before pacing.
	KindValidation Kind = "validation"
)

var statusMessages = map[int]string{
	http.StatusOK:                  "request complete",
	http.StatusBadRequest:          "invalid request parameters",
	http.StatusUnauthorized:        "not authorized",
	http.StatusForbidden:           "request denied",
	http.StatusNotFound:            "object not found",
	http.StatusInternalServerError: "unknown error - contact 1cloud.ru support",
}

// StatusMessage returns the fixed message for a documented status code.
func StatusMessage(code int) (string, bool) {
	msg, ok := statusMessages[code]
	return msg, ok
}

const unknownStatusPrefix = "Unknown error. Plain response:"

// Error is returned by every failed dispatch.
type Error struct {
	Kind Kind
	// StatusCode is the HTTP status the API answered with, 0 when no response
	// status applies (pacing, unknown status, transport).
	StatusCode int
	Message    string
	Verb       string
	Path       string
	// Wait is the remaining spacing for pacing rejections.
	Wait time.Duration
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "onecloud error"
	}
	if e.Verb == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s: %s", e.Verb, e.Path, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ErrorRecord is the uniform failure shape printed by the CLI.
type ErrorRecord struct {
	ErrorCode    *int   `json:"ERROR_CODE"`
	ErrorMessage string `json:"ERROR_MESSAGE"`
}

// Record converts the error into its wire record. ERROR_CODE is null unless
// the API answered with a documented status.
func (e *Error) Record() ErrorRecord {
	if e == nil {
		return ErrorRecord{}
	}
	rec := ErrorRecord{ErrorMessage: e.Message}
	if e.Kind == KindStatus && e.StatusCode != 0 {
		code := e.StatusCode
		rec.ErrorCode = &code
	}
	return rec
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var oe *Error
	if errors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}

// IsPacing reports whether err is a local pacing rejection.
func IsPacing(err error) bool {
	oe, ok := AsError(err)
	return ok && oe.Kind == KindPacing
}

// RecordFor builds an error record for any error. Errors that are not
// *Error are reported with a null code.
func RecordFor(err error) ErrorRecord {
	if oe, ok := AsError(err); ok {
		return oe.Record()
	}
	if err == nil {
		return ErrorRecord{}
	}
	return ErrorRecord{ErrorMessage: err.Error()}
}

func pacingError(verb, path string, wait time.Duration) *Error {
	return &Error{
		Kind:    KindPacing,
		Message: fmt.Sprintf("Too fast for %s type requests! Try again in %s seconds.", verb, formatSeconds(wait)),
		Verb:    verb,
		Path:    path,
		Wait:    wait,
	}
}

func statusError(verb, path string, code int, body []byte) *Error {
	if msg, ok := statusMessages[code]; ok && code != http.StatusOK {
		return &Error{Kind: KindStatus, StatusCode: code, Message: msg, Verb: verb, Path: path}
	}
	return &Error{
		Kind:    KindUnknownStatus,
		Message: unknownStatusPrefix + string(body),
		Verb:    verb,
		Path:    path,
		Err:     fmt.Errorf("unexpected status %d", code),
	}
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Round(time.Millisecond).Seconds(), 'f', -1, 64)
}
