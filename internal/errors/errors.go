package errors

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
)

// APIError is the error shape every handler hands to the error middleware.
type APIError struct {
	Status     int           `json:"-"`
	Code       string        `json:"code"`
	Message    string        `json:"error"`
	Fields     []FieldError  `json:"fields,omitempty"`
	RetryAfter time.Duration `json:"-"`
	Internal   error         `json:"-"`

	// Seconds is filled from RetryAfter when the error is rendered.
	Seconds int64 `json:"retry_after_seconds,omitempty"`
}

// FieldError describes a single failed validation rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

func (e *APIError) Error() string {
	if e.Internal != nil {
		return e.Message + ": " + e.Internal.Error()
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Internal
}

func New(status int, code, message string, err error) *APIError {
	return &APIError{
		Status:   status,
		Code:     code,
		Message:  message,
		Internal: err,
	}
}

func BadRequest(message string, err error) *APIError {
	return New(http.StatusBadRequest, "bad_request", message, err)
}

func Unauthorized(message string, err error) *APIError {
	return New(http.StatusUnauthorized, "unauthorized", message, err)
}

func Forbidden(message string, err error) *APIError {
	return New(http.StatusForbidden, "forbidden", message, err)
}

func NotFound(message string, err error) *APIError {
	return New(http.StatusNotFound, "not_found", message, err)
}

func Conflict(message string, err error) *APIError {
	return New(http.StatusConflict, "conflict", message, err)
}

func UnprocessableEntity(message string, err error) *APIError {
	return New(http.StatusUnprocessableEntity, "unprocessable_entity", message, err)
}

func Internal(err error) *APIError {
	return New(http.StatusInternalServerError, "internal", "Internal server error", err)
}

// Upstream wraps a failure of an external collaborator (file storage, ...).
func Upstream(message string, err error) *APIError {
	return New(http.StatusBadGateway, "upstream", message, err)
}

// NewValidationError converts binding errors into a 422 with one entry per
// failed field.
func NewValidationError(err error) *APIError {
	apiErr := UnprocessableEntity("Validation failed", err)

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			apiErr.Fields = append(apiErr.Fields, FieldError{
				Field: fe.Field(),
				Rule:  fe.Tag(),
			})
		}
	}
	return apiErr
}

const (
	CodeInvalidState     = "invalid_state"
	CodeDuplicateRequest = "duplicate_request"
	CodeThrottled        = "throttled"
	CodeVersionConflict  = "version_conflict"
)

// InvalidState rejects an operation the current state does not permit.
func InvalidState(message string) *APIError {
	return New(http.StatusConflict, CodeInvalidState, message, nil)
}

// DuplicateRequest rejects a second unlock request while one is pending.
func DuplicateRequest(message string) *APIError {
	return New(http.StatusConflict, CodeDuplicateRequest, message, nil)
}

// Throttled rejects an upload inside the re-submission window.
func Throttled(retryAfter time.Duration) *APIError {
	if retryAfter < 0 {
		retryAfter = 0
	}
	e := New(
		http.StatusTooManyRequests,
		CodeThrottled,
		fmt.Sprintf("Document was changed recently, try again in %s or ask for an unlock", humanDuration(retryAfter)),
		nil,
	)
	e.RetryAfter = retryAfter
	return e
}

// VersionConflict reports a lost optimistic-lock race.
func VersionConflict(expected, actual uint64) *APIError {
	return New(
		http.StatusConflict,
		CodeVersionConflict,
		fmt.Sprintf("Document changed meanwhile (expected version %d, found %d)", expected, actual),
		nil,
	)
}

func hasCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

func IsInvalidState(err error) bool     { return hasCode(err, CodeInvalidState) }
func IsDuplicateRequest(err error) bool { return hasCode(err, CodeDuplicateRequest) }
func IsThrottled(err error) bool        { return hasCode(err, CodeThrottled) }
func IsVersionConflict(err error) bool  { return hasCode(err, CodeVersionConflict) }

// RetryAfterSeconds rounds up so clients never retry too early.
func RetryAfterSeconds(d time.Duration) int64 {
	return int64(math.Ceil(d.Seconds()))
}

func humanDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh%02dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	case m > 0:
		return fmt.Sprintf("%dm", m)
	}
	return "less than a minute"
}
