package response

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"visits-service/internal/schedule"
)

type Response struct {
	ResponseError `json:"error,omitzero"`
	Warning       string `json:"warning,omitempty"`
}

type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error Codes
type ErrCode string

var (
	FAILED_REQUEST   ErrCode = "REQUEST_FAILED"
	BAD_REQUEST      ErrCode = "FAILED_TO_DECODE"
	VALIDATION_ERROR ErrCode = "VALIDATION_ERROR"
	NOT_FOUND        ErrCode = "NOT_FOUND"
	LOCKED           ErrCode = "LOCKED"
	CONFLICT         ErrCode = "CONFLICT"
	OVERLAP          ErrCode = "OVERLAP"
	FORBIDDEN        ErrCode = "FORBIDDEN"
	SERVICE_ERROR    ErrCode = "SERVICE_ERROR"
)

var (
	ErrBadRequest = errors.New("bad request")
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("resource not found")
	ErrLocked     = errors.New("resource is locked")
	ErrConflict   = errors.New("conflict")
	ErrOverlap    = errors.New("time window overlaps an existing appointment")
	ErrForbidden  = errors.New("not permitted")
	ErrService    = errors.New("storage failure")
)

// OverlapError names the conflicting booking so staff-facing UIs can
// show who holds the window. Public handlers must not leak it and
// reply with a generic "not available" instead.
type OverlapError struct {
	VisitorName string
	Date        schedule.Date
	Window      schedule.Interval
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("overlaps appointment of %s on %s at %s", e.VisitorName, e.Date, e.Window)
}

func (e *OverlapError) Is(target error) bool {
	return target == ErrOverlap
}

// FieldError carries a field-scoped validation message verbatim to the
// caller.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *FieldError) Is(target error) bool {
	return target == ErrValidation
}

func Error(code, msg string) Response {
	return Response{
		ResponseError: ResponseError{
			Code:    code,
			Message: msg,
		},
	}
}

func ValidationError(errs validator.ValidationErrors) Response {
	var errMsg []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errMsg = append(errMsg, fmt.Sprintf("Field '%s' is required", err.Field()))
		case "email":
			errMsg = append(errMsg, fmt.Sprintf("Field '%s' must be a valid email", err.Field()))
		case "min":
			errMsg = append(errMsg, fmt.Sprintf("Field '%s' must be at least %s characters long", err.Field(), err.Param()))
		case "max":
			errMsg = append(errMsg, fmt.Sprintf("Field '%s' must be at most %s characters long", err.Field(), err.Param()))
		case "oneof":
			errMsg = append(errMsg, fmt.Sprintf("Field '%s' must be one of: %s", err.Field(), err.Param()))
		default:
			errMsg = append(errMsg, fmt.Sprintf("Field '%s' is invalid", err.Field()))
		}
	}

	return Response{
		ResponseError: ResponseError{
			Code:    string(VALIDATION_ERROR),
			Message: strings.Join(errMsg, ", "),
		},
	}
}
