// Package apperr defines the coded error types shared by the import pipeline
// and its HTTP/MCP surfaces.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and status mapping.
type Kind string

const (
	KindValidation Kind = "validation"
	KindLLMService Kind = "llm_service"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindInternal   Kind = "internal"
)

// Error codes returned to API clients.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeLLMService        = "LLM_SERVICE_ERROR"
	CodeLLMTimeout        = "LLM_TIMEOUT"
	CodeImportLogNotFound = "IMPORT_LOG_NOT_FOUND"
	CodeImportLogUsed     = "IMPORT_LOG_ALREADY_USED"
	CodePlanNotFound      = "PLAN_NOT_FOUND"
	CodeExerciseNotFound  = "EXERCISE_NOT_FOUND"
	CodeInternal          = "INTERNAL_ERROR"
)

// Error is a classified error carrying an API code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error

	// Timeout marks an LLMService error caused by the completion deadline.
	Timeout bool

	// Details carries structured context, e.g. the unknown exercise ids.
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Validation creates a caller-input error.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// LLMService wraps a failure of the text-completion capability.
func LLMService(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindLLMService, Code: CodeLLMService, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// LLMTimeout wraps a completion call that exceeded its deadline.
func LLMTimeout(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindLLMService, Code: CodeLLMTimeout, Message: fmt.Sprintf(format, args...), Cause: cause, Timeout: true}
}

// NotFound creates a missing-resource error with the given code.
func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

// Conflict creates a state-conflict error with the given code.
func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

// WithDetail returns a copy of e with key set in Details.
func (e *Error) WithDetail(key string, value any) *Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	cp := *e
	cp.Details = details
	return &cp
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf returns the Kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// CodeOf returns the API code for err.
func CodeOf(err error) string {
	if ae, ok := As(err); ok {
		return ae.Code
	}
	return CodeInternal
}
