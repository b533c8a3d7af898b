// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed error handling with rich context for Flakewatch.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies Flakewatch errors for monitoring and exit-code mapping.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeConfig indicates invalid configuration. Fatal at construction.
	CodeConfig ErrorCode = "CONFIG_ERROR"

	// CodeValidation indicates a malformed input record or invalid embedding.
	CodeValidation ErrorCode = "VALIDATION_ERROR"

	// CodeProvider indicates an embedding service failure.
	CodeProvider ErrorCode = "PROVIDER_ERROR"

	// CodeStorage indicates a store collaborator failure on fetch or save.
	CodeStorage ErrorCode = "STORAGE_ERROR"

	// CodeCancelled indicates externally requested termination.
	CodeCancelled ErrorCode = "CANCELLED"
)

// FlakewatchError is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type FlakewatchError struct {
	Code       ErrorCode
	Message    string
	Err        error
	Context    map[string]interface{}
	Attributes map[string]string
}

// Error implements the error interface.
func (e *FlakewatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *FlakewatchError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *FlakewatchError) MarshalJSON() ([]byte, error) {
	type Alias FlakewatchError
	return json.Marshal(&struct {
		Message string `json:"message"`
		Code    string `json:"code"`
		Err     string `json:"error,omitempty"`
		*Alias
	}{
		Message: e.Error(),
		Code:    string(e.Code),
		Err:     fmt.Sprintf("%v", e.Err),
		Alias:   (*Alias)(e),
	})
}

// New creates a new FlakewatchError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *FlakewatchError {
	return &FlakewatchError{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		Attributes: make(map[string]string),
	}
}

// Newf creates a new FlakewatchError with a formatted message and no cause.
func Newf(code ErrorCode, format string, args ...interface{}) *FlakewatchError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *FlakewatchError) WithContext(key string, value interface{}) *FlakewatchError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithAttribute adds a string attribute for OTEL traces.
// Returns the error for method chaining.
func (e *FlakewatchError) WithAttribute(key, value string) *FlakewatchError {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
	return e
}

// CodeOf extracts the ErrorCode from err, walking the wrap chain.
// Unknown errors map to CodeInternal; a nil error maps to the empty code.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var fe *FlakewatchError
	if stderrors.As(err, &fe) {
		return fe.Code
	}
	return CodeInternal
}

// AsFlakewatchError attempts to convert an error to a FlakewatchError.
// Returns the error as FlakewatchError if it is one, or wraps it otherwise.
func AsFlakewatchError(err error) *FlakewatchError {
	if err == nil {
		return nil
	}
	var fe *FlakewatchError
	if stderrors.As(err, &fe) {
		return fe
	}
	return New(CodeInternal, "wrapped error", err)
}
