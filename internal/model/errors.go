package model

import "fmt"

// ParseError represents parsing errors with schema context
type ParseError struct {
	Schema  Schema
	Field   string
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Schema, e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Schema, e.Field, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// NewParseError creates a new parse error
func NewParseError(schema Schema, field, message string, cause error) *ParseError {
	return &ParseError{
		Schema:  schema,
		Field:   field,
		Message: message,
		Cause:   cause,
	}
}

// ValidationError represents validation failures
type ValidationError struct {
	Field   string
	Value   interface{}
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation failed on %s: %s (value=%v, rule=%s)", e.Field, e.Message, e.Value, e.Rule)
	}
	return fmt.Sprintf("validation failed on %s: %s (rule=%s)", e.Field, e.Message, e.Rule)
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value interface{}, rule, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Rule:    rule,
		Message: message,
	}
}

// MissingScheduleError is reported when a month has no tax brackets
type MissingScheduleError struct {
	Month int
}

func (e *MissingScheduleError) Error() string {
	return fmt.Sprintf("no ISR brackets for month %d, tax set to zero", e.Month)
}

// InputNotFoundError means an input root does not exist or cannot be read
type InputNotFoundError struct {
	Path  string
	Cause error
}

func (e *InputNotFoundError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("input not found: %s (%v)", e.Path, e.Cause)
	}
	return fmt.Sprintf("input not found: %s", e.Path)
}

func (e *InputNotFoundError) Unwrap() error {
	return e.Cause
}

// OutputWriteError means the report could not be persisted
type OutputWriteError struct {
	Path  string
	Cause error
}

func (e *OutputWriteError) Error() string {
	return fmt.Sprintf("cannot write output %s: %v", e.Path, e.Cause)
}

func (e *OutputWriteError) Unwrap() error {
	return e.Cause
}

// MissingFieldError means a spreadsheet lacks a required column
type MissingFieldError struct {
	Sheet string
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("sheet %q: required column %q not found", e.Sheet, e.Field)
}
