package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// UnknownProjectError is returned when a label is not one of the known projects.
type UnknownProjectError struct {
	Label      string
	Suggestion string // closest known label, if any
}

func NewUnknownProjectError(label, suggestion string) error {
	return &UnknownProjectError{Label: label, Suggestion: suggestion}
}

func (err UnknownProjectError) Error() string {
	if err.Suggestion != "" {
		return fmt.Sprintf("unknown project %q (did you mean %q?)", err.Label, err.Suggestion)
	}
	return fmt.Sprintf("unknown project %q", err.Label)
}

// DataSourceUnavailableError wraps any network, auth or missing-table failure
// of the hosted data source.
type DataSourceUnavailableError struct {
	Key string
	Err error
}

func NewDataSourceUnavailableError(key string, err error) error {
	return &DataSourceUnavailableError{Key: key, Err: err}
}

func (err DataSourceUnavailableError) Error() string {
	if err.Err == nil {
		return fmt.Sprintf("data source unavailable for %q", err.Key)
	}
	return fmt.Sprintf("data source unavailable for %q: %v", err.Key, err.Err)
}

func (err DataSourceUnavailableError) Unwrap() error { return err.Err }

// MalformedRecordError reports a record whose counter fields are missing or non-numeric.
type MalformedRecordError struct {
	Index int // position of the record in its record set
	Field string
	Value interface{}
}

func NewMalformedRecordError(index int, field string, value interface{}) error {
	return &MalformedRecordError{Index: index, Field: field, Value: value}
}

func (err MalformedRecordError) Error() string {
	if err.Value == nil {
		return fmt.Sprintf("record %d: missing field %s", err.Index, err.Field)
	}
	return fmt.Sprintf("record %d: field %s is not numeric (%v)", err.Index, err.Field, err.Value)
}

func IsUnknownProject(err error) bool {
	_, ok := errors.Cause(err).(*UnknownProjectError)
	return ok
}

func IsDataSourceUnavailable(err error) bool {
	_, ok := errors.Cause(err).(*DataSourceUnavailableError)
	return ok
}

func IsMalformedRecord(err error) bool {
	_, ok := errors.Cause(err).(*MalformedRecordError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
