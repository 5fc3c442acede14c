// Package errors provides standardized error types and helpers for the standoff codebase.
//
// The standoff core reports four kinds of failure:
//
//   - MalformedTreeError: the input tree cannot be walked (fatal).
//   - OutOfRangeError: a Position or plain-text offset is out of bounds (caller bug).
//   - UnbalancedSpanError: a span cannot be a single well-nested element (recoverable).
//   - DuplicateIdentifierError: an identifier was reused (fatal).
//
// Every typed error unwraps to a sentinel so callers can use errors.Is.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupported indicates an unsupported operation or format
	ErrUnsupported = errors.New("unsupported")
	// ErrMalformedTree indicates a document tree that cannot be traversed
	ErrMalformedTree = errors.New("malformed tree")
	// ErrOutOfRange indicates a position or offset outside its valid range
	ErrOutOfRange = errors.New("out of range")
	// ErrUnbalancedSpan indicates a span that crosses an element boundary asymmetrically
	ErrUnbalancedSpan = errors.New("unbalanced span")
	// ErrDuplicateIdentifier indicates an identifier that is already in use
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
)

// MalformedTreeError reports a tree that cannot be walked into a standoff table.
type MalformedTreeError struct {
	Node   string // Name of the offending node, if known
	Reason string // What is wrong with the tree
	Err    error  // Underlying error, if any
}

func (e *MalformedTreeError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("malformed tree at <%s>: %s", e.Node, e.Reason)
	}
	return fmt.Sprintf("malformed tree: %s", e.Reason)
}

func (e *MalformedTreeError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrMalformedTree
}

// OutOfRangeError reports a Position or offset outside [Min, Max).
type OutOfRangeError struct {
	What  string // "position", "offset", "span"
	Value int
	Min   int
	Max   int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s %d out of range [%d, %d)", e.What, e.Value, e.Min, e.Max)
}

func (e *OutOfRangeError) Unwrap() error {
	return ErrOutOfRange
}

// UnbalancedSpanError reports a span that cannot be wrapped by a single
// element without breaking well-nestedness.
type UnbalancedSpanError struct {
	Begin  int
	End    int
	Reason string
}

func (e *UnbalancedSpanError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unbalanced span [%d, %d): %s", e.Begin, e.End, e.Reason)
	}
	return fmt.Sprintf("unbalanced span [%d, %d)", e.Begin, e.End)
}

func (e *UnbalancedSpanError) Unwrap() error {
	return ErrUnbalancedSpan
}

// DuplicateIdentifierError reports an identifier that is already present in the tree.
type DuplicateIdentifierError struct {
	ID string
}

func (e *DuplicateIdentifierError) Error() string {
	return fmt.Sprintf("duplicate identifier: %q", e.ID)
}

func (e *DuplicateIdentifierError) Unwrap() error {
	return ErrDuplicateIdentifier
}

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "namespace prefix", "segmenter")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation (may be redacted)
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ParseError represents a parsing or deserialization error
type ParseError struct {
	Format  string // Format being parsed (e.g., "XML", "TOML", "filter")
	Path    string // File path, if applicable
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// UnsupportedError represents an unsupported feature or format
type UnsupportedError struct {
	Feature string // Feature or format that is unsupported
	Reason  string // Why it's not supported
	Err     error  // Underlying error, if any
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnsupported
}

// Helper functions for creating common errors

// NewMalformedTree creates a MalformedTreeError
func NewMalformedTree(node, reason string) *MalformedTreeError {
	return &MalformedTreeError{
		Node:   node,
		Reason: reason,
	}
}

// NewOutOfRange creates an OutOfRangeError for value outside [min, max).
func NewOutOfRange(what string, value, min, max int) *OutOfRangeError {
	return &OutOfRangeError{
		What:  what,
		Value: value,
		Min:   min,
		Max:   max,
	}
}

// NewUnbalancedSpan creates an UnbalancedSpanError
func NewUnbalancedSpan(begin, end int, reason string) *UnbalancedSpanError {
	return &UnbalancedSpanError{
		Begin:  begin,
		End:    end,
		Reason: reason,
	}
}

// NewDuplicateIdentifier creates a DuplicateIdentifierError
func NewDuplicateIdentifier(id string) *DuplicateIdentifierError {
	return &DuplicateIdentifierError{ID: id}
}

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewParse creates a ParseError
func NewParse(format, path, message string) *ParseError {
	return &ParseError{
		Format:  format,
		Path:    path,
		Message: message,
	}
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
