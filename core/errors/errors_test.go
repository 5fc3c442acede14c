package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestMalformedTreeError(t *testing.T) {
	tests := []struct {
		name     string
		err      *MalformedTreeError
		wantMsg  string
		wantBase error
	}{
		{
			name:     "with node",
			err:      &MalformedTreeError{Node: "div1", Reason: "child parent link is broken"},
			wantMsg:  "malformed tree at <div1>: child parent link is broken",
			wantBase: ErrMalformedTree,
		},
		{
			name:     "without node",
			err:      &MalformedTreeError{Reason: "no root element"},
			wantMsg:  "malformed tree: no root element",
			wantBase: ErrMalformedTree,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if got := tt.err.Unwrap(); !errors.Is(got, tt.wantBase) {
				t.Errorf("Unwrap() = %v, want %v", got, tt.wantBase)
			}
		})
	}

	t.Run("with underlying error", func(t *testing.T) {
		underlyingErr := fmt.Errorf("xml: unexpected EOF")
		err := &MalformedTreeError{Reason: "truncated", Err: underlyingErr}
		if got := err.Unwrap(); got != underlyingErr {
			t.Errorf("Unwrap() = %v, want %v", got, underlyingErr)
		}
	})
}

func TestOutOfRangeError(t *testing.T) {
	err := NewOutOfRange("offset", 12, 0, 10)
	if got, want := err.Error(), "offset 12 out of range [0, 10)"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrOutOfRange) {
		t.Errorf("errors.Is(%v, ErrOutOfRange) = false", err)
	}
}

func TestUnbalancedSpanError(t *testing.T) {
	tests := []struct {
		name    string
		err     *UnbalancedSpanError
		wantMsg string
	}{
		{
			name:    "with reason",
			err:     NewUnbalancedSpan(3, 9, "begin inside <a>, end inside <b>"),
			wantMsg: "unbalanced span [3, 9): begin inside <a>, end inside <b>",
		},
		{
			name:    "without reason",
			err:     NewUnbalancedSpan(0, 1, ""),
			wantMsg: "unbalanced span [0, 1)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, ErrUnbalancedSpan) {
				t.Errorf("errors.Is(%v, ErrUnbalancedSpan) = false", tt.err)
			}
			if errors.Is(tt.err, ErrMalformedTree) {
				t.Errorf("unbalanced span must not match ErrMalformedTree")
			}
		})
	}
}

func TestDuplicateIdentifierError(t *testing.T) {
	err := NewDuplicateIdentifier("s1")
	if got, want := err.Error(), `duplicate identifier: "s1"`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	wrapped := fmt.Errorf("sentence 1: %w", err)
	var dup *DuplicateIdentifierError
	if !As(wrapped, &dup) {
		t.Fatal("As() failed to match DuplicateIdentifierError through wrapping")
	}
	if dup.ID != "s1" {
		t.Errorf("ID = %q, want %q", dup.ID, "s1")
	}
	if !Is(wrapped, ErrDuplicateIdentifier) {
		t.Error("Is() failed to match ErrDuplicateIdentifier")
	}
}

func TestNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      *NotFoundError
		wantMsg  string
		wantBase error
	}{
		{
			name:     "with ID",
			err:      &NotFoundError{Resource: "namespace prefix", ID: "tei"},
			wantMsg:  "namespace prefix not found: tei",
			wantBase: ErrNotFound,
		},
		{
			name:     "without ID",
			err:      &NotFoundError{Resource: "root element"},
			wantMsg:  "root element not found",
			wantBase: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if got := tt.err.Unwrap(); !errors.Is(got, tt.wantBase) {
				t.Errorf("Unwrap() = %v, want %v", got, tt.wantBase)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name     string
		err      *ValidationError
		wantMsg  string
		wantBase error
	}{
		{
			name:     "with field",
			err:      &ValidationError{Field: "sentence.tag", Message: "must not be empty"},
			wantMsg:  "validation failed for sentence.tag: must not be empty",
			wantBase: ErrInvalidInput,
		},
		{
			name:     "without field",
			err:      &ValidationError{Message: "invalid format"},
			wantMsg:  "validation failed: invalid format",
			wantBase: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if got := tt.err.Unwrap(); !errors.Is(got, tt.wantBase) {
				t.Errorf("Unwrap() = %v, want %v", got, tt.wantBase)
			}
		})
	}
}

func TestIOError(t *testing.T) {
	baseErr := fmt.Errorf("permission denied")
	tests := []struct {
		name    string
		err     *IOError
		wantMsg string
	}{
		{
			name:    "with path",
			err:     &IOError{Operation: "read", Path: "/test/file.xml", Err: baseErr},
			wantMsg: "failed to read /test/file.xml: permission denied",
		},
		{
			name:    "without path",
			err:     &IOError{Operation: "write", Err: baseErr},
			wantMsg: "failed to write: permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if got := tt.err.Unwrap(); !errors.Is(got, baseErr) {
				t.Errorf("Unwrap() = %v, want %v", got, baseErr)
			}
		})
	}
}

func TestParseError(t *testing.T) {
	tests := []struct {
		name     string
		err      *ParseError
		wantMsg  string
		wantBase error
	}{
		{
			name:     "with path",
			err:      &ParseError{Format: "TOML", Path: "standoff.toml", Message: "unexpected EOF"},
			wantMsg:  "failed to parse TOML at standoff.toml: unexpected EOF",
			wantBase: ErrInvalidInput,
		},
		{
			name:     "without path",
			err:      &ParseError{Format: "XML", Message: "malformed tag"},
			wantMsg:  "failed to parse XML: malformed tag",
			wantBase: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if got := tt.err.Unwrap(); !errors.Is(got, tt.wantBase) {
				t.Errorf("Unwrap() = %v, want %v", got, tt.wantBase)
			}
		})
	}
}

func TestUnsupportedError(t *testing.T) {
	err := &UnsupportedError{Feature: "segmenter", Reason: "spacy is not available"}
	if got, want := err.Error(), "unsupported segmenter: spacy is not available"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrUnsupported) {
		t.Error("UnsupportedError does not unwrap to ErrUnsupported")
	}
}

func TestWrap(t *testing.T) {
	t.Run("wraps error", func(t *testing.T) {
		baseErr := NewUnbalancedSpan(1, 2, "")
		wrapped := Wrap(baseErr, "sentence 4")
		if !errors.Is(wrapped, ErrUnbalancedSpan) {
			t.Errorf("Wrap() error does not unwrap to ErrUnbalancedSpan")
		}
		wantMsg := "sentence 4: unbalanced span [1, 2)"
		if wrapped.Error() != wantMsg {
			t.Errorf("Wrap() = %q, want %q", wrapped.Error(), wantMsg)
		}
	})

	t.Run("nil error returns nil", func(t *testing.T) {
		if got := Wrap(nil, "context"); got != nil {
			t.Errorf("Wrap(nil) = %v, want nil", got)
		}
		if got := Wrapf(nil, "context %d", 1); got != nil {
			t.Errorf("Wrapf(nil) = %v, want nil", got)
		}
	})
}
