// Package validation guards input handling against path tricks, mislabeled
// compression and oversized documents.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode"
)

// Limits applied to every input.
const (
	// MaxFileSize caps a decompressed document (256 MB).
	MaxFileSize = 256 << 20
	// MaxFilenameLength is the maximum allowed filename length.
	MaxFilenameLength = 255
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

// Common validation errors.
var (
	ErrPathTraversal    = errors.New("path traversal detected")
	ErrInvalidFilename  = errors.New("invalid filename")
	ErrPathTooLong      = errors.New("path too long")
	ErrFilenameTooLong  = errors.New("filename too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrFileTooLarge     = errors.New("file too large")
	ErrTypeMismatch     = errors.New("file type mismatch")
)

// ValidatePath checks an input path for length limits and characters that
// never belong in a file name.
func ValidatePath(p string) error {
	if p == "" {
		return ErrEmptyPath
	}
	if len(p) > MaxPathLength {
		return ErrPathTooLong
	}
	for _, r := range p {
		if r == 0 {
			return fmt.Errorf("%w: null byte not allowed", ErrInvalidCharacter)
		}
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	return nil
}

// ValidateEntryName checks the name of a bundle member. Members must stay
// inside the bundle: no absolute names and no ".." components.
func ValidateEntryName(name string) error {
	if err := ValidatePath(name); err != nil {
		return err
	}
	clean := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if path.IsAbs(clean) {
		return fmt.Errorf("%w: absolute member name %q", ErrPathTraversal, name)
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("%w: member name %q", ErrPathTraversal, name)
	}
	return nil
}

// ValidateFilename checks that filename is a single safe path element.
func ValidateFilename(filename string) error {
	if filename == "" {
		return ErrInvalidFilename
	}
	if len(filename) > MaxFilenameLength {
		return ErrFilenameTooLong
	}
	if filename == "." || filename == ".." {
		return fmt.Errorf("%w: reserved name", ErrInvalidFilename)
	}
	if strings.ContainsAny(filename, "/\\") {
		return fmt.Errorf("%w: path separator not allowed", ErrInvalidFilename)
	}
	for _, r := range filename {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidFilename)
		}
	}
	if strings.HasPrefix(filename, "-") {
		return fmt.Errorf("%w: filename cannot start with hyphen", ErrInvalidFilename)
	}
	return nil
}

// SanitizeFilename turns an arbitrary name into one ValidateFilename
// accepts, or fails if nothing usable is left.
func SanitizeFilename(filename string) (string, error) {
	filename = strings.TrimSpace(filename)
	filename = strings.NewReplacer("/", "_", "\\", "_").Replace(filename)

	var cleaned strings.Builder
	for _, r := range filename {
		if !unicode.IsControl(r) {
			cleaned.WriteRune(r)
		}
	}
	filename = strings.TrimLeft(cleaned.String(), "-")
	if len(filename) > MaxFilenameLength {
		filename = filename[:MaxFilenameLength]
	}

	if err := ValidateFilename(filename); err != nil {
		return "", err
	}
	return filename, nil
}

// ReadLimited reads r to the end, failing with ErrFileTooLarge once more
// than limit bytes arrive.
func ReadLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, limit)
	}
	return data, nil
}

// FileType is a content type recognized from leading bytes.
type FileType string

const (
	FileTypeXZ      FileType = "xz"
	FileTypeGzip    FileType = "gzip"
	FileTypeText    FileType = "text"
	FileTypeUnknown FileType = "unknown"
)

// HeaderSize is the number of leading bytes DetectFileType looks at.
const HeaderSize = 512

var magicBytes = []struct {
	fileType FileType
	magic    []byte
}{
	{FileTypeXZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
	{FileTypeGzip, []byte{0x1f, 0x8b}},
}

// DetectFileType recognizes compressed streams by magic bytes and falls back
// to a text heuristic.
func DetectFileType(head []byte) FileType {
	for _, sig := range magicBytes {
		if bytes.HasPrefix(head, sig.magic) {
			return sig.fileType
		}
	}
	if isLikelyText(head) {
		return FileTypeText
	}
	return FileTypeUnknown
}

// CheckFileType verifies that head matches the type the file name claims.
func CheckFileType(head []byte, want FileType) error {
	if got := DetectFileType(head); got != want {
		return fmt.Errorf("%w: name suggests %s but content is %s", ErrTypeMismatch, want, got)
	}
	return nil
}

// isLikelyText reports whether buf looks like text: no NUL bytes and at
// most 5% control characters.
func isLikelyText(buf []byte) bool {
	if len(buf) == 0 || bytes.IndexByte(buf, 0) != -1 {
		return false
	}
	printable, control := 0, 0
	for _, b := range buf {
		switch {
		case b == '\t' || b == '\n' || b == '\r' || b >= 0x20 && b != 0x7f:
			printable++
		default:
			control++
		}
	}
	return float64(control) <= 0.05*float64(printable+control)
}
