package validation

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"simple", "books/genesis.xml", nil},
		{"relative parent", "../corpus/a.xml", nil},
		{"empty", "", ErrEmptyPath},
		{"null byte", "a\x00.xml", ErrInvalidCharacter},
		{"control character", "a\x1b.xml", ErrInvalidCharacter},
		{"too long", strings.Repeat("a", MaxPathLength+1), ErrPathTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidatePath(%q) = %v, want %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestValidateEntryName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr error
	}{
		{"a.xml", nil},
		{"texts/b.xml", nil},
		{"./c.xml", nil},
		{"texts/../d.xml", nil},
		{"../escape.xml", ErrPathTraversal},
		{"texts/../../escape.xml", ErrPathTraversal},
		{`..\escape.xml`, ErrPathTraversal},
		{"/etc/passwd", ErrPathTraversal},
		{"", ErrEmptyPath},
	}
	for _, tt := range tests {
		if err := ValidateEntryName(tt.name); !errors.Is(err, tt.wantErr) {
			t.Errorf("ValidateEntryName(%q) = %v, want %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestValidateFilename(t *testing.T) {
	tests := []struct {
		filename string
		wantErr  error
	}{
		{"genesis", nil},
		{"genesis.v2", nil},
		{"", ErrInvalidFilename},
		{"..", ErrInvalidFilename},
		{"a/b", ErrInvalidFilename},
		{"-rf", ErrInvalidFilename},
		{"tab\there", ErrInvalidFilename},
		{strings.Repeat("x", MaxFilenameLength+1), ErrFilenameTooLong},
	}
	for _, tt := range tests {
		if err := ValidateFilename(tt.filename); !errors.Is(err, tt.wantErr) {
			t.Errorf("ValidateFilename(%q) = %v, want %v", tt.filename, err, tt.wantErr)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"genesis", "genesis", false},
		{"  spaced  ", "spaced", false},
		{"dir/file", "dir_file", false},
		{`dir\file`, "dir_file", false},
		{"--flag", "flag", false},
		{"bell\a", "bell", false},
		{"", "", true},
		{"---", "", true},
		{"..", "", true},
	}
	for _, tt := range tests {
		got, err := SanitizeFilename(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("SanitizeFilename(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long, err := SanitizeFilename(strings.Repeat("y", MaxFilenameLength+10))
	if err != nil || len(long) != MaxFilenameLength {
		t.Errorf("SanitizeFilename(long) = %d bytes, %v", len(long), err)
	}
}

func TestReadLimited(t *testing.T) {
	data, err := ReadLimited(strings.NewReader("12345"), 5)
	if err != nil || string(data) != "12345" {
		t.Errorf("ReadLimited at the limit = %q, %v", data, err)
	}
	if _, err := ReadLimited(strings.NewReader("123456"), 5); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("ReadLimited over the limit error = %v, want ErrFileTooLarge", err)
	}
}

func TestDetectFileType(t *testing.T) {
	tests := []struct {
		name string
		head []byte
		want FileType
	}{
		{"xz", []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00, 0x00}, FileTypeXZ},
		{"gzip", []byte{0x1f, 0x8b, 0x08}, FileTypeGzip},
		{"xml", []byte("<?xml version=\"1.0\"?>\n<TEI/>"), FileTypeText},
		{"utf-8 text", []byte("<r>Ça va.</r>"), FileTypeText},
		{"binary", []byte{0x00, 0x01, 0x02}, FileTypeUnknown},
		{"empty", nil, FileTypeUnknown},
	}
	for _, tt := range tests {
		if got := DetectFileType(tt.head); got != tt.want {
			t.Errorf("%s: DetectFileType() = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestCheckFileType(t *testing.T) {
	if err := CheckFileType([]byte{0x1f, 0x8b}, FileTypeGzip); err != nil {
		t.Errorf("CheckFileType(gzip) = %v", err)
	}
	err := CheckFileType([]byte("<r/>"), FileTypeXZ)
	if !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("CheckFileType(text as xz) = %v, want ErrTypeMismatch", err)
	}
	if !bytes.Contains([]byte(err.Error()), []byte("content is text")) {
		t.Errorf("error %q does not name the detected type", err)
	}
}
