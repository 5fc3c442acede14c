// Package cas keeps tagged outputs in a content-addressed directory.
// Blobs are stored by SHA-256; a BLAKE3 pointer file maps the second hash
// to the first, so a manifest can reference outputs by either.
package cas

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// ErrBlobNotFound is returned when no blob matches a hash.
var ErrBlobNotFound = errors.New("blob not found")

// ErrInvalidHash is returned for a hash that is not 64 lowercase hex digits.
var ErrInvalidHash = errors.New("invalid hash format")

var hashPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Store is a content-addressed blob directory:
//
//	<root>/blobs/sha256/<ab>/<sha256>
//	<root>/blobs/blake3/<ab>/<blake3>.json
type Store struct {
	root string
}

// NewStore opens the store at root, creating it if needed.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, "blobs", "sha256"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the store directory.
func (s *Store) Root() string {
	return s.root
}

// Put stores data and returns its digest. Storing the same bytes twice is a
// no-op.
func (s *Store) Put(data []byte) (Digest, error) {
	d := Sum(data)
	if err := writeOnce(s.blobPath(d.SHA256), data); err != nil {
		return Digest{}, fmt.Errorf("failed to store blob: %w", err)
	}
	pointer, err := json.Marshal(struct {
		SHA256 string `json:"sha256"`
	}{d.SHA256})
	if err != nil {
		return Digest{}, err
	}
	if err := writeOnce(s.pointerPath(d.BLAKE3), pointer); err != nil {
		return Digest{}, fmt.Errorf("failed to store BLAKE3 pointer: %w", err)
	}
	return d, nil
}

// Get returns the blob with the given SHA-256 hash.
func (s *Store) Get(sha string) ([]byte, error) {
	if !hashPattern.MatchString(sha) {
		return nil, ErrInvalidHash
	}
	data, err := os.ReadFile(s.blobPath(sha))
	if os.IsNotExist(err) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

// Has reports whether a blob with the given SHA-256 hash exists.
func (s *Store) Has(sha string) bool {
	if !hashPattern.MatchString(sha) {
		return false
	}
	_, err := os.Stat(s.blobPath(sha))
	return err == nil
}

// Resolve maps a BLAKE3 hash to the SHA-256 hash of the same blob.
func (s *Store) Resolve(b3 string) (string, error) {
	if !hashPattern.MatchString(b3) {
		return "", ErrInvalidHash
	}
	data, err := os.ReadFile(s.pointerPath(b3))
	if os.IsNotExist(err) {
		return "", ErrBlobNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read pointer: %w", err)
	}
	var pointer struct {
		SHA256 string `json:"sha256"`
	}
	if err := json.Unmarshal(data, &pointer); err != nil {
		return "", fmt.Errorf("failed to parse pointer: %w", err)
	}
	return pointer.SHA256, nil
}

func (s *Store) blobPath(sha string) string {
	return filepath.Join(s.root, "blobs", "sha256", sha[:2], sha)
}

func (s *Store) pointerPath(b3 string) string {
	return filepath.Join(s.root, "blobs", "blake3", b3[:2], b3+".json")
}

// writeOnce writes data to path through a temp file and rename, unless path
// already exists.
func writeOnce(path string, data []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
