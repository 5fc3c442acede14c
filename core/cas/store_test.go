package cas

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
)

func TestPutGet(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	data := []byte(`<TEI><s xml:id="s1">One.</s></TEI>`)
	d, err := store.Put(data)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	h := sha256.Sum256(data)
	if d.SHA256 != hex.EncodeToString(h[:]) {
		t.Errorf("Put().SHA256 = %s", d.SHA256)
	}
	if d != Sum(data) {
		t.Errorf("Put() = %+v, Sum() = %+v", d, Sum(data))
	}

	got, err := store.Get(d.SHA256)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Get() = %q, want %q", got, data)
	}
	if !store.Has(d.SHA256) {
		t.Error("Has() = false after Put()")
	}

	sha, err := store.Resolve(d.BLAKE3)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if sha != d.SHA256 {
		t.Errorf("Resolve() = %s, want %s", sha, d.SHA256)
	}
}

func TestPutTwice(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	first, err := store.Put([]byte("same"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := store.Put([]byte("same"))
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("digests differ: %+v vs %+v", first, second)
	}
}

func TestLookupErrors(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	missing := Sum([]byte("never stored"))

	tests := []struct {
		name string
		fn   func() error
		want error
	}{
		{"get invalid", func() error { _, err := store.Get("XYZ"); return err }, ErrInvalidHash},
		{"get missing", func() error { _, err := store.Get(missing.SHA256); return err }, ErrBlobNotFound},
		{"resolve invalid", func() error { _, err := store.Resolve("abc"); return err }, ErrInvalidHash},
		{"resolve missing", func() error { _, err := store.Resolve(missing.BLAKE3); return err }, ErrBlobNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
	if store.Has("not-a-hash") {
		t.Error("Has() accepted an invalid hash")
	}
}

func TestSum(t *testing.T) {
	d := Sum(nil)
	if d.SHA256 != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("Sum(nil).SHA256 = %s", d.SHA256)
	}
	if d.BLAKE3 != "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262" {
		t.Errorf("Sum(nil).BLAKE3 = %s", d.BLAKE3)
	}
}
