package loader

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/standoff/core/errors"
	"github.com/FocuswithJustin/standoff/internal/validation"
)

const sample = `<TEI xmlns="http://www.tei-c.org/ns/1.0"><text><body><div1 n="1"><p>One. Two.</p></div1></body></text></TEI>`

func xzBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func gzBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func tarBytes(t *testing.T, files map[string][]byte, order []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, name := range order {
		data := files[name]
		if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(data)), Typeflag: tar.TypeReg}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func write(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestOpenFormats(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		data []byte
	}{
		{"plain.xml", []byte(sample)},
		{"packed.xml.xz", xzBytes(t, []byte(sample))},
		{"zipped.xml.gz", gzBytes(t, []byte(sample))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srcs, err := Open(write(t, dir, tt.name, tt.data))
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if len(srcs) != 1 || string(srcs[0].Data) != sample {
				t.Fatalf("Open() = %+v", srcs)
			}
			if _, err := srcs[0].Parse(); err != nil {
				t.Errorf("Parse() error = %v", err)
			}
		})
	}
}

func TestOpenBundle(t *testing.T) {
	dir := t.TempDir()
	files := map[string][]byte{
		"corpus/genesis.xml":   []byte(sample),
		"corpus/README.txt":    []byte("not xml"),
		"corpus/exodus.xml.xz": xzBytes(t, []byte(sample)),
	}
	order := []string{"corpus/genesis.xml", "corpus/README.txt", "corpus/exodus.xml.xz"}

	for _, name := range []string{"bundle.tar.xz", "bundle.tar.gz"} {
		t.Run(name, func(t *testing.T) {
			raw := tarBytes(t, files, order)
			var data []byte
			if name == "bundle.tar.xz" {
				data = xzBytes(t, raw)
			} else {
				data = gzBytes(t, raw)
			}
			p := write(t, dir, name, data)

			srcs, err := Open(p)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			var bases, names []string
			for _, s := range srcs {
				bases = append(bases, s.Base)
				names = append(names, s.Name)
			}
			if diff := cmp.Diff([]string{"genesis", "exodus"}, bases); diff != "" {
				t.Errorf("bases mismatch (-want +got):\n%s", diff)
			}
			if names[0] != p+"!corpus/genesis.xml" {
				t.Errorf("Name = %q", names[0])
			}
		})
	}
}

func TestOpenEmptyBundle(t *testing.T) {
	dir := t.TempDir()
	raw := tarBytes(t, map[string][]byte{"a.txt": []byte("x")}, []string{"a.txt"})
	p := write(t, dir, "empty.tar.gz", gzBytes(t, raw))

	if _, err := Open(p); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Open() error = %v, want ErrNotFound", err)
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "b.xml", []byte(sample))
	write(t, dir, "a.xml.xz", xzBytes(t, []byte(sample)))
	write(t, dir, "notes.md", []byte("# notes"))
	write(t, dir, "sub/c.xml", []byte(sample))

	srcs, err := Load([]string{dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	var bases []string
	for _, s := range srcs {
		bases = append(bases, s.Base)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, bases); diff != "" {
		t.Errorf("bases mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load([]string{filepath.Join(t.TempDir(), "missing.xml")}); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want ErrNotExist", err)
	}

	dir := t.TempDir()
	p := write(t, dir, "broken.xml.xz", []byte("not xz at all"))
	if _, err := Open(p); err == nil {
		t.Error("Open() of a corrupt xz file succeeded")
	}
}

func TestInputValidation(t *testing.T) {
	dir := t.TempDir()

	t.Run("mislabeled compression", func(t *testing.T) {
		p := write(t, dir, "plain.xml.gz", []byte(sample))
		_, err := Open(p)
		if !errors.Is(err, validation.ErrTypeMismatch) {
			t.Errorf("Open() error = %v, want ErrTypeMismatch", err)
		}
	})

	t.Run("member escapes the bundle", func(t *testing.T) {
		raw := tarBytes(t, map[string][]byte{"../evil.xml": []byte(sample)}, []string{"../evil.xml"})
		p := write(t, dir, "evil.tar.gz", gzBytes(t, raw))
		_, err := Open(p)
		if !errors.Is(err, validation.ErrPathTraversal) {
			t.Errorf("Open() error = %v, want ErrPathTraversal", err)
		}
	})

	t.Run("member base is sanitized", func(t *testing.T) {
		raw := tarBytes(t, map[string][]byte{"texts/-genesis.xml": []byte(sample)}, []string{"texts/-genesis.xml"})
		p := write(t, dir, "dash.tar.xz", xzBytes(t, raw))
		srcs, err := Open(p)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if srcs[0].Base != "genesis" {
			t.Errorf("Base = %q, want genesis", srcs[0].Base)
		}
	})

	t.Run("control character in path", func(t *testing.T) {
		_, err := Load([]string{"bad\x1bname.xml"})
		var verr *errors.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("Load() error = %v, want ValidationError", err)
		}
	})
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not markup", "plain words"},
		{"unclosed", "<a><b></a>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Source{Name: "in.xml", Data: []byte(tt.data)}.Parse()
			var perr *errors.ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("Parse() error = %v, want ParseError", err)
			}
			if perr.Path != "in.xml" {
				t.Errorf("ParseError.Path = %q, want in.xml", perr.Path)
			}
		})
	}
}

func TestBaseName(t *testing.T) {
	tests := map[string]string{
		"genesis.xml":       "genesis",
		"dir/exodus.xml.xz": "exodus",
		"LEV.XML.GZ":        "LEV",
		"corpus/numbers":    "numbers",
	}
	for in, want := range tests {
		if got := BaseName(in); got != want {
			t.Errorf("BaseName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSniff(t *testing.T) {
	if !Sniff([]byte("\xef\xbb\xbf  <?xml version=\"1.0\"?><a/>")) {
		t.Error("Sniff() rejected XML with a BOM")
	}
	if Sniff([]byte("{}")) {
		t.Error("Sniff() accepted JSON")
	}
}
