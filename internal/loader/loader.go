// Package loader reads XML inputs: plain files, single files compressed with
// xz or gzip, tar.xz or tar.gz bundles of XML files, and directories of any
// of these.
package loader

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/gzip"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/standoff/core/errors"
	"github.com/FocuswithJustin/standoff/core/xml"
	"github.com/FocuswithJustin/standoff/internal/validation"
)

// Source is one XML document read from disk.
type Source struct {
	// Name identifies the document: the file path, or "bundle!entry" for a
	// member of a tar bundle.
	Name string
	// Base is the file name without directories or compression suffixes,
	// used to name outputs.
	Base string
	Data []byte
}

// Parse parses the source as XML.
func (s Source) Parse() (*xml.Document, error) {
	if !Sniff(s.Data) {
		return nil, errors.NewParse("XML", s.Name, "input does not start with markup")
	}
	doc, err := xml.Parse(s.Data)
	if err != nil {
		var perr *errors.ParseError
		if errors.As(err, &perr) {
			perr.Path = s.Name
		}
		return nil, err
	}
	return doc, nil
}

type kind int

const (
	kindUnknown kind = iota
	kindXML
	kindXMLXZ
	kindXMLGZ
	kindTarXZ
	kindTarGZ
)

func classify(name string) kind {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return kindTarXZ
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return kindTarGZ
	case strings.HasSuffix(lower, ".xml.xz"):
		return kindXMLXZ
	case strings.HasSuffix(lower, ".xml.gz"):
		return kindXMLGZ
	case strings.HasSuffix(lower, ".xml"):
		return kindXML
	}
	return kindUnknown
}

// BaseName strips directories and the .xml/.xz/.gz suffixes from name.
func BaseName(name string) string {
	base := path.Base(filepath.ToSlash(name))
	for _, suffix := range []string{".xz", ".gz", ".xml"} {
		if strings.HasSuffix(strings.ToLower(base), suffix) {
			base = base[:len(base)-len(suffix)]
		}
	}
	return base
}

// Load expands paths into sources. Directories are walked for supported
// files in lexical order. An explicitly named file with an unsupported
// suffix is read as plain XML.
func Load(paths []string) ([]Source, error) {
	var out []Source
	for _, p := range paths {
		if err := validation.ValidatePath(p); err != nil {
			return nil, &errors.ValidationError{Field: "path", Value: p, Message: err.Error(), Err: err}
		}
		info, err := os.Stat(p)
		if err != nil {
			return nil, errors.NewIO("stat", p, err)
		}
		if !info.IsDir() {
			srcs, err := Open(p)
			if err != nil {
				return nil, err
			}
			out = append(out, srcs...)
			continue
		}

		var files []string
		err = filepath.WalkDir(p, func(name string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && classify(name) != kindUnknown {
				files = append(files, name)
			}
			return nil
		})
		if err != nil {
			return nil, errors.NewIO("walk", p, err)
		}
		sort.Strings(files)
		for _, f := range files {
			srcs, err := Open(f)
			if err != nil {
				return nil, err
			}
			out = append(out, srcs...)
		}
	}
	return out, nil
}

// Open reads one file. Bundles yield one source per .xml member.
func Open(name string) ([]Source, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.NewIO("open", name, err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, validation.HeaderSize)
	if err := checkCompression(name, r); err != nil {
		return nil, err
	}

	switch classify(name) {
	case kindTarXZ, kindTarGZ:
		return readBundle(name, r)
	default:
		data, err := readAll(name, r)
		if err != nil {
			return nil, err
		}
		return []Source{{Name: name, Base: BaseName(name), Data: data}}, nil
	}
}

// checkCompression rejects compressed inputs whose content does not match
// their suffix.
func checkCompression(name string, r *bufio.Reader) error {
	var want validation.FileType
	switch classify(name) {
	case kindXMLXZ, kindTarXZ:
		want = validation.FileTypeXZ
	case kindXMLGZ, kindTarGZ:
		want = validation.FileTypeGzip
	default:
		return nil
	}
	head, _ := r.Peek(validation.HeaderSize)
	if err := validation.CheckFileType(head, want); err != nil {
		return &errors.ValidationError{Field: "input", Value: name, Message: err.Error(), Err: err}
	}
	return nil
}

func decompress(name string, r io.Reader) (io.Reader, error) {
	switch classify(name) {
	case kindXMLXZ, kindTarXZ:
		xzr, err := xz.NewReader(r)
		if err != nil {
			return nil, errors.NewIO("xz", name, err)
		}
		return xzr, nil
	case kindXMLGZ, kindTarGZ:
		gzr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.NewIO("gzip", name, err)
		}
		return gzr, nil
	}
	return r, nil
}

func readAll(name string, r io.Reader) ([]byte, error) {
	dr, err := decompress(name, r)
	if err != nil {
		return nil, err
	}
	data, err := validation.ReadLimited(dr, validation.MaxFileSize)
	if err != nil {
		return nil, errors.NewIO("read", name, err)
	}
	return data, nil
}

func readBundle(name string, r io.Reader) ([]Source, error) {
	dr, err := decompress(name, r)
	if err != nil {
		return nil, err
	}
	tr := tar.NewReader(dr)

	var out []Source
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewIO("read header", name, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		k := classify(hdr.Name)
		if k != kindXML && k != kindXMLXZ && k != kindXMLGZ {
			continue
		}
		entry := name + "!" + hdr.Name
		if err := validation.ValidateEntryName(hdr.Name); err != nil {
			return nil, &errors.ValidationError{Field: "member", Value: entry, Message: err.Error(), Err: err}
		}
		base, err := validation.SanitizeFilename(BaseName(hdr.Name))
		if err != nil {
			return nil, &errors.ValidationError{Field: "member", Value: entry, Message: err.Error(), Err: err}
		}
		data, err := readAll(hdr.Name, io.LimitReader(tr, hdr.Size))
		if err != nil {
			return nil, errors.Wrap(err, entry)
		}
		out = append(out, Source{Name: entry, Base: base, Data: data})
	}
	if len(out) == 0 {
		return nil, errors.NewNotFound("XML member", name)
	}
	return out, nil
}

// Sniff reports whether data starts like an XML document, skipping a byte
// order mark and leading whitespace.
func Sniff(data []byte) bool {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	data = bytes.TrimLeft(data, " \t\r\n")
	return bytes.HasPrefix(data, []byte("<"))
}
