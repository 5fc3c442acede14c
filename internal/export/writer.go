package export

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/standoff/core/cas"
	"github.com/FocuswithJustin/standoff/core/errors"
	"github.com/FocuswithJustin/standoff/core/sqlite"
	"github.com/FocuswithJustin/standoff/core/standoff"
	"github.com/FocuswithJustin/standoff/core/xml"
)

// ManifestName is the manifest file written into the output directory.
const ManifestName = "manifest.json"

// Options selects the outputs of a run.
type Options struct {
	Dir       string
	Pretty    bool
	Indent    string
	XZ        bool   // compress the XML output
	JSONL     bool
	TableDump bool
	SQLite    string // database path; empty disables
	CAS       string // store directory; empty disables
	Manifest  bool
	Version   string // recorded in the manifest
}

// Document is a tagged document ready to be written.
type Document struct {
	Name      string // input identifier
	Base      string // output file stem
	Tree      *xml.Document
	Table     *standoff.Table
	Sentences []Sentence
}

// Writer writes documents of one run. Write is safe for concurrent use.
type Writer struct {
	opts    Options
	runID   uuid.UUID
	created time.Time
	db      *sqlite.SentenceDB
	store   *cas.Store

	mu    sync.Mutex
	bases map[string]int
	docs  []DocumentEntry
}

// NewWriter creates the output directory and opens the optional sinks.
func NewWriter(ctx context.Context, opts Options) (*Writer, error) {
	if opts.Dir == "" {
		return nil, errors.NewValidation("output.dir", "must not be empty")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, errors.NewIO("mkdir", opts.Dir, err)
	}

	w := &Writer{
		opts:    opts,
		runID:   uuid.New(),
		created: time.Now().UTC(),
		bases:   make(map[string]int),
	}
	if opts.SQLite != "" {
		db, err := sqlite.OpenSentences(ctx, opts.SQLite)
		if err != nil {
			return nil, err
		}
		w.db = db
	}
	if opts.CAS != "" {
		store, err := cas.NewStore(opts.CAS)
		if err != nil {
			w.closeDB()
			return nil, err
		}
		w.store = store
	}
	return w, nil
}

// RunID returns the identifier recorded in the manifest.
func (w *Writer) RunID() string {
	return w.runID.String()
}

// stem reserves a unique output stem for base.
func (w *Writer) stem(base string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bases[base]++
	if n := w.bases[base]; n > 1 {
		return base + "-" + strconv.Itoa(n)
	}
	return base
}

// Write writes every enabled output for d.
func (w *Writer) Write(ctx context.Context, d Document) (DocumentEntry, error) {
	entry := DocumentEntry{Name: d.Name, Sentences: len(d.Sentences)}
	for _, s := range d.Sentences {
		switch s.Placement.Kind {
		case standoff.PlacedInline:
			entry.Inline++
		case standoff.PlacedWidened:
			entry.Widened++
		case standoff.PlacedMarkers:
			entry.Markers++
		}
	}
	stem := w.stem(d.Base)

	tree, err := w.treeBytes(d.Tree)
	if err != nil {
		return entry, err
	}
	name := stem + ".xml"
	if w.opts.XZ {
		name += ".xz"
	}
	out, err := w.emit("xml", name, tree)
	if err != nil {
		return entry, err
	}
	entry.Outputs = append(entry.Outputs, out)

	if w.opts.JSONL {
		var buf bytes.Buffer
		if err := WriteJSONL(&buf, d.Sentences); err != nil {
			return entry, err
		}
		out, err := w.emit("jsonl", stem+".jsonl", buf.Bytes())
		if err != nil {
			return entry, err
		}
		entry.Outputs = append(entry.Outputs, out)
	}

	if w.opts.TableDump && d.Table != nil {
		var buf bytes.Buffer
		if err := EncodeTableDump(&buf, NewTableDump(d.Name, d.Table)); err != nil {
			return entry, errors.Wrap(err, "table dump")
		}
		out, err := w.emit("table", stem+".table.msgpack", buf.Bytes())
		if err != nil {
			return entry, err
		}
		entry.Outputs = append(entry.Outputs, out)
	}

	if w.db != nil {
		if err := w.db.Replace(ctx, d.Name, rows(d.Sentences)); err != nil {
			return entry, errors.Wrap(err, "sqlite")
		}
	}

	w.mu.Lock()
	w.docs = append(w.docs, entry)
	w.mu.Unlock()
	return entry, nil
}

func (w *Writer) treeBytes(doc *xml.Document) ([]byte, error) {
	var data []byte
	if w.opts.Pretty {
		data = doc.Format(xml.FormatOptions{Indent: w.opts.Indent})
	} else {
		data = doc.Serialize()
	}
	if !w.opts.XZ {
		return data, nil
	}
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, errors.Wrap(err, "xz writer")
	}
	if _, err := xw.Write(data); err != nil {
		return nil, errors.Wrap(err, "xz write")
	}
	if err := xw.Close(); err != nil {
		return nil, errors.Wrap(err, "xz close")
	}
	return buf.Bytes(), nil
}

// emit writes data under the output directory and, when enabled, into the
// content-addressed store.
func (w *Writer) emit(kind, name string, data []byte) (Output, error) {
	path := filepath.Join(w.opts.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Output{}, errors.NewIO("write", path, err)
	}
	out := Output{Kind: kind, Path: name, Size: len(data), Digest: cas.Sum(data)}
	if w.store != nil {
		if _, err := w.store.Put(data); err != nil {
			return Output{}, errors.Wrap(err, "cas")
		}
	}
	return out, nil
}

func rows(sentences []Sentence) []sqlite.Sentence {
	out := make([]sqlite.Sentence, len(sentences))
	for i, s := range sentences {
		rec := s.Record()
		out[i] = sqlite.Sentence{
			SentenceID: s.N,
			XMLID:      s.XMLID,
			Text:       rec.Text,
			Placement:  s.Placement.Kind.String(),
			Begin:      int(s.Placement.Begin),
			End:        int(s.Placement.End),
			Meta:       rec.Meta,
		}
	}
	return out
}

// Manifest returns the entries written so far, sorted by document name.
func (w *Writer) Manifest() Manifest {
	w.mu.Lock()
	docs := append([]DocumentEntry(nil), w.docs...)
	w.mu.Unlock()

	m := Manifest{RunID: w.RunID(), Version: w.opts.Version, Created: w.created, Documents: docs}
	m.sort()
	return m
}

// Close writes the manifest, if enabled, and closes the database.
func (w *Writer) Close() error {
	var err error
	if w.opts.Manifest {
		var data []byte
		data, err = json.MarshalIndent(w.Manifest(), "", "  ")
		if err == nil {
			path := filepath.Join(w.opts.Dir, ManifestName)
			if werr := os.WriteFile(path, append(data, '\n'), 0o644); werr != nil {
				err = errors.NewIO("write", path, werr)
			}
		}
	}
	if cerr := w.closeDB(); err == nil {
		err = cerr
	}
	return err
}

func (w *Writer) closeDB() error {
	if w.db == nil {
		return nil
	}
	err := w.db.Close()
	w.db = nil
	return err
}
