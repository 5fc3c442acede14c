package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/FocuswithJustin/standoff/core/cas"
	"github.com/FocuswithJustin/standoff/core/errors"
	"github.com/FocuswithJustin/standoff/core/sqlite"
)

// VerifyOptions names the optional sinks to check against a manifest.
type VerifyOptions struct {
	CAS    string // store directory; empty skips the store
	SQLite string // database path; empty skips the database
}

// Problem is one disagreement between a manifest and the files it lists.
type Problem struct {
	Document string
	Path     string // output path, empty for database problems
	Reason   string
}

func (p Problem) String() string {
	if p.Path == "" {
		return fmt.Sprintf("%s: %s", p.Document, p.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", p.Document, p.Path, p.Reason)
}

// Verify reads the manifest in dir and checks every output it lists: size
// and both digests on disk, the blob in the store and the sentence count in
// the database. Problems are returned, not errors; the error reports a
// manifest or sink that could not be opened at all.
func Verify(ctx context.Context, dir string, opts VerifyOptions) (*Manifest, []Problem, error) {
	m, err := ReadManifest(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, nil, errors.Wrap(err, "manifest")
	}

	var store *cas.Store
	if opts.CAS != "" {
		if _, err := os.Stat(opts.CAS); err != nil {
			return m, nil, errors.NewIO("stat", opts.CAS, err)
		}
		if store, err = cas.NewStore(opts.CAS); err != nil {
			return m, nil, errors.Wrap(err, "cas")
		}
	}
	var db *sqlite.SentenceDB
	if opts.SQLite != "" {
		if db, err = sqlite.OpenSentencesReadOnly(ctx, opts.SQLite); err != nil {
			return m, nil, errors.Wrap(err, "sqlite")
		}
		defer db.Close()
	}

	var problems []Problem
	for _, doc := range m.Documents {
		if err := ctx.Err(); err != nil {
			return m, problems, err
		}
		for _, out := range doc.Outputs {
			if reason := verifyOutput(dir, out, store); reason != "" {
				problems = append(problems, Problem{Document: doc.Name, Path: out.Path, Reason: reason})
			}
		}
		if db == nil {
			continue
		}
		rows, err := db.Sentences(ctx, doc.Name)
		if err != nil {
			return m, problems, errors.Wrapf(err, "sentences of %s", doc.Name)
		}
		if len(rows) != doc.Sentences {
			problems = append(problems, Problem{
				Document: doc.Name,
				Reason:   fmt.Sprintf("database holds %d sentences, manifest %d", len(rows), doc.Sentences),
			})
		}
	}
	return m, problems, nil
}

// verifyOutput returns why out does not match its file, or "".
func verifyOutput(dir string, out Output, store *cas.Store) string {
	data, err := os.ReadFile(filepath.Join(dir, out.Path))
	if err != nil {
		return fmt.Sprintf("unreadable: %v", err)
	}
	if len(data) != out.Size {
		return fmt.Sprintf("size %d, manifest %d", len(data), out.Size)
	}
	if cas.Sum(data) != out.Digest {
		return "digest mismatch"
	}
	if store == nil {
		return ""
	}
	sha, err := store.Resolve(out.BLAKE3)
	if err != nil {
		return fmt.Sprintf("store: %v", err)
	}
	if sha != out.SHA256 {
		return "store maps blake3 to another blob"
	}
	blob, err := store.Get(sha)
	if err != nil {
		return fmt.Sprintf("store: %v", err)
	}
	if !bytes.Equal(blob, data) {
		return "store blob differs from file"
	}
	return ""
}
