package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FocuswithJustin/standoff/core/sqlite"
)

// writeRun writes the sample document with every sink enabled and returns
// the options used.
func writeRun(t *testing.T) (Options, DocumentEntry) {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	opts := Options{
		Dir:       filepath.Join(dir, "out"),
		JSONL:     true,
		TableDump: true,
		SQLite:    filepath.Join(dir, "sentences.db"),
		CAS:       filepath.Join(dir, "cas"),
		Manifest:  true,
	}
	w, err := NewWriter(ctx, opts)
	require.NoError(t, err)
	entry, err := w.Write(ctx, tagged(t))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return opts, entry
}

func TestVerifyCleanRun(t *testing.T) {
	opts, entry := writeRun(t)

	m, problems, err := Verify(context.Background(), opts.Dir, VerifyOptions{CAS: opts.CAS, SQLite: opts.SQLite})
	require.NoError(t, err)
	assert.Empty(t, problems)
	require.Len(t, m.Documents, 1)
	assert.Equal(t, entry, m.Documents[0])
}

func TestVerifyReportsDrift(t *testing.T) {
	ctx := context.Background()
	opts, entry := writeRun(t)
	require.Len(t, entry.Outputs, 3)
	jsonl, table := entry.Outputs[1], entry.Outputs[2]

	// Grow the JSONL file behind the manifest's back.
	path := filepath.Join(opts.Dir, jsonl.Path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(data, '\n'), 0o644))

	// Drop the table dump blob from the store.
	sha := table.SHA256
	require.NoError(t, os.Remove(filepath.Join(opts.CAS, "blobs", "sha256", sha[:2], sha)))

	// Clear the document's rows.
	db, err := sqlite.OpenSentences(ctx, opts.SQLite)
	require.NoError(t, err)
	require.NoError(t, db.Replace(ctx, entry.Name, nil))
	require.NoError(t, db.Close())

	_, problems, err := Verify(ctx, opts.Dir, VerifyOptions{CAS: opts.CAS, SQLite: opts.SQLite})
	require.NoError(t, err)
	require.Len(t, problems, 3)

	assert.Equal(t, jsonl.Path, problems[0].Path)
	assert.Contains(t, problems[0].Reason, "size")
	assert.Equal(t, table.Path, problems[1].Path)
	assert.Contains(t, problems[1].Reason, "blob not found")
	assert.Equal(t, "", problems[2].Path)
	assert.Equal(t, "in/sample.xml: database holds 0 sentences, manifest 2", problems[2].String())
}

func TestVerifyWithoutSinks(t *testing.T) {
	opts, _ := writeRun(t)
	require.NoError(t, os.RemoveAll(opts.CAS))

	_, problems, err := Verify(context.Background(), opts.Dir, VerifyOptions{})
	require.NoError(t, err)
	assert.Empty(t, problems)

	_, _, err = Verify(context.Background(), opts.Dir, VerifyOptions{CAS: opts.CAS})
	assert.Error(t, err, "a missing store must not be created")
	assert.NoDirExists(t, opts.CAS)
}

func TestVerifyMissingManifest(t *testing.T) {
	_, _, err := Verify(context.Background(), t.TempDir(), VerifyOptions{})
	assert.Error(t, err)
}
