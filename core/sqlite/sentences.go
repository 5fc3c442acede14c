package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS sentences (
	document    TEXT    NOT NULL,
	sentence_id INTEGER NOT NULL,
	xml_id      TEXT    NOT NULL,
	text        TEXT    NOT NULL,
	placement   TEXT    NOT NULL,
	begin_pos   INTEGER NOT NULL,
	end_pos     INTEGER NOT NULL,
	meta        TEXT    NOT NULL DEFAULT '{}',
	PRIMARY KEY (document, sentence_id)
);
CREATE INDEX IF NOT EXISTS sentences_xml_id ON sentences (document, xml_id);
`

// Sentence is one row of the sentences table.
type Sentence struct {
	Document   string
	SentenceID int
	XMLID      string
	Text       string
	Placement  string // inline, widened or markers
	Begin, End int    // table Positions
	Meta       map[string]any
}

// SentenceDB writes and reads the sentences table.
type SentenceDB struct {
	db *sql.DB
}

// OpenSentences opens the database at path and creates the schema.
func OpenSentences(ctx context.Context, path string) (*SentenceDB, error) {
	db, err := Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SentenceDB{db: db}, nil
}

// OpenSentencesReadOnly opens an existing database without creating the
// schema. Writes through the returned handle fail.
func OpenSentencesReadOnly(ctx context.Context, path string) (*SentenceDB, error) {
	db, err := OpenReadOnly(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &SentenceDB{db: db}, nil
}

// Close closes the database.
func (s *SentenceDB) Close() error {
	return s.db.Close()
}

// Replace deletes the rows of document and inserts rows in one transaction.
func (s *SentenceDB) Replace(ctx context.Context, document string, rows []Sentence) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM sentences WHERE document = ?`, document); err != nil {
		return fmt.Errorf("clear %s: %w", document, err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO sentences
		(document, sentence_id, xml_id, text, placement, begin_pos, end_pos, meta)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		meta, err := json.Marshal(r.Meta)
		if err != nil {
			return fmt.Errorf("sentence %d meta: %w", r.SentenceID, err)
		}
		if r.Meta == nil {
			meta = []byte("{}")
		}
		if _, err := stmt.ExecContext(ctx, document, r.SentenceID, r.XMLID, r.Text,
			r.Placement, r.Begin, r.End, string(meta)); err != nil {
			return fmt.Errorf("insert sentence %d: %w", r.SentenceID, err)
		}
	}
	return tx.Commit()
}

// Sentences returns the rows of document ordered by sentence id.
func (s *SentenceDB) Sentences(ctx context.Context, document string) ([]Sentence, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT sentence_id, xml_id, text, placement, begin_pos, end_pos, meta
		FROM sentences WHERE document = ? ORDER BY sentence_id`, document)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sentence
	for rows.Next() {
		r := Sentence{Document: document}
		var meta string
		if err := rows.Scan(&r.SentenceID, &r.XMLID, &r.Text, &r.Placement, &r.Begin, &r.End, &meta); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(meta), &r.Meta); err != nil {
			return nil, fmt.Errorf("sentence %d meta: %w", r.SentenceID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of rows, over all documents.
func (s *SentenceDB) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sentences`).Scan(&n)
	return n, err
}
