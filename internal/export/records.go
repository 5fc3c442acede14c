// Package export writes the outputs of a tagged document: the mutated tree,
// line-delimited sentence records, a SQLite sentences table, a msgpack dump
// of the standoff table and a run manifest.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/FocuswithJustin/standoff/core/encoding"
	"github.com/FocuswithJustin/standoff/core/standoff"
)

// Record is one line of the JSONL output. Field names are fixed by the
// annotation tool that consumes the file.
type Record struct {
	Text   string         `json:"text"`
	Labels []string       `json:"labels"`
	Meta   map[string]any `json:"meta"`
}

// Sentence is one tagged sentence of a document.
type Sentence struct {
	N         int    // sequential number, from 1
	XMLID     string // identifier written into the tree
	Text      string
	Placement standoff.Placement
	Meta      map[string]any // configured fields, e.g. chapter
}

// Record converts s into its JSONL form. meta.sentenceId is the sentence
// number and meta.xmlId the xml:id written into the tree, so a record links
// back to its element or marker pair.
func (s Sentence) Record() Record {
	meta := make(map[string]any, len(s.Meta)+3)
	for k, v := range s.Meta {
		meta[k] = v
	}
	meta["sentenceId"] = s.N
	if s.XMLID != "" {
		meta["xmlId"] = s.XMLID
	}
	if s.Placement.Kind == standoff.PlacedMarkers {
		meta["markers"] = true
	}
	return Record{
		Text:   strings.TrimSpace(encoding.CollapseSpace(s.Text)),
		Labels: []string{},
		Meta:   meta,
	}
}

// WriteJSONL writes one record per sentence.
func WriteJSONL(w io.Writer, sentences []Sentence) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, s := range sentences {
		if err := enc.Encode(s.Record()); err != nil {
			return fmt.Errorf("sentence %d: %w", s.N, err)
		}
	}
	return nil
}
