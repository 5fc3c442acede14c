package export

import (
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/FocuswithJustin/standoff/core/cas"
)

// Output is one file written for a document.
type Output struct {
	Kind string `json:"kind"` // xml, jsonl, table
	Path string `json:"path"`
	Size int    `json:"size"`
	cas.Digest
}

// DocumentEntry summarizes one tagged document.
type DocumentEntry struct {
	Name      string   `json:"name"`
	Sentences int      `json:"sentences"`
	Inline    int      `json:"inline"`
	Widened   int      `json:"widened"`
	Markers   int      `json:"markers"`
	Outputs   []Output `json:"outputs"`
}

// Manifest lists every output of a run.
type Manifest struct {
	RunID     string          `json:"run_id"`
	Version   string          `json:"version,omitempty"`
	Created   time.Time       `json:"created"`
	Documents []DocumentEntry `json:"documents"`
}

// ReadManifest loads a manifest file.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) sort() {
	sort.Slice(m.Documents, func(i, j int) bool {
		return m.Documents[i].Name < m.Documents[j].Name
	})
}
