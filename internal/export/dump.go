package export

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/FocuswithJustin/standoff/core/standoff"
)

// tableDumpVersion is bumped whenever TableDump changes shape.
const tableDumpVersion uint16 = 1

// TableDump is the msgpack snapshot of a standoff table after tagging.
type TableDump struct {
	Version  uint16     `msgpack:"version"`
	Document string     `msgpack:"document"`
	Units    []DumpUnit `msgpack:"units"`
}

// DumpUnit is one Position with its context at dump time.
type DumpUnit struct {
	Kind    string `msgpack:"kind"`
	Char    string `msgpack:"char,omitempty"`
	Comment bool   `msgpack:"comment,omitempty"`
	Path    string `msgpack:"path"`
}

// NewTableDump snapshots t.
func NewTableDump(document string, t *standoff.Table) TableDump {
	ctxs := t.CollapsedView()
	d := TableDump{
		Version:  tableDumpVersion,
		Document: document,
		Units:    make([]DumpUnit, len(ctxs)),
	}
	for i, c := range ctxs {
		u := DumpUnit{Kind: c.Kind.String(), Comment: c.Comment, Path: c.Path()}
		if c.HasChar() {
			u.Char = string(c.Char)
		}
		d.Units[i] = u
	}
	return d
}

// EncodeTableDump writes d as msgpack.
func EncodeTableDump(w io.Writer, d TableDump) error {
	return msgpack.NewEncoder(w).Encode(d)
}

// DecodeTableDump reads a dump written by EncodeTableDump.
func DecodeTableDump(r io.Reader) (TableDump, error) {
	var d TableDump
	if err := msgpack.NewDecoder(r).Decode(&d); err != nil {
		return TableDump{}, err
	}
	if d.Version != tableDumpVersion {
		return TableDump{}, fmt.Errorf("table dump version %d, want %d", d.Version, tableDumpVersion)
	}
	return d, nil
}
