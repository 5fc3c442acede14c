package standoff

import (
	"fmt"

	"github.com/antchfx/xmlquery"

	"github.com/FocuswithJustin/standoff/core/errors"
)

// Span is one range to materialize in the tree.
type Span struct {
	Begin, End Position
	Tag        string
	Depth      int // AnyDepth for the innermost legal depth
	Attrib     map[string]string
	ID         string // written to the identifier attribute; may be empty for inline-only spans
}

// PlacementKind tells how a span ended up in the tree.
type PlacementKind int

const (
	// PlacedInline is a single element covering exactly the span.
	PlacedInline PlacementKind = iota
	// PlacedWidened is a single element that also covers boundary units
	// adjacent to the span, with the same characters.
	PlacedWidened
	// PlacedMarkers is a start/end marker pair.
	PlacedMarkers
)

func (k PlacementKind) String() string {
	switch k {
	case PlacedInline:
		return "inline"
	case PlacedWidened:
		return "widened"
	case PlacedMarkers:
		return "markers"
	default:
		return "unknown"
	}
}

// Placement records where a span went.
type Placement struct {
	Span  Span
	Kind  PlacementKind
	Begin Position // effective range; differs from Span for PlacedWidened
	End   Position
	Node  *xmlquery.Node // inline element or start marker
	Stop  *xmlquery.Node // end marker, for PlacedMarkers
	// Cause is why the single-element placement was impossible.
	Cause *errors.UnbalancedSpanError
}

// Inserter materializes spans in a Table, falling back from a single inline
// element to a marker pair when a span is unbalanced.
type Inserter struct {
	table *Table

	// Widen retries an unbalanced span over adjacent boundary units before
	// falling back to markers.
	Widen bool
}

// NewInserter returns an Inserter for t with widening enabled.
func NewInserter(t *Table) *Inserter {
	return &Inserter{table: t, Widen: true}
}

// Insert places one span. Only the Unbalanced outcome triggers the
// fallback; every error is returned as is.
func (ins *Inserter) Insert(s Span) (Placement, error) {
	t := ins.table
	attrib := s.Attrib
	if s.ID != "" {
		attrib = make(map[string]string, len(s.Attrib)+1)
		for k, v := range s.Attrib {
			attrib[k] = v
		}
		attrib[t.markers.IDAttr] = s.ID
	}

	res, err := t.InsertInline(s.Begin, s.End, s.Tag, s.Depth, attrib)
	if err != nil {
		return Placement{}, err
	}
	if res.Outcome == Inserted {
		return Placement{Span: s, Kind: PlacedInline, Begin: s.Begin, End: s.End, Node: res.Node}, nil
	}
	cause := res.Err

	if ins.Widen {
		if b, e, ok := t.Widen(s.Begin, s.End, s.Depth); ok {
			res, err = t.InsertInline(b, e, s.Tag, s.Depth, attrib)
			if err != nil {
				return Placement{}, err
			}
			if res.Outcome == Inserted {
				return Placement{Span: s, Kind: PlacedWidened, Begin: b, End: e, Node: res.Node, Cause: cause}, nil
			}
		}
	}

	if s.ID == "" {
		return Placement{}, errors.Wrap(cause, "marker fallback needs an identifier")
	}
	res, err = t.InsertMarkerPair(s.Begin, s.End, s.Tag, s.Depth, s.Attrib, s.ID)
	if err != nil {
		return Placement{}, err
	}
	if res.Outcome != Inserted {
		return Placement{}, errors.Wrap(res.Err, "marker fallback failed")
	}
	return Placement{
		Span:  s,
		Kind:  PlacedMarkers,
		Begin: s.Begin,
		End:   s.End,
		Node:  res.Node,
		Stop:  res.End,
		Cause: cause,
	}, nil
}

// InsertAll places spans in order. Spans must be sorted and must not
// overlap, because each insertion reshapes the tree the next one is
// resolved against. The first error aborts the batch; placements made so
// far are returned with it.
func (ins *Inserter) InsertAll(spans []Span) ([]Placement, error) {
	placements := make([]Placement, 0, len(spans))
	for i, s := range spans {
		if i > 0 && s.Begin < spans[i-1].End {
			return placements, &errors.ValidationError{
				Field:   "spans",
				Value:   fmt.Sprintf("[%d, %d)", s.Begin, s.End),
				Message: fmt.Sprintf("span %d starts before span %d ends", i, i-1),
			}
		}
		p, err := ins.Insert(s)
		if err != nil {
			return placements, errors.Wrapf(err, "span %d [%d, %d)", i, s.Begin, s.End)
		}
		placements = append(placements, p)
	}
	return placements, nil
}
