package standoff

import (
	"fmt"

	"github.com/antchfx/xmlquery"

	"github.com/FocuswithJustin/standoff/core/errors"
)

// AnyDepth lets an insertion use the innermost legal depth.
const AnyDepth = -1

// Outcome tells which branch an insertion took.
type Outcome int

const (
	// Inserted means the tree was mutated.
	Inserted Outcome = iota
	// Unbalanced means the range cannot be represented at the requested
	// placement; the tree is untouched.
	Unbalanced
)

func (o Outcome) String() string {
	if o == Inserted {
		return "inserted"
	}
	return "unbalanced"
}

// InsertResult is the outcome of InsertInline or InsertMarkerPair.
type InsertResult struct {
	Outcome Outcome
	// Node is the new inline element, or the start marker of a pair.
	Node *xmlquery.Node
	// End is the end marker of a pair; nil for inline elements.
	End *xmlquery.Node
	// Err explains an Unbalanced outcome.
	Err *errors.UnbalancedSpanError
}

// point is an insertion point in the tree: between after and its next
// sibling inside parent, or before the first child when after is nil. When
// split is set the point falls inside that content node at rune offset
// offset, and unit is the Position of the rune right after the point.
type point struct {
	parent *xmlquery.Node
	after  *xmlquery.Node
	split  *xmlquery.Node
	offset int
	unit   Position
}

// basePoint returns the innermost insertion point right before Position p.
func (t *Table) basePoint(p Position) point {
	if int(p) == len(t.units) {
		return point{parent: t.root.Parent, after: t.root}
	}
	u := t.units[p]
	switch u.kind {
	case UnitOpen:
		return point{parent: u.node.Parent, after: u.node.PrevSibling}
	case UnitClose:
		return point{parent: u.node, after: u.node.LastChild}
	}
	if u.offset == 0 {
		return point{parent: u.node.Parent, after: u.node.PrevSibling}
	}
	return point{parent: u.node.Parent, after: u.node, split: u.node, offset: u.offset, unit: p}
}

// candidates returns every insertion point equivalent to base. Elements
// created by earlier insertions own no units, so moving into or out of them
// at their edges does not change which Positions lie on either side.
func (t *Table) candidates(base point) []point {
	if base.parent == nil {
		return nil
	}
	if base.split != nil {
		return []point{base}
	}

	type key struct{ parent, after *xmlquery.Node }
	seen := make(map[key]bool)
	var out []point
	queue := []point{base}
	for len(queue) > 0 {
		pt := queue[0]
		queue = queue[1:]
		k := key{pt.parent, pt.after}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, pt)

		c := pt.parent
		if c.Type == xmlquery.ElementNode && !t.original.Has(c) && c.Parent != nil {
			if pt.after == nil {
				queue = append(queue, point{parent: c.Parent, after: c.PrevSibling})
			}
			if pt.after == c.LastChild {
				queue = append(queue, point{parent: c.Parent, after: c})
			}
		}

		next := c.FirstChild
		if pt.after != nil {
			next = pt.after.NextSibling
		}
		if t.isWrapper(next) {
			queue = append(queue, point{parent: next})
		}
		if t.isWrapper(pt.after) {
			queue = append(queue, point{parent: pt.after, after: pt.after.LastChild})
		}
	}
	return out
}

// isWrapper reports whether n is a non-empty element created by an insertion.
func (t *Table) isWrapper(n *xmlquery.Node) bool {
	return n != nil && n.Type == xmlquery.ElementNode && n.FirstChild != nil && !t.original.Has(n)
}

// reaches reports whether the sibling run from b to e is non-empty and in
// document order.
func reaches(b, e point) bool {
	start := b.split
	if start == nil {
		if b.after == nil {
			start = b.parent.FirstChild
		} else {
			start = b.after.NextSibling
		}
	}
	if start == nil || e.after == nil {
		return false
	}
	for n := start; n != nil; n = n.NextSibling {
		if n == e.after {
			return true
		}
	}
	return false
}

// resolve finds a pair of insertion points sharing one container for the
// range [begin, end). It returns a reason when there is none.
func (t *Table) resolve(begin, end Position, depth int) (point, point, string) {
	bp, ep := t.basePoint(begin), t.basePoint(end)
	if bp.split != nil && bp.split.Type == xmlquery.CommentNode {
		return point{}, point{}, "begin falls inside a comment"
	}
	if ep.split != nil && ep.split.Type == xmlquery.CommentNode {
		return point{}, point{}, "end falls inside a comment"
	}

	bs, es := t.candidates(bp), t.candidates(ep)
	var bestB, bestE point
	bestDepth := -1
	for _, b := range bs {
		for _, e := range es {
			if b.parent != e.parent || !reaches(b, e) {
				continue
			}
			d := elementDepth(b.parent)
			if depth >= 0 {
				if d == depth {
					return b, e, ""
				}
				continue
			}
			if d > bestDepth {
				bestB, bestE, bestDepth = b, e, d
			}
		}
	}
	if bestDepth >= 0 {
		return bestB, bestE, ""
	}
	if depth >= 0 {
		return point{}, point{}, fmt.Sprintf("no common container at depth %d", depth)
	}
	return point{}, point{}, fmt.Sprintf("begin is inside <%s>, end is inside <%s>",
		nodeName(bp.parent), nodeName(ep.parent))
}

// commit performs the pending text split of p, if any, and returns the
// equivalent point without a split.
func (t *Table) commit(p point) (point, *xmlquery.Node) {
	if p.split == nil {
		return p, nil
	}
	right := t.splitText(p.split, p.offset, p.unit)
	return point{parent: p.parent, after: p.split}, right
}

// InsertInline wraps [begin, end) in a new element named tag. depth selects
// the depth of the new element (the root element has depth 0); AnyDepth
// picks the innermost legal one.
//
// A range that crosses an element boundary asymmetrically yields the
// Unbalanced outcome with a nil error and leaves the tree untouched. Errors
// are reserved for caller bugs: out-of-range Positions, an empty tag, or an
// identifier in attrib that is already in use.
func (t *Table) InsertInline(begin, end Position, tag string, depth int, attrib map[string]string) (InsertResult, error) {
	if err := t.checkRange(begin, end); err != nil {
		return InsertResult{}, err
	}
	if tag == "" {
		return InsertResult{}, errors.NewValidation("tag", "must not be empty")
	}
	id, hasID := attrib[t.markers.IDAttr]
	if hasID && t.ids.Has(id) {
		return InsertResult{}, errors.NewDuplicateIdentifier(id)
	}

	bp, ep, reason := t.resolve(begin, end, depth)
	if reason != "" {
		return InsertResult{
			Outcome: Unbalanced,
			Err:     errors.NewUnbalancedSpan(int(begin), int(end), reason),
		}, nil
	}

	// Split the end first: splitting the begin afterwards never moves the
	// end point, except when both fall in the same node.
	ep, _ = t.commit(ep)
	split := bp.split
	bp, right := t.commit(bp)
	if split != nil && ep.after == split {
		ep.after = right
	}

	first := bp.parent.FirstChild
	if bp.after != nil {
		first = bp.after.NextSibling
	}
	el := t.newElement(tag, attrib)
	wrapRange(first, ep.after, el)

	if hasID {
		t.ids.Add(id)
	}
	return InsertResult{Outcome: Inserted, Node: el}, nil
}

// markerPoint picks where a marker for the gap before p goes: the
// equivalent point at depth when depth >= 0 and one exists, else the
// innermost point. A Position inside a comment moves to the comment edge on
// the outer side of the range, and the gaps around the root element move
// inside it.
func (t *Table) markerPoint(p Position, depth int, end bool) (point, string) {
	base := t.basePoint(p)
	switch {
	case base.split != nil && base.split.Type == xmlquery.CommentNode:
		c := base.split
		base = point{parent: c.Parent, after: c.PrevSibling}
		if end {
			base.after = c
		}
	case base.parent == t.root.Parent:
		base = point{parent: t.root}
		if p > 0 {
			base.after = t.root.LastChild
		}
	}

	var inner point
	found := false
	for _, c := range t.candidates(base) {
		if c.parent.Type != xmlquery.ElementNode {
			continue
		}
		if depth < 0 || elementDepth(c.parent) == depth {
			return c, ""
		}
		if !found {
			inner, found = c, true
		}
	}
	if found {
		return inner, ""
	}
	return point{}, fmt.Sprintf("no element container for position %d", p)
}

// InsertMarkerPair places two empty elements: at begin, an element named tag
// with attrib, the identifier id and a link attribute pointing to the end
// marker; at end, an end marker carrying only the linked identifier. Empty
// elements never cross boundaries, so every range of a well-formed table
// gets a pair. depth is a preference: a Position with no container at that
// depth gets its marker at the innermost one.
func (t *Table) InsertMarkerPair(begin, end Position, tag string, depth int, attrib map[string]string, id string) (InsertResult, error) {
	if err := t.checkRange(begin, end); err != nil {
		return InsertResult{}, err
	}
	if tag == "" {
		return InsertResult{}, errors.NewValidation("tag", "must not be empty")
	}
	if id == "" {
		return InsertResult{}, errors.NewValidation("id", "marker pairs need an identifier")
	}
	endID := id + t.markers.EndSuffix
	for _, used := range []string{id, endID} {
		if t.ids.Has(used) {
			return InsertResult{}, errors.NewDuplicateIdentifier(used)
		}
	}

	bp, reason := t.markerPoint(begin, depth, false)
	if reason == "" {
		var ep point
		ep, reason = t.markerPoint(end, depth, true)
		if reason == "" {
			return t.placeMarkers(bp, ep, tag, attrib, id, endID), nil
		}
	}
	return InsertResult{
		Outcome: Unbalanced,
		Err:     errors.NewUnbalancedSpan(int(begin), int(end), reason),
	}, nil
}

func (t *Table) placeMarkers(bp, ep point, tag string, attrib map[string]string, id, endID string) InsertResult {
	attrs := make(map[string]string, len(attrib)+2)
	for k, v := range attrib {
		attrs[k] = v
	}
	attrs[t.markers.IDAttr] = id
	attrs[t.markers.LinkAttr] = "#" + endID
	start := t.newElement(tag, attrs)
	stop := t.newElement(t.markers.EndTag, map[string]string{t.markers.IDAttr: endID})

	ep, _ = t.commit(ep)
	insertAt(ep.parent, ep.after, stop)
	bp, _ = t.commit(bp)
	insertAt(bp.parent, bp.after, start)

	t.ids.Add(id)
	t.ids.Add(endID)
	return InsertResult{Outcome: Inserted, Node: start, End: stop}
}

// Widen looks for the smallest extension of [begin, end) over boundary
// units only (Open units before begin, Close units from end on) that makes
// the range balanced at depth. The character content of the range never
// changes. ok is false when no such extension exists.
func (t *Table) Widen(begin, end Position, depth int) (Position, Position, bool) {
	if t.checkRange(begin, end) != nil {
		return begin, end, false
	}
	maxB := 0
	for int(begin)-maxB-1 >= 0 && t.units[int(begin)-maxB-1].kind == UnitOpen {
		maxB++
	}
	maxE := 0
	for int(end)+maxE < len(t.units) && t.units[int(end)+maxE].kind == UnitClose {
		maxE++
	}

	for total := 0; total <= maxB+maxE; total++ {
		for nb := 0; nb <= maxB && nb <= total; nb++ {
			ne := total - nb
			if ne > maxE {
				continue
			}
			b, e := begin-Position(nb), end+Position(ne)
			if _, _, reason := t.resolve(b, e, depth); reason == "" {
				return b, e, true
			}
		}
	}
	return begin, end, false
}
