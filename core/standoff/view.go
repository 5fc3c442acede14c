package standoff

import (
	"sort"
	"unicode"

	"github.com/antchfx/xmlquery"
	"github.com/creachadair/mds/mapset"

	"github.com/FocuswithJustin/standoff/core/errors"
	"github.com/FocuswithJustin/standoff/core/xml"
)

// View is a filtered plain-text projection of a Table. visible[o] is the
// Position that produced rune o of the plain text and chars[o] is that rune
// as presented (ShrinkWhitespace presents every kept whitespace as ' ').
//
// A View never mutates its Table. Insertions do not invalidate a View since
// they never renumber Positions, but filters applied after an insertion see
// the new elements in their contexts.
type View struct {
	table   *Table
	visible []Position
	chars   []rune

	text   string
	cached bool
}

// NewView returns a View in which every character Position is visible.
// Boundary units carry no character and are never visible.
func NewView(t *Table) *View {
	v := &View{table: t}
	for i, u := range t.units {
		if u.kind == UnitChar {
			v.visible = append(v.visible, Position(i))
			v.chars = append(v.chars, u.char)
		}
	}
	return v
}

// Table returns the table the View was derived from.
func (v *View) Table() *Table {
	return v.table
}

// Len returns the number of visible Positions, which is also the rune
// length of the plain text.
func (v *View) Len() int {
	return len(v.visible)
}

// Positions returns a copy of the visible Positions in order.
func (v *View) Positions() []Position {
	out := make([]Position, len(v.visible))
	copy(out, v.visible)
	return out
}

// keep retains the visible entries accepted by pred.
func (v *View) keep(pred func(i int, u unit) bool) *View {
	n := 0
	for i, p := range v.visible {
		if pred(i, v.table.units[p]) {
			v.visible[n] = p
			v.chars[n] = v.chars[i]
			n++
		}
	}
	v.visible = v.visible[:n]
	v.chars = v.chars[:n]
	v.cached = false
	return v
}

// within answers, per content node, whether some ancestor element is
// accepted by match. All runes of one content node share the answer.
func (v *View) within(match func(*xmlquery.Node) bool) func(i int, u unit) bool {
	memo := make(map[*xmlquery.Node]bool)
	return func(_ int, u unit) bool {
		in, ok := memo[u.node]
		if !ok {
			for n := u.node.Parent; n != nil; n = n.Parent {
				if match(n) {
					in = true
					break
				}
			}
			memo[u.node] = in
		}
		return in
	}
}

// ExcludeOutside keeps only Positions inside an element named tag.
func (v *View) ExcludeOutside(tag string) *View {
	return v.keep(v.within(v.table.Match(tag)))
}

// ExcludeInside drops Positions inside an element named tag, such as notes
// that should not reach the segmenter.
func (v *View) ExcludeInside(tag string) *View {
	inside := v.within(v.table.Match(tag))
	return v.keep(func(i int, u unit) bool { return !inside(i, u) })
}

// ExcludeOutsideXPath keeps only Positions inside an element selected by
// expr, evaluated with the table's namespace bindings.
func (v *View) ExcludeOutsideXPath(expr string) (*View, error) {
	nodes, err := xml.QueryAll(v.table.doc, expr, v.table.ns)
	if err != nil {
		return v, err
	}
	selected := mapset.New(nodes...)
	return v.keep(v.within(selected.Has)), nil
}

// RemoveComments drops Positions that hold comment content.
func (v *View) RemoveComments() *View {
	return v.keep(func(_ int, u unit) bool {
		return u.node.Type != xmlquery.CommentNode
	})
}

// ShrinkWhitespace collapses every maximal run of consecutive visible
// whitespace runes into one visible ' '. The kept Position is the first one
// of the run, also when the run crosses element boundaries.
func (v *View) ShrinkWhitespace() *View {
	inRun := false
	v.keep(func(i int, _ unit) bool {
		if !unicode.IsSpace(v.chars[i]) {
			inRun = false
			return true
		}
		if inRun {
			return false
		}
		inRun = true
		v.chars[i] = ' '
		return true
	})
	return v
}

// PlainText returns the visible runes in table order. The result is cached
// until the next filter call.
func (v *View) PlainText() string {
	if !v.cached {
		v.text = string(v.chars)
		v.cached = true
	}
	return v.text
}

// TranslateOffset maps a rune offset of the plain text to the Position that
// produced it.
func (v *View) TranslateOffset(offset int) (Position, error) {
	if offset < 0 || offset >= len(v.visible) {
		return 0, errors.NewOutOfRange("offset", offset, 0, len(v.visible))
	}
	return v.visible[offset], nil
}

// TranslateSpan maps the plain-text range [start, end) to the table range
// running from the Position of its first rune to just after the Position of
// its last rune.
func (v *View) TranslateSpan(start, end int) (Position, Position, error) {
	if start < 0 || start >= len(v.visible) {
		return 0, 0, errors.NewOutOfRange("offset", start, 0, len(v.visible))
	}
	if end <= start || end > len(v.visible) {
		return 0, 0, errors.NewOutOfRange("offset", end, start+1, len(v.visible)+1)
	}
	return v.visible[start], v.visible[end-1] + 1, nil
}

// OffsetOf returns the plain-text offset of a visible Position.
func (v *View) OffsetOf(p Position) (int, bool) {
	i := sort.Search(len(v.visible), func(i int) bool { return v.visible[i] >= p })
	if i < len(v.visible) && v.visible[i] == p {
		return i, true
	}
	return 0, false
}
