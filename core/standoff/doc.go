// Package standoff maintains a character-level correspondence between an
// XML tree and a plain-text projection of it, and writes spans found in
// the plain text back into the tree as markup.
//
// # Positions
//
// A Table walks the root element in document order and assigns one
// Position per rune of text, CDATA and comment content, plus an Open and a
// Close Position for every element. Positions never change for the lifetime
// of a Table: elements created by insertions own no Positions, and splitting a
// text node only re-points the affected Positions at the new node.
//
// # Contexts
//
// ContextAt computes the ancestor chain of a Position from the live tree on
// every call, so it always reflects earlier insertions.
//
// # Views
//
// A View selects the character Positions that make up the plain text handed
// to a segmenter. Filters only ever narrow the selection:
//
//	v := standoff.NewView(t).
//	    ExcludeOutside("tei:div1").
//	    RemoveComments().
//	    ShrinkWhitespace()
//	text := v.PlainText()
//
// ShrinkWhitespace keeps the first Position of each whitespace run, so a
// boundary translated from a collapsed space anchors at the start of the
// original run.
//
// # Insertion
//
// InsertInline wraps [begin, end) in one new element when the range is
// balanced. An unbalanced range is reported as the Unbalanced outcome of
// InsertResult rather than as an error, and InsertMarkerPair places an empty
// start element and an empty end anchor linked by identifier instead. The
// Inserter drives that fallback for a batch of spans.
package standoff
