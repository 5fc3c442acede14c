package standoff

import (
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/FocuswithJustin/standoff/core/xml"
)

// Context is the tree context of one Position: the unit found there and
// the chain of enclosing elements, outermost first. For a boundary unit the
// chain ends with the element the boundary belongs to.
type Context struct {
	Position  Position
	Kind      UnitKind
	Char      rune // zero for boundary units
	Comment   bool // the rune is comment content
	Ancestors []*xmlquery.Node
}

// HasChar reports whether the Position carries a character.
func (c Context) HasChar() bool {
	return c.Kind == UnitChar
}

// Depth returns the number of enclosing elements.
func (c Context) Depth() int {
	return len(c.Ancestors)
}

// Innermost returns the nearest enclosing element, or nil.
func (c Context) Innermost() *xmlquery.Node {
	if len(c.Ancestors) == 0 {
		return nil
	}
	return c.Ancestors[len(c.Ancestors)-1]
}

// Nearest returns the innermost ancestor accepted by match, or nil.
func (c Context) Nearest(match func(*xmlquery.Node) bool) *xmlquery.Node {
	for i := len(c.Ancestors) - 1; i >= 0; i-- {
		if match(c.Ancestors[i]) {
			return c.Ancestors[i]
		}
	}
	return nil
}

// Within reports whether any ancestor is accepted by match.
func (c Context) Within(match func(*xmlquery.Node) bool) bool {
	return c.Nearest(match) != nil
}

// Names returns the qualified ancestor names, outermost first.
func (c Context) Names() []string {
	names := make([]string, len(c.Ancestors))
	for i, n := range c.Ancestors {
		names[i] = xml.QualifiedName(n)
	}
	return names
}

// Path renders the ancestor chain as "TEI/text/body/p".
func (c Context) Path() string {
	return strings.Join(c.Names(), "/")
}
