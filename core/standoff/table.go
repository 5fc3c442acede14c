package standoff

import (
	"github.com/antchfx/xmlquery"
	"github.com/creachadair/mds/mapset"

	"github.com/FocuswithJustin/standoff/core/errors"
	"github.com/FocuswithJustin/standoff/core/xml"
)

// Position indexes the unit sequence of a Table.
type Position int

// UnitKind classifies the unit at a Position.
type UnitKind uint8

const (
	// UnitChar is one rune of text, CDATA or comment content.
	UnitChar UnitKind = iota
	// UnitOpen marks the start of an element.
	UnitOpen
	// UnitClose marks the end of an element.
	UnitClose
)

func (k UnitKind) String() string {
	switch k {
	case UnitChar:
		return "char"
	case UnitOpen:
		return "open"
	case UnitClose:
		return "close"
	default:
		return "unknown"
	}
}

type unit struct {
	kind   UnitKind
	node   *xmlquery.Node // content node for chars, element for boundaries
	offset int            // rune offset of a char within node.Data
	char   rune
}

// MarkerOptions names the attributes and elements used by marker pairs.
type MarkerOptions struct {
	IDAttr    string // identifier attribute, default "xml:id"
	LinkAttr  string // start → end link attribute, default "spanTo"
	EndTag    string // end marker element, default "anchor"
	EndSuffix string // appended to the start identifier, default "-end"
}

func (o MarkerOptions) withDefaults() MarkerOptions {
	if o.IDAttr == "" {
		o.IDAttr = "xml:id"
	}
	if o.LinkAttr == "" {
		o.LinkAttr = "spanTo"
	}
	if o.EndTag == "" {
		o.EndTag = "anchor"
	}
	if o.EndSuffix == "" {
		o.EndSuffix = "-end"
	}
	return o
}

// BuildOptions controls how a Table is built.
type BuildOptions struct {
	// StripComments removes comment nodes from the tree while walking it.
	// Kept comments produce Positions flagged as comment content.
	StripComments bool

	// Namespaces adds prefix → URI bindings on top of the ones declared in
	// the document. Caller bindings win.
	Namespaces map[string]string

	Markers MarkerOptions
}

// Table is the standoff character table of one XML tree. It owns the tree:
// every mutation must go through the Table so that Positions stay valid.
type Table struct {
	doc   *xmlquery.Node
	root  *xmlquery.Node
	units []unit

	// original holds the elements present at build time. Only they own
	// Open/Close units.
	original mapset.Set[*xmlquery.Node]
	ids      mapset.Set[string]

	docNS   map[string]string
	ns      map[string]string
	markers MarkerOptions
}

// Build walks doc and returns its standoff table. doc may be a document node
// or a root element.
func Build(doc *xmlquery.Node, opts BuildOptions) (*Table, error) {
	if doc == nil {
		return nil, errors.NewMalformedTree("", "nil document")
	}

	root, err := findRoot(doc)
	if err != nil {
		return nil, err
	}

	t := &Table{
		doc:      doc,
		root:     root,
		original: mapset.New[*xmlquery.Node](),
		ids:      mapset.New[string](),
		docNS:    xml.DeclaredNamespaces(root),
		markers:  opts.Markers.withDefaults(),
	}
	t.ns = make(map[string]string, len(t.docNS)+len(opts.Namespaces))
	for prefix, uri := range t.docNS {
		t.ns[prefix] = uri
	}
	for prefix, uri := range opts.Namespaces {
		t.ns[prefix] = uri
	}

	if err := t.walk(root, opts.StripComments); err != nil {
		return nil, err
	}
	return t, nil
}

func findRoot(doc *xmlquery.Node) (*xmlquery.Node, error) {
	switch doc.Type {
	case xmlquery.ElementNode:
		return doc, nil
	case xmlquery.DocumentNode:
	default:
		return nil, errors.NewMalformedTree("", "input is neither a document nor an element")
	}

	var root *xmlquery.Node
	for child := doc.FirstChild; child != nil; child = child.NextSibling {
		if child.Parent != doc {
			return nil, errors.NewMalformedTree("#document", "child parent link is broken")
		}
		if child.Type != xmlquery.ElementNode {
			continue
		}
		if root != nil {
			return nil, errors.NewMalformedTree("#document", "more than one root element")
		}
		root = child
	}
	if root == nil {
		return nil, errors.NewMalformedTree("", "no root element")
	}
	return root, nil
}

func (t *Table) walk(n *xmlquery.Node, stripComments bool) error {
	switch n.Type {
	case xmlquery.ElementNode:
		if n.Data == "" {
			return errors.NewMalformedTree("", "element without a name")
		}
		t.original.Add(n)
		for _, attr := range n.Attr {
			if xml.AttrName(attr.Name) == t.markers.IDAttr {
				t.ids.Add(attr.Value)
			}
		}
		t.units = append(t.units, unit{kind: UnitOpen, node: n})

		var prev *xmlquery.Node
		for child := n.FirstChild; child != nil; {
			next := child.NextSibling
			if child.Parent != n {
				return errors.NewMalformedTree(xml.QualifiedName(n), "child parent link is broken")
			}
			if child.PrevSibling != prev {
				return errors.NewMalformedTree(xml.QualifiedName(n), "sibling links are inconsistent")
			}
			if stripComments && child.Type == xmlquery.CommentNode {
				detach(child)
				child = next
				continue
			}
			if err := t.walk(child, stripComments); err != nil {
				return err
			}
			prev = child
			child = next
		}
		if n.LastChild != prev {
			return errors.NewMalformedTree(xml.QualifiedName(n), "last child link is inconsistent")
		}

		t.units = append(t.units, unit{kind: UnitClose, node: n})

	case xmlquery.TextNode, xmlquery.CharDataNode, xmlquery.CommentNode:
		i := 0
		for _, r := range n.Data {
			t.units = append(t.units, unit{kind: UnitChar, node: n, offset: i, char: r})
			i++
		}

	case xmlquery.DeclarationNode:
		return errors.NewMalformedTree(nodeName(n.Parent), "declaration inside an element")

	case xmlquery.DocumentNode:
		return errors.NewMalformedTree(nodeName(n.Parent), "nested document node")
	}
	// Processing instructions and attribute nodes carry no units.
	return nil
}

// Len returns the number of Positions in the table.
func (t *Table) Len() int {
	return len(t.units)
}

// Document returns the tree the table was built from.
func (t *Table) Document() *xmlquery.Node {
	return t.doc
}

// Root returns the root element.
func (t *Table) Root() *xmlquery.Node {
	return t.root
}

// Namespaces returns a copy of the prefix → URI bindings in effect.
func (t *Table) Namespaces() map[string]string {
	out := make(map[string]string, len(t.ns))
	for prefix, uri := range t.ns {
		out[prefix] = uri
	}
	return out
}

// Markers returns the marker naming in effect.
func (t *Table) Markers() MarkerOptions {
	return t.markers
}

// HasID reports whether id is already used by an element of the tree.
func (t *Table) HasID(id string) bool {
	return t.ids.Has(id)
}

// ContextAt returns the context of Position p.
func (t *Table) ContextAt(p Position) (Context, error) {
	if p < 0 || int(p) >= len(t.units) {
		return Context{}, errors.NewOutOfRange("position", int(p), 0, len(t.units))
	}
	return t.context(p), nil
}

// CollapsedView returns the context of every Position in table order.
func (t *Table) CollapsedView() []Context {
	out := make([]Context, len(t.units))
	for i := range t.units {
		out[i] = t.context(Position(i))
	}
	return out
}

// Text returns the characters of [begin, end) in table order, skipping
// boundary units.
func (t *Table) Text(begin, end Position) (string, error) {
	if err := t.checkRange(begin, end); err != nil {
		return "", err
	}
	runes := make([]rune, 0, int(end-begin))
	for _, u := range t.units[begin:end] {
		if u.kind == UnitChar {
			runes = append(runes, u.char)
		}
	}
	return string(runes), nil
}

func (t *Table) context(p Position) Context {
	u := t.units[p]
	c := Context{Position: p, Kind: u.kind}
	start := u.node
	if u.kind == UnitChar {
		c.Char = u.char
		c.Comment = u.node.Type == xmlquery.CommentNode
		start = u.node.Parent
	}
	c.Ancestors = ancestors(start)
	return c
}

func (t *Table) checkRange(begin, end Position) error {
	if begin < 0 || int(begin) >= len(t.units) {
		return errors.NewOutOfRange("begin", int(begin), 0, len(t.units))
	}
	if end <= begin || int(end) > len(t.units) {
		return errors.NewOutOfRange("end", int(end), int(begin)+1, len(t.units)+1)
	}
	return nil
}

// Match returns a predicate for elements named tag. An unprefixed tag
// matches the local name in any namespace; a prefixed tag matches by the
// bound namespace URI, or by literal prefix when the prefix is unbound.
func (t *Table) Match(tag string) func(*xmlquery.Node) bool {
	prefix, local := xml.SplitName(tag)
	if prefix == "" {
		return func(n *xmlquery.Node) bool {
			return n.Type == xmlquery.ElementNode && n.Data == local
		}
	}
	if uri, ok := t.ns[prefix]; ok {
		return func(n *xmlquery.Node) bool {
			return n.Type == xmlquery.ElementNode && n.Data == local && n.NamespaceURI == uri
		}
	}
	return func(n *xmlquery.Node) bool {
		return n.Type == xmlquery.ElementNode && n.Data == local && n.Prefix == prefix
	}
}

// newElement creates a detached element named tag. Prefixed tags resolve
// through the namespace bindings and reuse the prefix the document declares
// for that namespace; unprefixed tags join the document's default namespace.
func (t *Table) newElement(tag string, attrib map[string]string) *xmlquery.Node {
	prefix, local := xml.SplitName(tag)
	n := &xmlquery.Node{Type: xmlquery.ElementNode, Data: local}
	n.Attr = xml.SortedAttrs(attrib)

	if prefix == "" {
		n.NamespaceURI = t.docNS[""]
		return n
	}
	uri, ok := t.ns[prefix]
	if !ok {
		n.Prefix = prefix
		return n
	}
	n.NamespaceURI = uri
	if docPrefix, declared := t.declaredPrefix(uri); declared {
		n.Prefix = docPrefix
		return n
	}
	// The document never declares this namespace; declare it locally.
	n.Prefix = prefix
	n.Attr = append(n.Attr, xmlquery.Attr{Name: xmlName("xmlns", prefix), Value: uri})
	return n
}

func (t *Table) declaredPrefix(uri string) (string, bool) {
	if t.docNS[""] == uri {
		return "", true
	}
	best, found := "", false
	for prefix, u := range t.docNS {
		if u == uri && prefix != "" && (!found || prefix < best) {
			best, found = prefix, true
		}
	}
	return best, found
}

func ancestors(n *xmlquery.Node) []*xmlquery.Node {
	var chain []*xmlquery.Node
	for ; n != nil; n = n.Parent {
		if n.Type == xmlquery.ElementNode {
			chain = append(chain, n)
		}
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// elementDepth counts the elements in n's ancestor-or-self chain. An element
// inserted under n gets this depth; the root element has depth 0.
func elementDepth(n *xmlquery.Node) int {
	d := 0
	for ; n != nil; n = n.Parent {
		if n.Type == xmlquery.ElementNode {
			d++
		}
	}
	return d
}

func nodeName(n *xmlquery.Node) string {
	if n == nil {
		return "#none"
	}
	if n.Type == xmlquery.DocumentNode {
		return "#document"
	}
	return xml.QualifiedName(n)
}
