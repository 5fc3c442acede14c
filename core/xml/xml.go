// Package xml provides pure Go XML parsing, namespace discovery, XPath and
// formatting on top of xmlquery trees.
//
// Security Notes:
//   - XXE (External Entity) attacks are mitigated by using Go's xml.Decoder
//     which doesn't fetch external entities by default, and we explicitly
//     disable entity expansion in Validate.
//   - The xmlquery library is used for parsing, which uses Go's encoding/xml
//     internally and inherits its security properties.
package xml

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"io"
	"sort"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/standoff/core/encoding"
	"github.com/FocuswithJustin/standoff/core/errors"
)

// XMLNamespace is the namespace bound to the reserved "xml" prefix.
const XMLNamespace = "http://www.w3.org/XML/1998/namespace"

// Document represents a parsed XML document.
type Document struct {
	root *xmlquery.Node
}

// ValidationResult contains the result of XML validation.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// ValidationError represents a single validation error.
type ValidationError struct {
	Line    int
	Column  int
	Message string
}

// FormatOptions controls XML formatting behavior.
type FormatOptions struct {
	Indent string // Indentation string (e.g., "  " or "\t")
}

// Parse parses XML data and returns a Document.
func Parse(data []byte) (*Document, error) {
	return ParseReader(bytes.NewReader(data))
}

// ParseReader parses XML from r and returns a Document.
func ParseReader(r io.Reader) (*Document, error) {
	br := bufio.NewReader(r)
	declared := hasDeclaration(br)
	root, err := xmlquery.Parse(br)
	if err != nil {
		return nil, &errors.ParseError{Format: "XML", Message: err.Error(), Err: err}
	}
	if !declared {
		// xmlquery adds <?xml version="1.0"?> to documents that lack one.
		for child := root.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == xmlquery.DeclarationNode {
				xmlquery.RemoveFromTree(child)
				break
			}
		}
	}
	return &Document{root: root}, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// hasDeclaration reports whether the input opens with an XML declaration.
func hasDeclaration(br *bufio.Reader) bool {
	head, _ := br.Peek(len(utf8BOM) + 6)
	head = bytes.TrimPrefix(head, utf8BOM)
	if len(head) < 6 || !bytes.HasPrefix(head, []byte("<?xml")) {
		return false
	}
	switch head[5] {
	case ' ', '\t', '\r', '\n', '?':
		return true
	}
	return false
}

// Validate checks XML data for well-formedness.
//
// Security: entity expansion is disabled. Go's xml.Decoder does not fetch
// external entities by default, and internal entity expansion is turned off
// as well.
func Validate(data []byte) ValidationResult {
	result := ValidationResult{Valid: true}

	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Entity = map[string]string{}

	for {
		_, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Valid = false
			line, col := decoder.InputPos()
			result.Errors = append(result.Errors, ValidationError{
				Line:    line,
				Column:  col,
				Message: err.Error(),
			})
			break
		}
	}

	return result
}

// Tree returns the document node of the underlying xmlquery tree.
func (d *Document) Tree() *xmlquery.Node {
	return d.root
}

// Root returns the root element of the document, or nil.
func (d *Document) Root() *xmlquery.Node {
	if d.root == nil {
		return nil
	}
	for child := d.root.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return child
		}
	}
	return nil
}

// Namespaces returns every prefix → URI binding declared in the document.
func (d *Document) Namespaces() map[string]string {
	return DeclaredNamespaces(d.root)
}

// DeclaredNamespaces collects the prefix → URI bindings declared in the
// subtree at top. The default namespace, if any, is bound to the empty
// prefix. The first declaration of a prefix in document order wins.
func DeclaredNamespaces(top *xmlquery.Node) map[string]string {
	ns := map[string]string{"xml": XMLNamespace}
	if top == nil {
		return ns
	}
	var walk func(n *xmlquery.Node)
	walk = func(n *xmlquery.Node) {
		if n.Type == xmlquery.ElementNode {
			for _, attr := range n.Attr {
				switch {
				case attr.Name.Space == "" && attr.Name.Local == "xmlns":
					bind(ns, "", attr.Value)
				case attr.Name.Space == "xmlns":
					bind(ns, attr.Name.Local, attr.Value)
				}
			}
			if n.NamespaceURI != "" {
				bind(ns, n.Prefix, n.NamespaceURI)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(top)
	return ns
}

func bind(ns map[string]string, prefix, uri string) {
	if _, ok := ns[prefix]; !ok {
		ns[prefix] = uri
	}
}

// QueryAll compiles expr with namespaces and evaluates it against top.
// The empty prefix is ignored because XPath 1.0 has no default namespace.
func QueryAll(top *xmlquery.Node, expr string, namespaces map[string]string) ([]*xmlquery.Node, error) {
	bindings := make(map[string]string, len(namespaces))
	for prefix, uri := range namespaces {
		if prefix != "" {
			bindings[prefix] = uri
		}
	}
	compiled, err := xpath.CompileWithNS(expr, bindings)
	if err != nil {
		return nil, &errors.ParseError{Format: "XPath", Message: err.Error(), Err: err}
	}
	return xmlquery.QuerySelectorAll(top, compiled), nil
}

// Serialize converts the document back to XML bytes without reformatting.
// Childless elements are written as empty-element tags.
func (d *Document) Serialize() []byte {
	if d.root == nil {
		return nil
	}
	return []byte(d.root.OutputXMLWithOptions(xmlquery.WithEmptyTagSupport()))
}

// Marshal serializes the subtree at n exactly as it stands, text and
// whitespace included.
func Marshal(n *xmlquery.Node) []byte {
	return []byte(n.OutputXMLWithOptions(xmlquery.WithOutputSelf(), xmlquery.WithEmptyTagSupport()))
}

// Format pretty-prints the document, one node per line. Only elements whose
// children are elements, comments, processing instructions or line-break
// whitespace are re-indented. An element holding any other character data,
// even a single space between two child elements, is written unchanged so
// its text survives.
func (d *Document) Format(opts FormatOptions) []byte {
	if opts.Indent == "" {
		opts.Indent = "  "
	}
	var buf bytes.Buffer
	if d.root != nil {
		for child := d.root.FirstChild; child != nil; child = child.NextSibling {
			formatNode(&buf, child, 0, opts.Indent)
		}
	}
	return buf.Bytes()
}

// Format formats/pretty-prints XML data.
func Format(data []byte, opts FormatOptions) ([]byte, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return doc.Format(opts), nil
}

// QualifiedName returns prefix:local for n, or local when unprefixed.
func QualifiedName(n *xmlquery.Node) string {
	if n.Prefix != "" {
		return n.Prefix + ":" + n.Data
	}
	return n.Data
}

// AttrName renders an attribute name the way it is written in markup.
func AttrName(name xml.Name) string {
	switch name.Space {
	case "":
		return name.Local
	case XMLNamespace:
		return "xml:" + name.Local
	default:
		return name.Space + ":" + name.Local
	}
}

// SplitName splits "prefix:local" into its parts.
func SplitName(name string) (prefix, local string) {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// SortedAttrs turns an attribute map into xmlquery attributes ordered by name.
func SortedAttrs(attrib map[string]string) []xmlquery.Attr {
	names := make([]string, 0, len(attrib))
	for name := range attrib {
		names = append(names, name)
	}
	sort.Strings(names)

	attrs := make([]xmlquery.Attr, 0, len(names))
	for _, name := range names {
		prefix, local := SplitName(name)
		attrs = append(attrs, xmlquery.Attr{
			Name:  xml.Name{Space: prefix, Local: local},
			Value: attrib[name],
		})
	}
	return attrs
}


// formatNode writes n on its own line at depth and recurses into elements
// whose content is layout only.
func formatNode(w *bytes.Buffer, n *xmlquery.Node, depth int, indent string) {
	if isLayout(n) {
		return
	}
	writeIndent(w, depth, indent)
	if n.Type != xmlquery.ElementNode || n.FirstChild == nil || hasCharData(n) {
		w.Write(Marshal(n))
		w.WriteString("\n")
		return
	}

	w.WriteString("<")
	w.WriteString(QualifiedName(n))
	for _, attr := range n.Attr {
		w.WriteString(" ")
		w.WriteString(AttrName(attr.Name))
		w.WriteString("=\"")
		w.WriteString(encoding.EscapeXMLAttr(attr.Value))
		w.WriteString("\"")
	}
	w.WriteString(">\n")
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		formatNode(w, child, depth+1, indent)
	}
	writeIndent(w, depth, indent)
	w.WriteString("</")
	w.WriteString(QualifiedName(n))
	w.WriteString(">\n")
}

// isLayout reports whether n is whitespace containing a line break.
func isLayout(n *xmlquery.Node) bool {
	return n.Type == xmlquery.TextNode &&
		strings.TrimSpace(n.Data) == "" &&
		strings.ContainsAny(n.Data, "\r\n")
}

// hasCharData reports whether n has a text or CDATA child that is not layout.
func hasCharData(n *xmlquery.Node) bool {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case xmlquery.TextNode:
			if !isLayout(child) {
				return true
			}
		case xmlquery.CharDataNode:
			return true
		}
	}
	return false
}

func writeIndent(w *bytes.Buffer, depth int, indent string) {
	for i := 0; i < depth; i++ {
		w.WriteString(indent)
	}
}
