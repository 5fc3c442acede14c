package standoff

import (
	stdxml "encoding/xml"

	"github.com/antchfx/xmlquery"
)

func xmlName(space, local string) stdxml.Name {
	return stdxml.Name{Space: space, Local: local}
}

// detach unlinks n from its parent and siblings.
func detach(n *xmlquery.Node) {
	if n.PrevSibling != nil {
		n.PrevSibling.NextSibling = n.NextSibling
	} else if n.Parent != nil {
		n.Parent.FirstChild = n.NextSibling
	}
	if n.NextSibling != nil {
		n.NextSibling.PrevSibling = n.PrevSibling
	} else if n.Parent != nil {
		n.Parent.LastChild = n.PrevSibling
	}
	n.Parent, n.PrevSibling, n.NextSibling = nil, nil, nil
}

// insertAt links n into parent right after the child after, or as the first
// child when after is nil.
func insertAt(parent, after, n *xmlquery.Node) {
	n.Parent = parent
	n.PrevSibling = after
	if after == nil {
		n.NextSibling = parent.FirstChild
		parent.FirstChild = n
	} else {
		n.NextSibling = after.NextSibling
		after.NextSibling = n
	}
	if n.NextSibling != nil {
		n.NextSibling.PrevSibling = n
	} else {
		parent.LastChild = n
	}
}

// wrapRange moves the sibling run first..last under el, which takes the
// run's place in the tree.
func wrapRange(first, last, el *xmlquery.Node) {
	parent := first.Parent
	prev, next := first.PrevSibling, last.NextSibling

	el.Parent, el.PrevSibling, el.NextSibling = parent, prev, next
	if prev != nil {
		prev.NextSibling = el
	} else {
		parent.FirstChild = el
	}
	if next != nil {
		next.PrevSibling = el
	} else {
		parent.LastChild = el
	}

	el.FirstChild, el.LastChild = first, last
	first.PrevSibling, last.NextSibling = nil, nil
	for n := first; n != nil; n = n.NextSibling {
		n.Parent = el
	}
}

// splitText cuts the content node at the rune offset k. The original node
// keeps [0, k); the returned node holds the rest and follows it. Units from
// first onwards that pointed into the right half are re-pointed.
func (t *Table) splitText(n *xmlquery.Node, k int, first Position) *xmlquery.Node {
	runes := []rune(n.Data)
	right := &xmlquery.Node{Type: n.Type, Data: string(runes[k:])}
	n.Data = string(runes[:k])
	insertAt(n.Parent, n, right)

	for i := 0; i < len(runes)-k; i++ {
		u := &t.units[int(first)+i]
		u.node = right
		u.offset -= k
	}
	return right
}
