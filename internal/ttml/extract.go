package ttml

import (
	"errors"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
)

// ErrStructuralMismatch reports that a set of replacement lines does not
// line up one-to-one with the locations they were meant for.
var ErrStructuralMismatch = errors.New("structural mismatch")

// Field selects which text slot of an element a Location refers to.
type Field int

const (
	// FieldText is the text before the element's first child element.
	FieldText Field = iota
	// FieldTail is the text between the element and its next sibling element.
	FieldTail
)

func (f Field) String() string {
	if f == FieldTail {
		return "tail"
	}
	return "text"
}

// Location points at one text slot in the document tree. It holds no copy
// of the text; Get and Set always go through the tree.
type Location struct {
	Element *xmlquery.Node
	Field   Field
}

// Get returns the current value of the slot. A missing slot reads as "".
func (l Location) Get() string {
	run := l.run()
	if len(run) == 1 {
		return run[0].Data
	}
	var sb strings.Builder
	for _, n := range run {
		sb.WriteString(n.Data)
	}
	return sb.String()
}

// Set overwrites the slot, creating a text node if the slot was empty.
func (l Location) Set(s string) {
	run := l.run()
	if len(run) == 0 {
		if s == "" {
			return
		}
		n := &xmlquery.Node{Type: xmlquery.TextNode, Data: s}
		if l.Field == FieldTail {
			insertAfter(l.Element, n)
		} else {
			insertFirstChild(l.Element, n)
		}
		return
	}
	if run[0].Type == xmlquery.CharDataNode && (strings.Contains(s, "]]>") || strings.ContainsRune(s, '\r')) {
		run[0].Type = xmlquery.TextNode
	}
	run[0].Data = s
	for _, extra := range run[1:] {
		detach(extra)
	}
}

func (l Location) String() string {
	return fmt.Sprintf("<%s>.%s", elementName(l.Element), l.Field)
}

// run collects the contiguous text/CDATA nodes backing the slot.
func (l Location) run() []*xmlquery.Node {
	start := l.Element.FirstChild
	if l.Field == FieldTail {
		start = l.Element.NextSibling
	}
	var run []*xmlquery.Node
	for n := start; n != nil && isText(n); n = n.NextSibling {
		run = append(run, n)
	}
	return run
}

// Unit is one container and the text slots found inside it.
type Unit struct {
	Container *xmlquery.Node
	Locations []Location
}

// Lines reads the unit's current text values in location order.
func (u Unit) Lines() []string {
	lines := make([]string, len(u.Locations))
	for i, loc := range u.Locations {
		lines[i] = loc.Get()
	}
	return lines
}

// Blank reports whether the unit has nothing worth translating.
func (u Unit) Blank() bool {
	for _, loc := range u.Locations {
		if !IsBlank(loc.Get()) {
			return false
		}
	}
	return true
}

// Extract walks the document in pre-order and returns one Unit per
// container, in document order. Containers are not descended into.
func (d *Document) Extract() []Unit {
	var units []Unit
	walk(d.root, func(n *xmlquery.Node) bool {
		if !d.vocab.is(n, d.vocab.Container) {
			return true
		}
		units = append(units, Unit{
			Container: n,
			Locations: d.vocab.locations(n),
		})
		return false
	})
	return units
}

// locations lists the text slots of a single container:
// spans if there are any, otherwise the container's own text, plus the
// tails of line breaks that are not followed by a span.
func (v Vocabulary) locations(p *xmlquery.Node) []Location {
	hasSpan := false
	for c := p.FirstChild; c != nil; c = c.NextSibling {
		if v.is(c, v.Span) {
			hasSpan = true
			break
		}
	}

	var locs []Location
	if !hasSpan {
		own := Location{Element: p, Field: FieldText}
		if !IsBlank(own.Get()) {
			locs = append(locs, own)
		}
	}

	for c := p.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case v.is(c, v.Span):
			locs = append(locs, Location{Element: c, Field: FieldText})
		case v.is(c, v.LineBreak):
			tail := Location{Element: c, Field: FieldTail}
			if IsBlank(tail.Get()) || v.is(nextElement(c), v.Span) {
				continue
			}
			locs = append(locs, tail)
		}
	}
	return locs
}

// Lines flattens the units' current values into one ordered sequence.
func Lines(units []Unit) []string {
	var lines []string
	for _, u := range units {
		lines = append(lines, u.Lines()...)
	}
	return lines
}

// Locations flattens the units' slots in the same order as Lines.
func Locations(units []Unit) []Location {
	var locs []Location
	for _, u := range units {
		locs = append(locs, u.Locations...)
	}
	return locs
}

// Rewrite writes lines[i] into locs[i]. Nothing is written unless the
// lengths match.
func Rewrite(locs []Location, lines []string) error {
	if len(locs) != len(lines) {
		return fmt.Errorf(
			"%w: %d locations, %d lines",
			ErrStructuralMismatch,
			len(locs),
			len(lines),
		)
	}
	for i, loc := range locs {
		loc.Set(lines[i])
	}
	return nil
}

// IsBlank reports whether s is empty or whitespace only.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func isText(n *xmlquery.Node) bool {
	return n.Type == xmlquery.TextNode || n.Type == xmlquery.CharDataNode
}

func nextElement(n *xmlquery.Node) *xmlquery.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == xmlquery.ElementNode {
			return s
		}
	}
	return nil
}

// walk visits n and its descendants in pre-order. Returning false from
// visit skips the node's children.
func walk(n *xmlquery.Node, visit func(*xmlquery.Node) bool) {
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func insertFirstChild(parent, n *xmlquery.Node) {
	n.Parent = parent
	n.PrevSibling = nil
	n.NextSibling = parent.FirstChild
	if parent.FirstChild != nil {
		parent.FirstChild.PrevSibling = n
	} else {
		parent.LastChild = n
	}
	parent.FirstChild = n
}

func insertAfter(ref, n *xmlquery.Node) {
	n.Parent = ref.Parent
	n.PrevSibling = ref
	n.NextSibling = ref.NextSibling
	if ref.NextSibling != nil {
		ref.NextSibling.PrevSibling = n
	} else if ref.Parent != nil {
		ref.Parent.LastChild = n
	}
	ref.NextSibling = n
}

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
