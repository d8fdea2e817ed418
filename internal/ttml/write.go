package ttml

import (
	"bytes"
	"strings"

	"github.com/antchfx/xmlquery"
)

var (
	attrEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		`"`, "&quot;",
		"\n", "&#xA;",
		"\r", "&#xD;",
		"\t", "&#x9;",
	)
)

// scope maps namespace URIs to the prefixes declared on ancestors, so
// attributes whose namespace was not folded back into a prefix by the
// parser still serialize with their original binding.
type scope struct {
	parent   *scope
	prefixes map[string]string
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent}
}

func (s *scope) declare(uri, prefix string) {
	if s.prefixes == nil {
		s.prefixes = make(map[string]string)
	}
	s.prefixes[uri] = prefix
}

func (s *scope) lookup(uri string) (string, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if p, ok := cur.prefixes[uri]; ok && p != "" {
			return p, true
		}
	}
	return "", false
}

func writeNode(w *bytes.Buffer, n *xmlquery.Node, sc *scope) {
	switch n.Type {
	case xmlquery.DocumentNode:
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			writeNode(w, child, sc)
		}

	case xmlquery.DeclarationNode:
		w.WriteString("<?")
		w.WriteString(n.Data)
		for _, attr := range n.Attr {
			w.WriteString(" ")
			w.WriteString(attr.Name.Local)
			w.WriteString(`="`)
			w.WriteString(attrEscaper.Replace(attr.Value))
			w.WriteString(`"`)
		}
		w.WriteString("?>")

	case xmlquery.ElementNode:
		inner := newScope(sc)
		for _, attr := range n.Attr {
			switch {
			case attr.Name.Space == "xmlns":
				inner.declare(attr.Value, attr.Name.Local)
			case attr.Name.Space == "" && attr.Name.Local == "xmlns":
				inner.declare(attr.Value, "")
			}
		}

		name := elementName(n)
		w.WriteString("<")
		w.WriteString(name)
		for _, attr := range n.Attr {
			w.WriteString(" ")
			w.WriteString(attrName(attr, inner))
			w.WriteString(`="`)
			w.WriteString(attrEscaper.Replace(attr.Value))
			w.WriteString(`"`)
		}

		if n.FirstChild == nil {
			w.WriteString("/>")
			return
		}
		w.WriteString(">")
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			writeNode(w, child, inner)
		}
		w.WriteString("</")
		w.WriteString(name)
		w.WriteString(">")

	case xmlquery.ProcessingInstruction:
		w.WriteString("<?")
		if n.ProcInst != nil {
			w.WriteString(n.ProcInst.Target)
			if n.ProcInst.Inst != "" {
				w.WriteString(" ")
				w.WriteString(n.ProcInst.Inst)
			}
		} else {
			w.WriteString(n.Data)
		}
		w.WriteString("?>")

	case xmlquery.TextNode:
		writeText(w, n.Data)

	case xmlquery.CharDataNode:
		// "]]>" cannot appear inside a section, so it is split across two
		w.WriteString("<![CDATA[")
		w.WriteString(strings.ReplaceAll(dropInvalidChars(n.Data), "]]>", "]]]]><![CDATA[>"))
		w.WriteString("]]>")

	case xmlquery.CommentNode:
		w.WriteString("<!--")
		w.WriteString(n.Data)
		w.WriteString("-->")

	case xmlquery.NotationNode:
		w.WriteString("<!")
		w.WriteString(n.Data)
		w.WriteString(">")
	}
}

// writeText escapes markup characters and carriage returns, and drops
// characters XML 1.0 does not allow.
func writeText(w *bytes.Buffer, s string) {
	for _, r := range s {
		switch {
		case r == '&':
			w.WriteString("&amp;")
		case r == '<':
			w.WriteString("&lt;")
		case r == '>':
			w.WriteString("&gt;")
		case r == '\r':
			w.WriteString("&#xD;")
		case !isXMLChar(r):
			// dropped
		default:
			w.WriteRune(r)
		}
	}
}

func dropInvalidChars(s string) string {
	return strings.Map(func(r rune) rune {
		if isXMLChar(r) {
			return r
		}
		return -1
	}, s)
}

func isXMLChar(r rune) bool {
	switch {
	case r == 0x09, r == 0x0A, r == 0x0D:
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}

func elementName(n *xmlquery.Node) string {
	if n.Prefix != "" {
		return n.Prefix + ":" + n.Data
	}
	return n.Data
}

func attrName(attr xmlquery.Attr, sc *scope) string {
	space := attr.Name.Space
	switch {
	case space == "":
		return attr.Name.Local
	case space == "xmlns", space == "xml":
		return space + ":" + attr.Name.Local
	case space == namespaceXML:
		return "xml:" + attr.Name.Local
	}
	if prefix, ok := sc.lookup(space); ok {
		return prefix + ":" + attr.Name.Local
	}
	return space + ":" + attr.Name.Local
}
