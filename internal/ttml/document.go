package ttml

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/antchfx/xmlquery"
)

// Namespaces used by TTML documents in the wild.
const (
	NamespaceTT     = "http://www.w3.org/ns/ttml"
	NamespaceTTS    = "http://www.w3.org/ns/ttml#styling"
	NamespaceTTM    = "http://www.w3.org/ns/ttml#metadata"
	NamespaceTTP    = "http://www.w3.org/ns/ttml#parameter"
	NamespaceEBUTTS = "urn:ebu:tt:style"
	NamespaceTTVA   = "http://skynav.com/ns/ttv/annotations"

	namespaceXML = "http://www.w3.org/XML/1998/namespace"
)

// Vocabulary names the element kinds that carry cue text.
type Vocabulary struct {
	Namespace string // empty matches any namespace
	Container string
	Span      string
	LineBreak string
}

// DefaultVocabulary is the TTML p/span/br vocabulary.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Namespace: NamespaceTT,
		Container: "p",
		Span:      "span",
		LineBreak: "br",
	}
}

func (v Vocabulary) is(n *xmlquery.Node, local string) bool {
	if n == nil || n.Type != xmlquery.ElementNode || n.Data != local {
		return false
	}
	return v.Namespace == "" || n.NamespaceURI == v.Namespace
}

// Document is a parsed timed-text document. A Document is not safe for
// concurrent mutation; callers translating into several languages work on
// separate copies (see Clone).
type Document struct {
	root  *xmlquery.Node
	vocab Vocabulary

	// false when the parser added an XML declaration the input did not have
	declared bool
}

// Parse parses TTML bytes using the default vocabulary.
func Parse(data []byte) (*Document, error) {
	return ParseWithVocabulary(data, DefaultVocabulary())
}

func ParseWithVocabulary(data []byte, vocab Vocabulary) (*Document, error) {
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTML: %w", err)
	}
	return &Document{root: root, vocab: vocab, declared: hasDeclaration(data)}, nil
}

var utf8BOM = []byte("\xef\xbb\xbf")

func hasDeclaration(data []byte) bool {
	data = bytes.TrimLeft(bytes.TrimPrefix(data, utf8BOM), " \t\r\n")
	if !bytes.HasPrefix(data, []byte("<?xml")) || len(data) == len("<?xml") {
		return false
	}
	switch data[len("<?xml")] {
	case ' ', '\t', '\r', '\n', '?':
		return true
	}
	return false
}

func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read TTML file: %w", err)
	}
	return Parse(data)
}

// Clone returns an independent copy of the document in its current state.
func (d *Document) Clone() (*Document, error) {
	return ParseWithVocabulary(d.Bytes(), d.vocab)
}

func (d *Document) Vocabulary() Vocabulary {
	return d.vocab
}

// Root returns the document element, or nil for an empty document.
func (d *Document) Root() *xmlquery.Node {
	for child := d.root.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return child
		}
	}
	return nil
}

// Validate checks that the document element is a TTML tt element.
func (d *Document) Validate() error {
	root := d.Root()
	if root == nil {
		return fmt.Errorf("document has no root element")
	}
	if !d.vocab.is(root, "tt") {
		return fmt.Errorf(
			"unexpected root element %q (namespace %q): expected tt",
			root.Data,
			root.NamespaceURI,
		)
	}
	return nil
}

// Bytes serializes the document.
func (d *Document) Bytes() []byte {
	var buf bytes.Buffer
	sc := newScope(nil)
	for child := d.root.FirstChild; child != nil; child = child.NextSibling {
		if !d.declared && child.Type == xmlquery.DeclarationNode && child.Data == "xml" {
			continue
		}
		writeNode(&buf, child, sc)
	}
	return buf.Bytes()
}

// WriteTo implements io.WriterTo.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(d.Bytes())
	return int64(n), err
}

func (d *Document) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return os.WriteFile(path, d.Bytes(), 0644)
}
