package ttml

import (
	"fmt"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// Stats summarises the cue structure of a document.
type Stats struct {
	Language   string
	Containers int
	Spans      int
	LineBreaks int
	Locations  int
	BlankUnits int
}

var rootLangExpr = xpath.MustCompile(`string(/*/@*[local-name()='lang'])`)

// Stats counts cue elements with XPath and text slots with Extract.
func (d *Document) Stats() (Stats, error) {
	var st Stats
	var err error

	nav := xmlquery.CreateXPathNavigator(d.root)
	if lang, ok := rootLangExpr.Evaluate(nav).(string); ok {
		st.Language = lang
	}

	if st.Containers, err = d.count(d.vocab.Container); err != nil {
		return Stats{}, err
	}
	if st.Spans, err = d.count(d.vocab.Span); err != nil {
		return Stats{}, err
	}
	if st.LineBreaks, err = d.count(d.vocab.LineBreak); err != nil {
		return Stats{}, err
	}

	for _, u := range d.Extract() {
		st.Locations += len(u.Locations)
		if u.Blank() {
			st.BlankUnits++
		}
	}
	return st, nil
}

func (d *Document) count(local string) (int, error) {
	expr, err := xpath.Compile(d.vocab.countExpr(local))
	if err != nil {
		return 0, fmt.Errorf("invalid xpath for %q: %w", local, err)
	}
	nav := xmlquery.CreateXPathNavigator(d.root)
	n, ok := expr.Evaluate(nav).(float64)
	if !ok {
		return 0, fmt.Errorf("xpath count for %q did not return a number", local)
	}
	return int(n), nil
}

func (v Vocabulary) countExpr(local string) string {
	if v.Namespace == "" {
		return fmt.Sprintf("count(//*[local-name()='%s'])", local)
	}
	return fmt.Sprintf(
		"count(//*[local-name()='%s' and namespace-uri()='%s'])",
		local,
		v.Namespace,
	)
}
