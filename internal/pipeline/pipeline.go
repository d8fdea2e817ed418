// Package pipeline translates whole TTML documents: it extracts cue text,
// sends it through a line translator and writes the results back in place.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/mgpai22/ttmltr/internal/logging"
	"github.com/mgpai22/ttmltr/internal/ttml"
)

// LineTranslator is satisfied by *translate.Translator.
type LineTranslator interface {
	Translate(ctx context.Context, lines []string, targetLanguage string) ([]string, error)
}

// Warning describes a container left untouched.
type Warning struct {
	Container int // index among the document's containers
	Err       error
}

func (w Warning) String() string {
	return fmt.Sprintf("container %d: %v", w.Container, w.Err)
}

type Result struct {
	Lines   int // text slots rewritten
	Units   int // containers rewritten
	Skipped []Warning
}

type Pipeline struct {
	translator LineTranslator
	logger     *logging.Logger
}

func New(translator LineTranslator, logger *logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Pipeline{translator: translator, logger: logger}
}

// TranslateDocument rewrites doc in place. All cue lines go out in one
// Translate call; if the answer does not line up with the document, each
// container is retried on its own and containers that still do not line
// up are skipped, never partially rewritten.
func (p *Pipeline) TranslateDocument(
	ctx context.Context,
	doc *ttml.Document,
	targetLanguage string,
) (Result, error) {
	var active []ttml.Unit
	var positions []int
	for i, u := range doc.Extract() {
		if len(u.Locations) == 0 || u.Blank() {
			continue
		}
		active = append(active, u)
		positions = append(positions, i)
	}
	if len(active) == 0 {
		return Result{}, nil
	}

	lines := ttml.Lines(active)
	translated, err := p.translator.Translate(ctx, lines, targetLanguage)
	if err != nil {
		return Result{}, err
	}

	err = ttml.Rewrite(ttml.Locations(active), translated)
	if err == nil {
		return Result{Lines: len(lines), Units: len(active)}, nil
	}
	if !errors.Is(err, ttml.ErrStructuralMismatch) {
		return Result{}, err
	}

	p.logger.Warnw("Document translation did not line up, retrying per container",
		"lang", targetLanguage,
		"error", err,
	)
	return p.translateUnits(ctx, active, positions, targetLanguage)
}

func (p *Pipeline) translateUnits(
	ctx context.Context,
	units []ttml.Unit,
	positions []int,
	targetLanguage string,
) (Result, error) {
	var res Result
	for k, u := range units {
		translated, err := p.translator.Translate(ctx, u.Lines(), targetLanguage)
		if err != nil {
			return res, err
		}
		if err := ttml.Rewrite(u.Locations, translated); err != nil {
			w := Warning{Container: positions[k], Err: err}
			p.logger.Warnw("Skipping container", "lang", targetLanguage, "reason", w.String())
			res.Skipped = append(res.Skipped, w)
			continue
		}
		res.Lines += len(u.Locations)
		res.Units++
	}
	return res, nil
}
