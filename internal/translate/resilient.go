package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/mgpai22/ttmltr/internal/logging"
)

type Config struct {
	Limits Limits
	Hints  Hints
	Logger *logging.Logger
}

// Translator wraps a Backend so that a batch of N lines always yields N
// lines. Failed or misaligned batches are bisected down to single lines,
// single lines fall back to a relaxed request, and a line that still
// fails is returned unchanged.
type Translator struct {
	backend Backend
	limits  Limits
	hints   Hints
	logger  *logging.Logger

	calls       atomic.Int64
	bisections  atomic.Int64
	singleLine  atomic.Int64
	passThrough atomic.Int64
}

func NewTranslator(backend Backend, cfg Config) *Translator {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Translator{
		backend: backend,
		limits:  cfg.Limits.normalized(),
		hints:   cfg.Hints,
		logger:  logger,
	}
}

// Stats counts backend activity since the Translator was created.
type Stats struct {
	Calls       int64 // batch requests
	Bisections  int64
	SingleLine  int64 // relaxed single-line requests
	PassThrough int64 // lines returned untranslated
}

func (t *Translator) Stats() Stats {
	return Stats{
		Calls:       t.calls.Load(),
		Bisections:  t.bisections.Load(),
		SingleLine:  t.singleLine.Load(),
		PassThrough: t.passThrough.Load(),
	}
}

// Translate returns exactly len(lines) strings. Blank lines are never sent
// and come back unchanged. The only error is the context's.
func (t *Translator) Translate(
	ctx context.Context,
	lines []string,
	targetLanguage string,
) ([]string, error) {
	out := make([]string, len(lines))
	copy(out, lines)

	var positions []int
	var payload []string
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		positions = append(positions, i)
		payload = append(payload, line)
	}
	if len(payload) == 0 {
		return out, nil
	}

	for _, b := range Partition(payload, t.limits) {
		translated, err := t.translateBatch(ctx, payload[b.Start:b.End], targetLanguage)
		if err != nil {
			return nil, err
		}
		for j, s := range translated {
			out[positions[b.Start+j]] = s
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Translator) translateBatch(
	ctx context.Context,
	batch []string,
	targetLanguage string,
) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	translated, err := t.request(ctx, batch, targetLanguage)
	if err == nil {
		return translated, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	if len(batch) == 1 {
		t.logger.Debugw("Single-line batch failed, retrying relaxed",
			"error", err,
		)
		return []string{t.translateSingle(ctx, batch[0], targetLanguage)}, nil
	}

	t.bisections.Add(1)
	mid := len(batch) / 2
	t.logger.Debugw("Batch failed, bisecting",
		"size", len(batch),
		"error", err,
	)

	left, err := t.translateBatch(ctx, batch[:mid], targetLanguage)
	if err != nil {
		return nil, err
	}
	right, err := t.translateBatch(ctx, batch[mid:], targetLanguage)
	if err != nil {
		return nil, err
	}
	return append(left, right...), nil
}

// request issues one batch call and validates the result's shape.
func (t *Translator) request(
	ctx context.Context,
	batch []string,
	targetLanguage string,
) ([]string, error) {
	t.calls.Add(1)

	var got []string
	var err error
	if hb, ok := t.backend.(HintedBackend); ok && !t.hints.IsZero() {
		got, err = hb.TranslateLinesWithHints(ctx, batch, targetLanguage, t.hints)
	} else {
		got, err = t.backend.TranslateLines(ctx, batch, targetLanguage)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	if len(got) != len(batch) {
		return nil, fmt.Errorf(
			"%w: expected %d lines, got %d",
			ErrInvalidResponse,
			len(batch),
			len(got),
		)
	}

	// own the slice so bisection can append to it
	lines := make([]string, len(got))
	copy(lines, got)
	return lines, nil
}

func (t *Translator) translateSingle(
	ctx context.Context,
	line string,
	targetLanguage string,
) string {
	t.singleLine.Add(1)

	translated, err := t.requestLine(ctx, line, targetLanguage)
	if err != nil {
		t.passThrough.Add(1)
		if !errors.Is(err, context.Canceled) {
			t.logger.Warnw("Line left untranslated",
				"line", truncateString(line, 80),
				"error", err,
			)
		}
		return line
	}
	return translated
}

func (t *Translator) requestLine(
	ctx context.Context,
	line string,
	targetLanguage string,
) (string, error) {
	var translated string
	if lb, ok := t.backend.(LineBackend); ok {
		s, err := lb.TranslateLine(ctx, line, targetLanguage)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrUntranslatable, err)
		}
		translated = s
	} else {
		got, err := t.backend.TranslateLines(ctx, []string{line}, targetLanguage)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrUntranslatable, err)
		}
		if len(got) == 0 {
			return "", fmt.Errorf("%w: empty response", ErrUntranslatable)
		}
		translated = got[0]
	}

	translated = strings.TrimSpace(translated)
	if translated == "" {
		return "", fmt.Errorf("%w: blank translation", ErrUntranslatable)
	}
	return translated, nil
}
