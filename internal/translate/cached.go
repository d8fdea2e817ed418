package translate

import (
	"context"
	"fmt"
)

// Memory stores translations keyed by scope, target language and source
// text. internal/cache provides the SQLite implementation.
type Memory interface {
	Lookup(
		ctx context.Context,
		scope string,
		targetLanguage string,
		texts []string,
	) (map[string]string, error)
	Save(
		ctx context.Context,
		scope string,
		targetLanguage string,
		translations map[string]string,
	) error
}

// Cached serves known lines from Memory and forwards the rest. Only
// results that line up with the request are saved. Memory errors degrade
// to cache misses.
type Cached struct {
	backend Backend
	memory  Memory
	scope   string
}

func NewCached(backend Backend, memory Memory, scope string) *Cached {
	return &Cached{backend: backend, memory: memory, scope: scope}
}

func (c *Cached) TranslateLines(
	ctx context.Context,
	lines []string,
	targetLanguage string,
) ([]string, error) {
	return c.translate(ctx, lines, targetLanguage, nil)
}

func (c *Cached) TranslateLinesWithHints(
	ctx context.Context,
	lines []string,
	targetLanguage string,
	hints Hints,
) ([]string, error) {
	return c.translate(ctx, lines, targetLanguage, &hints)
}

func (c *Cached) TranslateLine(
	ctx context.Context,
	line string,
	targetLanguage string,
) (string, error) {
	scope := c.scopeFor(nil)
	if hits, err := c.memory.Lookup(ctx, scope, targetLanguage, []string{line}); err == nil {
		if s, ok := hits[line]; ok {
			return s, nil
		}
	}

	var translated string
	if lb, ok := c.backend.(LineBackend); ok {
		s, err := lb.TranslateLine(ctx, line, targetLanguage)
		if err != nil {
			return "", err
		}
		translated = s
	} else {
		got, err := c.backend.TranslateLines(ctx, []string{line}, targetLanguage)
		if err != nil {
			return "", err
		}
		if len(got) != 1 {
			return "", fmt.Errorf("%w: expected 1 line, got %d", ErrInvalidResponse, len(got))
		}
		translated = got[0]
	}

	if translated != "" {
		_ = c.memory.Save(ctx, scope, targetLanguage, map[string]string{line: translated})
	}
	return translated, nil
}

func (c *Cached) translate(
	ctx context.Context,
	lines []string,
	targetLanguage string,
	hints *Hints,
) ([]string, error) {
	scope := c.scopeFor(hints)
	out := make([]string, len(lines))

	hits, err := c.memory.Lookup(ctx, scope, targetLanguage, lines)
	if err != nil {
		hits = nil
	}

	var missing []int
	var pending []string
	for i, line := range lines {
		if s, ok := hits[line]; ok {
			out[i] = s
			continue
		}
		missing = append(missing, i)
		pending = append(pending, line)
	}
	if len(pending) == 0 {
		return out, nil
	}

	var got []string
	hb, hinted := c.backend.(HintedBackend)
	if hints != nil && hinted {
		got, err = hb.TranslateLinesWithHints(ctx, pending, targetLanguage, *hints)
	} else {
		got, err = c.backend.TranslateLines(ctx, pending, targetLanguage)
	}
	if err != nil {
		return nil, err
	}
	if len(got) != len(pending) {
		return nil, fmt.Errorf(
			"%w: expected %d lines, got %d",
			ErrInvalidResponse,
			len(pending),
			len(got),
		)
	}

	fresh := make(map[string]string, len(pending))
	for j, i := range missing {
		out[i] = got[j]
		fresh[pending[j]] = got[j]
	}
	_ = c.memory.Save(ctx, scope, targetLanguage, fresh)
	return out, nil
}

func (c *Cached) scopeFor(hints *Hints) string {
	if hints == nil || hints.IsZero() {
		return c.scope
	}
	return c.scope + "|" + hints.SourceLanguage + "|" + hints.Model
}

func (c *Cached) Close() error {
	if closer, ok := c.backend.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
