package translate

import "unicode/utf8"

const (
	DefaultMaxItems = 50
	DefaultMaxChars = 12000
)

// Limits bound a single request. Zero values fall back to the defaults.
type Limits struct {
	MaxItems int
	MaxChars int // counted in runes
}

func (l Limits) normalized() Limits {
	if l.MaxItems <= 0 {
		l.MaxItems = DefaultMaxItems
	}
	if l.MaxChars <= 0 {
		l.MaxChars = DefaultMaxChars
	}
	return l
}

// Batch is the half-open index range [Start, End) of one request.
type Batch struct {
	Start int
	End   int
}

func (b Batch) Len() int {
	return b.End - b.Start
}

// Partition splits lines into contiguous batches greedily: items are added
// until the next one would exceed either limit. An item larger than
// MaxChars on its own still gets a batch of its own.
func Partition(lines []string, limits Limits) []Batch {
	limits = limits.normalized()

	var batches []Batch
	start, chars := 0, 0
	for i, line := range lines {
		n := utf8.RuneCountInString(line)
		if i > start && (i-start >= limits.MaxItems || chars+n > limits.MaxChars) {
			batches = append(batches, Batch{Start: start, End: i})
			start, chars = i, 0
		}
		chars += n
	}
	if start < len(lines) {
		batches = append(batches, Batch{Start: start, End: len(lines)})
	}
	return batches
}
