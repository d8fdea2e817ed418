package translate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var jsonBlockRegex = regexp.MustCompile("```(?:json)?\\s*")

func cleanJSONResponse(s string) string {
	s = strings.TrimSpace(s)
	s = jsonBlockRegex.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// fixes invalid JSON escape sequences such as \N, keeping the literal
// backslash in the decoded text.
func fixInvalidEscapes(s string) string {
	var result strings.Builder
	result.Grow(len(s))

	i := 0
	for i < len(s) {
		if i < len(s)-1 && s[i] == '\\' {
			next := s[i+1]
			switch next {
			case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
				result.WriteByte(s[i])
				result.WriteByte(next)
			default:
				result.WriteString("\\\\")
				result.WriteByte(next)
			}
			i += 2
		} else {
			result.WriteByte(s[i])
			i++
		}
	}

	return result.String()
}

// parseLines pulls the first usable JSON array of lines out of a model
// response. Markdown fences, leading prose and wrapper objects such as
// {"translations": [...]} are tolerated.
func parseLines(text string) ([]string, error) {
	text = fixInvalidEscapes(cleanJSONResponse(text))

	for i := 0; i < len(text); i++ {
		if text[i] != '[' && text[i] != '{' {
			continue
		}
		decoder := json.NewDecoder(strings.NewReader(text[i:]))
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			continue
		}
		if lines, ok := tryExtractLines(raw); ok && len(lines) > 0 {
			return lines, nil
		}
	}
	return nil, fmt.Errorf(
		"no JSON array of lines found in response: %s",
		truncateString(text, 200),
	)
}

var wrapperKeys = []string{"translations", "results", "lines", "data", "items"}

func tryExtractLines(raw json.RawMessage) ([]string, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		return coerceItems(items)
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, false
	}

	for _, key := range wrapperKeys {
		if fieldRaw, exists := wrapper[key]; exists {
			if err := json.Unmarshal(fieldRaw, &items); err == nil {
				if lines, ok := coerceItems(items); ok {
					return lines, true
				}
			}
		}
	}

	// fall back to any array-valued field, in key order
	keys := make([]string, 0, len(wrapper))
	for k := range wrapper {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := json.Unmarshal(wrapper[key], &items); err == nil {
			if lines, ok := coerceItems(items); ok {
				return lines, true
			}
		}
	}

	return nil, false
}

type indexedItem struct {
	Index       *int    `json:"index"`
	Text        *string `json:"text"`
	Translation *string `json:"translation"`
}

// coerceItems turns array elements into strings. null becomes "", numbers
// and booleans keep their JSON text, and {"index", "text"} objects are
// placed by index when the indices form a permutation.
func coerceItems(items []json.RawMessage) ([]string, bool) {
	lines := make([]string, len(items))
	positions := make([]int, len(items))
	seen := make(map[int]bool, len(items))
	byIndex := true

	for i, item := range items {
		positions[i] = i
		s, idx, ok := coerceItem(item)
		if !ok {
			return nil, false
		}
		lines[i] = s
		if idx == nil || *idx < 0 || *idx >= len(items) || seen[*idx] {
			byIndex = false
			continue
		}
		seen[*idx] = true
		positions[i] = *idx
	}

	if !byIndex {
		return lines, true
	}
	ordered := make([]string, len(lines))
	for i, pos := range positions {
		ordered[pos] = lines[i]
	}
	return ordered, true
}

func coerceItem(raw json.RawMessage) (string, *int, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return "", nil, false
	}

	switch trimmed[0] {
	case 'n':
		return "", nil, trimmed == "null"
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", nil, false
		}
		return s, nil, true
	case '{':
		var obj indexedItem
		if err := json.Unmarshal(raw, &obj); err != nil {
			return "", nil, false
		}
		switch {
		case obj.Text != nil:
			return *obj.Text, obj.Index, true
		case obj.Translation != nil:
			return *obj.Translation, obj.Index, true
		default:
			return "", nil, false
		}
	case '[':
		return "", nil, false
	case 't', 'f':
		b, err := strconv.ParseBool(trimmed)
		if err != nil {
			return "", nil, false
		}
		return strconv.FormatBool(b), nil, true
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", nil, false
		}
		return n.String(), nil, true
	}
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
