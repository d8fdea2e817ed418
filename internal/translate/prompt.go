package translate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// BuildPrompt creates the batch translation prompt for LLM providers.
func BuildPrompt(opts Options, lines []string, targetLanguage string) string {
	var sb strings.Builder

	sb.WriteString("You are a professional subtitle translator.\n")
	if opts.SourceLanguage != "" {
		sb.WriteString(fmt.Sprintf(
			"Translate each input line from %s to %s using the most natural phrasing for TV/film dialogue.\n\n",
			opts.SourceLanguage,
			targetLanguage,
		))
	} else {
		sb.WriteString(fmt.Sprintf(
			"Translate each input line to %s using the most natural phrasing for TV/film dialogue.\n\n",
			targetLanguage,
		))
	}

	sb.WriteString("IMPORTANT INSTRUCTIONS:\n")
	sb.WriteString(
		"1. Return ONLY a JSON array of strings, the same length and order as the input.\n",
	)
	sb.WriteString("2. Do not add or remove lines, do not merge or split lines.\n")
	sb.WriteString(
		"3. Preserve speaker intent, tone, and register. Keep punctuation natural.\n",
	)
	sb.WriteString("4. Do not add any explanation or markdown formatting.\n\n")

	if opts.Prompt != "" {
		sb.WriteString(
			fmt.Sprintf("Additional instructions: %s\n\n", opts.Prompt),
		)
	}

	sb.WriteString("Input JSON:\n")
	sb.Write(encodeLines(lines))
	sb.WriteString("\n\nOutput the translated JSON array only:")

	return sb.String()
}

// BuildLinePrompt creates the relaxed plain-text prompt for one line.
func BuildLinePrompt(opts Options, line string, targetLanguage string) string {
	var sb strings.Builder
	if opts.SourceLanguage != "" {
		sb.WriteString(fmt.Sprintf(
			"Translate the following %s subtitle line to %s. Return only the translation.",
			opts.SourceLanguage,
			targetLanguage,
		))
	} else {
		sb.WriteString(fmt.Sprintf(
			"Translate the following subtitle line to %s. Return only the translation.",
			targetLanguage,
		))
	}
	if opts.Prompt != "" {
		sb.WriteString(fmt.Sprintf("\nAdditional instructions: %s", opts.Prompt))
	}
	sb.WriteString("\n\nLine: ")
	sb.WriteString(line)
	return sb.String()
}

// encodes lines as a JSON array without HTML escaping
func encodeLines(lines []string) []byte {
	if lines == nil {
		lines = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(lines)
	return bytes.TrimRight(buf.Bytes(), "\n")
}
