package ai

import (
	"regexp"
	"strings"
)

var (
	metaPrefixPattern = regexp.MustCompile(`(?is)^\s*the tweet starts with[^:]*:\s*`)
	examplePattern    = regexp.MustCompile(`(?i)\bexample\s*:`)
)

// BuildPrompt substitutes the trend into the prompt template
func BuildPrompt(template, trend string) string {
	return strings.ReplaceAll(template, "{trend}", trend)
}

// CleanGeneration strips what models tend to wrap around the answer: an
// echo of the prompt, a "The tweet starts with ...:" preamble and a
// trailing "Example:" section.
func CleanGeneration(text, prompt string) string {
	text = strings.TrimSpace(text)

	if p := strings.TrimSpace(prompt); p != "" && strings.HasPrefix(text, p) {
		text = strings.TrimSpace(text[len(p):])
	}

	text = metaPrefixPattern.ReplaceAllString(text, "")

	if loc := examplePattern.FindStringIndex(text); loc != nil {
		text = text[:loc[0]]
	}

	return strings.TrimSpace(text)
}
