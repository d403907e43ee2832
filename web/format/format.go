package format

import (
	"regexp"
	"strings"
)

var (
	// Some chat templates leak reasoning blocks into the reply.
	thinkBlockPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)
	blankRunPattern   = regexp.MustCompile(`\n{3,}`)
	numberedPattern   = regexp.MustCompile(`^\d+\.\s`)
)

// PreprocessAdvice normalizes LLM output before it is returned or rendered.
func PreprocessAdvice(text string) string {
	if text == "" {
		return text
	}

	text = thinkBlockPattern.ReplaceAllString(text, "")

	// Replace curly quotes (helps readability)
	text = strings.NewReplacer(
		"\u201c", "\"",
		"\u201d", "\"",
		"\u2018", "'",
		"\u2019", "'",
		"\r\n", "\n",
	).Replace(text)

	text = blankRunPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func isListItem(line string) bool {
	return strings.HasPrefix(line, "- ") ||
		strings.HasPrefix(line, "* ") ||
		strings.HasPrefix(line, "+ ") ||
		numberedPattern.MatchString(line)
}
