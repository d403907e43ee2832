package format

import (
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// AdviceToHTML renders markdown advice as HTML. Raw HTML in the input is
// dropped so model output cannot inject markup into the page.
func AdviceToHTML(advice string) string {
	advice = PreprocessAdvice(advice)
	if advice == "" {
		return ""
	}

	md := []byte(normalizeMarkdownLists(advice))

	p := parser.NewWithExtensions(parser.CommonExtensions | parser.NoEmptyLineBeforeBlock)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.SkipHTML | html.HrefTargetBlank | html.NofollowLinks | html.NoreferrerLinks,
	})

	return strings.TrimSpace(string(markdown.ToHTML(md, p, renderer)))
}

// normalizeMarkdownLists ensures list items have proper spacing for markdown parsing.
// Markdown requires a blank line before lists, but LLMs often forget this.
func normalizeMarkdownLists(text string) string {
	lines := strings.Split(text, "\n")
	result := make([]string, 0, len(lines))

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isListItem(trimmed) && i > 0 {
			prev := strings.TrimSpace(lines[i-1])
			if prev != "" && !isListItem(prev) {
				result = append(result, "")
			}
		}
		result = append(result, line)
	}

	return strings.Join(result, "\n")
}
