package rag

import (
	"strings"

	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"
)

type SentenceSplitter interface {
	Split(text string) []string
}

// ProseSentenceSplitter segments text with prose's sentence boundary
// detector, which copes with abbreviations such as "approx." or "St.". It
// falls back to RegexSentenceSplitter when prose cannot parse the input.
type ProseSentenceSplitter struct {
	fallback RegexSentenceSplitter
	logger   *zap.Logger
}

func NewProseSentenceSplitter(logger *zap.Logger) ProseSentenceSplitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return ProseSentenceSplitter{fallback: NewRegexSentenceSplitter(), logger: logger}
}

func (p ProseSentenceSplitter) Split(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	doc, err := prose.NewDocument(trimmed,
		prose.WithTagging(false),
		prose.WithExtraction(false),
		prose.WithTokenization(false))
	if err != nil {
		p.logger.Debug("Sentence segmentation failed, using regex splitter", zap.Error(err))
		return p.fallback.Split(trimmed)
	}

	var sentences []string
	for _, sent := range doc.Sentences() {
		if s := strings.TrimSpace(sent.Text); s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) == 0 {
		return []string{trimmed}
	}
	return sentences
}

type RegexSentenceSplitter struct{}

func NewRegexSentenceSplitter() RegexSentenceSplitter {
	return RegexSentenceSplitter{}
}

func (RegexSentenceSplitter) Split(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	runes := []rune(trimmed)
	var sentences []string
	var builder strings.Builder

	flush := func() {
		if sentence := strings.TrimSpace(builder.String()); sentence != "" {
			sentences = append(sentences, sentence)
		}
		builder.Reset()
	}

	for idx, r := range runes {
		builder.WriteRune(r)
		if !isSentenceBoundary(r) {
			continue
		}
		next := idx + 1
		for next < len(runes) && (runes[next] == ' ' || runes[next] == '\n' || runes[next] == '\t') {
			next++
		}
		// keep runs like "?!" or "..." together
		if next >= len(runes) || isSentenceBoundary(runes[next]) {
			continue
		}
		flush()
	}
	flush()

	if len(sentences) == 0 {
		return []string{trimmed}
	}
	return sentences
}

func isSentenceBoundary(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// firstSentences joins at most n sentences of text.
func firstSentences(splitter SentenceSplitter, text string, n int) string {
	sentences := splitter.Split(text)
	if n > 0 && len(sentences) > n {
		sentences = sentences[:n]
	}
	return strings.Join(sentences, " ")
}
