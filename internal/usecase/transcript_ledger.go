package usecase

import (
	"strings"

	"voxlink/internal/domain"
)

// TranscriptLedger holds the committed sentences of one run and the live
// partial. Sentences are append-only.
type TranscriptLedger struct {
	sentences []string
	partial   string
}

func NewTranscriptLedger() *TranscriptLedger {
	return &TranscriptLedger{}
}

// OnSentence commits text and clears the partial. It returns the index of
// the committed sentence.
func (l *TranscriptLedger) OnSentence(text string) int {
	l.sentences = append(l.sentences, text)
	l.partial = ""
	return len(l.sentences) - 1
}

// OnRealtime replaces the partial.
func (l *TranscriptLedger) OnRealtime(text string) {
	l.partial = text
}

func (l *TranscriptLedger) Sentences() []string {
	return append([]string(nil), l.sentences...)
}

func (l *TranscriptLedger) Partial() string {
	return l.partial
}

func (l *TranscriptLedger) Len() int {
	return len(l.sentences)
}

// Render returns the sentences in arrival order, styled i%2, followed by
// the partial when there is one.
func (l *TranscriptLedger) Render() []domain.Segment {
	segments := make([]domain.Segment, 0, len(l.sentences)+1)
	for i, sentence := range l.sentences {
		segments = append(segments, domain.Segment{Text: sentence, Style: i % 2})
	}
	if l.partial != "" {
		segments = append(segments, domain.Segment{Text: l.partial, Partial: true})
	}
	return segments
}

// Text is the plain projection of Render: one sentence per line, partial last.
func (l *TranscriptLedger) Text() string {
	lines := make([]string, 0, len(l.sentences)+1)
	lines = append(lines, l.sentences...)
	if l.partial != "" {
		lines = append(lines, l.partial)
	}
	return strings.Join(lines, "\n")
}
