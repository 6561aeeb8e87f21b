// Package synth converts reply text into an ordered stream of synthesized
// audio chunks. Text is sanitized, split at sentence boundaries, and packed
// into chunks whose lengths stay within a target character band; the
// streamer then requests audio per chunk with limited look-ahead pipelining
// and emits payloads strictly in chunk order.
package synth

import (
	"regexp"
	"strings"
)

// Chunk size band, in characters. Short sentences are merged and overlong
// sentences split at secondary breakpoints so chunks land in this band.
const (
	MinChunkChars   = 80
	IdealChunkChars = 120
	MaxChunkChars   = 160
)

var (
	controlChars   = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
	sentenceEnd    = regexp.MustCompile(`([.!?]+)(\s+|$)`)
	secondaryBreak = regexp.MustCompile(`,\s+|;\s+|\s+and\s+|\s+but\s+|\s+or\s+`)
)

var markupReplacer = strings.NewReplacer(
	"“", `"`, "”", `"`, "«", `"`, "»", `"`, "„", `"`,
	"‘", "'", "’", "'",
	"…", "...",
	"**", "", "*", "", "`", "", "#", "",
)

// Sanitize strips markup and control characters and normalizes punctuation
// so the text is safe to hand to a synthesis provider.
func Sanitize(text string) string {
	if text == "" {
		return ""
	}
	text = markupReplacer.Replace(text)
	text = controlChars.ReplaceAllString(text, " ")
	text = whitespaceRuns.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// SplitSentences splits text at sentence boundaries, keeping the
// terminating punctuation with each sentence.
func SplitSentences(text string) []string {
	var sentences []string
	last := 0
	for _, m := range sentenceEnd.FindAllStringIndex(text, -1) {
		s := strings.TrimSpace(text[last:m[1]])
		if s != "" {
			sentences = append(sentences, s)
		}
		last = m[1]
	}
	if rest := strings.TrimSpace(text[last:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// Chunks sanitizes text and packs its sentences into chunks within the
// target band. Returns nil for empty input.
func Chunks(text string) []string {
	text = Sanitize(text)
	if text == "" {
		return nil
	}

	sentences := SplitSentences(text)
	var chunks []string
	var current string

	flush := func() {
		if s := strings.TrimSpace(current); s != "" {
			chunks = append(chunks, s)
		}
		current = ""
	}

	for i, sentence := range sentences {
		candidate := sentence
		if current != "" {
			candidate = current + " " + sentence
		}

		switch {
		case len(candidate) <= MaxChunkChars:
			current = candidate
			if len(current) >= IdealChunkChars || i == len(sentences)-1 {
				flush()
			}
		case len(current) >= MinChunkChars:
			flush()
			current = sentence
			if len(current) > MaxChunkChars {
				chunks = append(chunks, splitLong(sentence)...)
				current = ""
			} else if i == len(sentences)-1 {
				flush()
			}
		case len(sentence) <= MaxChunkChars:
			// Current is below the minimum; absorb the overflow anyway.
			current = candidate
			flush()
		default:
			flush()
			chunks = append(chunks, splitLong(sentence)...)
		}
	}
	flush()
	return chunks
}

// splitLong breaks an overlong sentence at commas, semicolons, and
// conjunctions so each piece fits under the chunk maximum.
func splitLong(sentence string) []string {
	parts := secondaryBreak.Split(sentence, -1)
	var out []string
	var current string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		candidate := part
		if current != "" {
			candidate = current + ", " + part
		}
		if len(candidate) <= MaxChunkChars {
			current = candidate
			continue
		}
		if current != "" {
			out = append(out, current)
		}
		current = part
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}
