package generation

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/jonathan/recommendation-writer/internal/llm"
	"github.com/jonathan/recommendation-writer/internal/types"
)

var (
	blankLine   = regexp.MustCompile(`\n[ \t]*\n`)
	headingLine = regexp.MustCompile(`(?m)^[ \t]{0,3}#{1,6}[ \t]+.*$`)
	listMarker  = regexp.MustCompile(`(?m)^[ \t]*(?:[-*+•]|\d+[.)])[ \t]+`)
	emphasis    = regexp.MustCompile("\\*\\*|__|\\*|`")
	spaceRun    = regexp.MustCompile(`\s+`)
)

// abbreviations never end a sentence.
var abbreviations = map[string]bool{
	"e.g": true, "i.e": true, "etc": true, "vs": true,
	"mr": true, "ms": true, "mrs": true, "dr": true, "jr": true, "sr": true,
}

// Normalize reshapes raw completion text into the paragraph structure of a
// length tier: markdown is stripped, paragraphs are merged or split to fit
// the tier's range, sentences are re-capitalized and re-terminated, and
// trailing sentences are dropped when the text runs well past the tier's
// word limit.
func Normalize(text string, tier types.LengthTier) string {
	spec := tier.Spec()

	paragraphs := splitParagraphs(stripMarkdown(llm.CleanTextBlock(text)))
	paragraphs = fitParagraphCount(paragraphs, spec.MinParagraphs, spec.MaxParagraphs)
	for i, p := range paragraphs {
		paragraphs[i] = repairSentences(p)
	}
	_, limit := spec.WordBounds()
	paragraphs = trimToLimit(paragraphs, limit)

	return strings.Join(paragraphs, "\n\n")
}

// Paragraphs splits normalized text back into its paragraphs.
func Paragraphs(text string) []string {
	return splitParagraphs(text)
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func stripMarkdown(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = headingLine.ReplaceAllString(text, "")
	text = listMarker.ReplaceAllString(text, "")
	return emphasis.ReplaceAllString(text, "")
}

// splitParagraphs splits on blank lines, falling back to single newlines
// when the model used no blank lines at all.
func splitParagraphs(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	parts := blankLine.Split(text, -1)
	if len(parts) == 1 {
		parts = strings.Split(text, "\n")
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(spaceRun.ReplaceAllString(p, " "))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func fitParagraphCount(paragraphs []string, minParagraphs, maxParagraphs int) []string {
	for len(paragraphs) > maxParagraphs && len(paragraphs) > 1 {
		paragraphs = mergeShortestPair(paragraphs)
	}
	for len(paragraphs) > 0 && len(paragraphs) < minParagraphs {
		split, ok := splitLongest(paragraphs)
		if !ok {
			break
		}
		paragraphs = split
	}
	return paragraphs
}

// mergeShortestPair joins the adjacent pair with the fewest combined words.
func mergeShortestPair(paragraphs []string) []string {
	best, bestWords := 0, -1
	for i := 0; i+1 < len(paragraphs); i++ {
		w := wordCount(paragraphs[i]) + wordCount(paragraphs[i+1])
		if bestWords < 0 || w < bestWords {
			best, bestWords = i, w
		}
	}

	merged := make([]string, 0, len(paragraphs)-1)
	merged = append(merged, paragraphs[:best]...)
	merged = append(merged, ensureTerminal(paragraphs[best])+" "+paragraphs[best+1])
	merged = append(merged, paragraphs[best+2:]...)
	return merged
}

// splitLongest splits the longest paragraph in two.
func splitLongest(paragraphs []string) ([]string, bool) {
	idx := 0
	for i, p := range paragraphs {
		if wordCount(p) > wordCount(paragraphs[idx]) {
			idx = i
		}
	}

	left, right, ok := splitParagraph(paragraphs[idx])
	if !ok {
		return paragraphs, false
	}

	out := make([]string, 0, len(paragraphs)+1)
	out = append(out, paragraphs[:idx]...)
	out = append(out, left, right)
	out = append(out, paragraphs[idx+1:]...)
	return out, true
}

// splitParagraph cuts at the sentence boundary nearest the word midpoint,
// or at the midpoint itself for a single run-on sentence.
func splitParagraph(p string) (string, string, bool) {
	sentences := splitSentences(p)
	if len(sentences) >= 2 {
		half := wordCount(p) / 2
		best, bestDiff, acc := 1, -1, 0
		for i := 1; i < len(sentences); i++ {
			acc += wordCount(sentences[i-1])
			diff := acc - half
			if diff < 0 {
				diff = -diff
			}
			if bestDiff < 0 || diff < bestDiff {
				best, bestDiff = i, diff
			}
		}
		return strings.Join(sentences[:best], " "), strings.Join(sentences[best:], " "), true
	}

	words := strings.Fields(p)
	if len(words) < 2 {
		return "", "", false
	}
	mid := len(words) / 2
	return ensureTerminal(strings.Join(words[:mid], " ")), strings.Join(words[mid:], " "), true
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isCloser(r rune) bool {
	return r == '"' || r == '\'' || r == ')' || r == '”' || r == '’'
}

// splitSentences splits on terminal punctuation followed by whitespace.
func splitSentences(p string) []string {
	runes := []rune(p)
	var out []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		j := i + 1
		for j < len(runes) && (isTerminal(runes[j]) || isCloser(runes[j])) {
			j++
		}
		if j < len(runes) && !unicode.IsSpace(runes[j]) {
			continue
		}
		if runes[i] == '.' && isAbbreviation(runes[start:i]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start:j])); s != "" {
			out = append(out, s)
		}
		start = j
		i = j - 1
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		out = append(out, rest)
	}
	return out
}

// isAbbreviation reports whether the word ending the fragment is a known
// abbreviation.
func isAbbreviation(fragment []rune) bool {
	s := strings.TrimSpace(string(fragment))
	if idx := strings.LastIndexAny(s, " \t"); idx >= 0 {
		s = s[idx+1:]
	}
	return abbreviations[strings.ToLower(strings.Trim(s, "(\"'"))]
}

// repairSentences capitalizes each sentence and terminates the last one.
func repairSentences(p string) string {
	sentences := splitSentences(p)
	for i, s := range sentences {
		sentences[i] = capitalize(s)
	}
	if len(sentences) > 0 {
		last := len(sentences) - 1
		sentences[last] = ensureTerminal(sentences[last])
	}
	return strings.Join(sentences, " ")
}

func capitalize(s string) string {
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsLetter(r) {
			runes[i] = unicode.ToUpper(r)
			return string(runes)
		}
		if !unicode.IsPunct(r) {
			return s
		}
	}
	return s
}

// ensureTerminal appends a period unless s already ends a sentence.
func ensureTerminal(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	trimmed := strings.TrimRightFunc(s, isCloser)
	if trimmed != "" {
		r := []rune(trimmed)
		if isTerminal(r[len(r)-1]) {
			return s
		}
	}
	return strings.TrimRight(s, ",;:- ") + "."
}

// trimToLimit drops trailing sentences, last paragraph first, until the text
// fits limit words. A paragraph always keeps its first sentence.
func trimToLimit(paragraphs []string, limit int) []string {
	total := 0
	for _, p := range paragraphs {
		total += wordCount(p)
	}

	for total > limit {
		trimmed := false
		for i := len(paragraphs) - 1; i >= 0; i-- {
			sentences := splitSentences(paragraphs[i])
			if len(sentences) < 2 {
				continue
			}
			total -= wordCount(sentences[len(sentences)-1])
			paragraphs[i] = strings.Join(sentences[:len(sentences)-1], " ")
			trimmed = true
			break
		}
		if !trimmed {
			break
		}
	}
	return paragraphs
}
