package validation

import (
	"regexp"
	"strings"
	"unicode"
)

var blankLine = regexp.MustCompile(`\n[ \t]*\n`)

func paragraphs(text string) []string {
	var out []string
	for _, p := range blankLine.Split(strings.TrimSpace(text), -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// sentences splits on terminal punctuation followed by whitespace. A
// trailing fragment without punctuation is returned as its own sentence.
func sentences(text string) []string {
	var out []string
	var current strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(current.String()); s != "" {
			out = append(out, s)
		}
		current.Reset()
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// incomplete reports a sentence that is unterminated, starts lowercase or
// is too short to carry a claim.
func incomplete(sentence string) bool {
	runes := []rune(strings.TrimSpace(sentence))
	if len(runes) == 0 {
		return true
	}
	last := runes[len(runes)-1]
	for last == '"' || last == ')' || last == '\'' || last == '”' {
		runes = runes[:len(runes)-1]
		if len(runes) == 0 {
			return true
		}
		last = runes[len(runes)-1]
	}
	if last != '.' && last != '!' && last != '?' {
		return true
	}
	for _, r := range runes {
		if unicode.IsLetter(r) {
			if unicode.IsLower(r) {
				return true
			}
			break
		}
	}
	return wordCount(string(runes)) < 3
}

// tokens returns lowercased words with surrounding punctuation removed.
func tokens(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// normalizeForMatching lowercases and collapses whitespace so phrase checks
// survive line wrapping.
func normalizeForMatching(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

func containsFold(text, phrase string) bool {
	phrase = normalizeForMatching(phrase)
	return phrase != "" && strings.Contains(normalizeForMatching(text), phrase)
}

// containsTerm matches whole words, so "Go" does not match "going".
func containsTerm(text, term string) bool {
	t := tokens(term)
	if len(t) == 0 {
		return false
	}
	return strings.Contains(" "+strings.Join(tokens(text), " ")+" ", " "+strings.Join(t, " ")+" ")
}
