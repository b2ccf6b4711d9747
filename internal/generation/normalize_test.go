package generation

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/recommendation-writer/internal/types"
	"github.com/jonathan/recommendation-writer/internal/validation"
)

var vocabulary = []string{
	"alice", "built", "reliable", "services", "in", "go", "and", "python",
	"for", "the", "payments", "team", "while", "reviewing", "code", "carefully",
}

// sampleText renders paragraphs of sentences with wordsPer words each.
func sampleText(paragraphs, sentencesPer, wordsPer int) string {
	var ps []string
	n := 0
	for p := 0; p < paragraphs; p++ {
		var sentences []string
		for s := 0; s < sentencesPer; s++ {
			words := make([]string, wordsPer)
			for w := range words {
				words[w] = vocabulary[n%len(vocabulary)]
				n++
			}
			sentences = append(sentences, strings.Join(words, " ")+".")
		}
		ps = append(ps, strings.Join(sentences, " "))
	}
	return strings.Join(ps, "\n\n")
}

func TestNormalize_MergesToShortTier(t *testing.T) {
	text := sampleText(4, 3, 10)
	out := Normalize(text, types.TierShort)

	assert.Len(t, Paragraphs(out), 2)
	assert.Equal(t, 120, wordCount(out))
}

func TestNormalize_SplitsToMediumTier(t *testing.T) {
	text := sampleText(1, 18, 10)
	out := Normalize(text, types.TierMedium)

	assert.Len(t, Paragraphs(out), 3)
	assert.Equal(t, 180, wordCount(out))
}

func TestNormalize_LongTierAcceptsFourOrFive(t *testing.T) {
	four := Normalize(sampleText(4, 3, 10), types.TierLong)
	five := Normalize(sampleText(5, 3, 10), types.TierLong)
	six := Normalize(sampleText(6, 3, 10), types.TierLong)

	assert.Len(t, Paragraphs(four), 4)
	assert.Len(t, Paragraphs(five), 5)
	assert.Len(t, Paragraphs(six), 5)
}

func TestNormalize_SingleNewlinesAsParagraphs(t *testing.T) {
	text := "first paragraph has words.\nsecond paragraph has words.\nthird paragraph has words."
	out := Normalize(text, types.TierMedium)

	assert.Equal(t, []string{
		"First paragraph has words.",
		"Second paragraph has words.",
		"Third paragraph has words.",
	}, Paragraphs(out))
}

func TestNormalize_StripsMarkdown(t *testing.T) {
	text := "```markdown\n# Recommendation\n\n**Alice** is a *great* engineer.\n\n- she ships `Go` code.\n```"
	out := Normalize(text, types.TierShort)

	assert.NotContains(t, out, "#")
	assert.NotContains(t, out, "*")
	assert.NotContains(t, out, "`")
	assert.Contains(t, out, "Alice is a great engineer.")
	assert.Contains(t, out, "She ships Go code.")
}

func TestNormalize_CapitalizesAndTerminates(t *testing.T) {
	out := Normalize("i worked with alice. she is sharp! would hire again\n\nshe mentors juniors, e.g. new hires", types.TierShort)

	assert.Equal(t, "I worked with alice. She is sharp! Would hire again.\n\nShe mentors juniors, e.g. new hires.", out)
}

func TestNormalize_SplitsRunOnSentence(t *testing.T) {
	out := Normalize("one two three four five six seven eight", types.TierShort)

	require.Len(t, Paragraphs(out), 2)
	assert.Equal(t, "One two three four.\n\nFive six seven eight.", out)
}

func TestNormalize_TrimsOverLength(t *testing.T) {
	// 300 words against a short-tier cap of 165.
	out := Normalize(sampleText(2, 15, 10), types.TierShort)

	assert.LessOrEqual(t, wordCount(out), 165)
	assert.Len(t, Paragraphs(out), 2)
}

func TestNormalize_TrimsToValidatorBound(t *testing.T) {
	_, high := types.TierShort.Spec().WordBounds()
	require.Equal(t, 165, high)

	for _, sentences := range []int{16, 17, 18} {
		t.Run(fmt.Sprintf("%d words", 2*sentences*5), func(t *testing.T) {
			text := sampleText(2, sentences, 5)
			require.Equal(t, 2*sentences*5, wordCount(text))

			out := Normalize(text, types.TierShort)
			assert.LessOrEqual(t, wordCount(out), high)

			result := validation.Validate(&types.Candidate{Text: out}, &types.GenerationOptions{Length: types.TierShort}, nil)
			for _, issue := range result.Issues {
				assert.NotContains(t, issue, "word count")
			}
		})
	}
}

func TestNormalize_Empty(t *testing.T) {
	assert.Equal(t, "", Normalize("   \n\n ", types.TierMedium))
	assert.Equal(t, "", Normalize("```\n```", types.TierMedium))
}

func TestNormalize_ShortTierShapeProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		paragraphs := 1 + rng.Intn(6)
		sentences := 1 + rng.Intn(4)
		words := 120 / (paragraphs * sentences)
		if words < 3 {
			words = 3
		}
		text := sampleText(paragraphs, sentences, words)

		out := Normalize(text, types.TierShort)
		msg := fmt.Sprintf("paragraphs=%d sentences=%d words=%d", paragraphs, sentences, words)
		assert.Len(t, Paragraphs(out), 2, msg)
		wc := wordCount(out)
		assert.GreaterOrEqual(t, wc, 90, msg)
		assert.LessOrEqual(t, wc, 165, msg)
	}
}

func TestSplitSentences(t *testing.T) {
	assert.Equal(t,
		[]string{"He said \"wow.\"", "Then left!", "Why?", "Dr. Smith agreed"},
		splitSentences(`He said "wow." Then left! Why? Dr. Smith agreed`),
	)
}

func TestEnsureTerminal(t *testing.T) {
	assert.Equal(t, "done.", ensureTerminal("done"))
	assert.Equal(t, "done.", ensureTerminal("done,"))
	assert.Equal(t, "done!", ensureTerminal("done!"))
	assert.Equal(t, `"done."`, ensureTerminal(`"done."`))
	assert.Equal(t, "", ensureTerminal("  "))
}
