package chunked

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	apperrors "github.com/kbukum/wonderwhisper/errors"
	"github.com/kbukum/wonderwhisper/transcription"
)

// MergeOptions bounds the seam search between consecutive chunks.
type MergeOptions struct {
	MinOverlap int `yaml:"min_overlap" mapstructure:"min_overlap"`
	MaxOverlap int `yaml:"max_overlap" mapstructure:"max_overlap"`
}

// ApplyDefaults sets the 3..8 token window.
func (o *MergeOptions) ApplyDefaults() {
	if o.MinOverlap <= 0 {
		o.MinOverlap = 3
	}
	if o.MaxOverlap <= 0 {
		o.MaxOverlap = 8
	}
}

// Validate checks that the configuration is valid.
func (o *MergeOptions) Validate() error {
	if o.MinOverlap > o.MaxOverlap {
		return apperrors.InvalidInput("merge.min_overlap",
			fmt.Sprintf("%d exceeds max_overlap %d", o.MinOverlap, o.MaxOverlap))
	}
	return nil
}

// token is a normalized word and the index of the word it came from.
type token struct {
	text string
	word int
}

func tokenize(words []string) []token {
	out := make([]token, 0, len(words))
	for i, w := range words {
		var b strings.Builder
		for _, r := range w {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(unicode.ToLower(r))
			}
		}
		if b.Len() > 0 {
			out = append(out, token{text: b.String(), word: i})
		}
	}
	return out
}

// Merge joins chunk transcripts in sequence order. When the head of a chunk
// repeats the tail of the text so far (audio transcribed on both sides of a
// window edge) the repeated words are dropped. Only runs of MinOverlap to
// MaxOverlap tokens count; anything shorter is appended unchanged.
func Merge(segments []transcription.Segment, opts MergeOptions) string {
	opts.ApplyDefaults()

	sorted := make([]transcription.Segment, len(segments))
	copy(sorted, segments)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })

	var combined []string
	var combinedTokens []token
	for _, seg := range sorted {
		words := strings.Fields(seg.Text)
		if len(words) == 0 {
			continue
		}
		tokens := tokenize(words)
		if drop := seam(combinedTokens, tokens, opts); drop > 0 {
			words = words[drop:]
			tokens = tokenize(words)
		}
		offset := len(combined)
		combined = append(combined, words...)
		for _, t := range tokens {
			combinedTokens = append(combinedTokens, token{text: t.text, word: t.word + offset})
		}
	}
	return strings.Join(combined, " ")
}

// seam returns how many leading words of next repeat the tail of prev.
func seam(prev, next []token, opts MergeOptions) int {
	for k := min(opts.MaxOverlap, len(prev), len(next)); k >= opts.MinOverlap; k-- {
		if equalTokens(prev[len(prev)-k:], next[:k]) {
			return next[k-1].word + 1
		}
	}
	return 0
}

func equalTokens(a, b []token) bool {
	for i := range a {
		if a[i].text != b[i].text {
			return false
		}
	}
	return true
}
