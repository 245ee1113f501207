package dictation

import (
	"fmt"
	"regexp"
)

// Substitution replaces From with To in the final text.
type Substitution struct {
	From          string `yaml:"from" mapstructure:"from" validate:"required"`
	To            string `yaml:"to" mapstructure:"to"`
	WholeWord     bool   `yaml:"whole_word" mapstructure:"whole_word"`
	CaseSensitive bool   `yaml:"case_sensitive" mapstructure:"case_sensitive"`
}

// Substituter applies compiled substitutions in order.
type Substituter struct {
	rules []compiledRule
}

type compiledRule struct {
	re *regexp.Regexp
	to string
}

// NewSubstituter compiles subs. The match is literal; WholeWord anchors it
// at word boundaries.
func NewSubstituter(subs []Substitution) (*Substituter, error) {
	s := &Substituter{rules: make([]compiledRule, 0, len(subs))}
	for i, sub := range subs {
		if sub.From == "" {
			return nil, fmt.Errorf("substitution %d: empty pattern", i)
		}
		pattern := regexp.QuoteMeta(sub.From)
		if sub.WholeWord {
			pattern = edge(sub.From[0]) + pattern + edge(sub.From[len(sub.From)-1])
		}
		if !sub.CaseSensitive {
			pattern = `(?i)` + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("substitution %d: %w", i, err)
		}
		s.rules = append(s.rules, compiledRule{re: re, to: sub.To})
	}
	return s, nil
}

// Apply runs every rule over text.
func (s *Substituter) Apply(text string) string {
	if s == nil {
		return text
	}
	for _, r := range s.rules {
		text = r.re.ReplaceAllLiteralString(text, r.to)
	}
	return text
}

// edge returns the assertion that keeps a match from touching a word
// character next to c. Beside a non-word character \b would demand a word
// character, so \B is used there instead.
func edge(c byte) string {
	if c == '_' || '0' <= c && c <= '9' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' {
		return `\b`
	}
	return `\B`
}
