package chat

import (
	"errors"
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Censor masks configured words in inbound message bodies before they enter
// the timeline. Matching is case-insensitive; spacing and surrounding text
// are preserved.
type Censor struct {
	machine *goahocorasick.Machine
	mask    rune
}

// NewCensor builds the Aho-Corasick automaton from the word list. Blank words
// are skipped; an effectively empty list is an error.
func NewCensor(words []string, mask rune) (*Censor, error) {
	patterns := make([][]rune, 0, len(words))
	for _, word := range words {
		word = strings.ToLower(strings.TrimSpace(word))
		if word == "" {
			continue
		}
		patterns = append(patterns, []rune(word))
	}
	if len(patterns) == 0 {
		return nil, errors.New("censor needs at least one word")
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Censor{machine: m, mask: mask}, nil
}

// Censor replaces every occurrence of a configured word with the mask rune.
func (c *Censor) Censor(body string) string {
	runes := []rune(body)
	lowered := make([]rune, len(runes))
	for i, r := range runes {
		lowered[i] = unicode.ToLower(r)
	}

	terms := c.machine.MultiPatternSearch(lowered, false)
	if len(terms) == 0 {
		return body
	}
	for _, term := range terms {
		end := term.Pos + len(term.Word)
		if end > len(runes) {
			continue
		}
		for i := term.Pos; i < end; i++ {
			runes[i] = c.mask
		}
	}
	return string(runes)
}
