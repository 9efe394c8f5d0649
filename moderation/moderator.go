// Package moderation filters chat text against a censored-word
// dictionary before it reaches the room.
package moderation

import (
	"unicode"

	"github.com/abadojack/whatlanggo"
	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator censors forbidden patterns in chat text. Matching is
// resistant to casing, leet speak, and inserted punctuation; the
// replacement preserves the original spacing. An empty dictionary
// yields a disabled moderator that passes text through untouched.
type Moderator struct {
	matcher      *goahocorasick.Machine
	censoredChar rune
}

// Review is the outcome of moderating one chat line.
type Review struct {
	Content       string   // sanitized text, safe to broadcast
	CensoredWords []string // normalized patterns that matched
	Lang          string   // ISO 639-1 code, only set when something matched
}

type textMapping struct {
	normalized []rune
	origIdx    []int
}

// NewModerator builds the Aho-Corasick automaton over a normalized
// version of the dictionary.
func NewModerator(censoredWords []string, censoredChar rune) (Moderator, error) {
	if len(censoredWords) == 0 {
		return Moderator{censoredChar: censoredChar}, nil
	}

	patterns := make([][]rune, len(censoredWords))
	for i, word := range censoredWords {
		patterns[i] = normalizeRunes([]rune(word))
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return Moderator{}, err
	}
	return Moderator{matcher: m, censoredChar: censoredChar}, nil
}

// Moderate censors the text and, when anything matched, detects the
// language of the original content so moderation hits can be logged
// with context.
func (m *Moderator) Moderate(original string) Review {
	sanitized, words := m.censor(original)
	review := Review{Content: sanitized, CensoredWords: words}
	if len(words) > 0 {
		info := whatlanggo.Detect(original)
		review.Lang = info.Lang.Iso6391()
	}
	return review
}

// censor identifies forbidden patterns and replaces the original
// characters while preserving spacing.
func (m *Moderator) censor(original string) (string, []string) {
	if m.matcher == nil {
		return original, nil
	}

	mapping := normalize(original)
	if len(mapping.normalized) == 0 {
		return original, nil
	}

	spans := m.matcher.MultiPatternSearch(mapping.normalized, false)
	if len(spans) == 0 {
		return original, nil
	}

	origRunes := []rune(original)
	var found []string
	for _, span := range spans {
		normStart := span.Pos
		normEnd := normStart + len(span.Word)
		if normStart < 0 || normEnd > len(mapping.origIdx) {
			continue
		}
		found = append(found, string(span.Word))

		origStart := mapping.origIdx[normStart]
		origEnd := mapping.origIdx[normEnd-1] + 1
		for i := origStart; i < origEnd; i++ {
			origRunes[i] = m.censoredChar
		}
	}
	return string(origRunes), found
}

// normalize transforms the input into a searchable form and keeps track
// of each kept rune's original position for the replacement step.
func normalize(input string) textMapping {
	origRunes := []rune(input)
	norm := make([]rune, 0, len(origRunes))
	origIdx := make([]int, 0, len(origRunes))

	for i, r := range origRunes {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		norm = append(norm, unicode.ToLower(clean))
		origIdx = append(origIdx, i)
	}
	return textMapping{normalized: norm, origIdx: origIdx}
}

func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

// simplifyRune maps common leet speak characters back to their standard
// alphabet counterparts.
func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

// isNoise identifies characters ignored during pattern matching.
func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
