// Package search turns page content into the weighted token rows the search
// index stores, and scores token matches at query time.
package search

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"

	"github.com/quillwiki/quill/internal/entity"
)

// Default field weight multipliers. Title matches count the most.
const (
	DefaultTitleWeight       = 1.6
	DefaultTagWeight         = 1.4
	DefaultDescriptionWeight = 1.2
	DefaultBodyWeight        = 1.0
)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "in": true, "on": true,
	"at": true, "to": true, "for": true, "of": true, "is": true,
	"it": true, "and": true, "or": true, "with": true, "from": true,
	"by": true, "this": true, "that": true, "as": true, "be": true,
	"are": true, "was": true, "were": true, "not": true, "but": true,
}

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// Tokenizer converts rendered page content into weighted tokens.
type Tokenizer struct {
	TitleWeight       float64
	TagWeight         float64
	DescriptionWeight float64
	BodyWeight        float64

	// SplitCamelCase also emits the sub-words of compound identifiers
	// like "PageRevision" as their own tokens.
	SplitCamelCase bool
}

// NewTokenizer returns a Tokenizer with the default field weights.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{
		TitleWeight:       DefaultTitleWeight,
		TagWeight:         DefaultTagWeight,
		DescriptionWeight: DefaultDescriptionWeight,
		BodyWeight:        DefaultBodyWeight,
		SplitCamelCase:    true,
	}
}

// Document is the already-rendered plain-text content of one page. The
// rendering engine supplies it; this package never parses wiki markup.
type Document struct {
	Title       string
	Description string
	Tags        []string
	Body        string
}

// Tokenize aggregates every field of doc into one weighted token row per
// distinct token, with its phonetic key. The caller persists the result as a
// full replacement of the page's previous rows.
func (t *Tokenizer) Tokenize(doc Document) []entity.PageToken {
	weights := map[string]float64{}
	t.accumulate(weights, doc.Title, t.TitleWeight)
	t.accumulate(weights, strings.Join(doc.Tags, " "), t.TagWeight)
	t.accumulate(weights, doc.Description, t.DescriptionWeight)
	t.accumulate(weights, doc.Body, t.BodyWeight)

	tokens := make([]entity.PageToken, 0, len(weights))
	for token, weight := range weights {
		tokens = append(tokens, entity.PageToken{
			Token:       token,
			PhoneticKey: PhoneticKey(token),
			Weight:      weight,
		})
	}
	return tokens
}

func (t *Tokenizer) accumulate(weights map[string]float64, text string, fieldWeight float64) {
	for _, token := range t.split(text) {
		weights[token] += fieldWeight
	}
}

// split strips markup and breaks text into normalized tokens. The returned
// slice contains one element per occurrence; duplicates are the caller's
// aggregation signal.
func (t *Tokenizer) split(text string) []string {
	text = htmlTag.ReplaceAllString(text, " ")
	var out []string
	words := strings.FieldsFunc(text, isSeparator)
	for _, w := range words {
		if t.SplitCamelCase {
			if parts := splitCamel(w); len(parts) > 1 {
				for _, p := range parts {
					out = appendToken(out, p)
				}
			}
		}
		out = appendToken(out, w)
	}
	return out
}

func appendToken(out []string, w string) []string {
	w = strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}))
	if len(w) < 2 || stopwords[w] {
		return out
	}
	return append(out, w)
}

func isSeparator(r rune) bool {
	switch r {
	case '.', ',', ';', ':', '!', '?', '(', ')', '[', ']', '{', '}',
		'"', '\'', '/', '\\', '|', '=', '+', '*', '#', '&', '_', '-':
		return true
	}
	return unicode.IsSpace(r)
}

// splitCamel breaks "PageRevision" into ["Page", "Revision"]. Runs of upper
// case ("HTTPServer") stay together until the final upper-to-lower boundary.
func splitCamel(w string) []string {
	runes := []rune(w)
	var parts []string
	start := 0
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]
		boundary := false
		if unicode.IsLower(prev) && unicode.IsUpper(cur) {
			boundary = true
		} else if i+1 < len(runes) && unicode.IsUpper(prev) && unicode.IsUpper(cur) && unicode.IsLower(runes[i+1]) {
			boundary = true
		}
		if boundary {
			parts = append(parts, string(runes[start:i]))
			start = i
		}
	}
	parts = append(parts, string(runes[start:]))
	return parts
}

// PhoneticKey returns the sound-based key used for fuzzy lookup. The primary
// double-metaphone encoding is enough; the alternate encoding rarely differs
// for wiki vocabulary.
func PhoneticKey(token string) string {
	primary, _ := matchr.DoubleMetaphone(token)
	return primary
}
