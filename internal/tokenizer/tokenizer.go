// Package tokenizer splits article markup into candidate words. Tags,
// comments, and the bodies of script and style elements are skipped; the
// remaining text is split on a fixed delimiter set and character references
// are stripped from each piece before it is handed to the caller.
package tokenizer

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
	"golang.org/x/net/html"
)

// Delimiters separate words in article text.
const Delimiters = " \t\n\r\b!@$%^*()_+={[}]|\\'\":;/?.>,<~`"

// Scan tokenizes the markup read from r and calls fn for every non-empty
// token, in document order.
func Scan(r io.Reader, delims string, fn func(token string)) error {
	split := func(c rune) bool { return strings.ContainsRune(delims, c) }

	z := html.NewTokenizer(r)
	skipping := ""
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return fmt.Errorf("tokenizing markup: %w", err)
			}
			return nil
		case html.StartTagToken:
			name, _ := z.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				skipping = tag
			} else {
				z.NextIsNotRawText()
			}
		case html.SelfClosingTagToken:
			z.NextIsNotRawText()
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == skipping {
				skipping = ""
			}
		case html.TextToken:
			if skipping != "" {
				continue
			}
			for _, field := range strings.FieldsFunc(string(z.Raw()), split) {
				if word := StripEscapes(field); word != "" {
					fn(word)
				}
			}
		}
	}
}

// StripEscapes removes character references from token. Each '&' is dropped
// together with everything up to and including the next ';', or up to the end
// of the token when no ';' follows, as happens once ';' has been used as a
// delimiter.
func StripEscapes(token string) string {
	if !strings.Contains(token, "&") {
		return token
	}
	var b strings.Builder
	for {
		before, rest, found := strings.Cut(token, "&")
		b.WriteString(before)
		if !found {
			return b.String()
		}
		_, after, ok := strings.Cut(rest, ";")
		if !ok {
			return b.String()
		}
		token = after
	}
}

// IsWellFormed reports whether word starts with a letter and continues with
// letters, digits, or hyphens. The empty string is well-formed.
func IsWellFormed(word string) bool {
	for i, r := range word {
		if i == 0 {
			if !unicode.IsLetter(r) {
				return false
			}
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' {
			return false
		}
	}
	return true
}

// Normalizer maps a well-formed word to its index key.
type Normalizer func(word string) string

// NewNormalizer lowercases words and, when stem is set, reduces them to their
// English stem.
func NewNormalizer(stem bool) Normalizer {
	if !stem {
		return strings.ToLower
	}
	return func(word string) string {
		return english.Stem(strings.ToLower(word), false)
	}
}
