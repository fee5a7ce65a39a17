// Package feed reads the feed list and extracts news items from RSS
// documents. Item extraction is deliberately shallow: it tolerates broken
// XML and pulls only the title, description and link of each item.
package feed

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Item is one news item. Link is never empty for items passed to callers.
type Item struct {
	Title       string
	Description string
	Link        string
}

// Parse scans an RSS document and calls fn for each item that has a link.
// An item opens at any tag whose name starts with "item" and closes at
// </item>. Inside it, title, description and link take the text that
// directly follows their opening tag, cut at the next '<' and
// entity-unescaped; self-closing and empty elements yield "".
func Parse(r io.Reader, fn func(Item)) error {
	z := html.NewTokenizer(r)
	var (
		cur     *Item
		pending *string
	)
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return fmt.Errorf("parsing feed: %w", err)
			}
			return nil

		case html.StartTagToken, html.SelfClosingTagToken:
			// Feed elements never hold raw text; keep <title> and friends
			// tokenized as markup.
			z.NextIsNotRawText()
			pending = nil
			name, _ := z.TagName()
			tag := string(name)
			if cur == nil {
				if tt == html.StartTagToken && strings.HasPrefix(tag, "item") {
					cur = &Item{}
				}
				continue
			}
			if tt == html.StartTagToken {
				if f := cur.field(tag); f != nil && *f == "" {
					pending = f
				}
			}

		case html.TextToken:
			if pending != nil {
				*pending = elementText(z.Raw())
				pending = nil
			}

		case html.EndTagToken:
			pending = nil
			name, _ := z.TagName()
			if cur != nil && string(name) == "item" {
				if cur.Link != "" {
					fn(*cur)
				}
				cur = nil
			}

		default:
			pending = nil
		}
	}
}

func (it *Item) field(tag string) *string {
	switch tag {
	case "title":
		return &it.Title
	case "description":
		return &it.Description
	case "link":
		return &it.Link
	}
	return nil
}

// elementText returns the text before the first '<', unescaped and trimmed.
// Escaped markup such as "&lt;p&gt;" counts as no text at all.
func elementText(raw []byte) string {
	s := string(raw)
	if i := strings.IndexByte(s, '<'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(html.UnescapeString(s))
	if strings.HasPrefix(s, "<") {
		return ""
	}
	return s
}

// Source is one line of the feed list.
type Source struct {
	Name string
	URL  string
}

// ParseList reads "<feed name>: <url>" lines. The URL is whatever follows the
// first colon once leading colons and spaces are skipped. Lines without a
// colon or without a URL are ignored.
func ParseList(r io.Reader) ([]Source, error) {
	var sources []Source
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		name, rest, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		url := strings.TrimSpace(strings.TrimLeft(rest, ": "))
		if url == "" {
			continue
		}
		sources = append(sources, Source{Name: strings.TrimSpace(name), URL: url})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading feed list: %w", err)
	}
	return sources, nil
}
