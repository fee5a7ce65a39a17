package feed

import (
	"reflect"
	"strings"
	"testing"
)

func parseAll(t *testing.T, doc string) []Item {
	t.Helper()
	var items []Item
	if err := Parse(strings.NewReader(doc), func(it Item) {
		items = append(items, it)
	}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	return items
}

func TestParseItems(t *testing.T) {
	doc := `<?xml version="1.0"?>
<rss version="2.0"><channel>
<title>Channel title is not an item</title>
<link>http://channel</link>
<ITEM>
  <title>Bananas &amp; You</title>
  <description>All about bananas</description>
  <link>http://a</link>
</ITEM>
<item rdf:about="http://b">
  <title>Second</title>
  <description></description>
  <link>
    http://b
  </link>
</item>
</channel></rss>`

	got := parseAll(t, doc)
	want := []Item{
		{Title: "Bananas & You", Description: "All about bananas", Link: "http://a"},
		{Title: "Second", Description: "", Link: "http://b"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestParseEmptyAndSelfClosingFields(t *testing.T) {
	doc := `<item><title/><description/><link>http://x/1</link></item>
<item><title><![CDATA[Hidden]]></title><link>http://x/2</link></item>`

	got := parseAll(t, doc)
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
	for _, it := range got {
		if it.Title != "" || it.Description != "" {
			t.Errorf("expected empty title and description, got %+v", it)
		}
	}
}

func TestParseDiscardsItemsWithoutLink(t *testing.T) {
	doc := `<item><title>No link</title></item>
<item><title>Self-closing link</title><link/></item>
<item><title>Kept</title><link>http://kept</link></item>`

	got := parseAll(t, doc)
	if len(got) != 1 || got[0].Link != "http://kept" {
		t.Errorf("expected only the linked item, got %+v", got)
	}
}

func TestParseKeepsFirstField(t *testing.T) {
	doc := `<item><link>http://first</link><link>http://second</link></item>`
	got := parseAll(t, doc)
	if len(got) != 1 || got[0].Link != "http://first" {
		t.Errorf("got %+v", got)
	}
}

func TestParseKeepsDuplicates(t *testing.T) {
	// Dedup belongs to the caller.
	doc := `<item><link>http://a</link></item><item><link>http://a</link></item>`
	if got := parseAll(t, doc); len(got) != 2 {
		t.Errorf("expected both items, got %d", len(got))
	}
}

func TestParseList(t *testing.T) {
	list := `Test: http://x/feed
BBC World::   https://feeds.bbci.co.uk/news/world/rss.xml
no colon on this line

Empty:
`
	got, err := ParseList(strings.NewReader(list))
	if err != nil {
		t.Fatalf("parse list: %v", err)
	}
	want := []Source{
		{Name: "Test", URL: "http://x/feed"},
		{Name: "BBC World", URL: "https://feeds.bbci.co.uk/news/world/rss.xml"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
