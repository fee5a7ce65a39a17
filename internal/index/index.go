// Package index implements the in-memory inverted index built during a
// crawl: each lowercased word maps to the articles it occurs in and how many
// times. The index is the only contended structure of the crawl, so the
// write lock covers one word's check-and-update and nothing else.
package index

import (
	"sort"
	"strings"
	"sync"
)

// Posting links a word to one article.
type Posting struct {
	ArticleID int
	Count     int
}

type entry struct {
	postings []Posting
	// slot maps an article ID to its position in postings.
	slot map[int]int
}

// Index is safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func New() *Index {
	return &Index{entries: make(map[string]*entry)}
}

// RecordOccurrence counts one occurrence of word in the article. The first
// occurrence for an article appends a posting and re-sorts the list by
// descending count; later occurrences increment in place.
func (ix *Index) RecordOccurrence(word string, articleID int) {
	word = strings.ToLower(word)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	e, ok := ix.entries[word]
	if !ok {
		ix.entries[word] = &entry{
			postings: []Posting{{ArticleID: articleID, Count: 1}},
			slot:     map[int]int{articleID: 0},
		}
		return
	}
	if i, ok := e.slot[articleID]; ok {
		e.postings[i].Count++
		return
	}
	e.postings = append(e.postings, Posting{ArticleID: articleID, Count: 1})
	sortPostings(e.postings)
	for i, p := range e.postings {
		e.slot[p.ArticleID] = i
	}
}

// Lookup returns a copy of the postings for word, highest count first with
// ties broken by ascending article ID.
func (ix *Index) Lookup(word string) ([]Posting, bool) {
	word = strings.ToLower(word)

	ix.mu.RLock()
	e, ok := ix.entries[word]
	if !ok {
		ix.mu.RUnlock()
		return nil, false
	}
	out := make([]Posting, len(e.postings))
	copy(out, e.postings)
	ix.mu.RUnlock()

	// Increments do not re-sort, so the stored order may be stale.
	sortPostings(out)
	return out, true
}

// Size returns the number of distinct words.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

func sortPostings(p []Posting) {
	sort.SliceStable(p, func(i, j int) bool {
		if p[i].Count != p[j].Count {
			return p[i].Count > p[j].Count
		}
		return p[i].ArticleID < p[j].ArticleID
	})
}
