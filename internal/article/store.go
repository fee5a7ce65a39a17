// Package article keeps the metadata of every article registered during a
// crawl. IDs are dense, start at zero, and are assigned in append order.
package article

import "sync"

// Article is immutable once appended.
type Article struct {
	ID    int
	Title string
	URL   string
}

// Store is append-only and safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	articles []Article
}

func NewStore() *Store {
	return &Store{}
}

// Append registers an article and returns its ID.
func (s *Store) Append(title, url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := len(s.articles)
	s.articles = append(s.articles, Article{ID: id, Title: title, URL: url})
	return id
}

func (s *Store) Get(id int) (Article, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 0 || id >= len(s.articles) {
		return Article{}, false
	}
	return s.articles[id], true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.articles)
}
