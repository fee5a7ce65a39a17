// Package stopwords holds the words excluded from indexing and querying.
package stopwords

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Set is a case-insensitive word set. It is read-only after construction
// and safe for concurrent use.
type Set struct {
	words map[string]struct{}
}

// New builds a Set from the given words.
func New(words ...string) *Set {
	s := &Set{words: make(map[string]struct{}, len(words))}
	for _, w := range words {
		s.add(w)
	}
	return s
}

// Load reads one word per line. Blank lines are ignored.
func Load(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening stopwords file: %w", err)
	}
	defer f.Close()

	s := New()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		s.add(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading stopwords file %s: %w", path, err)
	}
	return s, nil
}

func (s *Set) add(word string) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word != "" {
		s.words[word] = struct{}{}
	}
}

// Contains reports whether word, in any case, is a stopword.
func (s *Set) Contains(word string) bool {
	_, ok := s.words[strings.ToLower(word)]
	return ok
}

func (s *Set) Len() int {
	return len(s.words)
}
