package article

import (
	"fmt"
	"sync"
	"testing"
)

func TestAppendAssignsSequentialIDs(t *testing.T) {
	s := NewStore()
	a := s.Append("First", "http://a")
	b := s.Append("Second", "http://b")
	if a != 0 || b != 1 {
		t.Fatalf("expected IDs 0 and 1, got %d and %d", a, b)
	}
	got, ok := s.Get(b)
	if !ok || got.Title != "Second" || got.URL != "http://b" || got.ID != 1 {
		t.Errorf("unexpected article %+v", got)
	}
	if _, ok := s.Get(2); ok {
		t.Error("expected out-of-range ID to be missing")
	}
	if _, ok := s.Get(-1); ok {
		t.Error("expected negative ID to be missing")
	}
}

func TestConcurrentAppendIsDense(t *testing.T) {
	s := NewStore()
	const n = 500
	ids := make([]int, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = s.Append(fmt.Sprintf("title %d", i), fmt.Sprintf("http://x/%d", i))
		}(i)
	}
	wg.Wait()

	if s.Len() != n {
		t.Fatalf("expected %d articles, got %d", n, s.Len())
	}
	seen := make(map[int]bool, n)
	for i, id := range ids {
		if id < 0 || id >= n || seen[id] {
			t.Fatalf("ID %d is out of range or duplicated", id)
		}
		seen[id] = true
		a, _ := s.Get(id)
		if a.URL != fmt.Sprintf("http://x/%d", i) {
			t.Errorf("article %d has URL %s", id, a.URL)
		}
	}
}
