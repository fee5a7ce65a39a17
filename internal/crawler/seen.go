package crawler

// SeenURLs records the article links already handled within one feed. It is
// owned by a single FeedProcessor call and needs no locking.
type SeenURLs struct {
	urls map[string]struct{}
}

func NewSeenURLs() *SeenURLs {
	return &SeenURLs{urls: make(map[string]struct{})}
}

// Add records url and reports whether it was new.
func (s *SeenURLs) Add(url string) bool {
	if _, ok := s.urls[url]; ok {
		return false
	}
	s.urls[url] = struct{}{}
	return true
}

func (s *SeenURLs) Len() int {
	return len(s.urls)
}
