package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/article"
	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/feed"
	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/index"
	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/stopwords"
	apperrors "github.com/Adithya-Monish-Kumar-K/newssearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/newssearch/pkg/fetch"
	"github.com/Adithya-Monish-Kumar-K/newssearch/pkg/metrics"
)

// site is a fake news server: paths map to bodies, redirects, or statuses.
type site struct {
	srv       *httptest.Server
	mu        sync.Mutex
	pages     map[string]string
	redirects map[string]string
	hits      map[string]int
}

func newSite(t *testing.T) *site {
	t.Helper()
	s := &site{
		pages:     make(map[string]string),
		redirects: make(map[string]string),
		hits:      make(map[string]int),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *site) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	body, ok := s.pages[r.URL.Path]
	target, moved := s.redirects[r.URL.Path]
	s.mu.Unlock()

	switch {
	case moved:
		http.Redirect(w, r, target, http.StatusMovedPermanently)
	case ok:
		io.WriteString(w, body)
	default:
		http.NotFound(w, r)
	}
}

func (s *site) url(path string) string { return s.srv.URL + path }

func (s *site) page(path, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[path] = body
}

func (s *site) redirect(from, to string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redirects[from] = to
}

func (s *site) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// rss builds a feed whose items link to the given URLs.
func rss(links ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><rss><channel><title>Test</title>`)
	for i, link := range links {
		fmt.Fprintf(&b, "<item><title>Story %d</title><description>about it</description><link>%s</link></item>\n", i, link)
	}
	b.WriteString("</channel></rss>")
	return b.String()
}

// spyRecorder forwards to the index and remembers every word it was given.
type spyRecorder struct {
	*index.Index
	mu    sync.Mutex
	words map[string]int
}

func newSpy(ix *index.Index) *spyRecorder {
	return &spyRecorder{Index: ix, words: make(map[string]int)}
}

func (s *spyRecorder) RecordOccurrence(word string, articleID int) {
	s.mu.Lock()
	s.words[word]++
	s.mu.Unlock()
	s.Index.RecordOccurrence(word, articleID)
}

type outcomeLog struct {
	mu       sync.Mutex
	outcomes []FetchOutcome
}

func (l *outcomeLog) RecordFetch(ctx context.Context, o FetchOutcome) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outcomes = append(l.outcomes, o)
	return nil
}

func (l *outcomeLog) find(url string) (FetchOutcome, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, o := range l.outcomes {
		if o.URL == url {
			return o, true
		}
	}
	return FetchOutcome{}, false
}

type harness struct {
	crawler  *Crawler
	index    *index.Index
	store    *article.Store
	spy      *spyRecorder
	metrics  *metrics.Metrics
	outcomes *outcomeLog
}

func newHarness(t *testing.T, f fetch.Fetcher, stops *stopwords.Set, cfg Config) *harness {
	t.Helper()
	h := &harness{
		index:    index.New(),
		store:    article.NewStore(),
		metrics:  metrics.New(nil),
		outcomes: &outcomeLog{},
	}
	h.spy = newSpy(h.index)
	h.crawler = New(cfg, Deps{
		Fetcher:   f,
		Stopwords: stops,
		Index:     h.index,
		Store:     h.store,
		Metrics:   h.metrics,
		Recorder:  h.spy,
		Outcomes:  h.outcomes,
	})
	return h
}

func httpFetcher() fetch.Fetcher {
	return fetch.NewClient(fetch.Options{Timeout: 5 * time.Second})
}

func TestCrawlBananaScenario(t *testing.T) {
	s := newSite(t)
	s.page("/feed", rss(s.url("/a"), s.url("/b")))
	s.page("/a", "<html><body><p>Banana split. BANANA bread!</p><p>banana</p></body></html>")
	s.page("/b", "<html><body><h1>Fruit</h1><p>One banana only.</p></body></html>")

	list := filepath.Join(t.TempDir(), "feeds.txt")
	if err := os.WriteFile(list, []byte("Test: "+s.url("/feed")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := newHarness(t, httpFetcher(), stopwords.New("the"), Config{MaxConnections: 4, MaxRedirects: 5})
	sum, err := h.crawler.RunFile(context.Background(), list)
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if sum.Feeds != 1 || sum.Articles != 2 || sum.FeedsFailed != 0 {
		t.Errorf("unexpected summary %+v", sum)
	}

	a, _ := h.store.Get(0)
	b, _ := h.store.Get(1)
	if a.URL != s.url("/a") || b.URL != s.url("/b") || a.Title != "Story 0" {
		t.Fatalf("articles registered in the wrong order: %+v %+v", a, b)
	}

	got, ok := h.index.Lookup("banana")
	if !ok {
		t.Fatal("banana not indexed")
	}
	want := []index.Posting{{ArticleID: 0, Count: 3}, {ArticleID: 1, Count: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("lookup(banana) = %v, want %v", got, want)
	}
	if got := testutil.ToFloat64(h.metrics.ArticlesScannedTotal); got != 2 {
		t.Errorf("expected 2 scanned articles, got %v", got)
	}
}

func TestStopwordsNeverReachRecorder(t *testing.T) {
	s := newSite(t)
	s.page("/feed", rss(s.url("/a")))
	s.page("/a", "<p>The the THE banana</p>")

	h := newHarness(t, httpFetcher(), stopwords.New("the"), Config{})
	if _, err := h.crawler.Run(context.Background(), []feed.Source{{Name: "Test", URL: s.url("/feed")}}); err != nil {
		t.Fatalf("crawl: %v", err)
	}

	for word := range h.spy.words {
		if strings.EqualFold(word, "the") {
			t.Fatalf("stopword %q reached the recorder", word)
		}
	}
	if _, ok := h.index.Lookup("the"); ok {
		t.Error("stopword must not be indexed")
	}
	if got := testutil.ToFloat64(h.metrics.StopwordsSkippedTotal); got != 3 {
		t.Errorf("expected 3 skipped stopwords, got %v", got)
	}
	if h.spy.words["banana"] != 1 {
		t.Errorf("expected banana once, got %d", h.spy.words["banana"])
	}
}

func TestDuplicateLinksScannedOnce(t *testing.T) {
	s := newSite(t)
	s.page("/feed", rss(s.url("/a"), s.url("/a")))
	s.page("/a", "<p>banana</p>")

	h := newHarness(t, httpFetcher(), stopwords.New(), Config{})
	sum, err := h.crawler.Run(context.Background(), []feed.Source{{Name: "Test", URL: s.url("/feed")}})
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if h.store.Len() != 1 {
		t.Errorf("expected 1 article, got %d", h.store.Len())
	}
	if n := s.hitCount("/a"); n != 1 {
		t.Errorf("expected one article fetch, got %d", n)
	}
	if sum.Duplicates != 1 {
		t.Errorf("expected 1 duplicate, got %d", sum.Duplicates)
	}
}

func TestSeenSetIsPerFeed(t *testing.T) {
	s := newSite(t)
	s.page("/feed1", rss(s.url("/a")))
	s.page("/feed2", rss(s.url("/a")))
	s.page("/a", "<p>banana</p>")

	h := newHarness(t, httpFetcher(), stopwords.New(), Config{})
	_, err := h.crawler.Run(context.Background(), []feed.Source{
		{Name: "One", URL: s.url("/feed1")},
		{Name: "Two", URL: s.url("/feed2")},
	})
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if h.store.Len() != 2 {
		t.Errorf("expected the shared link once per feed, got %d articles", h.store.Len())
	}
}

func TestRedirectMatchesDirectFetch(t *testing.T) {
	crawl := func(link func(*site) string) *harness {
		s := newSite(t)
		s.page("/a", "<p>Banana banana cherry</p>")
		s.redirect("/old", "/a")
		s.page("/feed", rss(link(s)))
		h := newHarness(t, httpFetcher(), stopwords.New(), Config{})
		if _, err := h.crawler.Run(context.Background(), []feed.Source{{Name: "T", URL: s.url("/feed")}}); err != nil {
			t.Fatalf("crawl: %v", err)
		}
		return h
	}
	direct := crawl(func(s *site) string { return s.url("/a") })
	moved := crawl(func(s *site) string { return s.url("/old") })

	if direct.index.Size() != moved.index.Size() {
		t.Fatalf("index sizes differ: %d vs %d", direct.index.Size(), moved.index.Size())
	}
	for _, w := range []string{"banana", "cherry"} {
		d, _ := direct.index.Lookup(w)
		m, _ := moved.index.Lookup(w)
		if !reflect.DeepEqual(d, m) {
			t.Errorf("%s: direct %v, redirected %v", w, d, m)
		}
	}
	if got := testutil.ToFloat64(moved.metrics.RedirectsTotal.WithLabelValues(metrics.KindArticle)); got != 1 {
		t.Errorf("expected one article redirect, got %v", got)
	}
}

func TestRedirectedFeed(t *testing.T) {
	s := newSite(t)
	s.redirect("/feed-old", "/feed")
	s.page("/feed", rss(s.url("/a")))
	s.page("/a", "<p>banana</p>")

	h := newHarness(t, httpFetcher(), stopwords.New(), Config{})
	if _, err := h.crawler.Run(context.Background(), []feed.Source{{Name: "T", URL: s.url("/feed-old")}}); err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if _, ok := h.index.Lookup("banana"); !ok {
		t.Error("expected the redirected feed to be crawled")
	}
}

func TestZeroConfigUsesDefaults(t *testing.T) {
	h := newHarness(t, httpFetcher(), stopwords.New(), Config{})
	if got := h.crawler.scanner.maxRedirects; got != DefaultMaxRedirects {
		t.Errorf("scanner maxRedirects = %d, want %d", got, DefaultMaxRedirects)
	}
	if got := h.crawler.processor.maxRedirects; got != DefaultMaxRedirects {
		t.Errorf("processor maxRedirects = %d, want %d", got, DefaultMaxRedirects)
	}
	if got := h.crawler.limiter.Capacity(); got != DefaultMaxConnections {
		t.Errorf("limiter capacity = %d, want %d", got, DefaultMaxConnections)
	}
}

func TestScanStatsCountStopwordsAndStripEscapes(t *testing.T) {
	s := newSite(t)
	s.page("/a", "<p>The notwithstanding banana&nbsp;split AT&amp;T</p>")

	h := newHarness(t, httpFetcher(), stopwords.New("the", "notwithstanding"), Config{})
	id := h.store.Append("Story", s.url("/a"))
	stats, err := h.crawler.scanner.Scan(context.Background(), Job{ArticleID: id, URL: s.url("/a")})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if stats.Words != 6 || stats.Stopwords != 2 || stats.Malformed != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.Longest != "notwithstanding" {
		t.Errorf("longest = %q, want the stopword %q", stats.Longest, "notwithstanding")
	}
	for _, w := range []string{"banana", "split", "at", "t"} {
		if h.spy.words[w] != 1 {
			t.Errorf("expected %q recorded once, got %d", w, h.spy.words[w])
		}
	}
}

func TestRedirectLoopIsAbandoned(t *testing.T) {
	s := newSite(t)
	s.redirect("/loop1", "/loop2")
	s.redirect("/loop2", "/loop1")
	s.page("/a", "<p>banana</p>")
	s.page("/feed", rss(s.url("/loop1"), s.url("/a")))

	h := newHarness(t, httpFetcher(), stopwords.New(), Config{MaxRedirects: 5})
	if _, err := h.crawler.Run(context.Background(), []feed.Source{{Name: "T", URL: s.url("/feed")}}); err != nil {
		t.Fatalf("crawl: %v", err)
	}

	if _, ok := h.index.Lookup("banana"); !ok {
		t.Error("healthy article should still be indexed")
	}
	o, ok := h.outcomes.find(s.url("/loop1"))
	if !ok {
		t.Fatal("no outcome recorded for the loop")
	}
	if o.Outcome != apperrors.OutcomeRedirectLoop || o.Redirects != 5 {
		t.Errorf("unexpected loop outcome %+v", o)
	}
	if hits := s.hitCount("/loop1") + s.hitCount("/loop2"); hits != 6 {
		t.Errorf("expected 6 requests in the loop, got %d", hits)
	}
	if got := testutil.ToFloat64(h.metrics.FetchesTotal.WithLabelValues(metrics.KindArticle, apperrors.OutcomeRedirectLoop)); got != 1 {
		t.Errorf("expected one redirect_loop fetch, got %v", got)
	}
}

func TestFailedFetchesAreAbandoned(t *testing.T) {
	s := newSite(t)
	s.page("/feed", rss(s.url("/missing"), s.url("/a")))
	s.page("/a", "<p>banana</p>")

	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL + "/feed"
	dead.Close()

	h := newHarness(t, httpFetcher(), stopwords.New(), Config{})
	sum, err := h.crawler.Run(context.Background(), []feed.Source{
		{Name: "Dead", URL: deadURL},
		{Name: "Live", URL: s.url("/feed")},
		{Name: "Gone", URL: s.url("/nofeed")},
	})
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if sum.Feeds != 3 || sum.FeedsFailed != 2 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if o, _ := h.outcomes.find(deadURL); o.Outcome != apperrors.OutcomeUnreachable || o.StatusCode != 0 {
		t.Errorf("dead feed outcome %+v", o)
	}
	if o, _ := h.outcomes.find(s.url("/missing")); o.Outcome != apperrors.OutcomeHTTPError || o.StatusCode != 404 {
		t.Errorf("missing article outcome %+v", o)
	}
	// The 404 article keeps its ID but contributes nothing.
	if h.store.Len() != 2 {
		t.Errorf("expected 2 registered articles, got %d", h.store.Len())
	}
	got, _ := h.index.Lookup("banana")
	if len(got) != 1 || got[0].ArticleID != 1 {
		t.Errorf("lookup(banana) = %v", got)
	}
}

func TestRunFileMissingList(t *testing.T) {
	h := newHarness(t, httpFetcher(), stopwords.New(), Config{})
	if _, err := h.crawler.RunFile(context.Background(), filepath.Join(t.TempDir(), "none.txt")); err == nil {
		t.Fatal("expected error for a missing feed list")
	}
}

// gatedFetcher serves every URL with the same body but holds each call until
// release is closed, tracking how many calls are inside Fetch at once.
type gatedFetcher struct {
	release  chan struct{}
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	calls    atomic.Int32
}

func (g *gatedFetcher) Fetch(ctx context.Context, url string) (*fetch.Response, error) {
	g.calls.Add(1)
	n := g.inFlight.Add(1)
	for {
		old := g.maxSeen.Load()
		if n <= old || g.maxSeen.CompareAndSwap(old, n) {
			break
		}
	}
	<-g.release
	g.inFlight.Add(-1)
	return &fetch.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("banana"))}, nil
}

func TestLimiterBoundsConcurrentFetches(t *testing.T) {
	g := &gatedFetcher{release: make(chan struct{})}
	h := newHarness(t, g, stopwords.New(), Config{MaxConnections: 2})

	ctx := context.Background()
	for id := 0; id < 3; id++ {
		h.crawler.Dispatch(ctx, Job{ArticleID: h.store.Append("t", fmt.Sprintf("http://x/%d", id)), URL: fmt.Sprintf("http://x/%d", id)})
	}

	deadline := time.Now().Add(2 * time.Second)
	for g.inFlight.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	if n := g.inFlight.Load(); n != 2 {
		t.Fatalf("expected exactly 2 fetches in flight, got %d", n)
	}
	if got := testutil.ToFloat64(h.metrics.ConnectionsInFlight); got != 2 {
		t.Errorf("in-flight gauge = %v", got)
	}

	close(g.release)
	if _, err := h.crawler.Run(ctx, nil); err != nil {
		t.Fatalf("join: %v", err)
	}
	if g.maxSeen.Load() > 2 {
		t.Errorf("observed %d concurrent fetches with capacity 2", g.maxSeen.Load())
	}
	if g.calls.Load() != 3 {
		t.Errorf("expected 3 fetches, got %d", g.calls.Load())
	}
	postings, _ := h.index.Lookup("banana")
	if len(postings) != 3 {
		t.Errorf("expected 3 postings, got %v", postings)
	}
}

func TestLimiterAcquireHonoursContext(t *testing.T) {
	l := NewConnLimiter(1)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Acquire(ctx); err == nil {
		t.Fatal("expected acquire on a full limiter to fail when ctx expires")
	}
	l.Release()
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("slot should be free again: %v", err)
	}
}

func TestSeenURLs(t *testing.T) {
	s := NewSeenURLs()
	if !s.Add("http://a") || s.Add("http://a") || !s.Add("http://b") {
		t.Error("Add should report only first sightings")
	}
	if s.Len() != 2 {
		t.Errorf("expected 2, got %d", s.Len())
	}
}

func TestScanStatsLongWord(t *testing.T) {
	if !(ScanStats{Longest: "internationalization"}).LongWord() {
		t.Error("20-letter word should be flagged")
	}
	if (ScanStats{Longest: "state-of-the-art-thing"}).LongWord() {
		t.Error("hyphenated words are not flagged")
	}
	if (ScanStats{Longest: "banana"}).LongWord() {
		t.Error("short words are not flagged")
	}
}
