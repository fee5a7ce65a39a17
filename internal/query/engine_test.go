package query

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/article"
	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/index"
	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/stopwords"
	"github.com/Adithya-Monish-Kumar-K/newssearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/newssearch/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/newssearch/pkg/redis"
)

// bananaFixture is the state after crawling two articles mentioning banana
// three times and once.
func bananaFixture() Deps {
	ix := index.New()
	store := article.NewStore()
	a := store.Append("All about bananas", "http://a")
	b := store.Append("Fruit roundup", "http://b")
	for i := 0; i < 3; i++ {
		ix.RecordOccurrence("banana", a)
	}
	ix.RecordOccurrence("banana", b)
	return Deps{
		Index:     ix,
		Store:     store,
		Stopwords: stopwords.New("the", "and"),
		Metrics:   metrics.New(nil),
	}
}

func TestAnswerRanksByCount(t *testing.T) {
	e := New(Config{}, bananaFixture())
	ans, err := e.Answer(context.Background(), "  Banana ")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if ans.Outcome != OutcomeRanked || ans.Total != 2 || len(ans.Results) != 2 {
		t.Fatalf("unexpected answer %+v", ans)
	}
	first, second := ans.Results[0], ans.Results[1]
	if first.URL != "http://a" || first.Count != 3 || first.Rank != 1 {
		t.Errorf("first result %+v", first)
	}
	if second.URL != "http://b" || second.Count != 1 || second.Rank != 2 {
		t.Errorf("second result %+v", second)
	}
}

func TestAnswerOutcomes(t *testing.T) {
	deps := bananaFixture()
	e := New(Config{}, deps)
	tests := []struct {
		query string
		want  Outcome
	}{
		{"the", OutcomeTooCommon},
		{"THE", OutcomeTooCommon},
		{"cherry", OutcomeNotIndexed},
		{"2fast", OutcomeRejected},
		{"ba nana", OutcomeRejected},
		{"", OutcomeRejected},
	}
	for _, tt := range tests {
		ans, err := e.Answer(context.Background(), tt.query)
		if err != nil {
			t.Fatalf("answer(%q): %v", tt.query, err)
		}
		if ans.Outcome != tt.want {
			t.Errorf("answer(%q) = %s, want %s", tt.query, ans.Outcome, tt.want)
		}
	}
	if got := testutil.ToFloat64(deps.Metrics.QueriesTotal.WithLabelValues(string(OutcomeRejected))); got != 3 {
		t.Errorf("expected 3 rejected queries, got %v", got)
	}
}

func TestAnswerLimitsToTopN(t *testing.T) {
	ix := index.New()
	store := article.NewStore()
	for i := 0; i < 8; i++ {
		id := store.Append(fmt.Sprintf("story %d", i), fmt.Sprintf("http://x/%d", i))
		for j := 0; j <= i; j++ {
			ix.RecordOccurrence("news", id)
		}
	}
	e := New(Config{TopN: 5}, Deps{Index: ix, Store: store, Stopwords: stopwords.New()})

	ans, err := e.Answer(context.Background(), "news")
	if err != nil {
		t.Fatal(err)
	}
	if ans.Total != 8 || len(ans.Results) != 5 {
		t.Fatalf("expected 5 of 8 results, got %d of %d", len(ans.Results), ans.Total)
	}
	for i, r := range ans.Results {
		if r.Count != 8-i {
			t.Errorf("rank %d has count %d", r.Rank, r.Count)
		}
	}
}

func TestAnswerWithStemming(t *testing.T) {
	ix := index.New()
	store := article.NewStore()
	id := store.Append("Race report", "http://r")
	ix.RecordOccurrence("run", id) // stemmed form of "running" and "runs"
	e := New(Config{Stemming: true}, Deps{Index: ix, Store: store, Stopwords: stopwords.New()})

	ans, err := e.Answer(context.Background(), "Running")
	if err != nil {
		t.Fatal(err)
	}
	if ans.Outcome != OutcomeRanked || ans.Word != "run" {
		t.Errorf("unexpected answer %+v", ans)
	}
}

type recordingTracker struct {
	mu     sync.Mutex
	events []any
}

func (r *recordingTracker) Track(event any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func TestAnswerTracksEvents(t *testing.T) {
	deps := bananaFixture()
	tr := &recordingTracker{}
	deps.Tracker = tr
	e := New(Config{}, deps)
	e.Answer(context.Background(), "banana")
	e.Answer(context.Background(), "the")
	if len(tr.events) != 2 {
		t.Errorf("expected 2 events, got %d", len(tr.events))
	}
}

// memoryKV is an in-process stand-in for redis.
type memoryKV struct {
	mu   sync.Mutex
	data map[string][]byte
	gets int
}

func newMemoryKV() *memoryKV { return &memoryKV{data: make(map[string][]byte)} }

func (m *memoryKV) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	v, ok := m.data[key]
	if !ok {
		return nil, goredis.Nil
	}
	return v, nil
}

func (m *memoryKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryKV) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func TestAnswerUsesCache(t *testing.T) {
	deps := bananaFixture()
	kv := newMemoryKV()
	deps.Cache = NewCache(kv, "run-1", time.Minute)
	e := New(Config{}, deps)

	first, err := e.Answer(context.Background(), "banana")
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Answer(context.Background(), "Banana")
	if err != nil {
		t.Fatal(err)
	}
	if first.Cached || !second.Cached {
		t.Errorf("expected miss then hit, got %v then %v", first.Cached, second.Cached)
	}
	if second.Query != "Banana" || len(second.Results) != 2 || second.Results[0].Count != 3 {
		t.Errorf("cached answer lost data: %+v", second)
	}
	if got := testutil.ToFloat64(deps.Metrics.CacheHitsTotal); got != 1 {
		t.Errorf("cache hits = %v", got)
	}
	// Stopwords never touch the cache.
	before := kv.gets
	e.Answer(context.Background(), "the")
	if kv.gets != before {
		t.Error("stopword query should not consult the cache")
	}
}

func TestCacheIsScopedToRun(t *testing.T) {
	kv := newMemoryKV()
	old := NewCache(kv, "run-old", time.Minute)
	cur := NewCache(kv, "run-new", time.Minute)
	old.Set(context.Background(), "banana", 5, &Answer{Outcome: OutcomeRanked, Total: 9})

	if _, ok := cur.Get(context.Background(), "banana", 5); ok {
		t.Fatal("a new run must not see an older run's answers")
	}
	if err := old.Invalidate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, ok := old.Get(context.Background(), "banana", 5); ok {
		t.Error("invalidated answer still cached")
	}
	hits, misses := old.Stats()
	if hits != 0 || misses != 1 {
		t.Errorf("stats = %d hits, %d misses", hits, misses)
	}
}

func TestCacheAgainstRedis(t *testing.T) {
	client, err := pkgredis.NewClient(config.RedisConfig{Addr: "localhost:6379", PoolSize: 2})
	if err != nil {
		t.Skipf("skipping: redis unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	c := NewCache(client, fmt.Sprintf("test-%d", time.Now().UnixNano()), time.Minute)
	t.Cleanup(func() { c.Invalidate(context.Background()) })

	calls := 0
	compute := func() (*Answer, error) {
		calls++
		return &Answer{Word: "banana", Outcome: OutcomeRanked, Total: 1}, nil
	}
	for i := 0; i < 2; i++ {
		if _, _, err := c.GetOrCompute(context.Background(), "banana", 5, compute); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 1 {
		t.Errorf("expected one computation, got %d", calls)
	}
}
