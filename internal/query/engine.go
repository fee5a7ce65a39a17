// Package query answers single-word lookups against a finished crawl.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/article"
	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/index"
	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/stopwords"
	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/newssearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/newssearch/pkg/metrics"
)

// DefaultTopN is how many articles an answer lists.
const DefaultTopN = 5

type Outcome string

const (
	OutcomeRanked     Outcome = "ranked"
	OutcomeNotIndexed Outcome = "not_indexed"
	OutcomeTooCommon  Outcome = "too_common"
	OutcomeRejected   Outcome = "rejected"
)

// Result is one ranked article.
type Result struct {
	Rank      int    `json:"rank"`
	ArticleID int    `json:"article_id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Count     int    `json:"count"`
}

// Answer is the response to one query. Total counts every matching article;
// Results holds at most TopN of them, highest count first.
type Answer struct {
	Query   string   `json:"query"`
	Word    string   `json:"word"`
	Outcome Outcome  `json:"outcome"`
	Total   int      `json:"total"`
	Results []Result `json:"results"`
	Cached  bool     `json:"-"`
}

type Config struct {
	TopN     int
	Stemming bool
}

// Deps are the engine's collaborators. Cache, Metrics and Tracker are
// optional.
type Deps struct {
	Index     *index.Index
	Store     *article.Store
	Stopwords *stopwords.Set
	Cache     *Cache
	Metrics   *metrics.Metrics
	Tracker   interface{ Track(event any) }
}

// Engine must only be used after the crawl has joined.
type Engine struct {
	topN      int
	normalize tokenizer.Normalizer
	deps      Deps
	logger    *slog.Logger
}

func New(cfg Config, deps Deps) *Engine {
	if cfg.TopN < 1 {
		cfg.TopN = DefaultTopN
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New(nil)
	}
	return &Engine{
		topN:      cfg.TopN,
		normalize: tokenizer.NewNormalizer(cfg.Stemming),
		deps:      deps,
		logger:    slog.Default().With("component", "query-engine"),
	}
}

func (e *Engine) TopN() int { return e.topN }

// Answer classifies and answers query. Ill-formed input is Rejected, a
// stopword is TooCommon, an unknown word is NotIndexed.
func (e *Engine) Answer(ctx context.Context, query string) (*Answer, error) {
	start := time.Now()
	ans, err := e.answer(ctx, query)
	if err != nil {
		return nil, err
	}
	e.deps.Metrics.QueriesTotal.WithLabelValues(string(ans.Outcome)).Inc()
	if e.deps.Tracker != nil {
		e.deps.Tracker.Track(analytics.QueryEvent{
			Type:      analytics.EventQueryAnswered,
			Query:     ans.Query,
			Outcome:   string(ans.Outcome),
			TotalHits: ans.Total,
			Returned:  len(ans.Results),
			CacheHit:  ans.Cached,
			LatencyMs: time.Since(start).Milliseconds(),
			Timestamp: time.Now().UTC(),
		})
	}
	logger.FromContext(ctx).Debug("query answered",
		"query", ans.Query,
		"outcome", ans.Outcome,
		"total", ans.Total,
		"cached", ans.Cached,
	)
	return ans, nil
}

func (e *Engine) answer(ctx context.Context, query string) (*Answer, error) {
	q := strings.TrimSpace(query)
	if q == "" || !tokenizer.IsWellFormed(q) {
		return &Answer{Query: q, Outcome: OutcomeRejected}, nil
	}
	word := strings.ToLower(q)
	if e.deps.Stopwords.Contains(word) {
		return &Answer{Query: q, Word: word, Outcome: OutcomeTooCommon}, nil
	}
	key := e.normalize(word)

	if e.deps.Cache == nil {
		return e.lookup(q, key), nil
	}
	cached, hit, err := e.deps.Cache.GetOrCompute(ctx, key, e.topN, func() (*Answer, error) {
		return e.lookup(q, key), nil
	})
	if err != nil {
		return nil, fmt.Errorf("answering %q: %w", q, err)
	}
	if hit {
		e.deps.Metrics.CacheHitsTotal.Inc()
	} else {
		e.deps.Metrics.CacheMissesTotal.Inc()
	}
	ans := *cached
	ans.Query = q
	ans.Cached = hit
	return &ans, nil
}

func (e *Engine) lookup(q, word string) *Answer {
	postings, ok := e.deps.Index.Lookup(word)
	if !ok {
		return &Answer{Query: q, Word: word, Outcome: OutcomeNotIndexed}
	}
	ans := &Answer{
		Query:   q,
		Word:    word,
		Outcome: OutcomeRanked,
		Total:   len(postings),
	}
	n := min(len(postings), e.topN)
	ans.Results = make([]Result, 0, n)
	for i, p := range postings[:n] {
		art, ok := e.deps.Store.Get(p.ArticleID)
		if !ok {
			e.logger.Error("posting references unknown article", "word", word, "article_id", p.ArticleID)
			continue
		}
		ans.Results = append(ans.Results, Result{
			Rank:      i + 1,
			ArticleID: art.ID,
			Title:     art.Title,
			URL:       art.URL,
			Count:     p.Count,
		})
	}
	return ans
}
