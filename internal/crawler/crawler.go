// Package crawler builds the inverted index from a list of RSS feeds. Feeds
// are processed one after another; every new article found in a feed is
// scanned in its own goroutine, bounded by a connection limiter, and Run
// returns only after all scans have joined.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/article"
	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/feed"
	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/index"
	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/stopwords"
	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/newssearch/pkg/fetch"
	"github.com/Adithya-Monish-Kumar-K/newssearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/newssearch/pkg/metrics"
)

// Config bounds the crawl.
type Config struct {
	MaxConnections int
	MaxRedirects   int
	Stemming       bool
}

// Deps are the collaborators of a crawl. Fetcher, Stopwords, Index and Store
// are required; Recorder defaults to Index.
type Deps struct {
	Fetcher   fetch.Fetcher
	Stopwords *stopwords.Set
	Index     *index.Index
	Store     *article.Store
	Metrics   *metrics.Metrics
	Recorder  Recorder
	Outcomes  OutcomeRecorder
	Tracker   Tracker
}

// Summary describes a finished crawl.
type Summary struct {
	Feeds        int
	FeedsFailed  int
	Articles     int
	Duplicates   int
	IndexedWords int
	Duration     time.Duration
}

// Crawler runs one crawl. It is not reusable across runs.
type Crawler struct {
	cfg       Config
	index     *index.Index
	store     *article.Store
	limiter   *ConnLimiter
	scanner   *ArticleScanner
	processor *FeedProcessor
	group     errgroup.Group
	logger    *slog.Logger
}

func New(cfg Config, deps Deps) *Crawler {
	if cfg.MaxConnections < 1 {
		cfg.MaxConnections = DefaultMaxConnections
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New(nil)
	}
	if deps.Recorder == nil {
		deps.Recorder = deps.Index
	}
	log := slog.Default().With("component", "crawler")

	c := &Crawler{
		cfg:     cfg,
		index:   deps.Index,
		store:   deps.Store,
		limiter: NewConnLimiter(cfg.MaxConnections),
		logger:  log,
	}
	c.scanner = &ArticleScanner{
		fetcher:      deps.Fetcher,
		limiter:      c.limiter,
		stopwords:    deps.Stopwords,
		recorder:     deps.Recorder,
		normalize:    tokenizer.NewNormalizer(cfg.Stemming),
		maxRedirects: cfg.MaxRedirects,
		metrics:      deps.Metrics,
		outcomes:     deps.Outcomes,
		tracker:      deps.Tracker,
		logger:       log,
	}
	c.processor = &FeedProcessor{
		fetcher:      deps.Fetcher,
		store:        deps.Store,
		dispatcher:   c,
		maxRedirects: cfg.MaxRedirects,
		metrics:      deps.Metrics,
		outcomes:     deps.Outcomes,
		tracker:      deps.Tracker,
		logger:       log,
	}
	return c
}

// Dispatch scans job in a new goroutine joined by Run. A failed scan only
// abandons that article.
func (c *Crawler) Dispatch(ctx context.Context, job Job) {
	c.group.Go(func() error {
		_, _ = c.scanner.Scan(ctx, job)
		return nil
	})
}

// Run processes every source in order, each with its own seen set, then
// waits for all article scans. The index and store are complete and
// read-only once Run returns.
func (c *Crawler) Run(ctx context.Context, sources []feed.Source) (Summary, error) {
	start := time.Now()
	var sum Summary
	log := logger.FromContext(ctx).With("component", "crawler")
	log.Info("crawl started", "feeds", len(sources), "max_connections", c.limiter.Capacity())

	for _, src := range sources {
		if ctx.Err() != nil {
			break
		}
		stats, err := c.processor.Process(ctx, src, NewSeenURLs())
		sum.Feeds++
		sum.Duplicates += stats.Duplicates
		if err != nil {
			sum.FeedsFailed++
		}
	}
	_ = c.group.Wait()

	sum.Articles = c.store.Len()
	sum.IndexedWords = c.index.Size()
	sum.Duration = time.Since(start)
	log.Info("crawl finished",
		"feeds", sum.Feeds,
		"feeds_failed", sum.FeedsFailed,
		"articles", sum.Articles,
		"duplicates", sum.Duplicates,
		"indexed_words", sum.IndexedWords,
		"duration", sum.Duration.Round(time.Millisecond),
	)
	if err := ctx.Err(); err != nil {
		return sum, fmt.Errorf("crawl interrupted: %w", err)
	}
	return sum, nil
}

// RunFile reads the feed list at path and runs the crawl. A missing feed
// list is an error.
func (c *Crawler) RunFile(ctx context.Context, path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("opening feed list: %w", err)
	}
	sources, err := feed.ParseList(f)
	f.Close()
	if err != nil {
		return Summary{}, err
	}
	return c.Run(ctx, sources)
}
