package crawler

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/article"
	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/feed"
	apperrors "github.com/Adithya-Monish-Kumar-K/newssearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/newssearch/pkg/fetch"
	"github.com/Adithya-Monish-Kumar-K/newssearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/newssearch/pkg/metrics"
)

// Dispatcher starts an article scan without waiting for it.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job)
}

// FeedStats counts what one feed contributed.
type FeedStats struct {
	Items       int
	NewArticles int
	Duplicates  int
}

// FeedProcessor turns one feed document into registered articles and
// dispatched scans.
type FeedProcessor struct {
	fetcher      fetch.Fetcher
	store        *article.Store
	dispatcher   Dispatcher
	maxRedirects int
	metrics      *metrics.Metrics
	outcomes     OutcomeRecorder
	tracker      Tracker
	logger       *slog.Logger
}

// Process fetches src.URL, following redirects with the same seen set, and
// registers every item whose link seen has not yet recorded. It returns once
// the feed is parsed; dispatched scans keep running.
func (p *FeedProcessor) Process(ctx context.Context, src feed.Source, seen *SeenURLs) (FeedStats, error) {
	var stats FeedStats
	log := logger.FromContext(ctx).With("component", "feed-processor", "feed", src.Name)

	start := time.Now()
	body, h, err := follow(ctx, p.fetcher, src.URL, p.maxRedirects)
	if err == nil {
		err = feed.Parse(body, func(it feed.Item) {
			stats.Items++
			if !seen.Add(it.Link) {
				stats.Duplicates++
				p.metrics.DuplicateItemsTotal.Inc()
				return
			}
			id := p.store.Append(it.Title, it.Link)
			stats.NewArticles++
			p.metrics.ArticlesRegisteredTotal.Inc()
			p.dispatcher.Dispatch(ctx, Job{
				ArticleID:   id,
				Title:       it.Title,
				Description: it.Description,
				URL:         it.Link,
				Feed:        src.Name,
			})
		})
		body.Close()
	}
	elapsed := time.Since(start)

	outcome := apperrors.Outcome(err)
	p.metrics.FetchesTotal.WithLabelValues(metrics.KindFeed, outcome).Inc()
	p.metrics.FetchDuration.WithLabelValues(metrics.KindFeed).Observe(elapsed.Seconds())
	if h.redirects > 0 {
		p.metrics.RedirectsTotal.WithLabelValues(metrics.KindFeed).Add(float64(h.redirects))
	}
	if p.outcomes != nil {
		if rerr := p.outcomes.RecordFetch(ctx, FetchOutcome{
			Kind:       metrics.KindFeed,
			URL:        src.URL,
			FinalURL:   h.url,
			StatusCode: h.statusCode,
			Outcome:    outcome,
			Redirects:  h.redirects,
			Duration:   elapsed,
		}); rerr != nil {
			p.logger.Warn("recording fetch outcome failed", "url", src.URL, "error", rerr)
		}
	}
	if p.tracker != nil {
		p.tracker.Track(analytics.FeedEvent{
			Type:        analytics.EventFeedProcessed,
			Feed:        src.Name,
			URL:         src.URL,
			Outcome:     outcome,
			StatusCode:  h.statusCode,
			Items:       stats.Items,
			NewArticles: stats.NewArticles,
			Duplicates:  stats.Duplicates,
			LatencyMs:   elapsed.Milliseconds(),
			Timestamp:   time.Now().UTC(),
		})
	}

	if err != nil {
		logFetchFailure(log, "feed", h, err)
		return stats, err
	}
	log.Info("feed processed",
		"url", h.url,
		"items", stats.Items,
		"new_articles", stats.NewArticles,
		"duplicates", stats.Duplicates,
		"duration", elapsed.Round(time.Millisecond),
	)
	return stats, nil
}
