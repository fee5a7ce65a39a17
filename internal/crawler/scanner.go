package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/stopwords"
	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/newssearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/newssearch/pkg/fetch"
	"github.com/Adithya-Monish-Kumar-K/newssearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/newssearch/pkg/metrics"
)

// longWordLen is the length from which an unhyphenated word is flagged in
// scan logs.
const longWordLen = 15

// Recorder receives every indexable word occurrence.
type Recorder interface {
	RecordOccurrence(word string, articleID int)
}

// Tracker receives analytics events.
type Tracker interface {
	Track(event any)
}

// Job is one registered article waiting to be scanned.
type Job struct {
	ArticleID   int
	Title       string
	Description string
	URL         string
	Feed        string
}

// ScanStats summarises one article body. Words counts every well-formed
// token, stopwords included, and Longest is taken over the same tokens.
type ScanStats struct {
	Words     int
	Stopwords int
	Malformed int
	Longest   string
}

// LongWord reports whether the longest word deserves a mention.
func (s ScanStats) LongWord() bool {
	return utf8.RuneCountInString(s.Longest) >= longWordLen && !strings.Contains(s.Longest, "-")
}

// ArticleScanner fetches and indexes articles. Scan calls run concurrently,
// bounded by the shared ConnLimiter.
type ArticleScanner struct {
	fetcher      fetch.Fetcher
	limiter      *ConnLimiter
	stopwords    *stopwords.Set
	recorder     Recorder
	normalize    tokenizer.Normalizer
	maxRedirects int
	metrics      *metrics.Metrics
	outcomes     OutcomeRecorder
	tracker      Tracker
	logger       *slog.Logger
}

// Scan fetches the article, following redirects while holding one limiter
// slot, and records every well-formed non-stopword token.
func (s *ArticleScanner) Scan(ctx context.Context, job Job) (ScanStats, error) {
	var stats ScanStats
	log := logger.FromContext(ctx).With("component", "article-scanner", "article_id", job.ArticleID, "url", job.URL)

	if err := s.limiter.Acquire(ctx); err != nil {
		return stats, fmt.Errorf("acquiring connection slot: %w", err)
	}
	defer s.limiter.Release()
	s.metrics.ConnectionsInFlight.Inc()
	defer s.metrics.ConnectionsInFlight.Dec()

	start := time.Now()
	body, h, err := follow(ctx, s.fetcher, job.URL, s.maxRedirects)
	if err == nil {
		err = tokenizer.Scan(body, tokenizer.Delimiters, func(token string) {
			s.consume(token, job.ArticleID, &stats)
		})
		body.Close()
	}
	elapsed := time.Since(start)

	outcome := apperrors.Outcome(err)
	s.record(ctx, FetchOutcome{
		Kind:       metrics.KindArticle,
		URL:        job.URL,
		FinalURL:   h.url,
		StatusCode: h.statusCode,
		Outcome:    outcome,
		Redirects:  h.redirects,
		Duration:   elapsed,
	})
	s.track(analytics.ArticleEvent{
		Type:       analytics.EventArticleScanned,
		ArticleID:  job.ArticleID,
		URL:        job.URL,
		Outcome:    outcome,
		StatusCode: h.statusCode,
		Redirects:  h.redirects,
		Words:      stats.Words,
		Stopwords:  stats.Stopwords,
		Longest:    stats.Longest,
		LatencyMs:  elapsed.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	})

	if err != nil {
		logFetchFailure(log, "article", h, err)
		return stats, err
	}

	s.metrics.ArticlesScannedTotal.Inc()
	attrs := []any{
		"title", job.Title,
		"words", stats.Words,
		"stopwords", stats.Stopwords,
		"malformed", stats.Malformed,
		"longest", stats.Longest,
		"redirects", h.redirects,
		"duration", elapsed.Round(time.Millisecond),
	}
	if stats.LongWord() {
		attrs = append(attrs, "long_word", true)
	}
	if sized, ok := s.recorder.(interface{ Size() int }); ok {
		n := sized.Size()
		s.metrics.IndexedWords.Set(float64(n))
		attrs = append(attrs, "indexed_words", n)
	}
	log.Info("article scanned", attrs...)
	return stats, nil
}

func (s *ArticleScanner) consume(token string, articleID int, stats *ScanStats) {
	if !tokenizer.IsWellFormed(token) {
		stats.Malformed++
		return
	}
	if token == "" {
		return
	}
	stats.Words++
	if utf8.RuneCountInString(token) > utf8.RuneCountInString(stats.Longest) {
		stats.Longest = token
	}
	word := strings.ToLower(token)
	if s.stopwords.Contains(word) {
		stats.Stopwords++
		s.metrics.StopwordsSkippedTotal.Inc()
		return
	}
	s.recorder.RecordOccurrence(s.normalize(word), articleID)
	s.metrics.WordsRecordedTotal.Inc()
}

func (s *ArticleScanner) record(ctx context.Context, o FetchOutcome) {
	s.metrics.FetchesTotal.WithLabelValues(o.Kind, o.Outcome).Inc()
	s.metrics.FetchDuration.WithLabelValues(o.Kind).Observe(o.Duration.Seconds())
	if o.Redirects > 0 {
		s.metrics.RedirectsTotal.WithLabelValues(o.Kind).Add(float64(o.Redirects))
	}
	if s.outcomes == nil {
		return
	}
	if err := s.outcomes.RecordFetch(ctx, o); err != nil {
		s.logger.Warn("recording fetch outcome failed", "url", o.URL, "error", err)
	}
}

func (s *ArticleScanner) track(event any) {
	if s.tracker != nil {
		s.tracker.Track(event)
	}
}

// logFetchFailure logs a terminal fetch failure by response class.
func logFetchFailure(log *slog.Logger, what string, h hop, err error) {
	switch apperrors.Outcome(err) {
	case apperrors.OutcomeUnreachable:
		log.Warn("unable to connect, ignoring "+what, "target", h.url, "error", err)
	case apperrors.OutcomeRedirectLoop:
		log.Warn("too many redirects, ignoring "+what, "target", h.url, "redirects", h.redirects)
	case apperrors.OutcomeHTTPError:
		log.Warn("unexpected response, ignoring "+what, "target", h.url, "status", h.statusCode)
	case apperrors.OutcomeCanceled:
		log.Info(what+" fetch canceled", "target", h.url)
	default:
		log.Error(what+" failed", "target", h.url, "error", err)
	}
}
