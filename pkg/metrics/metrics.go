// Package metrics defines the Prometheus collectors for the crawl and query
// phases and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch kinds used as the "kind" label.
const (
	KindFeed    = "feed"
	KindArticle = "article"
)

// Metrics holds all Prometheus collectors for one newssearch process.
type Metrics struct {
	FetchesTotal            *prometheus.CounterVec
	FetchDuration           *prometheus.HistogramVec
	RedirectsTotal          *prometheus.CounterVec
	ConnectionsInFlight     prometheus.Gauge
	ArticlesRegisteredTotal prometheus.Counter
	DuplicateItemsTotal     prometheus.Counter
	ArticlesScannedTotal    prometheus.Counter
	WordsRecordedTotal      prometheus.Counter
	StopwordsSkippedTotal   prometheus.Counter
	IndexedWords            prometheus.Gauge
	QueriesTotal            *prometheus.CounterVec
	CacheHitsTotal          prometheus.Counter
	CacheMissesTotal        prometheus.Counter

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg. A nil reg gets a
// fresh private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		FetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newssearch_fetches_total",
				Help: "Terminal fetch outcomes by kind (feed, article) and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "newssearch_fetch_duration_seconds",
				Help:    "Time from first request to terminal outcome, redirects included.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind"},
		),
		RedirectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newssearch_redirects_total",
				Help: "Redirect hops followed by kind.",
			},
			[]string{"kind"},
		),
		ConnectionsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "newssearch_connections_in_flight",
				Help: "Connection limiter slots currently held.",
			},
		),
		ArticlesRegisteredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "newssearch_articles_registered_total",
				Help: "Articles appended to the article store.",
			},
		),
		DuplicateItemsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "newssearch_duplicate_items_total",
				Help: "Feed items skipped because their link was already seen in the feed.",
			},
		),
		ArticlesScannedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "newssearch_articles_scanned_total",
				Help: "Article bodies fetched and tokenized.",
			},
		),
		WordsRecordedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "newssearch_words_recorded_total",
				Help: "Word occurrences recorded in the inverted index.",
			},
		),
		StopwordsSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "newssearch_stopwords_skipped_total",
				Help: "Stopword occurrences dropped during scanning.",
			},
		),
		IndexedWords: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "newssearch_indexed_words",
				Help: "Distinct words in the inverted index.",
			},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newssearch_queries_total",
				Help: "Queries answered by outcome (ranked, not_indexed, too_common, rejected).",
			},
			[]string{"outcome"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "newssearch_query_cache_hits_total",
				Help: "Query answers served from the cache.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "newssearch_query_cache_misses_total",
				Help: "Query answers computed from the index.",
			},
		),
		gatherer: reg,
	}

	reg.MustRegister(
		m.FetchesTotal,
		m.FetchDuration,
		m.RedirectsTotal,
		m.ConnectionsInFlight,
		m.ArticlesRegisteredTotal,
		m.DuplicateItemsTotal,
		m.ArticlesScannedTotal,
		m.WordsRecordedTotal,
		m.StopwordsSkippedTotal,
		m.IndexedWords,
		m.QueriesTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for this instance.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
