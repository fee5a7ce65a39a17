package analytics

import "time"

type EventType string

const (
	EventArticleScanned EventType = "article_scanned"
	EventFeedProcessed  EventType = "feed_processed"
	EventQueryAnswered  EventType = "query_answered"
)

// ArticleEvent is emitted when an article scan reaches a terminal outcome.
type ArticleEvent struct {
	Type       EventType `json:"type"`
	ArticleID  int       `json:"article_id"`
	URL        string    `json:"url"`
	Outcome    string    `json:"outcome"`
	StatusCode int       `json:"status_code"`
	Redirects  int       `json:"redirects"`
	Words      int       `json:"words"`
	Stopwords  int       `json:"stopwords"`
	Longest    string    `json:"longest_word,omitempty"`
	LatencyMs  int64     `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// FeedEvent is emitted once per feed line.
type FeedEvent struct {
	Type        EventType `json:"type"`
	Feed        string    `json:"feed"`
	URL         string    `json:"url"`
	Outcome     string    `json:"outcome"`
	StatusCode  int       `json:"status_code"`
	Items       int       `json:"items"`
	NewArticles int       `json:"new_articles"`
	Duplicates  int       `json:"duplicates"`
	LatencyMs   int64     `json:"latency_ms"`
	Timestamp   time.Time `json:"timestamp"`
}

// QueryEvent is emitted for every query answered at the console.
type QueryEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Outcome   string    `json:"outcome"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	CacheHit  bool      `json:"cache_hit"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// typeOf returns the event's type tag, or "" for values that are not events.
func typeOf(event any) EventType {
	switch e := event.(type) {
	case ArticleEvent:
		return e.Type
	case FeedEvent:
		return e.Type
	case QueryEvent:
		return e.Type
	default:
		return ""
	}
}
