// Package ledger records crawl runs and the terminal outcome of every fetch in
// a SQL database, so past crawls can be listed with the history command.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/crawler"
	"github.com/Adithya-Monish-Kumar-K/newssearch/pkg/database"
	"github.com/Adithya-Monish-Kumar-K/newssearch/pkg/logger"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS crawl_runs (
		id            TEXT PRIMARY KEY,
		feeds_file    TEXT NOT NULL,
		started_at    BIGINT NOT NULL,
		finished_at   BIGINT,
		feeds         INTEGER,
		feeds_failed  INTEGER,
		articles      INTEGER,
		duplicates    INTEGER,
		indexed_words INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS fetch_outcomes (
		run_id      TEXT NOT NULL,
		kind        TEXT NOT NULL,
		url         TEXT NOT NULL,
		final_url   TEXT NOT NULL,
		status_code INTEGER NOT NULL,
		outcome     TEXT NOT NULL,
		redirects   INTEGER NOT NULL,
		duration_ms BIGINT NOT NULL,
		recorded_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_fetch_outcomes_run ON fetch_outcomes (run_id)`,
}

type Ledger struct {
	db     *database.Client
	logger *slog.Logger
}

// New migrates the schema and returns a ledger backed by db.
func New(ctx context.Context, db *database.Client) (*Ledger, error) {
	err := db.InTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrating ledger schema: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Ledger{db: db, logger: logger.WithComponent("ledger")}, nil
}

// Run is one crawl being recorded. It implements crawler.OutcomeRecorder.
type Run struct {
	ledger *Ledger
	id     string
}

func (l *Ledger) StartRun(ctx context.Context, runID, feedsFile string, startedAt time.Time) (*Run, error) {
	_, err := l.db.DB.ExecContext(ctx,
		l.db.Rebind(`INSERT INTO crawl_runs (id, feeds_file, started_at) VALUES (?, ?, ?)`),
		runID, feedsFile, startedAt.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting crawl run: %w", err)
	}
	l.logger.Debug("crawl run started", "run_id", runID, "feeds_file", feedsFile)
	return &Run{ledger: l, id: runID}, nil
}

func (r *Run) ID() string { return r.id }

func (r *Run) RecordFetch(ctx context.Context, o crawler.FetchOutcome) error {
	db := r.ledger.db
	_, err := db.DB.ExecContext(ctx,
		db.Rebind(`INSERT INTO fetch_outcomes
			(run_id, kind, url, final_url, status_code, outcome, redirects, duration_ms, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.id, o.Kind, o.URL, o.FinalURL, o.StatusCode, o.Outcome, o.Redirects,
		o.Duration.Milliseconds(), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting fetch outcome: %w", err)
	}
	return nil
}

// Finish stores the crawl summary. It uses its own context so a crawl that
// was interrupted still gets its partial totals written.
func (r *Run) Finish(sum crawler.Summary) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db := r.ledger.db
	res, err := db.DB.ExecContext(ctx,
		db.Rebind(`UPDATE crawl_runs
			SET finished_at = ?, feeds = ?, feeds_failed = ?, articles = ?, duplicates = ?, indexed_words = ?
			WHERE id = ?`),
		time.Now().UnixMilli(), sum.Feeds, sum.FeedsFailed, sum.Articles, sum.Duplicates, sum.IndexedWords, r.id,
	)
	if err != nil {
		return fmt.Errorf("finishing crawl run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finishing crawl run %s: no such run", r.id)
	}
	return nil
}

// RunRecord is one row of crawl history. FinishedAt is zero for a run that
// never finished.
type RunRecord struct {
	ID           string
	FeedsFile    string
	StartedAt    time.Time
	FinishedAt   time.Time
	Feeds        int
	FeedsFailed  int
	Articles     int
	Duplicates   int
	IndexedWords int
}

// Runs lists the most recent runs, newest first.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := l.db.DB.QueryContext(ctx,
		l.db.Rebind(`SELECT id, feeds_file, started_at, finished_at,
			COALESCE(feeds, 0), COALESCE(feeds_failed, 0), COALESCE(articles, 0),
			COALESCE(duplicates, 0), COALESCE(indexed_words, 0)
			FROM crawl_runs ORDER BY started_at DESC LIMIT ?`),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying crawl runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			rec      RunRecord
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&rec.ID, &rec.FeedsFile, &started, &finished,
			&rec.Feeds, &rec.FeedsFailed, &rec.Articles, &rec.Duplicates, &rec.IndexedWords); err != nil {
			return nil, fmt.Errorf("scanning crawl run: %w", err)
		}
		rec.StartedAt = time.UnixMilli(started)
		if finished.Valid {
			rec.FinishedAt = time.UnixMilli(finished.Int64)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// OutcomeCounts tallies a run's fetches by outcome.
func (l *Ledger) OutcomeCounts(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := l.db.DB.QueryContext(ctx,
		l.db.Rebind(`SELECT outcome, COUNT(*) FROM fetch_outcomes WHERE run_id = ? GROUP BY outcome`),
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying fetch outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scanning fetch outcome: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

func (l *Ledger) Ping(ctx context.Context) error {
	return l.db.Ping(ctx)
}

func (l *Ledger) Close() error {
	return l.db.Close()
}
