package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/article"
	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/console"
	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/crawler"
	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/index"
	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/ledger"
	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/query"
	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/stopwords"
	"github.com/Adithya-Monish-Kumar-K/newssearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/newssearch/pkg/database"
	"github.com/Adithya-Monish-Kumar-K/newssearch/pkg/fetch"
	"github.com/Adithya-Monish-Kumar-K/newssearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/newssearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/newssearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/newssearch/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/newssearch/pkg/redis"
)

type rootFlags struct {
	config         string
	feeds          string
	stopwords      string
	maxConnections int
	top            int
}

func newRootCmd() *cobra.Command {
	var flags rootFlags
	cmd := &cobra.Command{
		Use:   "newssearch [feeds-file]",
		Short: "Crawl RSS feeds into an inverted index and search it",
		Long: "newssearch downloads every article listed in a set of RSS feeds, indexes the words " +
			"they contain, and then answers single-word queries with the articles that use the word most.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Crawl.FeedsFile = args[0]
			}
			return runSearch(cmd, cfg)
		},
	}
	cmd.PersistentFlags().StringVar(&flags.config, "config", "", "path to config file (default "+config.DefaultPath()+")")
	cmd.Flags().StringVar(&flags.feeds, "feeds", "", "file listing the RSS feeds to crawl")
	cmd.Flags().StringVar(&flags.stopwords, "stopwords", "", "file listing words never indexed")
	cmd.Flags().IntVar(&flags.maxConnections, "max-connections", 0, "maximum concurrent article downloads")
	cmd.Flags().IntVar(&flags.top, "top", 0, "number of articles listed per query")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newHistoryCmd(&flags))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "newssearch %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

// loadConfig reads the config file and lets explicitly set flags win over it.
func loadConfig(cmd *cobra.Command, flags rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.config)
	if err != nil {
		return nil, err
	}
	fs := cmd.Flags()
	if fs.Changed("feeds") {
		cfg.Crawl.FeedsFile = flags.feeds
	}
	if fs.Changed("stopwords") {
		cfg.Crawl.StopwordsFile = flags.stopwords
	}
	if fs.Changed("max-connections") {
		if flags.maxConnections < 1 {
			return nil, fmt.Errorf("--max-connections must be positive, got %d", flags.maxConnections)
		}
		cfg.Crawl.MaxConnections = flags.maxConnections
	}
	if fs.Changed("top") {
		if flags.top < 1 {
			return nil, fmt.Errorf("--top must be positive, got %d", flags.top)
		}
		cfg.Query.TopN = flags.top
	}
	return cfg, nil
}

func runSearch(cmd *cobra.Command, cfg *config.Config) error {
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())

	runID := uuid.New().String()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithRunID(ctx, runID)
	log := logger.FromContext(ctx)

	stops, err := stopwords.Load(cfg.Crawl.StopwordsFile)
	if err != nil {
		return err
	}
	log.Info("stopwords loaded", "path", cfg.Crawl.StopwordsFile, "count", stops.Len())

	m := metrics.New(nil)
	fetcher := fetch.NewClient(fetch.Options{
		Timeout:           cfg.Crawl.RequestTimeout,
		UserAgent:         cfg.Crawl.UserAgent,
		RequestsPerSecond: cfg.Crawl.RequestsPerSecond,
	})

	gate := health.NewGate("crawl in progress")
	checker := health.NewChecker()
	checker.Register("crawl", gate.Check)

	var cache *query.Cache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, query caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			cache = query.NewCache(redisClient, runID, cfg.Redis.CacheTTL)
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := cache.Invalidate(flushCtx); err != nil {
					log.Warn("query cache invalidation failed", "error", err)
				}
			}()
			checker.Register("redis", health.PingCheck(redisClient.Ping))
			log.Info("query cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var tracker crawler.Tracker
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka)
		defer producer.Close()
		collector := analytics.NewCollector(producer, runID, cfg.Kafka.BufferSize)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector
		log.Info("analytics collector started", "topic", cfg.Kafka.Topic)
	}

	var (
		outcomes crawler.OutcomeRecorder
		run      *ledger.Run
	)
	if cfg.Ledger.Enabled {
		led, err := openLedger(ctx, cfg)
		if err != nil {
			log.Warn("ledger unavailable, crawl history disabled", "error", err)
		} else {
			defer led.Close()
			run, err = led.StartRun(ctx, runID, cfg.Crawl.FeedsFile, time.Now())
			if err != nil {
				return err
			}
			outcomes = run
			checker.Register("ledger", health.PingCheck(led.Ping))
			log.Info("crawl ledger enabled", "driver", cfg.Ledger.Driver)
		}
	}

	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, m, map[string]http.Handler{
			"GET /health/live":  checker.LiveHandler(),
			"GET /health/ready": checker.ReadyHandler(),
		})
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error("ops server shutdown error", "error", err)
			}
		}()
	}

	ix := index.New()
	store := article.NewStore()
	engine := query.New(query.Config{TopN: cfg.Query.TopN, Stemming: cfg.Index.Stemming}, query.Deps{
		Index:     ix,
		Store:     store,
		Stopwords: stops,
		Cache:     cache,
		Metrics:   m,
		Tracker:   tracker,
	})
	con := console.New(cmd.InOrStdin(), cmd.OutOrStdout(), engine)
	if err := con.Welcome(cfg.Crawl.WelcomeFile); err != nil {
		log.Warn("welcome banner unavailable", "error", err)
	}

	c := crawler.New(crawler.Config{
		MaxConnections: cfg.Crawl.MaxConnections,
		MaxRedirects:   cfg.Crawl.MaxRedirects,
		Stemming:       cfg.Index.Stemming,
	}, crawler.Deps{
		Fetcher:   fetcher,
		Stopwords: stops,
		Index:     ix,
		Store:     store,
		Metrics:   m,
		Outcomes:  outcomes,
		Tracker:   tracker,
	})
	sum, err := c.RunFile(ctx, cfg.Crawl.FeedsFile)
	if run != nil {
		if ferr := run.Finish(sum); ferr != nil {
			log.Warn("recording crawl summary failed", "error", ferr)
		}
	}
	if err != nil {
		return err
	}
	gate.Open()
	con.Summary(sum)

	if err := con.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func openLedger(ctx context.Context, cfg *config.Config) (*ledger.Ledger, error) {
	db, err := database.Open(cfg.Ledger.Driver, cfg.LedgerDSN(), database.Options{
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	led, err := ledger.New(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return led, nil
}
