package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/ledger"
)

func newHistoryCmd(flags *rootFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent crawl runs recorded in the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *flags)
			if err != nil {
				return err
			}
			led, err := openLedger(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("opening ledger: %w", err)
			}
			defer led.Close()

			runs, err := led.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			counts := make([]map[string]int, len(runs))
			for i, r := range runs {
				if counts[i], err = led.OutcomeCounts(cmd.Context(), r.ID); err != nil {
					return err
				}
			}
			renderHistory(cmd.OutOrStdout(), runs, counts)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to list")
	return cmd
}

func renderHistory(out io.Writer, runs []ledger.RunRecord, counts []map[string]int) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No crawl runs recorded yet.")
		return
	}
	r := lipgloss.NewRenderer(out)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.NewStyle().Faint(true)).
		Headers("RUN", "STARTED", "DURATION", "FEEDS", "ARTICLES", "WORDS", "FETCHES")
	for i, run := range runs {
		duration := "unfinished"
		if !run.FinishedAt.IsZero() {
			duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
		}
		feeds := strconv.Itoa(run.Feeds)
		if run.FeedsFailed > 0 {
			feeds += fmt.Sprintf(" (%d failed)", run.FeedsFailed)
		}
		t.Row(
			shortID(run.ID),
			run.StartedAt.Local().Format(time.DateTime),
			duration,
			feeds,
			strconv.Itoa(run.Articles),
			strconv.Itoa(run.IndexedWords),
			formatCounts(counts[i]),
		)
	}
	fmt.Fprintln(out, t.String())
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatCounts renders outcome tallies as "ok=12 http_error=1", sorted by outcome.
func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, " ")
}
