// Package console is the interactive query loop. It reads one query per
// line and prints ranked articles until it gets an empty line or EOF.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/crawler"
	"github.com/Adithya-Monish-Kumar-K/newssearch/internal/query"
)

const prompt = "Please enter a single query term that might be in our set of indices [enter to quit]: "

// Answerer answers one query.
type Answerer interface {
	Answer(ctx context.Context, q string) (*query.Answer, error)
	TopN() int
}

type styles struct {
	header lipgloss.Style
	rank   lipgloss.Style
	title  lipgloss.Style
	url    lipgloss.Style
	notice lipgloss.Style
}

// Console writes answers to out. Styling degrades to plain text when out is
// not a terminal.
type Console struct {
	in     *bufio.Scanner
	out    io.Writer
	engine Answerer
	styles styles
}

func New(in io.Reader, out io.Writer, engine Answerer) *Console {
	r := lipgloss.NewRenderer(out)
	return &Console{
		in:     bufio.NewScanner(in),
		out:    out,
		engine: engine,
		styles: styles{
			header: r.NewStyle().Bold(true),
			rank:   r.NewStyle().Foreground(lipgloss.Color("12")),
			title:  r.NewStyle().Bold(true),
			url:    r.NewStyle().Faint(true),
			notice: r.NewStyle().Foreground(lipgloss.Color("11")),
		},
	}
}

// Welcome copies the banner file to the console. An empty path prints nothing.
func (c *Console) Welcome(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening welcome file: %w", err)
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		fmt.Fprintln(c.out, s.Text())
	}
	fmt.Fprintln(c.out)
	return s.Err()
}

// Summary reports the finished crawl.
func (c *Console) Summary(sum crawler.Summary) {
	fmt.Fprintf(c.out, "\n%s\n\n", c.styles.header.Render(fmt.Sprintf(
		"Indexed %d distinct words from %d articles across %d feeds in %s.",
		sum.IndexedWords, sum.Articles, sum.Feeds, sum.Duration.Round(time.Millisecond),
	)))
}

// Run serves queries until an empty line, EOF, or ctx is done. A line of
// only spaces is not empty; the engine rejects it.
func (c *Console) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(c.out, prompt)
		if !c.in.Scan() {
			fmt.Fprintln(c.out)
			return c.in.Err()
		}
		line := c.in.Text()
		if line == "" {
			return nil
		}
		ans, err := c.engine.Answer(ctx, line)
		if err != nil {
			return fmt.Errorf("answering query: %w", err)
		}
		c.Render(ans)
	}
}

// Render prints one answer.
func (c *Console) Render(ans *query.Answer) {
	switch ans.Outcome {
	case query.OutcomeRejected:
		fmt.Fprintf(c.out, "\t%s\n", c.styles.notice.Render(fmt.Sprintf(
			"We won't be allowing words like %q into our set of indices.", ans.Query)))
	case query.OutcomeTooCommon:
		fmt.Fprintln(c.out, c.styles.notice.Render("Too common a word to be taken seriously. Try something more specific."))
	case query.OutcomeNotIndexed:
		fmt.Fprintln(c.out, c.styles.notice.Render(fmt.Sprintf(
			"None of today's news articles contain the word %q.", ans.Query)))
	case query.OutcomeRanked:
		header := fmt.Sprintf("Nice! We found %d articles that include the word %q.", ans.Total, ans.Query)
		if topN := c.engine.TopN(); ans.Total > topN {
			header += fmt.Sprintf(" [We'll just list %d, though.]", topN)
		}
		fmt.Fprintf(c.out, "%s\n\n", c.styles.header.Render(header))
		for _, r := range ans.Results {
			fmt.Fprintf(c.out, "%s %s [search term occurs %d times]\n    %s\n\n",
				c.styles.rank.Render(fmt.Sprintf("%d.)", r.Rank)),
				c.styles.title.Render(fmt.Sprintf("%q", r.Title)),
				r.Count,
				c.styles.url.Render(fmt.Sprintf("%q", r.URL)),
			)
		}
	}
}
