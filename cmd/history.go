package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/PaesslerAG/jsonpath"
	"github.com/google/subcommands"

	"github.com/etnz/earmark"
	"github.com/etnz/earmark/renderer"
)

type historyCmd struct {
	limit    int
	cursor   string
	goal     string
	position string
	query    string
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "show the audit history of the space" }
func (*historyCmd) Usage() string {
	return `emk history [-n <limit>] [-cursor <cursor>] [-goal <goal>] [-position <position>] [-query <jsonpath>]

  Shows the space's audit history, newest first, one page at a time. Filters
  narrow the page to events touching a goal or position. A page may come
  back empty with a cursor when a filtered scan hits its per-call chunk
  budget; pass the cursor to continue.

  With -query, the page's raw events are printed as JSON after applying a
  JSONPath expression, e.g. '$[?(@.type=="goal_spent")].payload'.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 20, "Maximum events per page.")
	f.StringVar(&c.cursor, "cursor", "", "Continuation cursor from a previous page.")
	f.StringVar(&c.goal, "goal", "", "Only events touching this goal.")
	f.StringVar(&c.position, "position", "", "Only events touching this position.")
	f.StringVar(&c.query, "query", "", "JSONPath expression applied to the page's events.")
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer a.close(ctx)

	page, err := a.syncer.LoadHistoryPage(ctx, earmark.HistoryQuery{
		Limit:  c.limit,
		Cursor: c.cursor,
		Filter: earmark.HistoryFilter{GoalID: c.goal, PositionID: c.position},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}

	if c.query != "" {
		return printQuery(page, c.query)
	}
	printMarkdown(renderer.History(page))
	return subcommands.ExitSuccess
}

// printQuery applies a JSONPath expression to the page's events and prints
// the result as JSON.
func printQuery(page earmark.HistoryPage, query string) subcommands.ExitStatus {
	events := make([]earmark.StoredEvent, 0, len(page.Items))
	for _, item := range page.Items {
		events = append(events, item.Event)
	}
	raw, err := json.Marshal(events)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	result, err := jsonpath.Get(query, doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid query %q: %v\n", query, err)
		return subcommands.ExitUsageError
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	fmt.Println(string(out))
	if page.NextCursor != "" {
		fmt.Fprintf(os.Stderr, "More history is available; pass -cursor %q to continue.\n", page.NextCursor)
	}
	return subcommands.ExitSuccess
}
