package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/subcommands"

	"github.com/etnz/earmark"
)

type spendGoalCmd struct {
	goal string
}

func (*spendGoalCmd) Name() string     { return "spend-goal" }
func (*spendGoalCmd) Synopsis() string { return "spend a closed goal out of its positions" }
func (*spendGoalCmd) Usage() string {
	return `emk spend-goal -goal <goal> <position>=<amount> [<position>=<amount> ...]

  Spends a closed goal: each payment comes out of a position allocated to
  the goal, and the payments must add up to the goal's allocation total
  exactly. Position values drop by their payment and the goal becomes
  immutable. The spend can be undone for 24 hours.
`
}

func (c *spendGoalCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.goal, "goal", "", "Id of the goal to spend.")
}

func (c *spendGoalCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.goal == "" || f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: -goal and at least one <position>=<amount> argument are required.")
		return subcommands.ExitUsageError
	}
	payments := make(map[string]int64, f.NArg())
	for _, arg := range f.Args() {
		pos, amount, ok := strings.Cut(arg, "=")
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: %q is not a <position>=<amount> pair.\n", arg)
			return subcommands.ExitUsageError
		}
		v, err := strconv.ParseInt(amount, 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid amount in %q: %v\n", arg, err)
			return subcommands.ExitUsageError
		}
		payments[pos] = v
	}
	return runMutation(ctx, func(s *earmark.Syncer) (*earmark.AllocationNotice, error) {
		return s.SpendGoal(c.goal, payments)
	})
}

type undoSpendCmd struct {
	goal string
}

func (*undoSpendCmd) Name() string     { return "undo-spend" }
func (*undoSpendCmd) Synopsis() string { return "reverse a recent spend" }
func (*undoSpendCmd) Usage() string {
	return `emk undo-spend -goal <goal>

  Reverses the spend of a goal from its recorded history, restoring position
  values and allocations. Only possible within 24 hours of the spend, and
  only while no new allocation touches the goal.
`
}

func (c *undoSpendCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.goal, "goal", "", "Id of the spent goal.")
}

func (c *undoSpendCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.goal == "" {
		fmt.Fprintln(os.Stderr, "Error: -goal is required.")
		return subcommands.ExitUsageError
	}
	a, err := openApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer a.close(ctx)

	payload, err := findSpend(ctx, a.syncer, c.goal)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	if _, err := a.syncer.UndoSpend(*payload); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	return a.save(ctx)
}

// findSpend walks the history backwards for the goal's goal_spent record.
func findSpend(ctx context.Context, s *earmark.Syncer, goalID string) (*earmark.GoalSpent, error) {
	q := earmark.HistoryQuery{Filter: earmark.HistoryFilter{GoalID: goalID}}
	for {
		page, err := s.LoadHistoryPage(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			if spent, ok := item.Event.Payload.(earmark.GoalSpent); ok {
				return &spent, nil
			}
		}
		if page.NextCursor == "" {
			return nil, fmt.Errorf("no spend recorded for goal %q", goalID)
		}
		q.Cursor = page.NextCursor
	}
}
