package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/etnz/earmark"
)

type addGoalCmd struct {
	name     string
	scope    string
	target   int64
	priority int
	start    string
	end      string
}

func (*addGoalCmd) Name() string     { return "add-goal" }
func (*addGoalCmd) Synopsis() string { return "create a savings goal" }
func (*addGoalCmd) Usage() string {
	return `emk add-goal -name <name> -target <amount> [-scope personal|shared] [-priority <n>] [-start <date>] [-end <date>]

  Creates an active goal. Lower priority numbers are more urgent. Dates are
  YYYY-MM-DD and optional.
`
}

func (c *addGoalCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "Display name of the goal.")
	f.StringVar(&c.scope, "scope", "personal", "Scope of the goal: personal or shared.")
	f.Int64Var(&c.target, "target", 0, "Target amount in the smallest currency unit.")
	f.IntVar(&c.priority, "priority", 0, "Priority, lower is more urgent.")
	f.StringVar(&c.start, "start", "", "Optional start date (YYYY-MM-DD).")
	f.StringVar(&c.end, "end", "", "Optional end date (YYYY-MM-DD).")
}

func (c *addGoalCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	start, err := earmark.ParseDate(c.start)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitUsageError
	}
	end, err := earmark.ParseDate(c.end)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitUsageError
	}
	return runMutation(ctx, func(s *earmark.Syncer) (*earmark.AllocationNotice, error) {
		return s.CreateGoal(earmark.NewGoal{
			Name:      c.name,
			Scope:     earmark.Scope(c.scope),
			Target:    c.target,
			Priority:  c.priority,
			StartDate: start,
			EndDate:   end,
		})
	})
}

type updateGoalCmd struct {
	id       string
	name     string
	target   int64
	priority int
	start    string
	end      string
}

func (*updateGoalCmd) Name() string     { return "update-goal" }
func (*updateGoalCmd) Synopsis() string { return "edit a goal" }
func (*updateGoalCmd) Usage() string {
	return `emk update-goal -id <goal> [-name <name>] [-target <amount>] [-priority <n>] [-start <date>] [-end <date>]

  Edits a goal. Only the given flags change. Shrinking the target below the
  goal's allocation total reduces its allocations to fit; the reduction is
  reported before saving. A spent goal is immutable.
`
}

func (c *updateGoalCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Id of the goal.")
	f.StringVar(&c.name, "name", "", "New display name.")
	f.Int64Var(&c.target, "target", -1, "New target amount in the smallest currency unit.")
	f.IntVar(&c.priority, "priority", -1, "New priority, lower is more urgent.")
	f.StringVar(&c.start, "start", "", "New start date (YYYY-MM-DD).")
	f.StringVar(&c.end, "end", "", "New end date (YYYY-MM-DD).")
}

func (c *updateGoalCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id == "" {
		fmt.Fprintln(os.Stderr, "Error: -id is required.")
		return subcommands.ExitUsageError
	}
	update := earmark.GoalUpdate{GoalID: c.id}
	if c.name != "" {
		update.Name = &c.name
	}
	if c.target >= 0 {
		update.Target = &c.target
	}
	if c.priority >= 0 {
		update.Priority = &c.priority
	}
	if c.start != "" {
		d, err := earmark.ParseDate(c.start)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return subcommands.ExitUsageError
		}
		update.StartDate = &d
	}
	if c.end != "" {
		d, err := earmark.ParseDate(c.end)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return subcommands.ExitUsageError
		}
		update.EndDate = &d
	}
	return runMutation(ctx, func(s *earmark.Syncer) (*earmark.AllocationNotice, error) {
		return s.UpdateGoal(update)
	})
}

type closeGoalCmd struct {
	id string
}

func (*closeGoalCmd) Name() string     { return "close-goal" }
func (*closeGoalCmd) Synopsis() string { return "close an active goal" }
func (*closeGoalCmd) Usage() string {
	return `emk close-goal -id <goal>

  Closes an active goal. Closed goals keep their allocations but stop
  competing for funds, and lose first when a position shrinks. A closed goal
  can be reopened or spent.
`
}

func (c *closeGoalCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Id of the goal.")
}

func (c *closeGoalCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return runMutation(ctx, func(s *earmark.Syncer) (*earmark.AllocationNotice, error) {
		return s.CloseGoal(c.id)
	})
}

type reopenGoalCmd struct {
	id string
}

func (*reopenGoalCmd) Name() string     { return "reopen-goal" }
func (*reopenGoalCmd) Synopsis() string { return "reopen a closed goal" }
func (*reopenGoalCmd) Usage() string {
	return `emk reopen-goal -id <goal>

  Reopens a closed goal. It re-enters the queue behind every active goal.
`
}

func (c *reopenGoalCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Id of the goal.")
}

func (c *reopenGoalCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return runMutation(ctx, func(s *earmark.Syncer) (*earmark.AllocationNotice, error) {
		return s.ReopenGoal(c.id)
	})
}

type deleteGoalCmd struct {
	id string
}

func (*deleteGoalCmd) Name() string     { return "delete-goal" }
func (*deleteGoalCmd) Synopsis() string { return "delete a goal" }
func (*deleteGoalCmd) Usage() string {
	return `emk delete-goal -id <goal>

  Deletes a goal and its allocations. A spent goal cannot be deleted.
`
}

func (c *deleteGoalCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Id of the goal.")
}

func (c *deleteGoalCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return runMutation(ctx, func(s *earmark.Syncer) (*earmark.AllocationNotice, error) {
		return s.DeleteGoal(c.id)
	})
}
