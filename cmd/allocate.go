package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/etnz/earmark"
)

type allocateCmd struct {
	goal     string
	position string
	amount   int64
}

func (*allocateCmd) Name() string     { return "allocate" }
func (*allocateCmd) Synopsis() string { return "earmark part of a position for a goal" }
func (*allocateCmd) Usage() string {
	return `emk allocate -goal <goal> -position <position> -amount <amount>

  Sets the allocation between a goal and a position. An amount of 0 removes
  it. The amount must fit both the position's unallocated value and the
  goal's remaining target, and both ends must share a scope.
`
}

func (c *allocateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.goal, "goal", "", "Id of the goal.")
	f.StringVar(&c.position, "position", "", "Id of the position.")
	f.Int64Var(&c.amount, "amount", -1, "Amount in the smallest currency unit; 0 removes the allocation.")
}

func (c *allocateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.goal == "" || c.position == "" || c.amount < 0 {
		fmt.Fprintln(os.Stderr, "Error: -goal, -position and a non-negative -amount are required.")
		return subcommands.ExitUsageError
	}
	return runMutation(ctx, func(s *earmark.Syncer) (*earmark.AllocationNotice, error) {
		return s.SetAllocation(c.goal, c.position, c.amount)
	})
}
