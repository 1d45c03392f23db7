package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/etnz/earmark/renderer"
)

type pullCmd struct{}

func (*pullCmd) Name() string     { return "pull" }
func (*pullCmd) Synopsis() string { return "load the space and show an overview" }
func (*pullCmd) Usage() string {
	return `emk pull [-space <space>]

  Loads the latest snapshot of the space from the store and prints an
  overview of accounts, positions, goals and allocations. When the store is
  unreachable, the last cached snapshot is shown instead and the space is
  read-only until a successful online pull.
`
}

func (*pullCmd) SetFlags(f *flag.FlagSet) {}

func (c *pullCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer a.close(ctx)

	state, err := a.syncer.State()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	printMarkdown(renderer.Overview(state, a.cfg.Currency))

	if st := a.syncer.Status(); st.Offline {
		fmt.Fprintln(os.Stderr, "Warning: showing the cached snapshot, the store is unreachable.")
	}
	return subcommands.ExitSuccess
}
