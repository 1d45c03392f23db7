package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

type saveCmd struct{}

func (*saveCmd) Name() string     { return "save" }
func (*saveCmd) Synopsis() string { return "push pending changes to the store" }
func (*saveCmd) Usage() string {
	return `emk save [-space <space>]

  Pushes pending changes to the store, including history chunks left over
  from an earlier partial failure. A conflicting save by someone else
  discards local changes and reloads the space.
`
}

func (*saveCmd) SetFlags(f *flag.FlagSet) {}

func (c *saveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer a.close(ctx)
	return a.save(ctx)
}
