package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/etnz/earmark/renderer"
)

type statusCmd struct{}

func (*statusCmd) Name() string     { return "status" }
func (*statusCmd) Synopsis() string { return "show the sync state of the space" }
func (*statusCmd) Usage() string {
	return `emk status [-space <space>]

  Shows the space's sync condition: current version, pending events, queued
  history chunks, and whether the session is offline or read-only.
`
}

func (*statusCmd) SetFlags(f *flag.FlagSet) {}

func (c *statusCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer a.close(ctx)

	printMarkdown(renderer.SyncStatus(a.syncer.Status()))
	return subcommands.ExitSuccess
}
