package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/etnz/earmark"
)

type addAccountCmd struct {
	name  string
	scope string
}

func (*addAccountCmd) Name() string     { return "add-account" }
func (*addAccountCmd) Synopsis() string { return "create an account" }
func (*addAccountCmd) Usage() string {
	return `emk add-account -name <name> [-scope personal|shared]

  Creates an account in the space. The scope is fixed at creation: every
  position of the account, and every allocation drawing on those positions,
  stays within it.
`
}

func (c *addAccountCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "Display name of the account.")
	f.StringVar(&c.scope, "scope", "personal", "Scope of the account: personal or shared.")
}

func (c *addAccountCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	scope, err := earmark.ParseScope(c.scope)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitUsageError
	}
	return runMutation(ctx, func(s *earmark.Syncer) (*earmark.AllocationNotice, error) {
		return s.CreateAccount(earmark.NewAccount{Name: c.name, Scope: scope})
	})
}

type renameAccountCmd struct {
	id   string
	name string
}

func (*renameAccountCmd) Name() string     { return "rename-account" }
func (*renameAccountCmd) Synopsis() string { return "rename an account" }
func (*renameAccountCmd) Usage() string {
	return `emk rename-account -id <account> -name <name>

  Changes the display name of an account.
`
}

func (c *renameAccountCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Id of the account.")
	f.StringVar(&c.name, "name", "", "New display name.")
}

func (c *renameAccountCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return runMutation(ctx, func(s *earmark.Syncer) (*earmark.AllocationNotice, error) {
		return s.RenameAccount(c.id, c.name)
	})
}

type deleteAccountCmd struct {
	id string
}

func (*deleteAccountCmd) Name() string     { return "delete-account" }
func (*deleteAccountCmd) Synopsis() string { return "delete an account and its positions" }
func (*deleteAccountCmd) Usage() string {
	return `emk delete-account -id <account>

  Deletes an account, all of its positions, and every allocation drawing on
  those positions.
`
}

func (c *deleteAccountCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Id of the account.")
}

func (c *deleteAccountCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return runMutation(ctx, func(s *earmark.Syncer) (*earmark.AllocationNotice, error) {
		return s.DeleteAccount(c.id)
	})
}
