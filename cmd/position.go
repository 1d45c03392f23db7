package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/etnz/earmark"
)

type addPositionCmd struct {
	account string
	label   string
	asset   string
	value   int64
	mode    string
}

func (*addPositionCmd) Name() string     { return "add-position" }
func (*addPositionCmd) Synopsis() string { return "create a position in an account" }
func (*addPositionCmd) Usage() string {
	return `emk add-position -account <account> -label <label> -value <amount> [-type <asset type>] [-mode fixed|ratio|priority]

  Creates a valued position. The amount is in the smallest currency unit
  (cents). The mode decides how allocations react when the value changes:
  fixed keeps amounts and only reduces on shortfall, ratio keeps
  proportions, priority feeds increases to the most urgent goals.
`
}

func (c *addPositionCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "account", "", "Id of the owning account.")
	f.StringVar(&c.label, "label", "", "Display label of the position.")
	f.StringVar(&c.asset, "type", "savings", "Asset type (cash, savings, securities, fund, bond, pension, property, crypto).")
	f.Int64Var(&c.value, "value", 0, "Market value in the smallest currency unit.")
	f.StringVar(&c.mode, "mode", "fixed", "Allocation mode: fixed, ratio or priority.")
}

func (c *addPositionCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return runMutation(ctx, func(s *earmark.Syncer) (*earmark.AllocationNotice, error) {
		return s.CreatePosition(earmark.NewPosition{
			AccountID:   c.account,
			Label:       c.label,
			AssetType:   earmark.AssetType(c.asset),
			MarketValue: c.value,
			Mode:        earmark.AllocationMode(c.mode),
		})
	})
}

type updatePositionCmd struct {
	id      string
	account string
	label   string
	asset   string
	value   int64
	mode    string
}

func (*updatePositionCmd) Name() string     { return "update-position" }
func (*updatePositionCmd) Synopsis() string { return "edit a position" }
func (*updatePositionCmd) Usage() string {
	return `emk update-position -id <position> [-value <amount>] [-label <label>] [-type <asset type>] [-mode <mode>] [-account <account>]

  Edits a position. Only the given flags change. A value change triggers the
  allocation recalculation for the position's mode; reductions are reported
  before saving. Moving the position to another account is refused when it
  would put an allocation across scopes.
`
}

func (c *updatePositionCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Id of the position.")
	f.StringVar(&c.account, "account", "", "Move the position to this account.")
	f.StringVar(&c.label, "label", "", "New display label.")
	f.StringVar(&c.asset, "type", "", "New asset type.")
	f.Int64Var(&c.value, "value", -1, "New market value in the smallest currency unit.")
	f.StringVar(&c.mode, "mode", "", "New allocation mode.")
}

func (c *updatePositionCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id == "" {
		fmt.Fprintln(os.Stderr, "Error: -id is required.")
		return subcommands.ExitUsageError
	}
	update := earmark.PositionUpdate{PositionID: c.id}
	if c.account != "" {
		update.AccountID = &c.account
	}
	if c.label != "" {
		update.Label = &c.label
	}
	if c.asset != "" {
		t := earmark.AssetType(c.asset)
		update.AssetType = &t
	}
	if c.value >= 0 {
		update.MarketValue = &c.value
	}
	if c.mode != "" {
		m := earmark.AllocationMode(c.mode)
		update.Mode = &m
	}
	return runMutation(ctx, func(s *earmark.Syncer) (*earmark.AllocationNotice, error) {
		return s.UpdatePosition(update)
	})
}

type deletePositionCmd struct {
	id string
}

func (*deletePositionCmd) Name() string     { return "delete-position" }
func (*deletePositionCmd) Synopsis() string { return "delete a position" }
func (*deletePositionCmd) Usage() string {
	return `emk delete-position -id <position>

  Deletes a position and every allocation drawing on it.
`
}

func (c *deletePositionCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Id of the position.")
}

func (c *deletePositionCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return runMutation(ctx, func(s *earmark.Syncer) (*earmark.AllocationNotice, error) {
		return s.DeletePosition(c.id)
	})
}
