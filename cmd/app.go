// Package cmd implements the CLI application to manage earmarked savings.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/etnz/earmark"
	"github.com/etnz/earmark/gcs"
	"github.com/etnz/earmark/localcache"
	"github.com/etnz/earmark/renderer"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on
// the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&pullCmd{}, "sync")
	c.Register(&saveCmd{}, "sync")
	c.Register(&statusCmd{}, "sync")

	c.Register(&addAccountCmd{}, "accounts")
	c.Register(&renameAccountCmd{}, "accounts")
	c.Register(&deleteAccountCmd{}, "accounts")

	c.Register(&addPositionCmd{}, "positions")
	c.Register(&updatePositionCmd{}, "positions")
	c.Register(&deletePositionCmd{}, "positions")

	c.Register(&addGoalCmd{}, "goals")
	c.Register(&updateGoalCmd{}, "goals")
	c.Register(&closeGoalCmd{}, "goals")
	c.Register(&reopenGoalCmd{}, "goals")
	c.Register(&deleteGoalCmd{}, "goals")
	c.Register(&spendGoalCmd{}, "goals")
	c.Register(&undoSpendCmd{}, "goals")

	c.Register(&allocateCmd{}, "allocations")

	c.Register(&historyCmd{}, "reports")
	c.Register(&topicCmd{}, "help")
}

// As a CLI application it has a very short lived lifecycle, so it is ok to
// use global variables.
var spaceFlag = flag.String("space", "", "Space to operate on. Defaults to the configured one.")

// app bundles everything a command needs: the loaded config and a loaded
// Syncer for the selected space.
type app struct {
	cfg    Config
	log    zerolog.Logger
	store  *gcs.Store
	cache  *localcache.Cache
	syncer *earmark.Syncer
}

// openApp loads the config, opens the store and cache, and loads the space.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(level)

	space := *spaceFlag
	if space == "" {
		space = cfg.Space
	}

	var opts []option.ClientOption
	if cfg.Credentials != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Credentials))
	}
	store, err := gcs.NewStore(ctx, cfg.Bucket, space, opts...)
	if err != nil {
		return nil, err
	}
	cache, err := localcache.Open(cfg.CacheDir)
	if err != nil {
		store.Close()
		return nil, err
	}

	auth := earmark.StaticAuthorizer{Writable: cfg.Spaces.Writable, ReadOnly: cfg.Spaces.ReadOnly}
	device, _ := os.Hostname()
	syncer := earmark.NewSyncer(space, cfg.Holder, device, store, cache, auth, log)
	if err := syncer.Load(ctx); err != nil {
		cache.Close()
		store.Close()
		return nil, err
	}
	return &app{cfg: cfg, log: log, store: store, cache: cache, syncer: syncer}, nil
}

func (a *app) close(ctx context.Context) {
	a.syncer.Close(ctx)
	a.cache.Close()
	a.store.Close()
}

// runMutation is the shared skeleton of every editing command: load the
// space, apply one mutation, show the notice if any, save.
func runMutation(ctx context.Context, fn func(*earmark.Syncer) (*earmark.AllocationNotice, error)) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer a.close(ctx)

	notice, err := fn(a.syncer)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	if notice != nil {
		state, _ := a.syncer.State()
		printMarkdown(renderer.Notice(state, notice, a.cfg.Currency))
	}
	return a.save(ctx)
}

// save pushes pending changes and reports the outcome.
func (a *app) save(ctx context.Context) subcommands.ExitStatus {
	res, err := a.syncer.Save(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	switch res.Reason {
	case earmark.SaveSaved:
		fmt.Fprintln(os.Stderr, "Saved.")
		return subcommands.ExitSuccess
	case earmark.SaveNoChanges:
		fmt.Fprintln(os.Stderr, "Nothing to save.")
		return subcommands.ExitSuccess
	case earmark.SavePartialFailure:
		fmt.Fprintln(os.Stderr, "Saved; some history chunks are queued and will be retried on the next save.")
		return subcommands.ExitSuccess
	case earmark.SaveConflict:
		fmt.Fprintln(os.Stderr, "Someone else saved first; your changes were discarded and the space reloaded. Please redo them.")
		return subcommands.ExitFailure
	case earmark.SaveOffline:
		fmt.Fprintln(os.Stderr, "The store is unreachable; nothing was saved.")
		return subcommands.ExitFailure
	default:
		fmt.Fprintf(os.Stderr, "Not saved: %s.\n", res.Reason)
		return subcommands.ExitFailure
	}
}
