// Command emk is the earmark savings tracker CLI.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"

	"github.com/etnz/earmark/cmd"
)

func main() {
	// Shell completion: when invoked by the completion hook this prints
	// candidates and exits, otherwise it is a no-op.
	completion().Complete("emk")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "help")
	commander.Register(commander.FlagsCommand(), "help")
	commander.Register(commander.CommandsCommand(), "help")
	cmd.Register(commander)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

func completion() *complete.Command {
	space := map[string]complete.Predictor{"space": predict.Something}
	id := func(names ...string) map[string]complete.Predictor {
		m := map[string]complete.Predictor{"space": predict.Something}
		for _, n := range names {
			m[n] = predict.Something
		}
		return m
	}
	return &complete.Command{
		Flags: space,
		Sub: map[string]*complete.Command{
			"pull":   {Flags: space},
			"save":   {Flags: space},
			"status": {Flags: space},

			"add-account":    {Flags: id("name", "scope")},
			"rename-account": {Flags: id("id", "name")},
			"delete-account": {Flags: id("id")},

			"add-position":    {Flags: id("account", "label", "type", "value", "mode")},
			"update-position": {Flags: id("id", "account", "label", "type", "value", "mode")},
			"delete-position": {Flags: id("id")},

			"add-goal":    {Flags: id("name", "scope", "target", "priority", "start", "end")},
			"update-goal": {Flags: id("id", "name", "target", "priority", "start", "end")},
			"close-goal":  {Flags: id("id")},
			"reopen-goal": {Flags: id("id")},
			"delete-goal": {Flags: id("id")},
			"spend-goal":  {Flags: id("goal")},
			"undo-spend":  {Flags: id("goal")},

			"allocate": {Flags: id("goal", "position", "amount")},

			"history": {Flags: id("n", "cursor", "goal", "position", "query")},
			"topic":   {Args: predict.Something},
		},
	}
}
