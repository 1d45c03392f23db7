// Package renderer turns earmark data into markdown reports for the CLI.
package renderer

import (
	"bytes"
	"fmt"

	"github.com/Rhymond/go-money"
	md "github.com/nao1215/markdown"

	"github.com/etnz/earmark"
)

// Amount formats a minor-unit amount in the given currency.
func Amount(v int64, currency string) string {
	return money.New(v, currency).Display()
}

// Overview renders the full state of a space: accounts with their positions,
// goals with their funding, and the allocation matrix.
func Overview(state *earmark.NormalizedState, currency string) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1("Overview")

	for _, acc := range state.SortedAccounts() {
		doc.H2(fmt.Sprintf("%s (%s)", acc.Name, acc.Scope))
		positions := state.PositionsOf(acc.ID)
		if len(positions) == 0 {
			doc.PlainText("No positions.")
			continue
		}
		table := md.TableSet{
			Alignment: []md.TableAlignment{md.AlignLeft, md.AlignLeft, md.AlignRight, md.AlignRight, md.AlignLeft},
			Header:    []string{"Position", "Type", "Value", "Earmarked", "Mode"},
		}
		for _, p := range positions {
			table.Rows = append(table.Rows, []string{
				p.Label,
				string(p.AssetType),
				Amount(p.MarketValue, currency),
				Amount(state.PositionTotal(p.ID), currency),
				string(p.Mode),
			})
		}
		doc.Table(table)
	}

	goals := state.SortedGoals()
	if len(goals) > 0 {
		doc.H2("Goals")
		table := md.TableSet{
			Alignment: []md.TableAlignment{md.AlignLeft, md.AlignLeft, md.AlignRight, md.AlignRight, md.AlignLeft},
			Header:    []string{"Goal", "Scope", "Target", "Funded", "Status"},
		}
		for _, g := range goals {
			status := string(g.Status)
			if g.Spent() {
				status = "spent"
			}
			table.Rows = append(table.Rows, []string{
				g.Name,
				string(g.Scope),
				Amount(g.Target, currency),
				Amount(state.GoalTotal(g.ID), currency),
				status,
			})
		}
		doc.Table(table)
	}

	allocs := state.SortedAllocations()
	if len(allocs) > 0 {
		doc.H2("Allocations")
		table := md.TableSet{
			Alignment: []md.TableAlignment{md.AlignLeft, md.AlignLeft, md.AlignRight},
			Header:    []string{"Goal", "Position", "Amount"},
		}
		for _, a := range allocs {
			table.Rows = append(table.Rows, []string{
				goalName(state, a.GoalID),
				positionLabel(state, a.PositionID),
				Amount(a.Amount, currency),
			})
		}
		doc.Table(table)
	}

	return doc.String()
}

func goalName(state *earmark.NormalizedState, goalID string) string {
	if g, ok := state.Goals[goalID]; ok {
		return g.Name
	}
	return goalID
}

func positionLabel(state *earmark.NormalizedState, positionID string) string {
	if p, ok := state.Positions[positionID]; ok {
		return p.Label
	}
	return positionID
}
