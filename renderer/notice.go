package renderer

import (
	"bytes"
	"fmt"

	md "github.com/nao1215/markdown"

	"github.com/etnz/earmark"
)

// Notice renders an allocation notice: what was reduced and whether the
// caller should review the result by hand.
func Notice(state *earmark.NormalizedState, n *earmark.AllocationNotice, currency string) string {
	if n == nil {
		return ""
	}
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H2(fmt.Sprintf("Allocations adjusted (%s)", n.Reason))

	table := md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignLeft, md.AlignRight, md.AlignRight},
		Header:    []string{"Goal", "Position", "Before", "After"},
	}
	for _, c := range n.Changes {
		table.Rows = append(table.Rows, []string{
			goalName(state, c.GoalID),
			positionLabel(state, c.PositionID),
			Amount(c.Before, currency),
			Amount(c.After, currency),
		})
	}
	doc.Table(table)

	doc.PlainText(fmt.Sprintf("Total reduced: %s.", Amount(n.TotalReduced(), currency)))
	if n.RequiresDirectEdit {
		doc.PlainText("This adjustment is large or touches closed goals; review the allocations and adjust them by hand if needed.")
	}
	return doc.String()
}
