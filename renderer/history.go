package renderer

import (
	"bytes"
	"strconv"

	md "github.com/nao1215/markdown"

	"github.com/etnz/earmark"
)

// History renders one page of a space's audit history.
func History(page earmark.HistoryPage) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1("History")
	if len(page.Items) == 0 {
		doc.PlainText("No matching events on this page.")
	} else {
		table := md.TableSet{
			Alignment: []md.TableAlignment{md.AlignLeft, md.AlignRight, md.AlignLeft, md.AlignLeft},
			Header:    []string{"When", "Version", "Event", "Summary"},
		}
		for _, item := range page.Items {
			table.Rows = append(table.Rows, []string{
				item.Event.CreatedAt.Format("2006-01-02 15:04"),
				strconv.FormatInt(item.Event.Version, 10),
				string(item.Event.Type()),
				item.Summary,
			})
		}
		doc.Table(table)
	}
	if page.NextCursor != "" {
		doc.PlainText("More history is available; pass -cursor '" + page.NextCursor + "' to continue.")
	}
	return doc.String()
}
