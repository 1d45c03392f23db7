package renderer

import (
	"bytes"
	"fmt"

	md "github.com/nao1215/markdown"

	"github.com/etnz/earmark"
)

// SyncStatus renders the Syncer's condition for the status command.
func SyncStatus(st earmark.Status) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("Space %s", st.Space))

	table := md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignLeft},
		Header:    []string{"Field", "Value"},
		Rows: [][]string{
			{"Activity", string(st.Activity)},
			{"Version", fmt.Sprintf("%d", st.Version)},
			{"Pending events", fmt.Sprintf("%d", st.Pending)},
			{"Queued chunks", fmt.Sprintf("%d", st.Queued)},
			{"Offline", fmt.Sprintf("%t", st.Offline)},
			{"Read-only", fmt.Sprintf("%t", st.ReadOnly)},
		},
	}
	doc.Table(table)
	return doc.String()
}
