package node

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RenderTable writes the node table: address, last seen, age, latency
// and whether the node is inside the staleness window.
func RenderTable(w io.Writer, recs []Record, now time.Time, window time.Duration) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Online nodes")
	t.AppendHeader(table.Row{"Address", "Last seen", "Age", "Latency", "Fresh"})
	fresh := 0
	for _, r := range recs {
		ok := r.Fresh(now, window)
		mark := text.FgRed.Sprint("no")
		if ok {
			mark = text.FgGreen.Sprint("yes")
			fresh++
		}
		t.AppendRow(table.Row{
			r.Address,
			r.LastSeen.Format("2006-01-02 15:04:05"),
			now.Sub(r.LastSeen).Round(time.Second),
			fmt.Sprintf("%.3f ms", float64(r.Latency.Microseconds())/1000),
			mark,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "fresh", fmt.Sprintf("%d/%d", fresh, len(recs))})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	t.SetStyle(table.StyleLight)
	t.Render()
}
