package bootstrap

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/701789262a/backend-dailychat/component"
)

// renderSummary writes one row per registered component with its
// description and current health.
func renderSummary(ctx context.Context, w io.Writer, name, version string, took time.Duration, reg *component.Registry) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("%s %s started in %s", name, version, took.Round(time.Millisecond)))
	t.AppendHeader(table.Row{"Component", "Type", "Details", "Status"})

	health := make(map[string]component.Health)
	for _, h := range reg.HealthAll(ctx) {
		health[h.Name] = h
	}
	for _, c := range reg.All() {
		var desc component.Description
		if d, ok := c.(component.Describable); ok {
			desc = d.Describe()
		}
		h := health[c.Name()]
		status := string(h.Status)
		if h.Message != "" {
			status += " (" + h.Message + ")"
		}
		t.AppendRow(table.Row{c.Name(), desc.Type, desc.Details, status})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}
