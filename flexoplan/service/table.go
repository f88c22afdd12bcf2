package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/imprenta-ai/flexoplan/flexoplan"
)

// QueueTable renders a machine's production queue as a markdown table
// for terminal display.
func QueueTable(rows []flexoplan.QueueRow) string {
	if len(rows) == 0 {
		return "_Empty queue_"
	}

	columns := []string{"#", "order", "reason", "setup", "labels", "print", "buffer", "total", "probable delivery"}
	alignment := make([]tw.Align, len(columns))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	tableString := &strings.Builder{}
	table := tablewriter.NewTable(tableString,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header(columns)

	for _, row := range rows {
		table.Append([]string{
			fmt.Sprintf("%d", row.ProductionOrder),
			fmt.Sprintf("%d", row.OrderID),
			row.Reason,
			formatMinutes(row.SetupMin),
			formatMinutes(row.InterLabelMin),
			formatMinutes(row.PrintMin),
			formatMinutes(row.BufferMin),
			formatMinutes(row.TotalMin),
			formatTimestamp(row.ProbableDeliveryDate),
		})
	}
	table.Render()

	tableString.WriteString(fmt.Sprintf("\n_%d rows_\n", len(rows)))
	return tableString.String()
}

func formatMinutes(min float64) string {
	return fmt.Sprintf("%.1fm", min)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}
