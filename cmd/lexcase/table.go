package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// tableColumn describes one column of CLI table output. Cells wider than
// Wrap runes are soft-wrapped; zero leaves them as is.
type tableColumn struct {
	Title string
	Align columnAlignment
	Wrap  int
}

func col(title string) tableColumn { return tableColumn{Title: title} }

func numCol(title string) tableColumn { return tableColumn{Title: title, Align: alignRight} }

func wrapCol(title string, width int) tableColumn {
	return tableColumn{Title: title, Wrap: width}
}

func renderTable(columns []tableColumn, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, c := range columns {
		header[i] = c.Title
		cfg := table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}
		if c.Align == alignRight {
			cfg.Align = text.AlignRight
		}
		if c.Wrap > 0 {
			cfg.WidthMax = c.Wrap
			cfg.WidthMaxEnforcer = text.WrapSoft
		}
		configs[i] = cfg
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}
	return tw.Render()
}
