package main

import (
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/slipstream/mediabridge/internal/metadata"
)

// renderResult lays a resolution out as a two-column field table.
func renderResult(r *metadata.Result) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Field", "Value"})

	tw.AppendRow(table.Row{"Type", string(r.Type)})
	tw.AppendRow(table.Row{"Title", r.Title})
	tw.AppendRow(table.Row{"Year", r.Year})
	tw.AppendRow(table.Row{"Subject ID", r.SubjectID})
	tw.AppendRow(table.Row{"Detail Path", valueOrDash(r.DetailPath)})
	tw.AppendRow(table.Row{"Details URL", r.DetailsURL})
	if r.Season > 0 || r.Episode > 0 {
		tw.AppendRow(table.Row{"Episode", "S" + pad2(r.Season) + "E" + pad2(r.Episode)})
	}
	tw.AppendRow(table.Row{"Has Resource", strconv.FormatBool(r.HasResource)})
	if r.Partial {
		tw.AppendRow(table.Row{"Missing", strings.Join(r.Missing, ", ")})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft, AlignHeader: text.AlignLeft, WidthMax: 80},
	})
	return tw.Render()
}

func valueOrDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
