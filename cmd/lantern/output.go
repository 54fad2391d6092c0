package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"

	"github.com/five82/lantern/internal/filter"
	"github.com/five82/lantern/internal/format"
)

// linePrinter writes parsed lines as plain text.
type linePrinter struct {
	w      io.Writer
	number bool
	color  bool
	level  string // field used for coloring
}

func (p linePrinter) print(line format.ParsedLine) error {
	var b strings.Builder
	if p.number {
		fmt.Fprintf(&b, "%6d  ", line.Number)
	}
	raw := line.Raw
	if p.color {
		raw = levelColors(line, p.level).Sprint(raw)
	}
	b.WriteString(raw)
	b.WriteByte('\n')
	_, err := io.WriteString(p.w, b.String())
	return err
}

// levelColors picks terminal colors from the line's severity field.
func levelColors(line format.ParsedLine, field string) text.Colors {
	if !line.Structured() {
		return text.Colors{text.FgHiBlack}
	}
	if field == "" {
		field = "level"
	}
	level, _ := line.Fields.Get(field)
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "FATAL", "SEVERE", "CRIT", "CRITICAL", "EMERG", "ALERT", "ERROR", "ERR":
		return text.Colors{text.FgRed, text.Bold}
	case "WARN", "WARNING":
		return text.Colors{text.FgYellow}
	case "DEBUG", "TRACE":
		return text.Colors{text.FgHiBlack}
	default:
		return nil
	}
}

// lineTable buffers parsed lines as table rows, one column per field.
type lineTable struct {
	tw      table.Writer
	columns []string
}

func newLineTable(w io.Writer, columns []string, width int) *lineTable {
	tw := newTable(w)
	header := table.Row{"Line"}
	for _, c := range columns {
		header = append(header, c)
	}
	if len(columns) == 0 {
		header = append(header, "Text")
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: len(header), WidthMax: max(20, width/2)},
	})
	return &lineTable{tw: tw, columns: columns}
}

func (t *lineTable) add(line format.ParsedLine) error {
	row := table.Row{line.Number}
	switch {
	case len(t.columns) == 0:
		row = append(row, line.Raw)
	case !line.Structured():
		// Continuation text goes in the last column under its parent entry.
		for range len(t.columns) - 1 {
			row = append(row, "")
		}
		row = append(row, line.Raw)
	default:
		for _, c := range t.columns {
			v, _ := line.Fields.Get(c)
			row = append(row, v)
		}
	}
	t.tw.AppendRow(row)
	return nil
}

func (t *lineTable) render() {
	_ = t.tw.Render()
}

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateHeader = true
	tw.Style().Options.DrawBorder = true
	return tw
}

func writeFormatsTable(w io.Writer, defs []format.Definition, width int) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"ID", "Name", "Priority", "Fields", "Description"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, WidthMax: max(20, width/3)},
	})
	for _, def := range defs {
		tw.AppendRow(table.Row{def.ID, def.DisplayName(), def.Priority, len(def.Fields), def.Description})
	}
	if len(defs) == 0 {
		tw.AppendRow(table.Row{"-", "(no formats)", 0, 0, "-"})
	}
	_ = tw.Render()
}

func writeFieldsTable(w io.Writer, fields []format.Field, width int) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"Field", "Type", "Optional", "Filter", "Values", "Description"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, WidthMax: max(16, width/4)},
		{Number: 6, WidthMax: max(20, width/3)},
	})
	for _, f := range fields {
		tw.AppendRow(table.Row{
			f.Name,
			string(f.Type),
			strconv.FormatBool(f.Optional),
			filter.KindFor(f).String(),
			strings.Join(f.Enum, ", "),
			f.Description,
		})
	}
	_ = tw.Render()
}

func writeSummary(w io.Writer, sum filter.Summary) {
	fmt.Fprintf(w, "%d of %d lines shown (%d entries)\n", sum.Filtered, sum.Total, sum.StructuredFiltered)
}

// terminalWidth returns the width of out when it is a terminal, then
// $COLUMNS, then 80.
func terminalWidth(out io.Writer) int {
	if f, ok := out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
	}
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if v, err := strconv.Atoi(cols); err == nil && v > 0 {
			return v
		}
	}
	return 80
}

// useColor resolves --color / --no-color against the output and NO_COLOR.
func useColor(out io.Writer, force, forceNo bool) bool {
	switch {
	case force:
		return true
	case forceNo:
		return false
	case os.Getenv("NO_COLOR") != "":
		return false
	}
	f, ok := out.(*os.File)
	return ok && isTerminal(f)
}
