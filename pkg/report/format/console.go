// Package format provides console rendering utilities for component state
// reports. It adapts column widths to the terminal and supports color and
// truncation.
package format

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/greg-hellings/stateview/pkg/report"
	"github.com/greg-hellings/stateview/pkg/statetable"
)

// ConsoleFormatter renders a state Report as a terminal-friendly table that
// adapts to the current console width.
type ConsoleFormatter struct {
	// MaxKeyColWidth constrains the key column. If 0, a dynamic width is
	// chosen based on terminal width.
	MaxKeyColWidth int

	// MaxValueColWidth constrains the value column. If 0, the value column
	// takes whatever the key and scope columns leave.
	MaxValueColWidth int

	// EnableColors toggles ANSI color output for the scope column and notes.
	EnableColors bool
}

// NewConsoleFormatter creates a formatter with sensible defaults.
func NewConsoleFormatter() *ConsoleFormatter {
	return &ConsoleFormatter{
		EnableColors: true,
	}
}

// Render writes the formatted report to writer.
func (f *ConsoleFormatter) Render(rpt *report.Report, writer io.Writer) error {
	if rpt == nil {
		return fmt.Errorf("nil report")
	}

	if _, err := fmt.Fprintf(writer, "%s\n", rpt.Name); err != nil {
		return fmt.Errorf("failed writing name: %w", err)
	}
	if rpt.Description != "" {
		if _, err := fmt.Fprintf(writer, "%s\n", rpt.Description); err != nil {
			return fmt.Errorf("failed writing description: %w", err)
		}
	}
	if _, err := fmt.Fprintln(writer); err != nil {
		return fmt.Errorf("failed writing header spacer newline: %w", err)
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(writer)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateRows = false
	tw.Style().Options.SeparateColumns = false
	tw.Style().Options.DrawBorder = true

	withScope := rpt.HasScope()
	header := table.Row{"Key", "Value"}
	if withScope {
		header = append(header, "Scope")
	}
	tw.AppendHeader(header)

	if colConfigs := f.buildColumnConfig(rpt, writer, withScope); len(colConfigs) > 0 {
		tw.SetColumnConfigs(colConfigs)
	}

	// Entries are already filtered and sorted by the table
	for _, e := range rpt.Entries {
		row := table.Row{e.Key, e.Value}
		if withScope {
			row = append(row, f.scopeCell(e))
		}
		tw.AppendRow(row)
	}

	tw.Render()

	if _, err := fmt.Fprintln(writer); err != nil {
		return fmt.Errorf("failed writing summary spacer newline: %w", err)
	}
	if _, err := fmt.Fprintf(writer, "Displaying %d of %d entries\n", rpt.Displayed, rpt.Total); err != nil {
		return fmt.Errorf("failed writing entry count line: %w", err)
	}
	if rpt.Filter != "" {
		if _, err := fmt.Fprintf(writer, "Filter: %s\n", rpt.Filter); err != nil {
			return fmt.Errorf("failed writing filter line: %w", err)
		}
	}
	if rpt.ClearDisabled != "" {
		if _, err := fmt.Fprintf(writer, "%s\n", f.color(rpt.ClearDisabled, text.FgYellow)); err != nil {
			return fmt.Errorf("failed writing clear note: %w", err)
		}
	}

	return nil
}

func (f *ConsoleFormatter) scopeCell(e statetable.Entry) string {
	switch {
	case e.Scope == nil:
		return f.color("-", text.FgHiBlack)
	case *e.Scope == statetable.ClusterScope:
		return f.color(*e.Scope, text.FgCyan)
	default:
		return *e.Scope
	}
}

// buildColumnConfig creates per-column sizing to fit the terminal.
func (f *ConsoleFormatter) buildColumnConfig(rpt *report.Report, w io.Writer, withScope bool) []table.ColumnConfig {
	termWidth := detectTerminalWidth(w)
	if termWidth <= 0 && f.MaxKeyColWidth <= 0 && f.MaxValueColWidth <= 0 {
		// Fallback: do not constrain if width unknown
		return nil
	}
	if termWidth <= 0 {
		termWidth = 120
	}

	// Guard rails
	if termWidth < 40 {
		termWidth = 40
	}

	scopeWidth := 0
	if withScope {
		scopeWidth = maxFieldWidth(rpt.Entries, statetable.ColumnScope, 30)
		if scopeWidth < 5 {
			scopeWidth = 5
		}
	}

	keyWidth := f.MaxKeyColWidth
	if keyWidth <= 0 {
		keyWidth = maxFieldWidth(rpt.Entries, statetable.ColumnKey, termWidth/3)
		if keyWidth < 10 {
			keyWidth = 10
		}
	}

	valueWidth := f.MaxValueColWidth
	if valueWidth <= 0 {
		// Leave space for borders and padding
		valueWidth = termWidth - keyWidth - scopeWidth - 10
		if valueWidth < 10 {
			valueWidth = 10
		}
	}

	configs := []table.ColumnConfig{
		{Number: 1, WidthMax: keyWidth, Transformer: truncTransformer(keyWidth)},
		{Number: 2, WidthMax: valueWidth, Transformer: truncTransformer(valueWidth)},
	}
	if withScope {
		configs = append(configs, table.ColumnConfig{Number: 3, WidthMax: scopeWidth})
	}
	return configs
}

// maxFieldWidth returns the widest value of column, capped at limit.
func maxFieldWidth(entries []statetable.Entry, column string, limit int) int {
	widest := 0
	for _, e := range entries {
		if l := runewidth.StringWidth(e.Field(column)); l > widest {
			widest = l
		}
		if widest >= limit {
			return limit
		}
	}
	return widest
}

// detectTerminalWidth attempts to get terminal width if writer is a file (stdout/stderr).
func detectTerminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			return width
		}
	}
	return -1
}

// truncTransformer returns a text.Transformer to ellipsize cells wider than
// max terminal cells.
func truncTransformer(max int) text.Transformer {
	return func(val interface{}) string {
		return truncateCells(fmt.Sprint(val), max)
	}
}

// truncateCells truncates s to at most max terminal cells, ending in an
// ellipsis when anything was cut. Wide runes count as two cells.
func truncateCells(s string, max int) string {
	if max <= 0 {
		return ""
	}
	return runewidth.Truncate(s, max, "…")
}

func (f *ConsoleFormatter) color(s string, c text.Color) string {
	if !f.EnableColors {
		return s
	}
	return text.Colors{c}.Sprint(s)
}

// RenderConsole renders the provided Report to the writer using the default console formatter.
func RenderConsole(rpt *report.Report, w io.Writer) error {
	return NewConsoleFormatter().Render(rpt, w)
}
