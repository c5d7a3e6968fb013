// Package output provides CLI output formatting: status lines and tables,
// styled only when writing to a terminal.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"
)

// Colour palette (ANSI 256).
const (
	colorLime   = "154"
	colorYellow = "220"
	colorRed    = "196"
	colorWhite  = "255"
)

// cellGap is the space between table columns.
const cellGap = 2

// styles holds the lipgloss styles a Writer renders with.
type styles struct {
	Header  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Cell    lipgloss.Style
}

func colourStyles(r *lipgloss.Renderer) styles {
	return styles{
		Header:  r.NewStyle().Bold(true).Foreground(lipgloss.Color(colorWhite)).PaddingRight(cellGap),
		Success: r.NewStyle().Foreground(lipgloss.Color(colorLime)),
		Warning: r.NewStyle().Foreground(lipgloss.Color(colorYellow)),
		Error:   r.NewStyle().Foreground(lipgloss.Color(colorRed)),
		Cell:    r.NewStyle().PaddingRight(cellGap),
	}
}

func plainStyles() styles {
	return styles{
		Header:  lipgloss.NewStyle().PaddingRight(cellGap),
		Success: lipgloss.NewStyle(),
		Warning: lipgloss.NewStyle(),
		Error:   lipgloss.NewStyle(),
		Cell:    lipgloss.NewStyle().PaddingRight(cellGap),
	}
}

// Writer provides formatted output for CLI.
type Writer struct {
	out      io.Writer
	useColor bool
	styles   styles
}

// New creates a Writer. Colour is enabled when out is a terminal and
// NO_COLOR is unset.
func New(out io.Writer) *Writer {
	return newWriter(out, isTerminal(out) && os.Getenv("NO_COLOR") == "")
}

// NewPlain creates a Writer that never colours.
func NewPlain(out io.Writer) *Writer {
	return newWriter(out, false)
}

func newWriter(out io.Writer, useColor bool) *Writer {
	w := &Writer{out: out, useColor: useColor, styles: plainStyles()}
	if useColor {
		w.styles = colourStyles(lipgloss.NewRenderer(out))
	}
	return w
}

func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message.
func (w *Writer) Success(msg string) {
	w.Status(w.styles.Success.Render("✓"), msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status(w.styles.Warning.Render("!"), msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status(w.styles.Error.Render("✗"), msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Table prints borderless rows aligned under a header.
func (w *Writer) Table(headers []string, rows [][]string) {
	t := table.New().
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		BorderColumn(false).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return w.styles.Header
			}
			return w.styles.Cell
		})
	_, _ = fmt.Fprintln(w.out, t.String())
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}
