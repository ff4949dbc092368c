// Package output provides consistent CLI output formatting: status lines,
// search results and highlighted matches. Colour is used only when
// writing to a terminal and NO_COLOR is unset.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/Aman-CERP/vaultsearch/internal/search"
)

// Palette.
const (
	ColorLime   = "154"
	ColorGray   = "245"
	ColorRed    = "196"
	ColorYellow = "220"
)

// Styles holds the styles used for rendering.
type Styles struct {
	Path    lipgloss.Style
	Match   lipgloss.Style
	Dim     lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

// DefaultStyles returns the coloured styles.
func DefaultStyles() Styles {
	return Styles{
		Path:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)),
		Match:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorYellow)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
	}
}

// NoColorStyles returns unstyled components for plain output.
func NoColorStyles() Styles {
	return Styles{
		Path:    lipgloss.NewStyle(),
		Match:   lipgloss.NewStyle(),
		Dim:     lipgloss.NewStyle(),
		Warning: lipgloss.NewStyle(),
		Error:   lipgloss.NewStyle(),
	}
}

// Writer provides formatted output for CLI.
type Writer struct {
	out      io.Writer
	useColor bool
	styles   Styles
}

// New creates a Writer that colours output only on a terminal.
func New(out io.Writer) *Writer {
	return NewWithColor(out, IsTTY(out) && !DetectNoColor())
}

// NewWithColor creates a Writer with colour forced on or off.
func NewWithColor(out io.Writer, useColor bool) *Writer {
	styles := NoColorStyles()
	if useColor {
		styles = DefaultStyles()
	}
	return &Writer{out: out, useColor: useColor, styles: styles}
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
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

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", w.styles.Warning.Render(msg))
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", w.styles.Error.Render(msg))
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Highlight renders text with the runes at positions styled as matches.
// Positions are rune offsets; out-of-range ones are ignored. Without
// colour, matched runs are wrapped in [ ].
func (w *Writer) Highlight(text string, positions []int) string {
	if len(positions) == 0 {
		return text
	}
	marked := make(map[int]bool, len(positions))
	for _, p := range positions {
		marked[p] = true
	}

	var sb, run strings.Builder
	flush := func() {
		if run.Len() == 0 {
			return
		}
		if w.useColor {
			sb.WriteString(w.styles.Match.Render(run.String()))
		} else {
			sb.WriteString("[" + run.String() + "]")
		}
		run.Reset()
	}

	i := 0
	for _, r := range text {
		if marked[i] {
			run.WriteRune(r)
		} else {
			flush()
			sb.WriteRune(r)
		}
		i++
	}
	flush()
	return sb.String()
}

// FileItem prints one ranked vault hit with its excerpts.
func (w *Writer) FileItem(rank int, item search.FileItem) {
	terms := ""
	if len(item.MatchedTerms) > 0 {
		terms = w.styles.Dim.Render(" (" + strings.Join(item.MatchedTerms, ", ") + ")")
	}
	_, _ = fmt.Fprintf(w.out, "%2d. %s%s\n", rank, w.styles.Path.Render(item.Path), terms)
	for _, sub := range item.SubItems {
		_, _ = fmt.Fprintf(w.out, "    %s %s\n",
			w.styles.Dim.Render(fmt.Sprintf("%4d:", sub.Row+1)), w.Highlight(sub.Text, sub.Positions))
	}
}

// LineItem prints one in-file match. With context set, the surrounding
// paragraph follows, indented.
func (w *Writer) LineItem(item search.LineItem, context bool) {
	_, _ = fmt.Fprintf(w.out, "%s %s\n",
		w.styles.Dim.Render(fmt.Sprintf("%4d:", item.Line.Row+1)), w.Highlight(item.Line.Text, item.Line.Positions))
	if !context || item.Context == "" || item.Context == item.Line.Text {
		return
	}
	for _, line := range strings.Split(item.Context, "\n") {
		_, _ = fmt.Fprintf(w.out, "      %s\n", w.styles.Dim.Render(line))
	}
}
