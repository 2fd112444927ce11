package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"mica/internal/source"
)

var (
	bugColor     = color.New(color.FgMagenta, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	noteColor    = color.New(color.FgCyan)
)

func severityColor(sev Severity) *color.Color {
	switch {
	case sev >= SevBug:
		return bugColor
	case sev >= SevNonblockingError:
		return errorColor
	case sev >= SevWarning:
		return warningColor
	default:
		return noteColor
	}
}

// Render writes diagnostics in source order with a snippet and caret
// underline for the primary span of each.
func Render(w io.Writer, fs *source.FileSet, bag *Bag) {
	bag.Sort()
	for _, d := range bag.Items() {
		renderOne(w, fs, d)
	}
}

func renderOne(w io.Writer, fs *source.FileSet, d Diagnostic) {
	c := severityColor(d.Severity)
	head := c.Sprintf("%s[%s]", d.Severity, d.Code)
	if d.Primary.File == source.NoFile {
		fmt.Fprintf(w, "%s: %s\n", head, d.Message)
	} else {
		line, col := fs.Position(d.Primary.File, d.Primary.Start)
		fmt.Fprintf(w, "%s:%d:%d: %s: %s\n", fs.Path(d.Primary.File), line, col, head, d.Message)
		renderSnippet(w, fs, d.Primary, c)
	}
	for _, n := range d.Notes {
		if n.Span.File == source.NoFile {
			fmt.Fprintf(w, "  note: %s\n", n.Msg)
			continue
		}
		line, col := fs.Position(n.Span.File, n.Span.Start)
		fmt.Fprintf(w, "  %s:%d:%d: note: %s\n", fs.Path(n.Span.File), line, col, n.Msg)
	}
}

func renderSnippet(w io.Writer, fs *source.FileSet, sp source.Span, c *color.Color) {
	text := fs.Text(sp.File)
	if text == "" {
		return
	}
	line, col := fs.Position(sp.File, sp.Start)
	src := fs.Line(sp.File, line)
	if src == "" {
		return
	}
	fmt.Fprintf(w, "  %5d | %s\n", line, src)

	// Underline width in terminal cells, clipped to the end of the line.
	end := int(sp.Len())
	if end == 0 {
		end = 1
	}
	if col-1+end > len(src) {
		end = len(src) - (col - 1)
		if end < 1 {
			end = 1
		}
	}
	pad := runewidth.StringWidth(src[:col-1])
	width := runewidth.StringWidth(src[col-1 : col-1+end])
	if width < 1 {
		width = 1
	}
	fmt.Fprintf(w, "        | %s%s\n", strings.Repeat(" ", pad), c.Sprint(strings.Repeat("^", width)))
}
