package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/portwatch/portwatch/pkg/model"
)

// Export is the content of a markdown snapshot.
type Export struct {
	Title   string
	TakenAt time.Time
	Status  string
	Rows    []model.DisplayRow
	// Details, when set, is a preformatted block describing the selected row.
	Details string
}

// SnapshotFilename names an export taken at t.
func SnapshotFilename(t time.Time) string {
	return "portwatch_snapshot_" + t.Format("20060102_150405") + ".md"
}

// WriteMarkdown renders e as a markdown document with the rows as a table.
func WriteMarkdown(w io.Writer, e Export) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# portwatch snapshot - %s\n\n", e.TakenAt.Format(time.RFC1123))
	if e.Status != "" {
		fmt.Fprintf(&b, "_%s_\n\n", mdEscape(e.Status))
	}
	if e.Details != "" {
		b.WriteString("## Details\n\n```\n" + e.Details + "\n```\n\n")
	}

	title := e.Title
	if title == "" {
		title = "Ports"
	}
	fmt.Fprintf(&b, "## %s (%d rows)\n\n", title, len(e.Rows))
	b.WriteString("| " + strings.Join(Columns, " | ") + " |\n")
	b.WriteString(strings.Repeat("| --- ", len(Columns)) + "|\n")
	for _, r := range e.Rows {
		cells := Cells(r)
		for i, c := range cells {
			cells[i] = mdEscape(c)
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func mdEscape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
