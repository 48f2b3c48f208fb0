package output

import (
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/portwatch/portwatch/pkg/model"
)

// Column indexes of Cells.
const (
	ColProto = iota
	ColPort
	ColLocal
	ColState
	ColPID
	ColProcess
	ColContainer
	ColImage
	ColContainerPort
)

// Columns are the headers matching Cells.
var Columns = []string{"Proto", "Port", "Local Address", "State", "PID", "Process", "Container", "Image", "C.Port"}

// Cells renders row as sanitized single-line strings in Columns order.
func Cells(row model.DisplayRow) []string {
	pid, cport := "", ""
	if row.PID > 0 {
		pid = itoa(row.PID)
	}
	if row.ContainerPort > 0 {
		cport = itoa(row.ContainerPort)
	}
	return []string{
		string(row.Protocol),
		itoa(row.LocalPort),
		SanitizeLine(row.LocalAddr),
		row.State,
		pid,
		SanitizeLine(row.Process),
		SanitizeLine(row.ContainerLabel()),
		SanitizeLine(row.Image),
		cport,
	}
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	freeStyle   = cellStyle.Foreground(lipgloss.Color("240"))
	dockerStyle = cellStyle.Foreground(lipgloss.Color("39"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// RenderTable prints rows as a bordered table followed by status, if any.
func RenderTable(w io.Writer, rows []model.DisplayRow, status string, colorEnabled bool) {
	data := make([][]string, len(rows))
	for i, r := range rows {
		data[i] = Cells(r)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(Columns...).
		Rows(data...)
	if colorEnabled {
		t = t.BorderStyle(borderStyle).StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row < len(rows) && rows[row].IsFree():
				return freeStyle
			case row < len(rows) && rows[row].HasContainer() && col >= ColContainer:
				return dockerStyle
			}
			return cellStyle
		})
	} else {
		plain := lipgloss.NewStyle().Padding(0, 1)
		t = t.StyleFunc(func(int, int) lipgloss.Style { return plain })
	}

	p := NewPrinter(w)
	p.Println(styled(t.String()))
	if status != "" {
		p.Println(status)
	}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
