package output

import (
	"io"
	"strings"

	"github.com/portwatch/portwatch/pkg/model"
)

var (
	colorReset   = styled("\033[0m")
	colorMagenta = styled("\033[35m")
	colorGreen   = styled("\033[32m")
	colorDim     = styled("\033[2m")
)

// RenderChain prints an ancestry on one line, root first:
//
//	systemd (pid 1) → sshd (pid 812) → python3 (pid 4242)
func RenderChain(w io.Writer, chain []model.ProcessInfo, colorEnabled bool) {
	p := NewPrinter(w)
	for i, proc := range chain {
		if i > 0 {
			if colorEnabled {
				p.Printf("%s → %s", colorMagenta, colorReset)
			} else {
				p.Printf(" → ")
			}
		}
		if colorEnabled {
			nameColor := styled("")
			if i == len(chain)-1 {
				nameColor = colorGreen
			}
			p.Printf("%s%s%s (%spid %d%s)", nameColor, proc.Name, colorReset, colorDim, proc.PID, colorReset)
		} else {
			p.Printf("%s (pid %d)", proc.Name, proc.PID)
		}
	}
	p.Println()
}

// FormatTree lays an ancestry out as an indented tree, one process per line.
// The result is sanitized and uncolored.
func FormatTree(chain []model.ProcessInfo) string {
	var b strings.Builder
	for i, proc := range chain {
		if i > 0 {
			b.WriteByte('\n')
			b.WriteString(strings.Repeat("  ", i-1))
			b.WriteString("└─ ")
		}
		b.WriteString(SanitizeLine(proc.Name))
		b.WriteString(" (pid ")
		b.WriteString(itoa(proc.PID))
		if proc.User != "" {
			b.WriteString(", ")
			b.WriteString(SanitizeLine(proc.User))
		}
		b.WriteByte(')')
	}
	return b.String()
}
