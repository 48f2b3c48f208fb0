package tui

import (
	"sort"
	"strconv"
	"strings"

	"github.com/portwatch/portwatch/internal/output"
	"github.com/portwatch/portwatch/pkg/model"
)

type tab int

const (
	tabAll tab = iota
	tabTCP
	tabUDP
	tabDocker
)

var tabNames = []string{"All", "TCP", "UDP", "Docker"}

func (t tab) String() string { return tabNames[t] }

func (t tab) keep(r model.DisplayRow) bool {
	switch t {
	case tabTCP:
		return r.Protocol == model.TCP
	case tabUDP:
		return r.Protocol == model.UDP
	case tabDocker:
		return r.HasContainer()
	}
	return true
}

// filter is a parsed filter expression: "8080", "port:80", "proc:nginx"...
type filter struct {
	prefix string
	value  string
}

var filterPrefixes = map[string]bool{"port": true, "pid": true, "proc": true, "docker": true, "proto": true}

func parseFilter(raw string) filter {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if prefix, value, ok := strings.Cut(raw, ":"); ok && filterPrefixes[prefix] {
		return filter{prefix: prefix, value: strings.TrimSpace(value)}
	}
	return filter{value: raw}
}

func (f filter) match(r model.DisplayRow, cells []string) bool {
	if f.value == "" {
		return true
	}
	has := func(s string) bool { return strings.Contains(strings.ToLower(s), f.value) }
	switch f.prefix {
	case "port":
		return strconv.Itoa(r.LocalPort) == f.value ||
			(r.ContainerPort > 0 && strconv.Itoa(r.ContainerPort) == f.value)
	case "pid":
		return r.PID > 0 && strconv.Itoa(r.PID) == f.value
	case "proc":
		return has(r.Process)
	case "docker":
		return has(r.ContainerName) || has(r.ContainerID) || has(r.Image)
	case "proto":
		return has(string(r.Protocol))
	}
	for _, c := range cells {
		if has(c) {
			return true
		}
	}
	return false
}

// numericColumns sort by value instead of text.
var numericColumns = map[int]bool{
	output.ColPort:          true,
	output.ColPID:           true,
	output.ColContainerPort: true,
}

// visibleRows applies the tab and the filter, then sorts on column col.
// The sort is stable so ties keep the engine order (protocol, port).
func visibleRows(rows []model.DisplayRow, t tab, f filter, col int, asc bool) ([]model.DisplayRow, [][]string) {
	var out []model.DisplayRow
	var cells [][]string
	for _, r := range rows {
		if !t.keep(r) {
			continue
		}
		c := output.Cells(r)
		if !f.match(r, c) {
			continue
		}
		out = append(out, r)
		cells = append(cells, c)
	}

	if col < 0 || col >= len(output.Columns) {
		return out, cells
	}
	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		x, y := cells[idx[a]][col], cells[idx[b]][col]
		if numericColumns[col] {
			nx, _ := strconv.Atoi(x)
			ny, _ := strconv.Atoi(y)
			if asc {
				return nx < ny
			}
			return nx > ny
		}
		if asc {
			return x < y
		}
		return x > y
	})

	sortedRows := make([]model.DisplayRow, len(out))
	sortedCells := make([][]string, len(out))
	for i, j := range idx {
		sortedRows[i] = out[j]
		sortedCells[i] = cells[j]
	}
	return sortedRows, sortedCells
}
