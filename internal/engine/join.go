package engine

import (
	"sort"

	"github.com/portwatch/portwatch/pkg/model"
)

// Namer resolves a pid to a display name. It must not fail.
type Namer interface {
	Name(pid int) string
}

// NamerFunc adapts a plain function to Namer.
type NamerFunc func(pid int) string

func (f NamerFunc) Name(pid int) string { return f(pid) }

// Join merges the socket table with the published container ports for v.
//
// Records are deduplicated on (protocol, port); the first record wins unless
// a later one for the same key is listening. Mappings sharing a key are
// ordered by container name, container id and host ip; the first fills the
// row and the others are counted in ExtraMappings. Unless v.OnlyUsed is set,
// a FREE row is produced for every port of the range with no socket. Rows
// come out ordered TCP before UDP, then by port.
func Join(records []model.PortRecord, mappings []model.DockerMapping, names Namer, v model.View) []model.DisplayRow {
	v = v.Normalize()
	byKey := indexMappings(mappings)

	used := make(map[model.PortKey]int, len(records))
	rows := make([]model.DisplayRow, 0, len(records))
	for _, rec := range records {
		if !v.Wants(rec.Protocol) || !v.Contains(rec.LocalPort) {
			continue
		}
		key := rec.Key()
		if i, ok := used[key]; ok {
			if rec.State == model.StateListen && rows[i].State != model.StateListen {
				rows[i].PortRecord = rec
			}
			continue
		}
		used[key] = len(rows)
		rows = append(rows, model.DisplayRow{PortRecord: rec})
	}

	if !v.OnlyUsed {
		for _, p := range []model.Protocol{model.TCP, model.UDP} {
			if !v.Wants(p) {
				continue
			}
			for port := v.From; port <= v.To; port++ {
				key := model.PortKey{Protocol: p, Port: port}
				if _, ok := used[key]; ok {
					continue
				}
				rows = append(rows, model.DisplayRow{PortRecord: model.PortRecord{
					Protocol:  p,
					LocalPort: port,
					State:     model.StateFree,
				}})
			}
		}
	}

	out := rows[:0]
	for _, row := range rows {
		if row.PID > 0 && names != nil {
			row.Process = names.Name(row.PID)
		}
		if ms := byKey[row.Key()]; len(ms) > 0 {
			m := ms[0]
			row.ContainerID = m.ContainerID
			row.ContainerName = m.ContainerName
			row.Image = m.Image
			row.ContainerPort = m.ContainerPort
			row.ExtraMappings = otherContainers(ms)
		}
		if v.OnlyDocker && !row.HasContainer() {
			continue
		}
		out = append(out, row)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Protocol != out[j].Protocol {
			return protoRank(out[i].Protocol) < protoRank(out[j].Protocol)
		}
		return out[i].LocalPort < out[j].LocalPort
	})
	return out
}

func indexMappings(mappings []model.DockerMapping) map[model.PortKey][]model.DockerMapping {
	byKey := make(map[model.PortKey][]model.DockerMapping, len(mappings))
	for _, m := range mappings {
		byKey[m.Key()] = append(byKey[m.Key()], m)
	}
	for _, ms := range byKey {
		sort.SliceStable(ms, func(i, j int) bool {
			a, b := ms[i], ms[j]
			if a.ContainerName != b.ContainerName {
				return a.ContainerName < b.ContainerName
			}
			if a.ContainerID != b.ContainerID {
				return a.ContainerID < b.ContainerID
			}
			return a.HostIP < b.HostIP
		})
	}
	return byKey
}

// otherContainers counts the distinct containers in ms besides the primary.
// One container bound on both 0.0.0.0 and :: counts once.
func otherContainers(ms []model.DockerMapping) int {
	seen := map[string]bool{ms[0].ContainerID: true}
	n := 0
	for _, m := range ms[1:] {
		if !seen[m.ContainerID] {
			seen[m.ContainerID] = true
			n++
		}
	}
	return n
}

func protoRank(p model.Protocol) int {
	switch p {
	case model.TCP:
		return 0
	case model.UDP:
		return 1
	}
	return 2
}
