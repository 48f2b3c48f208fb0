package proc

import (
	"context"

	"github.com/portwatch/portwatch/pkg/model"
)

const maxAncestryDepth = 32

// Ancestry returns the chain of processes leading to pid, root first.
func (r *Resolver) Ancestry(ctx context.Context, pid int) []model.ProcessInfo {
	var chain []model.ProcessInfo
	seen := make(map[int]bool)

	current := pid
	for current > 0 && len(chain) < maxAncestryDepth {
		if seen[current] {
			break // loop protection
		}
		seen[current] = true

		info, err := r.lookup(ctx, current)
		if err != nil {
			break
		}
		chain = append([]model.ProcessInfo{info}, chain...)

		if info.PPID == 0 || info.PID == 1 {
			break
		}
		current = info.PPID
	}
	return chain
}
