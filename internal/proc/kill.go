package proc

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// terminateGrace is how long Terminate waits after SIGTERM before it kills.
var terminateGrace = 3 * time.Second

// Terminate asks pid to exit and kills it if it is still around after the
// grace period. A process that is already gone yields ErrProcessGone.
func Terminate(ctx context.Context, pid int) error {
	if pid <= 0 {
		return fmt.Errorf("terminate pid %d: %w", pid, ErrProcessGone)
	}
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return fmt.Errorf("terminate pid %d: %w", pid, classify(err))
	}
	if err := p.TerminateWithContext(ctx); err != nil {
		return fmt.Errorf("terminate pid %d: %w", pid, classify(err))
	}

	deadline := time.NewTimer(terminateGrace)
	defer deadline.Stop()
	poll := time.NewTicker(100 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-poll.C:
			running, err := p.IsRunningWithContext(ctx)
			if err != nil || !running {
				return nil
			}
		case <-deadline.C:
			if err := p.KillWithContext(ctx); err != nil {
				if classify(err) == ErrProcessGone {
					return nil
				}
				return fmt.Errorf("kill pid %d: %w", pid, classify(err))
			}
			return nil
		}
	}
}
