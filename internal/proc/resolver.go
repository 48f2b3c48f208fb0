package proc

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/portwatch/portwatch/pkg/model"
	"github.com/shirou/gopsutil/v4/process"
)

// DefaultNameTTL bounds how long a resolved name is trusted. Pids get reused,
// so entries must not live forever.
const DefaultNameTTL = 30 * time.Second

// Resolver maps pids to process names. It never fails: lookups that hit a
// privilege wall or a vanished process come back as a "PID <n>" placeholder.
type Resolver struct {
	cache  *cache.Cache
	lookup func(ctx context.Context, pid int) (model.ProcessInfo, error)
}

func NewResolver(ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultNameTTL
	}
	return &Resolver{
		cache:  cache.New(ttl, 2*ttl),
		lookup: lookupProcess,
	}
}

// Name returns the process name for pid, "" when pid is unknown (0).
func (r *Resolver) Name(pid int) string {
	return r.Info(context.Background(), pid).Name
}

func (r *Resolver) Info(ctx context.Context, pid int) model.ProcessInfo {
	if pid <= 0 {
		return model.ProcessInfo{}
	}
	key := strconv.Itoa(pid)
	if v, ok := r.cache.Get(key); ok {
		return v.(model.ProcessInfo)
	}

	info, err := r.lookup(ctx, pid)
	if err != nil {
		info = Placeholder(pid)
	}
	r.cache.Set(key, info, cache.DefaultExpiration)
	return info
}

// Details returns an uncached lookup including the command line.
func (r *Resolver) Details(ctx context.Context, pid int) (model.ProcessInfo, error) {
	if pid <= 0 {
		return model.ProcessInfo{}, ErrProcessGone
	}
	info, err := r.lookup(ctx, pid)
	if err != nil {
		return Placeholder(pid), err
	}
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err == nil {
		if cmdline, err := p.CmdlineWithContext(ctx); err == nil {
			info.Cmdline = cmdline
		}
	}
	return info, nil
}

// Forget drops a cached entry, used after a process was terminated.
func (r *Resolver) Forget(pid int) {
	r.cache.Delete(strconv.Itoa(pid))
}

// Placeholder is the name shown when a pid can't be resolved.
func Placeholder(pid int) model.ProcessInfo {
	return model.ProcessInfo{PID: pid, Name: "PID " + strconv.Itoa(pid)}
}

func lookupProcess(ctx context.Context, pid int) (model.ProcessInfo, error) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return model.ProcessInfo{}, classify(err)
	}
	name, err := p.NameWithContext(ctx)
	if err != nil {
		return model.ProcessInfo{}, classify(err)
	}

	info := model.ProcessInfo{PID: pid, Name: name}
	if ppid, err := p.PpidWithContext(ctx); err == nil {
		info.PPID = int(ppid)
	}
	if user, err := p.UsernameWithContext(ctx); err == nil {
		info.User = user
	}
	return info, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, process.ErrorProcessNotRunning),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, os.ErrProcessDone),
		errors.Is(err, syscall.ESRCH):
		return ErrProcessGone
	case errors.Is(err, fs.ErrPermission):
		return ErrPrivilegeDenied
	}
	return err
}
