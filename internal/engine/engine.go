package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/portwatch/portwatch/internal/logging"
	"github.com/portwatch/portwatch/internal/proc"
	"github.com/portwatch/portwatch/pkg/model"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// SocketSource reads the OS socket table.
type SocketSource interface {
	Enumerate(ctx context.Context, q proc.Query) ([]model.PortRecord, error)
}

// MappingSource lists published container ports and controls containers.
type MappingSource interface {
	Mappings(ctx context.Context) ([]model.DockerMapping, error)
	Stop(ctx context.Context, id string) error
	Restart(ctx context.Context, id string) error
}

type Options struct {
	SocketInterval time.Duration
	DockerInterval time.Duration
	SocketTimeout  time.Duration
	DockerTimeout  time.Duration
	View           model.View
}

func (o *Options) setDefaults() {
	if o.SocketInterval <= 0 {
		o.SocketInterval = 5 * time.Second
	}
	if o.DockerInterval <= 0 {
		o.DockerInterval = 10 * time.Second
	}
	if o.SocketTimeout <= 0 {
		o.SocketTimeout = 4 * time.Second
	}
	if o.DockerTimeout <= 0 {
		o.DockerTimeout = 8 * time.Second
	}
}

// Update is one published row-set together with the snapshots it was
// computed from.
type Update struct {
	Rows    []model.DisplayRow
	View    model.View
	Sockets *model.Snapshot[model.PortRecord]
	Docker  *model.Snapshot[model.DockerMapping]
	// Provider is the name of the Docker strategy in use, when known.
	Provider string
	At       time.Time
}

// Status summarizes both sources in one line.
func (u Update) Status() string {
	sockets := fmt.Sprintf("%d sockets", u.Sockets.Len())
	if u.Sockets != nil && u.Sockets.Err != nil {
		sockets = "socket scan failed: " + u.Sockets.Err.Error()
	}
	var docker string
	switch {
	case u.Docker == nil:
		docker = "docker: pending"
	case u.Docker.Len() == 0 && u.Docker.Err != nil:
		docker = "docker: unavailable"
	case u.Docker.Len() == 0:
		docker = "docker: no mappings"
	default:
		docker = fmt.Sprintf("docker: %d mappings", u.Docker.Len())
	}
	if u.Provider != "" && u.Provider != "none" {
		docker += " (" + u.Provider + ")"
	}
	return sockets + " | " + docker
}

// Engine polls the socket table and the container runtime on independent
// schedules and publishes their join.
type Engine struct {
	sockets   SocketSource
	docker    MappingSource
	names     Namer
	terminate func(ctx context.Context, pid int) error
	opts      Options

	socketSnap atomic.Pointer[model.Snapshot[model.PortRecord]]
	dockerSnap atomic.Pointer[model.Snapshot[model.DockerMapping]]
	view       atomic.Pointer[model.View]
	latest     atomic.Pointer[Update]

	gen atomic.Uint64

	mu        sync.Mutex // guards subs and published
	subs      map[int]chan Update
	nextSub   int
	published uint64

	cron *cron.Cron
	ctx  context.Context
}

func New(sockets SocketSource, docker MappingSource, names Namer, opts Options) *Engine {
	opts.setDefaults()
	e := &Engine{
		sockets:   sockets,
		docker:    docker,
		names:     names,
		terminate: proc.Terminate,
		opts:      opts,
		subs:      make(map[int]chan Update),
		ctx:       context.Background(),
	}
	v := opts.View.Normalize()
	e.view.Store(&v)
	return e
}

// Start refreshes both sources once, then schedules the periodic jobs.
// ctx bounds every job run by the scheduler.
func (e *Engine) Start(ctx context.Context) error {
	e.ctx = ctx
	e.RefreshDocker(ctx)
	e.RefreshSockets(ctx)

	cl := logging.CronLogger(log.Logger)
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(every(e.opts.SocketInterval), func() { e.RefreshSockets(ctx) }); err != nil {
		return fmt.Errorf("schedule socket scan: %w", err)
	}
	if _, err := c.AddFunc(every(e.opts.DockerInterval), func() { e.RefreshDocker(ctx) }); err != nil {
		return fmt.Errorf("schedule docker scan: %w", err)
	}
	c.Start()
	e.cron = c
	log.Debug().
		Dur("sockets", e.opts.SocketInterval).
		Dur("docker", e.opts.DockerInterval).
		Msg("refresh jobs scheduled")
	return nil
}

func every(d time.Duration) string {
	return "@every " + d.String()
}

// Stop halts the scheduler, waits for running jobs and closes every
// subscription.
func (e *Engine) Stop() {
	if e.cron != nil {
		<-e.cron.Stop().Done()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, ch := range e.subs {
		close(ch)
		delete(e.subs, id)
	}
}

// RefreshSockets rescans the socket table and republishes. On failure the
// previous records are kept and the error is attached to the snapshot.
func (e *Engine) RefreshSockets(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.SocketTimeout)
	defer cancel()

	records, err := e.sockets.Enumerate(ctx, proc.AllPorts)
	if err != nil {
		log.Warn().Err(err).Msg("socket scan failed")
		if prev := e.socketSnap.Load(); prev != nil {
			records = prev.Items
		}
	}
	snap := model.NewSnapshot(records, err)
	e.socketSnap.Store(snap)
	log.Debug().Str("scan", snap.ID).Int("sockets", snap.Len()).Msg("sockets refreshed")
	e.publish()
}

// RefreshDocker relists published container ports and republishes.
func (e *Engine) RefreshDocker(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.DockerTimeout)
	defer cancel()

	mappings, err := e.docker.Mappings(ctx)
	if err == nil {
		if le, ok := e.docker.(interface{ LastError() error }); ok {
			err = le.LastError()
		}
	}
	if err != nil {
		log.Debug().Err(err).Msg("docker mappings unavailable")
	}
	snap := model.NewSnapshot(mappings, err)
	e.dockerSnap.Store(snap)
	log.Debug().Str("scan", snap.ID).Int("mappings", snap.Len()).Msg("docker refreshed")
	e.publish()
}

// SetView changes the row selection and republishes at once.
func (e *Engine) SetView(v model.View) {
	v = v.Normalize()
	e.view.Store(&v)
	e.publish()
}

func (e *Engine) View() model.View {
	return *e.view.Load()
}

// Rows returns the most recent join.
func (e *Engine) Rows() []model.DisplayRow {
	if u := e.latest.Load(); u != nil {
		return u.Rows
	}
	return nil
}

// Latest returns the most recent update, if any has been published.
func (e *Engine) Latest() (Update, bool) {
	if u := e.latest.Load(); u != nil {
		return *u, true
	}
	return Update{}, false
}

// Subscribe returns a channel receiving every new row-set. Delivery is
// latest-wins: a subscriber that falls behind only sees the newest update.
// The returned function cancels the subscription.
func (e *Engine) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 1)
	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	if u := e.latest.Load(); u != nil {
		ch <- *u
	}
	e.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if _, ok := e.subs[id]; ok {
				delete(e.subs, id)
				close(ch)
			}
		})
	}
}

// publish joins the current snapshots and delivers the result. The join runs
// without the lock; a result older than one already delivered is dropped.
func (e *Engine) publish() {
	gen := e.gen.Add(1)
	sockets := e.socketSnap.Load()
	docker := e.dockerSnap.Load()
	view := *e.view.Load()

	var records []model.PortRecord
	if sockets != nil {
		records = sockets.Items
	}
	var mappings []model.DockerMapping
	if docker != nil {
		mappings = docker.Items
	}

	u := Update{
		Rows:    Join(records, mappings, e.names, view),
		View:    view,
		Sockets: sockets,
		Docker:  docker,
		At:      time.Now(),
	}
	if n, ok := e.docker.(interface{ Name() string }); ok {
		u.Provider = n.Name()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen < e.published {
		return
	}
	e.published = gen
	e.latest.Store(&u)

	for _, ch := range e.subs {
		select {
		case ch <- u:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- u:
			default:
			}
		}
	}
}

// TerminateProcess stops pid and rescans the socket table.
func (e *Engine) TerminateProcess(ctx context.Context, pid int) model.ActionResult {
	if pid <= 0 {
		return model.ActionResult{Message: "No process to terminate."}
	}
	err := e.terminate(ctx, pid)
	if f, ok := e.names.(interface{ Forget(int) }); ok {
		f.Forget(pid)
	}

	var res model.ActionResult
	switch {
	case err == nil:
		res = model.ActionResult{OK: true, Message: fmt.Sprintf("Process %d terminated.", pid)}
	case errors.Is(err, proc.ErrProcessGone):
		res = model.ActionResult{OK: true, Message: fmt.Sprintf("Process %d had already exited.", pid)}
	case errors.Is(err, proc.ErrPrivilegeDenied):
		res = model.ActionResult{Message: fmt.Sprintf("Permission denied terminating PID %d. Run as root/administrator.", pid)}
	default:
		res = model.ActionResult{Message: fmt.Sprintf("Could not terminate PID %d: %v", pid, err)}
	}
	log.Info().Int("pid", pid).Bool("ok", res.OK).Err(err).Msg("terminate process")
	e.RefreshSockets(e.ctx)
	return res
}

// StopContainer stops the container and refreshes both sources.
func (e *Engine) StopContainer(ctx context.Context, id string) model.ActionResult {
	return e.control(ctx, "stop", "stopped", id, e.docker.Stop)
}

// RestartContainer restarts the container and refreshes both sources.
func (e *Engine) RestartContainer(ctx context.Context, id string) model.ActionResult {
	return e.control(ctx, "restart", "restarted", id, e.docker.Restart)
}

func (e *Engine) control(ctx context.Context, verb, done, id string, do func(context.Context, string) error) model.ActionResult {
	if id == "" {
		return model.ActionResult{Message: "No container on this port."}
	}
	err := do(ctx, id)
	log.Info().Str("container", id).Str("action", verb).Err(err).Msg("container action")
	if err != nil {
		return model.ActionResult{Message: fmt.Sprintf("Could not %s container %s: %v", verb, id, err)}
	}
	e.RefreshDocker(e.ctx)
	e.RefreshSockets(e.ctx)
	return model.ActionResult{OK: true, Message: fmt.Sprintf("Container %s %s.", id, done)}
}
