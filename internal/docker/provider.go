package docker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/portwatch/portwatch/pkg/model"
	"github.com/rs/zerolog/log"
)

var (
	// ErrDaemonUnavailable means neither the API nor the CLI could reach the
	// container engine.
	ErrDaemonUnavailable = errors.New("docker daemon unavailable")
	// ErrMalformedRecord marks a `docker ps` line that could not be parsed.
	ErrMalformedRecord = errors.New("malformed docker ps record")
)

// Provider lists published container ports and controls containers.
type Provider interface {
	Name() string
	// Probe checks that the provider can talk to the engine.
	Probe(ctx context.Context) error
	Mappings(ctx context.Context) ([]model.DockerMapping, error)
	Stop(ctx context.Context, id string) error
	Restart(ctx context.Context, id string) error
}

type Options struct {
	// Host overrides DOCKER_HOST for the API client.
	Host string
	// Binary is the docker CLI used as fallback.
	Binary       string
	ProbeTimeout time.Duration
}

// Fallback tries its providers in order on every call. It never reports a
// listing failure: when all providers fail the mapping set is empty and the
// cause is kept for LastError.
type Fallback struct {
	providers []Provider

	mu      sync.Mutex
	active  string
	lastErr error
}

// New builds the API and CLI providers and orders them by a capability
// probe: the first one that answers goes first.
func New(ctx context.Context, opts Options) *Fallback {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 3 * time.Second
	}

	var candidates []Provider
	sdk, err := NewSDK(opts.Host)
	if err != nil {
		log.Warn().Err(err).Msg("docker API client unavailable, using CLI only")
	} else {
		candidates = append(candidates, sdk)
	}
	candidates = append(candidates, NewCLI(opts.Binary))

	return Select(ctx, opts.ProbeTimeout, candidates...)
}

// Select probes candidates in order and moves the first healthy one to the
// front. If none answers the order is kept, so a daemon that starts later is
// still picked up.
func Select(ctx context.Context, timeout time.Duration, candidates ...Provider) *Fallback {
	f := &Fallback{providers: candidates}
	for i, p := range candidates {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		err := p.Probe(pctx)
		cancel()
		if err != nil {
			log.Debug().Err(err).Str("provider", p.Name()).Msg("docker probe failed")
			f.lastErr = err
			continue
		}
		ordered := append([]Provider{p}, candidates[:i]...)
		f.providers = append(ordered, candidates[i+1:]...)
		f.active = p.Name()
		f.lastErr = nil
		log.Info().Str("provider", p.Name()).Msg("docker provider selected")
		break
	}
	return f
}

func (f *Fallback) Name() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active == "" {
		return "none"
	}
	return f.active
}

func (f *Fallback) Probe(ctx context.Context) error {
	var err error
	for _, p := range f.providers {
		if err = p.Probe(ctx); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
}

// LastError returns why the most recent listing came back empty, if it did
// because every provider failed.
func (f *Fallback) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

func (f *Fallback) Mappings(ctx context.Context) ([]model.DockerMapping, error) {
	var lastErr error
	for _, p := range f.providers {
		mappings, err := p.Mappings(ctx)
		if err != nil {
			log.Debug().Err(err).Str("provider", p.Name()).Msg("docker listing failed")
			lastErr = err
			continue
		}
		f.record(p.Name(), nil)
		return Dedupe(mappings), nil
	}
	if lastErr == nil {
		lastErr = ErrDaemonUnavailable
	}
	f.record("", lastErr)
	return nil, nil
}

func (f *Fallback) Stop(ctx context.Context, id string) error {
	return f.control(ctx, "stop", id, Provider.Stop)
}

func (f *Fallback) Restart(ctx context.Context, id string) error {
	return f.control(ctx, "restart", id, Provider.Restart)
}

func (f *Fallback) control(ctx context.Context, verb, id string, do func(Provider, context.Context, string) error) error {
	if id == "" {
		return fmt.Errorf("%s container: empty id", verb)
	}
	var lastErr error
	for _, p := range f.providers {
		err := do(p, ctx, id)
		if err == nil {
			log.Info().Str("provider", p.Name()).Str("container", id).Msg("container " + verb)
			return nil
		}
		log.Warn().Err(err).Str("provider", p.Name()).Str("container", id).Msg("container " + verb + " failed")
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrDaemonUnavailable
	}
	return fmt.Errorf("%s container %s: %w", verb, id, lastErr)
}

func (f *Fallback) record(active string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if active != "" {
		f.active = active
	}
	f.lastErr = err
}

// Dedupe drops mappings that differ only by host IP, which the engine reports
// once per address family, and returns them in a stable order.
func Dedupe(mappings []model.DockerMapping) []model.DockerMapping {
	type key struct {
		k             model.PortKey
		containerID   string
		containerPort int
	}
	seen := make(map[key]bool, len(mappings))
	out := make([]model.DockerMapping, 0, len(mappings))
	for _, m := range mappings {
		k := key{m.Key(), m.ContainerID, m.ContainerPort}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Protocol != b.Protocol {
			return a.Protocol < b.Protocol
		}
		if a.HostPort != b.HostPort {
			return a.HostPort < b.HostPort
		}
		if a.ContainerName != b.ContainerName {
			return a.ContainerName < b.ContainerName
		}
		return a.ContainerID < b.ContainerID
	})
	return out
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
