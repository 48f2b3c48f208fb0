package proc

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/portwatch/portwatch/pkg/model"
	"github.com/rs/zerolog/log"
)

var (
	// ErrPrivilegeDenied means the OS refused to disclose process details.
	ErrPrivilegeDenied = errors.New("insufficient privilege")
	// ErrProcessGone means the process exited before it could be inspected
	// or signalled.
	ErrProcessGone = errors.New("process no longer exists")
)

// Query selects the sockets Enumerate returns.
type Query struct {
	From      int
	To        int
	Protocols []model.Protocol
}

// AllPorts matches every TCP and UDP socket.
var AllPorts = Query{From: 0, To: 65535}

type socketSource struct {
	name string
	read func(ctx context.Context) ([]model.PortRecord, error)
}

// Enumerator reads the socket table, trying its sources in order until one
// yields records.
type Enumerator struct {
	sources []socketSource
}

func NewEnumerator() *Enumerator {
	e := &Enumerator{}
	e.sources = append(e.sources, socketSource{name: "gopsutil", read: readConnections})
	if procfsAvailable {
		e.sources = append(e.sources, socketSource{name: "procfs", read: func(ctx context.Context) ([]model.PortRecord, error) {
			return readProcNet(ctx, "/proc")
		}})
	}
	if runtime.GOOS != "windows" {
		e.sources = append(e.sources, socketSource{name: "lsof", read: readLsof})
	}
	return e
}

// Enumerate returns the current sockets whose local port is within q.
func (e *Enumerator) Enumerate(ctx context.Context, q Query) ([]model.PortRecord, error) {
	var lastErr error
	for _, src := range e.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records, err := src.read(ctx)
		if err != nil {
			log.Debug().Err(err).Str("source", src.name).Msg("socket source failed")
			lastErr = err
			continue
		}
		if len(records) == 0 {
			continue
		}
		return Filter(records, q), nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("enumerate sockets: %w", lastErr)
	}
	return nil, nil
}

// Filter keeps the records matching q. A reversed range is swapped.
func Filter(records []model.PortRecord, q Query) []model.PortRecord {
	from, to := q.From, q.To
	if from > to {
		from, to = to, from
	}
	v := model.View{Protocols: q.Protocols}

	out := make([]model.PortRecord, 0, len(records))
	for _, r := range records {
		if r.LocalPort < from || r.LocalPort > to {
			continue
		}
		if !v.Wants(r.Protocol) {
			continue
		}
		out = append(out, r)
	}
	return out
}
