package proc

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os/exec"
	"strconv"
	"strings"

	"github.com/portwatch/portwatch/pkg/model"
)

// lsofCommand runs lsof with field output:
//
//	-n -P  no host or port name resolution
//	-i     internet sockets only
//	-F     p(pid) f(fd) P(protocol) n(name) T(TCP state)
var lsofCommand = func(ctx context.Context) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "lsof", "-nP", "-i", "-F", "pfPnT")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	// lsof exits 1 when some files could not be examined; keep what it printed.
	if err != nil && stdout.Len() == 0 {
		return nil, fmt.Errorf("lsof: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func readLsof(ctx context.Context) ([]model.PortRecord, error) {
	out, err := lsofCommand(ctx)
	if err != nil {
		return nil, err
	}
	return parseLsof(bytes.NewReader(out)), nil
}

// parseLsof reads lsof -F output. Each process starts with a p line, each of
// its files with an f line followed by that file's fields.
func parseLsof(r io.Reader) []model.PortRecord {
	var records []model.PortRecord
	var pid int
	var proto, name, state string
	open := false

	flush := func() {
		if open {
			if rec, ok := lsofRecord(pid, proto, name, state); ok {
				records = append(records, rec)
			}
		}
		proto, name, state = "", "", ""
		open = false
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		value := line[1:]
		switch line[0] {
		case 'p':
			flush()
			pid, _ = strconv.Atoi(value)
		case 'f':
			flush()
			open = true
		case 'P':
			proto = value
		case 'n':
			name = value
		case 'T':
			if s, ok := strings.CutPrefix(value, "ST="); ok {
				state = s
			}
		}
	}
	flush()
	return records
}

func lsofRecord(pid int, proto, name, state string) (model.PortRecord, bool) {
	p, ok := model.ParseProtocol(proto)
	if !ok || name == "" {
		return model.PortRecord{}, false
	}
	local, remote, _ := strings.Cut(name, "->")
	host, portStr, err := net.SplitHostPort(local)
	if err != nil {
		return model.PortRecord{}, false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return model.PortRecord{}, false
	}
	if host == "*" {
		host = ""
	}

	rec := model.PortRecord{
		Protocol:   p,
		LocalPort:  port,
		LocalAddr:  joinAddr(host, port),
		RemoteAddr: remote,
	}
	if p == model.TCP {
		rec.State = state
	}
	if pid > 0 {
		rec.PID = pid
	}
	return rec, true
}
