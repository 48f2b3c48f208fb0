package docker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"unicode"

	"github.com/docker/go-connections/nat"
	"github.com/portwatch/portwatch/pkg/model"
	"github.com/rs/zerolog/log"
)

type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w", msg, err)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// CLIProvider shells out to the docker binary.
type CLIProvider struct {
	binary string
	run    runner
}

func NewCLI(binary string) *CLIProvider {
	if binary == "" {
		binary = "docker"
	}
	return &CLIProvider{binary: binary, run: execRunner}
}

func (p *CLIProvider) Name() string { return "cli" }

func (p *CLIProvider) Probe(ctx context.Context) error {
	if _, err := p.run(ctx, p.binary, "version", "--format", "{{.Server.Version}}"); err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	return nil
}

func (p *CLIProvider) Mappings(ctx context.Context) ([]model.DockerMapping, error) {
	out, err := p.run(ctx, p.binary, "ps", "--format", "{{json .}}")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	mappings, errs := ParsePS(bytes.NewReader(out))
	for _, err := range errs {
		log.Debug().Err(err).Msg("skipping docker ps line")
	}
	return mappings, nil
}

func (p *CLIProvider) Stop(ctx context.Context, id string) error {
	_, err := p.run(ctx, p.binary, "stop", id)
	return err
}

func (p *CLIProvider) Restart(ctx context.Context, id string) error {
	_, err := p.run(ctx, p.binary, "restart", id)
	return err
}

type psLine struct {
	ID     string `json:"ID"`
	Names  string `json:"Names"`
	Image  string `json:"Image"`
	Ports  string `json:"Ports"`
	Status string `json:"Status"`
}

// ParsePS reads `docker ps --format "{{json .}}"` output. Each line is parsed
// on its own; a line that does not decode is reported in errs and skipped.
func ParsePS(r io.Reader) (mappings []model.DockerMapping, errs []error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ps psLine
		if err := json.Unmarshal([]byte(line), &ps); err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w: %v", lineNo, ErrMalformedRecord, err))
			continue
		}

		name, _, _ := strings.Cut(ps.Names, ",")
		for _, e := range ParsePorts(ps.Ports) {
			mappings = append(mappings, model.DockerMapping{
				Protocol:      e.Protocol,
				HostIP:        e.HostIP,
				HostPort:      e.HostPort,
				ContainerID:   shortID(ps.ID),
				ContainerName: name,
				Image:         ps.Image,
				ContainerPort: e.ContainerPort,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, fmt.Errorf("read docker ps output: %w", err))
	}
	return mappings, errs
}

// PortEntry is one published port from a `docker ps` Ports column.
type PortEntry struct {
	Protocol      model.Protocol
	HostIP        string
	HostPort      int
	ContainerPort int
}

// ParsePorts parses a Ports column such as
// "0.0.0.0:8080->80/tcp, :::8080->80/tcp, 443/tcp". Exposed but unpublished
// ports are ignored, host port ranges are expanded.
func ParsePorts(s string) []PortEntry {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})

	var entries []PortEntry
	for _, f := range fields {
		host, ctr, found := strings.Cut(f, "->")
		if !found {
			continue
		}
		rawProto, ctrPorts := nat.SplitProtoPort(ctr)
		proto, ok := model.ParseProtocol(rawProto)
		if !ok {
			continue
		}
		ctrStart, ctrEnd, err := nat.ParsePortRange(ctrPorts)
		if err != nil {
			continue
		}

		hostIP, hostPorts := "", host
		if idx := strings.LastIndex(host, ":"); idx >= 0 {
			hostIP, hostPorts = strings.Trim(host[:idx], "[]"), host[idx+1:]
		}
		hostStart, hostEnd, err := nat.ParsePortRange(hostPorts)
		if err != nil {
			continue
		}

		span := hostEnd - hostStart
		if ctrEnd-ctrStart != span && ctrEnd != ctrStart {
			continue
		}
		for i := uint64(0); i <= span; i++ {
			cport := ctrStart
			if ctrEnd != ctrStart {
				cport = ctrStart + i
			}
			entries = append(entries, PortEntry{
				Protocol:      proto,
				HostIP:        hostIP,
				HostPort:      int(hostStart + i),
				ContainerPort: int(cport),
			})
		}
	}
	return entries
}
