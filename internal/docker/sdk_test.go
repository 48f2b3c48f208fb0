package docker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/portwatch/portwatch/pkg/model"
)

type fakeAPI struct {
	pingErr    error
	listErr    error
	containers []container.Summary
	stopped    []string
	restarted  []string
}

func (f *fakeAPI) Ping(context.Context) (types.Ping, error) {
	return types.Ping{}, f.pingErr
}

func (f *fakeAPI) ContainerList(context.Context, container.ListOptions) ([]container.Summary, error) {
	return f.containers, f.listErr
}

func (f *fakeAPI) ContainerStop(_ context.Context, id string, _ container.StopOptions) error {
	f.stopped = append(f.stopped, id)
	return nil
}

func (f *fakeAPI) ContainerRestart(_ context.Context, id string, _ container.StopOptions) error {
	f.restarted = append(f.restarted, id)
	return nil
}

func (f *fakeAPI) Close() error { return nil }

const listJSON = `[
  {"Id":"0123456789abcdef0123","Names":["/web"],"Image":"nginx:1.27",
   "Ports":[{"IP":"0.0.0.0","PrivatePort":80,"PublicPort":8080,"Type":"tcp"},
            {"IP":"::","PrivatePort":80,"PublicPort":8080,"Type":"tcp"},
            {"PrivatePort":443,"Type":"tcp"}]},
  {"Id":"fedcba9876543210","Names":["/dns"],"Image":"coredns/coredns",
   "Ports":[{"IP":"0.0.0.0","PrivatePort":53,"PublicPort":5353,"Type":"udp"}]}
]`

func TestSDKProviderMappings(t *testing.T) {
	api := &fakeAPI{}
	if err := json.Unmarshal([]byte(listJSON), &api.containers); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	p := &SDKProvider{api: api}

	got, err := p.Mappings(context.Background())
	if err != nil {
		t.Fatalf("Mappings: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d mappings, want 3: %+v", len(got), got)
	}
	want := model.DockerMapping{
		Protocol: model.TCP, HostIP: "0.0.0.0", HostPort: 8080,
		ContainerID: "0123456789ab", ContainerName: "web", Image: "nginx:1.27", ContainerPort: 80,
	}
	if got[0] != want {
		t.Errorf("got %+v, want %+v", got[0], want)
	}
	if got[2].Protocol != model.UDP || got[2].HostPort != 5353 || got[2].ContainerName != "dns" {
		t.Errorf("dns mapping = %+v", got[2])
	}
	if deduped := Dedupe(got); len(deduped) != 2 {
		t.Errorf("Dedupe left %d mappings, want 2", len(deduped))
	}
}

func TestSDKProviderDaemonDown(t *testing.T) {
	p := &SDKProvider{api: &fakeAPI{
		pingErr: errors.New("Cannot connect to the Docker daemon"),
		listErr: errors.New("Cannot connect to the Docker daemon"),
	}}
	if err := p.Probe(context.Background()); !errors.Is(err, ErrDaemonUnavailable) {
		t.Fatalf("Probe err = %v", err)
	}
	if _, err := p.Mappings(context.Background()); !errors.Is(err, ErrDaemonUnavailable) {
		t.Fatalf("Mappings err = %v", err)
	}
}

func TestSDKProviderControl(t *testing.T) {
	api := &fakeAPI{}
	p := &SDKProvider{api: api}
	_ = p.Stop(context.Background(), "web")
	_ = p.Restart(context.Background(), "web")
	if len(api.stopped) != 1 || len(api.restarted) != 1 {
		t.Fatalf("stopped=%v restarted=%v", api.stopped, api.restarted)
	}
}
