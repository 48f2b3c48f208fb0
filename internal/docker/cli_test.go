package docker

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/portwatch/portwatch/pkg/model"
)

func TestParsePorts(t *testing.T) {
	cases := []struct {
		in   string
		want []PortEntry
	}{
		{"", nil},
		{"80/tcp", nil},
		{"0.0.0.0:8080->80/tcp", []PortEntry{{model.TCP, "0.0.0.0", 8080, 80}}},
		{"0.0.0.0:8080->80/tcp, :::8080->80/tcp", []PortEntry{
			{model.TCP, "0.0.0.0", 8080, 80},
			{model.TCP, "::", 8080, 80},
		}},
		{"[::]:5353->53/udp 127.0.0.1:9000->9000/tcp", []PortEntry{
			{model.UDP, "::", 5353, 53},
			{model.TCP, "127.0.0.1", 9000, 9000},
		}},
		{"0.0.0.0:8000-8001->80-81/tcp", []PortEntry{
			{model.TCP, "0.0.0.0", 8000, 80},
			{model.TCP, "0.0.0.0", 8001, 81},
		}},
		{"0.0.0.0:7000-7001->7000/tcp", []PortEntry{
			{model.TCP, "0.0.0.0", 7000, 7000},
			{model.TCP, "0.0.0.0", 7001, 7000},
		}},
		{"0.0.0.0:7000-7002->80-81/tcp", nil},
		{"0.0.0.0:abc->80/tcp, 0.0.0.0:1->80/sctp", nil},
		{"6000->6000/tcp", []PortEntry{{model.TCP, "", 6000, 6000}}},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got := ParsePorts(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParsePorts(%q) = %+v, want %+v", tc.in, got, tc.want)
			}
		})
	}
}

const psOutput = `{"Command":"\"nginx -g…\"","ID":"0123456789abcdef","Image":"nginx:1.27","Names":"web","Ports":"0.0.0.0:8080->80/tcp","Status":"Up 2 hours"}
{"ID":"fedcba987654","Image":"redis:7","Names":"cache","Ports":"127.0.0.1:6379->6379/tcp"}
{"ID": "broken", "Names":
{"ID":"aaaaaaaaaaaa","Image":"busybox","Names":"idle","Ports":""}
{"ID":"bbbbbbbbbbbb","Image":"coredns/coredns","Names":"dns,dns-alias","Ports":"0.0.0.0:53->53/udp"}
`

func TestParsePSSkipsMalformedLines(t *testing.T) {
	mappings, errs := ParsePS(strings.NewReader(psOutput))
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
	if !errors.Is(errs[0], ErrMalformedRecord) {
		t.Errorf("error %v is not ErrMalformedRecord", errs[0])
	}
	if len(mappings) != 3 {
		t.Fatalf("got %d mappings, want 3: %+v", len(mappings), mappings)
	}

	web := mappings[0]
	want := model.DockerMapping{
		Protocol:      model.TCP,
		HostIP:        "0.0.0.0",
		HostPort:      8080,
		ContainerID:   "0123456789ab",
		ContainerName: "web",
		Image:         "nginx:1.27",
		ContainerPort: 80,
	}
	if web != want {
		t.Errorf("web = %+v, want %+v", web, want)
	}
	if mappings[2].ContainerName != "dns" || mappings[2].Protocol != model.UDP {
		t.Errorf("dns = %+v", mappings[2])
	}
}

func TestParsePSCountsValidLines(t *testing.T) {
	valid := `{"ID":"a1","Image":"img","Names":"n1","Ports":"0.0.0.0:1001->1/tcp"}`
	for n := 0; n <= 5; n++ {
		lines := []string{"not json at all"}
		for i := 0; i < n; i++ {
			lines = append(lines, valid)
		}
		got, errs := ParsePS(strings.NewReader(strings.Join(lines, "\n")))
		if len(got) != n || len(errs) != 1 {
			t.Fatalf("n=%d: got %d mappings, %d errors", n, len(got), len(errs))
		}
	}
}

type recordedCall struct {
	name string
	args []string
}

func fakeCLI(out string, err error, calls *[]recordedCall) *CLIProvider {
	return &CLIProvider{binary: "docker", run: func(_ context.Context, name string, args ...string) ([]byte, error) {
		*calls = append(*calls, recordedCall{name, args})
		if err != nil {
			return nil, err
		}
		return []byte(out), nil
	}}
}

func TestCLIProviderMappings(t *testing.T) {
	var calls []recordedCall
	p := fakeCLI(psOutput, nil, &calls)
	mappings, err := p.Mappings(context.Background())
	if err != nil {
		t.Fatalf("Mappings: %v", err)
	}
	if len(mappings) != 3 {
		t.Fatalf("got %d mappings", len(mappings))
	}
	want := []string{"ps", "--format", "{{json .}}"}
	if len(calls) != 1 || !reflect.DeepEqual(calls[0].args, want) {
		t.Fatalf("calls = %+v", calls)
	}
}

func TestCLIProviderFailure(t *testing.T) {
	var calls []recordedCall
	p := fakeCLI("", errors.New("exec: \"docker\": executable file not found"), &calls)
	if _, err := p.Mappings(context.Background()); !errors.Is(err, ErrDaemonUnavailable) {
		t.Fatalf("err = %v, want ErrDaemonUnavailable", err)
	}
	if err := p.Probe(context.Background()); !errors.Is(err, ErrDaemonUnavailable) {
		t.Fatalf("probe err = %v, want ErrDaemonUnavailable", err)
	}
}

func TestCLIProviderControl(t *testing.T) {
	var calls []recordedCall
	p := fakeCLI("", nil, &calls)
	if err := p.Stop(context.Background(), "web"); err != nil {
		t.Fatal(err)
	}
	if err := p.Restart(context.Background(), "web"); err != nil {
		t.Fatal(err)
	}
	if calls[0].args[0] != "stop" || calls[1].args[0] != "restart" || calls[1].args[1] != "web" {
		t.Fatalf("calls = %+v", calls)
	}
}
