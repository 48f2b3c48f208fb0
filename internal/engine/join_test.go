package engine

import (
	"reflect"
	"testing"

	"github.com/portwatch/portwatch/pkg/model"
)

var names = NamerFunc(func(pid int) string {
	switch pid {
	case 4242:
		return "python3"
	case 77:
		return "docker-proxy"
	}
	return ""
})

func usedView(from, to int) model.View {
	return model.View{From: from, To: to, OnlyUsed: true}
}

func TestJoinEndToEnd8080(t *testing.T) {
	records := []model.PortRecord{
		{Protocol: model.TCP, LocalPort: 8080, LocalAddr: "0.0.0.0:8080", State: model.StateListen, PID: 4242},
	}
	mappings := []model.DockerMapping{{
		Protocol: model.TCP, HostIP: "0.0.0.0", HostPort: 8080,
		ContainerID: "abc123def456", ContainerName: "web", Image: "nginx", ContainerPort: 80,
	}}

	rows := Join(records, mappings, names, usedView(8000, 9000))
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1: %+v", len(rows), rows)
	}
	r := rows[0]
	if r.LocalPort != 8080 || r.Process != "python3" || r.ContainerName != "web" || r.Image != "nginx" || r.ContainerPort != 80 {
		t.Errorf("row = %+v", r)
	}
}

func TestJoinMatchesOnProtocolAndPort(t *testing.T) {
	records := []model.PortRecord{
		{Protocol: model.TCP, LocalPort: 53, State: model.StateListen, PID: 1},
		{Protocol: model.UDP, LocalPort: 53, PID: 1},
		{Protocol: model.TCP, LocalPort: 80, State: model.StateListen, PID: 2},
	}
	mappings := []model.DockerMapping{
		{Protocol: model.UDP, HostPort: 53, ContainerID: "dns", ContainerName: "dns"},
		{Protocol: model.UDP, HostPort: 80, ContainerID: "q", ContainerName: "quic"},
	}

	rows := Join(records, mappings, names, usedView(1, 1024))
	got := map[model.PortKey]string{}
	for _, r := range rows {
		got[r.Key()] = r.ContainerName
	}
	want := map[model.PortKey]string{
		{Protocol: model.TCP, Port: 53}: "",
		{Protocol: model.UDP, Port: 53}: "dns",
		{Protocol: model.TCP, Port: 80}: "",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("joined containers = %v, want %v", got, want)
	}
}

func TestJoinEveryRowMatchesOrIsEmpty(t *testing.T) {
	records := []model.PortRecord{
		{Protocol: model.TCP, LocalPort: 22, PID: 1},
		{Protocol: model.TCP, LocalPort: 443, PID: 2},
		{Protocol: model.UDP, LocalPort: 443, PID: 3},
		{Protocol: model.UDP, LocalPort: 5353, PID: 4},
	}
	mappings := []model.DockerMapping{
		{Protocol: model.TCP, HostPort: 443, ContainerID: "a", ContainerName: "proxy", Image: "traefik"},
		{Protocol: model.UDP, HostPort: 9999, ContainerID: "b", ContainerName: "unused"},
	}
	keys := map[model.PortKey]bool{}
	for _, m := range mappings {
		keys[m.Key()] = true
	}

	for _, r := range Join(records, mappings, names, model.View{From: 0, To: 65535, OnlyUsed: true}) {
		if keys[r.Key()] {
			if !r.HasContainer() {
				t.Errorf("%s: mapping exists but row has no container", r.Key())
			}
			continue
		}
		if r.HasContainer() || r.Image != "" || r.ContainerPort != 0 {
			t.Errorf("%s: no mapping but row carries container fields: %+v", r.Key(), r)
		}
	}
}

func TestJoinCollisionPolicy(t *testing.T) {
	records := []model.PortRecord{{Protocol: model.TCP, LocalPort: 8080, State: model.StateListen, PID: 77}}
	mappings := []model.DockerMapping{
		{Protocol: model.TCP, HostIP: "0.0.0.0", HostPort: 8080, ContainerID: "bbb", ContainerName: "zeta"},
		{Protocol: model.TCP, HostIP: "::", HostPort: 8080, ContainerID: "aaa", ContainerName: "alpha"},
		{Protocol: model.TCP, HostIP: "0.0.0.0", HostPort: 8080, ContainerID: "aaa", ContainerName: "alpha"},
	}

	a := Join(records, mappings, names, usedView(1, 65535))
	reversed := []model.DockerMapping{mappings[2], mappings[1], mappings[0]}
	b := Join(records, reversed, names, usedView(1, 65535))

	if !reflect.DeepEqual(a, b) {
		t.Fatalf("join depends on mapping order:\n%+v\n%+v", a, b)
	}
	if len(a) != 1 {
		t.Fatalf("got %d rows, want 1", len(a))
	}
	if a[0].ContainerName != "alpha" || a[0].ExtraMappings != 1 {
		t.Errorf("primary = %q extra = %d, want alpha +1", a[0].ContainerName, a[0].ExtraMappings)
	}
	if got := a[0].ContainerLabel(); got != "alpha (+1)" {
		t.Errorf("ContainerLabel = %q", got)
	}
}

func TestJoinDedupePrefersListener(t *testing.T) {
	records := []model.PortRecord{
		{Protocol: model.TCP, LocalPort: 5432, LocalAddr: "127.0.0.1:5432", RemoteAddr: "127.0.0.1:40000", State: model.StateEstablished, PID: 9},
		{Protocol: model.TCP, LocalPort: 5432, LocalAddr: "0.0.0.0:5432", State: model.StateListen, PID: 9},
		{Protocol: model.TCP, LocalPort: 5432, LocalAddr: "127.0.0.1:5432", State: model.StateEstablished, PID: 9},
	}
	rows := Join(records, nil, names, usedView(1, 65535))
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].State != model.StateListen || rows[0].LocalAddr != "0.0.0.0:5432" {
		t.Errorf("kept %+v, want the listener", rows[0].PortRecord)
	}
}

func TestJoinFreeRows(t *testing.T) {
	records := []model.PortRecord{{Protocol: model.TCP, LocalPort: 81, State: model.StateListen, PID: 1}}
	view := model.View{From: 80, To: 82, Protocols: []model.Protocol{model.TCP}}

	rows := Join(records, nil, names, view)
	var states []string
	var ports []int
	for _, r := range rows {
		states = append(states, r.State)
		ports = append(ports, r.LocalPort)
	}
	if !reflect.DeepEqual(ports, []int{80, 81, 82}) {
		t.Errorf("ports = %v", ports)
	}
	if !reflect.DeepEqual(states, []string{model.StateFree, model.StateListen, model.StateFree}) {
		t.Errorf("states = %v", states)
	}
	if rows[0].Process != "" || rows[0].PID != 0 {
		t.Errorf("free row has an owner: %+v", rows[0])
	}
}

func TestJoinFreeRowCarriesMapping(t *testing.T) {
	mappings := []model.DockerMapping{{Protocol: model.UDP, HostPort: 69, ContainerID: "t", ContainerName: "tftp"}}
	rows := Join(nil, mappings, names, model.View{From: 69, To: 69})
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want TCP and UDP", len(rows))
	}
	if rows[0].Protocol != model.TCP || rows[0].HasContainer() {
		t.Errorf("first row = %+v", rows[0])
	}
	if rows[1].Protocol != model.UDP || rows[1].ContainerName != "tftp" || !rows[1].IsFree() {
		t.Errorf("second row = %+v", rows[1])
	}
}

func TestJoinOnlyDocker(t *testing.T) {
	records := []model.PortRecord{
		{Protocol: model.TCP, LocalPort: 22, PID: 1},
		{Protocol: model.TCP, LocalPort: 8080, PID: 77},
	}
	mappings := []model.DockerMapping{{Protocol: model.TCP, HostPort: 8080, ContainerID: "w", ContainerName: "web"}}
	rows := Join(records, mappings, names, model.View{From: 1, To: 9000, OnlyDocker: true})
	if len(rows) != 1 || rows[0].LocalPort != 8080 {
		t.Errorf("rows = %+v", rows)
	}
}

func TestJoinOrderAndRange(t *testing.T) {
	records := []model.PortRecord{
		{Protocol: model.UDP, LocalPort: 53},
		{Protocol: model.TCP, LocalPort: 8080},
		{Protocol: model.TCP, LocalPort: 22},
		{Protocol: model.UDP, LocalPort: 5353},
		{Protocol: model.TCP, LocalPort: 10000},
	}
	// reversed bounds are swapped
	rows := Join(records, nil, names, usedView(6000, 1))
	var got []string
	for _, r := range rows {
		got = append(got, r.Key().String())
	}
	want := []string{"22/tcp", "53/udp", "5353/udp"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestJoinProtocolFilter(t *testing.T) {
	records := []model.PortRecord{
		{Protocol: model.TCP, LocalPort: 80},
		{Protocol: model.UDP, LocalPort: 80},
	}
	v := usedView(1, 100)
	v.Protocols = []model.Protocol{model.UDP}
	rows := Join(records, nil, names, v)
	if len(rows) != 1 || rows[0].Protocol != model.UDP {
		t.Errorf("rows = %+v", rows)
	}
}

func TestJoinDoesNotMutateInputs(t *testing.T) {
	mappings := []model.DockerMapping{
		{Protocol: model.TCP, HostPort: 80, ContainerID: "z", ContainerName: "z"},
		{Protocol: model.TCP, HostPort: 80, ContainerID: "a", ContainerName: "a"},
	}
	before := append([]model.DockerMapping(nil), mappings...)
	Join([]model.PortRecord{{Protocol: model.TCP, LocalPort: 80}}, mappings, names, usedView(1, 100))
	if !reflect.DeepEqual(before, mappings) {
		t.Errorf("mappings reordered: %+v", mappings)
	}
}
