package source

import (
	"strings"
	"testing"

	"github.com/portwatch/portwatch/pkg/model"
)

func TestRuntime(t *testing.T) {
	cases := map[string]string{
		"docker-proxy":            "docker",
		"DOCKERD":                 "docker",
		"containerd-shim-runc-v2": "containerd",
		"com.docker.backend":      "docker desktop",
		"com.docker.build":        "docker desktop",
		"vpnkit.exe":              "docker desktop",
		"nginx":                   "",
		"":                        "",
	}
	for name, want := range cases {
		if got := Runtime(name); got != want {
			t.Errorf("Runtime(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestKillWarning(t *testing.T) {
	proxy := model.DisplayRow{Process: "docker-proxy"}
	if w := KillWarning(proxy, nil); !strings.Contains(w, "container engine") {
		t.Errorf("docker-proxy warning = %q", w)
	}

	published := model.DisplayRow{Process: "nginx", ContainerName: "web", ContainerID: "abc"}
	if w := KillWarning(published, nil); !strings.Contains(w, "web") {
		t.Errorf("container warning = %q", w)
	}

	child := model.DisplayRow{Process: "node"}
	chain := []model.ProcessInfo{{Name: "systemd"}, {Name: "containerd-shim-runc-v2"}, {Name: "node"}}
	if w := KillWarning(child, chain); !strings.Contains(w, "containerd") {
		t.Errorf("ancestry warning = %q", w)
	}

	if w := KillWarning(model.DisplayRow{Process: "python3"}, nil); w != "" {
		t.Errorf("plain process warning = %q", w)
	}
}
