package source

import (
	"strings"

	"github.com/portwatch/portwatch/pkg/model"
)

// knownRuntimes are processes that publish container ports on the host or
// host the container engine itself. Killing one of them can take down every
// container, not just the one behind the selected port.
var knownRuntimes = map[string]string{
	"docker-proxy":       "docker",
	"dockerd":            "docker",
	"docker":             "docker",
	"com.docker.backend": "docker desktop",
	"com.docker.vpnkit":  "docker desktop",
	"com.docker.vmnetd":  "docker desktop",
	"docker desktop":     "docker desktop",
	"vpnkit":             "docker desktop",
	"containerd":         "containerd",
	"containerd-shim":    "containerd",
	"rootlesskit":        "rootless docker",
	"slirp4netns":        "rootless docker",
	"podman":             "podman",
	"conmon":             "podman",
	"gvproxy":            "podman machine",
	"wslrelay":           "wsl",
}

// Runtime returns the container runtime a process name belongs to, or "".
func Runtime(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return ""
	}
	n = strings.TrimSuffix(n, ".exe")
	if label, ok := knownRuntimes[n]; ok {
		return label
	}
	// containerd-shim-runc-v2 and friends
	if strings.HasPrefix(n, "containerd-shim") {
		return "containerd"
	}
	if strings.Contains(n, "com.docker") {
		return "docker desktop"
	}
	return ""
}

// KillWarning explains why terminating the owner of row is risky, or returns
// "" when nothing suggests it.
func KillWarning(row model.DisplayRow, ancestry []model.ProcessInfo) string {
	if label := Runtime(row.Process); label != "" {
		return "This port is held by " + row.Process + " (" + label + "). Terminating it may stop the whole container engine."
	}
	if row.HasContainer() {
		return "This port is published by container " + row.ContainerName + ". Prefer stopping the container."
	}
	for _, p := range ancestry {
		if label := Runtime(p.Name); label != "" {
			return "This process runs under " + p.Name + " (" + label + ")."
		}
	}
	return ""
}
