package model

import (
	"strconv"
	"strings"
)

// Protocol is the transport protocol of a socket or a published port.
type Protocol string

const (
	TCP Protocol = "TCP"
	UDP Protocol = "UDP"
)

// ParseProtocol accepts "tcp", "TCP", "udp6" and similar spellings.
func ParseProtocol(s string) (Protocol, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(s, "TCP"):
		return TCP, true
	case strings.HasPrefix(s, "UDP"):
		return UDP, true
	}
	return "", false
}

// Socket states as reported by the OS. UDP sockets usually report none.
const (
	StateListen      = "LISTEN"
	StateEstablished = "ESTABLISHED"
	StateFree        = "FREE"
)

// PortKey joins socket records with published container ports.
type PortKey struct {
	Protocol Protocol
	Port     int
}

func (k PortKey) String() string {
	return strconv.Itoa(k.Port) + "/" + strings.ToLower(string(k.Protocol))
}

// PortRecord is one entry of the OS socket table.
type PortRecord struct {
	Protocol   Protocol `json:"protocol"`
	LocalPort  int      `json:"localPort"`
	LocalAddr  string   `json:"localAddr"`
	RemoteAddr string   `json:"remoteAddr,omitempty"`
	State      string   `json:"state,omitempty"`
	PID        int      `json:"pid,omitempty"`
}

func (r PortRecord) Key() PortKey {
	return PortKey{Protocol: r.Protocol, Port: r.LocalPort}
}
