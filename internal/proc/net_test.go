package proc

import (
	"syscall"
	"testing"

	"github.com/portwatch/portwatch/pkg/model"
	gnet "github.com/shirou/gopsutil/v4/net"
)

func TestFromConnectionStat(t *testing.T) {
	cases := []struct {
		name string
		in   gnet.ConnectionStat
		want model.PortRecord
		ok   bool
	}{
		{
			name: "tcp listener",
			in: gnet.ConnectionStat{
				Type:   syscall.SOCK_STREAM,
				Laddr:  gnet.Addr{IP: "0.0.0.0", Port: 8080},
				Status: "LISTEN",
				Pid:    4242,
			},
			want: model.PortRecord{Protocol: model.TCP, LocalPort: 8080, LocalAddr: "0.0.0.0:8080", State: "LISTEN", PID: 4242},
			ok:   true,
		},
		{
			name: "udp without state",
			in: gnet.ConnectionStat{
				Type:   syscall.SOCK_DGRAM,
				Laddr:  gnet.Addr{IP: "::", Port: 5353},
				Status: "NONE",
			},
			want: model.PortRecord{Protocol: model.UDP, LocalPort: 5353, LocalAddr: "[::]:5353"},
			ok:   true,
		},
		{
			name: "established with remote",
			in: gnet.ConnectionStat{
				Type:   syscall.SOCK_STREAM,
				Laddr:  gnet.Addr{IP: "10.0.0.2", Port: 50123},
				Raddr:  gnet.Addr{IP: "1.1.1.1", Port: 443},
				Status: "ESTABLISHED",
				Pid:    -1,
			},
			want: model.PortRecord{Protocol: model.TCP, LocalPort: 50123, LocalAddr: "10.0.0.2:50123", RemoteAddr: "1.1.1.1:443", State: "ESTABLISHED"},
			ok:   true,
		},
		{
			name: "no local address",
			in:   gnet.ConnectionStat{Type: syscall.SOCK_STREAM},
			ok:   false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := fromConnectionStat(tc.in)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}
