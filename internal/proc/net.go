package proc

import (
	"context"
	"net"
	"strconv"
	"syscall"

	"github.com/portwatch/portwatch/pkg/model"
	gnet "github.com/shirou/gopsutil/v4/net"
)

func readConnections(ctx context.Context) ([]model.PortRecord, error) {
	conns, err := gnet.ConnectionsWithContext(ctx, "inet")
	if err != nil {
		return nil, err
	}
	records := make([]model.PortRecord, 0, len(conns))
	for _, c := range conns {
		if r, ok := fromConnectionStat(c); ok {
			records = append(records, r)
		}
	}
	return records, nil
}

func fromConnectionStat(c gnet.ConnectionStat) (model.PortRecord, bool) {
	if c.Laddr.IP == "" && c.Laddr.Port == 0 {
		return model.PortRecord{}, false
	}

	proto := model.TCP
	if c.Type == syscall.SOCK_DGRAM {
		proto = model.UDP
	}

	state := c.Status
	// gopsutil reports "NONE" for sockets without a state (UDP)
	if state == "NONE" {
		state = ""
	}

	r := model.PortRecord{
		Protocol:  proto,
		LocalPort: int(c.Laddr.Port),
		LocalAddr: joinAddr(c.Laddr.IP, int(c.Laddr.Port)),
		State:     state,
	}
	if c.Raddr.IP != "" || c.Raddr.Port != 0 {
		r.RemoteAddr = joinAddr(c.Raddr.IP, int(c.Raddr.Port))
	}
	if c.Pid > 0 {
		r.PID = int(c.Pid)
	}
	return r, true
}

func joinAddr(ip string, port int) string {
	if ip == "" {
		ip = "*"
	}
	return net.JoinHostPort(ip, strconv.Itoa(port))
}
