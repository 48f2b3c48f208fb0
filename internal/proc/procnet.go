package proc

import (
	"bufio"
	"context"
	"encoding/hex"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/portwatch/portwatch/pkg/model"
)

// readProcNet parses the kernel socket tables under root (normally /proc)
// and attributes sockets to pids through /proc/<pid>/fd links.
func readProcNet(ctx context.Context, root string) ([]model.PortRecord, error) {
	inodes := socketOwners(ctx, root)

	var records []model.PortRecord
	var firstErr error
	tables := []struct {
		file  string
		proto model.Protocol
		ipv6  bool
	}{
		{"tcp", model.TCP, false},
		{"tcp6", model.TCP, true},
		{"udp", model.UDP, false},
		{"udp6", model.UDP, true},
	}
	opened := 0
	for _, t := range tables {
		f, err := os.Open(filepath.Join(root, "net", t.file))
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		opened++
		records = append(records, parseProcNet(f, t.proto, t.ipv6, inodes)...)
		f.Close()
	}
	if opened == 0 {
		return nil, firstErr
	}
	return records, nil
}

// socketOwners maps socket inodes to the pid holding them. Directories the
// caller may not read are skipped, which leaves those sockets without a pid.
func socketOwners(ctx context.Context, root string) map[string]int {
	owners := make(map[string]int)
	entries, err := os.ReadDir(root)
	if err != nil {
		return owners
	}
	for _, e := range entries {
		if ctx.Err() != nil {
			return owners
		}
		if !e.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}

		fdDir := filepath.Join(root, e.Name(), "fd")
		fds, err := os.ReadDir(fdDir)
		if err != nil {
			continue
		}
		for _, fd := range fds {
			link, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
			if err != nil {
				continue
			}
			if strings.HasPrefix(link, "socket:[") && strings.HasSuffix(link, "]") {
				inode := link[len("socket:[") : len(link)-1]
				if _, seen := owners[inode]; !seen {
					owners[inode] = pid
				}
			}
		}
	}
	return owners
}

func parseProcNet(r io.Reader, proto model.Protocol, ipv6 bool, owners map[string]int) []model.PortRecord {
	var records []model.PortRecord

	scanner := bufio.NewScanner(r)
	scanner.Scan() // header

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 10 {
			continue
		}

		localIP, localPort, ok := parseHexAddr(fields[1], ipv6)
		if !ok {
			continue
		}
		rec := model.PortRecord{
			Protocol:  proto,
			LocalPort: localPort,
			LocalAddr: joinAddr(localIP, localPort),
			PID:       owners[fields[9]],
		}

		if remoteIP, remotePort, ok := parseHexAddr(fields[2], ipv6); ok && remotePort != 0 {
			rec.RemoteAddr = joinAddr(remoteIP, remotePort)
		}
		if proto == model.TCP {
			if v, err := strconv.ParseInt(fields[3], 16, 32); err == nil {
				rec.State = tcpStateName(int(v))
			}
		}
		records = append(records, rec)
	}
	return records
}

// parseHexAddr decodes "0100007F:1F90" style addresses. The kernel prints
// each 32-bit word of the address in host (little-endian) order.
func parseHexAddr(raw string, ipv6 bool) (string, int, bool) {
	ipHex, portHex, found := strings.Cut(raw, ":")
	if !found {
		return "", 0, false
	}
	port, err := strconv.ParseUint(portHex, 16, 16)
	if err != nil {
		return "", 0, false
	}
	b, err := hex.DecodeString(ipHex)
	if err != nil {
		return "", 0, false
	}

	size := net.IPv4len
	if ipv6 {
		size = net.IPv6len
	}
	if len(b) != size {
		return "", 0, false
	}
	ip := make(net.IP, size)
	for word := 0; word < size/4; word++ {
		for i := 0; i < 4; i++ {
			ip[word*4+i] = b[word*4+3-i]
		}
	}
	return ip.String(), int(port), true
}
