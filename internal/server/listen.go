package server

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
)

// ListenInRange binds the first free TCP port from address's port up to
// port+span inclusive. Port 0 binds an ephemeral port and ignores span.
func ListenInRange(address string, span int) (net.Listener, error) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return nil, fmt.Errorf("parse address %q: %w", address, err)
	}
	base, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("parse port %q: %w", portStr, err)
	}
	if base == 0 || span < 0 {
		span = 0
	}

	var lastErr error
	for port := base; port <= base+span && port <= 65535; port++ {
		lis, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err == nil {
			return lis, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("no free port in %d-%d: %w", base, base+span, lastErr)
}

// ListenerPort returns the TCP port lis is bound to.
func ListenerPort(lis net.Listener) int {
	if addr, ok := lis.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}
