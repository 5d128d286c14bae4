package netutil

import (
	"context"
	"fmt"
	"net"
	"syscall"
)

// ListenUDP binds a UDP socket on addr. With reuseAddr set, SO_REUSEADDR is
// requested before bind; failure to set it is handed to onReuseErr and the
// bind proceeds without it.
func ListenUDP(ctx context.Context, addr string, reuseAddr bool, onReuseErr func(error)) (*net.UDPConn, error) {
	lc := net.ListenConfig{}
	if reuseAddr {
		lc.Control = func(network, address string, c syscall.RawConn) error {
			var optErr error
			if err := c.Control(func(fd uintptr) {
				optErr = setReuseAddr(fd)
			}); err != nil {
				optErr = err
			}
			if optErr != nil && onReuseErr != nil {
				onReuseErr(optErr)
			}
			return nil
		}
	}

	pc, err := lc.ListenPacket(ctx, "udp", addr)
	if err != nil {
		return nil, err
	}

	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, fmt.Errorf("unexpected packet conn type %T", pc)
	}
	return conn, nil
}
