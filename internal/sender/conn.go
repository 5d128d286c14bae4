package sender

import (
	"context"
	"net"

	"github.com/zsiec/flowprobe/internal/netutil"
)

// Conn is the outbound side of a probe socket.
type Conn interface {
	Write(b []byte) (int, error)
	Close() error
}

// Marker is implemented by connections that can carry a priority marking.
type Marker interface {
	SetTrafficClass(tos int) error
}

// Dialer opens the outbound socket for a run.
type Dialer func(ctx context.Context, raddr *net.UDPAddr) (Conn, error)

type udpConn struct {
	*net.UDPConn
}

func (c udpConn) SetTrafficClass(tos int) error {
	return netutil.SetTrafficClass(c.UDPConn, tos)
}

func (s *Sender) dialUDP(ctx context.Context, raddr *net.UDPAddr) (Conn, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "udp", raddr.String())
	if err != nil {
		return nil, err
	}
	conn := c.(*net.UDPConn)

	if s.cfg.WriteBufferSize > 0 {
		if err := conn.SetWriteBuffer(s.cfg.WriteBufferSize); err != nil {
			s.logger.WithError(err).Warn("Failed to set UDP write buffer size")
		}
	}
	return udpConn{conn}, nil
}
