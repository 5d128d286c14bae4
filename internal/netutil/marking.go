// Package netutil applies the socket options the probe depends on: priority
// marking on the sending side and address reuse on the receiving side.
package netutil

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// TOS values understood by the CLI policies.
const (
	TOSDefault = 0x00
	// TOSLowDelay is the legacy IPTOS_LOWDELAY bit, matched by tc filters
	// that prioritise the control flow.
	TOSLowDelay = 0x10
)

// SetTrafficClass marks outbound datagrams on conn with tos. IPv4 sockets
// get IP_TOS, IPv6 sockets the IPv6 traffic class.
func SetTrafficClass(conn *net.UDPConn, tos int) error {
	if tos < 0 || tos > 0xff {
		return fmt.Errorf("traffic class out of range: %d", tos)
	}

	local, _ := conn.LocalAddr().(*net.UDPAddr)
	if local != nil && local.IP.To4() == nil && !local.IP.IsUnspecified() {
		if err := ipv6.NewConn(conn).SetTrafficClass(tos); err != nil {
			return fmt.Errorf("failed to set IPv6 traffic class: %w", err)
		}
		return nil
	}

	if err := ipv4.NewConn(conn).SetTOS(tos); err != nil {
		return fmt.Errorf("failed to set IP_TOS: %w", err)
	}
	return nil
}

// TrafficClass reads back the marking currently applied to conn.
func TrafficClass(conn *net.UDPConn) (int, error) {
	local, _ := conn.LocalAddr().(*net.UDPAddr)
	if local != nil && local.IP.To4() == nil && !local.IP.IsUnspecified() {
		return ipv6.NewConn(conn).TrafficClass()
	}
	return ipv4.NewConn(conn).TOS()
}
