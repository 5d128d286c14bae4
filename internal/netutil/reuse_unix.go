//go:build unix

package netutil

import "golang.org/x/sys/unix"

func setReuseAddr(fd uintptr) error {
	return unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
}

// ReuseAddrEnabled reports whether SO_REUSEADDR is set on fd.
func ReuseAddrEnabled(fd uintptr) (bool, error) {
	v, err := unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}
