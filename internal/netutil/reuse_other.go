//go:build !unix

package netutil

import "errors"

var errReuseUnsupported = errors.New("SO_REUSEADDR not supported on this platform")

func setReuseAddr(fd uintptr) error {
	return errReuseUnsupported
}

// ReuseAddrEnabled reports whether SO_REUSEADDR is set on fd.
func ReuseAddrEnabled(fd uintptr) (bool, error) {
	return false, errReuseUnsupported
}
