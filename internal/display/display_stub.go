//go:build !(linux || freebsd || openbsd || netbsd || dragonfly)

package display

import "errors"

func probeScreenDPI() (float64, error) {
	return 0, errors.New("screen density detection is not supported on this platform")
}
