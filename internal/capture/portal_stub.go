//go:build !(linux || freebsd || openbsd || netbsd || dragonfly)

package capture

import "fmt"

func portalScreenshot(bool) ([]byte, error) {
	return nil, fmt.Errorf("portal screenshot is not supported on this platform")
}
