//go:build linux || freebsd || openbsd || netbsd || dragonfly

package display

import (
	"errors"
	"fmt"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/randr"
	"github.com/jezek/xgb/xproto"
)

var errNoGeometry = errors.New("screen reports no physical size")

// probeScreenDPI asks the X server for the primary output density, falling
// back to the core screen geometry when RandR is unavailable.
func probeScreenDPI() (float64, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return 0, fmt.Errorf("connect X server: %w", err)
	}
	defer conn.Close()

	setup := xproto.Setup(conn)
	if setup == nil {
		return 0, fmt.Errorf("xproto setup unavailable")
	}
	screen := setup.DefaultScreen(conn)
	if screen == nil {
		return 0, fmt.Errorf("xproto screen unavailable")
	}
	if dpi, err := primaryOutputDPI(conn, screen.Root); err == nil {
		return dpi, nil
	}
	if dpi := dpiFromGeometry(int(screen.WidthInPixels), int(screen.WidthInMillimeters)); dpi > 0 {
		return dpi, nil
	}
	return 0, errNoGeometry
}

func primaryOutputDPI(conn *xgb.Conn, root xproto.Window) (float64, error) {
	if err := randr.Init(conn); err != nil {
		return 0, fmt.Errorf("init randr: %w", err)
	}
	res, err := randr.GetScreenResources(conn, root).Reply()
	if err != nil {
		return 0, fmt.Errorf("randr screen resources: %w", err)
	}
	outputs := res.Outputs
	if primary, err := randr.GetOutputPrimary(conn, root).Reply(); err == nil && primary.Output != 0 {
		outputs = append([]randr.Output{primary.Output}, outputs...)
	}
	for _, output := range outputs {
		info, err := randr.GetOutputInfo(conn, output, res.ConfigTimestamp).Reply()
		if err != nil || info.Connection != randr.ConnectionConnected || info.Crtc == 0 {
			continue
		}
		crtc, err := randr.GetCrtcInfo(conn, info.Crtc, res.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}
		if dpi := dpiFromGeometry(int(crtc.Width), int(info.MmWidth)); dpi > 0 {
			return dpi, nil
		}
	}
	return 0, errNoGeometry
}
