// Package display works out the device pixel ratio of the screen the editor
// runs on.
package display

import (
	"log"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/example/maskpaint/internal/coords"
)

// BaseDPI is the density at which one display pixel is one device pixel.
const BaseDPI = 96.0

// ScaleEnv overrides detection when set to a positive number.
const ScaleEnv = "MASKPAINT_SCALE"

var scaleEnvs = []string{ScaleEnv, "GDK_SCALE", "QT_SCALE_FACTOR"}

var (
	getenv    = os.Getenv
	screenDPI = probeScreenDPI
)

// Ratio returns the device pixel ratio. An explicit override above zero wins,
// then the scale environment variables, then the X11 screen density. The
// result is never below one.
func Ratio(override float64) float64 {
	if override > 0 {
		return coords.ClampDPR(override)
	}
	for _, name := range scaleEnvs {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f <= 0 {
				log.Printf("ignoring %s=%q", name, v)
				continue
			}
			return coords.ClampDPR(f)
		}
	}
	dpi, err := screenDPI()
	if err != nil {
		log.Printf("screen density unavailable: %v", err)
		return 1
	}
	return ratioFromDPI(dpi)
}

// ratioFromDPI converts a density to a ratio rounded to quarter steps.
func ratioFromDPI(dpi float64) float64 {
	if dpi <= 0 || math.IsNaN(dpi) || math.IsInf(dpi, 0) {
		return 1
	}
	return coords.ClampDPR(math.Round(dpi/BaseDPI*4) / 4)
}

// dpiFromGeometry returns dots per inch for a pixel extent over a physical
// extent in millimetres.
func dpiFromGeometry(px, mm int) float64 {
	if px <= 0 || mm <= 0 {
		return 0
	}
	return float64(px) / (float64(mm) / 25.4)
}
