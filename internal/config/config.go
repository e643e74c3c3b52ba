package config

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"time"
)

// Brush holds the initial brush settings.
type Brush struct {
	Size  float64
	Color color.RGBA
}

// Notify selects which submission outcomes raise a desktop notification.
type Notify struct {
	Submit  bool
	Failure bool
}

// Config holds the application configuration.
type Config struct {
	Server    string
	TokenFile string
	Brush     Brush
	// Scale overrides the detected device pixel ratio when positive.
	Scale  float64
	Notify Notify
	// Timeout bounds one submission. Zero means no limit.
	Timeout time.Duration
}

// New creates a new Config with defaults.
func New() *Config {
	return &Config{
		Server: "http://127.0.0.1:8000",
		Brush: Brush{
			Size:  20,
			Color: color.RGBA{R: 255, A: 255},
		},
		Notify: Notify{
			Submit:  false,
			Failure: true,
		},
	}
}

// String implements fmt.Stringer and returns the configuration in RC format.
func (c *Config) String() string {
	var sb strings.Builder

	if c.Server != "" {
		fmt.Fprintf(&sb, "server = %s\n", c.Server)
	}
	if c.TokenFile != "" {
		fmt.Fprintf(&sb, "token_file = %s\n", c.TokenFile)
	}
	sb.WriteString("\n")

	sb.WriteString("[brush]\n")
	fmt.Fprintf(&sb, "size = %s\n", strconv.FormatFloat(c.Brush.Size, 'g', -1, 64))
	fmt.Fprintf(&sb, "color = %s\n", toHex(c.Brush.Color))
	sb.WriteString("\n")

	if c.Scale > 0 {
		sb.WriteString("[display]\n")
		fmt.Fprintf(&sb, "scale = %s\n", strconv.FormatFloat(c.Scale, 'g', -1, 64))
		sb.WriteString("\n")
	}

	sb.WriteString("[notify]\n")
	fmt.Fprintf(&sb, "submit = %v\n", c.Notify.Submit)
	fmt.Fprintf(&sb, "failure = %v\n", c.Notify.Failure)
	sb.WriteString("\n")

	sb.WriteString("[submit]\n")
	fmt.Fprintf(&sb, "timeout = %s\n", c.Timeout)

	return sb.String()
}

func toHex(c color.RGBA) string {
	if c.A == 255 {
		return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02X%02X%02X%02X", c.R, c.G, c.B, c.A)
}
