package platform

import "time"

// Urgency follows the freedesktop notification levels.
type Urgency byte

const (
	UrgencyLow Urgency = iota
	UrgencyNormal
	UrgencyCritical
)

// Options configures how a notification is displayed on the host platform.
type Options struct {
	AppName string
	// IconPath, when non-empty, points to an image shown with the
	// notification where the platform supports it.
	IconPath string
	Urgency  Urgency
	// Timeout is how long the notification stays up. Zero lets the server
	// decide.
	Timeout time.Duration
}

func (o Options) appName() string {
	if o.AppName == "" {
		return "maskpaint"
	}
	return o.AppName
}
