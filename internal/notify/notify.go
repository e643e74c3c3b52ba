// Package notify raises desktop notifications for submission outcomes.
package notify

import (
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"strings"
	"time"

	"github.com/example/maskpaint/internal/platform"
)

// Event identifies a notification trigger.
type Event string

const (
	// EventSubmit fires when the server accepted a submission.
	EventSubmit Event = "submit"
	// EventFailure fires when a submission failed.
	EventFailure Event = "failure"
)

// EventPreference describes formatting for a notification event.
type EventPreference struct {
	Template string
	Urgency  platform.Urgency
}

// Preferences describes notification behaviour loaded from configuration.
type Preferences struct {
	Title   string
	Timeout time.Duration
	Events  map[Event]EventPreference
}

// DefaultPreferences returns the default notification settings.
func DefaultPreferences() Preferences {
	return Preferences{
		Title:   "maskpaint",
		Timeout: 5 * time.Second,
		Events: map[Event]EventPreference{
			EventSubmit:  {Template: "Submitted %s", Urgency: platform.UrgencyNormal},
			EventFailure: {Template: "Submission failed: %s", Urgency: platform.UrgencyCritical},
		},
	}
}

var getenv = os.Getenv

// LoadPreferences applies environment overrides to the defaults.
func LoadPreferences() Preferences {
	prefs := DefaultPreferences()
	if v := strings.TrimSpace(getenv("MASKPAINT_NOTIFY_TITLE")); v != "" {
		prefs.Title = v
	}
	apply := func(key string, event Event) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			p := prefs.Events[event]
			p.Template = v
			prefs.Events[event] = p
		}
	}
	apply("MASKPAINT_NOTIFY_SUBMIT_TEXT", EventSubmit)
	apply("MASKPAINT_NOTIFY_FAILURE_TEXT", EventFailure)
	return prefs
}

var send = platform.Notify

// Notifier sends OS-level notifications based on the configured preferences.
type Notifier struct {
	prefs   Preferences
	enabled map[Event]bool
}

// New creates a new Notifier using the provided preferences. Every event
// starts disabled.
func New(prefs Preferences) *Notifier {
	cloned := Preferences{Title: prefs.Title, Timeout: prefs.Timeout, Events: make(map[Event]EventPreference, len(prefs.Events))}
	for k, v := range prefs.Events {
		cloned.Events[k] = v
	}
	return &Notifier{prefs: cloned, enabled: make(map[Event]bool)}
}

// Enable toggles the notifier for the provided event.
func (n *Notifier) Enable(event Event, enabled bool) {
	if n == nil {
		return
	}
	n.enabled[event] = enabled
}

// Submitted reports an accepted submission. preview, when set, is shown as
// the notification icon.
func (n *Notifier) Submitted(detail string, preview image.Image) {
	if !n.enabledFor(EventSubmit) {
		return
	}
	opts := n.options(EventSubmit)
	if preview != nil {
		if path, cleanup, err := createPreview(preview); err != nil {
			log.Printf("notification preview: %v", err)
		} else {
			defer cleanup()
			opts.IconPath = path
		}
	}
	n.dispatch(EventSubmit, detail, opts)
}

// Failed reports a failed submission.
func (n *Notifier) Failed(err error) {
	if err == nil || !n.enabledFor(EventFailure) {
		return
	}
	n.dispatch(EventFailure, err.Error(), n.options(EventFailure))
}

func (n *Notifier) enabledFor(event Event) bool {
	return n != nil && n.enabled[event]
}

func (n *Notifier) options(event Event) platform.Options {
	return platform.Options{
		AppName: n.prefs.Title,
		Urgency: n.prefs.Events[event].Urgency,
		Timeout: n.prefs.Timeout,
	}
}

func (n *Notifier) dispatch(event Event, detail string, opts platform.Options) {
	template := strings.TrimSpace(n.prefs.Events[event].Template)
	if template == "" {
		return
	}
	body := strings.TrimSpace(fmt.Sprintf(template, strings.TrimSpace(detail)))
	if body == "" {
		return
	}
	if err := send(n.prefs.Title, body, opts); err != nil {
		log.Printf("notification %s: %v", event, err)
	}
}

func createPreview(img image.Image) (string, func(), error) {
	f, err := os.CreateTemp("", "maskpaint-preview-*.png")
	if err != nil {
		return "", nil, err
	}
	path := f.Name()
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", nil, err
	}
	cleanup := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("remove preview: %v", err)
		}
	}
	return path, cleanup, nil
}
