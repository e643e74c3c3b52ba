package input

import (
	"unicode"

	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/mouse"

	"github.com/example/maskpaint/internal/coords"
)

// FromMouse converts a window mouse event, in device pixels, to a pointer
// event in client coordinates. Wheel steps report false.
func FromMouse(e mouse.Event, dpr float64) (PointerEvent, bool) {
	r := coords.ClampDPR(dpr)
	ev := PointerEvent{
		ClientX: float64(e.X) / r,
		ClientY: float64(e.Y) / r,
		Button:  ButtonNone,
	}
	switch e.Direction {
	case mouse.DirPress:
		ev.Kind = Down
	case mouse.DirRelease:
		ev.Kind = Up
	case mouse.DirNone:
		ev.Kind = Move
	default:
		return PointerEvent{}, false
	}
	switch e.Button {
	case mouse.ButtonLeft:
		ev.Button = ButtonPrimary
	case mouse.ButtonMiddle:
		ev.Button = ButtonAuxiliary
	case mouse.ButtonRight:
		ev.Button = ButtonSecondary
	case mouse.ButtonNone:
	default:
		if e.Button.IsWheel() {
			return PointerEvent{}, false
		}
	}
	return ev, true
}

// Action is an editor command bound to a key.
type Action int

const (
	ActionNone Action = iota
	ActionBrush
	ActionEraser
	ActionUndo
	ActionRedo
	ActionClose
	ActionClear
	ActionSubmit
	ActionCopy
	ActionReload
)

var actionNames = map[Action]string{
	ActionNone:   "none",
	ActionBrush:  "brush",
	ActionEraser: "eraser",
	ActionUndo:   "undo",
	ActionRedo:   "redo",
	ActionClose:  "close",
	ActionClear:  "clear",
	ActionSubmit: "submit",
	ActionCopy:   "copy",
	ActionReload: "reload",
}

func (a Action) String() string { return actionNames[a] }

// Shortcut resolves a key press to an action. Key releases resolve to
// ActionNone.
func Shortcut(e key.Event) Action {
	if e.Direction == key.DirRelease {
		return ActionNone
	}
	cmd := e.Modifiers&(key.ModControl|key.ModMeta) != 0
	shift := e.Modifiers&key.ModShift != 0
	switch e.Code {
	case key.CodeEscape:
		return ActionClose
	case key.CodeReturnEnter:
		return ActionSubmit
	case key.CodeDeleteBackspace, key.CodeDeleteForward:
		return ActionClear
	}
	r := unicode.ToLower(e.Rune)
	if r == 0 || r == -1 {
		r = codeRune(e.Code)
	}
	switch {
	case cmd && r == 'z' && shift:
		return ActionRedo
	case cmd && r == 'z':
		return ActionUndo
	case cmd && r == 'c':
		return ActionCopy
	case cmd:
		return ActionNone
	case r == 'b':
		return ActionBrush
	case r == 'e':
		return ActionEraser
	case r == 'r':
		return ActionReload
	}
	return ActionNone
}

func codeRune(c key.Code) rune {
	switch c {
	case key.CodeB:
		return 'b'
	case key.CodeC:
		return 'c'
	case key.CodeE:
		return 'e'
	case key.CodeR:
		return 'r'
	case key.CodeZ:
		return 'z'
	}
	return 0
}
