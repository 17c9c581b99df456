// Package graphics provides an abstraction layer for different rendering backends
package graphics

import (
	"strings"

	"github.com/pkg/errors"
)

// NES output resolution
const (
	FrameWidth  = 256
	FrameHeight = 240
)

// ErrWindowClosed is returned by Run once the user closes the window.
var ErrWindowClosed = errors.New("graphics: window closed")

// Backend represents a graphics rendering backend
type Backend interface {
	// Initialize initializes the graphics backend
	Initialize(config Config) error

	// CreateWindow creates a window for rendering
	CreateWindow(title string, width, height int) (Window, error)

	// Cleanup releases all resources
	Cleanup() error

	// IsHeadless returns true if the backend shows nothing to the user
	IsHeadless() bool

	// GetName returns the backend name for identification
	GetName() string
}

// Window represents a rendering window
type Window interface {
	// SetTitle sets the window title
	SetTitle(title string)

	// GetSize returns window dimensions
	GetSize() (width, height int)

	// ShouldClose returns true if window should close
	ShouldClose() bool

	// PollEvents returns the input events since the last call
	PollEvents() []InputEvent

	// RenderFrame presents a 256x240 frame of 0xAARRGGBB pixels
	RenderFrame(frame []uint32) error

	// SetStatus sets the overlay text (FPS, pause). Empty hides it.
	SetStatus(status string)

	// Cleanup releases window resources
	Cleanup() error
}

// Runner is implemented by windows that own the host event loop and call
// back into the emulator once per host frame.
type Runner interface {
	Run(update func() error) error
}

// Config contains configuration for graphics backends
type Config struct {
	// Window configuration
	WindowTitle  string
	WindowWidth  int
	WindowHeight int
	Fullscreen   bool
	VSync        bool

	// "nearest" or "linear"
	Filter string

	// Controller bindings; nil uses DefaultButtonMap
	ButtonMap map[Key]Button

	// Headless output: a PNG every ScreenshotEvery frames into OutputDir.
	// Zero disables periodic dumps.
	OutputDir       string
	ScreenshotEvery int
	ScreenshotScale int

	Debug bool
}

// InputEvent represents an input event from the window
type InputEvent struct {
	Type      InputEventType
	Key       Key
	Button    Button
	Pressed   bool
	Modifiers ModifierKey
}

// InputEventType represents the type of input event
type InputEventType int

const (
	InputEventTypeKey InputEventType = iota
	InputEventTypeButton
	InputEventTypeQuit
)

// Key represents keyboard keys
type Key int

const (
	KeyUnknown Key = iota
	KeyEscape
	KeyEnter
	KeySpace
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyW
	KeyA
	KeyS
	KeyD
	KeyJ
	KeyK
	KeyP
	KeyR
	KeyX
	KeyZ
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
)

var keyNames = map[Key]string{
	KeyEscape: "Escape", KeyEnter: "Enter", KeySpace: "Space",
	KeyUp: "Up", KeyDown: "Down", KeyLeft: "Left", KeyRight: "Right",
	KeyW: "W", KeyA: "A", KeyS: "S", KeyD: "D", KeyJ: "J", KeyK: "K",
	KeyP: "P", KeyR: "R", KeyX: "X", KeyZ: "Z",
	Key1: "1", Key2: "2", Key3: "3", Key4: "4",
	Key5: "5", Key6: "6", Key7: "7", Key8: "8",
	KeyF1: "F1", KeyF2: "F2", KeyF3: "F3", KeyF4: "F4",
	KeyF5: "F5", KeyF6: "F6", KeyF7: "F7", KeyF8: "F8",
	KeyF9: "F9", KeyF10: "F10", KeyF11: "F11", KeyF12: "F12",
}

func (k Key) String() string {
	if name, ok := keyNames[k]; ok {
		return name
	}
	return "Unknown"
}

// ParseKey returns the key with the given name, ignoring case.
func ParseKey(name string) (Key, error) {
	for k, n := range keyNames {
		if strings.EqualFold(n, name) {
			return k, nil
		}
	}
	return KeyUnknown, errors.Errorf("graphics: unknown key %q", name)
}

// Button represents controller buttons
type Button int

const (
	ButtonUnknown Button = iota
	ButtonA
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
	// Player 2 controller buttons
	Button2A
	Button2B
	Button2Select
	Button2Start
	Button2Up
	Button2Down
	Button2Left
	Button2Right
)

// Port returns the controller port (1 or 2) the button belongs to and its
// index in NES read order (A, B, Select, Start, Up, Down, Left, Right).
func (b Button) Port() (port int, index int) {
	switch {
	case b >= ButtonA && b <= ButtonRight:
		return 1, int(b - ButtonA)
	case b >= Button2A && b <= Button2Right:
		return 2, int(b - Button2A)
	}
	return 0, -1
}

// DefaultButtonMap returns the stock keyboard layout.
func DefaultButtonMap() map[Key]Button {
	return map[Key]Button{
		KeyUp:    ButtonUp,
		KeyDown:  ButtonDown,
		KeyLeft:  ButtonLeft,
		KeyRight: ButtonRight,
		KeyW:     ButtonUp,
		KeyS:     ButtonDown,
		KeyA:     ButtonLeft,
		KeyD:     ButtonRight,
		KeyJ:     ButtonA,
		KeyK:     ButtonB,
		KeyEnter: ButtonStart,
		KeySpace: ButtonSelect,
		// Player 2 on the number row
		Key1: Button2Up,
		Key2: Button2Down,
		Key3: Button2Left,
		Key4: Button2Right,
		Key5: Button2A,
		Key6: Button2B,
		Key7: Button2Start,
		Key8: Button2Select,
	}
}

// ModifierKey represents modifier keys
type ModifierKey int

const (
	ModifierNone  ModifierKey = 0
	ModifierShift ModifierKey = 1 << iota
	ModifierCtrl
	ModifierAlt
)

// translateKeyEvents turns raw key events into button events where the key
// is bound. Unbound keys pass through unchanged.
func translateKeyEvents(raw []InputEvent, buttons map[Key]Button) []InputEvent {
	events := make([]InputEvent, 0, len(raw))
	for _, event := range raw {
		if button, ok := buttons[event.Key]; ok && event.Type == InputEventTypeKey {
			events = append(events, InputEvent{
				Type:      InputEventTypeButton,
				Key:       event.Key,
				Button:    button,
				Pressed:   event.Pressed,
				Modifiers: event.Modifiers,
			})
			continue
		}
		events = append(events, event)
	}
	return events
}

// BackendType represents different graphics backend types
type BackendType string

const (
	BackendEbitengine BackendType = "ebitengine"
	BackendHeadless   BackendType = "headless"
	BackendTerminal   BackendType = "terminal"
)

// CreateBackend creates a graphics backend of the specified type
func CreateBackend(backendType BackendType) (Backend, error) {
	switch backendType {
	case BackendEbitengine:
		return NewEbitengineBackend(), nil
	case BackendHeadless:
		return NewHeadlessBackend(), nil
	case BackendTerminal:
		return NewTerminalBackend(), nil
	default:
		return nil, errors.Errorf("graphics: unknown backend %q", backendType)
	}
}
