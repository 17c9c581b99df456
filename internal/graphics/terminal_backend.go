package graphics

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/term"
)

// Terminals report key presses only, so a pressed key is released after this
// many polls without a repeat.
const terminalHoldPolls = 8

// TerminalBackend renders frames with ANSI true-colour half blocks.
type TerminalBackend struct {
	initialized bool
	config      Config
}

// TerminalWindow implements the Window interface for terminal rendering
type TerminalWindow struct {
	title   string
	width   int
	height  int
	running bool
	status  string
	out     *bufio.Writer

	fd       int
	oldState *term.State
	keys     chan []byte
	done     chan struct{}
	held     map[Key]int
	buttons  map[Key]Button
}

// NewTerminalBackend creates a new terminal graphics backend
func NewTerminalBackend() Backend {
	return &TerminalBackend{}
}

// Initialize initializes the terminal backend
func (b *TerminalBackend) Initialize(config Config) error {
	if b.initialized {
		return errors.New("terminal backend already initialized")
	}

	b.config = config
	b.initialized = true

	return nil
}

// CreateWindow puts stdin in raw mode and sizes the picture to the terminal.
func (b *TerminalBackend) CreateWindow(title string, width, height int) (Window, error) {
	if !b.initialized {
		return nil, errors.New("backend not initialized")
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New("graphics: stdin is not a terminal")
	}
	cols, rows, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return nil, errors.Wrap(err, "graphics: terminal size")
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, errors.Wrap(err, "graphics: raw mode")
	}

	buttons := b.config.ButtonMap
	if buttons == nil {
		buttons = DefaultButtonMap()
	}

	w := &TerminalWindow{
		title:    title,
		width:    cols,
		height:   rows - 1,
		running:  true,
		out:      bufio.NewWriterSize(os.Stdout, 1<<16),
		fd:       fd,
		oldState: oldState,
		keys:     make(chan []byte, 16),
		done:     make(chan struct{}),
		held:     make(map[Key]int),
		buttons:  buttons,
	}
	go w.readKeys(os.Stdin)

	fmt.Fprint(w.out, "\033[?25l\033[2J")
	w.SetTitle(title)
	return w, nil
}

// Cleanup releases all terminal resources
func (b *TerminalBackend) Cleanup() error {
	b.initialized = false
	return nil
}

// IsHeadless returns false (terminal has basic output)
func (b *TerminalBackend) IsHeadless() bool {
	return false
}

// GetName returns the backend name
func (b *TerminalBackend) GetName() string {
	return "Terminal"
}

// SetTitle sets the terminal title
func (w *TerminalWindow) SetTitle(title string) {
	w.title = title
	fmt.Fprintf(w.out, "\033]0;%s\007", title)
	w.out.Flush()
}

// GetSize returns the picture size in character cells
func (w *TerminalWindow) GetSize() (width, height int) {
	return w.width, w.height
}

// ShouldClose returns true if window should close
func (w *TerminalWindow) ShouldClose() bool {
	return !w.running
}

// readKeys forwards stdin to PollEvents until the read fails or the window
// is cleaned up.
func (w *TerminalWindow) readKeys(r io.Reader) {
	buf := make([]byte, 32)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			b := make([]byte, n)
			copy(b, buf[:n])
			select {
			case w.keys <- b:
			case <-w.done:
				return
			}
		}
		if err != nil {
			close(w.keys)
			return
		}
	}
}

// PollEvents decodes pending keystrokes. Ctrl+C quits.
func (w *TerminalWindow) PollEvents() []InputEvent {
	var raw []InputEvent
	pressed := make(map[Key]bool)

drain:
	for {
		select {
		case b, ok := <-w.keys:
			if !ok {
				break drain
			}
			for _, c := range b {
				if c == 0x03 {
					w.running = false
					return []InputEvent{{Type: InputEventTypeQuit, Pressed: true}}
				}
			}
			for _, k := range decodeKeys(b) {
				pressed[k] = true
			}
		default:
			break drain
		}
	}

	for k := range pressed {
		if _, down := w.held[k]; !down {
			raw = append(raw, InputEvent{Type: InputEventTypeKey, Key: k, Pressed: true})
		}
		w.held[k] = terminalHoldPolls
	}
	for k, n := range w.held {
		if pressed[k] {
			continue
		}
		if n <= 1 {
			delete(w.held, k)
			raw = append(raw, InputEvent{Type: InputEventTypeKey, Key: k, Pressed: false})
			continue
		}
		w.held[k] = n - 1
	}

	return translateKeyEvents(raw, w.buttons)
}

// decodeKeys maps raw terminal input to keys. Arrow keys arrive as
// ESC [ A..D; a lone ESC is the escape key.
func decodeKeys(b []byte) []Key {
	var keys []Key
	for i := 0; i < len(b); i++ {
		c := b[i]
		if c == 0x1B {
			if i+2 < len(b) && b[i+1] == '[' {
				switch b[i+2] {
				case 'A':
					keys = append(keys, KeyUp)
				case 'B':
					keys = append(keys, KeyDown)
				case 'C':
					keys = append(keys, KeyRight)
				case 'D':
					keys = append(keys, KeyLeft)
				}
				i += 2
				continue
			}
			keys = append(keys, KeyEscape)
			continue
		}
		switch {
		case c == '\r' || c == '\n':
			keys = append(keys, KeyEnter)
		case c == ' ':
			keys = append(keys, KeySpace)
		case c >= '1' && c <= '8':
			keys = append(keys, Key1+Key(c-'1'))
		default:
			name := string(c)
			if k, err := ParseKey(name); err == nil && len(name) == 1 {
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// RenderFrame draws the frame scaled to the terminal size
func (w *TerminalWindow) RenderFrame(frame []uint32) error {
	if len(frame) != FrameWidth*FrameHeight {
		return errors.Errorf("graphics: frame has %d pixels", len(frame))
	}
	fmt.Fprint(w.out, "\033[H")
	renderHalfBlocks(w.out, frame, w.width, w.height)
	if w.status != "" {
		fmt.Fprintf(w.out, "\033[0m%s\033[K", w.status)
	}
	return w.out.Flush()
}

// renderHalfBlocks writes the frame as rows of upper half blocks, each cell
// showing two vertically stacked pixels, sampled down to fit cols x rows.
func renderHalfBlocks(out io.Writer, frame []uint32, cols, rows int) {
	if cols > FrameWidth {
		cols = FrameWidth
	}
	if rows > FrameHeight/2 {
		rows = FrameHeight / 2
	}
	if cols < 1 || rows < 1 {
		return
	}
	bw := bufio.NewWriter(out)
	for row := 0; row < rows; row++ {
		yTop := (row * 2) * FrameHeight / (rows * 2)
		yBottom := (row*2 + 1) * FrameHeight / (rows * 2)
		for col := 0; col < cols; col++ {
			x := col * FrameWidth / cols
			top := frame[yTop*FrameWidth+x]
			bottom := frame[yBottom*FrameWidth+x]
			fmt.Fprintf(bw, "\033[38;2;%d;%d;%dm\033[48;2;%d;%d;%dm▀",
				uint8(top>>16), uint8(top>>8), uint8(top),
				uint8(bottom>>16), uint8(bottom>>8), uint8(bottom))
		}
		bw.WriteString("\033[0m\r\n")
	}
	bw.Flush()
}

// SetStatus sets the line shown under the picture
func (w *TerminalWindow) SetStatus(status string) {
	w.status = status
}

// Cleanup restores the terminal
func (w *TerminalWindow) Cleanup() error {
	w.running = false
	if w.done != nil {
		select {
		case <-w.done:
		default:
			close(w.done)
		}
	}
	fmt.Fprint(w.out, "\033[0m\033[?25h\r\n")
	w.out.Flush()
	if w.oldState != nil {
		err := term.Restore(w.fd, w.oldState)
		w.oldState = nil
		return err
	}
	return nil
}
