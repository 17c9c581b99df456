// Package script runs Lua automation against a console. A script sets up
// state at load time and may define on_frame(frame), which the runner calls
// after every emulated frame. The nes table exposes the console:
//
//	nes.buttons(port, name...)  set the held buttons of port 1 or 2
//	nes.peek(addr)              read RAM or cartridge space
//	nes.poke(addr, value)       write internal RAM
//	nes.cpu()                   table of pc, a, x, y, p, sp, cycles
//	nes.frame()                 completed frame count
//	nes.screenshot(path)        save the current frame as PNG
//	nes.watch(addr, fn)         call fn(addr, old, new) when the byte changes
//	nes.log(msg)                write to the log
//	nes.stop()                  end the session after this frame
package script

import (
	"log"

	"github.com/pkg/errors"
	lua "github.com/yuin/gopher-lua"

	"nescore/internal/bus"
	"nescore/internal/graphics"
	"nescore/internal/input"
)

const frameHook = "on_frame"

// Runner owns a Lua state bound to one console.
type Runner struct {
	L       *lua.LState
	bus     *bus.Bus
	stopped bool
	name    string
}

// New creates a runner for b. Call Close when done.
func New(b *bus.Bus) *Runner {
	r := &Runner{
		L:   lua.NewState(),
		bus: b,
	}
	r.L.SetGlobal("nes", r.L.SetFuncs(r.L.NewTable(), map[string]lua.LGFunction{
		"buttons":    r.luaButtons,
		"peek":       r.luaPeek,
		"poke":       r.luaPoke,
		"cpu":        r.luaCPU,
		"frame":      r.luaFrame,
		"screenshot": r.luaScreenshot,
		"watch":      r.luaWatch,
		"log":        r.luaLog,
		"stop":       r.luaStop,
	}))
	return r
}

// LoadFile runs the script at path.
func (r *Runner) LoadFile(path string) error {
	r.name = path
	if err := r.L.DoFile(path); err != nil {
		return errors.Wrapf(err, "script: load %s", path)
	}
	return nil
}

// LoadString runs src as a script.
func (r *Runner) LoadString(src string) error {
	r.name = "<string>"
	if err := r.L.DoString(src); err != nil {
		return errors.Wrap(err, "script: load")
	}
	return nil
}

// Frame calls the script's on_frame hook, if it defines one.
func (r *Runner) Frame() error {
	fn, ok := r.L.GetGlobal(frameHook).(*lua.LFunction)
	if !ok {
		return nil
	}
	err := r.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, lua.LNumber(r.bus.Frame()))
	if err != nil {
		return errors.Wrapf(err, "script: %s", frameHook)
	}
	return nil
}

// Stopped reports whether the script called nes.stop.
func (r *Runner) Stopped() bool {
	return r.stopped
}

// Close releases the Lua state.
func (r *Runner) Close() {
	r.L.Close()
}

func (r *Runner) luaButtons(L *lua.LState) int {
	port := L.CheckInt(1)
	var mask uint8
	for i := 2; i <= L.GetTop(); i++ {
		b, err := input.ParseButton(L.CheckString(i))
		if err != nil {
			L.ArgError(i, err.Error())
		}
		mask |= uint8(b)
	}
	if err := r.bus.SetButtons(port, mask); err != nil {
		L.ArgError(1, err.Error())
	}
	return 0
}

func (r *Runner) luaPeek(L *lua.LState) int {
	addr := checkAddress(L, 1)
	L.Push(lua.LNumber(r.bus.Memory.Peek(addr)))
	return 1
}

func (r *Runner) luaPoke(L *lua.LState) int {
	addr := checkAddress(L, 1)
	value := L.CheckInt(2)
	if value < 0 || value > 0xFF {
		L.ArgError(2, "value out of range")
	}
	r.bus.Memory.Poke(addr, uint8(value))
	return 0
}

func (r *Runner) luaCPU(L *lua.LState) int {
	c := r.bus.CPU
	t := L.NewTable()
	t.RawSetString("pc", lua.LNumber(c.PC))
	t.RawSetString("a", lua.LNumber(c.A))
	t.RawSetString("x", lua.LNumber(c.X))
	t.RawSetString("y", lua.LNumber(c.Y))
	t.RawSetString("p", lua.LNumber(c.Status()))
	t.RawSetString("sp", lua.LNumber(c.SP))
	t.RawSetString("cycles", lua.LNumber(c.Cycles()))
	L.Push(t)
	return 1
}

func (r *Runner) luaFrame(L *lua.LState) int {
	L.Push(lua.LNumber(r.bus.Frame()))
	return 1
}

func (r *Runner) luaScreenshot(L *lua.LState) int {
	path := L.CheckString(1)
	scale := L.OptInt(2, 1)
	if err := graphics.SaveScreenshot(path, r.bus.FrameBuffer(), scale); err != nil {
		L.RaiseError("%v", err)
	}
	return 0
}

func (r *Runner) luaWatch(L *lua.LState) int {
	addr := checkAddress(L, 1)
	if L.Get(2) == lua.LNil {
		r.bus.Watch(addr, nil)
		return 0
	}
	fn := L.CheckFunction(2)
	r.bus.Watch(addr, func(address uint16, old, value uint8) {
		err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true},
			lua.LNumber(address), lua.LNumber(old), lua.LNumber(value))
		if err != nil {
			log.Printf("[SCRIPT] watch $%04X: %v", address, err)
		}
	})
	return 0
}

func (r *Runner) luaLog(L *lua.LState) int {
	log.Printf("[SCRIPT] %s", L.CheckString(1))
	return 0
}

func (r *Runner) luaStop(L *lua.LState) int {
	r.stopped = true
	return 0
}

func checkAddress(L *lua.LState, n int) uint16 {
	addr := L.CheckInt(n)
	if addr < 0 || addr > 0xFFFF {
		L.ArgError(n, "address out of range")
	}
	return uint16(addr)
}
