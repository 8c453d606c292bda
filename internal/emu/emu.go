package emu

import (
	"io"
	"os"
	"path/filepath"

	"github.com/mooneyes-gb/gobstep/internal/bus"
	"github.com/mooneyes-gb/gobstep/internal/cart"
	"github.com/mooneyes-gb/gobstep/internal/cpu"
)

// Buttons mirrors the eight physical DMG inputs.
type Buttons struct {
	A, B, Start, Select   bool
	Up, Down, Left, Right bool
}

func (b Buttons) mask() byte {
	var m byte
	if b.Right {
		m |= bus.JoypRight
	}
	if b.Left {
		m |= bus.JoypLeft
	}
	if b.Up {
		m |= bus.JoypUp
	}
	if b.Down {
		m |= bus.JoypDown
	}
	if b.A {
		m |= bus.JoypA
	}
	if b.B {
		m |= bus.JoypB
	}
	if b.Select {
		m |= bus.JoypSelectBtn
	}
	if b.Start {
		m |= bus.JoypStart
	}
	return m
}

// cyclesPerFrame is one DMG video frame: 154 scanlines * 456 T-cycles.
const cyclesPerFrame = 70224

// Machine is the host-facing emulator: load a cartridge, step whole frames,
// read back the framebuffer and audio, and snapshot/restore full state. It
// owns exactly one Bus/CPU pair, recreated whenever a new cartridge loads.
type Machine struct {
	cfg Config

	bus *bus.Bus
	cpu *cpu.CPU

	romPath string
	header  *cart.Header
	bootROM []byte

	fb        []byte // RGBA 160*144*4, refreshed by StepFrame
	paletteID int

	wantColorTint bool // pending cosmetic color-tint setting, applied on next ResetCGBPostBoot
	useColorTint  bool // color-tint setting actually in effect

	lastErr error
}

// New creates a Machine with no cartridge loaded; Framebuffer returns a
// blank screen until LoadCartridge or LoadROMFromFile succeeds.
func New(cfg Config) *Machine {
	m := &Machine{cfg: cfg, fb: make([]byte, 160*144*4), paletteID: len(paletteSetNames) - 1}
	m.wantColorTint = cfg.CGBCompat
	m.resetMachine(nil, true)
	return m
}

// SetBootROM installs a 256-byte DMG boot ROM image to be used by subsequent
// Reset(false) / LoadCartridge calls.
func (m *Machine) SetBootROM(data []byte) {
	if len(data) >= 0x100 {
		m.bootROM = data
	}
}

// SetUseFetcherBG selects the PPU's background renderer: the explicit
// fetcher/FIFO state machine (true) or the classic direct-decode path
// (false). Both produce identical pixels.
func (m *Machine) SetUseFetcherBG(v bool) { m.bus.PPU().SetUseFetcherBG(v) }

// LoadCartridge validates rom, parses its header, and rebuilds the machine
// around it. boot, if at least 256 bytes, becomes the installed boot ROM.
func (m *Machine) LoadCartridge(rom []byte, boot []byte) error {
	if err := cart.ValidateSize(rom); err != nil {
		return err
	}
	h, err := cart.ParseHeader(rom)
	if err != nil {
		return err
	}
	if len(boot) >= 0x100 {
		m.bootROM = boot
	}
	m.header = h
	if id, ok := autoCompatPaletteFromHeader(h); ok {
		m.paletteID = id
	}
	m.resetMachine(rom, len(m.bootROM) < 0x100)
	return nil
}

// LoadROMFromFile reads path and loads it as the current cartridge,
// remembering the path for ROMPath/ROMTitle and save-file placement.
func (m *Machine) LoadROMFromFile(path string) error {
	rom, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := m.LoadCartridge(rom, m.bootROM); err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	m.romPath = abs
	return nil
}

// ROMPath returns the absolute path of the most recently loaded ROM file, or
// "" if the current cartridge was not loaded from disk.
func (m *Machine) ROMPath() string { return m.romPath }

// ROMTitle returns the cartridge header title, or "" if none is loaded.
func (m *Machine) ROMTitle() string {
	if m.header == nil {
		return ""
	}
	return m.header.Title
}

// Reset rebuilds CPU/bus state in place, keeping the currently loaded
// cartridge. With fastBoot, the CPU starts directly in the documented
// post-boot register state at PC=0x0100. Without it, the installed boot ROM
// (if any) is mapped at 0x0000 and runs first; with no boot ROM installed
// this falls back to the post-boot state as well.
func (m *Machine) Reset(fastBoot bool) {
	m.resetMachine(nil, fastBoot)
}

// ResetPostBoot resets to the fast-boot (no boot ROM) state.
func (m *Machine) ResetPostBoot() { m.resetMachine(nil, true) }

// ResetWithBoot resets and, if a boot ROM is installed, runs it from 0x0000.
func (m *Machine) ResetWithBoot() { m.resetMachine(nil, false) }

// resetMachine rebuilds the Bus/CPU pair. When rom is non-nil it becomes the
// new cartridge image (used by LoadCartridge); otherwise the existing
// cartridge is preserved by reusing its Cartridge implementation.
func (m *Machine) resetMachine(rom []byte, fastBoot bool) {
	var b *bus.Bus
	if rom != nil {
		b = bus.New(rom)
	} else if m.bus != nil {
		b = bus.NewWithCartridge(m.bus.Cart())
	} else {
		b = bus.New(make([]byte, 0x8000))
	}
	if len(m.bootROM) >= 0x100 {
		b.SetBootROM(m.bootROM)
	}
	m.bus = b
	m.cpu = cpu.New(b)
	m.bus.PPU().SetUseFetcherBG(m.cfg.UseFetcherBG)

	if fastBoot || len(m.bootROM) < 0x100 {
		m.cpu.ResetNoBoot()
		m.cpu.SetPC(0x0100)
		m.applyPostBootIO()
	} else {
		m.cpu.SP = 0xFFFE
		m.cpu.PC = 0x0000
		m.cpu.IME = false
	}
}

// applyPostBootIO writes the IO register values the DMG boot ROM leaves
// behind, for the fast-boot path that skips running it.
func (m *Machine) applyPostBootIO() {
	b := m.bus
	b.Write(0xFF00, 0xCF)
	b.Write(0xFF05, 0x00)
	b.Write(0xFF06, 0x00)
	b.Write(0xFF07, 0xF8)
	b.Write(0xFF0F, 0xE1)
	b.Write(0xFF40, 0x91)
	b.Write(0xFF42, 0x00)
	b.Write(0xFF43, 0x00)
	b.Write(0xFF45, 0x00)
	b.Write(0xFF47, 0xFC)
	b.Write(0xFF48, 0xFF)
	b.Write(0xFF49, 0xFF)
	b.Write(0xFF4A, 0x00)
	b.Write(0xFF4B, 0x00)
	b.Write(0xFFFF, 0x00)
}

// SetButtons latches the currently pressed buttons onto the joypad.
func (m *Machine) SetButtons(btn Buttons) { m.bus.SetJoypadState(btn.mask()) }

// SetSerialWriter attaches a sink for bytes shifted out over the serial port.
func (m *Machine) SetSerialWriter(w io.Writer) { m.bus.SetSerialWriter(w) }

// StepFrame runs one full 70224-cycle video frame, services the CPU's
// pending interrupt/HALT state as it goes, and refreshes the RGBA
// framebuffer from the PPU's resolved shades.
func (m *Machine) StepFrame() {
	m.runFrame()
	m.renderRGBA()
}

// StepFrameNoRender runs one frame's worth of cycles without touching the
// RGBA framebuffer, for headless automation that only cares about serial
// output or final CRC checks on demand.
func (m *Machine) StepFrameNoRender() {
	m.runFrame()
}

func (m *Machine) runFrame() {
	m.lastErr = nil
	target := cyclesPerFrame
	spent := 0
	for spent < target {
		spent += m.cpu.Step()
		if err := m.cpu.Err(); err != nil && m.lastErr == nil {
			m.lastErr = err
		}
	}
}

// Err returns the most recent illegal-opcode error encountered during the
// last StepFrame/StepFrameNoRender call, or nil.
func (m *Machine) Err() error { return m.lastErr }

// renderRGBA converts the PPU's per-pixel shade buffer into the currently
// selected color palette.
func (m *Machine) renderRGBA() {
	fbuf := m.bus.PPU().FrameBuffer()
	i := 0
	for y := 0; y < 144; y++ {
		for x := 0; x < 160; x++ {
			c := paletteRGBA(m.paletteID, fbuf[y][x])
			m.fb[i+0] = c[0]
			m.fb[i+1] = c[1]
			m.fb[i+2] = c[2]
			m.fb[i+3] = c[3]
			i += 4
		}
	}
}

// Framebuffer returns the last rendered frame as packed RGBA bytes
// (160*144*4), suitable for ebiten.Image.WritePixels.
func (m *Machine) Framebuffer() []byte { return m.fb }

// CurrentPalette, CyclePalette, and PaletteName expose the cosmetic color
// tint applied over the monochrome framebuffer.
func (m *Machine) CurrentPalette() int    { return m.paletteID }
func (m *Machine) PaletteName(id int) string {
	if id < 0 || id >= len(paletteSetNames) {
		return "?"
	}
	return paletteSetNames[id]
}
func (m *Machine) SetPalette(id int) {
	if id >= 0 && id < len(paletteSets) {
		m.paletteID = id
	}
}
func (m *Machine) CyclePalette(delta int) {
	n := len(paletteSets)
	m.paletteID = ((m.paletteID+delta)%n + n) % n
}

// IsCGBCompat reports whether a compatibility palette can be picked for the
// loaded cartridge: the title-based table is consulted first (the same
// heuristic a real GBC uses to pick a tint for an otherwise-monochrome DMG
// cartridge) and a header-derived fallback covers other titles, so it is
// true for any loaded cartridge header and false only without one. This core
// does not emulate CGB hardware (spec.md Non-goals); this only gates the
// cosmetic palette-picker UI.
func (m *Machine) IsCGBCompat() bool {
	_, ok := autoCompatPaletteFromHeader(m.header)
	return ok
}

// CurrentCompatPalette, CompatPaletteName, SetCompatPalette, and
// CycleCompatPalette are the compatibility-palette-picker aliases of the
// CurrentPalette/PaletteName/SetPalette/CyclePalette family, exposed under
// the name the menu UI uses for this feature.
func (m *Machine) CurrentCompatPalette() int            { return m.CurrentPalette() }
func (m *Machine) CompatPaletteName(id int) string      { return m.PaletteName(id) }
func (m *Machine) SetCompatPalette(id int)              { m.SetPalette(id) }
func (m *Machine) CycleCompatPalette(delta int)         { m.CyclePalette(delta) }

// WantCGBColors reports whether the cosmetic color tint is enabled; when
// off, the next reset selects the Grayscale palette regardless of
// IsCGBCompat. UseCGBBG reports whether that setting is currently the one
// actually applied (it only changes on the next reset, matching how a real
// GBC's compatibility mode is fixed at boot).
func (m *Machine) WantCGBColors() bool { return m.wantColorTint }
func (m *Machine) UseCGBBG() bool      { return m.useColorTint }
func (m *Machine) SetUseCGBBG(v bool)  { m.wantColorTint = v }

// ResetCGBPostBoot commits the pending color-tint setting and performs a
// normal reset (fastBoot per spec.md §6's reset operation).
func (m *Machine) ResetCGBPostBoot(fastBoot bool) {
	m.useColorTint = m.wantColorTint
	if !m.useColorTint {
		m.paletteID = len(paletteSetNames) - 1 // Grayscale
	} else if id, ok := autoCompatPaletteFromHeader(m.header); ok {
		m.paletteID = id
	}
	m.Reset(fastBoot)
}

// LoadBattery restores persisted cartridge RAM (and, for MBC3, RTC state).
// Returns false if the current cartridge has no battery-backed storage.
func (m *Machine) LoadBattery(data []byte) bool {
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return false
	}
	bb.LoadRAM(data)
	return true
}

// SaveBattery returns the current cartridge's battery-backed RAM (and RTC
// state where applicable). ok is false if nothing is battery-backed.
func (m *Machine) SaveBattery() (data []byte, ok bool) {
	bb, isBattery := m.bus.Cart().(cart.BatteryBacked)
	if !isBattery {
		return nil, false
	}
	d := bb.SaveRAM()
	return d, d != nil
}

// Snapshot captures full machine state (bus/PPU/APU/cart, CPU registers, and
// host-side bookkeeping needed to resume identically).
func (m *Machine) Snapshot() []byte {
	return encodeSnapshot(m)
}

// Restore replaces the current machine state with a previously captured
// Snapshot. The cartridge ROM itself is not part of the snapshot: Restore
// must be called on a Machine that already has the same ROM loaded.
func (m *Machine) Restore(data []byte) error {
	return decodeSnapshot(m, data)
}

// SaveStateToFile and LoadStateFromFile are thin conveniences over
// Snapshot/Restore for save-state files on disk.
func (m *Machine) SaveStateToFile(path string) error {
	return os.WriteFile(path, m.Snapshot(), 0644)
}

func (m *Machine) LoadStateFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return m.Restore(data)
}

// APU pass-throughs for a host audio backend.
func (m *Machine) APUBufferedStereo() int { return m.bus.APU().StereoAvailable() }

func (m *Machine) APUPullStereo(max int) []int16 { return m.bus.APU().PullStereo(max) }

// APUClearAudioLatency drops everything currently buffered, used when
// (un)pausing or (un)muting to avoid playing stale samples.
func (m *Machine) APUClearAudioLatency() {
	for m.bus.APU().StereoAvailable() > 0 {
		if len(m.bus.APU().PullStereo(4096)) == 0 {
			break
		}
	}
}

// APUCapBufferedStereo trims buffered audio down to at most max stereo
// frames, used to bound latency during fast-forward.
func (m *Machine) APUCapBufferedStereo(max int) {
	for m.bus.APU().StereoAvailable() > max {
		n := m.bus.APU().StereoAvailable() - max
		if n > 4096 {
			n = 4096
		}
		if len(m.bus.APU().PullStereo(n)) == 0 {
			break
		}
	}
}
