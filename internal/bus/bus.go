package bus

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/mooneyes-gb/gobstep/internal/apu"
	"github.com/mooneyes-gb/gobstep/internal/cart"
	"github.com/mooneyes-gb/gobstep/internal/ppu"
)

// Bus is the Machine aggregate: it owns the cartridge, PPU, APU, WRAM/HRAM
// and every memory-mapped IO register, and dispatches CPU reads/writes by
// address range. There is no shared ownership or dynamic registration here;
// every component is a concrete field and the decode table below is the
// single source of truth for where an address lands.
type Bus struct {
	cart cart.Cartridge

	// Work RAM (WRAM) 8 KiB at 0xC000-0xDFFF; Echo 0xE000-0xFDFF mirrors C000-DDFF.
	wram [0x2000]byte

	// High RAM (HRAM) 0xFF80-0xFFFE (127 bytes)
	hram [0x7F]byte

	ppu *ppu.PPU
	apu *apu.APU

	// Interrupt registers
	ie    byte // IE at 0xFFFF
	ifReg byte // IF at 0xFF0F (lower 5 bits used)

	// JOYP
	joypSelect byte
	joypad     byte
	joypLower4 byte // last computed lower 4 bits (active-low), for edge detection

	div  byte // FF04 (upper 8 bits of internal divider)
	tima byte // FF05
	tma  byte // FF06
	tac  byte // FF07 (lower 3 bits used)

	// Timer overflow handling: when TIMA overflows it reads 0x00 for a 4-cycle
	// window before reloading from TMA; writes to TIMA during that window
	// cancel the reload.
	timaReloadDelay int

	// Serial: a real transfer clocks one bit out per 512 T-cycles (internal
	// clock, the only source this core drives) for 8 bits, then raises the
	// serial interrupt. This mirrors wall-clock serial timing closely enough
	// for Blargg-style test ROMs that poll SC bit 7.
	sb           byte
	sc           byte
	sw           io.Writer
	serialActive bool
	serialBits   int
	serialTimer  int

	// Internal 16-bit divider incremented every T-cycle; DIV reads bits 8-15.
	divInternal uint16

	dma       byte // FF46
	dmaActive bool
	dmaSrc    uint16
	dmaIndex  int

	bootROM     []byte
	bootEnabled bool

	debugTimer bool
}

// New constructs a Bus with a ROM-derived cartridge and a 48kHz APU.
func New(rom []byte) *Bus {
	return NewWithCartridge(cart.NewCartridge(rom))
}

// NewWithCartridge wires a provided cartridge implementation.
func NewWithCartridge(c cart.Cartridge) *Bus {
	b := &Bus{cart: c}
	b.ppu = ppu.New(func(bit int) { b.ifReg |= 1 << bit })
	b.apu = apu.New(48000)
	if os.Getenv("GB_DEBUG_TIMER") != "" {
		b.debugTimer = true
	}
	return b
}

// PPU returns the internal PPU for read-only rendering helpers.
func (b *Bus) PPU() *ppu.PPU { return b.ppu }

// APU returns the internal APU so the host can pull mixed audio samples.
func (b *Bus) APU() *apu.APU { return b.apu }

// Cart returns the underlying cartridge for battery save/load.
func (b *Bus) Cart() cart.Cartridge { return b.cart }

func (b *Bus) Read(addr uint16) byte {
	// During OAM DMA the transfer owns the bus: every CPU read outside HRAM
	// returns 0xFF, not just the OAM region it's copying into (spec.md
	// §4.1/§4.5, Testable Scenario 5).
	if b.dmaActive && (addr < 0xFF80 || addr > 0xFFFE) {
		return 0xFF
	}
	switch {
	case addr < 0x8000:
		if b.bootEnabled && addr < 0x0100 && len(b.bootROM) >= 0x100 {
			return b.bootROM[addr]
		}
		return b.cart.Read(addr)
	case addr >= 0x8000 && addr <= 0x9FFF:
		return b.ppu.CPURead(addr)
	case addr >= 0xA000 && addr <= 0xBFFF:
		return b.cart.Read(addr)
	case addr >= 0xC000 && addr <= 0xDFFF:
		return b.wram[addr-0xC000]
	case addr >= 0xE000 && addr <= 0xFDFF:
		mirror := addr - 0x2000
		return b.wram[mirror-0xC000]
	case addr >= 0xFF80 && addr <= 0xFFFE:
		return b.hram[addr-0xFF80]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		// dmaActive already handled above; reaching here means OAM is open.
		return b.ppu.CPURead(addr)
	case addr == 0xFF00:
		res := byte(0xC0 | (b.joypSelect & 0x30) | 0x0F)
		if (b.joypSelect & 0x10) == 0 {
			if b.joypad&JoypRight != 0 {
				res &^= 0x01
			}
			if b.joypad&JoypLeft != 0 {
				res &^= 0x02
			}
			if b.joypad&JoypUp != 0 {
				res &^= 0x04
			}
			if b.joypad&JoypDown != 0 {
				res &^= 0x08
			}
		}
		if (b.joypSelect & 0x20) == 0 {
			if b.joypad&JoypA != 0 {
				res &^= 0x01
			}
			if b.joypad&JoypB != 0 {
				res &^= 0x02
			}
			if b.joypad&JoypSelectBtn != 0 {
				res &^= 0x04
			}
			if b.joypad&JoypStart != 0 {
				res &^= 0x08
			}
		}
		return res
	case addr == 0xFF04:
		return b.div
	case addr == 0xFF05:
		return b.tima
	case addr == 0xFF06:
		return b.tma
	case addr == 0xFF07:
		return 0xF8 | (b.tac & 0x07)
	case addr == 0xFF01:
		return b.sb
	case addr == 0xFF02:
		return byte(0x7E | (b.sc & 0x81))
	case addr >= 0xFF10 && addr <= 0xFF3F:
		return b.apu.CPURead(addr)
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B:
		return b.ppu.CPURead(addr)
	case addr == 0xFF46:
		return b.dma
	case addr == 0xFF50:
		return 0xFF
	case addr == 0xFF0F:
		return 0xE0 | (b.ifReg & 0x1F)
	case addr == 0xFFFF:
		return b.ie
	}
	return 0xFF
}

func (b *Bus) Write(addr uint16, value byte) {
	// Mirrors the Read-side gate: OAM DMA owns the bus, so every CPU write
	// outside HRAM is silently dropped while dmaActive is true (spec.md
	// §4.1/§4.5, Testable Scenario 5).
	if b.dmaActive && (addr < 0xFF80 || addr > 0xFFFE) {
		return
	}
	switch {
	case addr < 0x8000:
		b.cart.Write(addr, value)
		return
	case addr >= 0x8000 && addr <= 0x9FFF:
		b.ppu.CPUWrite(addr, value)
		return
	case addr >= 0xA000 && addr <= 0xBFFF:
		b.cart.Write(addr, value)
		return
	case addr >= 0xC000 && addr <= 0xDFFF:
		b.wram[addr-0xC000] = value
		return
	case addr >= 0xE000 && addr <= 0xFDFF:
		mirror := addr - 0x2000
		if mirror >= 0xC000 && mirror <= 0xDDFF {
			b.wram[mirror-0xC000] = value
		}
		return
	case addr >= 0xFF80 && addr <= 0xFFFE:
		b.hram[addr-0xFF80] = value
		return
	case addr >= 0xFE00 && addr <= 0xFE9F:
		// dmaActive already handled above; reaching here means OAM is open.
		b.ppu.CPUWrite(addr, value)
		return
	case addr == 0xFF00:
		b.joypSelect = value & 0x30
		b.updateJoypadIRQ()
		return
	case addr == 0xFF04:
		oldInput := b.timerInput()
		b.divInternal = 0
		b.div = 0
		if oldInput && !b.timerInput() {
			b.incrementTIMA()
		}
		if b.debugTimer {
			fmt.Printf("[TMR] DIV write -> reset tima=%02X tma=%02X tac=%02X reload=%d\n", b.tima, b.tma, b.tac, b.timaReloadDelay)
		}
		return
	case addr == 0xFF05:
		b.tima = value
		if b.timaReloadDelay > 0 {
			b.timaReloadDelay = 0
		}
		if b.debugTimer {
			fmt.Printf("[TMR] TIMA write %02X tma=%02X tac=%02X reload=%d\n", value, b.tma, b.tac, b.timaReloadDelay)
		}
		return
	case addr == 0xFF06:
		b.tma = value
		if b.debugTimer {
			fmt.Printf("[TMR] TMA write %02X (tima=%02X tac=%02X reload=%d)\n", value, b.tima, b.tac, b.timaReloadDelay)
		}
		return
	case addr == 0xFF07:
		oldInput := b.timerInput()
		b.tac = value & 0x07
		if oldInput && !b.timerInput() {
			b.incrementTIMA()
		}
		if b.debugTimer {
			fmt.Printf("[TMR] TAC write %02X (input %v->%v) tima=%02X tma=%02X reload=%d\n", b.tac, oldInput, b.timerInput(), b.tima, b.tma, b.timaReloadDelay)
		}
		return
	case addr == 0xFF01:
		b.sb = value
		return
	case addr == 0xFF02:
		b.sc = value & 0x81
		if (value & 0x80) != 0 {
			// Only the internal clock source is driven by this core; an
			// external-clock request (bit0==0) never completes since no
			// link partner is attached.
			if (value & 0x01) != 0 {
				b.serialActive = true
				b.serialBits = 8
				b.serialTimer = serialBitCycles
			}
		}
		return
	case addr >= 0xFF10 && addr <= 0xFF3F:
		b.apu.CPUWrite(addr, value)
		return
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B:
		b.ppu.CPUWrite(addr, value)
		return
	case addr == 0xFF46:
		b.dma = value
		b.dmaActive = true
		b.dmaSrc = uint16(value) << 8
		b.dmaIndex = 0
		return
	case addr == 0xFF50:
		if value != 0x00 {
			b.bootEnabled = false
		}
		return
	case addr == 0xFF0F:
		b.ifReg = value & 0x1F
		return
	case addr == 0xFFFF:
		b.ie = value
		return
	}
}

// Joypad button bitmasks for SetJoypadState. Bits set mean "pressed".
const (
	JoypRight     = 1 << 0
	JoypLeft      = 1 << 1
	JoypUp        = 1 << 2
	JoypDown      = 1 << 3
	JoypA         = 1 << 4
	JoypB         = 1 << 5
	JoypSelectBtn = 1 << 6
	JoypStart     = 1 << 7
)

// serialBitCycles is the number of T-cycles between bits when the internal
// clock drives a serial transfer (8192 Hz, one bit per 512 T-cycles).
const serialBitCycles = 512

// SetJoypadState sets which buttons are currently pressed (bits set = pressed).
func (b *Bus) SetJoypadState(mask byte) {
	b.joypad = mask
	b.updateJoypadIRQ()
}

// SetSerialWriter sets a sink that receives bytes written via the serial port.
func (b *Bus) SetSerialWriter(w io.Writer) { b.sw = w }

// SetBootROM loads a DMG boot ROM mapped at 0x0000-0x00FF until disabled via 0xFF50.
func (b *Bus) SetBootROM(data []byte) {
	b.bootROM = nil
	b.bootEnabled = false
	if len(data) >= 0x100 {
		b.bootROM = make([]byte, 0x100)
		copy(b.bootROM, data[:0x100])
		b.bootEnabled = true
	}
}

// Tick advances every sub-component by the given number of T-cycles, one
// T-cycle at a time, in the fixed order Timer -> DMA -> PPU -> Serial -> APU.
// The joypad has no per-cycle step: its interrupt is raised at the moment
// SetJoypadState or a JOYP write changes the input lines.
// The order matters only at the cycle grain: any component
// that reacts to another's output this cycle (DMA consuming bus reads, PPU
// observing a TIMA-driven interrupt) sees the same-cycle state of whatever
// ran earlier in the list.
func (b *Bus) Tick(cycles int) {
	if cycles <= 0 {
		return
	}
	for i := 0; i < cycles; i++ {
		b.tickTimer()
		b.tickDMA()
		if b.ppu != nil {
			b.ppu.Tick(1)
		}
		b.tickSerial()
		if b.apu != nil {
			b.apu.Tick(1)
		}
	}
}

func (b *Bus) tickTimer() {
	oldInput := b.timerInput()
	b.divInternal++
	b.div = byte(b.divInternal >> 8)
	newInput := b.timerInput()
	falling := oldInput && !newInput

	if b.timaReloadDelay > 0 {
		b.timaReloadDelay--
		if b.timaReloadDelay == 0 {
			b.tima = b.tma
			b.ifReg |= 1 << 2
		}
	}

	if falling {
		b.incrementTIMA()
	}
}

// tickDMA copies one byte every 4 T-cycles (160 bytes over 640 T-cycles);
// dmaIndex counts the T-cycles since the transfer started. The transfer's
// own source reads bypass the CPU-side gate in Read.
func (b *Bus) tickDMA() {
	if !b.dmaActive {
		return
	}
	b.dmaIndex++
	if b.dmaIndex%4 == 0 {
		i := uint16(b.dmaIndex/4 - 1)
		b.dmaActive = false
		v := b.Read(b.dmaSrc + i)
		b.dmaActive = true
		b.ppu.CPUWrite(0xFE00+i, v)
	}
	if b.dmaIndex >= 0xA0*4 {
		b.dmaActive = false
	}
}

func (b *Bus) tickSerial() {
	if !b.serialActive {
		return
	}
	b.serialTimer--
	if b.serialTimer > 0 {
		return
	}
	b.serialTimer = serialBitCycles
	b.serialBits--
	// No link cable is attached: the incoming bit is always 1 (idle line).
	b.sb = (b.sb << 1) | 0x01
	if b.serialBits <= 0 {
		b.serialActive = false
		b.sc &^= 0x80
		if b.sw != nil {
			_, _ = b.sw.Write([]byte{b.sb})
		}
		b.ifReg |= 1 << 3
	}
}

// timerInput computes the current timer clock input (after TAC gating).
func (b *Bus) timerInput() bool {
	if (b.tac & 0x04) == 0 {
		return false
	}
	var bit uint
	switch b.tac & 0x03 {
	case 0x00:
		bit = 9 // 4096 Hz
	case 0x01:
		bit = 3 // 262144 Hz
	case 0x02:
		bit = 5 // 65536 Hz
	case 0x03:
		bit = 7 // 16384 Hz
	}
	return ((b.divInternal >> bit) & 1) != 0
}

func (b *Bus) incrementTIMA() {
	if b.timaReloadDelay > 0 {
		return
	}
	if b.tima == 0xFF {
		b.tima = 0x00
		b.timaReloadDelay = 4
		return
	}
	b.tima++
}

// updateJoypadIRQ recomputes JOYP lower 4 bits (active-low) and raises IF
// bit 4 on any 1->0 transition (a button press, under the currently
// selected group).
func (b *Bus) updateJoypadIRQ() {
	newLower := byte(0x0F)
	if (b.joypSelect & 0x10) == 0 {
		if b.joypad&JoypRight != 0 {
			newLower &^= 0x01
		}
		if b.joypad&JoypLeft != 0 {
			newLower &^= 0x02
		}
		if b.joypad&JoypUp != 0 {
			newLower &^= 0x04
		}
		if b.joypad&JoypDown != 0 {
			newLower &^= 0x08
		}
	}
	if (b.joypSelect & 0x20) == 0 {
		if b.joypad&JoypA != 0 {
			newLower &^= 0x01
		}
		if b.joypad&JoypB != 0 {
			newLower &^= 0x02
		}
		if b.joypad&JoypSelectBtn != 0 {
			newLower &^= 0x04
		}
		if b.joypad&JoypStart != 0 {
			newLower &^= 0x08
		}
	}
	falling := b.joypLower4 &^ newLower
	if falling != 0 {
		b.ifReg |= 1 << 4
	}
	b.joypLower4 = newLower
}

// --- Save/Load state ---
type busState struct {
	WRAM      [0x2000]byte
	HRAM      [0x7F]byte
	IE, IF    byte
	JoypSel   byte
	Joypad    byte
	JoypL4    byte
	DIV       byte
	TIMA      byte
	TMA       byte
	TAC       byte
	TIMARelay int
	SB, SC    byte
	SerialOn  bool
	SerialBit int
	SerialTmr int
	DivInt    uint16
	DMA       byte
	DMAActive bool
	DMASrc    uint16
	DMAIdx    int
	BootEn    bool
}

func (b *Bus) SaveState() []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	s := busState{
		WRAM: b.wram, HRAM: b.hram,
		IE: b.ie, IF: b.ifReg,
		JoypSel: b.joypSelect, Joypad: b.joypad, JoypL4: b.joypLower4,
		DIV: b.div, TIMA: b.tima, TMA: b.tma, TAC: b.tac, TIMARelay: b.timaReloadDelay,
		SB: b.sb, SC: b.sc, SerialOn: b.serialActive, SerialBit: b.serialBits, SerialTmr: b.serialTimer,
		DivInt: b.divInternal,
		DMA:    b.dma, DMAActive: b.dmaActive, DMASrc: b.dmaSrc, DMAIdx: b.dmaIndex,
		BootEn: b.bootEnabled,
	}
	_ = enc.Encode(s)
	if b.ppu != nil {
		_ = enc.Encode(b.ppu.SaveState())
	} else {
		_ = enc.Encode([]byte(nil))
	}
	if b.apu != nil {
		_ = enc.Encode(b.apu.SaveState())
	} else {
		_ = enc.Encode([]byte(nil))
	}
	if bb, ok := b.cart.(interface{ SaveState() []byte }); ok {
		_ = enc.Encode(bb.SaveState())
	} else {
		_ = enc.Encode([]byte(nil))
	}
	return buf.Bytes()
}

func (b *Bus) LoadState(data []byte) {
	dec := gob.NewDecoder(bytes.NewReader(data))
	var s busState
	if err := dec.Decode(&s); err != nil {
		return
	}
	b.wram = s.WRAM
	b.hram = s.HRAM
	b.ie, b.ifReg = s.IE, s.IF
	b.joypSelect, b.joypad, b.joypLower4 = s.JoypSel, s.Joypad, s.JoypL4
	b.div, b.tima, b.tma, b.tac, b.timaReloadDelay = s.DIV, s.TIMA, s.TMA, s.TAC, s.TIMARelay
	b.sb, b.sc = s.SB, s.SC
	b.serialActive, b.serialBits, b.serialTimer = s.SerialOn, s.SerialBit, s.SerialTmr
	b.divInternal = s.DivInt
	b.dma, b.dmaActive, b.dmaSrc, b.dmaIndex = s.DMA, s.DMAActive, s.DMASrc, s.DMAIdx
	b.bootEnabled = s.BootEn

	var ps []byte
	if err := dec.Decode(&ps); err == nil && b.ppu != nil {
		b.ppu.LoadState(ps)
	}
	var as []byte
	if err := dec.Decode(&as); err == nil && b.apu != nil {
		b.apu.LoadState(as)
	}
	var cs []byte
	if err := dec.Decode(&cs); err == nil {
		if bb, ok := b.cart.(interface{ LoadState([]byte) }); ok {
			bb.LoadState(cs)
		}
	}
}
