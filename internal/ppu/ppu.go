package ppu

import (
	"bytes"
	"encoding/gob"
)

// InterruptRequester is a callback signature to request IF bits (0:VBlank, 1:STAT, etc.).
type InterruptRequester func(bit int)

// PPU models VRAM/OAM, LCDC/STAT regs, LY/LYC, and basic timing.
// It exposes CPU-facing Read/Write for VRAM/OAM and PPU IO regs.
type PPU struct {
	// memory
	vram [0x2000]byte // 0x8000–0x9FFF
	oam  [0xA0]byte   // 0xFE00–0xFE9F

	// regs
	lcdc byte // FF40
	stat byte // FF41 (mode bits 0-1, coincidence flag bit2, enables bits3-6)
	scy  byte // FF42
	scx  byte // FF43
	ly   byte // FF44
	lyc  byte // FF45
	bgp  byte // FF47
	obp0 byte // FF48
	obp1 byte // FF49
	wy   byte // FF4A
	wx   byte // FF4B

	dot int // dots within current line [0..455]

	windowLine int // internal window line counter, advances only on lines the window actually draws

	mode3Len int // 172 + this line's sprite-fetch penalty, latched when mode 3 begins

	statLine bool // current level of the shared STAT interrupt line (OR of enabled sources)

	framebuffer [144][160]byte // post-palette 2-bit shade per pixel, filled one scanline at a time
	lineWinLine [144]int       // window-line value captured for each rendered scanline, for diagnostics

	req InterruptRequester

	useFetcherBG bool // true: fetch via the named-substate FIFO pipeline; false: classic direct decode
}

func New(req InterruptRequester) *PPU { return &PPU{req: req, useFetcherBG: true} }

// SetUseFetcherBG selects between the explicit fetcher/FIFO BG pipeline and
// the classic direct-decode path. Both produce identical pixels; the switch
// exists for debugging/comparison (spec.md §9's two renderer design points).
func (p *PPU) SetUseFetcherBG(v bool) { p.useFetcherBG = v }

// vramView lets the scanline/fetcher helpers read VRAM directly, bypassing
// the CPU-facing mode-3/mode-2 access blocking in CPURead: the PPU itself is
// always allowed to see its own memory while composing a scanline.
type vramView struct{ p *PPU }

func (v vramView) Read(addr uint16) byte {
	if addr >= 0x8000 && addr <= 0x9FFF {
		return v.p.vram[addr-0x8000]
	}
	return 0xFF
}

// CPURead returns bytes for VRAM, OAM, and PPU IO registers. Returns 0xFF for others.
func (p *PPU) CPURead(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
	// VRAM is inaccessible to CPU during mode 3 (return 0xFF)
	if (p.stat & 0x03) == 3 { return 0xFF }
	return p.vram[addr-0x8000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
	// OAM is inaccessible during modes 2 and 3
	m := p.stat & 0x03
	if m == 2 || m == 3 { return 0xFF }
	return p.oam[addr-0xFE00]
	case addr == 0xFF40:
		return p.lcdc
	case addr == 0xFF41:
	// On DMG, bit7 reads as 1; bit6..3 are enables; bit2 coincidence; bit1..0 mode
	return 0x80 | (p.stat & 0x7F)
	case addr == 0xFF42:
		return p.scy
	case addr == 0xFF43:
		return p.scx
	case addr == 0xFF44:
		return p.ly
	case addr == 0xFF45:
		return p.lyc
	case addr == 0xFF47:
		return p.bgp
	case addr == 0xFF48:
		return p.obp0
	case addr == 0xFF49:
		return p.obp1
	case addr == 0xFF4A:
		return p.wy
	case addr == 0xFF4B:
		return p.wx
	default:
		return 0xFF
	}
}

// CPUWrite handles writes to VRAM, OAM, and PPU IO regs. Others are ignored here.
func (p *PPU) CPUWrite(addr uint16, value byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
	if (p.stat & 0x03) == 3 { return }
	p.vram[addr-0x8000] = value
	case addr >= 0xFE00 && addr <= 0xFE9F:
	m := p.stat & 0x03
	if m == 2 || m == 3 { return }
	p.oam[addr-0xFE00] = value
	case addr == 0xFF40:
		prev := p.lcdc
		p.lcdc = value
		if (p.lcdc&0x80) == 0 && (prev&0x80) != 0 {
			// Turning LCD off resets LY/mode
			p.ly = 0
			p.dot = 0
			p.setMode(0)
			p.updateLYC()
		} else if (p.lcdc&0x80) != 0 && (prev&0x80) == 0 {
			// Turning LCD on: start at LY=0, mode 2 (OAM)
			p.ly = 0
			p.dot = 0
			p.windowLine = 0
			p.setMode(2)
			p.updateLYC()
		}
	case addr == 0xFF41:
		p.stat = (p.stat & 0x07) | (value & 0x78)
		p.updateStatLine()
	case addr == 0xFF42:
		p.scy = value
	case addr == 0xFF43:
		p.scx = value
	case addr == 0xFF44:
		p.ly = 0
		p.dot = 0
		p.updateLYC()
		if (p.lcdc & 0x80) != 0 {
			p.setMode(2)
		}
	case addr == 0xFF45:
		p.lyc = value
		p.updateLYC()
	case addr == 0xFF47:
		p.bgp = value
	case addr == 0xFF48:
		p.obp0 = value
	case addr == 0xFF49:
		p.obp1 = value
	case addr == 0xFF4A:
		p.wy = value
	case addr == 0xFF4B:
		p.wx = value
	}
}

// Tick advances PPU state by the given number of dots (CPU cycles).
func (p *PPU) Tick(cycles int) {
	if cycles <= 0 {
		return
	}
	for i := 0; i < cycles; i++ {
		if (p.lcdc & 0x80) == 0 { // LCD off
			continue
		}
		p.dot++
		// Mode scheduling
		var mode byte
		if p.ly >= 144 {
			mode = 1
		} else {
			switch {
			case p.dot < 80:
				mode = 2
			case p.dot == 80:
				p.mode3Len = 172 + p.spriteFetchPenalty()
				mode = 3
			case p.dot < 80+p.mode3Len:
				mode = 3
			default:
				mode = 0
			}
		}
		p.setMode(mode)

		if p.dot >= 456 {
			p.dot = 0
			p.ly++
			if p.ly == 144 {
				// Enter VBlank. The STAT mode-1 source is requested through
				// the shared line below, via setMode(1); only the dedicated
				// VBlank IF bit is raised directly here.
				if p.req != nil {
					p.req(0)
				}
			} else if p.ly > 153 {
				p.ly = 0
				p.windowLine = 0
			}
			p.updateLYC()
			// Set mode for new line start (dot=0)
			if p.ly >= 144 {
				p.setMode(1)
			} else {
				p.setMode(2)
			}
		}
	}
}

// spriteFetchPenalty estimates the extra dots mode 3 stalls fetching sprite
// pixels, per spec.md §4.3's "80+172+penalty" window. Each sprite the OAM
// scan selected for this line costs 11-min(5, (x+scx)%8) dots to fetch,
// mirroring the well-known DMG penalty curve; sprites sharing an alignment
// only pay once since the fetcher can reuse the fetch.
func (p *PPU) spriteFetchPenalty() int {
	if p.lcdc&0x02 == 0 {
		return 0
	}
	tall := p.lcdc&0x04 != 0
	sprites := ScanOAM(p.oam[:], p.ly, tall)
	seen := make(map[int]bool, len(sprites))
	penalty := 0
	for _, s := range sprites {
		key := ((s.X+int(p.scx))%8 + 8) % 8
		if seen[key] {
			continue
		}
		seen[key] = true
		stall := 6 + (5 - key)
		if key > 5 {
			stall = 6
		}
		penalty += stall
	}
	return penalty
}

func (p *PPU) setMode(mode byte) {
	prev := p.stat & 0x03
	if prev != mode {
		p.stat = (p.stat &^ 0x03) | (mode & 0x03)
		if mode == 0 && p.ly < 144 {
			p.renderScanline(p.ly)
		}
	}
	p.updateStatLine()
}

func (p *PPU) updateLYC() {
	if p.ly == p.lyc {
		p.stat |= 1 << 2
	} else {
		p.stat &^= 1 << 2
	}
	p.updateStatLine()
}

// updateStatLine recomputes the shared STAT interrupt line — the OR of every
// currently-enabled source (mode 0, mode 1, mode 2, LYC=LY) — and requests
// the STAT interrupt only on that line's low-to-high edge ("STAT blocking",
// spec.md §4.3), rather than once per source transition. A source that's
// already asserted when another one fires does not cause a second request.
func (p *PPU) updateStatLine() {
	mode := p.stat & 0x03
	line := (p.stat&(1<<3) != 0 && mode == 0) ||
		(p.stat&(1<<4) != 0 && mode == 1) ||
		(p.stat&(1<<5) != 0 && mode == 2) ||
		(p.stat&(1<<6) != 0 && p.stat&(1<<2) != 0)
	if line && !p.statLine {
		if p.req != nil {
			p.req(1)
		}
	}
	p.statLine = line
}

// renderScanline composes one visible line of background, window, and
// sprite pixels and stores the palette-mapped result in the framebuffer.
// It runs once per line, at the moment the PPU enters HBlank, so it always
// sees the LCDC/scroll/palette state as it stood during that line's drawing
// window rather than whatever the CPU has changed by the time the host
// reads the framebuffer.
func (p *PPU) renderScanline(ly byte) {
	lcdc := p.lcdc
	mem := vramView{p}

	var bgci [160]byte
	if lcdc&0x01 != 0 {
		mapBase := uint16(0x9800)
		if lcdc&0x08 != 0 {
			mapBase = 0x9C00
		}
		tileData8000 := lcdc&0x10 != 0
		if p.useFetcherBG {
			bgci = RenderBGScanlineUsingFetcher(mem, mapBase, tileData8000, p.scx, p.scy, ly)
		} else {
			bgci = renderBGScanlineClassic(mem, mapBase, tileData8000, p.scx, p.scy, ly)
		}
	}

	windowDrawn := false
	if lcdc&0x01 != 0 && lcdc&0x20 != 0 && ly >= p.wy && p.wx <= 166 {
		wxStart := int(p.wx) - 7
		winMapBase := uint16(0x9800)
		if lcdc&0x40 != 0 {
			winMapBase = 0x9C00
		}
		tileData8000 := lcdc&0x10 != 0
		var wci [160]byte
		if p.useFetcherBG {
			wci = RenderWindowScanlineUsingFetcher(mem, winMapBase, tileData8000, wxStart, byte(p.windowLine))
		} else {
			wci = renderWindowScanlineClassic(mem, winMapBase, tileData8000, wxStart, byte(p.windowLine))
		}
		start := wxStart
		if start < 0 {
			start = 0
		}
		for x := start; x < 160; x++ {
			bgci[x] = wci[x]
		}
		p.lineWinLine[ly] = p.windowLine
		windowDrawn = true
	} else {
		p.lineWinLine[ly] = 0
	}

	var shades [160]byte
	for x := 0; x < 160; x++ {
		shades[x] = paletteShade(p.bgp, bgci[x])
	}

	if lcdc&0x02 != 0 {
		tall := lcdc&0x04 != 0
		sprites := ScanOAM(p.oam[:], ly, tall)
		sci := ComposeSpriteLine(mem, sprites, ly, bgci, tall)
		for x := 0; x < 160; x++ {
			if sci[x] == 0 {
				continue
			}
			obp := p.obp0
			if sci[x]&0x40 != 0 {
				obp = p.obp1
			}
			shades[x] = paletteShade(obp, sci[x]&0x03)
		}
	}

	p.framebuffer[ly] = shades
	if windowDrawn {
		p.windowLine++
	}
}

// paletteShade maps a 2-bit color index through a palette register (BGP,
// OBP0, or OBP1) to the DMG shade it selects (0..3, 0 lightest).
func paletteShade(palette byte, colorIndex byte) byte {
	return (palette >> (colorIndex * 2)) & 0x03
}

// LineInfo reports diagnostics captured while rendering a given scanline.
type LineInfo struct {
	WinLine int
}

// LineRegs returns the window-line counter value used while rendering
// scanline ly, for tests and debuggers that want to verify window
// activation without poking at unexported state.
func (p *PPU) LineRegs(ly int) LineInfo {
	if ly < 0 || ly >= 144 {
		return LineInfo{}
	}
	return LineInfo{WinLine: p.lineWinLine[ly]}
}

// FrameBuffer returns the most recently composed frame as 144 rows of 160
// shade indices (0..3, 0 lightest), ready for a host-specific palette to
// turn into pixels.
func (p *PPU) FrameBuffer() [144][160]byte { return p.framebuffer }

type ppuState struct {
	VRAM [0x2000]byte
	OAM  [0xA0]byte

	LCDC, STAT, SCY, SCX, LY, LYC byte
	BGP, OBP0, OBP1, WY, WX       byte

	Dot        int
	WindowLine int
}

func (p *PPU) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(ppuState{
		VRAM: p.vram, OAM: p.oam,
		LCDC: p.lcdc, STAT: p.stat, SCY: p.scy, SCX: p.scx, LY: p.ly, LYC: p.lyc,
		BGP: p.bgp, OBP0: p.obp0, OBP1: p.obp1, WY: p.wy, WX: p.wx,
		Dot: p.dot, WindowLine: p.windowLine,
	})
	return buf.Bytes()
}

func (p *PPU) LoadState(data []byte) {
	var s ppuState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	p.vram, p.oam = s.VRAM, s.OAM
	p.lcdc, p.stat, p.scy, p.scx, p.ly, p.lyc = s.LCDC, s.STAT, s.SCY, s.SCX, s.LY, s.LYC
	p.bgp, p.obp0, p.obp1, p.wy, p.wx = s.BGP, s.OBP0, s.OBP1, s.WY, s.WX
	p.dot, p.windowLine = s.Dot, s.WindowLine
}

// Expose palettes and scroll for renderer convenience (optional helpers)
func (p *PPU) BGP() byte  { return p.bgp }
func (p *PPU) OBP0() byte { return p.obp0 }
func (p *PPU) OBP1() byte { return p.obp1 }
func (p *PPU) LCDC() byte { return p.lcdc }
func (p *PPU) SCY() byte  { return p.scy }
func (p *PPU) SCX() byte  { return p.scx }
func (p *PPU) WY() byte   { return p.wy }
func (p *PPU) WX() byte   { return p.wx }
