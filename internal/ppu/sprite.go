package ppu

// Sprite is a single OAM entry, already resolved to screen coordinates: X
// and Y are the sprite's top-left pixel on the 160x144 screen (the OAM
// byte's +8/+16 offsets have already been subtracted out by the caller).
type Sprite struct {
	X, Y     int
	Tile     byte
	Attr     byte // bit7 BG-priority, bit6 Y-flip, bit5 X-flip, bit4 palette (OBP0/OBP1)
	OAMIndex int
}

const (
	spriteAttrPriority = 1 << 7
	spriteAttrYFlip    = 1 << 6
	spriteAttrXFlip    = 1 << 5
	spriteAttrPalette  = 1 << 4
)

// ScanOAM walks raw OAM bytes and returns up to 10 sprites that intersect
// scanline ly, in hardware scan order (lowest OAM index first). tall selects
// 8x16 sprite mode (LCDC bit 2).
func ScanOAM(oam []byte, ly byte, tall bool) []Sprite {
	height := 8
	if tall {
		height = 16
	}
	var out []Sprite
	for i := 0; i+3 < len(oam) && len(out) < 10; i += 4 {
		oamY := int(oam[i]) - 16
		oamX := int(oam[i+1]) - 8
		tile := oam[i+2]
		attr := oam[i+3]
		if int(ly) < oamY || int(ly) >= oamY+height {
			continue
		}
		if tall {
			tile &^= 0x01
		}
		out = append(out, Sprite{X: oamX, Y: oamY, Tile: tile, Attr: attr, OAMIndex: i / 4})
	}
	return out
}

// ComposeSpriteLine renders sprite pixels for scanline ly onto a 160-wide
// row, given the already-computed BG/window color indices for priority
// comparisons against the BG-priority attribute bit. A returned value of 0
// means no sprite pixel is visible at that column (either no sprite covers
// it, the sprite pixel is transparent, or it lost to the BG-priority bit).
func ComposeSpriteLine(mem VRAMReader, sprites []Sprite, ly byte, bgColorIndices [160]byte, tall bool) [160]byte {
	var out [160]byte
	var outPrio [160]int // x-coordinate of the sprite currently drawn at this column; lower wins
	var outOAM [160]int
	for i := range outPrio {
		outPrio[i] = 1 << 30
		outOAM[i] = 1 << 30
	}

	height := 8
	if tall {
		height = 16
	}

	for _, s := range sprites {
		row := int(ly) - s.Y
		if row < 0 || row >= height {
			continue
		}
		if s.Attr&spriteAttrYFlip != 0 {
			row = height - 1 - row
		}
		tile := s.Tile
		if tall {
			if row >= 8 {
				tile |= 0x01
				row -= 8
			} else {
				tile &^= 0x01
			}
		}
		base := 0x8000 + uint16(tile)*16 + uint16(row)*2
		lo := mem.Read(base)
		hi := mem.Read(base + 1)

		for px := 0; px < 8; px++ {
			x := s.X + px
			if x < 0 || x >= 160 {
				continue
			}
			bit := px
			if s.Attr&spriteAttrXFlip == 0 {
				bit = 7 - px
			}
			ci := ((hi>>uint(bit))&1)<<1 | ((lo >> uint(bit)) & 1)
			if ci == 0 {
				continue
			}
			// Priority: the sprite with the lowest X wins; ties break by
			// the lowest OAM index.
			if s.X > outPrio[x] || (s.X == outPrio[x] && s.OAMIndex >= outOAM[x]) {
				continue
			}
			if s.Attr&spriteAttrPriority != 0 && bgColorIndices[x] != 0 {
				// BG-priority bit hides the sprite behind a non-zero BG
				// pixel, but still claims priority so a lower-priority
				// sprite underneath can't show through either.
				outPrio[x] = s.X
				outOAM[x] = s.OAMIndex
				out[x] = 0
				continue
			}
			outPrio[x] = s.X
			outOAM[x] = s.OAMIndex
			if s.Attr&spriteAttrPalette != 0 {
				out[x] = 0x40 | ci // high bit marks OBP1 for the palette step
			} else {
				out[x] = ci
			}
		}
	}
	return out
}
