package emu

// paletteSet maps the four shade indices the PPU resolves per pixel (0
// lightest .. 3 darkest) to an RGBA color. The hardware this emulates has no
// color output; these are the same compatibility tint trick a GBC applies
// when it boots a plain DMG cartridge, offered here as a cosmetic option on
// top of the monochrome framebuffer.
type paletteSet [4][4]byte

var paletteSetNames = []string{"Green", "Sepia", "Blue", "Red", "Pastel", "Grayscale"}

var paletteSets = []paletteSet{
	{ // Green: the original DMG LCD tint
		{0x9B, 0xBC, 0x0F, 0xFF},
		{0x8B, 0xAC, 0x0F, 0xFF},
		{0x30, 0x62, 0x30, 0xFF},
		{0x0F, 0x38, 0x0F, 0xFF},
	},
	{ // Sepia
		{0xE8, 0xD9, 0xB0, 0xFF},
		{0xC2, 0xA8, 0x78, 0xFF},
		{0x7A, 0x5C, 0x3C, 0xFF},
		{0x3A, 0x2A, 0x1C, 0xFF},
	},
	{ // Blue
		{0xE0, 0xF0, 0xFF, 0xFF},
		{0x90, 0xC8, 0xF0, 0xFF},
		{0x40, 0x70, 0xB0, 0xFF},
		{0x10, 0x20, 0x50, 0xFF},
	},
	{ // Red
		{0xFF, 0xE8, 0xE8, 0xFF},
		{0xF0, 0x90, 0x90, 0xFF},
		{0xB0, 0x30, 0x30, 0xFF},
		{0x50, 0x10, 0x10, 0xFF},
	},
	{ // Pastel
		{0xFD, 0xF0, 0xE8, 0xFF},
		{0xE8, 0xC8, 0xD8, 0xFF},
		{0xA8, 0x90, 0xC0, 0xFF},
		{0x58, 0x48, 0x78, 0xFF},
	},
	{ // Grayscale
		{0xFF, 0xFF, 0xFF, 0xFF},
		{0xAA, 0xAA, 0xAA, 0xFF},
		{0x55, 0x55, 0x55, 0xFF},
		{0x00, 0x00, 0x00, 0xFF},
	},
}

func paletteRGBA(id int, shade byte) [4]byte {
	if id < 0 || id >= len(paletteSets) {
		id = len(paletteSets) - 1
	}
	return paletteSets[id][shade&0x03]
}
