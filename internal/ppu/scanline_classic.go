package ppu

// renderBGScanlineClassic renders 160 BG pixels for the given LY by
// decoding each tile row directly, without going through the dot-stepped
// FetchTileNumber/FetchTileDataLow/FetchTileDataHigh/Push state machine in
// fetcher.go. It produces the same color indices as
// RenderBGScanlineUsingFetcher and exists as the simpler of the two design
// points spec.md §9 calls out; the PPU can be switched between them at
// runtime for comparison/debugging.
func renderBGScanlineClassic(mem VRAMReader, mapBase uint16, tileData8000 bool, scx, scy, ly byte) [160]byte {
	var out [160]byte
	bgY := uint16(ly) + uint16(scy)
	fineY := byte(bgY & 7)
	mapY := (bgY >> 3) & 31

	for x := 0; x < 160; x++ {
		bgX := uint16(scx) + uint16(x)
		tileX := (bgX >> 3) & 31
		fineX := byte(bgX & 7)

		tileIndexAddr := mapBase + mapY*32 + tileX
		tileNum := mem.Read(tileIndexAddr)

		var base uint16
		if tileData8000 {
			base = 0x8000 + uint16(tileNum)*16 + uint16(fineY)*2
		} else {
			base = 0x9000 + uint16(int8(tileNum))*16 + uint16(fineY)*2
		}
		lo := mem.Read(base)
		hi := mem.Read(base + 1)
		bit := 7 - fineX
		out[x] = ((hi>>bit)&1)<<1 | ((lo >> bit) & 1)
	}
	return out
}

// renderWindowScanlineClassic is the classic-path counterpart to
// RenderWindowScanlineUsingFetcher.
func renderWindowScanlineClassic(mem VRAMReader, mapBase uint16, tileData8000 bool, wxStart int, winLine byte) [160]byte {
	var out [160]byte
	if wxStart >= 160 {
		return out
	}
	if wxStart < 0 {
		wxStart = 0
	}
	mapY := (uint16(winLine) >> 3) & 31
	fineY := winLine & 7

	for x := wxStart; x < 160; x++ {
		winX := uint16(x - wxStart)
		tileX := (winX >> 3) & 31
		fineX := byte(winX & 7)

		tileIndexAddr := mapBase + mapY*32 + tileX
		tileNum := mem.Read(tileIndexAddr)

		var base uint16
		if tileData8000 {
			base = 0x8000 + uint16(tileNum)*16 + uint16(fineY)*2
		} else {
			base = 0x9000 + uint16(int8(tileNum))*16 + uint16(fineY)*2
		}
		lo := mem.Read(base)
		hi := mem.Read(base + 1)
		bit := 7 - fineX
		out[x] = ((hi>>bit)&1)<<1 | ((lo >> bit) & 1)
	}
	return out
}
