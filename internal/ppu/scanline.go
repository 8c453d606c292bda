package ppu

// RenderBGScanlineUsingFetcher renders 160 BG pixels for the given LY by
// driving the dot-stepped bgFetcher (FetchTileNumber -> FetchTileDataLow ->
// FetchTileDataHigh -> Push) one tile row at a time, same as mode 3 would
// dot-by-dot, just collapsed into a single call since this renderer composes
// a whole line at once (see renderScanline).
func RenderBGScanlineUsingFetcher(mem VRAMReader, mapBase uint16, tileData8000 bool, scx, scy, ly byte) [160]byte {
	var out [160]byte

	bgY := uint16(ly) + uint16(scy)
	fineY := byte(bgY & 7)
	mapRow := (bgY >> 3) & 31

	scrollStart := uint16(scx)
	tileCol := (scrollStart >> 3) & 31
	discard := int(scrollStart & 7)

	var q fifo
	fch := newBGFetcher(mem, &q)
	fch.Configure(mapBase, tileData8000, mapBase+mapRow*32+tileCol, fineY)
	fch.Fetch()
	for i := 0; i < discard; i++ {
		_, _ = q.Pop()
	}

	for x := 0; x < 160; x++ {
		if q.Len() == 0 {
			tileCol = (tileCol + 1) & 31
			fch.Configure(mapBase, tileData8000, mapBase+mapRow*32+tileCol, fineY)
			fch.Fetch()
		}
		ci, _ := q.Pop()
		out[x] = ci
	}
	return out
}

// RenderWindowScanlineUsingFetcher renders the window layer for one scanline
// the same way, starting output at wxStart (WX-7); columns before wxStart
// are left 0 so the caller can blend them against the BG layer it already
// composed.
func RenderWindowScanlineUsingFetcher(mem VRAMReader, mapBase uint16, tileData8000 bool, wxStart int, winLine byte) [160]byte {
	var out [160]byte
	if wxStart >= 160 {
		return out
	}
	if wxStart < 0 {
		wxStart = 0
	}

	mapRow := (uint16(winLine) >> 3) & 31
	fineY := winLine & 7
	tileCol := uint16(0)

	var q fifo
	fch := newBGFetcher(mem, &q)
	fch.Configure(mapBase, tileData8000, mapBase+mapRow*32+tileCol, fineY)
	fch.Fetch()

	for x := wxStart; x < 160; x++ {
		if q.Len() == 0 {
			tileCol = (tileCol + 1) & 31
			fch.Configure(mapBase, tileData8000, mapBase+mapRow*32+tileCol, fineY)
			fch.Fetch()
		}
		ci, _ := q.Pop()
		out[x] = ci
	}
	return out
}
