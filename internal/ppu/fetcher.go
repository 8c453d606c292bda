package ppu

// VRAMReader provides read-only access for the fetcher or scanline helpers.
// It abstracts how VRAM bytes are fetched (tests vs. live PPU).
type VRAMReader interface {
	Read(addr uint16) byte
}

// fifo is a simple ring buffer for 2-bit color indices (0..3).
type fifo struct {
	buf  [32]byte // room for several tiles
	head int
	tail int
	size int
}

func (q *fifo) Clear()   { q.head, q.tail, q.size = 0, 0, 0 }
func (q *fifo) Len() int { return q.size }
func (q *fifo) Push(ci byte) bool {
	if q.size == len(q.buf) {
		return false
	}
	q.buf[q.tail] = ci & 0x03
	q.tail = (q.tail + 1) % len(q.buf)
	q.size++
	return true
}
func (q *fifo) Pop() (byte, bool) {
	if q.size == 0 {
		return 0, false
	}
	v := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return v, true
}

// fetchState names the sub-states of the background/window pixel fetcher,
// each advancing by a fixed number of dots (spec.md §9).
type fetchState int

const (
	FetchTileNumber fetchState = iota
	FetchTileDataLow
	FetchTileDataHigh
	Push
)

// bgFetcher steps through FetchTileNumber -> FetchTileDataLow ->
// FetchTileDataHigh -> Push to load one tile row (8 pixels) into the FIFO.
// FetchTileNumber/Low/High each hold for 2 dots; Push holds for 1 dot per
// attempt and stalls there (without re-reading VRAM) until the FIFO has room
// for a full row, matching the real fetcher's behavior of parking mid-tile
// when the FIFO can't accept a push.
type bgFetcher struct {
	mem           VRAMReader
	fifo          *fifo
	mapBase       uint16 // 0x9800 or 0x9C00
	tileData8000  bool   // true: 0x8000 addressing; false: 0x8800 signed
	tileIndexAddr uint16 // tile index address within map
	fineY         byte   // 0..7 within tile

	state       fetchState
	dotsInState int
	tileNum     byte
	lo, hi      byte
}

func newBGFetcher(mem VRAMReader, f *fifo) *bgFetcher { return &bgFetcher{mem: mem, fifo: f} }

// Configure sets tilemap and addressing mode and restarts the state machine
// at FetchTileNumber for the next tile row.
func (fch *bgFetcher) Configure(mapBase uint16, tileData8000 bool, tileIndexAddr uint16, fineY byte) {
	fch.mapBase = mapBase
	fch.tileData8000 = tileData8000
	fch.tileIndexAddr = tileIndexAddr
	fch.fineY = fineY & 7
	fch.state = FetchTileNumber
	fch.dotsInState = 0
}

// tileDataBase resolves the VRAM address of the tile row's low byte, once
// the tile number has been latched by FetchTileNumber.
func (fch *bgFetcher) tileDataBase() uint16 {
	if fch.tileData8000 {
		return 0x8000 + uint16(fch.tileNum)*16 + uint16(fch.fineY)*2
	}
	return 0x9000 + uint16(int8(fch.tileNum))*16 + uint16(fch.fineY)*2
}

// Step advances the fetcher by exactly one dot, reading VRAM and pushing
// pixels only on the dot each sub-state completes on.
func (fch *bgFetcher) Step() {
	switch fch.state {
	case FetchTileNumber:
		fch.dotsInState++
		if fch.dotsInState >= 2 {
			fch.tileNum = fch.mem.Read(fch.tileIndexAddr)
			fch.state, fch.dotsInState = FetchTileDataLow, 0
		}
	case FetchTileDataLow:
		fch.dotsInState++
		if fch.dotsInState >= 2 {
			fch.lo = fch.mem.Read(fch.tileDataBase())
			fch.state, fch.dotsInState = FetchTileDataHigh, 0
		}
	case FetchTileDataHigh:
		fch.dotsInState++
		if fch.dotsInState >= 2 {
			fch.hi = fch.mem.Read(fch.tileDataBase() + 1)
			fch.state, fch.dotsInState = Push, 0
		}
	case Push:
		if fch.fifo.Len() > len(fch.fifo.buf)-8 {
			return // FIFO has no room for a full row yet; park here and retry
		}
		for px := 0; px < 8; px++ {
			bit := 7 - byte(px)
			ci := ((fch.hi>>bit)&1)<<1 | ((fch.lo >> bit) & 1)
			_ = fch.fifo.Push(ci)
		}
		fch.state, fch.dotsInState = FetchTileNumber, 0
	}
}

// Done reports whether the fetcher just completed a Push and is parked at
// the start of a fresh FetchTileNumber.
func (fch *bgFetcher) Done() bool { return fch.state == FetchTileNumber && fch.dotsInState == 0 }

// Fetch drives the state machine to completion for one tile row. Callers
// that render a full scanline in one pass (rather than dot-by-dot) use this
// to get the same pixels the dot-stepped machine would produce.
func (fch *bgFetcher) Fetch() {
	fch.state, fch.dotsInState = FetchTileNumber, 0
	fch.Step()
	for !fch.Done() {
		fch.Step()
	}
}
