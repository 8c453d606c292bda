package emu

// Config contains settings that affect emulation behavior.
type Config struct {
	Trace        bool // log CPU instructions
	LimitFPS     bool // throttle to ~60 Hz (useful for headless test mode)
	UseFetcherBG bool // render BG/window via the dot-stepped fetcher/FIFO path rather than the classic direct decode
	CGBCompat    bool // boot as if a GBC is applying its DMG compatibility palette
}
