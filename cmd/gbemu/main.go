package main

import (
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli"

	"github.com/mooneyes-gb/gobstep/internal/cart"
	"github.com/mooneyes-gb/gobstep/internal/emu"
	"github.com/mooneyes-gb/gobstep/internal/ui"
)

const version = "0.1.0"

func runHeadless(m *emu.Machine, frames int, pngPath, expectCRC string) error {
	if frames <= 0 {
		frames = 1
	}

	start := time.Now()
	for i := 0; i < frames; i++ {
		m.StepFrame()
	}
	dur := time.Since(start)

	fb := m.Framebuffer() // RGBA 160x144*4
	crc := crc32.ChecksumIEEE(fb)
	fps := float64(frames) / dur.Seconds()

	log.Printf("headless: frames=%d elapsed=%s fps=%.2f fb_crc32=%08x",
		frames, dur.Truncate(time.Millisecond), fps, crc)

	if pngPath != "" {
		if err := saveFramePNG(fb, 160, 144, pngPath); err != nil {
			return fmt.Errorf("write PNG: %w", err)
		}
		log.Printf("wrote %s", pngPath)
	}

	if expectCRC != "" {
		want := strings.TrimPrefix(strings.ToLower(expectCRC), "0x")
		got := fmt.Sprintf("%08x", crc)
		if got != want {
			return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
		}
	}
	return nil
}

func saveFramePNG(pix []byte, w, h int, path string) error {
	img := &image.RGBA{
		Pix:    make([]byte, len(pix)),
		Stride: 4 * w,
		Rect:   image.Rect(0, 0, w, h),
	}
	copy(img.Pix, pix)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func mustRead(path string) []byte {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	return b
}

// run executes one emulator session from a parsed CLI context. Exit codes
// follow spec.md §6: 0 normal, 1 bad ROM / load error, 2 runtime panic.
func run(c *cli.Context) (exitCode int) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("panic: %v", r)
			exitCode = 2
		}
	}()

	romPath := c.String("rom")
	var rom []byte
	if romPath != "" {
		var err error
		rom, err = os.ReadFile(romPath)
		if err != nil {
			log.Printf("read %s: %v", romPath, err)
			return 1
		}
	}
	boot := mustRead(c.String("bootrom"))

	if len(rom) >= 0x150 {
		if h, err := cart.ParseHeader(rom); err == nil {
			log.Printf("ROM: %q type=%s banks=%d ram=%dB", h.Title, h.CartTypeStr, h.ROMBanks, h.RAMSizeBytes)
		}
	}

	emuCfg := emu.Config{
		Trace:        c.Bool("trace"),
		LimitFPS:     !c.Bool("headless"),
		UseFetcherBG: true,
		CGBCompat:    c.Bool("cgb-compat"),
	}
	m := emu.New(emuCfg)
	if len(boot) >= 0x100 {
		m.SetBootROM(boot)
	}
	if len(rom) > 0 {
		if c.Bool("fastboot") {
			boot = nil
		}
		if err := m.LoadCartridge(rom, boot); err != nil {
			log.Printf("load cart: %v", err)
			return 1
		}
		if romPath != "" {
			if abs, err := filepath.Abs(romPath); err == nil {
				_ = m.LoadROMFromFile(abs)
			} else {
				_ = m.LoadROMFromFile(romPath)
			}
		}
	}

	if c.Bool("print-serial") {
		m.SetSerialWriter(os.Stdout)
	}

	var savPath string
	if c.Bool("save") && romPath != "" {
		savPath = strings.TrimSuffix(romPath, ".gb") + ".sav"
		if data, err := os.ReadFile(savPath); err == nil {
			if m.LoadBattery(data) {
				log.Printf("loaded save RAM: %s (%d bytes)", savPath, len(data))
			}
		}
	}

	if c.Bool("headless") {
		if err := runHeadless(m, c.Int("frames"), c.String("outpng"), c.String("expect")); err != nil {
			log.Print(err)
			return 1
		}
		if c.Bool("save") && savPath != "" {
			if data, ok := m.SaveBattery(); ok {
				if err := os.WriteFile(savPath, data, 0644); err == nil {
					log.Printf("wrote %s", savPath)
				}
			}
		}
		return 0
	}

	uiCfg := ui.Config{Title: "gbemu", Scale: c.Int("scale")}
	app := ui.NewApp(uiCfg, m)
	if c.Bool("debug") {
		app.EnableDebugger()
	}
	if err := app.Run(); err != nil {
		log.Print(err)
		return 2
	}
	if s, ok := any(app).(interface{ SaveSettings() }); ok {
		s.SaveSettings()
	}
	if c.Bool("save") {
		outSav := savPath
		if outSav == "" && m.ROMPath() != "" && strings.HasSuffix(strings.ToLower(m.ROMPath()), ".gb") {
			outSav = strings.TrimSuffix(m.ROMPath(), ".gb") + ".sav"
		}
		if outSav != "" {
			if data, ok := m.SaveBattery(); ok {
				if err := os.WriteFile(outSav, data, 0644); err == nil {
					log.Printf("wrote %s", outSav)
				}
			}
		}
	}
	return 0
}

func main() {
	cli.VersionFlag = cli.BoolFlag{Name: "version, V", Usage: "print the version"}
	app := cli.NewApp()
	app.Name = "gbemu"
	app.Usage = "a cycle-accurate DMG-01 Game Boy emulator"
	app.Version = version
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "rom, r", Usage: "load this ROM on start"},
		cli.BoolFlag{Name: "debug, d", Usage: "open the debugger"},
		cli.BoolFlag{Name: "fastboot, f", Usage: "skip boot ROM"},
		cli.BoolFlag{Name: "print-serial, p", Usage: "mirror serial writes to stdout"},
		cli.BoolFlag{Name: "headless", Usage: "run without a window"},

		cli.StringFlag{Name: "bootrom", Usage: "optional DMG boot ROM"},
		cli.IntFlag{Name: "scale", Value: 3, Usage: "window scale"},
		cli.BoolFlag{Name: "trace", Usage: "CPU trace log"},
		cli.BoolTFlag{Name: "save", Usage: "persist battery RAM to ROM.sav on exit and load on start"},
		cli.IntFlag{Name: "frames", Value: 300, Usage: "frames to run in headless mode"},
		cli.StringFlag{Name: "outpng", Usage: "write last framebuffer to PNG at path"},
		cli.StringFlag{Name: "expect", Usage: "assert framebuffer CRC32 (hex)"},
		cli.BoolFlag{Name: "cgb-compat", Usage: "apply the GBC compatibility tint palette to this DMG cartridge"},
	}
	app.Action = func(c *cli.Context) error {
		os.Exit(run(c))
		return nil
	}
	if err := app.Run(os.Args); err != nil {
		log.Print(err)
		os.Exit(1)
	}
}
