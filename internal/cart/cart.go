// Package cart parses Game Boy cartridge headers and implements the memory
// bank controller (MBC) family that routes CPU-visible ROM/RAM accesses to
// the right bank.
package cart

import "errors"

// Cartridge is the minimal interface the bus needs for ROM/RAM banking.
// Implementations are ROM-only or one of the MBC variants. Addresses are
// CPU addresses (0x0000-0x7FFF for ROM/control, 0xA000-0xBFFF for RAM).
type Cartridge interface {
	Read(addr uint16) byte
	Write(addr uint16, value byte)

	// SaveState/LoadState serialize banking registers and RTC state (if any)
	// for machine snapshots. They do not include external RAM contents.
	SaveState() []byte
	LoadState(data []byte)
}

// BatteryBacked is implemented by cartridges with persistable external RAM
// (and, for MBC3, the real-time clock). The host writes SaveRAM's output to
// disk and feeds it back via LoadRAM on the next load.
type BatteryBacked interface {
	SaveRAM() []byte
	LoadRAM(data []byte)
}

// ErrUnsupportedController is returned when the header names a controller
// this core does not implement.
var ErrUnsupportedController = errors.New("cart: unsupported controller type")

// NewCartridge inspects the ROM header and constructs the matching
// Cartridge implementation. Unknown controller types fall back to ROM-only
// so homebrew and test ROMs without a strict header still load.
func NewCartridge(rom []byte) Cartridge {
	h, err := ParseHeader(rom)
	if err != nil {
		return NewROMOnly(rom)
	}
	switch h.CartType {
	case 0x00, 0x08, 0x09: // ROM ONLY, +RAM, +RAM+BATTERY
		return NewROMOnly(rom)
	case 0x01, 0x02, 0x03: // MBC1, MBC1+RAM, MBC1+RAM+BATTERY
		return NewMBC1(rom, h.RAMSizeBytes)
	case 0x0F, 0x10, 0x11, 0x12, 0x13: // MBC3 (+TIMER)(+RAM)(+BATTERY)
		return NewMBC3(rom, h.RAMSizeBytes)
	case 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E: // MBC5 variants
		return NewMBC5(rom, h.RAMSizeBytes)
	default:
		return NewROMOnly(rom)
	}
}

// ControllerKind reports the MBC family this core would pick for rom's
// header, for diagnostics and load-error reporting.
func ControllerKind(rom []byte) (string, error) {
	h, err := ParseHeader(rom)
	if err != nil {
		return "", err
	}
	switch h.CartType {
	case 0x00, 0x08, 0x09:
		return "NoMBC", nil
	case 0x01, 0x02, 0x03:
		return "MBC1", nil
	case 0x0F, 0x10, 0x11, 0x12, 0x13:
		return "MBC3", nil
	case 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E:
		return "MBC5", nil
	default:
		return "", ErrUnsupportedController
	}
}
