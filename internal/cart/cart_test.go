package cart

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCartridge_DispatchesByControllerByte(t *testing.T) {
	cases := []struct {
		name     string
		cartType byte
		want     string
	}{
		{"rom-only", 0x00, "*cart.ROMOnly"},
		{"rom-ram-battery", 0x09, "*cart.ROMOnly"},
		{"mbc1", 0x01, "*cart.MBC1"},
		{"mbc1-ram-battery", 0x03, "*cart.MBC1"},
		{"mbc3-timer-ram-battery", 0x10, "*cart.MBC3"},
		{"mbc5-ram-battery", 0x1B, "*cart.MBC5"},
		{"unknown-falls-back-to-rom-only", 0x20, "*cart.ROMOnly"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rom := buildROM("DISPATCH", tc.cartType, 0x01, 0x00, 64*1024)
			c := NewCartridge(rom)
			require.NotNil(t, c)
			require.Equal(t, tc.want, typeName(c))
		})
	}
}

func TestControllerKind_UnsupportedReturnsError(t *testing.T) {
	rom := buildROM("BADCTRL", 0xFF, 0x01, 0x00, 64*1024)
	kind, err := ControllerKind(rom)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrUnsupportedController)
	require.Empty(t, kind)
}

func TestControllerKind_KnownFamilies(t *testing.T) {
	for cartType, want := range map[byte]string{
		0x00: "NoMBC",
		0x02: "MBC1",
		0x13: "MBC3",
		0x1E: "MBC5",
	} {
		rom := buildROM("KIND", cartType, 0x01, 0x00, 64*1024)
		kind, err := ControllerKind(rom)
		require.NoError(t, err)
		require.Equal(t, want, kind)
	}
}

func typeName(c Cartridge) string {
	switch c.(type) {
	case *ROMOnly:
		return "*cart.ROMOnly"
	case *MBC1:
		return "*cart.MBC1"
	case *MBC3:
		return "*cart.MBC3"
	case *MBC5:
		return "*cart.MBC5"
	default:
		return "unknown"
	}
}
