package emu

import (
	"bytes"
	"encoding/gob"
)

// machineSnapshot captures the pieces of Machine state that live outside
// the Bus (which already serializes PPU/APU/cartridge state itself via
// SaveState/LoadState) so Restore can put a Machine back exactly as it was.
type machineSnapshot struct {
	A, F                   byte
	B, C                   byte
	D, E                   byte
	H, L                   byte
	SP, PC                 uint16
	IME                    bool
	Halted                 bool
	PaletteID              int
	BusState               []byte
}

// encodeSnapshot serializes CPU registers, the selected palette, and the
// full Bus/PPU/APU/cartridge state into one gob-encoded blob.
func encodeSnapshot(m *Machine) []byte {
	s := machineSnapshot{
		A: m.cpu.A, F: m.cpu.F,
		B: m.cpu.B, C: m.cpu.C,
		D: m.cpu.D, E: m.cpu.E,
		H: m.cpu.H, L: m.cpu.L,
		SP: m.cpu.SP, PC: m.cpu.PC,
		IME:       m.cpu.IME,
		Halted:    m.cpu.Halted(),
		PaletteID: m.paletteID,
		BusState:  m.bus.SaveState(),
	}
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(s)
	return buf.Bytes()
}

// decodeSnapshot restores a blob produced by encodeSnapshot onto m. The
// cartridge currently loaded on m supplies the ROM bytes; only RAM/registers
// are overwritten.
func decodeSnapshot(m *Machine, data []byte) error {
	var s machineSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	m.cpu.A, m.cpu.F = s.A, s.F
	m.cpu.B, m.cpu.C = s.B, s.C
	m.cpu.D, m.cpu.E = s.D, s.E
	m.cpu.H, m.cpu.L = s.H, s.L
	m.cpu.SP, m.cpu.PC = s.SP, s.PC
	m.cpu.IME = s.IME
	m.cpu.SetHalted(s.Halted)
	m.paletteID = s.PaletteID
	m.bus.LoadState(s.BusState)
	return nil
}
