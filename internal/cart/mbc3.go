package cart

import (
	"bytes"
	"encoding/gob"
	"time"
)

// nowUnix is a seam for tests to control wall-clock time.
var nowUnix = func() int64 { return time.Now().Unix() }

// MBC3 implements ROM/RAM banking plus the MBC3 real-time clock.
// Banking behavior:
// - 0000-1FFF: RAM/RTC enable (0x0A in low nibble)
// - 2000-3FFF: ROM bank, 7 bits (0 maps to 1)
// - 4000-5FFF: RAM bank 0-3, or RTC register select 0x08-0x0C
// - 6000-7FFF: latch clock on a 0x00->0x01 write
// - A000-BFFF: external RAM, or the latched RTC register, depending on the
//   4000-5FFF selection
//
// The RTC does not tick on emulated T-cycles; its registers are derived
// lazily from the wall-clock delta whenever the cartridge is accessed, then
// folded back into the stored fields. This mirrors how the real chip keeps
// time against an independent oscillator rather than the CPU clock.
type MBC3 struct {
	rom []byte
	ram []byte

	ramEnabled bool
	romBank    byte // 7 bits (1..127)
	ramBank    byte // 0..3
	regSelect  byte // 0x08-0x0C when an RTC register is selected, else 0

	latchState byte // last byte written to 6000-7FFF, for edge detection

	rtcSec  byte
	rtcMin  byte
	rtcHour byte
	rtcDay  uint16 // 9-bit day counter (bit 8 in DH)
	rtcHalt bool
	rtcCarry bool

	latchedSec  byte
	latchedMin  byte
	latchedHour byte
	latchedDay  uint16
	latchedHalt bool
	latchedCarry bool

	lastRTCWallSec int64
}

func NewMBC3(rom []byte, ramSize int) *MBC3 {
	m := &MBC3{rom: rom}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	m.romBank = 1
	m.lastRTCWallSec = nowUnix()
	return m
}

// advanceRTC folds the elapsed wall-clock time since the last access into
// the RTC registers, honoring the halt flag and day-counter overflow/carry.
func (m *MBC3) advanceRTC() {
	if m.rtcHalt {
		m.lastRTCWallSec = nowUnix()
		return
	}
	now := nowUnix()
	delta := now - m.lastRTCWallSec
	if delta <= 0 {
		return
	}
	m.lastRTCWallSec = now

	total := int64(m.rtcSec) + int64(m.rtcMin)*60 + int64(m.rtcHour)*3600 + int64(m.rtcDay&0x1FF)*86400
	total += delta

	const daySecs = 86400
	days := total / daySecs
	rem := total % daySecs

	m.rtcSec = byte(rem % 60)
	rem /= 60
	m.rtcMin = byte(rem % 60)
	rem /= 60
	m.rtcHour = byte(rem % 24)

	if days > 0x1FF {
		m.rtcCarry = true
		days %= 0x200
	}
	m.rtcDay = uint16(days) & 0x1FF
}

func (m *MBC3) latchRegisters() {
	m.latchedSec = m.rtcSec
	m.latchedMin = m.rtcMin
	m.latchedHour = m.rtcHour
	m.latchedDay = m.rtcDay
	m.latchedHalt = m.rtcHalt
	m.latchedCarry = m.rtcCarry
}

func (m *MBC3) Read(addr uint16) byte {
	m.advanceRTC()
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		bank := int(m.romBank & 0x7F)
		if bank == 0 {
			bank = 1
		}
		off := bank*0x4000 + int(addr-0x4000)
		if off >= 0 && off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		if m.regSelect != 0 {
			return m.readRTCRegister()
		}
		if len(m.ram) == 0 {
			return 0xFF
		}
		rb := int(m.ramBank & 0x03)
		off := rb*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *MBC3) readRTCRegister() byte {
	switch m.regSelect {
	case 0x08:
		return m.latchedSec
	case 0x09:
		return m.latchedMin
	case 0x0A:
		return m.latchedHour
	case 0x0B:
		return byte(m.latchedDay & 0xFF)
	case 0x0C:
		var v byte
		if m.latchedDay&0x100 != 0 {
			v |= 0x01
		}
		if m.latchedHalt {
			v |= 0x40
		}
		if m.latchedCarry {
			v |= 0x80
		}
		return v
	default:
		return 0xFF
	}
}

func (m *MBC3) Write(addr uint16, value byte) {
	m.advanceRTC()
	switch {
	case addr < 0x2000:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x4000:
		v := value & 0x7F
		if v == 0 {
			v = 1
		}
		m.romBank = v
	case addr < 0x6000:
		if value <= 0x03 {
			m.ramBank = value & 0x03
			m.regSelect = 0
		} else if value >= 0x08 && value <= 0x0C {
			m.regSelect = value
		}
	case addr < 0x8000:
		if m.latchState == 0x00 && value == 0x01 {
			m.latchRegisters()
		}
		m.latchState = value
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return
		}
		if m.regSelect != 0 {
			m.writeRTCRegister(value)
			return
		}
		if len(m.ram) == 0 {
			return
		}
		rb := int(m.ramBank & 0x03)
		off := rb*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

func (m *MBC3) writeRTCRegister(value byte) {
	switch m.regSelect {
	case 0x08:
		m.rtcSec = value % 60
	case 0x09:
		m.rtcMin = value % 60
	case 0x0A:
		m.rtcHour = value % 24
	case 0x0B:
		m.rtcDay = (m.rtcDay &^ 0xFF) | uint16(value)
	case 0x0C:
		if value&0x01 != 0 {
			m.rtcDay |= 0x100
		} else {
			m.rtcDay &^= 0x100
		}
		m.rtcHalt = value&0x40 != 0
		m.rtcCarry = value&0x80 != 0
		m.lastRTCWallSec = nowUnix()
	}
}

type mbc3State struct {
	RamEnabled byte
	RomBank    byte
	RamBank    byte
	RegSelect  byte
	LatchState byte

	RtcSec  byte
	RtcMin  byte
	RtcHour byte
	RtcDay  uint16
	RtcHalt byte
	RtcCarry byte

	LatchedSec  byte
	LatchedMin  byte
	LatchedHour byte
	LatchedDay  uint16
	LatchedHalt byte
	LatchedCarry byte

	LastRTCWallSec int64
}

func boolToByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func (m *MBC3) toState() mbc3State {
	return mbc3State{
		RamEnabled: boolToByte(m.ramEnabled), RomBank: m.romBank, RamBank: m.ramBank,
		RegSelect: m.regSelect, LatchState: m.latchState,
		RtcSec: m.rtcSec, RtcMin: m.rtcMin, RtcHour: m.rtcHour, RtcDay: m.rtcDay,
		RtcHalt: boolToByte(m.rtcHalt), RtcCarry: boolToByte(m.rtcCarry),
		LatchedSec: m.latchedSec, LatchedMin: m.latchedMin, LatchedHour: m.latchedHour,
		LatchedDay: m.latchedDay, LatchedHalt: boolToByte(m.latchedHalt), LatchedCarry: boolToByte(m.latchedCarry),
		LastRTCWallSec: m.lastRTCWallSec,
	}
}

func (m *MBC3) fromState(s mbc3State) {
	m.ramEnabled = s.RamEnabled != 0
	m.romBank, m.ramBank, m.regSelect, m.latchState = s.RomBank, s.RamBank, s.RegSelect, s.LatchState
	m.rtcSec, m.rtcMin, m.rtcHour, m.rtcDay = s.RtcSec, s.RtcMin, s.RtcHour, s.RtcDay
	m.rtcHalt, m.rtcCarry = s.RtcHalt != 0, s.RtcCarry != 0
	m.latchedSec, m.latchedMin, m.latchedHour = s.LatchedSec, s.LatchedMin, s.LatchedHour
	m.latchedDay, m.latchedHalt, m.latchedCarry = s.LatchedDay, s.LatchedHalt != 0, s.LatchedCarry != 0
	m.lastRTCWallSec = s.LastRTCWallSec
}

func (m *MBC3) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(m.toState())
	return buf.Bytes()
}

func (m *MBC3) LoadState(data []byte) {
	var s mbc3State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	m.fromState(s)
}

// SaveRAM persists external RAM followed by the RTC state, so a battery
// save round-trip carries the clock along with cartridge RAM.
func (m *MBC3) SaveRAM() []byte {
	m.advanceRTC()
	var buf bytes.Buffer
	buf.Write(m.ram)
	_ = gob.NewEncoder(&buf).Encode(m.toState())
	return buf.Bytes()
}

func (m *MBC3) LoadRAM(data []byte) {
	if len(data) == 0 {
		return
	}
	if len(m.ram) > 0 && len(data) >= len(m.ram) {
		copy(m.ram, data[:len(m.ram)])
		rest := data[len(m.ram):]
		if len(rest) > 0 {
			var s mbc3State
			if err := gob.NewDecoder(bytes.NewReader(rest)).Decode(&s); err == nil {
				m.fromState(s)
			}
		}
		return
	}
	var s mbc3State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err == nil {
		m.fromState(s)
	}
}
