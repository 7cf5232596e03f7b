package seq

import (
	"fmt"

	"github.com/itohio/goafe/pkg/afe"
)

// Command is one 32-bit sequencer instruction.
type Command uint32

const (
	cmdWriteBit   = 1 << 31
	cmdTimeoutBit = 1 << 30
	cmdRegShift   = 24
	cmdRegMask    = 0x7F
	cmdDataMask   = 0xFFFFFF
	cmdClockMask  = 0x3FFFFFFF

	// Sequencer writes reach the AFE block only.
	writableBase = afe.RegAFECon
	writableLast = writableBase + cmdRegMask<<2
)

// Kind of a decoded command.
type Kind uint8

const (
	KindWait Kind = iota
	KindTimeout
	KindWrite
)

// SettleClocks is the wait inserted after a stimulus write.
const SettleClocks = 10

// Writable reports whether a register can be written by the sequencer.
func Writable(reg uint32) bool {
	return reg >= writableBase && reg <= writableLast && reg&3 == 0
}

// Write encodes a register write. Only the low 24 data bits are carried.
func Write(reg, data uint32) Command {
	return Command(cmdWriteBit | ((reg>>2)&cmdRegMask)<<cmdRegShift | data&cmdDataMask)
}

// Wait encodes a delay of the given number of system clocks.
func Wait(clocks uint32) Command {
	return Command(clocks & cmdClockMask)
}

// Timeout encodes a sequence timeout counter start.
func Timeout(clocks uint32) Command {
	return Command(cmdTimeoutBit | clocks&cmdClockMask)
}

// Sleep asks the device to go back to sleep at the end of a slot.
func Sleep() Command {
	return Write(afe.RegSeqTrigSleep, 1)
}

// Kind returns the instruction kind.
func (c Command) Kind() Kind {
	switch {
	case c&cmdWriteBit != 0:
		return KindWrite
	case c&cmdTimeoutBit != 0:
		return KindTimeout
	}
	return KindWait
}

// Reg returns the register address of a write.
func (c Command) Reg() uint32 {
	return writableBase | (uint32(c)>>cmdRegShift&cmdRegMask)<<2
}

// Data returns the data field of a write.
func (c Command) Data() uint32 {
	return uint32(c) & cmdDataMask
}

// Clocks returns the clock count of a wait or timeout.
func (c Command) Clocks() uint32 {
	return uint32(c) & cmdClockMask
}

func (c Command) String() string {
	switch c.Kind() {
	case KindWrite:
		return fmt.Sprintf("WR %s 0x%06x", regName(c.Reg()), c.Data())
	case KindTimeout:
		return fmt.Sprintf("TIMEOUT %d", c.Clocks())
	}
	return fmt.Sprintf("WAIT %d", c.Clocks())
}

var regNames = map[uint32]string{
	afe.RegAFECon:       "AFECON",
	afe.RegWGFCW:        "WGFCW",
	afe.RegWGAmplitude:  "WGAMPLITUDE",
	afe.RegSeqTrigSleep: "SEQTRGSLP",
	afe.RegLPDACData0:   "LPDACDAT0",
	afe.RegTempSens:     "TEMPSENS",
	afe.RegSeq0Info:     "SEQ0INFO",
	afe.RegSeq1Info:     "SEQ1INFO",
	afe.RegSeq2Info:     "SEQ2INFO",
	afe.RegSeq3Info:     "SEQ3INFO",
}

func regName(reg uint32) string {
	if n, ok := regNames[reg]; ok {
		return n
	}
	return fmt.Sprintf("0x%04x", reg)
}

// RegWrite is one register write inside a compiled block.
type RegWrite struct {
	Addr uint32
	Val  uint32
}

func words(cmds []Command) []uint32 {
	out := make([]uint32, len(cmds))
	for i, c := range cmds {
		out[i] = uint32(c)
	}
	return out
}
