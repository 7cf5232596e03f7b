package afe

import "github.com/chewxy/math32"

// Register addresses.
const (
	RegADIID = 0x0400 // Chip vendor ID, reads ChipID

	RegAGPIOCon  = 0x0000
	RegAGPIOOen  = 0x0004
	RegWUPTCon   = 0x0800
	RegSeqOrder  = 0x0804
	RegSeq0WupL  = 0x0808
	RegSeq0WupH  = 0x080C
	RegSeq0SlpL  = 0x0810
	RegSeq0SlpH  = 0x0814
	wuptSlotStep = 0x10

	RegAFECon        = 0x2000
	RegSeqCon        = 0x2004
	RegFIFOCon       = 0x2008
	RegWGFCW         = 0x2030
	RegWGAmplitude   = 0x203C
	RegADCFilterCon  = 0x2044
	RegDataFIFORead  = 0x206C
	RegCmdFIFOWrite  = 0x2070
	RegDFTCon        = 0x20D0
	RegSeqSleepLock  = 0x2118
	RegSeqTrigSleep  = 0x211C
	RegLPDACData0    = 0x2120
	RegLPDACCon0     = 0x2128
	RegTempSens      = 0x2174
	RegSeq0Info      = 0x21CC
	RegSeq2Info      = 0x21D0
	RegCmdFIFOWAddr  = 0x21D4
	RegCmdDataCon    = 0x21D8
	RegDataFIFOThres = 0x21E0
	RegSeq3Info      = 0x21E4
	RegSeq1Info      = 0x21E8
	RegFIFOCntSta    = 0x2200

	RegINTCClr   = 0x3004
	RegINTCSel0  = 0x3008
	RegINTCSel1  = 0x300C
	RegINTCFlag0 = 0x3010
)

// ChipID is the value of RegADIID on a responsive device.
const ChipID = 0x4144

// AFECON bits.
const (
	AFEConHPRefPwr   = 0x20
	AFEConADCPwr     = 0x80
	AFEConADCConv    = 0x100
	AFEConHSTIAPwr   = 0x800
	AFEConTempSPwr   = 0x1000
	AFEConTempConv   = 0x2000
	AFEConWG         = 0x4000
	AFEConDFT        = 0x8000
	AFEConSinc2Notch = 0x10000
	AFEConHSDACPwr   = 0x80000
)

// Sleep key values for RegSeqSleepLock.
const (
	SleepKeyLock   = 0x00000
	SleepKeyUnlock = 0xA47E5
)

const (
	fifoConEnable   = 1 << 11
	fifoConSrcShift = 13
	seqConEnable    = 1
	wuptConEnable   = 1
	lpdacPowerDown  = 1 << 1
	lpdacRefEnable  = 1
	cmdDataSeq2K    = 0x1 // Command memory mode: 2 KB sequencer, rest FIFO
)

// SeqMemoryWords is the sequencer memory available in the 2 KB command
// memory configuration.
const SeqMemoryWords = 512

// Interrupt is a mask of AFE interrupt sources.
type Interrupt uint32

const (
	IntADCResult     Interrupt = 1 << 0
	IntDFTResult     Interrupt = 1 << 1
	IntEndSequence   Interrupt = 1 << 15
	IntDataFIFOFull  Interrupt = 1 << 23
	IntFIFOThreshold Interrupt = 1 << 25
	IntFIFOOverflow  Interrupt = 1 << 26
	IntAll           Interrupt = 0xFFFFFFFF
)

// Slot identifies one of the four sequencer program slots.
type Slot uint8

const (
	Slot0 Slot = iota
	Slot1
	Slot2
	Slot3
)

// Slot roles. Only two slots can be relinked by a running program without
// overwriting the one currently armed, so stimulus updates alternate between
// SlotStimulusA and SlotStimulusB while SlotAcquire runs conversions.
const (
	SlotAcquire   = Slot0
	SlotStimulusA = Slot1
	SlotStimulusB = Slot2
	NumSlots      = 4
)

// InfoReg returns the SEQxINFO register for the slot.
func (s Slot) InfoReg() uint32 {
	switch s {
	case Slot0:
		return RegSeq0Info
	case Slot1:
		return RegSeq1Info
	case Slot2:
		return RegSeq2Info
	default:
		return RegSeq3Info
	}
}

// SlotOfInfoReg reports which slot a SEQxINFO register belongs to.
func SlotOfInfoReg(addr uint32) (Slot, bool) {
	switch addr {
	case RegSeq0Info:
		return Slot0, true
	case RegSeq1Info:
		return Slot1, true
	case RegSeq2Info:
		return Slot2, true
	case RegSeq3Info:
		return Slot3, true
	}
	return 0, false
}

// SeqInfo is the entry point of a sequencer slot: start address and length
// in program memory words.
type SeqInfo struct {
	Addr uint32
	Len  uint32
}

// Word packs the info into the SEQxINFO register layout.
func (i SeqInfo) Word() uint32 {
	return (i.Len&0x7FF)<<16 | i.Addr&0x7FF
}

// ParseSeqInfo unpacks a SEQxINFO register value.
func ParseSeqInfo(v uint32) SeqInfo {
	return SeqInfo{Addr: v & 0x7FF, Len: (v >> 16) & 0x7FF}
}

// LPDAC scaling. The 12-bit code spans 2.2 V with mid-scale at 0 V across
// the cell.
const (
	lpdacMinMV   = 200.0
	lpdacMaxMV   = 2400.0
	lpdacLSBmV   = (lpdacMaxMV - lpdacMinMV) / 4096
	vzeroMV      = 1100.0
	vzeroLSBmV   = (lpdacMaxMV - lpdacMinMV) / 64
	MaxPotential = float32(1.1)
)

// LPDACCode converts a cell potential (V, working electrode against Vzero)
// into the 12-bit LPDAC code. Potentials outside ±MaxPotential are invalid.
func LPDACCode(potential float32) (uint32, error) {
	if math32.IsNaN(potential) || math32.Abs(potential) > MaxPotential+1e-6 {
		return 0, ErrParameterInvalid
	}
	mv := vzeroMV + potential*1000
	code := math32.Round(mv / lpdacLSBmV)
	if code > 4095 {
		code = 4095
	}
	if code < 0 {
		code = 0
	}
	return uint32(code), nil
}

// LPDACPotential converts a 12-bit LPDAC code back into a cell potential.
func LPDACPotential(code uint32) float32 {
	return float32(code&0xFFF)*lpdacLSBmV/1000 - vzeroMV/1000
}

// VzeroCode returns the 6-bit Vzero code for a bias voltage (V).
func VzeroCode(v float32) uint32 {
	code := math32.Round((v*1000 - lpdacMinMV) / vzeroLSBmV)
	if code < 0 {
		return 0
	}
	if code > 63 {
		return 63
	}
	return uint32(code)
}

// High-speed waveform generator scaling.
const (
	wgClockHz       = 16e6
	wgFCWBits       = 30
	wgFCWMask       = 1<<24 - 1
	hsdacFullScaleV = float32(0.8)
	wgAmplitudeMax  = 2047
)

// WGFrequencyWord returns the waveform generator frequency control word.
func WGFrequencyWord(freq float32) (uint32, error) {
	if math32.IsNaN(freq) || freq <= 0 || freq > 200e3 {
		return 0, ErrParameterInvalid
	}
	word := math32.Round(freq * float32(1<<wgFCWBits) / wgClockHz)
	return uint32(word) & wgFCWMask, nil
}

// WGFrequency converts a frequency control word back into Hz.
func WGFrequency(word uint32) float32 {
	return float32(word&wgFCWMask) * wgClockHz / float32(1<<wgFCWBits)
}

// WGAmplitudeCode converts a sine amplitude (V peak) into the generator code.
func WGAmplitudeCode(amplitude float32) (uint32, error) {
	if math32.IsNaN(amplitude) || amplitude < 0 || amplitude > hsdacFullScaleV {
		return 0, ErrParameterInvalid
	}
	return uint32(math32.Round(amplitude / hsdacFullScaleV * wgAmplitudeMax)), nil
}

// FIFO words carry a 16-bit result and a 7-bit sequence/channel tag.
const (
	fifoDataMask   = 0xFFFF
	fifoTagShift   = 16
	fifoTagMask    = 0x7F
	ADCMidScale    = 0x8000
	TagADC         = 0x01
	TagDFTReal     = 0x02
	TagDFTImag     = 0x03
	TagTemperature = 0x04
)

// FIFOWord builds a FIFO word from a tag and a result.
func FIFOWord(tag uint8, data uint16) uint32 {
	return uint32(tag&fifoTagMask)<<fifoTagShift | uint32(data)
}

// SplitFIFOWord returns the tag and the result of a FIFO word.
func SplitFIFOWord(w uint32) (tag uint8, data uint16) {
	return uint8((w >> fifoTagShift) & fifoTagMask), uint16(w & fifoDataMask)
}
