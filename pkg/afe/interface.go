package afe

import (
	"fmt"
	"strings"
)

// DefaultWakeRetries bounds the register reads used to wake the device.
const DefaultWakeRetries = 10

// Device defines the register level access to an AFE (real or mocked).
// Implementations serialise calls; the device has a single register set and
// a single FIFO.
type Device interface {
	// Wake reads the device until it responds and returns the number of
	// attempts used. A value above maxRetries means the device did not wake.
	Wake(maxRetries int) (int, error)
	LockSleep(lock bool) error

	FIFOCount() (int, error)
	ReadFIFO(dst []uint32) error
	WriteReg(addr, val uint32) error
	WriteProgram(addr uint32, words []uint32) error
	SetSequenceInfo(slot Slot, info SeqInfo) error

	ClearInterruptFlags(mask Interrupt) error
	ConfigureInterruptRouting(r InterruptRouting) error
	SetFIFOThreshold(n int) error
	ResetFIFO() error
	EnableFIFO(src FIFOSource, enable bool) error
	EnableSequencer(enable bool) error
	ConfigureWakeupTimer(s WakeupSchedule) error
	ConfigureAnalogPath(p AnalogPath) error
	ConfigureDSP(c DSPConfig) error
	PowerDown() error

	// Interrupts delivers one value per interrupt line assertion.
	Interrupts() <-chan struct{}
	Close() error
}

var _ Device = (*Chip)(nil)
var _ Device = (*Mock)(nil)

// WakeUp wakes dev using at most maxRetries attempts.
func WakeUp(dev Device, maxRetries int) error {
	attempts, err := dev.Wake(maxRetries)
	if err != nil {
		return fmt.Errorf("failed to wake device: %w", err)
	}
	if attempts > maxRetries {
		return fmt.Errorf("%w after %d attempts", ErrWakeFailed, maxRetries)
	}
	return nil
}

// FIFOSource selects which DSP stage feeds the data FIFO.
type FIFOSource uint8

const (
	FIFOSrcSinc3      FIFOSource = 0
	FIFOSrcDFT        FIFOSource = 2
	FIFOSrcSinc2Notch FIFOSource = 3
	FIFOSrcVar        FIFOSource = 4
	FIFOSrcMean       FIFOSource = 5
)

// ParseFIFOSource parses a FIFO source name as used in configuration files.
func ParseFIFOSource(s string) (FIFOSource, error) {
	switch strings.ToLower(s) {
	case "sinc3":
		return FIFOSrcSinc3, nil
	case "dft":
		return FIFOSrcDFT, nil
	case "sinc2notch":
		return FIFOSrcSinc2Notch, nil
	case "var":
		return FIFOSrcVar, nil
	case "mean":
		return FIFOSrcMean, nil
	}
	return 0, fmt.Errorf("%w: unknown fifo source %q", ErrParameterInvalid, s)
}

// DataType selects the result format written by the acquisition chain.
type DataType uint8

const (
	DataADCRaw DataType = iota
	DataSinc3
	DataSinc2
	DataDFT
)

// ParseDataType parses a data type name as used in configuration files.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(s) {
	case "adc_raw":
		return DataADCRaw, nil
	case "sinc3":
		return DataSinc3, nil
	case "sinc2":
		return DataSinc2, nil
	case "dft":
		return DataDFT, nil
	}
	return 0, fmt.Errorf("%w: unknown data type %q", ErrParameterInvalid, s)
}

// PathKind enumerates the analog signal paths the device can be set up for.
type PathKind uint8

const (
	PathLPDACToLPTIA PathKind = iota
	PathLPDACToHSTIA
	PathHSDACToHSTIA
	PathTemperature
)

func (k PathKind) String() string {
	switch k {
	case PathLPDACToLPTIA:
		return "lpdac_lptia"
	case PathLPDACToHSTIA:
		return "lpdac_hstia"
	case PathHSDACToHSTIA:
		return "hsdac_hstia"
	case PathTemperature:
		return "temperature"
	}
	return fmt.Sprintf("path(%d)", uint8(k))
}

// AFECon returns the AFECON bits that keep the path powered.
func (k PathKind) AFECon() (uint32, bool) {
	switch k {
	case PathLPDACToLPTIA:
		return AFEConHPRefPwr | AFEConADCPwr, true
	case PathLPDACToHSTIA:
		return AFEConHPRefPwr | AFEConADCPwr | AFEConHSTIAPwr, true
	case PathHSDACToHSTIA:
		return AFEConHPRefPwr | AFEConADCPwr | AFEConHSTIAPwr | AFEConHSDACPwr | AFEConWG, true
	case PathTemperature:
		return AFEConHPRefPwr | AFEConADCPwr | AFEConTempSPwr, true
	}
	return 0, false
}

// AnalogPath is the resolved analog front end setup for a technique.
type AnalogPath struct {
	Kind      PathKind
	Vzero     uint32  // 6-bit Vzero code
	Bias      uint32  // Initial 12-bit LPDAC code
	RTIA      float32 // Transimpedance resistor (Ohm)
	Amplitude uint32  // Waveform generator amplitude code, HSDAC paths only
	Frequency uint32  // Waveform generator frequency word, HSDAC paths only
}

// DSPConfig configures the ADC filter chain and the DFT block.
type DSPConfig struct {
	ADCAverage  uint32
	Sinc2OSR    uint32
	Sinc3OSR    uint32
	BypassNotch bool
	DFTPoints   uint32
	DataType    DataType
}

// InterruptRouting maps interrupt sources onto an interrupt controller and
// the GPIO that drives the host interrupt line.
type InterruptRouting struct {
	Controller uint8 // 0 or 1
	Sources    Interrupt
	GPIO       uint8
}

// Wakeup timer limits.
const (
	MaxWakeupTicks = 0xFFFFF
	MaxWakeupOrder = 8
)

// SlotTiming is the sleep and wake period for one slot, in low-frequency
// oscillator ticks.
type SlotTiming struct {
	SleepTicks uint32
	WakeTicks  uint32
}

// WakeupSchedule lists the slots run on successive wakeups and the timing
// of each slot.
type WakeupSchedule struct {
	Order  []Slot
	Timing [NumSlots]SlotTiming
}

// Validate checks the schedule against the wakeup timer limits. Every slot
// named in Order must have non-zero tick counts.
func (s WakeupSchedule) Validate() error {
	if len(s.Order) == 0 || len(s.Order) > MaxWakeupOrder {
		return fmt.Errorf("%w: wakeup order has %d entries", ErrParameterInvalid, len(s.Order))
	}
	for _, slot := range s.Order {
		if int(slot) >= NumSlots {
			return fmt.Errorf("%w: slot %d", ErrParameterInvalid, slot)
		}
		t := s.Timing[slot]
		if t.SleepTicks == 0 || t.WakeTicks == 0 {
			return fmt.Errorf("%w: slot %d has a zero tick count", ErrParameterInvalid, slot)
		}
		if t.SleepTicks > MaxWakeupTicks || t.WakeTicks > MaxWakeupTicks {
			return fmt.Errorf("%w: slot %d tick count exceeds %d", ErrParameterInvalid, slot, MaxWakeupTicks)
		}
	}
	return nil
}
