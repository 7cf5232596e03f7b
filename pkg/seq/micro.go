package seq

import (
	"fmt"

	"github.com/itohio/goafe/pkg/afe"
)

const (
	adcClocksPerSample = 20       // 16 MHz system clock, 800 kHz ADC
	adcSettleClocks    = 16 * 250 // 250 us after powering the ADC
	tempSettleClocks   = 16 * 50
	stopClocks         = 20
	maxWaitClocks      = cmdClockMask
)

// ConversionClocks returns the system clocks one result of the configured
// acquisition chain takes to reach the FIFO.
func ConversionClocks(d afe.DSPConfig) (uint32, error) {
	if d.Sinc3OSR == 0 {
		return 0, fmt.Errorf("%w: sinc3 oversampling rate is zero", afe.ErrParameterInvalid)
	}
	clocks := uint64(adcClocksPerSample)
	switch d.DataType {
	case afe.DataADCRaw:
	case afe.DataSinc3:
		clocks *= uint64(d.Sinc3OSR)
	case afe.DataSinc2:
		clocks *= uint64(d.Sinc3OSR) * uint64(max(d.Sinc2OSR, 1))
	case afe.DataDFT:
		clocks *= uint64(d.Sinc3OSR) * uint64(max(d.DFTPoints, 1))
	default:
		return 0, fmt.Errorf("%w: data type %d", afe.ErrParameterInvalid, d.DataType)
	}
	clocks += clocks / 8 // pipeline latency
	if clocks > maxWaitClocks {
		return 0, fmt.Errorf("%w: conversion of %d clocks does not fit a wait", afe.ErrParameterInvalid, clocks)
	}
	return uint32(clocks), nil
}

// Acquisition describes the acquisition micro-program.
type Acquisition struct {
	// AFECON bits kept on for the configured analog path.
	Base uint32
	// Extra AFECON bits during the conversion, e.g. waveform generator and
	// DFT for impedance measurements.
	Convert uint32
	DSP     afe.DSPConfig
}

// CompileAcquisition emits the acquisition program and registers it on
// afe.SlotAcquire: power the ADC, settle, convert, wait for the result,
// stop, sleep.
func CompileAcquisition(a *Arena, acq Acquisition) (uint32, error) {
	conv, err := ConversionClocks(acq.DSP)
	if err != nil {
		return 0, err
	}
	on := acq.Base | afe.AFEConADCPwr
	cmds := []Command{
		Write(afe.RegAFECon, on),
		Wait(adcSettleClocks),
		Write(afe.RegAFECon, on|acq.Convert|afe.AFEConADCConv),
		Wait(conv),
		Write(afe.RegAFECon, on),
		Sleep(),
	}
	return emitSlot(a, afe.SlotAcquire, cmds)
}

// CompileTemperature emits the temperature sensor program on
// afe.SlotAcquire.
func CompileTemperature(a *Arena, d afe.DSPConfig) (uint32, error) {
	conv, err := ConversionClocks(d)
	if err != nil {
		return 0, err
	}
	on := uint32(afe.AFEConHPRefPwr | afe.AFEConADCPwr | afe.AFEConTempSPwr)
	cmds := []Command{
		Write(afe.RegAFECon, on),
		Wait(tempSettleClocks),
		Write(afe.RegAFECon, on|afe.AFEConTempConv|afe.AFEConADCConv),
		Wait(conv),
		Write(afe.RegAFECon, on),
		Wait(stopClocks),
		Sleep(),
	}
	return emitSlot(a, afe.SlotAcquire, cmds)
}

func emitSlot(a *Arena, slot afe.Slot, cmds []Command) (uint32, error) {
	addr, err := a.Emit(cmds)
	if err != nil {
		return 0, err
	}
	a.Register(slot, afe.SeqInfo{Addr: addr, Len: uint32(len(cmds))})
	return addr, nil
}
