package afe

import (
	"fmt"
	"sync"
)

// Bus is the raw register transport to an AFE.
type Bus interface {
	ReadReg(addr uint32) (uint32, error)
	WriteReg(addr, val uint32) error
	ReadFIFO(dst []uint32) error
	Interrupts() <-chan struct{}
	Close() error
}

// Chip implements Device on top of a register Bus.
type Chip struct {
	bus Bus

	mu      sync.Mutex
	afecon  uint32
	fifoSrc FIFOSource
	fifoOn  bool
}

// NewChip creates a Device backed by bus.
func NewChip(bus Bus) *Chip {
	return &Chip{bus: bus}
}

// LPDACWord packs a Vzero code and a 12-bit LPDAC code into the LPDACDAT0
// register layout.
func LPDACWord(vzero, code uint32) uint32 {
	return (vzero&0x3F)<<12 | code&0xFFF
}

func (c *Chip) Wake(maxRetries int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for attempt := 1; attempt <= maxRetries; attempt++ {
		id, err := c.bus.ReadReg(RegADIID)
		if err == nil && id == ChipID {
			return attempt, nil
		}
	}
	return maxRetries + 1, nil
}

func (c *Chip) LockSleep(lock bool) error {
	key := uint32(SleepKeyUnlock)
	if lock {
		key = SleepKeyLock
	}
	return c.write(RegSeqSleepLock, key)
}

func (c *Chip) FIFOCount() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, err := c.bus.ReadReg(RegFIFOCntSta)
	if err != nil {
		return 0, fmt.Errorf("failed to read fifo count: %w", err)
	}
	return int((v >> 16) & 0x7FF), nil
}

func (c *Chip) ReadFIFO(dst []uint32) error {
	if len(dst) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.bus.ReadFIFO(dst); err != nil {
		return fmt.Errorf("failed to read fifo: %w", err)
	}
	return nil
}

func (c *Chip) WriteReg(addr, val uint32) error {
	return c.write(addr, val)
}

func (c *Chip) WriteProgram(addr uint32, words []uint32) error {
	if int(addr)+len(words) > SeqMemoryWords {
		return fmt.Errorf("%w: %d words at %#x", ErrProgramOverflow, len(words), addr)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.bus.WriteReg(RegCmdDataCon, cmdDataSeq2K); err != nil {
		return fmt.Errorf("failed to select command memory: %w", err)
	}
	if err := c.bus.WriteReg(RegCmdFIFOWAddr, addr); err != nil {
		return fmt.Errorf("failed to set program address: %w", err)
	}
	for i, w := range words {
		if err := c.bus.WriteReg(RegCmdFIFOWrite, w); err != nil {
			return fmt.Errorf("failed to write program word %d: %w", i, err)
		}
	}
	return nil
}

func (c *Chip) SetSequenceInfo(slot Slot, info SeqInfo) error {
	if int(slot) >= NumSlots {
		return fmt.Errorf("%w: slot %d", ErrParameterInvalid, slot)
	}
	return c.write(slot.InfoReg(), info.Word())
}

func (c *Chip) ClearInterruptFlags(mask Interrupt) error {
	return c.write(RegINTCClr, uint32(mask))
}

func (c *Chip) ConfigureInterruptRouting(r InterruptRouting) error {
	var sel uint32
	switch r.Controller {
	case 0:
		sel = RegINTCSel0
	case 1:
		sel = RegINTCSel1
	default:
		return fmt.Errorf("%w: interrupt controller %d", ErrParameterInvalid, r.Controller)
	}
	if r.GPIO > 7 {
		return fmt.Errorf("%w: gpio %d", ErrParameterInvalid, r.GPIO)
	}
	if err := c.write(sel, uint32(r.Sources)); err != nil {
		return err
	}
	// GPIO function 0 is the interrupt output of controller 0, function 1 of controller 1.
	if err := c.write(RegAGPIOCon, uint32(r.Controller)<<(2*r.GPIO)); err != nil {
		return err
	}
	return c.write(RegAGPIOOen, 1<<r.GPIO)
}

func (c *Chip) SetFIFOThreshold(n int) error {
	if n <= 0 || n > 0x7FF {
		return fmt.Errorf("%w: fifo threshold %d", ErrParameterInvalid, n)
	}
	return c.write(RegDataFIFOThres, uint32(n)<<16)
}

// ResetFIFO disables and re-enables the FIFO with the last source, which
// clears its contents and control state.
func (c *Chip) ResetFIFO() error {
	c.mu.Lock()
	src, on := c.fifoSrc, c.fifoOn
	c.mu.Unlock()

	if err := c.write(RegFIFOCon, uint32(src)<<fifoConSrcShift); err != nil {
		return err
	}
	if !on {
		return nil
	}
	return c.write(RegFIFOCon, fifoConEnable|uint32(src)<<fifoConSrcShift)
}

func (c *Chip) EnableFIFO(src FIFOSource, enable bool) error {
	v := uint32(src) << fifoConSrcShift
	if enable {
		v |= fifoConEnable
	}
	if err := c.write(RegFIFOCon, v); err != nil {
		return err
	}
	c.mu.Lock()
	c.fifoSrc, c.fifoOn = src, enable
	c.mu.Unlock()
	return nil
}

func (c *Chip) EnableSequencer(enable bool) error {
	var v uint32
	if enable {
		v = seqConEnable
	}
	return c.write(RegSeqCon, v)
}

func (c *Chip) ConfigureWakeupTimer(s WakeupSchedule) error {
	if err := s.Validate(); err != nil {
		return err
	}

	var order uint32
	for i, slot := range s.Order {
		order |= uint32(slot) << (2 * i)
	}
	if err := c.write(RegSeqOrder, order); err != nil {
		return err
	}
	for _, slot := range s.Order {
		t := s.Timing[slot]
		base := uint32(RegSeq0WupL + wuptSlotStep*int(slot))
		regs := [4][2]uint32{
			{base, t.WakeTicks & 0xFFFF},
			{base + 4, (t.WakeTicks >> 16) & 0xF},
			{base + 8, t.SleepTicks & 0xFFFF},
			{base + 12, (t.SleepTicks >> 16) & 0xF},
		}
		for _, r := range regs {
			if err := c.write(r[0], r[1]); err != nil {
				return err
			}
		}
	}
	return c.write(RegWUPTCon, wuptConEnable|uint32(len(s.Order)-1)<<4)
}

func (c *Chip) ConfigureAnalogPath(p AnalogPath) error {
	afecon, ok := p.Kind.AFECon()
	if !ok {
		return fmt.Errorf("%w: analog path %s", ErrParameterInvalid, p.Kind)
	}

	switch p.Kind {
	case PathLPDACToLPTIA, PathLPDACToHSTIA:
		if err := c.write(RegLPDACCon0, lpdacRefEnable); err != nil {
			return err
		}
		if err := c.write(RegLPDACData0, LPDACWord(p.Vzero, p.Bias)); err != nil {
			return err
		}
	case PathHSDACToHSTIA:
		if err := c.write(RegLPDACData0, LPDACWord(p.Vzero, p.Bias)); err != nil {
			return err
		}
		if err := c.write(RegWGFCW, p.Frequency); err != nil {
			return err
		}
		if err := c.write(RegWGAmplitude, p.Amplitude); err != nil {
			return err
		}
	}

	if err := c.write(RegAFECon, afecon); err != nil {
		return err
	}
	c.mu.Lock()
	c.afecon = afecon
	c.mu.Unlock()
	return nil
}

func (c *Chip) ConfigureDSP(d DSPConfig) error {
	if d.Sinc3OSR == 0 || d.Sinc3OSR > 0xF || d.Sinc2OSR > 0xFF || d.ADCAverage > 0xFF {
		return fmt.Errorf("%w: dsp filter settings", ErrParameterInvalid)
	}
	filter := d.Sinc3OSR | d.Sinc2OSR<<4 | d.ADCAverage<<12
	if d.BypassNotch {
		filter |= 1 << 20
	}
	if err := c.write(RegADCFilterCon, filter); err != nil {
		return err
	}
	return c.write(RegDFTCon, d.DFTPoints<<4|uint32(d.DataType))
}

// PowerDown stops the wakeup timer and the sequencer and powers down the
// low-power loop, the high-speed loop and the DSP.
func (c *Chip) PowerDown() error {
	regs := [][2]uint32{
		{RegWUPTCon, 0},
		{RegSeqCon, 0},
		{RegAFECon, 0},
		{RegLPDACCon0, lpdacPowerDown},
	}
	for _, r := range regs {
		if err := c.write(r[0], r[1]); err != nil {
			return err
		}
	}
	c.mu.Lock()
	c.afecon = 0
	c.mu.Unlock()
	return nil
}

func (c *Chip) Interrupts() <-chan struct{} {
	return c.bus.Interrupts()
}

func (c *Chip) Close() error {
	return c.bus.Close()
}

func (c *Chip) write(addr, val uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.bus.WriteReg(addr, val); err != nil {
		return fmt.Errorf("failed to write register %#04x: %w", addr, err)
	}
	return nil
}
