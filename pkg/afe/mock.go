package afe

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/itohio/goafe/pkg/config"
)

// TemperatureCodesPerKelvin is the temperature sensor result slope.
const TemperatureCodesPerKelvin = 8.13

// Mock simulates an AFE for testing and development. It executes the
// sequencer programs loaded into it in wakeup timer order, so compiled
// programs can be checked end to end.
type Mock struct {
	cfg *config.MockConfig

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	irq    chan struct{}

	regs      map[uint32]uint32
	program   []uint32
	infos     [NumSlots]SeqInfo
	schedule  WakeupSchedule
	cursor    int
	wupt      bool
	seq       bool
	fifoOn    bool
	fifoSrc   FIFOSource
	fifo      []uint32
	threshold int
	flags     Interrupt
	routing   InterruptRouting
	path      AnalogPath
	dsp       DSPConfig
	powered   bool
	locked    bool

	stimulus     uint32
	wgFCW        uint32
	conversions  int
	wakeFailures int
	calls        []string
}

// NewMock creates a new mocked device instance.
func NewMock(cfg *config.MockConfig) *Mock {
	if cfg == nil {
		cfg = &config.MockConfig{
			Gain:        4.0,
			NoiseLevel:  0,
			Temperature: 25,
			SampleRate:  10 * time.Millisecond,
			FIFODepth:   1024,
		}
	}
	if cfg.FIFODepth <= 0 {
		cfg.FIFODepth = 1024
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Mock{
		cfg:          cfg,
		ctx:          ctx,
		cancel:       cancel,
		irq:          make(chan struct{}, 1),
		regs:         make(map[uint32]uint32),
		program:      make([]uint32, SeqMemoryWords),
		wakeFailures: cfg.WakeFailures,
	}
}

func (m *Mock) record(format string, args ...any) {
	m.calls = append(m.calls, fmt.Sprintf(format, args...))
}

func (m *Mock) Wake(maxRetries int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Wake")

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if m.wakeFailures > 0 {
			m.wakeFailures--
			continue
		}
		return attempt, nil
	}
	return maxRetries + 1, nil
}

func (m *Mock) LockSleep(lock bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("LockSleep(%t)", lock)
	m.locked = lock
	return nil
}

func (m *Mock) FIFOCount() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("FIFOCount")
	return len(m.fifo), nil
}

func (m *Mock) ReadFIFO(dst []uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ReadFIFO(%d)", len(dst))

	if len(dst) > len(m.fifo) {
		return fmt.Errorf("fifo underrun: %d requested, %d available", len(dst), len(m.fifo))
	}
	n := copy(dst, m.fifo)
	m.fifo = append(m.fifo[:0], m.fifo[n:]...)
	return nil
}

func (m *Mock) WriteReg(addr, val uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("WriteReg(%#04x,%#x)", addr, val)
	m.store(addr, val)
	return nil
}

func (m *Mock) WriteProgram(addr uint32, words []uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("WriteProgram(%#x,%d)", addr, len(words))

	if int(addr)+len(words) > len(m.program) {
		return fmt.Errorf("%w: %d words at %#x", ErrProgramOverflow, len(words), addr)
	}
	copy(m.program[addr:], words)
	return nil
}

func (m *Mock) SetSequenceInfo(slot Slot, info SeqInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("SetSequenceInfo(%d,%#x,%d)", slot, info.Addr, info.Len)

	if int(slot) >= NumSlots {
		return fmt.Errorf("%w: slot %d", ErrParameterInvalid, slot)
	}
	m.infos[slot] = info
	return nil
}

func (m *Mock) ClearInterruptFlags(mask Interrupt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ClearInterruptFlags(%#x)", uint32(mask))
	m.flags &^= mask
	return nil
}

func (m *Mock) ConfigureInterruptRouting(r InterruptRouting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ConfigureInterruptRouting")

	if r.Controller > 1 || r.GPIO > 7 {
		return fmt.Errorf("%w: interrupt routing", ErrParameterInvalid)
	}
	m.routing = r
	return nil
}

func (m *Mock) SetFIFOThreshold(n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("SetFIFOThreshold(%d)", n)

	if n <= 0 || n > 0x7FF {
		return fmt.Errorf("%w: fifo threshold %d", ErrParameterInvalid, n)
	}
	m.threshold = n
	return nil
}

func (m *Mock) ResetFIFO() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ResetFIFO")

	m.fifo = m.fifo[:0]
	m.flags &^= IntFIFOThreshold | IntFIFOOverflow
	return nil
}

func (m *Mock) EnableFIFO(src FIFOSource, enable bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("EnableFIFO(%d,%t)", src, enable)
	m.fifoSrc, m.fifoOn = src, enable
	return nil
}

func (m *Mock) EnableSequencer(enable bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("EnableSequencer(%t)", enable)
	m.seq = enable
	return nil
}

func (m *Mock) ConfigureWakeupTimer(s WakeupSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ConfigureWakeupTimer")

	if err := s.Validate(); err != nil {
		return err
	}
	m.schedule = WakeupSchedule{Order: append([]Slot(nil), s.Order...), Timing: s.Timing}
	m.cursor = 0
	m.wupt = true
	return nil
}

func (m *Mock) ConfigureAnalogPath(p AnalogPath) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ConfigureAnalogPath(%s)", p.Kind)

	if _, ok := p.Kind.AFECon(); !ok {
		return fmt.Errorf("%w: analog path %s", ErrParameterInvalid, p.Kind)
	}
	m.path = p
	m.powered = true
	m.stimulus = p.Bias
	m.wgFCW = p.Frequency
	return nil
}

func (m *Mock) ConfigureDSP(d DSPConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ConfigureDSP")

	if d.Sinc3OSR == 0 {
		return fmt.Errorf("%w: dsp filter settings", ErrParameterInvalid)
	}
	m.dsp = d
	return nil
}

func (m *Mock) PowerDown() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("PowerDown")

	m.powered = false
	m.wupt = false
	m.seq = false
	return nil
}

func (m *Mock) Interrupts() <-chan struct{} {
	return m.irq
}

// Close stops Run.
func (m *Mock) Close() error {
	m.cancel()
	return nil
}

// Run advances the wakeup timer once per configured sample period until ctx
// or the device is done.
func (m *Mock) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SampleRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Advance(1); err != nil {
				slog.Warn("mock sequencer stopped", "error", err)
				return
			}
		}
	}
}

// Advance runs the next n entries of the wakeup order and returns how many
// slots were executed. Nothing runs unless the analog path is powered and
// both the sequencer and the wakeup timer are enabled.
func (m *Mock) Advance(n int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ran := 0
	for ; ran < n; ran++ {
		if !m.powered || !m.seq || !m.wupt || len(m.schedule.Order) == 0 {
			break
		}
		slot := m.schedule.Order[m.cursor]
		m.cursor = (m.cursor + 1) % len(m.schedule.Order)
		if err := m.execute(slot); err != nil {
			return ran, err
		}
	}
	return ran, nil
}

// execute interprets the program of one slot until its length is exhausted
// or it requests sleep.
func (m *Mock) execute(slot Slot) error {
	info := m.infos[slot]
	if info.Len == 0 {
		return fmt.Errorf("slot %d has no program", slot)
	}
	for pc := info.Addr; pc < info.Addr+info.Len; pc++ {
		if int(pc) >= len(m.program) {
			return fmt.Errorf("slot %d runs past program memory at %#x", slot, pc)
		}
		w := m.program[pc]
		if w&(1<<31) == 0 {
			// Wait and timeout commands take no simulated time.
			continue
		}
		addr := uint32(RegAFECon) | ((w>>24)&0x7F)<<2
		if m.execWrite(addr, w&0xFFFFFF) {
			return nil
		}
	}
	return nil
}

// execWrite applies a sequencer register write and reports whether the
// sequence asked the device to sleep.
func (m *Mock) execWrite(addr, val uint32) bool {
	m.store(addr, val)
	switch addr {
	case RegSeqTrigSleep:
		return true
	case RegAFECon:
		if val&AFEConADCConv != 0 {
			m.convert(val)
		}
	}
	return false
}

func (m *Mock) store(addr, val uint32) {
	m.regs[addr] = val
	if slot, ok := SlotOfInfoReg(addr); ok {
		m.infos[slot] = ParseSeqInfo(val)
	}
	switch addr {
	case RegLPDACData0:
		m.stimulus = val & 0xFFF
	case RegWGFCW:
		m.wgFCW = val
	}
}

func (m *Mock) convert(afecon uint32) {
	if !m.fifoOn {
		return
	}
	m.conversions++
	switch {
	case afecon&AFEConTempConv != 0:
		k := m.cfg.Temperature + 273.15
		m.push(FIFOWord(TagTemperature, uint16(math.Round(k*TemperatureCodesPerKelvin))))
	case afecon&AFEConDFT != 0:
		m.push(FIFOWord(TagDFTReal, m.adcCode()), FIFOWord(TagDFTImag, uint16(m.wgFCW)))
	default:
		m.push(FIFOWord(TagADC, m.adcCode()))
	}
}

func (m *Mock) adcCode() uint16 {
	noise := math.Sin(float64(m.conversions)*0.7) * m.cfg.NoiseLevel
	v := float64(ADCMidScale) + (float64(m.stimulus)-2048)*m.cfg.Gain + noise
	v = math.Round(math.Max(0, math.Min(v, 0xFFFF)))
	return uint16(v)
}

func (m *Mock) push(words ...uint32) {
	for _, w := range words {
		if len(m.fifo) >= m.cfg.FIFODepth {
			m.flags |= IntFIFOOverflow
			continue
		}
		m.fifo = append(m.fifo, w)
	}
	if m.threshold > 0 && len(m.fifo) >= m.threshold && m.flags&IntFIFOThreshold == 0 {
		m.flags |= IntFIFOThreshold
		if m.routing.Sources&IntFIFOThreshold != 0 {
			select {
			case m.irq <- struct{}{}:
			default:
			}
		}
	}
}

// Push appends words to the FIFO as if the DSP had produced them.
func (m *Mock) Push(words ...uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.push(words...)
}

// Calls returns the device operations performed so far.
func (m *Mock) Calls() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.calls...)
}

// ResetCalls clears the call log.
func (m *Mock) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = m.calls[:0]
}

// FailWake makes the next n wake attempts fail.
func (m *Mock) FailWake(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wakeFailures = n
}

// Stimulus returns the last 12-bit LPDAC code applied.
func (m *Mock) Stimulus() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stimulus
}

// Powered reports whether the analog chain is powered.
func (m *Mock) Powered() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.powered
}

// Running reports whether the wakeup timer and the sequencer are enabled.
func (m *Mock) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.wupt && m.seq
}

// FIFOEnabled reports whether the FIFO accepts results.
func (m *Mock) FIFOEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fifoOn
}

// FIFOLen returns the number of words in the FIFO.
func (m *Mock) FIFOLen() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.fifo)
}

// Threshold returns the programmed FIFO threshold.
func (m *Mock) Threshold() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.threshold
}

// SleepLocked reports whether automatic sleep is locked.
func (m *Mock) SleepLocked() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.locked
}

// Flags returns the pending interrupt flags.
func (m *Mock) Flags() Interrupt {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.flags
}

// SequenceInfo returns the current entry point of slot.
func (m *Mock) SequenceInfo(slot Slot) SeqInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.infos[slot]
}

// Schedule returns the installed wakeup schedule.
func (m *Mock) Schedule() WakeupSchedule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.schedule
}

// Program returns a copy of n program words starting at addr.
func (m *Mock) Program(addr uint32, n int) []uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]uint32(nil), m.program[addr:int(addr)+n]...)
}

// Reg returns the last value written to a register.
func (m *Mock) Reg(addr uint32) uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.regs[addr]
}

// Path returns the configured analog path.
func (m *Mock) Path() AnalogPath {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.path
}

// Routing returns the configured interrupt routing.
func (m *Mock) Routing() InterruptRouting {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.routing
}
