package afe

import (
	"context"
	"testing"
	"time"

	"github.com/itohio/goafe/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seqWrite encodes a sequencer register write without depending on the
// compiler package.
func seqWrite(reg, data uint32) uint32 {
	return 1<<31 | ((reg>>2)&0x7F)<<24 | data&0xFFFFFF
}

func testMockConfig() *config.MockConfig {
	return &config.MockConfig{
		Gain:        4,
		Temperature: 25,
		SampleRate:  time.Millisecond,
		FIFODepth:   8,
	}
}

// startMock powers the mock with a single acquisition slot that converts
// once and sleeps.
func startMock(t *testing.T, m *Mock) {
	t.Helper()
	prog := []uint32{
		seqWrite(RegAFECon, AFEConADCPwr|AFEConADCConv),
		10, // wait
		seqWrite(RegAFECon, AFEConADCPwr),
		seqWrite(RegSeqTrigSleep, 1),
	}
	require.NoError(t, m.WriteProgram(0, prog))
	require.NoError(t, m.SetSequenceInfo(SlotAcquire, SeqInfo{Addr: 0, Len: uint32(len(prog))}))
	require.NoError(t, m.ConfigureAnalogPath(AnalogPath{Kind: PathLPDACToLPTIA, Vzero: 32, Bias: 2048}))
	require.NoError(t, m.EnableFIFO(FIFOSrcSinc3, true))
	require.NoError(t, m.EnableSequencer(true))

	s := WakeupSchedule{Order: []Slot{SlotAcquire}}
	s.Timing[SlotAcquire] = SlotTiming{SleepTicks: 1, WakeTicks: 31}
	require.NoError(t, m.ConfigureWakeupTimer(s))
}

func TestMock_Wake(t *testing.T) {
	tests := []struct {
		name     string
		failures int
		want     int
	}{
		{name: "answers first time", failures: 0, want: 1},
		{name: "answers after failures", failures: 4, want: 5},
		{name: "never answers", failures: 20, want: DefaultWakeRetries + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMock(testMockConfig())
			m.FailWake(tt.failures)
			got, err := m.Wake(DefaultWakeRetries)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMock_WakeFailuresFromConfig(t *testing.T) {
	cfg := testMockConfig()
	cfg.WakeFailures = 100
	assert.ErrorIs(t, WakeUp(NewMock(cfg), 3), ErrWakeFailed)
}

func TestMock_Advance(t *testing.T) {
	m := NewMock(testMockConfig())
	startMock(t, m)

	ran, err := m.Advance(3)
	require.NoError(t, err)
	assert.Equal(t, 3, ran)
	require.Equal(t, 3, m.FIFOLen())

	buf := make([]uint32, 3)
	require.NoError(t, m.ReadFIFO(buf))
	for _, w := range buf {
		tag, data := SplitFIFOWord(w)
		assert.Equal(t, uint8(TagADC), tag)
		assert.Equal(t, uint16(ADCMidScale), data)
	}
	assert.Equal(t, 0, m.FIFOLen())
}

func TestMock_AdvanceIdleUntilStarted(t *testing.T) {
	m := NewMock(testMockConfig())
	ran, err := m.Advance(5)
	require.NoError(t, err)
	assert.Zero(t, ran)

	startMock(t, m)
	require.NoError(t, m.PowerDown())
	ran, err = m.Advance(5)
	require.NoError(t, err)
	assert.Zero(t, ran)
	assert.False(t, m.Running())
	assert.False(t, m.Powered())
}

func TestMock_ProgramRelinksSlot(t *testing.T) {
	m := NewMock(testMockConfig())
	// Slot 1 applies a code and points itself at the block at 0x10, which
	// applies another code and points slot 1 back at 0x00.
	require.NoError(t, m.WriteProgram(0x00, []uint32{
		seqWrite(RegLPDACData0, LPDACWord(32, 2513)),
		10,
		seqWrite(RegSeq1Info, SeqInfo{Addr: 0x10, Len: 3}.Word()),
	}))
	require.NoError(t, m.WriteProgram(0x10, []uint32{
		seqWrite(RegLPDACData0, LPDACWord(32, 1583)),
		10,
		seqWrite(RegSeq1Info, SeqInfo{Addr: 0x00, Len: 3}.Word()),
	}))
	require.NoError(t, m.SetSequenceInfo(SlotStimulusA, SeqInfo{Addr: 0, Len: 3}))
	require.NoError(t, m.ConfigureAnalogPath(AnalogPath{Kind: PathLPDACToLPTIA, Vzero: 32, Bias: 2048}))
	require.NoError(t, m.EnableSequencer(true))
	s := WakeupSchedule{Order: []Slot{SlotStimulusA}}
	s.Timing[SlotStimulusA] = SlotTiming{SleepTicks: 1, WakeTicks: 100}
	require.NoError(t, m.ConfigureWakeupTimer(s))

	for _, want := range []uint32{2513, 1583, 2513, 1583} {
		_, err := m.Advance(1)
		require.NoError(t, err)
		assert.Equal(t, want, m.Stimulus())
	}
	assert.Equal(t, SeqInfo{Addr: 0x00, Len: 3}, m.SequenceInfo(SlotStimulusA))
}

func TestMock_AdvanceEmptySlot(t *testing.T) {
	m := NewMock(testMockConfig())
	require.NoError(t, m.ConfigureAnalogPath(AnalogPath{Kind: PathLPDACToLPTIA}))
	require.NoError(t, m.EnableSequencer(true))
	s := WakeupSchedule{Order: []Slot{Slot3}}
	s.Timing[Slot3] = SlotTiming{SleepTicks: 1, WakeTicks: 1}
	require.NoError(t, m.ConfigureWakeupTimer(s))

	_, err := m.Advance(1)
	assert.Error(t, err)
}

func TestMock_ThresholdInterrupt(t *testing.T) {
	m := NewMock(testMockConfig())
	require.NoError(t, m.ConfigureInterruptRouting(InterruptRouting{Controller: 0, Sources: IntFIFOThreshold}))
	require.NoError(t, m.SetFIFOThreshold(2))
	startMock(t, m)

	_, err := m.Advance(1)
	require.NoError(t, err)
	select {
	case <-m.Interrupts():
		t.Fatal("interrupt before threshold")
	default:
	}

	_, err = m.Advance(1)
	require.NoError(t, err)
	select {
	case <-m.Interrupts():
	case <-time.After(time.Second):
		t.Fatal("no interrupt at threshold")
	}
	assert.NotZero(t, m.Flags()&IntFIFOThreshold)

	require.NoError(t, m.ClearInterruptFlags(IntFIFOThreshold))
	assert.Zero(t, m.Flags()&IntFIFOThreshold)
}

func TestMock_Overflow(t *testing.T) {
	m := NewMock(testMockConfig())
	for i := 0; i < 10; i++ {
		m.Push(FIFOWord(TagADC, uint16(i)))
	}
	assert.Equal(t, 8, m.FIFOLen())
	assert.NotZero(t, m.Flags()&IntFIFOOverflow)

	require.NoError(t, m.ResetFIFO())
	assert.Equal(t, 0, m.FIFOLen())
	assert.Zero(t, m.Flags()&IntFIFOOverflow)
}

func TestMock_ReadFIFOUnderrun(t *testing.T) {
	m := NewMock(testMockConfig())
	m.Push(1)
	assert.Error(t, m.ReadFIFO(make([]uint32, 2)))
}

func TestMock_Temperature(t *testing.T) {
	m := NewMock(testMockConfig())
	prog := []uint32{
		seqWrite(RegAFECon, AFEConADCPwr|AFEConTempSPwr|AFEConTempConv|AFEConADCConv),
		seqWrite(RegSeqTrigSleep, 1),
	}
	require.NoError(t, m.WriteProgram(0, prog))
	require.NoError(t, m.SetSequenceInfo(SlotAcquire, SeqInfo{Addr: 0, Len: 2}))
	require.NoError(t, m.ConfigureAnalogPath(AnalogPath{Kind: PathTemperature}))
	require.NoError(t, m.EnableFIFO(FIFOSrcSinc3, true))
	require.NoError(t, m.EnableSequencer(true))
	s := WakeupSchedule{Order: []Slot{SlotAcquire}}
	s.Timing[SlotAcquire] = SlotTiming{SleepTicks: 1, WakeTicks: 31}
	require.NoError(t, m.ConfigureWakeupTimer(s))

	_, err := m.Advance(1)
	require.NoError(t, err)
	buf := make([]uint32, 1)
	require.NoError(t, m.ReadFIFO(buf))
	tag, code := SplitFIFOWord(buf[0])
	assert.Equal(t, uint8(TagTemperature), tag)
	assert.Equal(t, uint16(2424), code) // (25 + 273.15) * 8.13
}

func TestMock_Run(t *testing.T) {
	m := NewMock(testMockConfig())
	startMock(t, m)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return m.FIFOLen() >= 2 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestMock_CallLog(t *testing.T) {
	m := NewMock(nil)
	require.NoError(t, m.LockSleep(true))
	require.NoError(t, m.SetFIFOThreshold(4))
	require.NoError(t, m.ClearInterruptFlags(IntFIFOThreshold))
	assert.Equal(t, []string{"LockSleep(true)", "SetFIFOThreshold(4)", "ClearInterruptFlags(0x2000000)"}, m.Calls())

	m.ResetCalls()
	assert.Empty(t, m.Calls())
}
