package technique

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/itohio/goafe/pkg/afe"
	"github.com/itohio/goafe/pkg/config"
	"github.com/itohio/goafe/pkg/fifo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMock() *afe.Mock {
	return afe.NewMock(&config.MockConfig{
		Gain:        4,
		Temperature: 25,
		SampleRate:  time.Millisecond,
		FIFODepth:   64,
	})
}

func newTestRunner(m *afe.Mock) *Runner {
	return NewRunner(m, WithLogger(testLogger()), WithWakeRetries(3))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "configuring", Configuring.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "faulted", Faulted.String())
	assert.Equal(t, "state(9)", State(9).String())
}

func TestRunner_StartCAOrder(t *testing.T) {
	m := newTestMock()
	r := newTestRunner(m)

	err := r.StartCA(CAConfig{Params: CA{EDC: 0.2, TInterval: 0.25, TRun: 3}, Run: testRun(), Path: testPath})
	require.NoError(t, err)
	assert.Equal(t, Running, r.State())
	assert.NotEqual(t, [16]byte{}, [16]byte(r.RunID()))

	assert.Equal(t, []string{
		"Wake",
		"ClearInterruptFlags(0xffffffff)",
		"EnableSequencer(false)",
		"EnableFIFO(0,false)",
		"ConfigureAnalogPath(lpdac_lptia)",
		"WriteProgram(0x0,6)",
		"SetSequenceInfo(0,0x0,6)",
		"ConfigureDSP",
		"ConfigureInterruptRouting",
		"ClearInterruptFlags(0xffffffff)",
		"SetFIFOThreshold(4)",
		"EnableFIFO(0,true)",
		"EnableSequencer(true)",
		"ConfigureWakeupTimer",
	}, m.Calls())

	assert.True(t, m.Running())
	assert.True(t, m.FIFOEnabled())
	assert.Equal(t, afe.IntFIFOThreshold, m.Routing().Sources)
	assert.Equal(t, []afe.Slot{afe.SlotAcquire}, m.Schedule().Order)
}

func TestRunner_StartTemperatureWritesSensorFirst(t *testing.T) {
	m := newTestMock()
	r := newTestRunner(m)

	err := r.StartTemperature(TemperatureConfig{Params: Temperature{SamplingInterval: 1, TempSens: 1}, Run: testRun()})
	require.NoError(t, err)

	calls := m.Calls()
	require.GreaterOrEqual(t, len(calls), 4)
	assert.Equal(t, []string{"Wake", "ClearInterruptFlags(0xffffffff)", "WriteReg(0x2174,0x1)", "EnableSequencer(false)"}, calls[:4])
	assert.Contains(t, calls, "ConfigureAnalogPath(temperature)")
	assert.Equal(t, uint32(1), m.Reg(afe.RegTempSens))
}

func TestRunner_InvalidTouchesNothing(t *testing.T) {
	tests := []struct {
		name  string
		start func(r *Runner) error
	}{
		{name: "ca run too short", start: func(r *Runner) error {
			return r.StartCA(CAConfig{Params: CA{TInterval: 1, TRun: 0.5}, Run: testRun(), Path: testPath})
		}},
		{name: "cv on hsdac", start: func(r *Runner) error {
			cfg := testCV()
			cfg.Path = HSDACToHSTIA{Vzero: 1.1, RTIA: 200}
			return r.StartCV(cfg)
		}},
		{name: "dpv without path", start: func(r *Runner) error {
			cfg := testDPV()
			cfg.Path = nil
			return r.StartDPV(cfg)
		}},
		{name: "eis on lpdac", start: func(r *Runner) error {
			cfg := testEIS()
			cfg.Path = testPath
			return r.StartEIS(cfg)
		}},
		{name: "temperature without threshold", start: func(r *Runner) error {
			run := testRun()
			run.FIFOThreshold = 0
			return r.StartTemperature(TemperatureConfig{Params: Temperature{SamplingInterval: 1}, Run: run})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMock()
			r := newTestRunner(m)

			err := tt.start(r)
			require.ErrorIs(t, err, afe.ErrParameterInvalid)
			assert.Equal(t, afe.ParameterInvalid, afe.CodeOf(err))
			assert.Equal(t, Faulted, r.State())
			assert.Empty(t, m.Calls())
		})
	}
}

func TestRunner_WakeFailure(t *testing.T) {
	m := newTestMock()
	m.FailWake(5)
	r := newTestRunner(m)

	err := r.StartCV(testCV())
	require.ErrorIs(t, err, afe.ErrWakeFailed)
	assert.Equal(t, Faulted, r.State())
	assert.Equal(t, []string{"Wake"}, m.Calls())
}

func TestRunner_StartWhileRunning(t *testing.T) {
	m := newTestMock()
	r := newTestRunner(m)
	require.NoError(t, r.StartCV(testCV()))

	err := r.StartCV(testCV())
	require.ErrorIs(t, err, afe.ErrParameterInvalid)
	assert.Equal(t, Running, r.State())
}

func TestRunner_ServiceBeforeStart(t *testing.T) {
	r := newTestRunner(newTestMock())
	_, err := r.Service(fifo.Keep, make([]uint32, 4))
	require.ErrorIs(t, err, afe.ErrParameterInvalid)

	_, err = r.Drain(context.Background(), func([]uint32) error { return nil })
	require.ErrorIs(t, err, afe.ErrParameterInvalid)
}

func TestRunner_CVEndToEnd(t *testing.T) {
	m := newTestMock()
	r := newTestRunner(m)
	cfg := testCV()
	require.NoError(t, r.StartCV(cfg))

	pts, err := cfg.Params.Ramp().Points()
	require.NoError(t, err)
	require.Len(t, pts, 8)
	vzero := m.Path().Vzero

	expect := func(i int) uint16 {
		code, err := afe.LPDACCode(pts[i].Potential)
		require.NoError(t, err)
		return uint16(afe.ADCMidScale + (int(code)-2048)*4)
	}

	buf := make([]uint32, 4)
	for batch := range 2 {
		ran, err := m.Advance(8)
		require.NoError(t, err)
		require.Equal(t, 8, ran)

		directive := fifo.Keep
		if batch == 1 {
			directive = fifo.Stop
		}
		n, err := r.Service(directive, buf)
		require.NoError(t, err)
		require.Equal(t, 4, n)

		for j, w := range buf[:n] {
			i := batch*4 + j
			tag, data := afe.SplitFIFOWord(w)
			assert.Equal(t, uint8(afe.TagADC), tag)
			assert.Equal(t, expect(i), data, "sample %d", i)
		}
	}

	assert.Equal(t, Stopped, r.State())
	assert.False(t, m.Powered())
	assert.Equal(t, uint32(0), m.Reg(afe.RegTempSens))
	assert.Equal(t, afe.LPDACWord(vzero, 0)>>12, m.Reg(afe.RegLPDACData0)>>12, "vzero kept in every write")

	// Stopped runners can start again.
	require.NoError(t, r.StartCV(cfg))
	assert.Equal(t, Running, r.State())
}

func TestRunner_ServiceOverflowKeepsRunning(t *testing.T) {
	m := newTestMock()
	r := newTestRunner(m)
	require.NoError(t, r.StartCV(testCV()))

	_, err := m.Advance(16)
	require.NoError(t, err)

	n, err := r.Service(fifo.Keep, make([]uint32, 4))
	require.ErrorIs(t, err, afe.ErrBufferOverflow)
	assert.Equal(t, 8, n)
	assert.Equal(t, Running, r.State())

	n, err = r.Service(fifo.Stop, make([]uint32, n))
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, Stopped, r.State())
}

func TestRunner_DrainDPV(t *testing.T) {
	m := newTestMock()
	r := newTestRunner(m)
	cfg := testDPV()
	require.NoError(t, r.StartDPV(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go m.Run(ctx)

	var got []uint32
	n, err := r.Drain(ctx, func(w []uint32) error {
		got = append(got, w...)
		return nil
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 10)
	assert.Len(t, got, n)
	assert.Equal(t, Stopped, r.State())
	assert.False(t, m.Powered())

	// Base samples sit below their pulse samples with a positive gain.
	_, base := afe.SplitFIFOWord(got[0])
	_, pulse := afe.SplitFIFOWord(got[1])
	assert.Less(t, base, pulse)
}
