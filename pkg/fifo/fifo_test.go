package fifo

import (
	"io"
	"log/slog"
	"testing"

	"github.com/itohio/goafe/pkg/afe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func words(n int) []uint32 {
	w := make([]uint32, n)
	for i := range w {
		w[i] = afe.FIFOWord(afe.TagADC, uint16(0x8000+i))
	}
	return w
}

// armedMock returns a mock with a powered analog chain and n words queued.
func armedMock(t *testing.T, n int) *afe.Mock {
	t.Helper()
	m := afe.NewMock(nil)
	require.NoError(t, m.ConfigureAnalogPath(afe.AnalogPath{Kind: afe.PathLPDACToLPTIA}))
	require.NoError(t, m.SetFIFOThreshold(4))
	m.Push(words(n)...)
	m.ResetCalls()
	return m
}

func TestHandler_Service(t *testing.T) {
	drain := []string{
		"Wake",
		"LockSleep(true)",
		"FIFOCount",
		"ReadFIFO(4)",
		"LockSleep(false)",
		"ClearInterruptFlags(0x2000000)",
	}
	tests := []struct {
		name      string
		opts      []Option
		threshold int32
		wantCalls []string
		powered   bool
		wantThres int
	}{
		{
			name:      "stop",
			threshold: Stop,
			wantCalls: append(append([]string{}, drain...), "PowerDown"),
			powered:   false,
			wantThres: 4,
		},
		{
			name:      "stop with temperature sensor off",
			opts:      []Option{WithTempSensorOff()},
			threshold: Stop,
			wantCalls: append(append([]string{}, drain...), "WriteReg(0x2174,0x0)", "PowerDown"),
			powered:   false,
			wantThres: 4,
		},
		{
			name:      "rearm",
			threshold: 8,
			wantCalls: append(append([]string{}, drain...), "ResetFIFO", "SetFIFOThreshold(8)"),
			powered:   true,
			wantThres: 8,
		},
		{
			name:      "keep",
			threshold: Keep,
			wantCalls: drain,
			powered:   true,
			wantThres: 4,
		},
		{
			name:      "any negative keeps",
			threshold: -100,
			wantCalls: drain,
			powered:   true,
			wantThres: 4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := armedMock(t, 4)
			h := New(m, append(tt.opts, WithLogger(testLogger()))...)

			buf := make([]uint32, 16)
			n, err := h.Service(tt.threshold, buf)
			require.NoError(t, err)
			assert.Equal(t, 4, n)
			assert.Equal(t, words(4), buf[:n])

			assert.Equal(t, tt.wantCalls, m.Calls())
			assert.Equal(t, tt.powered, m.Powered())
			assert.Equal(t, tt.wantThres, m.Threshold())
			assert.False(t, m.SleepLocked())
			assert.Zero(t, m.Flags()&afe.IntFIFOThreshold)
		})
	}
}

func TestHandler_ServiceOverflow(t *testing.T) {
	m := armedMock(t, 6)
	h := New(m, WithLogger(testLogger()))

	buf := make([]uint32, 4)
	for i := 0; i < 2; i++ {
		n, err := h.Service(Stop, buf)
		assert.ErrorIs(t, err, afe.ErrBufferOverflow)
		assert.Equal(t, 6, n)
		assert.Equal(t, 6, m.FIFOLen(), "fifo untouched")
		assert.True(t, m.Powered())
		assert.False(t, m.SleepLocked())
	}
	assert.Equal(t, []string{
		"Wake", "LockSleep(true)", "FIFOCount", "LockSleep(false)",
		"Wake", "LockSleep(true)", "FIFOCount", "LockSleep(false)",
	}, m.Calls())

	big := make([]uint32, 6)
	n, err := h.Service(Stop, big)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, words(6), big)
	assert.False(t, m.Powered())
}

func TestHandler_ServiceWakeFailure(t *testing.T) {
	m := armedMock(t, 4)
	m.FailWake(100)
	h := New(m, WithLogger(testLogger()), WithWakeRetries(3))

	n, err := h.Service(Stop, make([]uint32, 8))
	assert.ErrorIs(t, err, afe.ErrWakeFailed)
	assert.Zero(t, n)
	assert.Equal(t, []string{"Wake"}, m.Calls())
	assert.Equal(t, 4, m.FIFOLen())
	assert.True(t, m.Powered())
}

func TestHandler_ServiceEmpty(t *testing.T) {
	m := armedMock(t, 0)
	h := New(m, WithLogger(testLogger()))
	n, err := h.Service(Keep, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHandler_ISR(t *testing.T) {
	tests := []struct {
		name      string
		pending   int
		capacity  uint16
		bufLen    int
		wantCode  afe.ErrorCode
		wantCount uint16
	}{
		{name: "fits", pending: 4, capacity: 8, bufLen: 8, wantCode: afe.Ok, wantCount: 4},
		{name: "capacity below pending", pending: 4, capacity: 3, bufLen: 8, wantCode: afe.BufferOverflow, wantCount: 4},
		{name: "capacity above buffer", pending: 4, capacity: 100, bufLen: 2, wantCode: afe.BufferOverflow, wantCount: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := armedMock(t, tt.pending)
			h := New(m, WithLogger(testLogger()))

			var count uint16
			code := h.ISR(Stop, tt.capacity, make([]uint32, tt.bufLen), &count)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantCount, count)
		})
	}
}

func TestHandler_ISRWakeFailure(t *testing.T) {
	m := armedMock(t, 4)
	m.FailWake(100)
	h := New(m, WithLogger(testLogger()))

	count := uint16(99)
	assert.Equal(t, afe.WakeFailed, h.ISR(Stop, 8, make([]uint32, 8), &count))
	assert.Zero(t, count)
}
