package wakeup

import (
	"math"
	"testing"
	"time"

	"github.com/itohio/goafe/pkg/afe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicks(t *testing.T) {
	tests := []struct {
		name     string
		freq     float32
		interval time.Duration
		want     uint32
		wantErr  bool
	}{
		{name: "one second", freq: 32000, interval: time.Second, want: 31999},
		{name: "sample delay", freq: 32000, interval: SampleDelay, want: 31},
		{name: "fractional product floors", freq: 32768, interval: 100 * time.Millisecond, want: 3275},
		{name: "product of one clamps", freq: 1000, interval: time.Millisecond, want: 1},
		{name: "product below one clamps", freq: 32000, interval: time.Microsecond, want: 1},
		{name: "zero interval clamps", freq: 32000, interval: 0, want: 1},
		{name: "counter limit", freq: 1, interval: (afe.MaxWakeupTicks + 1) * time.Second, want: afe.MaxWakeupTicks},
		{name: "past counter limit", freq: 1, interval: (afe.MaxWakeupTicks + 2) * time.Second, wantErr: true},
		{name: "zero frequency", freq: 0, interval: time.Second, wantErr: true},
		{name: "negative frequency", freq: -32000, interval: time.Second, wantErr: true},
		{name: "nan frequency", freq: float32(math.NaN()), interval: time.Second, wantErr: true},
		{name: "negative interval", freq: 32000, interval: -time.Second, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Ticks(tt.freq, tt.interval)
			if tt.wantErr {
				assert.ErrorIs(t, err, afe.ErrParameterInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NotZero(t, got)
		})
	}
}

func TestTicks_NeverZero(t *testing.T) {
	for _, freq := range []float32{0.5, 1, 3.3, 32000, 32768} {
		for _, iv := range []time.Duration{0, time.Nanosecond, time.Microsecond, time.Millisecond, 30 * time.Millisecond} {
			got, err := Ticks(freq, iv)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, got, uint32(1), "freq %v interval %v", freq, iv)
		}
	}
}

func TestSingle(t *testing.T) {
	s, err := Single(afe.SlotAcquire, 32000, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []afe.Slot{afe.SlotAcquire}, s.Order)
	assert.Equal(t, afe.SlotTiming{SleepTicks: 1, WakeTicks: 3199}, s.Timing[afe.SlotAcquire])
	assert.NoError(t, s.Validate())
}

func TestInterleaved(t *testing.T) {
	s, err := Interleaved(32000, afe.SlotAcquire, SampleDelay,
		Stimulus{Slot: afe.SlotStimulusA, Interval: 100 * time.Millisecond},
		Stimulus{Slot: afe.SlotStimulusB, Interval: 100 * time.Millisecond},
	)
	require.NoError(t, err)
	assert.Equal(t, []afe.Slot{afe.SlotStimulusA, afe.SlotAcquire, afe.SlotStimulusB, afe.SlotAcquire}, s.Order)
	assert.Equal(t, afe.SlotTiming{SleepTicks: 1, WakeTicks: 31}, s.Timing[afe.SlotAcquire])
	assert.Equal(t, afe.SlotTiming{SleepTicks: 1, WakeTicks: 3167}, s.Timing[afe.SlotStimulusA])
	assert.Equal(t, afe.SlotTiming{SleepTicks: 1, WakeTicks: 3167}, s.Timing[afe.SlotStimulusB])
	assert.NoError(t, s.Validate())
}

func TestInterleaved_Errors(t *testing.T) {
	tests := []struct {
		name    string
		stimuli []Stimulus
	}{
		{name: "no stimulus"},
		{
			name:    "interval not above delay",
			stimuli: []Stimulus{{Slot: afe.SlotStimulusA, Interval: SampleDelay}},
		},
		{
			name:    "stimulus on acquisition slot",
			stimuli: []Stimulus{{Slot: afe.SlotAcquire, Interval: time.Second}},
		},
		{
			name: "order too long",
			stimuli: []Stimulus{
				{Slot: afe.SlotStimulusA, Interval: time.Second},
				{Slot: afe.SlotStimulusB, Interval: time.Second},
				{Slot: afe.SlotStimulusA, Interval: time.Second},
				{Slot: afe.SlotStimulusB, Interval: time.Second},
				{Slot: afe.SlotStimulusA, Interval: time.Second},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Interleaved(32000, afe.SlotAcquire, SampleDelay, tt.stimuli...)
			assert.ErrorIs(t, err, afe.ErrParameterInvalid)
		})
	}
}

func TestInstall(t *testing.T) {
	m := afe.NewMock(nil)
	s, err := Single(afe.SlotAcquire, 32000, time.Second)
	require.NoError(t, err)
	require.NoError(t, Install(m, s))
	assert.Equal(t, s, m.Schedule())

	m.ResetCalls()
	assert.ErrorIs(t, Install(m, afe.WakeupSchedule{}), afe.ErrParameterInvalid)
	assert.Empty(t, m.Calls(), "invalid schedule never reaches the device")
}

func TestSeconds(t *testing.T) {
	assert.Equal(t, 250*time.Millisecond, Seconds(0.25))
	assert.Equal(t, 10*time.Second, Seconds(10))
}
