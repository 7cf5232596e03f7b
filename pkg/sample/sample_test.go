package sample

import (
	"math"
	"testing"
	"time"

	"github.com/itohio/goafe/pkg/afe"
	"github.com/itohio/goafe/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testParams = Params{VRef: 1.82, PGAGain: 1, RTIA: 10000, Scale: 1}

func TestVoltage(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		code   uint16
		want   float64
	}{
		{name: "mid scale", params: testParams, code: 0x8000, want: 0},
		{name: "three quarters", params: testParams, code: 0xC000, want: 0.91},
		{name: "one quarter", params: testParams, code: 0x4000, want: -0.91},
		{name: "pga gain", params: Params{VRef: 1.82, PGAGain: 2, Scale: 1}, code: 0xC000, want: 0.455},
		{name: "offset", params: Params{VRef: 1.82, PGAGain: 1, Offset: 0x4000, Scale: 1}, code: 0xC000, want: 0},
		{name: "zero scale and gain", params: Params{VRef: 1.82}, code: 0xC000, want: 0.91},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.params.Voltage(tt.code), 1e-6)
		})
	}
}

func TestCurrent(t *testing.T) {
	assert.InDelta(t, -91.0, testParams.Current(0xC000), 1e-6)
	assert.InDelta(t, 91.0, testParams.Current(0x4000), 1e-6)
	assert.Zero(t, testParams.Current(0x8000))
	assert.Zero(t, Params{VRef: 1.82}.Current(0xC000), "no rtia")
}

func TestParamsFromConfig(t *testing.T) {
	cfg := config.Default()
	p := ParamsFromConfig(cfg)
	assert.Equal(t, cfg.Path.VRef, p.VRef)
	assert.Equal(t, cfg.Path.PGAGain, p.PGAGain)
	assert.Equal(t, cfg.Path.RTIA, p.RTIA)
	assert.Equal(t, cfg.Calibration.Scale, p.Scale)
}

func linear(i int) (float32, time.Duration) {
	return float32(i) * 0.1, time.Duration(i) * 100 * time.Millisecond
}

func collect(t *testing.T, out <-chan Sample) []Sample {
	t.Helper()
	var got []Sample
	timeout := time.After(2 * time.Second)
	for {
		select {
		case s, ok := <-out:
			if !ok {
				return got
			}
			got = append(got, s)
		case <-timeout:
			t.Fatal("converter did not close its output")
		}
	}
}

func TestConverter(t *testing.T) {
	in := make(chan uint32, 8)
	in <- afe.FIFOWord(afe.TagADC, 0x8000)
	in <- afe.FIFOWord(afe.TagTemperature, 2424)
	in <- afe.FIFOWord(afe.TagADC, 0xC000)
	in <- afe.FIFOWord(afe.TagADC, 0x4000)
	close(in)

	got := collect(t, NewConverter(testParams, linear, 4)(in))
	require.Len(t, got, 3)

	for i, s := range got {
		assert.Equal(t, i, s.Index)
		assert.InDelta(t, float32(i)*0.1, s.Potential, 1e-6)
		assert.Equal(t, time.Duration(i)*100*time.Millisecond, s.Elapsed)
	}
	assert.Equal(t, uint16(0xC000), got[1].Code)
	assert.InDelta(t, -91.0, got[1].Current, 1e-6)
	assert.InDelta(t, 91.0, got[2].Current, 1e-6)
}

func TestConverterNoTimeline(t *testing.T) {
	in := make(chan uint32, 1)
	in <- afe.FIFOWord(afe.TagADC, 0x8000)
	close(in)

	got := collect(t, NewConverter(testParams, nil, 0)(in))
	require.Len(t, got, 1)
	assert.Zero(t, got[0].Potential)
	assert.Zero(t, got[0].Elapsed)
}

func TestConverterClosesOnInputClose(t *testing.T) {
	in := make(chan uint32)
	out := NewConverter(testParams, linear, 1)(in)
	close(in)

	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("output not closed")
	}
}

func TestCelsius(t *testing.T) {
	code := uint16(math.Round((25 + 273.15) * afe.TemperatureCodesPerKelvin))
	assert.InDelta(t, 25, Celsius(code), 0.1)
}
