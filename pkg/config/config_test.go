package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, "mock", cfg.Device.Transport)
	assert.Equal(t, 10, cfg.Device.WakeRetries)
	assert.Equal(t, float64(32000), cfg.Device.LFOSCFrequency)
	assert.Equal(t, 512, cfg.Device.ProgramWords)
	assert.Equal(t, 4, cfg.Run.FIFOThreshold)
	assert.Equal(t, "lpdac_lptia", cfg.Path.Kind)
	assert.Equal(t, float64(-0.5), cfg.CV.EBegin)
	assert.Equal(t, float64(0.5), cfg.CV.EVertex1)
	assert.Equal(t, "none", cfg.DPV.Inversion)
	assert.Equal(t, "sweep", cfg.EIS.Frequency)
	assert.Equal(t, float64(1), cfg.Calibration.Scale)
	assert.Equal(t, 10*time.Millisecond, cfg.Mock.SampleRate)
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "mock", cfg.Device.Transport)
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
device:
  transport: serial
  port: "/dev/ttyUSB1"
  wake_retries: 5
  lfosc_frequency: 32768

run:
  fifo_threshold: 8
  fifo_source: dft

path:
  kind: hsdac_hstia
  rtia: 5000

cv:
  e_begin: -0.2
  e_vertex1: 0.8
  e_vertex2: -0.6
  e_step: 0.02
  scan_rate: 0.05

eis:
  scan: potential
  frequency: fixed
  fixed_frequency: 250

mock:
  sample_rate: 5ms
  wake_failures: 3
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "serial", cfg.Device.Transport)
	assert.Equal(t, "/dev/ttyUSB1", cfg.Device.Port)
	assert.Equal(t, 5, cfg.Device.WakeRetries)
	assert.Equal(t, float64(32768), cfg.Device.LFOSCFrequency)
	assert.Equal(t, 8, cfg.Run.FIFOThreshold)
	assert.Equal(t, "dft", cfg.Run.FIFOSource)
	assert.Equal(t, "hsdac_hstia", cfg.Path.Kind)
	assert.Equal(t, float64(5000), cfg.Path.RTIA)
	assert.Equal(t, float64(0.8), cfg.CV.EVertex1)
	assert.Equal(t, float64(0.02), cfg.CV.EStep)
	assert.Equal(t, "potential", cfg.EIS.Scan)
	assert.Equal(t, float64(250), cfg.EIS.FixedFrequency)
	assert.Equal(t, 5*time.Millisecond, cfg.Mock.SampleRate)
	assert.Equal(t, 3, cfg.Mock.WakeFailures)
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("invalid: yaml: content: [")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_PartialYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
device:
  port: "/dev/ttyACM1"
path:
  kind: ""
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// Should use defaults for missing fields
	assert.Equal(t, "/dev/ttyACM1", cfg.Device.Port)
	assert.Equal(t, "mock", cfg.Device.Transport)
	assert.Equal(t, "lpdac_lptia", cfg.Path.Kind)
	assert.Equal(t, float64(32000), cfg.Device.LFOSCFrequency)
	assert.Equal(t, 1024, cfg.Mock.FIFODepth)
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Device.Port = "/dev/ttyUSB0"
	cfg.DPV.Inversion = "cathodic"
	cfg.Temperature.TempSens = 0x3

	tmpfile, err := os.CreateTemp("", "test_save_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	err = cfg.Save(tmpfile.Name())
	require.NoError(t, err)

	loaded, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", loaded.Device.Port)
	assert.Equal(t, "cathodic", loaded.DPV.Inversion)
	assert.Equal(t, uint32(0x3), loaded.Temperature.TempSens)
	assert.Equal(t, cfg.Mock.SampleRate, loaded.Mock.SampleRate)
}
