package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Device      DeviceConfig      `yaml:"device"`
	Run         RunConfig         `yaml:"run"`
	Path        PathConfig        `yaml:"path"`
	DSP         DSPConfig         `yaml:"dsp"`
	CA          CAConfig          `yaml:"ca"`
	CV          CVConfig          `yaml:"cv"`
	DPV         DPVConfig         `yaml:"dpv"`
	EIS         EISConfig         `yaml:"eis"`
	Temperature TemperatureConfig `yaml:"temperature"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Mock        MockConfig        `yaml:"mock"`
}

// DeviceConfig selects and parameterises the transport to the AFE.
type DeviceConfig struct {
	Transport      string  `yaml:"transport"` // mock, serial or spi
	Port           string  `yaml:"port"`      // Serial bridge port
	BaudRate       int     `yaml:"baud_rate"`
	SPIPort        string  `yaml:"spi_port"` // periph SPI port name, e.g. /dev/spidev0.0
	SPISpeedHz     int64   `yaml:"spi_speed_hz"`
	IRQPin         string  `yaml:"irq_pin"` // GPIO wired to the AFE interrupt line
	WakeRetries    int     `yaml:"wake_retries"`
	LFOSCFrequency float64 `yaml:"lfosc_frequency"` // Measured low-frequency oscillator (Hz)
	ProgramWords   int     `yaml:"program_words"`   // Sequencer memory available to programs
}

// RunConfig contains FIFO, interrupt and clock settings shared by all techniques.
type RunConfig struct {
	FIFOThreshold       int     `yaml:"fifo_threshold"`
	FIFOSource          string  `yaml:"fifo_source"` // sinc3, sinc2notch, dft, mean, var
	DataType            string  `yaml:"data_type"`   // adc_raw, sinc3, sinc2, dft
	InterruptController int     `yaml:"interrupt_controller"`
	InterruptPin        int     `yaml:"interrupt_pin"` // AFE GPIO used as the interrupt output
	SystemClockHz       float64 `yaml:"system_clock_hz"`
	ADCClockHz          float64 `yaml:"adc_clock_hz"`
}

// PathConfig selects the analog signal path.
type PathConfig struct {
	Kind    string  `yaml:"kind"`     // lpdac_lptia, lpdac_hstia, hsdac_hstia
	Vzero   float64 `yaml:"vzero"`    // Working electrode bias (V)
	RTIA    float64 `yaml:"rtia"`     // Transimpedance gain resistor (Ohm)
	PGAGain float64 `yaml:"pga_gain"` // ADC programmable gain
	VRef    float64 `yaml:"vref"`     // ADC reference (V)
}

// DSPConfig contains the ADC filter chain and DFT settings.
type DSPConfig struct {
	ADCAverage  int  `yaml:"adc_average"`
	Sinc2OSR    int  `yaml:"sinc2_osr"`
	Sinc3OSR    int  `yaml:"sinc3_osr"`
	BypassNotch bool `yaml:"bypass_notch"`
	DFTPoints   int  `yaml:"dft_points"`
}

// CAConfig contains chronoamperometry parameters.
type CAConfig struct {
	EDC       float64 `yaml:"e_dc"`       // Held potential (V)
	TInterval float64 `yaml:"t_interval"` // Sampling interval (s)
	TRun      float64 `yaml:"t_run"`      // Total run time (s)
}

// CVConfig contains cyclic voltammetry parameters.
type CVConfig struct {
	EBegin   float64 `yaml:"e_begin"`
	EVertex1 float64 `yaml:"e_vertex1"`
	EVertex2 float64 `yaml:"e_vertex2"`
	EStep    float64 `yaml:"e_step"`
	ScanRate float64 `yaml:"scan_rate"` // V/s
}

// DPVConfig contains differential pulse voltammetry parameters.
type DPVConfig struct {
	EBegin    float64 `yaml:"e_begin"`
	EEnd      float64 `yaml:"e_end"`
	EStep     float64 `yaml:"e_step"`
	EPulse    float64 `yaml:"e_pulse"`
	TPulse    float64 `yaml:"t_pulse"`
	ScanRate  float64 `yaml:"scan_rate"`
	Inversion string  `yaml:"inversion"` // none, both, cathodic, anodic
}

// EISConfig contains impedance spectroscopy parameters.
type EISConfig struct {
	Scan      string  `yaml:"scan"` // potential, time, fixed
	EBegin    float64 `yaml:"e_begin"`
	EEnd      float64 `yaml:"e_end"`
	EStep     float64 `yaml:"e_step"`
	EDC       float64 `yaml:"e_dc"`
	EAC       float64 `yaml:"e_ac"`
	TRun      float64 `yaml:"t_run"`
	TInterval float64 `yaml:"t_interval"`

	Frequency      string  `yaml:"frequency"` // fixed, sweep
	FixedFrequency float64 `yaml:"fixed_frequency"`
	FMin           float64 `yaml:"f_min"`
	FMax           float64 `yaml:"f_max"`
	Points         int     `yaml:"points"`
}

// TemperatureConfig contains temperature sensing parameters.
type TemperatureConfig struct {
	SamplingInterval float64 `yaml:"sampling_interval"` // s
	TempSens         uint32  `yaml:"tempsens"`          // Raw sensor control register value
}

// CalibrationConfig contains the ADC code correction applied before current conversion.
type CalibrationConfig struct {
	Offset float64 `yaml:"offset"` // ADC code offset
	Scale  float64 `yaml:"scale"`  // Multiplicative correction
}

// MockConfig contains mock device configuration.
type MockConfig struct {
	Gain         float64       `yaml:"gain"`         // ADC codes per LPDAC code above mid-scale
	NoiseLevel   float64       `yaml:"noise_level"`  // Noise amplitude (ADC codes)
	Temperature  float64       `yaml:"temperature"`  // Simulated die temperature (C)
	SampleRate   time.Duration `yaml:"sample_rate"`  // Wakeup timer tick period
	FIFODepth    int           `yaml:"fifo_depth"`   // FIFO capacity (words)
	WakeFailures int           `yaml:"wake_failures"` // Failed wake attempts before the first success
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Transport:      "mock",
			Port:           "/dev/ttyACM0",
			BaudRate:       115200,
			SPIPort:        "/dev/spidev0.0",
			SPISpeedHz:     8000000,
			IRQPin:         "GPIO25",
			WakeRetries:    10,
			LFOSCFrequency: 32000,
			ProgramWords:   512,
		},
		Run: RunConfig{
			FIFOThreshold:       4,
			FIFOSource:          "sinc3",
			DataType:            "sinc3",
			InterruptController: 0,
			InterruptPin:        0,
			SystemClockHz:       16000000,
			ADCClockHz:          16000000,
		},
		Path: PathConfig{
			Kind:    "lpdac_lptia",
			Vzero:   1.3,
			RTIA:    10000,
			PGAGain: 1.5,
			VRef:    1.82,
		},
		DSP: DSPConfig{
			ADCAverage: 16,
			Sinc2OSR:   22,
			Sinc3OSR:   4,
			DFTPoints:  16384,
		},
		CA: CAConfig{
			EDC:       0.2,
			TInterval: 0.1,
			TRun:      10,
		},
		CV: CVConfig{
			EBegin:   -0.5,
			EVertex1: 0.5,
			EVertex2: -0.5,
			EStep:    0.05,
			ScanRate: 0.1,
		},
		DPV: DPVConfig{
			EBegin:    -0.5,
			EEnd:      0.5,
			EStep:     0.05,
			EPulse:    0.05,
			TPulse:    0.05,
			ScanRate:  0.05,
			Inversion: "none",
		},
		EIS: EISConfig{
			Scan:           "fixed",
			EDC:            0,
			EAC:            0.01,
			TRun:           10,
			TInterval:      0.5,
			Frequency:      "sweep",
			FixedFrequency: 1000,
			FMin:           10,
			FMax:           100000,
			Points:         20,
		},
		Temperature: TemperatureConfig{
			SamplingInterval: 1,
			TempSens:         0,
		},
		Calibration: CalibrationConfig{
			Offset: 0,
			Scale:  1,
		},
		Mock: MockConfig{
			Gain:         4.0,
			NoiseLevel:   0,
			Temperature:  25,
			SampleRate:   10 * time.Millisecond,
			FIFODepth:    1024,
			WakeFailures: 0,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults fills zero values that have no meaningful zero setting.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Device.Transport == "" {
		c.Device.Transport = def.Device.Transport
	}
	if c.Device.BaudRate == 0 {
		c.Device.BaudRate = def.Device.BaudRate
	}
	if c.Device.SPISpeedHz == 0 {
		c.Device.SPISpeedHz = def.Device.SPISpeedHz
	}
	if c.Device.WakeRetries == 0 {
		c.Device.WakeRetries = def.Device.WakeRetries
	}
	if c.Device.LFOSCFrequency == 0 {
		c.Device.LFOSCFrequency = def.Device.LFOSCFrequency
	}
	if c.Device.ProgramWords == 0 {
		c.Device.ProgramWords = def.Device.ProgramWords
	}

	if c.Run.FIFOThreshold == 0 {
		c.Run.FIFOThreshold = def.Run.FIFOThreshold
	}
	if c.Run.FIFOSource == "" {
		c.Run.FIFOSource = def.Run.FIFOSource
	}
	if c.Run.DataType == "" {
		c.Run.DataType = def.Run.DataType
	}
	if c.Run.SystemClockHz == 0 {
		c.Run.SystemClockHz = def.Run.SystemClockHz
	}
	if c.Run.ADCClockHz == 0 {
		c.Run.ADCClockHz = def.Run.ADCClockHz
	}

	if c.Path.Kind == "" {
		c.Path.Kind = def.Path.Kind
	}
	if c.Path.RTIA == 0 {
		c.Path.RTIA = def.Path.RTIA
	}
	if c.Path.PGAGain == 0 {
		c.Path.PGAGain = def.Path.PGAGain
	}
	if c.Path.VRef == 0 {
		c.Path.VRef = def.Path.VRef
	}

	if c.DSP.Sinc3OSR == 0 {
		c.DSP.Sinc3OSR = def.DSP.Sinc3OSR
	}
	if c.DSP.Sinc2OSR == 0 {
		c.DSP.Sinc2OSR = def.DSP.Sinc2OSR
	}

	if c.DPV.Inversion == "" {
		c.DPV.Inversion = def.DPV.Inversion
	}
	if c.EIS.Scan == "" {
		c.EIS.Scan = def.EIS.Scan
	}
	if c.EIS.Frequency == "" {
		c.EIS.Frequency = def.EIS.Frequency
	}

	if c.Calibration.Scale == 0 {
		c.Calibration.Scale = def.Calibration.Scale
	}

	if c.Mock.SampleRate == 0 {
		c.Mock.SampleRate = def.Mock.SampleRate
	}
	if c.Mock.FIFODepth == 0 {
		c.Mock.FIFODepth = def.Mock.FIFODepth
	}
}
