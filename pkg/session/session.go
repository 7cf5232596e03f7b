// Package session opens the configured AFE transport and runs techniques on
// it, streaming FIFO words and converted samples to the caller.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/itohio/goafe/pkg/afe"
	"github.com/itohio/goafe/pkg/config"
	"github.com/itohio/goafe/pkg/sample"
	"github.com/itohio/goafe/pkg/technique"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// DefaultBufferSize is the capacity of the word and sample channels.
const DefaultBufferSize = 500

// Session owns one device and the runner driving it.
type Session struct {
	cfg     *config.Config
	logger  *slog.Logger
	dev     afe.Device
	runner  *technique.Runner
	bufSize int
	closers []func() error
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger passed down to the runner.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithDevice uses dev instead of opening the configured transport. The
// session closes it on Close.
func WithDevice(dev afe.Device) Option {
	return func(s *Session) { s.dev = dev }
}

// WithBufferSize sets the channel capacity of measurements.
func WithBufferSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.bufSize = n
		}
	}
}

// Open connects to the device selected by cfg.Device.Transport. A mock
// device is clocked until ctx is done or the session is closed.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Session, error) {
	s := &Session{
		cfg:     cfg,
		logger:  slog.Default(),
		bufSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.dev == nil {
		if err := s.open(ctx); err != nil {
			s.Close()
			return nil, err
		}
	} else {
		s.closers = append(s.closers, s.dev.Close)
	}

	s.runner = technique.NewRunner(s.dev,
		technique.WithLogger(s.logger),
		technique.WithWakeRetries(cfg.Device.WakeRetries),
		technique.WithProgramWords(cfg.Device.ProgramWords),
	)
	return s, nil
}

func (s *Session) open(ctx context.Context) error {
	d := s.cfg.Device
	switch strings.ToLower(d.Transport) {
	case "mock":
		m := afe.NewMock(&s.cfg.Mock)
		ctx, cancel := context.WithCancel(ctx)
		go m.Run(ctx)
		s.dev = m
		s.closers = append(s.closers, func() error { cancel(); return m.Close() })
		s.logger.Info("using mocked device")
	case "serial":
		bus := afe.NewSerial(d.Port, d.BaudRate)
		if err := bus.Connect(); err != nil {
			return err
		}
		s.dev = afe.NewChip(bus)
		s.closers = append(s.closers, s.dev.Close)
		s.logger.Info("connected to serial bridge", "port", d.Port, "baud", d.BaudRate)
	case "spi":
		if _, err := host.Init(); err != nil {
			return fmt.Errorf("failed to initialize periph host: %w", err)
		}
		port, err := spireg.Open(d.SPIPort)
		if err != nil {
			return fmt.Errorf("failed to open spi port %s: %w", d.SPIPort, err)
		}
		s.closers = append(s.closers, port.Close)

		var irq gpio.PinIn
		if d.IRQPin != "" {
			pin := gpioreg.ByName(d.IRQPin)
			if pin == nil {
				return fmt.Errorf("%w: unknown gpio %q", afe.ErrParameterInvalid, d.IRQPin)
			}
			irq = pin
		}
		bus, err := afe.NewSPI(port, physic.Frequency(d.SPISpeedHz)*physic.Hertz, irq)
		if err != nil {
			return err
		}
		s.dev = afe.NewChip(bus)
		s.closers = append(s.closers, s.dev.Close)
		s.logger.Info("connected to spi", "port", d.SPIPort, "irq", d.IRQPin)
	default:
		return fmt.Errorf("%w: unknown transport %q", afe.ErrParameterInvalid, d.Transport)
	}
	return nil
}

// Device returns the session device.
func (s *Session) Device() afe.Device {
	return s.dev
}

// Runner returns the runner driving the device.
func (s *Session) Runner() *technique.Runner {
	return s.runner
}

// Close releases the device and transport in reverse opening order.
func (s *Session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Measurement is a started run. Words is closed once the run completes;
// Done then yields the drain result.
type Measurement struct {
	Setup *technique.Setup
	Words <-chan uint32
	Done  <-chan error
}

// Measure starts the named technique and drains it in the background until
// the run completes or ctx is cancelled. The caller must consume Words.
func (s *Session) Measure(ctx context.Context, name string) (*Measurement, error) {
	if err := s.runner.StartFromConfig(name, s.cfg); err != nil {
		return nil, err
	}

	words := make(chan uint32, s.bufSize)
	done := make(chan error, 1)
	go func() {
		defer close(done)
		defer close(words)
		_, err := s.runner.Drain(ctx, func(batch []uint32) error {
			for _, w := range batch {
				words <- w
			}
			return nil
		})
		done <- err
	}()

	return &Measurement{Setup: s.runner.Setup(), Words: words, Done: done}, nil
}

// Converter returns the sample converter matching the technique of setup,
// or nil when its FIFO words carry no cell current.
func (s *Session) Converter(setup *technique.Setup) (sample.Converter, error) {
	p := sample.ParamsFromConfig(s.cfg)
	switch setup.Technique {
	case "ca", "cv":
		return sample.NewConverter(p, setup.Timeline, s.bufSize), nil
	case "dpv":
		inv, err := sample.ParseInversion(s.cfg.DPV.Inversion)
		if err != nil {
			return nil, err
		}
		return sample.NewDPVConverter(p, setup.Timeline, inv, s.bufSize), nil
	}
	return nil, nil
}
