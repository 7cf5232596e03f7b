package technique

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/itohio/goafe/pkg/afe"
	"github.com/itohio/goafe/pkg/config"
	"github.com/itohio/goafe/pkg/fifo"
	"github.com/itohio/goafe/pkg/wakeup"
)

// Runner installs techniques on one device and services its FIFO while they
// run. Start and Service calls are serialised.
type Runner struct {
	dev          afe.Device
	logger       *slog.Logger
	wakeRetries  int
	programWords int

	mu      sync.Mutex
	state   atomic.Uint32
	runID   uuid.UUID
	setup   *Setup
	handler *fifo.Handler
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithWakeRetries bounds the wake attempts at start and per interrupt.
func WithWakeRetries(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.wakeRetries = n
		}
	}
}

// WithProgramWords limits the sequencer memory programs may use.
func WithProgramWords(n int) Option {
	return func(r *Runner) { r.programWords = n }
}

// NewRunner creates a Runner for dev.
func NewRunner(dev afe.Device, opts ...Option) *Runner {
	r := &Runner{
		dev:          dev,
		logger:       slog.Default(),
		wakeRetries:  afe.DefaultWakeRetries,
		programWords: afe.SeqMemoryWords,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	return State(r.state.Load())
}

func (r *Runner) setState(s State) {
	r.state.Store(uint32(s))
}

// Setup returns the setup of the last started technique, or nil.
func (r *Runner) Setup() *Setup {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setup
}

// RunID identifies the last started run in logs.
func (r *Runner) RunID() uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runID
}

// StartCA starts chronoamperometry.
func (r *Runner) StartCA(cfg CAConfig) error {
	return r.start(BuildCA(cfg, r.programWords))
}

// StartCV starts cyclic voltammetry.
func (r *Runner) StartCV(cfg CVConfig) error {
	return r.start(BuildCV(cfg, r.programWords))
}

// StartDPV starts differential pulse voltammetry.
func (r *Runner) StartDPV(cfg DPVConfig) error {
	return r.start(BuildDPV(cfg, r.programWords))
}

// StartEIS starts impedance spectroscopy.
func (r *Runner) StartEIS(cfg EISConfig) error {
	return r.start(BuildEIS(cfg, r.programWords))
}

// StartTemperature starts die temperature sampling.
func (r *Runner) StartTemperature(cfg TemperatureConfig) error {
	return r.start(BuildTemperature(cfg, r.programWords))
}

// StartFromConfig builds the named technique from cfg and starts it.
func (r *Runner) StartFromConfig(name string, cfg *config.Config) error {
	return r.start(BuildFromConfig(name, cfg))
}

func (r *Runner) start(s *Setup, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st := r.State(); st == Armed || st == Running {
		return fmt.Errorf("%w: runner is %s", afe.ErrParameterInvalid, st)
	}
	r.setState(Configuring)
	if err != nil {
		r.setState(Faulted)
		return err
	}

	r.runID = newRunID()
	r.setup = s
	log := r.logger.With("technique", s.Technique, "run", r.runID)

	if err := r.install(s); err != nil {
		r.setState(Faulted)
		log.Error("technique failed to start", "error", err)
		return err
	}

	opts := []fifo.Option{fifo.WithLogger(log), fifo.WithWakeRetries(r.wakeRetries)}
	if s.TempSensorOff {
		opts = append(opts, fifo.WithTempSensorOff())
	}
	r.handler = fifo.New(r.dev, opts...)
	r.setState(Running)
	log.Info("technique running", "words", s.Image.Words(), "count", s.Total, "threshold", s.Threshold)
	return nil
}

// install applies s to the device in start order and stops at the first
// failure.
func (r *Runner) install(s *Setup) error {
	dev := r.dev
	if err := afe.WakeUp(dev, r.wakeRetries); err != nil {
		return err
	}
	if err := dev.ClearInterruptFlags(afe.IntAll); err != nil {
		return fmt.Errorf("failed to clear interrupt flags: %w", err)
	}
	for _, w := range s.PreWrites {
		if err := dev.WriteReg(w.Addr, w.Val); err != nil {
			return fmt.Errorf("failed to write register %#04x: %w", w.Addr, err)
		}
	}
	if err := dev.EnableSequencer(false); err != nil {
		return fmt.Errorf("failed to disable sequencer: %w", err)
	}
	if err := dev.EnableFIFO(s.Source, false); err != nil {
		return fmt.Errorf("failed to disable fifo: %w", err)
	}
	if err := dev.ConfigureAnalogPath(s.Path); err != nil {
		return fmt.Errorf("failed to configure analog path: %w", err)
	}
	if err := s.Image.Load(dev); err != nil {
		return err
	}
	if err := dev.ConfigureDSP(s.DSP); err != nil {
		return fmt.Errorf("failed to configure dsp: %w", err)
	}
	if err := dev.ConfigureInterruptRouting(s.Routing); err != nil {
		return fmt.Errorf("failed to route interrupts: %w", err)
	}
	if err := dev.ClearInterruptFlags(afe.IntAll); err != nil {
		return fmt.Errorf("failed to clear interrupt flags: %w", err)
	}
	r.setState(Armed)

	if err := dev.SetFIFOThreshold(s.Threshold); err != nil {
		return fmt.Errorf("failed to set fifo threshold: %w", err)
	}
	if err := dev.EnableFIFO(s.Source, true); err != nil {
		return fmt.Errorf("failed to enable fifo: %w", err)
	}
	if err := dev.EnableSequencer(true); err != nil {
		return fmt.Errorf("failed to enable sequencer: %w", err)
	}
	return wakeup.Install(dev, s.Schedule)
}

// Service drains the FIFO once with the given threshold directive; see
// fifo.Handler.Service. A successful stop moves the runner to Stopped.
func (r *Runner) Service(newThreshold int32, buf []uint32) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State() != Running {
		return 0, fmt.Errorf("%w: runner is %s", afe.ErrParameterInvalid, r.State())
	}
	n, err := r.handler.Service(newThreshold, buf)
	switch {
	case errors.Is(err, afe.ErrBufferOverflow):
	case err != nil:
		r.setState(Faulted)
	case newThreshold == fifo.Stop:
		r.setState(Stopped)
	}
	return n, err
}

// Drain services interrupts until the run completes or ctx is cancelled,
// handing every batch to sink; see fifo.Handler.Drain.
func (r *Runner) Drain(ctx context.Context, sink fifo.Sink) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State() != Running {
		return 0, fmt.Errorf("%w: runner is %s", afe.ErrParameterInvalid, r.State())
	}
	plan := fifo.Plan{Threshold: r.setup.Threshold, Total: r.setup.Total}
	n, err := r.handler.Drain(ctx, plan, sink)
	if err != nil {
		r.setState(Faulted)
		return n, err
	}
	r.setState(Stopped)
	r.logger.Info("technique stopped", "technique", r.setup.Technique, "run", r.runID, "count", n)
	return n, nil
}

func newRunID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}
