// Package fifo services the AFE data FIFO threshold interrupt.
package fifo

import (
	"fmt"
	"log/slog"

	"github.com/itohio/goafe/pkg/afe"
)

// Threshold directives for Service.
const (
	// Stop powers the analog chain down after the drain.
	Stop int32 = 0
	// Keep leaves the FIFO threshold and control state as they are.
	Keep int32 = -1
)

// Handler drains the FIFO of one device. It is not safe for concurrent
// use; the interrupt path is the only caller while a technique runs.
type Handler struct {
	dev         afe.Device
	logger      *slog.Logger
	wakeRetries int
	tempSensOff bool
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithWakeRetries bounds the wake attempts made per interrupt.
func WithWakeRetries(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.wakeRetries = n
		}
	}
}

// WithTempSensorOff makes a stop also clear the temperature sensor control
// register before powering down. Electrochemical techniques use it.
func WithTempSensorOff() Option {
	return func(h *Handler) { h.tempSensOff = true }
}

// New creates a Handler for dev.
func New(dev afe.Device, opts ...Option) *Handler {
	h := &Handler{
		dev:         dev,
		logger:      slog.Default(),
		wakeRetries: afe.DefaultWakeRetries,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Service drains the FIFO into buf and applies the threshold directive:
// Stop (0) powers the analog chain down, a positive value resets the FIFO
// and arms that threshold, a negative value leaves the FIFO untouched.
//
// The returned count is valid even with ErrBufferOverflow, in which case no
// data was read and the call can be repeated with a larger buf.
func (h *Handler) Service(newThreshold int32, buf []uint32) (int, error) {
	if err := afe.WakeUp(h.dev, h.wakeRetries); err != nil {
		return 0, err
	}

	if err := h.dev.LockSleep(true); err != nil {
		return 0, fmt.Errorf("failed to lock sleep: %w", err)
	}
	count, err := h.dev.FIFOCount()
	if err != nil {
		return 0, fmt.Errorf("failed to read fifo count: %w", err)
	}
	if count > len(buf) {
		if err := h.dev.LockSleep(false); err != nil {
			return count, fmt.Errorf("failed to unlock sleep: %w", err)
		}
		return count, fmt.Errorf("%w: %d words pending, buffer holds %d", afe.ErrBufferOverflow, count, len(buf))
	}
	if err := h.dev.ReadFIFO(buf[:count]); err != nil {
		return 0, fmt.Errorf("failed to read fifo: %w", err)
	}
	if err := h.dev.LockSleep(false); err != nil {
		return count, fmt.Errorf("failed to unlock sleep: %w", err)
	}

	if err := h.dev.ClearInterruptFlags(afe.IntFIFOThreshold); err != nil {
		return count, fmt.Errorf("failed to clear fifo threshold flag: %w", err)
	}
	if err := h.apply(newThreshold); err != nil {
		return count, err
	}

	h.logger.Debug("fifo serviced", "count", count, "threshold", newThreshold)
	return count, nil
}

func (h *Handler) apply(newThreshold int32) error {
	switch {
	case newThreshold == Stop:
		if h.tempSensOff {
			if err := h.dev.WriteReg(afe.RegTempSens, 0); err != nil {
				return fmt.Errorf("failed to stop temperature sensor: %w", err)
			}
		}
		if err := h.dev.PowerDown(); err != nil {
			return fmt.Errorf("failed to power down: %w", err)
		}
	case newThreshold > 0:
		if err := h.dev.ResetFIFO(); err != nil {
			return fmt.Errorf("failed to reset fifo: %w", err)
		}
		if err := h.dev.SetFIFOThreshold(int(newThreshold)); err != nil {
			return fmt.Errorf("failed to set fifo threshold: %w", err)
		}
	}
	return nil
}

// ISR is Service in interrupt service routine form: at most capacity words
// are stored in buf, count is always written and errors are reported as
// codes.
func (h *Handler) ISR(newThreshold int32, capacity uint16, buf []uint32, count *uint16) afe.ErrorCode {
	limit := min(int(capacity), len(buf))
	n, err := h.Service(newThreshold, buf[:limit])
	if count != nil {
		*count = uint16(min(n, 0xFFFF))
	}
	if err != nil {
		h.logger.Warn("fifo interrupt failed", "error", err, "count", n)
	}
	return afe.CodeOf(err)
}
