package fifo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/itohio/goafe/pkg/afe"
)

// DefaultStopTimeout bounds the wait for the interrupt that delivers the
// stop directive after the drain context is cancelled.
const DefaultStopTimeout = 5 * time.Second

// ErrNoStopInterrupt is returned when no interrupt arrived to deliver the
// stop directive.
var ErrNoStopInterrupt = errors.New("no interrupt to deliver stop")

// Plan describes a drain run.
type Plan struct {
	// Threshold is the FIFO threshold armed when the technique started.
	Threshold int
	// Total is the number of words the run produces; 0 runs until the
	// context is cancelled.
	Total int
	// StopTimeout overrides DefaultStopTimeout.
	StopTimeout time.Duration
}

// Sink receives each drained batch. The slice is reused after Sink returns.
type Sink func(words []uint32) error

// Drain services interrupts from the device until plan.Total words were
// received or ctx is cancelled, then delivers the stop directive on the
// next interrupt. Each batch goes to sink. The threshold is lowered for the
// last partial batch. A FIFO holding more than the buffer grows the buffer
// and retries, so no data is lost.
func (h *Handler) Drain(ctx context.Context, plan Plan, sink Sink) (int, error) {
	if plan.Threshold <= 0 {
		return 0, fmt.Errorf("%w: fifo threshold %d", afe.ErrParameterInvalid, plan.Threshold)
	}
	stopTimeout := plan.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}

	buf := make([]uint32, plan.Threshold)
	threshold := plan.Threshold
	got := 0
	stopping := false
	irq := h.dev.Interrupts()

	// The drain is expected to return pending words; a larger FIFO shows
	// up as an overflow and the directive is recomputed from its count.
	next := func(pending int) int32 {
		if stopping {
			return Stop
		}
		if plan.Total <= 0 {
			return Keep
		}
		remaining := plan.Total - got - pending
		switch {
		case remaining <= 0:
			return Stop
		case remaining < threshold:
			threshold = remaining
			return int32(remaining)
		}
		return Keep
	}

	for {
		if !stopping {
			select {
			case <-irq:
			case <-ctx.Done():
				stopping = true
				h.logger.Debug("drain cancelled, waiting for final interrupt", "received", got)
				continue
			}
		} else {
			select {
			case <-irq:
			case <-time.After(stopTimeout):
				return got, ErrNoStopInterrupt
			}
		}

		directive := next(threshold)
		n, err := h.Service(directive, buf)
		for errors.Is(err, afe.ErrBufferOverflow) {
			h.logger.Debug("fifo larger than buffer, growing", "count", n, "buffer", len(buf))
			buf = make([]uint32, n)
			directive = next(n)
			n, err = h.Service(directive, buf)
		}
		if err != nil {
			return got, err
		}
		got += n
		if n > 0 {
			if err := sink(buf[:n]); err != nil {
				return got, fmt.Errorf("failed to deliver samples: %w", err)
			}
		}
		if directive == Stop {
			return got, nil
		}
	}
}
