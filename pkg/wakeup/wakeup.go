// Package wakeup computes and installs wakeup timer schedules.
package wakeup

import (
	"fmt"
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/goafe/pkg/afe"
)

const (
	// MinSleepTicks is the shortest legal sleep period (two oscillator
	// clocks). Every slot sleeps exactly this long.
	MinSleepTicks = 1
	// SampleDelay is the time between a stimulus update and the
	// acquisition that samples it.
	SampleDelay = time.Millisecond
)

// Ticks converts interval into wake ticks of an oscillator running at freq
// Hz. The timer adds one tick of its own, so the result is one less than the
// floored product, and never below one.
func Ticks(freq float32, interval time.Duration) (uint32, error) {
	if math32.IsNaN(freq) || freq <= 0 || math32.IsInf(freq, 1) {
		return 0, fmt.Errorf("%w: oscillator frequency %v", afe.ErrParameterInvalid, freq)
	}
	if interval < 0 {
		return 0, fmt.Errorf("%w: negative interval %v", afe.ErrParameterInvalid, interval)
	}
	ticks := math32.Floor(float32(float32(interval.Seconds()) * freq))
	if ticks > afe.MaxWakeupTicks+1 {
		return 0, fmt.Errorf("%w: %v at %v Hz exceeds the wakeup counter", afe.ErrParameterInvalid, interval, freq)
	}
	if ticks <= 1 {
		return 1, nil
	}
	return uint32(ticks) - 1, nil
}

// Seconds converts a float number of seconds into a Duration.
func Seconds(s float32) time.Duration {
	return time.Duration(float64(s) * float64(time.Second))
}

// Single schedules one slot every interval.
func Single(slot afe.Slot, freq float32, interval time.Duration) (afe.WakeupSchedule, error) {
	ticks, err := Ticks(freq, interval)
	if err != nil {
		return afe.WakeupSchedule{}, err
	}
	s := afe.WakeupSchedule{Order: []afe.Slot{slot}}
	s.Timing[slot] = afe.SlotTiming{SleepTicks: MinSleepTicks, WakeTicks: ticks}
	return s, nil
}

// Stimulus is a stimulus slot and the time it keeps its set-point before
// the next acquisition wakeup.
type Stimulus struct {
	Slot     afe.Slot
	Interval time.Duration
}

// Interleaved schedules each stimulus slot followed by the acquisition slot:
// stimulus[0], acquire, stimulus[1], acquire, ... The acquisition slot wakes
// delay after a stimulus update and each stimulus slot wakes its interval
// minus delay after the acquisition, so every stimulus period is exactly
// its interval.
func Interleaved(freq float32, acquire afe.Slot, delay time.Duration, stimuli ...Stimulus) (afe.WakeupSchedule, error) {
	if len(stimuli) == 0 || 2*len(stimuli) > afe.MaxWakeupOrder {
		return afe.WakeupSchedule{}, fmt.Errorf("%w: %d stimulus slots", afe.ErrParameterInvalid, len(stimuli))
	}
	acqTicks, err := Ticks(freq, delay)
	if err != nil {
		return afe.WakeupSchedule{}, err
	}

	var s afe.WakeupSchedule
	s.Timing[acquire] = afe.SlotTiming{SleepTicks: MinSleepTicks, WakeTicks: acqTicks}
	for _, st := range stimuli {
		if st.Slot == acquire {
			return afe.WakeupSchedule{}, fmt.Errorf("%w: slot %d is both stimulus and acquisition", afe.ErrParameterInvalid, st.Slot)
		}
		if st.Interval <= delay {
			return afe.WakeupSchedule{}, fmt.Errorf("%w: interval %v not above sample delay %v", afe.ErrParameterInvalid, st.Interval, delay)
		}
		ticks, err := Ticks(freq, st.Interval-delay)
		if err != nil {
			return afe.WakeupSchedule{}, err
		}
		s.Timing[st.Slot] = afe.SlotTiming{SleepTicks: MinSleepTicks, WakeTicks: ticks}
		s.Order = append(s.Order, st.Slot, acquire)
	}
	return s, nil
}

// Install validates s and programs the device wakeup timer.
func Install(dev afe.Device, s afe.WakeupSchedule) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := dev.ConfigureWakeupTimer(s); err != nil {
		return fmt.Errorf("failed to configure wakeup timer: %w", err)
	}
	return nil
}
