package afe

import (
	"errors"
)

// Error kinds reported by the device layer and everything built on it.
var (
	ErrParameterInvalid = errors.New("invalid parameter")
	ErrWakeFailed       = errors.New("device did not wake up")
	ErrBufferOverflow   = errors.New("fifo count exceeds buffer capacity")
	ErrProgramOverflow  = errors.New("sequencer memory exhausted")
	ErrNotConnected     = errors.New("not connected")
)

// ErrorCode is the numeric form of an error, as returned by interrupt
// service wrappers that cannot return Go errors.
type ErrorCode int

const (
	Ok ErrorCode = iota
	ParameterInvalid
	WakeFailed
	BufferOverflow
	ProgramOverflow
	TransportError
)

func (c ErrorCode) String() string {
	switch c {
	case Ok:
		return "ok"
	case ParameterInvalid:
		return "parameter invalid"
	case WakeFailed:
		return "wake failed"
	case BufferOverflow:
		return "buffer overflow"
	case ProgramOverflow:
		return "program overflow"
	case TransportError:
		return "transport error"
	}
	return "unknown"
}

// CodeOf maps an error to its ErrorCode. Errors that are not one of the
// package sentinels are reported as TransportError.
func CodeOf(err error) ErrorCode {
	switch {
	case err == nil:
		return Ok
	case errors.Is(err, ErrParameterInvalid):
		return ParameterInvalid
	case errors.Is(err, ErrWakeFailed):
		return WakeFailed
	case errors.Is(err, ErrBufferOverflow):
		return BufferOverflow
	case errors.Is(err, ErrProgramOverflow):
		return ProgramOverflow
	}
	return TransportError
}
