// Package seq synthesises AFE sequencer programs.
//
// Programs are compiled into an Image held in host memory. Nothing touches
// the device until Image.Load, so a parameter or memory capacity error never
// leaves a half written program behind.
//
// Ramp techniques compile into a chain of fixed-size blocks. Each block
// applies one stimulus set-point and then relinks the stimulus slot that is
// not currently running to the next block, so the two stimulus slots
// leapfrog through the chain and wrap from the last block to the first.
package seq
