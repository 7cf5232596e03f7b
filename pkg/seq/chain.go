package seq

import (
	"fmt"

	"github.com/itohio/goafe/pkg/afe"
)

// Chain describes a compiled relinking chain.
type Chain struct {
	Start    uint32 // address of block 0
	BlockLen uint32
	Blocks   int
}

// BlockAddr returns the address of block i.
func (c Chain) BlockAddr(i int) uint32 {
	return c.Start + uint32(i)*c.BlockLen
}

// BlockSlot returns the stimulus slot that executes block i. Block 0 runs
// from SlotStimulusA and the slots alternate from there.
func BlockSlot(i int) afe.Slot {
	if i%2 == 0 {
		return afe.SlotStimulusA
	}
	return afe.SlotStimulusB
}

// relinkSlot returns the slot block i points at the next block: the one
// that is not running it.
func relinkSlot(i int) afe.Slot {
	if i%2 == 0 {
		return afe.SlotStimulusB
	}
	return afe.SlotStimulusA
}

// CompileChain emits one block per step: the step's register writes, a
// settle wait and a relink of the idle stimulus slot to the next block. The
// last block relinks to the first. Every step must carry the same number of
// writes so all blocks share one length. Slot A is registered at block 0
// and slot B at block 1 (block 0 for a single step chain).
func CompileChain(a *Arena, steps [][]RegWrite) (Chain, error) {
	if len(steps) == 0 {
		return Chain{}, fmt.Errorf("%w: empty chain", afe.ErrParameterInvalid)
	}
	width := len(steps[0])
	if width == 0 {
		return Chain{}, fmt.Errorf("%w: chain step has no writes", afe.ErrParameterInvalid)
	}
	for i, s := range steps {
		if len(s) != width {
			return Chain{}, fmt.Errorf("%w: step %d has %d writes, want %d", afe.ErrParameterInvalid, i, len(s), width)
		}
		for _, w := range s {
			if !Writable(w.Addr) {
				return Chain{}, fmt.Errorf("%w: register %#04x is not writable by the sequencer", afe.ErrParameterInvalid, w.Addr)
			}
		}
	}

	blockLen := width + 2
	if blockLen > maxInfoLen {
		return Chain{}, fmt.Errorf("%w: block of %d words", afe.ErrParameterInvalid, blockLen)
	}
	total := blockLen * len(steps)
	if total > a.Remaining() {
		return Chain{}, fmt.Errorf("%w: chain of %d blocks needs %d words, %d free",
			afe.ErrProgramOverflow, len(steps), total, a.Remaining())
	}

	c := Chain{Start: a.Cursor(), BlockLen: uint32(blockLen), Blocks: len(steps)}
	cmds := make([]Command, 0, total)
	for i, s := range steps {
		for _, w := range s {
			cmds = append(cmds, Write(w.Addr, w.Val))
		}
		next := afe.SeqInfo{Addr: c.BlockAddr((i + 1) % len(steps)), Len: c.BlockLen}
		cmds = append(cmds,
			Wait(SettleClocks),
			Write(relinkSlot(i).InfoReg(), next.Word()),
		)
	}
	if _, err := a.Emit(cmds); err != nil {
		return Chain{}, err
	}

	a.Register(afe.SlotStimulusA, afe.SeqInfo{Addr: c.BlockAddr(0), Len: c.BlockLen})
	b := c.BlockAddr(1)
	if c.Blocks == 1 {
		b = c.BlockAddr(0)
	}
	a.Register(afe.SlotStimulusB, afe.SeqInfo{Addr: b, Len: c.BlockLen})
	return c, nil
}

// EvenRing returns steps repeated twice when their count is odd and above
// one. With an odd number of blocks the last block relinks the slot that
// will next run block 0 out of phase, so the ring is doubled to keep each
// block on the slot that alternation expects.
func EvenRing(steps [][]RegWrite) [][]RegWrite {
	if len(steps) <= 1 || len(steps)%2 == 0 {
		return steps
	}
	out := make([][]RegWrite, 0, 2*len(steps))
	out = append(out, steps...)
	return append(out, steps...)
}

// RampSteps converts one ramp cycle into LPDAC writes with the given Vzero
// code.
func RampSteps(r Ramp, vzero uint32) ([][]RegWrite, error) {
	pts, err := r.Points()
	if err != nil {
		return nil, err
	}
	steps := make([][]RegWrite, len(pts))
	for i, p := range pts {
		code, err := afe.LPDACCode(p.Potential)
		if err != nil {
			return nil, fmt.Errorf("ramp point %d (%.4f V): %w", i, p.Potential, err)
		}
		steps[i] = []RegWrite{{Addr: afe.RegLPDACData0, Val: afe.LPDACWord(vzero, code)}}
	}
	return steps, nil
}

// CompileRamp compiles one cycle of r into a chain. It emits exactly one
// block per ramp point.
func CompileRamp(a *Arena, r Ramp, vzero uint32) (Chain, error) {
	steps, err := RampSteps(r, vzero)
	if err != nil {
		return Chain{}, err
	}
	return CompileChain(a, steps)
}
