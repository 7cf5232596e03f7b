package seq

import (
	"fmt"

	"github.com/itohio/goafe/pkg/afe"
)

// maxInfoLen is the longest program a sequencer write can relink to; the
// length shares the 24-bit write data with the start address.
const maxInfoLen = 0xFF

// Segment is a contiguous run of program words.
type Segment struct {
	Addr  uint32
	Words []uint32
}

// Entry binds a slot to its first program.
type Entry struct {
	Slot afe.Slot
	Info afe.SeqInfo
}

// Image is a compiled program memory image plus the slot entry points.
type Image struct {
	Segments []Segment
	Entries  []Entry
}

// Words returns the number of program words in the image.
func (img *Image) Words() int {
	n := 0
	for _, s := range img.Segments {
		n += len(s.Words)
	}
	return n
}

// Entry returns the registered entry point of slot.
func (img *Image) Entry(slot afe.Slot) (afe.SeqInfo, bool) {
	for i := len(img.Entries) - 1; i >= 0; i-- {
		if img.Entries[i].Slot == slot {
			return img.Entries[i].Info, true
		}
	}
	return afe.SeqInfo{}, false
}

// Load writes every segment and then every slot entry to dev.
func (img *Image) Load(dev afe.Device) error {
	for _, s := range img.Segments {
		if err := dev.WriteProgram(s.Addr, s.Words); err != nil {
			return fmt.Errorf("failed to write program at %#x: %w", s.Addr, err)
		}
	}
	for _, e := range img.Entries {
		if err := dev.SetSequenceInfo(e.Slot, e.Info); err != nil {
			return fmt.Errorf("failed to set slot %d entry: %w", e.Slot, err)
		}
	}
	return nil
}

// Arena hands out program memory from a monotonically increasing cursor.
// Memory is never reclaimed; start a new Arena for a new technique run.
type Arena struct {
	capacity uint32
	cursor   uint32
	img      Image
}

// NewArena creates an arena over capacity words starting at address 0.
// A non-positive capacity selects the device sequencer memory size.
func NewArena(capacity int) *Arena {
	if capacity <= 0 || capacity > afe.SeqMemoryWords {
		capacity = afe.SeqMemoryWords
	}
	return &Arena{capacity: uint32(capacity)}
}

// Cursor returns the address of the next emitted word.
func (a *Arena) Cursor() uint32 { return a.cursor }

// Remaining returns the number of free words.
func (a *Arena) Remaining() int { return int(a.capacity - a.cursor) }

// Emit appends a program and returns its start address.
func (a *Arena) Emit(cmds []Command) (uint32, error) {
	if len(cmds) == 0 {
		return 0, fmt.Errorf("%w: empty program", afe.ErrParameterInvalid)
	}
	if len(cmds) > a.Remaining() {
		return 0, fmt.Errorf("%w: %d words requested, %d free", afe.ErrProgramOverflow, len(cmds), a.Remaining())
	}
	addr := a.cursor
	a.img.Segments = append(a.img.Segments, Segment{Addr: addr, Words: words(cmds)})
	a.cursor += uint32(len(cmds))
	return addr, nil
}

// Register records the entry point a slot starts from.
func (a *Arena) Register(slot afe.Slot, info afe.SeqInfo) {
	a.img.Entries = append(a.img.Entries, Entry{Slot: slot, Info: info})
}

// Image returns the compiled image.
func (a *Arena) Image() *Image {
	return &a.img
}
