package seq

import (
	"fmt"
	"strings"
)

// Listing disassembles the image, entry points first.
func (img *Image) Listing() string {
	var b strings.Builder
	for _, e := range img.Entries {
		fmt.Fprintf(&b, "; SEQ%d -> 0x%03x len %d\n", e.Slot, e.Info.Addr, e.Info.Len)
	}
	for _, s := range img.Segments {
		for i, w := range s.Words {
			fmt.Fprintf(&b, "0x%03x: %08x  %s\n", s.Addr+uint32(i), w, Command(w))
		}
	}
	return b.String()
}
