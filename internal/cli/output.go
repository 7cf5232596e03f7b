package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// printer writes either one JSON document per record or plain text lines.
type printer struct {
	format string
	w      io.Writer
}

func (p *printer) json() bool {
	return p.format == "json"
}

// record writes v as a JSON line, or the formatted text otherwise.
func (p *printer) record(v any, format string, args ...any) error {
	if p.json() {
		if err := json.NewEncoder(p.w).Encode(v); err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		return nil
	}
	_, err := fmt.Fprintf(p.w, format+"\n", args...)
	return err
}
