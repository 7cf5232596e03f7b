package afe

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the baud rate of the bridge firmware.
	DefaultBaudRate = 115200
	// DefaultTimeout bounds a single bridge request.
	DefaultTimeout = time.Second
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{
			Name:        name,
			Description: name,
		})
	}
	return result, nil
}

// frame is one line received from the bridge.
type frame struct {
	kind  byte // V value, K ack, D fifo data, I interrupt, E error
	value uint32
	words []uint32
	msg   string
}

// Serial is a Bus that reaches the AFE through a microcontroller bridge
// speaking a line protocol over a serial port:
//
//	host:   W <addr> <val> | R <addr> | F <count>
//	bridge: K | V <val> | D <w>,<w>,... | E <message> | I
//
// Numbers are hexadecimal except the FIFO count. I lines are sent
// unsolicited whenever the AFE interrupt line asserts.
type Serial struct {
	port     string
	baudRate int
	timeout  time.Duration

	conn      io.ReadWriteCloser
	replies   chan frame
	irq       chan struct{}
	reqMu     sync.Mutex
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
}

// NewSerial creates a serial bridge bus for the given port.
func NewSerial(port string, baudRate int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	return &Serial{
		port:     port,
		baudRate: baudRate,
		timeout:  DefaultTimeout,
		replies:  make(chan frame, 1),
		irq:      make(chan struct{}, 1),
	}
}

// Connect opens the serial port and starts reading bridge frames.
func (s *Serial) Connect() error {
	port, err := serial.Open(s.port, &serial.Mode{BaudRate: s.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.port, err)
	}
	return s.attach(port)
}

// attach starts the frame reader on an already open connection.
func (s *Serial) attach(conn io.ReadWriteCloser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return fmt.Errorf("already connected")
	}
	s.conn = conn
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.connected = true

	go s.readFrames(s.ctx, conn)
	return nil
}

// Close closes the connection and stops reading frames.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil
	}
	s.cancel()
	if err := s.conn.Close(); err != nil {
		slog.Warn("error closing serial port", "port", s.port, "error", err)
	}
	s.conn = nil
	s.connected = false
	return nil
}

// IsConnected returns whether the bridge is connected.
func (s *Serial) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *Serial) Interrupts() <-chan struct{} {
	return s.irq
}

func (s *Serial) ReadReg(addr uint32) (uint32, error) {
	f, err := s.request(fmt.Sprintf("R %04X\n", addr), 'V')
	if err != nil {
		return 0, err
	}
	return f.value, nil
}

func (s *Serial) WriteReg(addr, val uint32) error {
	_, err := s.request(fmt.Sprintf("W %04X %08X\n", addr, val), 'K')
	return err
}

func (s *Serial) ReadFIFO(dst []uint32) error {
	f, err := s.request(fmt.Sprintf("F %d\n", len(dst)), 'D')
	if err != nil {
		return err
	}
	if len(f.words) != len(dst) {
		return fmt.Errorf("bridge returned %d fifo words, want %d", len(f.words), len(dst))
	}
	copy(dst, f.words)
	return nil
}

// request sends one command and waits for its reply.
func (s *Serial) request(cmd string, want byte) (frame, error) {
	s.reqMu.Lock()
	defer s.reqMu.Unlock()

	s.mu.RLock()
	conn, ctx, connected := s.conn, s.ctx, s.connected
	s.mu.RUnlock()
	if !connected {
		return frame{}, ErrNotConnected
	}

	// Drop a reply that arrived after an earlier request timed out.
	select {
	case <-s.replies:
	default:
	}

	if _, err := io.WriteString(conn, cmd); err != nil {
		return frame{}, fmt.Errorf("failed to send command: %w", err)
	}

	select {
	case f := <-s.replies:
		if f.kind == 'E' {
			return frame{}, fmt.Errorf("bridge error: %s", f.msg)
		}
		if f.kind != want {
			return frame{}, fmt.Errorf("unexpected reply %q to %q", f.kind, strings.TrimSpace(cmd))
		}
		return f, nil
	case <-time.After(s.timeout):
		return frame{}, fmt.Errorf("timeout waiting for reply to %q", strings.TrimSpace(cmd))
	case <-ctx.Done():
		return frame{}, ErrNotConnected
	}
}

// readFrames reads lines from the bridge and dispatches them.
func (s *Serial) readFrames(ctx context.Context, conn io.Reader) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in serial reader", "panic", r)
		}
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), 64*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		f, err := parseLine(line)
		if err != nil {
			slog.Warn("failed to parse bridge line", "line", line, "error", err)
			continue
		}

		if f.kind == 'I' {
			select {
			case s.irq <- struct{}{}:
			default:
			}
			continue
		}

		select {
		case s.replies <- f:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		slog.Warn("error reading from serial port", "error", err)
	}
}

// parseLine parses a line from the bridge into a frame.
// Examples: "K", "V 00004144", "D 00018000,00018001", "E bad command", "I".
func parseLine(line string) (frame, error) {
	kind := line[0]
	rest := strings.TrimSpace(line[1:])

	switch kind {
	case 'K', 'I':
		if rest != "" {
			return frame{}, fmt.Errorf("unexpected payload %q", rest)
		}
		return frame{kind: kind}, nil
	case 'E':
		return frame{kind: kind, msg: rest}, nil
	case 'V':
		v, err := strconv.ParseUint(rest, 16, 32)
		if err != nil {
			return frame{}, fmt.Errorf("invalid value: %w", err)
		}
		return frame{kind: kind, value: uint32(v)}, nil
	case 'D':
		if rest == "" {
			return frame{kind: kind, words: []uint32{}}, nil
		}
		parts := strings.Split(rest, ",")
		words := make([]uint32, len(parts))
		for i, p := range parts {
			v, err := strconv.ParseUint(strings.TrimSpace(p), 16, 32)
			if err != nil {
				return frame{}, fmt.Errorf("invalid fifo word %d: %w", i, err)
			}
			words[i] = uint32(v)
		}
		return frame{kind: kind, words: words}, nil
	}
	return frame{}, fmt.Errorf("unknown frame type %q", kind)
}
