package afe

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// SPI command bytes.
const (
	spiCmdSetAddr  = 0x20
	spiCmdReadReg  = 0x6D
	spiCmdWriteReg = 0x2D
	spiCmdReadFIFO = 0x5F

	fifoReadDummies = 6
)

// DefaultSPISpeed is the SPI clock used when none is configured.
const DefaultSPISpeed = 8 * physic.MegaHertz

// SPI is a Bus speaking the AFE SPI command protocol directly. An optional
// GPIO input wired to the AFE interrupt output feeds Interrupts.
type SPI struct {
	conn spi.Conn
	irq  gpio.PinIn

	mu     sync.Mutex
	ints   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSPI connects to port in mode 0. irq may be nil when the interrupt line
// is not wired; Interrupts then never fires.
func NewSPI(port spi.Port, speed physic.Frequency, irq gpio.PinIn) (*SPI, error) {
	if speed == 0 {
		speed = DefaultSPISpeed
	}
	c, err := port.Connect(speed, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("failed to connect spi: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &SPI{
		conn:   c,
		irq:    irq,
		ints:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
	}

	if irq != nil {
		if err := irq.In(gpio.PullUp, gpio.FallingEdge); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to configure interrupt pin %s: %w", irq, err)
		}
		go s.watchInterrupts()
	}
	return s, nil
}

// regWidth returns the register width in bytes. The AFE block registers are
// 32 bits wide, everything else is 16 bits.
func regWidth(addr uint32) int {
	if addr >= 0x1000 && addr <= 0x3014 {
		return 4
	}
	return 2
}

func (s *SPI) setAddr(addr uint32) error {
	w := []byte{spiCmdSetAddr, byte(addr >> 8), byte(addr)}
	return s.conn.Tx(w, make([]byte, len(w)))
}

func (s *SPI) ReadReg(addr uint32) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.setAddr(addr); err != nil {
		return 0, fmt.Errorf("failed to set address %#04x: %w", addr, err)
	}
	n := regWidth(addr)
	w := make([]byte, 2+n)
	w[0] = spiCmdReadReg
	r := make([]byte, len(w))
	if err := s.conn.Tx(w, r); err != nil {
		return 0, fmt.Errorf("failed to read register %#04x: %w", addr, err)
	}
	if n == 4 {
		return binary.BigEndian.Uint32(r[2:]), nil
	}
	return uint32(binary.BigEndian.Uint16(r[2:])), nil
}

func (s *SPI) WriteReg(addr, val uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.setAddr(addr); err != nil {
		return fmt.Errorf("failed to set address %#04x: %w", addr, err)
	}
	n := regWidth(addr)
	w := make([]byte, 1+n)
	w[0] = spiCmdWriteReg
	if n == 4 {
		binary.BigEndian.PutUint32(w[1:], val)
	} else {
		binary.BigEndian.PutUint16(w[1:], uint16(val))
	}
	if err := s.conn.Tx(w, make([]byte, len(w))); err != nil {
		return fmt.Errorf("failed to write register %#04x: %w", addr, err)
	}
	return nil
}

// ReadFIFO reads len(dst) words. Short reads go through the FIFO data
// register, longer ones use the burst FIFO read command.
func (s *SPI) ReadFIFO(dst []uint32) error {
	if len(dst) < 3 {
		for i := range dst {
			v, err := s.ReadReg(RegDataFIFORead)
			if err != nil {
				return err
			}
			dst[i] = v
		}
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w := make([]byte, 1+fifoReadDummies+4*len(dst))
	w[0] = spiCmdReadFIFO
	r := make([]byte, len(w))
	if err := s.conn.Tx(w, r); err != nil {
		return fmt.Errorf("failed to read fifo: %w", err)
	}
	data := r[1+fifoReadDummies:]
	for i := range dst {
		dst[i] = binary.BigEndian.Uint32(data[4*i:])
	}
	return nil
}

func (s *SPI) Interrupts() <-chan struct{} {
	return s.ints
}

func (s *SPI) Close() error {
	s.cancel()
	return nil
}

// watchInterrupts forwards falling edges of the interrupt pin.
func (s *SPI) watchInterrupts() {
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}
		if !s.irq.WaitForEdge(100 * time.Millisecond) {
			continue
		}
		select {
		case s.ints <- struct{}{}:
		default:
		}
	}
}
