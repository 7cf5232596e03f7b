//go:build tinygo

//go:generate tinygo flash -target=xiao

// Command firmware bridges a host serial port to the AFE SPI bus. It speaks
// the line protocol of afe.Serial:
//
//	host:   W <addr> <val> | R <addr> | F <count>
//	bridge: K | V <val> | D <w>,<w>,... | E <message> | I
package main

import (
	"machine"
	"time"
)

// SPI command bytes.
const (
	cmdSetAddr  = 0x20
	cmdReadReg  = 0x6D
	cmdWriteReg = 0x2D
	cmdReadFIFO = 0x5F

	fifoReadDummies = 6
	regDataFIFORead = 0x206C
)

var (
	uart = machine.UART0
	spi  = machine.SPI0

	// Serial buffer for reading lines
	lineBuffer [LINE_MAX]byte
	linePos    int
	overlong   bool

	// SPI transfer buffers sized for the largest FIFO burst
	txBuffer [1 + fifoReadDummies + 4*FIFO_MAX_WORDS]byte
	rxBuffer [1 + fifoReadDummies + 4*FIFO_MAX_WORDS]byte

	// Interrupt line state from the previous poll
	irqAsserted bool

	hexDigits = "0123456789ABCDEF"
)

func main() {
	PIN_CS.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_CS.High()
	PIN_IRQ.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	PIN_RESET.Configure(machine.PinConfig{Mode: machine.PinOutput})

	// Pulse reset so the AFE starts from its power-on state.
	PIN_RESET.Low()
	time.Sleep(time.Millisecond)
	PIN_RESET.High()
	time.Sleep(10 * time.Millisecond)

	spi.Configure(machine.SPIConfig{
		Frequency: SPI_FREQUENCY,
		Mode:      SPI_MODE,
	})

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	for {
		processSerial()
		pollInterrupt()
		time.Sleep(IRQ_POLL_US * time.Microsecond)
	}
}

// pollInterrupt reports each falling edge of the interrupt line once.
func pollInterrupt() {
	asserted := !PIN_IRQ.Get()
	if asserted && !irqAsserted {
		uart.Write([]byte("I\n"))
	}
	irqAsserted = asserted
}

func processSerial() {
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		if data == '\n' || data == '\r' {
			if overlong {
				replyError("line too long")
			} else if linePos > 0 {
				handleLine(lineBuffer[:linePos])
			}
			linePos = 0
			overlong = false
			continue
		}

		if linePos < LINE_MAX {
			lineBuffer[linePos] = data
			linePos++
		} else {
			overlong = true
		}
	}
}

func handleLine(line []byte) {
	fields := splitFields(line)
	if len(fields) == 0 {
		return
	}

	switch {
	case len(fields[0]) == 1 && fields[0][0] == 'R' && len(fields) == 2:
		addr, ok := parseHex(fields[1])
		if !ok {
			replyError("bad address")
			return
		}
		v := readReg(addr)
		uart.Write([]byte("V "))
		writeHex(v, 8)
		uart.Write([]byte("\n"))

	case len(fields[0]) == 1 && fields[0][0] == 'W' && len(fields) == 3:
		addr, ok := parseHex(fields[1])
		if !ok {
			replyError("bad address")
			return
		}
		val, ok := parseHex(fields[2])
		if !ok {
			replyError("bad value")
			return
		}
		writeReg(addr, val)
		uart.Write([]byte("K\n"))

	case len(fields[0]) == 1 && fields[0][0] == 'F' && len(fields) == 2:
		n, ok := parseDecimal(fields[1])
		if !ok || n > FIFO_DEPTH_WORDS {
			replyError("bad fifo count")
			return
		}
		readFIFO(int(n))

	default:
		replyError("bad command")
	}
}

func replyError(msg string) {
	uart.Write([]byte("E "))
	uart.Write([]byte(msg))
	uart.Write([]byte("\n"))
}

// regWidth returns the register width in bytes.
func regWidth(addr uint32) int {
	if addr >= 0x1000 && addr <= 0x3014 {
		return 4
	}
	return 2
}

func transfer(n int) {
	PIN_CS.Low()
	spi.Tx(txBuffer[:n], rxBuffer[:n])
	PIN_CS.High()
}

func setAddr(addr uint32) {
	txBuffer[0] = cmdSetAddr
	txBuffer[1] = byte(addr >> 8)
	txBuffer[2] = byte(addr)
	transfer(3)
}

func readReg(addr uint32) uint32 {
	setAddr(addr)
	n := regWidth(addr)
	for i := 0; i < 2+n; i++ {
		txBuffer[i] = 0
	}
	txBuffer[0] = cmdReadReg
	transfer(2 + n)

	var v uint32
	for i := 0; i < n; i++ {
		v = v<<8 | uint32(rxBuffer[2+i])
	}
	return v
}

func writeReg(addr, val uint32) {
	setAddr(addr)
	n := regWidth(addr)
	txBuffer[0] = cmdWriteReg
	for i := 0; i < n; i++ {
		txBuffer[1+i] = byte(val >> (8 * (n - 1 - i)))
	}
	transfer(1 + n)
}

// readFIFO replies with count words, read in bursts of at most
// FIFO_MAX_WORDS. Fewer than three words go through the data register.
func readFIFO(count int) {
	uart.Write([]byte("D "))
	if count < 3 {
		for i := 0; i < count; i++ {
			if i > 0 {
				uart.Write([]byte(","))
			}
			writeHex(readReg(regDataFIFORead), 8)
		}
		uart.Write([]byte("\n"))
		return
	}
	for sent := 0; sent < count; {
		chunk := count - sent
		if chunk > FIFO_MAX_WORDS {
			chunk = FIFO_MAX_WORDS
		}
		// Bursts need at least three words.
		if rest := count - sent - chunk; rest > 0 && rest < 3 {
			chunk -= 3 - rest
		}

		n := 1 + fifoReadDummies + 4*chunk
		for i := 0; i < n; i++ {
			txBuffer[i] = 0
		}
		txBuffer[0] = cmdReadFIFO
		transfer(n)

		data := rxBuffer[1+fifoReadDummies : n]
		for i := 0; i < chunk; i++ {
			if sent > 0 || i > 0 {
				uart.Write([]byte(","))
			}
			w := uint32(data[4*i])<<24 | uint32(data[4*i+1])<<16 | uint32(data[4*i+2])<<8 | uint32(data[4*i+3])
			writeHex(w, 8)
		}
		sent += chunk
	}
	uart.Write([]byte("\n"))
}

func writeHex(v uint32, digits int) {
	var buf [8]byte
	for i := digits - 1; i >= 0; i-- {
		buf[i] = hexDigits[v&0xF]
		v >>= 4
	}
	uart.Write(buf[:digits])
}

func splitFields(line []byte) [][]byte {
	var fields [][]byte
	start := -1
	for i, c := range line {
		if c == ' ' || c == '\t' {
			if start >= 0 {
				fields = append(fields, line[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		fields = append(fields, line[start:])
	}
	return fields
}

func parseHex(b []byte) (uint32, bool) {
	if len(b) == 0 || len(b) > 8 {
		return 0, false
	}
	var v uint32
	for _, c := range b {
		switch {
		case c >= '0' && c <= '9':
			v = v<<4 | uint32(c-'0')
		case c >= 'A' && c <= 'F':
			v = v<<4 | uint32(c-'A'+10)
		case c >= 'a' && c <= 'f':
			v = v<<4 | uint32(c-'a'+10)
		default:
			return 0, false
		}
	}
	return v, true
}

func parseDecimal(b []byte) (uint32, bool) {
	if len(b) == 0 || len(b) > 6 {
		return 0, false
	}
	var v uint32
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + uint32(c-'0')
	}
	return v, true
}
