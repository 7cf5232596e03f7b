//go:build tinygo

package main

import "machine"

const (
	// SPI configuration. The AFE accepts up to 16 MHz.
	SPI_FREQUENCY = 8000000
	SPI_MODE      = 0

	// AFE pins
	PIN_CS    = machine.D3 // Chip select, active low
	PIN_IRQ   = machine.D2 // AFE GP0 interrupt output, active low
	PIN_RESET = machine.D1 // AFE reset, active low

	// Serial configuration
	// Longest request: "W 2000 00000000\n" = 16 bytes.
	// A FIFO reply carries 9 bytes per word; a 128 word burst takes ~100 ms
	// at 115200 baud.
	UART_BAUD_RATE   = 115200
	LINE_MAX         = 32
	FIFO_MAX_WORDS   = 128  // Words per SPI burst
	FIFO_DEPTH_WORDS = 1024 // Largest count accepted by F

	// Interrupt line polling period
	IRQ_POLL_US = 50
)
