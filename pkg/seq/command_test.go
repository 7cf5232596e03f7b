package seq

import (
	"testing"

	"github.com/itohio/goafe/pkg/afe"
	"github.com/stretchr/testify/assert"
)

func TestCommand_Encoding(t *testing.T) {
	tests := []struct {
		name     string
		cmd      Command
		want     uint32
		wantKind Kind
		wantStr  string
	}{
		{
			name:     "lpdac write",
			cmd:      Write(afe.RegLPDACData0, 0x020800),
			want:     0xC8020800,
			wantKind: KindWrite,
			wantStr:  "WR LPDACDAT0 0x020800",
		},
		{
			name:     "afecon write",
			cmd:      Write(afe.RegAFECon, afe.AFEConADCPwr),
			want:     0x80000080,
			wantKind: KindWrite,
			wantStr:  "WR AFECON 0x000080",
		},
		{
			name:     "data truncated to 24 bits",
			cmd:      Write(afe.RegTempSens, 0xFF123456),
			want:     0x80000000 | (0x2174>>2&0x7F)<<24 | 0x123456,
			wantKind: KindWrite,
			wantStr:  "WR TEMPSENS 0x123456",
		},
		{
			name:     "sleep",
			cmd:      Sleep(),
			want:     0xC7000001,
			wantKind: KindWrite,
			wantStr:  "WR SEQTRGSLP 0x000001",
		},
		{
			name:     "unnamed register",
			cmd:      Write(afe.RegADCFilterCon, 1),
			want:     0x91000001,
			wantKind: KindWrite,
			wantStr:  "WR 0x2044 0x000001",
		},
		{
			name:     "wait",
			cmd:      Wait(10),
			want:     10,
			wantKind: KindWait,
			wantStr:  "WAIT 10",
		},
		{
			name:     "timeout",
			cmd:      Timeout(1000),
			want:     0x40000000 | 1000,
			wantKind: KindTimeout,
			wantStr:  "TIMEOUT 1000",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, uint32(tt.cmd))
			assert.Equal(t, tt.wantKind, tt.cmd.Kind())
			assert.Equal(t, tt.wantStr, tt.cmd.String())
		})
	}
}

func TestCommand_RegRoundTrip(t *testing.T) {
	for _, reg := range []uint32{afe.RegAFECon, afe.RegLPDACData0, afe.RegSeq1Info, afe.RegSeq2Info, afe.RegWGFCW} {
		assert.Equal(t, reg, Write(reg, 0).Reg())
	}
}

func TestWritable(t *testing.T) {
	tests := []struct {
		name string
		reg  uint32
		want bool
	}{
		{name: "first", reg: afe.RegAFECon, want: true},
		{name: "last", reg: 0x21FC, want: true},
		{name: "seq info", reg: afe.RegSeq1Info, want: true},
		{name: "past window", reg: afe.RegFIFOCntSta, want: false},
		{name: "wakeup timer", reg: afe.RegWUPTCon, want: false},
		{name: "unaligned", reg: 0x2002, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Writable(tt.reg))
		})
	}
}
