package panel

import "time"

// TLS8301S is the Tianma TLS8301S module. It reports 0x9325 and shares the
// ILI9225 window registers and geometry.
var TLS8301S = &Descriptor{
	Name:         "tls8301s",
	Width:        220,
	Height:       176,
	BitsPerPixel: 16,
	Layout:       panelLayout,
	Signatures:   []uint16{0x9325},
	SignatureReg: 0x7e,
	IDReg:        0x00,
	Window:       defaultWindow,
	Init:         func(Supply) InitTable { return tls8301sInit },
	// The vendor sequence has no standby. These steps are derived from the
	// power-on R10 value (0x17b0) with only STB (bit 0) toggled, and resume
	// restores the final R07 of the init table.
	Standby: []Step{
		{0x07, 0x0000, 50 * time.Millisecond},
		{0x10, 0x17b1, 0},
	},
	Resume: []Step{
		{0x10, 0x17b0, 120 * time.Millisecond},
		{0x07, 0x0133, 0},
	},
}

var tls8301sInit = InitTable{
	{StageOscillatorStarted, []Step{
		// Display off.
		{0x07, 0x0030, 0},
		{0x07, 0x0000, 0},
		{0x10, 0x0000, 0},
		{0x12, 0x0000, 0},

		{0xe5, 0x8000, 0},
		{0x00, 0x0001, 50 * time.Millisecond}, // internal oscillator
		{0x01, 0x0100, 0},                     // SS, SM
		{0x02, 0x0700, 0},                     // line inversion
		{0x03, 0x0030, 0},
		{0x04, 0x0000, 0},
		{0x08, 0x0202, 0}, // porches
		{0x09, 0x0000, 0},
		{0x0a, 0x0000, 0},
		{0x0c, 0x0001, 0},
		{0x0d, 0x0000, 0},
		{0x0f, 0x0000, 0},
	}},
	{StagePowerSequenced, []Step{
		{0x10, 0x0000, 0},
		{0x11, 0x0007, 0},
		{0x12, 0x0000, 0},
		{0x13, 0x0000, 200 * time.Millisecond},
		{0x10, 0x17b0, 0}, // SAP, BT, AP
		{0x11, 0x0037, 50 * time.Millisecond},
		{0x12, 0x011c, 50 * time.Millisecond}, // VREG1OUT
		{0x13, 0x1000, 0},                     // VCOM amplitude
		{0x29, 0x0025, 50 * time.Millisecond}, // VCOMH
	}},
	{StageGramConfigured, []Step{
		// Gamma.
		{0x30, 0x0000, 0},
		{0x31, 0x0404, 0},
		{0x32, 0x0404, 0},
		{0x35, 0x0004, 0},
		{0x36, 0x0404, 0},
		{0x37, 0x0404, 0},
		{0x38, 0x0404, 0},
		{0x39, 0x0707, 0},
		{0x3c, 0x0500, 0},
		{0x3d, 0x0607, 0},

		// GRAM area.
		{0x50, 0x0000, 0},
		{0x51, 0x00af, 0},
		{0x52, 0x0000, 0},
		{0x53, 0x00db, 0},
		{0x60, 0xb700, 0}, // gate scan line
		{0x61, 0x0001, 0},
		{0x6a, 0x0000, 0},

		// Partial display.
		{0x80, 0x0000, 0},
		{0x81, 0x0000, 0},
		{0x82, 0x0000, 0},
		{0x83, 0x0000, 0},
		{0x84, 0x0000, 0},
		{0x85, 0x0000, 0},

		// Panel control.
		{0x90, 0x0015, 0},
		{0x92, 0x0000, 0},
		{0x93, 0x0003, 0},
		{0x95, 0x0110, 0},
		{0x97, 0x0000, 0},
		{0x98, 0x0000, 0},
	}},
	{StageDisplayOn, []Step{
		{0x07, 0x0022, 70 * time.Millisecond},
		{0x07, 0x0133, 0},
		{0x03, 0x1038, 0},
		{0x20, 0x0000, 0},
		{0x21, 0x0000, 0},
	}},
}
