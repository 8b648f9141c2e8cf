package panel

import "time"

// ILI9225 is the Ilitek ILI9225/ILI9225G 176x220 controller, driven in
// landscape.
var ILI9225 = &Descriptor{
	Name:         "ili9225",
	Width:        220,
	Height:       176,
	BitsPerPixel: 16,
	Layout:       panelLayout,
	Signatures:   []uint16{0x9225, 0x9226},
	SignatureReg: 0x7e,
	IDReg:        0x00,
	Window:       defaultWindow,
	Init:         ili9225Init,
	Standby: []Step{
		{0x07, 0x0000, 50 * time.Millisecond},
		{0x10, 0x0001, 0},
	},
	Resume: []Step{
		{0x10, 0x0000, 120 * time.Millisecond},
		{0x07, 0x1017, 0},
	},
}

func ili9225Init(s Supply) InitTable {
	if s == Supply3V3 {
		return ili9225Init3V3
	}
	return ili9225Init2V8
}

// Both tables share everything but the VCI dependent power and gamma values.

var ili9225Init3V3 = InitTable{
	{StageOscillatorStarted, []Step{
		{0xd0, 0x0003, 0},
		{0xeb, 0x0b00, 0},
		{0xec, 0x000f, 0},
		{0xc7, 0x030f, 0},
		{0x01, 0x001c, 0}, // GS=0
		{0x02, 0x0100, 0},
		{0x03, 0x1030, 0},
		{0x08, 0x0808, 0},
		{0x0f, 0x0901, 10 * time.Millisecond},
	}},
	{StagePowerSequenced, []Step{
		{0x10, 0x0000, 0},
		{0x11, 0x1b41, 120 * time.Millisecond},
		{0x12, 0x200e, 0},
		{0x13, 0x0052, 0},
		{0x14, 0x4b5c, 0},
	}},
	{StageGramConfigured, ili9225Gram(
		[10]uint16{0x0000, 0x0705, 0x0c0a, 0x0401, 0x040c, 0x0608, 0x0000, 0x0104, 0x0e06, 0x060e},
	)},
	{StageDisplayOn, []Step{
		{0x07, 0x1017, 0},
	}},
}

var ili9225Init2V8 = InitTable{
	{StageOscillatorStarted, []Step{
		{0xd0, 0x0003, 0},
		{0xeb, 0x0b00, 0},
		{0xec, 0x004f, 0},
		{0xc7, 0x003f, 0},
		{0x01, 0x001c, 0},
		{0x02, 0x0100, 0},
		{0x03, 0x1030, 0},
		{0x08, 0x0808, 0},
		{0x0f, 0x0a01, 10 * time.Millisecond},
	}},
	{StagePowerSequenced, []Step{
		{0x10, 0x0000, 0},
		{0x11, 0x1b41, 120 * time.Millisecond},
		{0x12, 0x300e, 0},
		{0x13, 0x0057, 0},
		{0x14, 0x516b, 0},
	}},
	{StageGramConfigured, ili9225Gram(
		[10]uint16{0x0000, 0x060a, 0x0c08, 0x0400, 0x080c, 0x0b05, 0x0000, 0x0004, 0x0000, 0x0000},
	)},
	{StageDisplayOn, []Step{
		{0x07, 0x1017, 0},
	}},
}

// ili9225Gram sets the gate scan and window registers (R30-R39), the gamma
// curve (R50-R59) and parks the address counter at the origin.
func ili9225Gram(gamma [10]uint16) []Step {
	steps := []Step{
		{0x30, 0x0000, 0},
		{0x31, 0x00db, 0},
		{0x32, 0x0000, 0},
		{0x33, 0x0000, 0},
		{0x34, 0x00db, 0},
		{0x35, 0x0000, 0},
		{0x36, 0x00af, 0},
		{0x37, 0x0000, 0},
		{0x38, 0x00db, 0},
		{0x39, 0x0000, 0},
	}
	for i, v := range gamma {
		steps = append(steps, Step{Reg: 0x50 + uint8(i), Val: v})
	}
	return append(steps,
		Step{Reg: 0x03, Val: 0x1038},
		Step{Reg: 0x20, Val: 0x0000},
		Step{Reg: 0x21, Val: 0x0000},
	)
}
