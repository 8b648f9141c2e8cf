package panel

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"tftfb/internal/image16"
)

// WindowRegs are the registers used to position the GRAM write window.
type WindowRegs struct {
	EntryMode  uint8
	EntryValue uint16
	YAddr      uint8
	XAddr      uint8
	GRAM       uint8
}

// Descriptor is everything that differs between supported controllers.
type Descriptor struct {
	Name string

	Width, Height int
	BitsPerPixel  int

	// Layout is the pixel format exposed to drawing code.
	Layout image16.Layout

	// Signatures are the values the ID register may read back.
	Signatures   []uint16
	SignatureReg uint8
	IDReg        uint8

	Window WindowRegs

	// Init returns the power-on table for a supply voltage.
	Init func(Supply) InitTable

	Standby []Step
	Resume  []Step
}

// Accepts reports whether sig identifies this controller.
func (d *Descriptor) Accepts(sig uint16) bool {
	return slices.Contains(d.Signatures, sig)
}

// Stride is the framebuffer row length in bytes.
func (d *Descriptor) Stride() int {
	return d.Width * d.BitsPerPixel / 8
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("%s %dx%d@%d", d.Name, d.Width, d.Height, d.BitsPerPixel)
}

// panelLayout is the fbdev bitfield layout both controllers are driven with.
var panelLayout = image16.Layout{
	Red:   image16.Field{Offset: 6, Length: 5},
	Green: image16.Field{Offset: 11, Length: 5},
	Blue:  image16.Field{Offset: 0, Length: 6},
}

var defaultWindow = WindowRegs{
	EntryMode:  0x03,
	EntryValue: 0x1038,
	YAddr:      0x20,
	XAddr:      0x21,
	GRAM:       0x22,
}

var descriptors = map[string]*Descriptor{
	ILI9225.Name:  ILI9225,
	TLS8301S.Name: TLS8301S,
}

// Lookup returns the descriptor for a controller name, case insensitively.
func Lookup(name string) (*Descriptor, error) {
	if d, ok := descriptors[strings.ToLower(strings.TrimSpace(name))]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("panel: unknown controller %q (have %s)", name, strings.Join(Names(), ", "))
}

// Names lists the supported controllers.
func Names() []string {
	out := make([]string, 0, len(descriptors))
	for n := range descriptors {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
