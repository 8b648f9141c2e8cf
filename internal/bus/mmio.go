package bus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"

	"periph.io/x/host/v3/pmem"
)

// MMIOPort is a Port backed by a physical memory window mapped through
// /dev/mem. Only the first 16-bit word of the window is accessed; the local
// bus decodes the whole window to the same controller pin.
type MMIOPort struct {
	view *pmem.View
	reg  []uint16
}

// MapMMIO maps size bytes at the physical address base.
func MapMMIO(base uint64, size int) (*MMIOPort, error) {
	if size < 2 {
		return nil, fmt.Errorf("bus: region at %#x too small (%d bytes)", base, size)
	}
	if base&1 != 0 {
		return nil, fmt.Errorf("bus: region at %#x is not 16-bit aligned", base)
	}
	v, err := pmem.Map(base, size)
	if err != nil {
		return nil, fmt.Errorf("bus: map %#x+%d: %w", base, size, err)
	}
	raw := v.Bytes()
	if len(raw) < 2 {
		_ = v.Close()
		return nil, errors.New("bus: mapped region has no 16-bit word")
	}
	reg := unsafe.Slice((*uint16)(unsafe.Pointer(&raw[0])), len(raw)/2)
	return &MMIOPort{view: v, reg: reg}, nil
}

func (p *MMIOPort) Write16(v uint16) {
	p.reg[0] = v
}

func (p *MMIOPort) Read16() uint16 {
	return p.reg[0]
}

func (p *MMIOPort) WriteBurst(b []byte) {
	for i := 0; i+1 < len(b); i += 2 {
		p.reg[0] = binary.LittleEndian.Uint16(b[i:])
	}
}

// Close unmaps the window. The port must not be used afterwards.
func (p *MMIOPort) Close() error {
	if p.view == nil {
		return nil
	}
	err := p.view.Close()
	p.view = nil
	p.reg = nil
	return err
}

func (p *MMIOPort) String() string {
	if p.view == nil {
		return "bus.MMIOPort{closed}"
	}
	return fmt.Sprintf("bus.MMIOPort{%#x}", p.view.PhysAddr())
}
