// Package sim emulates an ILI9225-family controller behind the two bus
// ports, and the physical regions those ports live in. It lets the daemon
// run without hardware and gives tests an exact record of the bus traffic.
package sim

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// OpKind is the kind of a recorded bus access.
type OpKind int

const (
	// OpIndex is a write to the control port.
	OpIndex OpKind = iota
	// OpWrite is a single word written to the data port.
	OpWrite
	// OpRead is a single word read from the data port.
	OpRead
	// OpBurst is a run of words written to the data port in one call.
	OpBurst
)

func (k OpKind) String() string {
	switch k {
	case OpIndex:
		return "index"
	case OpWrite:
		return "write"
	case OpRead:
		return "read"
	case OpBurst:
		return "burst"
	}
	return fmt.Sprintf("OpKind(%d)", int(k))
}

// Op is one recorded bus access. Value is the word written or read; for
// OpBurst it is the first word and Words the number of words.
type Op struct {
	Kind  OpKind
	Value uint16
	Words int
}

// Registers names the controller registers with side effects.
type Registers struct {
	ID    uint8 // read returns the signature
	YAddr uint8
	XAddr uint8
	GRAM  uint8 // data writes go to GRAM
}

// DefaultRegisters is the register map shared by the ILI9225 and TLS8301S.
var DefaultRegisters = Registers{ID: 0x00, YAddr: 0x20, XAddr: 0x21, GRAM: 0x22}

// Controller is a simulated controller. It is safe for concurrent use.
type Controller struct {
	width, height int
	signature     uint16
	regMap        Registers

	mu      sync.Mutex
	index   uint8
	regs    [256]uint16
	gram    []uint16
	x, y    uint16
	counter int
	ops     []Op
}

// NewController returns a controller with a width*height GRAM that answers
// signature on reads of the ID register.
func NewController(width, height int, signature uint16) *Controller {
	return &Controller{
		width:     width,
		height:    height,
		signature: signature,
		regMap:    DefaultRegisters,
		gram:      make([]uint16, width*height),
	}
}

// CtrlPort returns the control (index) port.
func (c *Controller) CtrlPort() *Port { return &Port{c: c, ctrl: true} }

// DataPort returns the data port.
func (c *Controller) DataPort() *Port { return &Port{c: c} }

func (c *Controller) setIndex(v uint16) {
	c.index = uint8(v)
	c.ops = append(c.ops, Op{Kind: OpIndex, Value: v})
}

// store applies one data word to the selected register. c.mu is held.
func (c *Controller) store(v uint16) {
	switch c.index {
	case c.regMap.GRAM:
		if len(c.gram) > 0 {
			c.gram[c.counter] = v
			c.counter = (c.counter + 1) % len(c.gram)
		}
		return
	case c.regMap.YAddr:
		c.y = v
		c.seek()
	case c.regMap.XAddr:
		c.x = v
		c.seek()
	}
	c.regs[c.index] = v
}

func (c *Controller) seek() {
	if len(c.gram) == 0 {
		return
	}
	c.counter = (int(c.y)*c.width + int(c.x)) % len(c.gram)
}

func (c *Controller) load() uint16 {
	if c.index == c.regMap.ID {
		return c.signature
	}
	return c.regs[c.index]
}

// Register returns the last value written to reg.
func (c *Controller) Register(reg uint8) uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regs[reg]
}

// GRAM returns a copy of the display memory.
func (c *Controller) GRAM() []uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]uint16, len(c.gram))
	copy(out, c.gram)
	return out
}

// Counter returns the GRAM address counter.
func (c *Controller) Counter() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counter
}

// Ops returns a copy of the recorded accesses.
func (c *Controller) Ops() []Op {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Op, len(c.ops))
	copy(out, c.ops)
	return out
}

// ResetOps clears the access log.
func (c *Controller) ResetOps() {
	c.mu.Lock()
	c.ops = nil
	c.mu.Unlock()
}

// Writes returns the register writes in the log as reg/value pairs, in order.
// A data write counts when it directly follows an index write.
func (c *Controller) Writes() [][2]uint16 {
	ops := c.Ops()
	var out [][2]uint16
	for i := 0; i+1 < len(ops); i++ {
		if ops[i].Kind == OpIndex && ops[i+1].Kind == OpWrite {
			out = append(out, [2]uint16{ops[i].Value, ops[i+1].Value})
		}
	}
	return out
}

// Reprograms counts selections of the Y address register, one per write
// window setup.
func (c *Controller) Reprograms() int {
	n := 0
	for _, op := range c.Ops() {
		if op.Kind == OpIndex && uint8(op.Value) == c.regMap.YAddr {
			n++
		}
	}
	return n
}

// Port is one side of the simulated bus. It implements bus.Port.
type Port struct {
	c    *Controller
	ctrl bool
}

func (p *Port) Write16(v uint16) {
	p.c.mu.Lock()
	defer p.c.mu.Unlock()
	if p.ctrl {
		p.c.setIndex(v)
		return
	}
	p.c.ops = append(p.c.ops, Op{Kind: OpWrite, Value: v})
	p.c.store(v)
}

func (p *Port) Read16() uint16 {
	p.c.mu.Lock()
	defer p.c.mu.Unlock()
	if p.ctrl {
		return uint16(p.c.index)
	}
	v := p.c.load()
	p.c.ops = append(p.c.ops, Op{Kind: OpRead, Value: v})
	return v
}

func (p *Port) WriteBurst(b []byte) {
	n := len(b) / 2
	if n == 0 {
		return
	}
	p.c.mu.Lock()
	defer p.c.mu.Unlock()
	if p.ctrl {
		for i := 0; i < n; i++ {
			p.c.setIndex(binary.LittleEndian.Uint16(b[2*i:]))
		}
		return
	}
	p.c.ops = append(p.c.ops, Op{Kind: OpBurst, Value: binary.LittleEndian.Uint16(b), Words: n})
	for i := 0; i < n; i++ {
		p.c.store(binary.LittleEndian.Uint16(b[2*i:]))
	}
}

// Close is a no-op; it lets a Port stand in for a mapped window.
func (p *Port) Close() error { return nil }

func (p *Port) String() string {
	if p.ctrl {
		return "sim.Port{ctrl}"
	}
	return "sim.Port{data}"
}
