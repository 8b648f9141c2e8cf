// Package bus implements the register protocol of the ILI9225-family
// controllers on a 16-bit parallel local bus: an index (control) port that
// selects a controller register and a data port that reads or writes it.
//
// Nothing here reports errors. Port accesses are fire-and-forget and are
// issued in exactly the order they are called.
package bus

import "time"

// Port is a single 16-bit I/O location.
type Port interface {
	Write16(v uint16)
	Read16() uint16
	// WriteBurst writes len(p)/2 little-endian words to the port, in order.
	WriteBurst(p []byte)
}

// Bus pairs the control and data ports of one controller.
type Bus struct {
	Ctrl Port
	Data Port

	// Settle is the delay used by the *Slow accessors.
	Settle time.Duration

	// Sleep blocks for d. Defaults to time.Sleep.
	Sleep func(d time.Duration)
}

// New returns a Bus with the given settle delay.
func New(ctrl, data Port, settle time.Duration) *Bus {
	return &Bus{Ctrl: ctrl, Data: data, Settle: settle}
}

// Delay blocks for d. It is the busy wait the controller datasheets mandate
// between power stages, not a scheduling point.
func (b *Bus) Delay(d time.Duration) {
	if d <= 0 {
		return
	}
	if b.Sleep != nil {
		b.Sleep(d)
		return
	}
	time.Sleep(d)
}

// WriteRegister selects reg and writes v to it.
func (b *Bus) WriteRegister(reg uint8, v uint16) {
	b.Ctrl.Write16(uint16(reg))
	b.Data.Write16(v)
}

// WriteRegisterSlow is WriteRegister with a settle delay after each access.
func (b *Bus) WriteRegisterSlow(reg uint8, v uint16) {
	b.SendCommandSlow(reg)
	b.Data.Write16(v)
	b.Delay(b.Settle)
}

// SendCommand selects reg without writing data, typically ahead of a burst.
func (b *Bus) SendCommand(reg uint8) {
	b.Ctrl.Write16(uint16(reg))
}

func (b *Bus) SendCommandSlow(reg uint8) {
	b.Ctrl.Write16(uint16(reg))
	b.Delay(b.Settle)
}

// Burst streams raw pixel words to the data port. The controller's address
// counter advances on each word.
func (b *Bus) Burst(p []byte) {
	b.Data.WriteBurst(p)
}

func (b *Bus) ReadData() uint16 {
	return b.Data.Read16()
}

// ReadDataSlow waits Settle before reading.
func (b *Bus) ReadDataSlow() uint16 {
	b.Delay(b.Settle)
	return b.Data.Read16()
}
