// Package platform holds board-level setup that is not owned by any single
// device: the static memory controller timings for the chip select the panel
// sits on.
//
// These registers are process-wide. They are written at most once per
// process, before any panel port is mapped, and are never restored.
package platform

import (
	"fmt"
	"io"
	"sync"

	"periph.io/x/host/v3/pmem"

	appLog "tftfb/internal/log"
)

// Timing is the static memory bank 0 configuration of the LPC313x MPMC.
type Timing struct {
	// Base is the physical address of STCONFIG0.
	Base uint64

	Config  uint32
	WaitWen uint32
	WaitOen uint32
	WaitRd  uint32
	WaitPg  uint32
	WaitWr  uint32
	Turn    uint32
}

// DefaultTiming matches the bus timings the panels were characterized with.
func DefaultTiming() Timing {
	return Timing{
		Base:    0x17008200,
		Config:  0x81,
		WaitWen: 5,
		WaitOen: 5,
		WaitRd:  31,
		WaitPg:  5,
		WaitWr:  10,
		Turn:    8,
	}
}

// staticRegs mirrors STCONFIG0..STWTTURN0, which are contiguous.
type staticRegs struct {
	Config  uint32
	WaitWen uint32
	WaitOen uint32
	WaitRd  uint32
	WaitPg  uint32
	WaitWr  uint32
	Turn    uint32
}

// apply writes the registers in controller order.
func apply(r *staticRegs, t Timing) {
	r.Config = t.Config
	r.WaitWen = t.WaitWen
	r.WaitOen = t.WaitOen
	r.WaitRd = t.WaitRd
	r.WaitPg = t.WaitPg
	r.WaitWr = t.WaitWr
	r.Turn = t.Turn
}

// mapRegs is replaced in tests.
var mapRegs = func(base uint64) (*staticRegs, io.Closer, error) {
	v, err := pmem.Map(base, 7*4)
	if err != nil {
		return nil, nil, err
	}
	var regs *staticRegs
	if err := v.AsPOD(&regs); err != nil {
		v.Close()
		return nil, nil, err
	}
	return regs, v, nil
}

// Configurer is the bus timing step run by panel attach before mapping.
type Configurer interface {
	ConfigureBusTiming() error
}

// Static writes Timing through /dev/mem.
type Static struct {
	Timing Timing
}

var (
	timingOnce sync.Once
	timingErr  error
)

// ConfigureBusTiming writes the timings the first time it is called in the
// process. Later calls, from any Static value, return the first result.
func (s Static) ConfigureBusTiming() error {
	timingOnce.Do(func() {
		regs, c, err := mapRegs(s.Timing.Base)
		if err != nil {
			timingErr = fmt.Errorf("platform: map static memory controller: %w", err)
			return
		}
		defer c.Close()
		apply(regs, s.Timing)
		appLog.Info("static memory timing configured",
			"base", fmt.Sprintf("%#x", s.Timing.Base),
			"config", fmt.Sprintf("%#x", s.Timing.Config),
			"wait_rd", s.Timing.WaitRd,
			"wait_wr", s.Timing.WaitWr,
		)
	})
	return timingErr
}

// None skips the timing step, for the simulator and for boards whose
// bootloader already configured the bus.
type None struct{}

func (None) ConfigureBusTiming() error { return nil }
