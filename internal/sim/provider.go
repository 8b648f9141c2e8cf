package sim

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"tftfb/internal/bus"
	"tftfb/internal/region"
)

// ErrMapFailed is returned by Map for regions set up with FailMap.
var ErrMapFailed = errors.New("sim: map failed")

// Provider hands out claims and mappings of the two regions a simulated
// controller is wired to. It counts what is held so tests can check that
// every claim and mapping was released.
type Provider struct {
	ctl      *Controller
	ctrlBase uint64
	dataBase uint64
	regions  *region.Registry

	mu      sync.Mutex
	foreign []*region.Claim
	fail    map[uint64]bool
	mapped  int
}

// NewProvider wires ctl's control port at ctrlBase and its data port at
// dataBase.
func NewProvider(ctl *Controller, ctrlBase, dataBase uint64) *Provider {
	return &Provider{
		ctl:      ctl,
		ctrlBase: ctrlBase,
		dataBase: dataBase,
		regions:  region.NewRegistry(""),
		fail:     make(map[uint64]bool),
	}
}

// SetBusy makes the region containing base owned by someone else.
func (p *Provider) SetBusy(base uint64) error {
	c, err := p.regions.Claim(region.Region{Name: "foreign", Base: base, Size: 1})
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.foreign = append(p.foreign, c)
	p.mu.Unlock()
	return nil
}

// FailMap makes mapping the region at base fail.
func (p *Provider) FailMap(base uint64) {
	p.mu.Lock()
	p.fail[base] = true
	p.mu.Unlock()
}

func (p *Provider) Claim(r region.Region) (io.Closer, error) {
	c, err := p.regions.Claim(r)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Map returns the simulated port wired at r.Base.
func (p *Provider) Map(r region.Region) (bus.Port, io.Closer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fail[r.Base] {
		return nil, nil, fmt.Errorf("%w: %s", ErrMapFailed, r)
	}
	var port *Port
	switch r.Base {
	case p.ctrlBase:
		port = p.ctl.CtrlPort()
	case p.dataBase:
		port = p.ctl.DataPort()
	default:
		return nil, nil, fmt.Errorf("%w: nothing wired at %s", ErrMapFailed, r)
	}
	p.mapped++
	return port, &unmapper{p: p}, nil
}

// Held returns the number of claims taken through Claim and not released.
func (p *Provider) Held() int {
	p.mu.Lock()
	n := len(p.foreign)
	p.mu.Unlock()
	return p.regions.Held() - n
}

// Mapped returns the number of live mappings.
func (p *Provider) Mapped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mapped
}

type unmapper struct {
	p    *Provider
	once sync.Once
}

func (u *unmapper) Close() error {
	u.once.Do(func() {
		u.p.mu.Lock()
		u.p.mapped--
		u.p.mu.Unlock()
	})
	return nil
}
