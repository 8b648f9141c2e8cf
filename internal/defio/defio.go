// Package defio is the deferred I/O side of the framebuffer host: it records
// which pages of a framebuffer were written and periodically hands the dirty
// page indices to the panel driver.
//
// Writes are reported explicitly with MarkDirty by whatever draws into the
// buffer. Each cycle takes the dirty set, clears it and calls OnDirty once
// with the indices in ascending order. OnDirty is never called concurrently
// with itself.
package defio

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"sync"
	"time"

	"periph.io/x/conn/v3/physic"

	appLog "tftfb/internal/log"
)

// DefaultRate is the flush cadence used when none is configured.
const DefaultRate = 20 * physic.Hertz

// Config describes one deferred framebuffer.
type Config struct {
	// Name identifies the framebuffer in the registry and in logs.
	Name string

	// Size is the framebuffer length in bytes.
	Size int

	// PageSize is the dirty tracking granularity in bytes.
	PageSize int

	// Rate is the flush cadence; zero means DefaultRate.
	Rate physic.Frequency

	// OnDirty receives the dirty page indices of one cycle.
	OnDirty func(pages []int)
}

// Deferred tracks dirty pages of one framebuffer and runs the flush timer.
type Deferred struct {
	name     string
	pageSize int
	pages    int
	delay    time.Duration
	onDirty  func([]int)

	mu    sync.Mutex
	dirty []uint64

	// flushMu serializes OnDirty between the timer and FlushNow.
	flushMu sync.Mutex

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New validates cfg and returns an idle Deferred. Start runs the timer.
func New(cfg Config) (*Deferred, error) {
	if cfg.Size <= 0 || cfg.PageSize <= 0 {
		return nil, fmt.Errorf("defio: %s: invalid size %d/page %d", cfg.Name, cfg.Size, cfg.PageSize)
	}
	if cfg.OnDirty == nil {
		return nil, fmt.Errorf("defio: %s: OnDirty is nil", cfg.Name)
	}
	rate := cfg.Rate
	if rate <= 0 {
		rate = DefaultRate
	}
	pages := (cfg.Size + cfg.PageSize - 1) / cfg.PageSize
	return &Deferred{
		name:     cfg.Name,
		pageSize: cfg.PageSize,
		pages:    pages,
		delay:    rate.Period(),
		onDirty:  cfg.OnDirty,
		dirty:    make([]uint64, (pages+63)/64),
	}, nil
}

func (d *Deferred) Name() string { return d.name }

// Delay is the time between two flush cycles.
func (d *Deferred) Delay() time.Duration { return d.delay }

// Pages is the number of tracked pages.
func (d *Deferred) Pages() int { return d.pages }

// MarkDirty records a write of n bytes at byte offset off.
func (d *Deferred) MarkDirty(off, n int) {
	if n <= 0 {
		return
	}
	if off < 0 {
		n += off
		off = 0
	}
	first := off / d.pageSize
	last := (off + n - 1) / d.pageSize
	if last >= d.pages {
		last = d.pages - 1
	}

	d.mu.Lock()
	for p := first; p <= last; p++ {
		d.dirty[p/64] |= 1 << (p % 64)
	}
	d.mu.Unlock()
}

// take returns the dirty indices in ascending order and clears the set.
func (d *Deferred) take() []int {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []int
	for w, word := range d.dirty {
		for word != 0 {
			b := bits.TrailingZeros64(word)
			out = append(out, w*64+b)
			word &^= 1 << b
		}
		d.dirty[w] = 0
	}
	return out
}

// FlushNow runs one cycle synchronously and returns the pages it flushed.
func (d *Deferred) FlushNow() []int {
	d.flushMu.Lock()
	defer d.flushMu.Unlock()

	pages := d.take()
	if len(pages) > 0 {
		d.onDirty(pages)
	}
	return pages
}

// Start runs the flush timer until ctx is done or Stop is called. Starting a
// running Deferred is a no-op.
func (d *Deferred) Start(ctx context.Context) {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	if d.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	go d.run(ctx, d.done)
}

func (d *Deferred) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	t := time.NewTicker(d.delay)
	defer t.Stop()

	appLog.Debug("deferred io started", "fb", d.name, "delay", d.delay, "pages", d.pages)
	for {
		select {
		case <-ctx.Done():
			appLog.Debug("deferred io stopped", "fb", d.name)
			return
		case <-t.C:
			d.FlushNow()
		}
	}
}

// Stop cancels the timer and waits for an in-flight cycle to finish. After
// Stop returns OnDirty is not called again by the timer.
func (d *Deferred) Stop() {
	d.runMu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done = nil, nil
	d.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// ErrRegistration is returned when the registry rejects a framebuffer.
var ErrRegistration = errors.New("defio: registration rejected")

// Registry is the set of registered framebuffers. Registering starts the
// deferred timer; unregistering quiesces it.
type Registry struct {
	ctx context.Context
	max int

	mu     sync.Mutex
	fbs    map[string]*Deferred
	closed bool
}

// NewRegistry returns a registry whose timers run under ctx. max limits the
// number of framebuffers; zero means unlimited.
func NewRegistry(ctx context.Context, max int) *Registry {
	return &Registry{ctx: ctx, max: max, fbs: make(map[string]*Deferred)}
}

func (r *Registry) Register(d *Deferred) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.closed:
		return fmt.Errorf("%w: registry closed", ErrRegistration)
	case r.fbs[d.name] != nil:
		return fmt.Errorf("%w: %q already registered", ErrRegistration, d.name)
	case r.max > 0 && len(r.fbs) >= r.max:
		return fmt.Errorf("%w: limit of %d framebuffers reached", ErrRegistration, r.max)
	}
	r.fbs[d.name] = d
	d.Start(r.ctx)
	appLog.Info("framebuffer registered", "fb", d.name, "pages", d.pages, "delay", d.delay)
	return nil
}

// Unregister stops d's timer and forgets it. Unknown framebuffers are ignored.
func (r *Registry) Unregister(d *Deferred) {
	r.mu.Lock()
	if r.fbs[d.name] != d {
		r.mu.Unlock()
		return
	}
	delete(r.fbs, d.name)
	r.mu.Unlock()

	d.Stop()
	appLog.Info("framebuffer unregistered", "fb", d.name)
}

// Lookup returns the framebuffer registered under name.
func (r *Registry) Lookup(name string) (*Deferred, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.fbs[name]
	return d, ok
}

// Close stops every timer and rejects further registrations.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	fbs := make([]*Deferred, 0, len(r.fbs))
	for _, d := range r.fbs {
		fbs = append(fbs, d)
	}
	r.fbs = map[string]*Deferred{}
	r.mu.Unlock()

	for _, d := range fbs {
		d.Stop()
	}
}
