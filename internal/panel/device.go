// Package panel drives ILI9225-family TFT controllers as page based
// framebuffers: it attaches a controller to its bus ports, replays the
// power-on sequence and streams dirty framebuffer pages to GRAM.
package panel

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"tftfb/internal/bus"
	"tftfb/internal/defio"
	"tftfb/internal/image16"
	appLog "tftfb/internal/log"
	"tftfb/internal/platform"
	"tftfb/internal/region"
)

// DefaultHostPageSize is the dirty tracking granularity.
const DefaultHostPageSize = 4096

// DefaultSettle is the delay of the slow register accessors.
const DefaultSettle = time.Millisecond

// Resources claims and maps the physical windows the ports live in.
type Resources interface {
	Claim(r region.Region) (io.Closer, error)
	Map(r region.Region) (bus.Port, io.Closer, error)
}

// HostResources claims through a region registry and maps through /dev/mem.
type HostResources struct {
	Regions *region.Registry
}

func (h HostResources) Claim(r region.Region) (io.Closer, error) {
	c, err := h.Regions.Claim(r)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (HostResources) Map(r region.Region) (bus.Port, io.Closer, error) {
	p, err := bus.MapMMIO(r.Base, r.Size)
	if err != nil {
		return nil, nil, err
	}
	return p, p, nil
}

// Registrar is the framebuffer host the deferred flush is registered with.
type Registrar interface {
	Register(d *defio.Deferred) error
	Unregister(d *defio.Deferred)
}

// Options configures Attach.
type Options struct {
	// Name is the framebuffer name; defaults to the controller name.
	Name string

	Supply Supply

	Control region.Region
	Data    region.Region

	Resources Resources

	// Platform configures the bus timings before any port is mapped. Nil
	// skips the step.
	Platform platform.Configurer

	Registrar Registrar

	// HostPageSize defaults to DefaultHostPageSize.
	HostPageSize int

	// Rate is the deferred flush cadence; zero uses defio.DefaultRate.
	Rate physic.Frequency

	// Settle defaults to DefaultSettle.
	Settle time.Duration

	// Backlight is switched on after the first full flush. Optional.
	Backlight gpio.PinOut

	// Sleep replaces time.Sleep for every bus delay.
	Sleep func(time.Duration)
}

// Device is an attached panel.
type Device struct {
	desc *Descriptor
	name string
	bus  *bus.Bus

	deferred *defio.Deferred

	mu        sync.Mutex
	fb        []byte
	img       *image16.Image
	pages     []Page
	cursor    int
	stage     Stage
	signature uint16
	stats     Stats
	detached  bool

	// undo holds the teardown of every completed attach step, in attach order.
	undo []func()
}

// Attach brings up the controller described by desc. On failure every step
// already taken is undone in reverse order and no resource stays held.
func Attach(ctx context.Context, desc *Descriptor, opts Options) (_ *Device, err error) {
	if desc == nil {
		return nil, errors.New("panel: nil descriptor")
	}
	if opts.Resources == nil || opts.Registrar == nil {
		return nil, errors.New("panel: Resources and Registrar are required")
	}
	if opts.Name == "" {
		opts.Name = desc.Name
	}
	if opts.HostPageSize == 0 {
		opts.HostPageSize = DefaultHostPageSize
	}
	if opts.Settle == 0 {
		opts.Settle = DefaultSettle
	}
	table := desc.Init(opts.Supply)
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d := &Device{desc: desc, name: opts.Name, cursor: noCursor, stage: StageReset}
	defer func() {
		if err != nil {
			appLog.Error("panel attach failed", err, "panel", desc.Name, "fb", d.name)
			d.unwind()
		}
	}()

	ctrlClaim, err := opts.Resources.Claim(opts.Control)
	if err != nil {
		return nil, fmt.Errorf("%w: control %s: %w", ErrResourceUnavailable, opts.Control, err)
	}
	d.push(func() { ctrlClaim.Close() })

	if opts.Platform != nil {
		if err := opts.Platform.ConfigureBusTiming(); err != nil {
			return nil, fmt.Errorf("%w: bus timing: %w", ErrMapping, err)
		}
	}

	ctrl, ctrlUnmap, err := opts.Resources.Map(opts.Control)
	if err != nil {
		return nil, fmt.Errorf("%w: control %s: %w", ErrMapping, opts.Control, err)
	}
	d.push(func() { ctrlUnmap.Close() })

	dataClaim, err := opts.Resources.Claim(opts.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: data %s: %w", ErrResourceUnavailable, opts.Data, err)
	}
	d.push(func() { dataClaim.Close() })

	data, dataUnmap, err := opts.Resources.Map(opts.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: data %s: %w", ErrMapping, opts.Data, err)
	}
	d.push(func() { dataUnmap.Close() })

	d.bus = &bus.Bus{Ctrl: ctrl, Data: data, Settle: opts.Settle, Sleep: opts.Sleep}

	d.signature = d.probe()
	if !desc.Accepts(d.signature) {
		return nil, fmt.Errorf("%w: %s read %#04x, want one of %#04x", ErrUnrecognizedDevice, desc.Name, d.signature, desc.Signatures)
	}
	appLog.Info("panel detected", "panel", desc.Name, "signature", fmt.Sprintf("%#04x", d.signature))

	if err := d.allocate(opts.HostPageSize); err != nil {
		return nil, err
	}
	d.push(func() {
		d.mu.Lock()
		d.fb, d.img = nil, nil
		d.mu.Unlock()
	})

	pages, err := BuildPages(desc.Width, desc.Height, desc.BitsPerPixel, opts.HostPageSize)
	if err != nil {
		return nil, err
	}
	d.pages = pages
	d.cursor = noCursor
	d.push(func() {
		d.mu.Lock()
		d.pages = nil
		d.mu.Unlock()
	})

	deferred, err := defio.New(defio.Config{
		Name:     d.name,
		Size:     len(d.fb),
		PageSize: opts.HostPageSize,
		Rate:     opts.Rate,
		OnDirty:  d.Flush,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRegistration, err)
	}
	if err := opts.Registrar.Register(deferred); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRegistration, err)
	}
	d.deferred = deferred
	d.push(func() { opts.Registrar.Unregister(deferred) })

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	runInit(d.bus, table, desc.Window.GRAM, func(s Stage) {
		d.stage = s
		appLog.Debug("init stage reached", "panel", desc.Name, "stage", s)
	})
	d.updateAll()
	d.mu.Unlock()

	if bl := opts.Backlight; bl != nil {
		if err := bl.Out(gpio.High); err != nil {
			appLog.Warn("backlight on failed", "pin", bl, "err", err)
		}
		d.push(func() {
			if err := bl.Out(gpio.Low); err != nil {
				appLog.Warn("backlight off failed", "pin", bl, "err", err)
			}
		})
	}

	appLog.Info("panel attached",
		"panel", desc.Name,
		"fb", d.name,
		"supply", opts.Supply,
		"pages", len(d.pages),
		"smem_len", len(d.fb),
		"delay", deferred.Delay(),
	)
	return d, nil
}

// probe reads the controller signature with the slow accessors.
func (d *Device) probe() uint16 {
	d.bus.WriteRegisterSlow(d.desc.SignatureReg, 0)
	d.bus.SendCommandSlow(d.desc.IDReg)
	return d.bus.ReadDataSlow()
}

// allocate sizes the framebuffer to whole host pages and zeroes it.
func (d *Device) allocate(pageSize int) error {
	frame := d.desc.Stride() * d.desc.Height
	if frame <= 0 || pageSize <= 0 {
		return fmt.Errorf("%w: frame of %d bytes in %d-byte pages", ErrAllocation, frame, pageSize)
	}
	pages := (frame + pageSize - 1) / pageSize
	d.fb = make([]byte, pages*pageSize)
	d.img = image16.Wrap(d.fb, d.desc.Stride(), image.Rect(0, 0, d.desc.Width, d.desc.Height), d.desc.Layout)
	return nil
}

func (d *Device) push(f func()) { d.undo = append(d.undo, f) }

func (d *Device) unwind() {
	for i := len(d.undo) - 1; i >= 0; i-- {
		d.undo[i]()
	}
	d.undo = nil
}

// Detach switches the backlight off, quiesces the deferred flush and releases
// the framebuffer and both ports. It is safe to call more than once.
func (d *Device) Detach() {
	d.mu.Lock()
	if d.detached {
		d.mu.Unlock()
		return
	}
	d.detached = true
	d.mu.Unlock()

	// Not under d.mu: unregistering waits for an in-flight Flush.
	d.unwind()
	appLog.Info("panel detached", "panel", d.desc.Name, "fb", d.name)
}

// EnterStandby blanks the display and puts the controller into standby.
func (d *Device) EnterStandby() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.detached {
		return ErrDetached
	}
	if d.stage == StageStandby {
		return nil
	}
	replay(d.bus, d.desc.Standby)
	d.stage = StageStandby
	appLog.Info("panel standby", "fb", d.name)
	return nil
}

// ExitStandby powers the controller back up. The address counter is not
// trusted afterwards, so the next copy reprograms the window.
func (d *Device) ExitStandby() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.detached {
		return ErrDetached
	}
	if d.stage != StageStandby {
		return nil
	}
	replay(d.bus, d.desc.Resume)
	d.stage = StageDisplayOn
	d.cursor = noCursor
	appLog.Info("panel resumed", "fb", d.name)
	return nil
}

// Status is a snapshot of the device state.
type Status struct {
	Panel     string `json:"panel"`
	Name      string `json:"name"`
	Signature string `json:"signature"`
	Stage     string `json:"stage"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Pages     int    `json:"pages"`
	Cursor    int    `json:"cursor"`
	Detached  bool   `json:"detached"`
	Stats     Stats  `json:"stats"`
}

func (d *Device) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Status{
		Panel:     d.desc.Name,
		Name:      d.name,
		Signature: fmt.Sprintf("%#04x", d.signature),
		Stage:     d.stage.String(),
		Width:     d.desc.Width,
		Height:    d.desc.Height,
		Pages:     len(d.pages),
		Cursor:    d.cursor,
		Detached:  d.detached,
		Stats:     d.stats,
	}
}

// Stage returns the current power stage.
func (d *Device) Stage() Stage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stage
}

// Pages returns a copy of the page table.
func (d *Device) Pages() []Page {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Page(nil), d.pages...)
}
