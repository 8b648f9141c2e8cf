package panel

import (
	"fmt"
	"image"
	"image/color"

	"periph.io/x/conn/v3/display"

	"tftfb/internal/convert"
	"tftfb/internal/image16"
)

var _ display.Drawer = (*Device)(nil)

func (d *Device) String() string {
	return fmt.Sprintf("%s(%s)", d.desc, d.name)
}

// Halt puts the panel into standby. Drawing continues to update the
// framebuffer; ExitStandby brings the display back.
func (d *Device) Halt() error {
	return d.EnterStandby()
}

func (d *Device) ColorModel() color.Model {
	return d.desc.Layout.Model()
}

// Layout is the pixel format of the framebuffer.
func (d *Device) Layout() image16.Layout {
	return d.desc.Layout
}

func (d *Device) Bounds() image.Rectangle {
	return image.Rect(0, 0, d.desc.Width, d.desc.Height)
}

// Draw renders src into the framebuffer and marks the pages it touched
// dirty. The panel is updated by the next deferred flush.
func (d *Device) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.img == nil {
		return ErrDetached
	}

	got := convert.Draw(d.img, r, src, sp)
	if got.Empty() {
		return nil
	}
	start := d.img.PixOffset(got.Min.X, got.Min.Y)
	end := d.img.PixOffset(got.Max.X-1, got.Max.Y-1) + 2
	d.deferred.MarkDirty(start, end-start)
	return nil
}

// Sync runs a deferred flush cycle now instead of waiting for the timer.
func (d *Device) Sync() {
	d.mu.Lock()
	deferred := d.deferred
	detached := d.detached
	d.mu.Unlock()
	if deferred == nil || detached {
		return
	}
	deferred.FlushNow()
}

// Snapshot returns a copy of the framebuffer contents.
func (d *Device) Snapshot() (*image16.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.img == nil {
		return nil, ErrDetached
	}
	out := image16.New(d.img.Rect, d.img.Layout)
	for y := d.img.Rect.Min.Y; y < d.img.Rect.Max.Y; y++ {
		o := d.img.PixOffset(d.img.Rect.Min.X, y)
		copy(out.Pix[out.PixOffset(out.Rect.Min.X, y):], d.img.Pix[o:o+out.Stride])
	}
	return out, nil
}

// Framebuffer returns a copy of the raw framebuffer, padding included.
func (d *Device) Framebuffer() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.fb...)
}
