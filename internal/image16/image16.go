// Package image16 provides a 16 bits per pixel packed RGB image whose bit
// layout is described per panel, the way the fbdev red/green/blue bitfields
// are.
//
// Pixels are stored as little-endian 16-bit words, row after row.
package image16

import (
	"image"
	"image/color"
)

// Field is one color channel: Length bits starting at bit Offset.
type Field struct {
	Offset uint
	Length uint
}

func (f Field) mask() uint16 { return uint16(1)<<f.Length - 1 }

// pack scales an 8-bit channel down to the field and positions it.
func (f Field) pack(v uint8) uint16 {
	return (uint16(v) >> (8 - f.Length) & f.mask()) << f.Offset
}

// unpack extracts the field and scales it back to 8 bits, replicating the
// high bits into the low ones so full scale maps to 0xff.
func (f Field) unpack(w uint16) uint8 {
	v := (w >> f.Offset) & f.mask()
	v <<= 8 - f.Length
	v |= v >> f.Length
	return uint8(v)
}

// Layout is the bit assignment of a 16-bit pixel.
type Layout struct {
	Red, Green, Blue Field
}

// RGB565 is the common layout: red in the top five bits.
var RGB565 = Layout{
	Red:   Field{Offset: 11, Length: 5},
	Green: Field{Offset: 5, Length: 6},
	Blue:  Field{Offset: 0, Length: 5},
}

// Pack converts an 8-bit per channel color to a pixel word.
func (l Layout) Pack(r, g, b uint8) uint16 {
	return l.Red.pack(r) | l.Green.pack(g) | l.Blue.pack(b)
}

// Unpack converts a pixel word back to 8-bit channels.
func (l Layout) Unpack(w uint16) (r, g, b uint8) {
	return l.Red.unpack(w), l.Green.unpack(w), l.Blue.unpack(w)
}

// Model returns the color.Model that quantizes to l.
func (l Layout) Model() color.Model {
	return color.ModelFunc(func(c color.Color) color.Color {
		r, g, b, _ := c.RGBA()
		rr, gg, bb := l.Unpack(l.Pack(uint8(r>>8), uint8(g>>8), uint8(b>>8)))
		return color.RGBA{R: rr, G: gg, B: bb, A: 0xff}
	})
}

// Image is a packed 16bpp image.
type Image struct {
	Pix    []byte
	Stride int
	Rect   image.Rectangle
	Layout Layout
}

// New allocates a zeroed image.
func New(r image.Rectangle, l Layout) *Image {
	w, h := r.Dx(), r.Dy()
	if w < 0 || h < 0 {
		return &Image{Rect: r, Layout: l}
	}
	return &Image{Pix: make([]byte, 2*w*h), Stride: 2 * w, Rect: r, Layout: l}
}

// Wrap returns an Image using pix as backing storage. pix must hold at least
// stride*r.Dy() bytes.
func Wrap(pix []byte, stride int, r image.Rectangle, l Layout) *Image {
	return &Image{Pix: pix, Stride: stride, Rect: r, Layout: l}
}

func (i *Image) ColorModel() color.Model { return i.Layout.Model() }

func (i *Image) Bounds() image.Rectangle { return i.Rect }

// PixOffset returns the byte offset of the pixel at (x, y).
func (i *Image) PixOffset(x, y int) int {
	return (y-i.Rect.Min.Y)*i.Stride + (x-i.Rect.Min.X)*2
}

func (i *Image) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}.In(i.Rect)) {
		return color.RGBA{}
	}
	r, g, b := i.Layout.Unpack(i.Word(x, y))
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// Word returns the raw pixel word at (x, y).
func (i *Image) Word(x, y int) uint16 {
	o := i.PixOffset(x, y)
	return uint16(i.Pix[o]) | uint16(i.Pix[o+1])<<8
}

// SetWord stores a raw pixel word at (x, y).
func (i *Image) SetWord(x, y int, w uint16) {
	if !(image.Point{X: x, Y: y}.In(i.Rect)) {
		return
	}
	o := i.PixOffset(x, y)
	i.Pix[o] = byte(w)
	i.Pix[o+1] = byte(w >> 8)
}

func (i *Image) Set(x, y int, c color.Color) {
	r, g, b, _ := c.RGBA()
	i.SetWord(x, y, i.Layout.Pack(uint8(r>>8), uint8(g>>8), uint8(b>>8)))
}

// SubImage returns the part of i visible through r, sharing pixels.
func (i *Image) SubImage(r image.Rectangle) image.Image {
	r = r.Intersect(i.Rect)
	if r.Empty() {
		return &Image{Layout: i.Layout}
	}
	o := i.PixOffset(r.Min.X, r.Min.Y)
	return &Image{Pix: i.Pix[o:], Stride: i.Stride, Rect: r, Layout: i.Layout}
}
