package convert

import (
	"fmt"
	"image"

	"tftfb/internal/image16"
)

// Draw packs src into dst over rectangle r (in dst coordinates), reading src
// starting at sp. Pixels with alpha < 128 leave dst untouched. It returns the
// clipped rectangle that was written.
//
// *image.NRGBA and *image.RGBA sources are read through their Pix slices to
// avoid an At() call per pixel; anything else goes through color.Color.
// Premultiplied sources are un-premultiplied before packing.
func Draw(dst *image16.Image, r image.Rectangle, src image.Image, sp image.Point) image.Rectangle {
	// sp stays aligned with the unclipped r.Min.
	delta := sp.Sub(r.Min)
	r = r.Intersect(dst.Rect)
	r = r.Intersect(src.Bounds().Sub(delta))
	if r.Empty() {
		return image.Rectangle{}
	}

	switch s := src.(type) {
	case *image.NRGBA:
		packPix(dst, r, s.Pix, s.Stride, s.Rect, delta, false)
	case *image.RGBA:
		packPix(dst, r, s.Pix, s.Stride, s.Rect, delta, true)
	default:
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				cr, cg, cb, ca := src.At(x+delta.X, y+delta.Y).RGBA()
				if ca < 0x8000 {
					continue
				}
				// RGBA() is premultiplied.
				if ca < 0xffff {
					cr, cg, cb = cr*0xffff/ca, cg*0xffff/ca, cb*0xffff/ca
				}
				dst.SetWord(x, y, dst.Layout.Pack(uint8(cr>>8), uint8(cg>>8), uint8(cb>>8)))
			}
		}
	}
	return r
}

func packPix(dst *image16.Image, r image.Rectangle, pix []byte, stride int, rect image.Rectangle, delta image.Point, premul bool) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		sy := y + delta.Y
		rowOff := (sy - rect.Min.Y) * stride
		for x := r.Min.X; x < r.Max.X; x++ {
			sx := x + delta.X
			i := rowOff + (sx-rect.Min.X)*4

			a := pix[i+3]
			if a < 128 {
				continue
			}
			cr, cg, cb := pix[i+0], pix[i+1], pix[i+2]
			if premul && a < 0xff {
				cr, cg, cb = unpremul(cr, a), unpremul(cg, a), unpremul(cb, a)
			}
			dst.SetWord(x, y, dst.Layout.Pack(cr, cg, cb))
		}
	}
}

func unpremul(c, a uint8) uint8 {
	v := uint32(c) * 0xff / uint32(a)
	if v > 0xff {
		v = 0xff
	}
	return uint8(v)
}

// PackNRGBA converts a full-panel screenshot into a new image16.Image.
//
//   - img width must be exactly width.
//   - img height must be >= height; taller images are center cropped.
func PackNRGBA(img *image.NRGBA, width, height int, l image16.Layout) (*image16.Image, error) {
	b := img.Bounds()
	if b.Dx() != width {
		return nil, fmt.Errorf("convert: expected width %d, got %d", width, b.Dx())
	}
	if b.Dy() < height {
		return nil, fmt.Errorf("convert: expected height >= %d, got %d", height, b.Dy())
	}

	startY := b.Min.Y + (b.Dy()-height)/2
	out := image16.New(image.Rect(0, 0, width, height), l)
	Draw(out, out.Rect, img, image.Pt(b.Min.X, startY))
	return out, nil
}
