package panel

import (
	"fmt"
	"math"

	appLog "tftfb/internal/log"
)

// Page is one host page of the framebuffer and where it lands on screen.
type Page struct {
	// X, Y is the screen position of the first pixel.
	X, Y uint16

	// Offset is the byte offset of the page in the framebuffer.
	Offset int

	// Len is the number of pixels in the page.
	Len int
}

// BuildPages splits a width x height framebuffer into host pages and
// computes the screen origin of each one.
//
// The origin is advanced by whole rows and a remainder of columns per page,
// wrapping into the next row, in 16-bit unsigned arithmetic as the
// controller's address registers are.
func BuildPages(width, height, bitsPerPixel, hostPageSize int) ([]Page, error) {
	switch {
	case width <= 0 || height <= 0:
		return nil, fmt.Errorf("%w: geometry %dx%d", ErrAllocation, width, height)
	case bitsPerPixel <= 0 || bitsPerPixel%8 != 0:
		return nil, fmt.Errorf("%w: %d bits per pixel", ErrAllocation, bitsPerPixel)
	case width > math.MaxUint16 || height > math.MaxUint16:
		return nil, fmt.Errorf("%w: geometry %dx%d exceeds 16-bit addressing", ErrAllocation, width, height)
	}
	bpp := bitsPerPixel / 8
	perPage := hostPageSize / bpp
	if perPage <= 0 || hostPageSize%bpp != 0 {
		return nil, fmt.Errorf("%w: page of %d bytes does not hold whole %d-byte pixels", ErrAllocation, hostPageSize, bpp)
	}

	total := width * height
	count := (total*bpp + hostPageSize - 1) / hostPageSize

	yoff := uint16(perPage / width)
	xoff := uint16(perPage - int(yoff)*width)
	w := uint16(width)

	pages := make([]Page, count)
	var x, y uint16
	debug := appLog.Enabled(appLog.LevelDebug)
	for i := range pages {
		n := total - i*perPage
		if n > perPage {
			n = perPage
		}
		pages[i] = Page{X: x, Y: y, Offset: i * hostPageSize, Len: n}
		if debug {
			appLog.Debug("page", "index", i, "x", x, "y", y, "offset", pages[i].Offset, "len", n)
		}

		x += xoff
		if x >= w {
			y++
			x -= w
		}
		y += yoff
	}
	return pages, nil
}
