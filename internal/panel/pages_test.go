package panel

import (
	"errors"
	"testing"
)

func TestBuildPagesCoverage(t *testing.T) {
	tests := []struct {
		name                  string
		width, height, bpp    int
		pageSize              int
		wantCount, wantLastPx int
	}{
		{"panel", 220, 176, 16, 4096, 19, 1856},
		{"exact fit", 64, 64, 16, 4096, 2, 2048},
		{"single short page", 10, 10, 16, 4096, 1, 100},
		{"small pages", 7, 5, 16, 8, 9, 3},
		{"8bpp", 100, 3, 8, 64, 5, 44},
		{"24bpp", 5, 5, 24, 6, 13, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages, err := BuildPages(tt.width, tt.height, tt.bpp, tt.pageSize)
			if err != nil {
				t.Fatalf("BuildPages: %v", err)
			}
			if len(pages) != tt.wantCount {
				t.Fatalf("got %d pages, want %d", len(pages), tt.wantCount)
			}
			bytesPP := tt.bpp / 8
			perPage := tt.pageSize / bytesPP
			total := 0
			for i, p := range pages {
				if p.Offset != i*tt.pageSize {
					t.Errorf("page %d offset %d, want %d", i, p.Offset, i*tt.pageSize)
				}
				if i < len(pages)-1 && p.Len != perPage {
					t.Errorf("page %d len %d, want %d", i, p.Len, perPage)
				}
				if p.Len <= 0 {
					t.Errorf("page %d is empty", i)
				}
				total += p.Len
			}
			if total != tt.width*tt.height {
				t.Errorf("pages cover %d pixels, want %d", total, tt.width*tt.height)
			}
			if last := pages[len(pages)-1].Len; last != tt.wantLastPx {
				t.Errorf("last page len %d, want %d", last, tt.wantLastPx)
			}
		})
	}
}

func TestBuildPagesOrigins(t *testing.T) {
	pages, err := BuildPages(220, 176, 16, 4096)
	if err != nil {
		t.Fatal(err)
	}
	want := []struct{ x, y uint16 }{
		{0, 0}, {68, 9}, {136, 18}, {204, 27}, {52, 37},
	}
	for i, w := range want {
		if pages[i].X != w.x || pages[i].Y != w.y {
			t.Errorf("page %d origin (%d,%d), want (%d,%d)", i, pages[i].X, pages[i].Y, w.x, w.y)
		}
	}
	// At this width every origin lands on the page's first pixel.
	for i, p := range pages {
		px := i * 2048
		if int(p.Y) != px/220 || int(p.X) != px%220 {
			t.Errorf("page %d origin (%d,%d), pixel %d is at (%d,%d)", i, p.X, p.Y, px, px%220, px/220)
		}
	}
}

func TestBuildPagesRejects(t *testing.T) {
	tests := []struct {
		name                    string
		width, height, bpp, pg int
	}{
		{"zero width", 0, 10, 16, 4096},
		{"negative height", 10, -1, 16, 4096},
		{"odd bpp", 10, 10, 12, 4096},
		{"page smaller than pixel", 10, 10, 16, 1},
		{"page not whole pixels", 10, 10, 16, 4095},
		{"too wide", 70000, 1, 16, 4096},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildPages(tt.width, tt.height, tt.bpp, tt.pg)
			if !errors.Is(err, ErrAllocation) {
				t.Errorf("err = %v, want ErrAllocation", err)
			}
		})
	}
}
