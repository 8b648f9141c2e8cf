package main

import (
	"context"
	"image"
	"image/color"
	"testing"

	"tftfb/internal/config"
	"tftfb/internal/image16"
)

type fakeScreen struct {
	refreshes int
}

func (f *fakeScreen) Bounds() image.Rectangle { return image.Rect(0, 0, 220, 176) }
func (f *fakeScreen) Layout() image16.Layout  { return image16.RGB565 }
func (f *fakeScreen) Draw(image.Rectangle, image.Image, image.Point) error {
	return nil
}
func (f *fakeScreen) Sync()    {}
func (f *fakeScreen) Refresh() { f.refreshes++ }

func TestStartScheduler(t *testing.T) {
	tests := []struct {
		name     string
		conf     config.Config
		wantJobs int
		wantErr  bool
	}{
		{"no jobs", config.Config{}, 0, false},
		{"full refresh", config.Config{FullRefreshCron: "0 * * * *"}, 1, false},
		{"bad cron", config.Config{FullRefreshCron: "every minute"}, 0, true},
		{"bad source cron", config.Config{Source: &config.SourceConfig{URL: "http://127.0.0.1:1/", Cron: "nope"}}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := startScheduler(context.Background(), &tt.conf, &fakeScreen{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer c.Stop()
			if got := len(c.Entries()); got != tt.wantJobs {
				t.Errorf("%d jobs, want %d", got, tt.wantJobs)
			}
		})
	}
}

func TestToNRGBA(t *testing.T) {
	src := image.NewRGBA(image.Rect(5, 5, 7, 7))
	src.Set(5, 5, color.RGBA{R: 0xff, A: 0xff})

	out := toNRGBA(src)
	if out.Bounds() != image.Rect(0, 0, 2, 2) {
		t.Fatalf("bounds = %v", out.Bounds())
	}
	if c := out.NRGBAAt(0, 0); c.R != 0xff || c.A != 0xff {
		t.Errorf("pixel = %+v", c)
	}

	n := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	if toNRGBA(n) != n {
		t.Error("NRGBA input was copied")
	}
}
