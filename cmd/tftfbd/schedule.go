package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"github.com/robfig/cron/v3"

	"tftfb/internal/capture"
	"tftfb/internal/config"
	"tftfb/internal/convert"
	"tftfb/internal/image16"
	appLog "tftfb/internal/log"
)

// screen is what the scheduled jobs draw on.
type screen interface {
	Bounds() image.Rectangle
	Layout() image16.Layout
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
	Sync()
	Refresh()
}

// startScheduler registers the periodic full refresh and source capture jobs
// and starts the cron scheduler.
func startScheduler(ctx context.Context, conf *config.Config, s screen) (*cron.Cron, error) {
	c := cron.New()

	if conf.FullRefreshCron != "" {
		if _, err := c.AddFunc(conf.FullRefreshCron, func() {
			s.Refresh()
			appLog.Debug("full refresh done")
		}); err != nil {
			return nil, fmt.Errorf("full_refresh %q: %w", conf.FullRefreshCron, err)
		}
	}

	if src := conf.Source; src != nil && src.URL != "" {
		job := func() {
			if err := renderSource(ctx, src, s); err != nil {
				appLog.Error("render source failed", err, "url", src.URL)
			}
		}
		if _, err := c.AddFunc(src.Cron, job); err != nil {
			return nil, fmt.Errorf("source.cron %q: %w", src.Cron, err)
		}
		go job()
	}

	c.Start()
	appLog.Info("scheduler started", "jobs", len(c.Entries()))
	return c, nil
}

// renderSource captures the source page and draws it full screen.
func renderSource(ctx context.Context, src *config.SourceConfig, s screen) error {
	b := s.Bounds()
	raw, err := capture.CapturePNG(ctx, capture.CaptureOptions{
		URL:      src.URL,
		Selector: src.Selector,
		Width:    b.Dx(),
		Height:   b.Dy(),
	})
	if err != nil {
		return err
	}

	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("decode screenshot: %w", err)
	}
	frame, err := convert.PackNRGBA(toNRGBA(img), b.Dx(), b.Dy(), s.Layout())
	if err != nil {
		return err
	}
	if err := s.Draw(b, frame, frame.Rect.Min); err != nil {
		return err
	}
	s.Sync()
	appLog.Info("source rendered", "url", src.URL)
	return nil
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Rect, img, b.Min, draw.Src)
	return out
}
