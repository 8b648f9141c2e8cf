package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"tftfb/internal/config"
	"tftfb/internal/defio"
	appLog "tftfb/internal/log"
	"tftfb/internal/panel"
	"tftfb/internal/platform"
	"tftfb/internal/region"
	"tftfb/internal/sim"
	"tftfb/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	sim        bool
}

func main() {
	appLog.Info("tftfbd starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI flags override the config file.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.sim {
		conf.Bus = "sim"
	}
	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("effective config",
		"panel", conf.Panel,
		"supply", conf.Supply,
		"bus", conf.Bus,
		"control", fmt.Sprintf("%#x+%d", conf.Control.Base, conf.Control.Size),
		"data", fmt.Sprintf("%#x+%d", conf.Data.Base, conf.Data.Size),
		"refresh_hz", conf.RefreshHz,
		"listen", conf.Listen,
		"full_refresh", conf.FullRefreshCron,
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	registry := defio.NewRegistry(ctx, 1)
	defer registry.Close()

	dev, err := attachPanel(ctx, conf, registry)
	if err != nil {
		appLog.Error("panel attach failed", err, "panel", conf.Panel)
		os.Exit(1)
	}
	defer dev.Detach()

	if flags.once {
		if conf.Source != nil && conf.Source.URL != "" {
			if err := renderSource(ctx, conf.Source, dev); err != nil {
				appLog.Error("render source failed", err, "url", conf.Source.URL)
			}
		}
		dev.Sync()
		appLog.Info("single cycle done", "pages", dev.Status().Stats.Pages)
		return
	}

	sched, err := startScheduler(ctx, conf, dev)
	if err != nil {
		appLog.Error("scheduler setup failed", err)
		dev.Detach()
		os.Exit(1)
	}

	srv := web.NewServer(conf, dev)
	go func() {
		if err := srv.Run(ctx); err != nil {
			appLog.Error("HTTP server failed", err, "listen", conf.Listen)
			cancel()
		}
	}()

	<-ctx.Done()

	// Let running cron jobs finish before the panel goes away.
	stopCtx := sched.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(10 * time.Second):
		appLog.Warn("scheduled jobs still running at shutdown")
	}
	dev.Detach()
	appLog.Info("tftfbd exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/tftfb/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Attach, draw the configured source once, flush and exit")
	flag.BoolVar(&cfg.sim, "sim", false, "Use the simulated controller instead of the memory-mapped bus")

	flag.Parse()

	return cfg
}

// attachPanel resolves the configured controller and its bus backend and
// attaches it.
func attachPanel(ctx context.Context, conf *config.Config, registry *defio.Registry) (*panel.Device, error) {
	desc, err := panel.Lookup(conf.Panel)
	if err != nil {
		return nil, err
	}
	supply, err := panel.ParseSupply(conf.Supply)
	if err != nil {
		return nil, err
	}

	opts := panel.Options{
		Name:         "fb0",
		Supply:       supply,
		Control:      region.Region{Name: "ctrl", Base: conf.Control.Base, Size: conf.Control.Size},
		Data:         region.Region{Name: "data", Base: conf.Data.Base, Size: conf.Data.Size},
		Registrar:    registry,
		HostPageSize: conf.HostPageSize,
		Rate:         physic.Frequency(conf.RefreshHz) * physic.Hertz,
		Settle:       time.Duration(conf.SettleMicros) * time.Microsecond,
	}

	switch conf.Bus {
	case "sim":
		ctl := sim.NewController(desc.Width, desc.Height, desc.Signatures[0])
		opts.Resources = sim.NewProvider(ctl, opts.Control.Base, opts.Data.Base)
		opts.Platform = platform.None{}
	case "mmio":
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("periph host init: %w", err)
		}
		opts.Resources = panel.HostResources{Regions: region.NewRegistry(conf.LockDir)}
		if conf.Timing.Enabled {
			opts.Platform = platform.Static{Timing: platform.Timing{
				Base:    conf.Timing.Base,
				Config:  conf.Timing.Config,
				WaitWen: conf.Timing.WaitWen,
				WaitOen: conf.Timing.WaitOen,
				WaitRd:  conf.Timing.WaitRd,
				WaitPg:  conf.Timing.WaitPg,
				WaitWr:  conf.Timing.WaitWr,
				Turn:    conf.Timing.Turn,
			}}
		}
		if conf.BacklightPin != "" {
			p := gpioreg.ByName(conf.BacklightPin)
			if p == nil {
				return nil, fmt.Errorf("backlight pin %q not found", conf.BacklightPin)
			}
			opts.Backlight = p
		}
	default:
		return nil, errors.New("unknown bus " + conf.Bus)
	}

	return panel.Attach(ctx, desc, opts)
}
