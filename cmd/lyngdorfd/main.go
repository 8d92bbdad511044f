// Command lyngdorfd bridges a Lyngdorf MP-50/MP-60 processor to HTTP.
// Run with --mock to talk to a simulated processor instead of a real port.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/brianhealey/lyngdorf-go/internal/api"
	"github.com/brianhealey/lyngdorf-go/internal/auth"
	"github.com/brianhealey/lyngdorf-go/internal/config"
	"github.com/brianhealey/lyngdorf-go/internal/controller"
	"github.com/brianhealey/lyngdorf-go/internal/events"
	"github.com/brianhealey/lyngdorf-go/internal/hardware"
	"github.com/brianhealey/lyngdorf-go/internal/identity"
	"github.com/brianhealey/lyngdorf-go/internal/maintenance"
	"github.com/brianhealey/lyngdorf-go/internal/models"
	"github.com/brianhealey/lyngdorf-go/internal/zeroconf"
)

// keepAlive pings an otherwise idle link so a dead TCP peer is noticed.
const keepAlive = 30 * time.Second

func main() {
	var (
		mock   = flag.Bool("mock", false, "use a simulated processor (no serial port or network device required)")
		addr   = flag.String("addr", "", "HTTP listen address (overrides settings)")
		cfgDir = flag.String("config-dir", "", "config directory (default: ~/.config/lyngdorfd)")
		url    = flag.String("url", "", "device port url, e.g. /dev/ttyUSB0 or socket://10.0.0.5 (overrides settings)")
		model  = flag.String("model", "", "device model: mp50 or mp60 (overrides settings)")
		debug  = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	if *cfgDir == "" {
		*cfgDir = identity.DefaultConfigDir()
	}
	if err := os.MkdirAll(*cfgDir, 0755); err != nil {
		slog.Error("cannot create config directory", "path", *cfgDir, "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Settings: file, then flag overrides. A missing file is written out so
	// it can be edited in place.
	store := config.NewJSONStore(*cfgDir)
	settings, err := store.Load()
	if err != nil {
		slog.Error("cannot load settings", "path", store.Path(), "err", err)
		os.Exit(1)
	}
	if _, err := os.Stat(store.Path()); errors.Is(err, os.ErrNotExist) {
		if err := store.Save(settings); err != nil {
			slog.Warn("failed to save default settings", "path", store.Path(), "err", err)
		}
	}
	if *url != "" {
		settings.URL = *url
	}
	if *model != "" {
		settings.Model = hardware.ModelID(*model)
	}
	if *addr != "" {
		settings.HTTPAddr = *addr
	}
	if err := settings.Validate(); err != nil {
		slog.Error("invalid settings", "err", err)
		os.Exit(1)
	}

	var current atomic.Pointer[config.Settings]
	current.Store(settings)

	policy := func() api.Policy {
		s := current.Load()
		return api.Policy{
			Zone2Enabled:       s.Zone2Enabled,
			Zone2MaxVolume:     s.Zone2MaxVolume,
			Zone2DefaultSource: s.Zone2DefaultSource,
			SourceNames:        s.Sources,
		}
	}

	bus := events.NewBus()
	sup := maintenance.New(dialer(*mock, &current), supervisorConfig(settings), bus)

	// Settings file changes apply live. Link changes drop the session so the
	// supervisor reconnects with the new descriptor.
	watcher, err := config.Watch(store, func(next *config.Settings) {
		next.URL = override(next.URL, *url)
		next.Model = hardware.ModelID(override(string(next.Model), *model))
		prev := current.Swap(next)
		sup.SetConfig(supervisorConfig(next))
		if prev.URL != next.URL || prev.Model != next.Model || prev.BaudRate != next.BaudRate || prev.Verbosity != next.Verbosity {
			slog.Info("device settings changed, reconnecting", "url", next.URL, "model", next.Model)
			if s, err := sup.Session(); err == nil {
				s.Close()
			}
		}
	})
	if err != nil {
		slog.Warn("settings watcher unavailable", "err", err)
	} else {
		defer watcher.Close()
	}

	authSvc, err := auth.NewService(*cfgDir)
	if err != nil {
		slog.Error("auth service initialization failed", "err", err)
		os.Exit(1)
	}
	defer authSvc.Close()

	ident := identity.New(*cfgDir)

	if settings.Announce {
		zc := zeroconf.New(ident.Hostname, listenPort(settings.HTTPAddr), map[string]string{
			"version": ident.Version,
			"model":   string(settings.Model),
			"path":    "/api",
		})
		sup.OnConnect(func(s *controller.Session) {
			txt := map[string]string{"model": string(s.Profile().ID)}
			if name, ok := s.Snapshot().String(models.FieldDeviceName); ok {
				txt["device"] = name
			}
			if err := zc.SetTXT(txt); err != nil {
				slog.Warn("zeroconf TXT update failed", "err", err)
			}
		})
		go func() {
			if err := zc.Start(ctx); err != nil {
				slog.Warn("zeroconf failed", "err", err)
			}
		}()
	}

	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		sup.Run(ctx)
	}()

	router := api.NewRouter(api.Config{
		Device:   sup,
		Events:   bus,
		Auth:     authSvc,
		Identity: ident,
		Policy:   policy,
	})

	srv := &http.Server{
		Addr:         settings.HTTPAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout (needed for SSE)
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("lyngdorfd listening", "addr", settings.HTTPAddr, "device", settings.URL, "model", settings.Model, "mock", *mock, "config", *cfgDir)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down...")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()

	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("server shutdown error", "err", err)
	}
	select {
	case <-supDone:
	case <-shutCtx.Done():
		slog.Warn("device session did not close in time")
	}
	if err := store.Flush(); err != nil {
		slog.Warn("failed to flush config", "err", err)
	}

	slog.Info("shutdown complete")
}

// dialer opens sessions with whatever settings are current at dial time.
func dialer(mock bool, current *atomic.Pointer[config.Settings]) maintenance.DialFunc {
	return func(ctx context.Context) (*controller.Session, error) {
		s := current.Load()
		opts := controller.Options{
			Timeout:      s.Timeout.Std(),
			SuppressEcho: s.SuppressEcho,
			Verbosity:    s.Verbosity,
			// Verbosity 0 means leave the device's reporting level alone.
			SkipVerbosity: s.Verbosity == 0,
		}
		if mock {
			p, err := hardware.LookupProfile(s.Model)
			if err != nil {
				return nil, err
			}
			sim := hardware.NewSimulator(p)
			return controller.NewSession(ctx, hardware.NewMockWithResponder(sim.Respond), p, opts)
		}
		desc, err := s.Descriptor()
		if err != nil {
			return nil, err
		}
		return controller.Connect(ctx, desc, s.Model, opts)
	}
}

func supervisorConfig(s *config.Settings) maintenance.Config {
	return maintenance.Config{
		PollInterval:  s.PollInterval.Std(),
		KeepAlive:     keepAlive,
		ReconnectWait: s.ReconnectWait.Std(),
	}
}

func override(v, flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return v
}

// listenPort extracts the port from a listen address, defaulting to 80.
func listenPort(addr string) int {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 80
	}
	n, err := strconv.Atoi(p)
	if err != nil {
		return 80
	}
	return n
}
