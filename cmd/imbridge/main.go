//go:build linux

// imbridge opens an X11 window and routes its keyboard input through the
// IBus input method daemon.
//
// Committed text and the composition in progress are kept in an in-memory
// document and echoed to stdout as they change, with the composition
// underlined. Focus the window and switch input
// sources as usual to compose.
//
// Usage:
//
//	imbridge [-config path] [-display :0] [-debug] [-watch=false]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"imbridge/internal/config"
	"imbridge/internal/ibus"
	"imbridge/internal/logging"
	"imbridge/internal/metrics"
	"imbridge/internal/view"
	"imbridge/internal/x11"
	"imbridge/internal/xim"
)

func main() {
	configPath := flag.String("config", "", "configuration file (default $XDG_CONFIG_HOME/imbridge/config.toml)")
	display := flag.String("display", "", "X display (default $DISPLAY)")
	debug := flag.Bool("debug", false, "enable debug logging")
	watch := flag.Bool("watch", true, "reload the logging level when the config file changes")
	flag.Parse()

	if err := run(*configPath, *display, *debug, *watch); err != nil {
		fmt.Fprintf(os.Stderr, "imbridge: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, display string, debug, watch bool) error {
	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	defer loader.Close()

	logCfg, levelVar, err := loggingConfig(cfg, debug)
	if err != nil {
		return err
	}
	log, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer log.Close()
	logging.SetDefault(log)

	if watch {
		loader.OnChange(func(old, new *config.Config) {
			if debug {
				return
			}
			if lvl, err := logging.ParseLevel(new.Logging.Level); err == nil {
				levelVar.Set(lvl)
				log.Info("log level reloaded", "level", new.Logging.Level)
			}
		})
		if err := loader.Watch(); err != nil {
			log.Warn("config watch unavailable", "error", err)
		}
		done := make(chan struct{})
		defer close(done)
		go logReloadErrors(loader.Errors(), log, done)
	}

	var im *metrics.IMMetrics
	if cfg.Metrics.Enabled {
		im = metrics.NewIMMetrics(metrics.NewRegistry("imbridge", ""))
		srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: im.Registry().HTTPHandler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("metrics server stopped", "error", err)
			}
		}()
		defer srv.Close()
	}

	encoding, err := xim.LookupEncoding(cfg.Preedit.Encoding)
	if err != nil {
		return fmt.Errorf("preedit encoding: %w", err)
	}

	conn, err := x11.Dial(display)
	if err != nil {
		return err
	}
	defer conn.Close()

	keymap, err := x11.LoadKeymap(conn)
	if err != nil {
		return err
	}
	hotkeys, err := x11.ParseHotkeys(keymap, cfg.Hotkeys)
	if err != nil {
		return fmt.Errorf("hotkeys: %w", err)
	}

	svc := ibus.New(ibus.Config{
		Address:    cfg.IBus.Address,
		ClientName: cfg.IBus.ClientName,
		Timeout:    cfg.IBusTimeout(),
		SignalWait: cfg.IBusSignalWait(),
		Keymap:     keymap,
		Prefilter: func(ev xim.RawKeyEvent) bool {
			hk, ok := hotkeys.Match(ev)
			if ok && ev.Kind == xim.KeyPress {
				log.Info("hotkey", "combo", hk.Spec)
			}
			return ok
		},
		Logger: log,
	})
	defer svc.Close()

	manager := xim.NewManager(svc, xim.Options{
		BufferSize: cfg.Lookup.InitialBufferSize,
		Encoding:   encoding,
		Logger:     log,
		Metrics:    im,
	})

	win, err := x11.OpenWindow(conn, x11.WindowOptions{Title: "imbridge"})
	if err != nil {
		return err
	}
	doc := view.NewDocument(keymap, x11.KeysymRune, log)
	doc.OnChange(func(s view.Snapshot) {
		// Typed text goes to stdout only; the logger redacts it.
		fmt.Printf("%s\x1b[4m%s\x1b[0m\n", s.Text, s.Preedit)
	})
	if _, err := manager.Attach(win, doc, doc); err != nil {
		return err
	}

	src := x11.NewSource(conn, manager, svc, log)
	src.Handle(win.ID, doc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("imbridge started", "window", win.ID, "config", loader.Path())
	err = src.Run(ctx)
	if im != nil {
		log.Debug("session metrics", "metrics", im.Registry().Snapshot())
	}
	if errors.Is(err, context.Canceled) {
		log.Info("shutting down")
		return nil
	}
	return err
}

// logReloadErrors logs every failed config reload until done is closed.
// The loader keeps serving the previous config after a failure.
func logReloadErrors(errs <-chan error, log *logging.Logger, done <-chan struct{}) {
	for {
		select {
		case err := <-errs:
			log.Warn("config reload failed, keeping previous config", "error", err)
		case <-done:
			return
		}
	}
}

// loggingConfig maps the config file section onto the logger. The
// returned LevelVar lets a config reload change the level in place.
func loggingConfig(cfg *config.Config, debug bool) (*logging.Config, *logging.LevelVar, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, nil, err
	}
	if debug {
		level = logging.LevelDebug
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, nil, err
	}
	lv := new(logging.LevelVar)
	lv.Set(level)
	return &logging.Config{
		Level:      lv,
		Format:     format,
		Output:     cfg.Logging.Output,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    int64(cfg.Logging.MaxSizeMB),
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   true,
		Component:  "imbridge",
	}, lv, nil
}
