package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/raptodb/raptodb/internal/infra/buildinfo"
	"github.com/raptodb/raptodb/internal/raptoconfig"
	"github.com/raptodb/raptodb/internal/raptolog"
	"github.com/raptodb/raptodb/internal/raptometrics"
	"github.com/raptodb/raptodb/internal/raptoserver"
	"github.com/raptodb/raptodb/internal/resolver"
	"github.com/raptodb/raptodb/internal/snapshot"
	"github.com/raptodb/raptodb/internal/store"
)

func main() {
	app := &cli.App{
		Name:    "raptodb",
		Usage:   "Rapto in-memory key-value database",
		Version: buildinfo.String(),
		Commands: []*cli.Command{
			serverCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "start the raptodb server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Required: true, Usage: "database name"},
			&cli.StringFlag{Name: "addr", Usage: "listen address (default: random high port, or 127.0.0.1:8443 with --tls)"},
			&cli.StringFlag{Name: "db-path", Value: ".", Usage: "directory holding the .raptodb storage file"},
			&cli.StringFlag{Name: "verbose", Value: raptoconfig.VerboseWarnings, Usage: "silent|warnings|noisy"},
			&cli.BoolFlag{Name: "tls", Usage: "enable the X25519 handshake and ChaCha20-Poly1305 session cipher"},
			&cli.StringFlag{Name: "auth", Usage: "require this password after the handshake (implies --tls)"},
			&cli.Uint64Flag{Name: "db-size", Usage: "capacity in bytes (required unless the storage file already exists)"},
			&cli.Int64Flag{Name: "save-delay", Usage: "autosnap: minimum seconds between saves"},
			&cli.Int64Flag{Name: "save-count", Usage: "autosnap: minimum modifications between saves (clamped to >=1)"},
		},
		Action: runServer,
	}
}

func runServer(c *cli.Context) error {
	cfg := raptoconfig.Default()
	cfg.Name = c.String("name")
	cfg.Addr = c.String("addr")
	cfg.DBPath = c.String("db-path")
	cfg.Verbose = c.String("verbose")
	cfg.TLS = c.Bool("tls")
	cfg.Auth = c.String("auth")
	cfg.DBSize = c.Uint64("db-size")
	cfg.SaveDelaySeconds = c.Int64("save-delay")
	cfg.SaveCount = c.Int64("save-count")
	autosnapEnabled := cfg.SaveDelaySeconds > 0 || cfg.SaveCount > 0

	if err := cfg.Verify(); err != nil {
		return cli.Exit(err, 1)
	}
	cfg.ResolveAddr()

	logger := raptolog.New(raptolog.Config{Level: cfg.Verbose, Format: "text", Output: os.Stderr})
	raptolog.SetDefault(logger)
	logger.Info("starting raptodb", "name", cfg.Name, "addr", cfg.Addr, "config", cfg.Sanitize())

	st := store.New(cfg.DBSize)
	metrics := raptometrics.New()
	modCounter := &snapshot.Counter{}

	path := cfg.StoragePath()
	if err := loadSnapshot(path, st, logger); err != nil {
		return cli.Exit(fmt.Errorf("load failed: %w", err), 1)
	}
	st.Prefetch()

	dispatcher := &resolver.Dispatcher{
		Store:      st,
		Metrics:    metrics,
		ModCounter: modCounter,
		ServerName: cfg.Name,
		Capacity:   cfg.DBSize,
	}
	var saveMu sync.Mutex
	dispatcher.Save = func() error {
		saveMu.Lock()
		defer saveMu.Unlock()
		return saveSnapshot(path, st)
	}

	srv := raptoserver.New(cfg, dispatcher, logger)

	if autosnapEnabled {
		srv.AutoSnap = snapshot.NewAutoSnap(
			modCounter,
			time.Duration(cfg.SaveDelaySeconds)*time.Second,
			cfg.SaveCount,
			snapshot.SaveFunc(dispatcher.Save),
			func(err error) { logger.Error("autosnap failed", "error", err) },
		)
	}

	logger.Info("server started", "addr", cfg.Addr)
	if err := srv.Run(); err != nil {
		return cli.Exit(err, 1)
	}
	logger.Info("server stopped gracefully")
	return nil
}

func loadSnapshot(path string, st *store.Store, logger raptolog.Logger) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := snapshot.Load(f, st)
	if err != nil {
		return err
	}
	logger.Info("loaded snapshot", "path", path, "objects", n)
	return nil
}

func saveSnapshot(path string, st *store.Store) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := snapshot.Save(f, st); err != nil {
		return err
	}
	return f.Sync()
}
