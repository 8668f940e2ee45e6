package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/apanic-go/internal/core/apanic"
	"github.com/yndnr/apanic-go/internal/infra/buildinfo"
	"github.com/yndnr/apanic-go/internal/infra/confloader"
	"github.com/yndnr/apanic-go/internal/infra/diag"
	"github.com/yndnr/apanic-go/internal/infra/shutdown"
	"github.com/yndnr/apanic-go/internal/infra/tlsroots"
	"github.com/yndnr/apanic-go/internal/server/config"
	"github.com/yndnr/apanic-go/internal/server/httpserver"
	"github.com/yndnr/apanic-go/internal/server/localserver"
	"github.com/yndnr/apanic-go/internal/storage/blockdev"
	"github.com/yndnr/apanic-go/internal/storage/memsource"
	"github.com/yndnr/apanic-go/internal/storage/partition"
	"github.com/yndnr/apanic-go/internal/telemetry/logbuf"
	"github.com/yndnr/apanic-go/internal/telemetry/logger"
	"github.com/yndnr/apanic-go/internal/telemetry/metric"
)

func main() {
	app := &cli.App{
		Name:    "apanic-server",
		Usage:   "Capture and serve crash records from a raw partition",
		Version: buildinfo.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				EnvVars: []string{"APANIC_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "check-config",
				Usage: "Load and verify the configuration, then print it with secrets masked",
				Action: func(c *cli.Context) error {
					cfg, _, err := loadConfig(c.String("config"))
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "%+v\n", *config.Sanitize(cfg))
					return nil
				},
			},
		},
		Action: func(c *cli.Context) error {
			return run(c.Context, c.String("config"))
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configFile string) error {
	cfg, loader, err := loadConfig(configFile)
	if err != nil {
		return err
	}

	diag.Harden()

	ring := logbuf.NewRing(cfg.Log.BufferSize)
	consoles := logbuf.NewSwitch()
	log, err := logger.New(logger.Config{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		Output:   os.Stderr,
		Ring:     ring,
		Consoles: consoles,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)
	slogLogger := logger.Slog(log)

	log.Info("starting apanic-server",
		"version", buildinfo.Version,
		"commit", buildinfo.Get().Commit,
		"config", configFile)
	if total, avail, err := diag.HostMemory(ctx); err == nil {
		log.Info("host memory", "total_bytes", total, "available_bytes", avail)
	}

	metrics := metric.NewRegistry()

	opts := []apanic.Option{
		apanic.WithLogger(log),
		apanic.WithLogSource(ring),
		apanic.WithConsoles(consoles),
		apanic.WithTaskDumper(diag.Stacks{}),
		apanic.WithObserver(metrics),
	}
	var heap *memsource.HeapDump
	if cfg.Partition.MemdumpEnabled {
		heap = memsource.NewHeapDump(cfg.Memdump.ScratchDir)
		opts = append(opts, apanic.WithMemorySource(heap))
	}

	engine := apanic.New(apanic.Config{
		CaptureLockTimeout:  cfg.Engine.CaptureLockTimeout,
		EraseMaxBytesPerSec: cfg.Engine.EraseMaxBytesPerSec,
	}, opts...)
	defer engine.Catch()

	metrics.MustRegister(metric.NewRecordCollector(func() map[string]int64 {
		sizes := make(map[string]int64)
		for _, s := range engine.Segments() {
			sizes[s.Name()] = s.Size()
		}
		return sizes
	}))

	parts := partitionSource(cfg, slogLogger)
	parts.Register(cfg.Partition.PanicLabel, engine)
	if cfg.Partition.MemdumpEnabled {
		parts.Register(cfg.Partition.MemdumpLabel, engine.SnapshotListener())
	}
	if err := parts.Start(); err != nil {
		return fmt.Errorf("start partition discovery: %w", err)
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	engine.Go(func() {
		engine.Run(runCtx)
	})

	shutdownHandler := shutdown.NewHandler(30*time.Second, shutdown.WithLogger(slogLogger))

	// Hooks run in reverse order of registration.
	shutdownHandler.OnShutdown("partitions", func(context.Context) error {
		cancelRun()
		if heap != nil {
			heap.Close()
		}
		return parts.Stop()
	})

	reload := func() error {
		fresh, err := reloadConfig(loader)
		if err != nil {
			return err
		}
		logger.SetLevel(fresh.Log.Level)
		log.Info("configuration reloaded", "log_level", fresh.Log.Level)
		return nil
	}

	if path := loader.FilePath(); path != "" {
		watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(slogLogger))
		if err != nil {
			return fmt.Errorf("config watcher: %w", err)
		}
		if err := watcher.Watch(path); err != nil {
			return fmt.Errorf("config watcher: %w", err)
		}
		watcher.OnChange(func(string) {
			if err := reload(); err != nil {
				log.Warn("configuration reload rejected", "error", err)
			}
		})
		watcher.StartAsync()
		shutdownHandler.OnShutdown("config-watcher", func(context.Context) error {
			return watcher.Stop()
		})
	}

	if err := startHTTP(cfg, engine, metrics, slogLogger, shutdownHandler); err != nil {
		return err
	}

	if cfg.Server.Local.Path != "" {
		local := localserver.New(cfg.Server.Local.Path, localserver.NewHandler(engine,
			localserver.WithLogger(slogLogger),
			localserver.WithTrigger(cfg.Debug.EnableTrigger),
			localserver.WithReload(reload),
			localserver.WithShutdown(shutdownHandler.Trigger),
		))
		if err := local.Listen(); err != nil {
			return fmt.Errorf("listen on %s: %w", cfg.Server.Local.Path, err)
		}
		engine.Go(func() {
			log.Info("local socket listening", "path", cfg.Server.Local.Path)
			if err := local.ListenAndServe(); err != nil {
				log.Error("local socket error", "error", err)
			}
		})
		shutdownHandler.OnShutdown("local", local.Shutdown)
	}

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from file and environment.
func loadConfig(configFile string) (*config.ServerConfig, *confloader.Loader, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	loader := confloader.NewLoader(opts...)

	if err := loader.Load(cfg); err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Verify(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, loader, nil
}

func reloadConfig(loader *confloader.Loader) (*config.ServerConfig, error) {
	cfg := config.Default()
	if err := loader.Reload(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// partitionSource returns RAM-backed partitions when ram_size is set and
// a by-name directory watcher otherwise.
func partitionSource(cfg *config.ServerConfig, log *slog.Logger) partition.Source {
	p := cfg.Partition
	if p.RAMSize > 0 {
		log.Warn("using RAM-backed partitions, records do not survive a restart", "size", p.RAMSize)
		parts := []blockdev.Partition{blockdev.NewMemory(p.PanicLabel, p.RAMSize)}
		if p.MemdumpEnabled {
			parts = append(parts, blockdev.NewMemory(p.MemdumpLabel, p.RAMSize))
		}
		return partition.NewStatic(parts...)
	}
	return partition.NewWatcher(p.Dir,
		partition.WithLogger(log),
		partition.WithOpenOptions(blockdev.Options{Sync: true}),
	)
}

func startHTTP(cfg *config.ServerConfig, engine *apanic.Engine, metrics *metric.Registry,
	log *slog.Logger, sh *shutdown.Handler) error {
	httpCfg := cfg.Server.HTTP
	if httpCfg.Addr == "" {
		return nil
	}

	routerCfg := httpserver.DefaultRouterConfig()
	routerCfg.Engine = engine
	routerCfg.Logger = log
	routerCfg.Metrics = metrics
	routerCfg.AuthToken = httpCfg.AuthToken
	routerCfg.EnableTrigger = cfg.Debug.EnableTrigger
	routerCfg.AllowCrash = cfg.Debug.AllowCrash

	srv := httpserver.New(httpCfg.Addr, httpserver.NewRouter(routerCfg))

	var keyPair *tlsroots.KeyPair
	if httpCfg.TLSCertFile != "" && httpCfg.TLSKeyFile != "" {
		var err error
		keyPair, err = tlsroots.LoadKeyPair(httpCfg.TLSCertFile, httpCfg.TLSKeyFile, tlsroots.WithLogger(log))
		if err != nil {
			return err
		}
		keyPair.WatchAsync()
	}

	engine.Go(func() {
		log.Info("HTTP server listening", "addr", httpCfg.Addr, "tls", keyPair != nil)

		var err error
		if keyPair != nil {
			err = srv.ListenAndServeTLSConfig(keyPair.ServerConfig())
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	})

	sh.OnShutdown("http", func(ctx context.Context) error {
		if keyPair != nil {
			keyPair.Stop()
		}
		return srv.Shutdown(ctx)
	})
	return nil
}
