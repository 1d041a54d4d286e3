// Copyright 2026 The modelgate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package main provides the entry point for the modelgate server.
// The server owns one principal's model selection, enforces the organization
// access policy over it and exposes it to presentation adapters over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/traylinx/modelgate/internal/api"
	"github.com/traylinx/modelgate/internal/buildinfo"
	"github.com/traylinx/modelgate/internal/config"
	"github.com/traylinx/modelgate/internal/constant"
	"github.com/traylinx/modelgate/internal/hooks"
	"github.com/traylinx/modelgate/internal/logging"
	"github.com/traylinx/modelgate/internal/registry"
	"github.com/traylinx/modelgate/internal/secret"
	"github.com/traylinx/modelgate/internal/session"
	"github.com/traylinx/modelgate/internal/store"
	"github.com/traylinx/modelgate/internal/util"
	"github.com/traylinx/modelgate/internal/watcher"
	"github.com/traylinx/modelgate/internal/watcher/diff"
	"github.com/traylinx/modelgate/sdk/access"
)

var (
	Version           = "dev"
	Commit            = "none"
	BuildDate         = "unknown"
	DefaultConfigPath = ""
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	fmt.Printf("modelgate Version: %s, Commit: %s, BuiltAt: %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)

	var configPath string
	var stateDir string
	var noWatch bool
	flag.StringVar(&configPath, "config", DefaultConfigPath, "Configure File Path")
	flag.StringVar(&stateDir, "state-dir", "", "State directory (overrides config and MODELGATE_STATE_DIR)")
	flag.BoolVar(&noWatch, "no-watch", false, "Disable config hot reload")
	flag.Parse()

	wd, err := os.Getwd()
	if err != nil {
		log.Errorf("failed to get working directory: %v", err)
		os.Exit(1)
	}

	// Load environment variables from .env if present.
	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	if configPath == "" {
		configPath = secret.GetEnv("MODELGATE_CONFIG", filepath.Join(wd, "config.yaml"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, options{configPath: configPath, stateDir: stateDir, watch: !noWatch}); err != nil {
		log.Errorf("modelgate: %v", err)
		logging.Close()
		os.Exit(1)
	}
	logging.Close()
}

type options struct {
	configPath string
	stateDir   string
	watch      bool
}

// applyEnvOverrides lets deployments keep secrets out of the config file.
func applyEnvOverrides(cfg *config.Config) {
	if v, ok := secret.PersistenceDSN(); ok {
		cfg.Persistence.DSN = v
	}
	if v, ok := secret.Lookup("MODELGATE_PERSISTENCE_BACKEND"); ok {
		cfg.Persistence.Backend = strings.ToLower(v)
	}
	if v, ok := secret.Lookup("MODELGATE_PRINCIPAL"); ok {
		cfg.Principal = v
	}
	if v, ok := secret.ManagementKey(); ok {
		cfg.RemoteManagement.SecretKey = v
	}
}

func factsFromConfig(cfg *config.Config) access.Facts {
	return access.Facts{
		Roles:       cfg.Access.Roles,
		Permissions: access.NewPermissionSet(cfg.Access.Permissions...),
	}
}

func accessChanged(oldCfg, newCfg *config.Config) bool {
	return diff.SummarizeList(oldCfg.Access.Roles) != diff.SummarizeList(newCfg.Access.Roles) ||
		diff.SummarizeList(oldCfg.Access.Permissions) != diff.SummarizeList(newCfg.Access.Permissions)
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.LoadConfigOptional(opts.configPath, true)
	if err != nil {
		return err
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	logging.SetDebug(cfg.Debug)

	dir := opts.stateDir
	if dir == "" {
		dir = cfg.StateDir
	}
	if dir == "" {
		dir = os.Getenv(util.EnvStateDir)
	}
	sb, err := util.NewStateBoxAt(dir)
	if err != nil {
		return err
	}
	if !sb.IsReadOnly() {
		if err := sb.EnsureDir(sb.RootPath()); err != nil {
			return fmt.Errorf("failed to prepare state directory: %w", err)
		}
		if _, err := util.HardenPermissions(sb); err != nil {
			log.Warnf("permission hardening failed: %v", err)
		}
	}

	logPath, err := logging.ConfigureLogOutput(sb, cfg.LoggingToFile, cfg.LogsMaxSizeMB)
	if err != nil {
		return err
	}
	if logPath != "" {
		fmt.Printf("Logging to %s\n", logPath)
	}

	catalog, err := registry.Load(cfg.CatalogPath(opts.configPath))
	if err != nil {
		return err
	}

	backend, err := store.Open(ctx, cfg.StoreOptions(), sb)
	if err != nil {
		return err
	}
	defer func() {
		if errClose := backend.Close(); errClose != nil {
			log.Warnf("failed to close preference store: %v", errClose)
		}
	}()

	bus := hooks.NewEventBus()
	defer bus.Shutdown()
	bus.Subscribe(hooks.EventPersistenceFailed, func(evt *hooks.EventContext) {
		log.WithField("principal", evt.Principal).Debugf("persistence failure recorded for %s", evt.Model)
	})

	sess := session.New(ctx, session.Options{
		Principal: cfg.Principal,
		Catalog:   catalog,
		Policy:    cfg.Policy,
		Persister: store.NewSlot(backend, constant.SelectionKey),
		Bus:       bus,
		Facts:     factsFromConfig(cfg),
	})
	defer sess.Close()

	srv := api.NewServer(cfg, sess, sb)

	if opts.watch {
		if _, statErr := os.Stat(opts.configPath); statErr == nil {
			prev := cfg
			w, errWatch := watcher.NewWatcher(opts.configPath, func(next *config.Config) {
				newCatalog, errLoad := registry.Load(next.CatalogPath(opts.configPath))
				if errLoad != nil {
					log.Errorf("catalog reload failed, keeping previous policy: %v", errLoad)
					return
				}
				logging.SetDebug(next.Debug)
				var facts *access.Facts
				if accessChanged(prev, next) {
					f := factsFromConfig(next)
					facts = &f
				}
				sess.Reload(newCatalog, next.Policy, facts)
				srv.UpdateConfig(next)
				prev = next
			})
			if errWatch != nil {
				return errWatch
			}
			w.SetPrepare(applyEnvOverrides)
			w.SetConfig(cfg)
			if errStart := w.Start(ctx); errStart != nil {
				return errStart
			}
			defer func() { _ = w.Stop() }()
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
