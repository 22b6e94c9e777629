package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/Strob0t/TaskForge/internal/adapter/postgres"
	"github.com/Strob0t/TaskForge/internal/adapter/sqlite"
	"github.com/Strob0t/TaskForge/internal/config"
	"github.com/Strob0t/TaskForge/internal/domain"
	"github.com/Strob0t/TaskForge/internal/domain/history"
	"github.com/Strob0t/TaskForge/internal/logger"
	"github.com/Strob0t/TaskForge/internal/port/database"
	"github.com/Strob0t/TaskForge/internal/port/directory"
	"github.com/Strob0t/TaskForge/internal/service"
)

// commandContext carries the persistent flags and lazily opened resources
// shared by all subcommands.
type commandContext struct {
	configPath string
	tenantID   string
	actorID    string
	output     string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	logCloser logger.Closer
	closers   []func()
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		path := strings.TrimSpace(c.configPath)
		if path == "" {
			path = config.DefaultConfigFile
		}
		c.config, c.configErr = config.LoadFrom(path)
	})
	return c.config, c.configErr
}

// newLogger logs to stderr so command output on stdout stays parseable.
func (c *commandContext) newLogger(cfg *config.Config, cmd *cobra.Command) (*slog.Logger, logger.Closer) {
	return logger.NewWithWriter(cfg.Logging, cmd.ErrOrStderr())
}

func (c *commandContext) onClose(fn func()) {
	c.closers = append(c.closers, fn)
}

func (c *commandContext) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
	if c.logCloser != nil {
		c.logCloser.Close()
		c.logCloser = nil
	}
}

// backend is an open store together with its directory writer.
type backend struct {
	store     database.Store
	registrar directory.Registrar
}

// openBackend opens the configured store. PostgreSQL schemas are migrated
// only when migrate is set; SQLite databases always migrate on open.
func (c *commandContext) openBackend(ctx context.Context, migrate bool) (*backend, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	switch cfg.Storage.Driver {
	case "sqlite":
		store, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		c.onClose(func() { _ = store.Close() })
		slog.Debug("sqlite opened", "path", cfg.Storage.SQLitePath)
		return &backend{store: store, registrar: store}, nil
	default:
		if migrate {
			if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
				return nil, fmt.Errorf("migrations: %w", err)
			}
			slog.Info("migrations applied")
		}
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		c.onClose(pool.Close)
		store := postgres.NewStore(pool)
		return &backend{store: store, registrar: store}, nil
	}
}

// engine opens the store and wires an engine without notification sinks.
func (c *commandContext) engine(ctx context.Context) (*service.Engine, error) {
	b, err := c.openBackend(ctx, false)
	if err != nil {
		return nil, err
	}
	cfg, _ := c.ensureConfig()
	return service.NewEngine(b.store, service.WithConfig(cfg.Engine)), nil
}

func (c *commandContext) tenant() (string, error) {
	t := strings.TrimSpace(c.tenantID)
	if t == "" {
		t = os.Getenv("TASKFORGE_TENANT")
	}
	if t == "" {
		return "", domain.Validationf("--tenant is required")
	}
	return t, nil
}

func (c *commandContext) caller() (service.Caller, error) {
	tenantID, err := c.tenant()
	if err != nil {
		return service.Caller{}, err
	}
	actor := strings.TrimSpace(c.actorID)
	if actor == "" {
		actor = os.Getenv("USER")
	}
	if actor == "" {
		actor = "cli"
	}
	return service.Caller{TenantID: tenantID, Actor: history.Actor{Type: history.ActorUser, ID: actor}}, nil
}
