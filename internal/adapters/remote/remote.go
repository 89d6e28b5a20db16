// Package remote opens the remote store selected by REMOTE_DRIVER.
package remote

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"

	"alquiler_floripa/internal/adapters/hosted"
	"alquiler_floripa/internal/domain"
	"alquiler_floripa/internal/shared"
	"alquiler_floripa/internal/storage/memtable"
	"alquiler_floripa/internal/storage/sqlrepo"
)

// Store bundles one table per entity plus the probe target and, for the hosted backend, the
// image bucket. Objects is nil when the driver has no object storage.
type Store struct {
	Properties    domain.RemoteTable[domain.Property]
	Banners       domain.RemoteTable[domain.Banner]
	Events        domain.RemoteTable[domain.Event]
	Neighborhoods domain.RemoteTable[domain.Neighborhood]
	Pinger        domain.Pinger
	Objects       domain.ObjectStore

	closeFn func() error
}

func (s *Store) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

func Open(cfg shared.Config) (*Store, error) {
	switch cfg.RemoteDriver {
	case "rest":
		c, err := hosted.New(cfg.RemoteURL, cfg.RemoteKey, cfg.RemoteRPS)
		if err != nil {
			return nil, err
		}
		return &Store{
			Properties:    hosted.NewTable[domain.Property](c, domain.Properties),
			Banners:       hosted.NewTable[domain.Banner](c, domain.Banners),
			Events:        hosted.NewTable[domain.Event](c, domain.Events),
			Neighborhoods: hosted.NewTable[domain.Neighborhood](c, domain.Neighborhoods),
			Pinger:        c,
			Objects:       hosted.NewBucket(c, cfg.ImageBucket),
		}, nil

	case "mysql", "postgres":
		return openSQL(cfg)

	case "memory":
		return &Store{
			Properties:    memtable.New[domain.Property](),
			Banners:       memtable.New[domain.Banner](),
			Events:        memtable.New[domain.Event](),
			Neighborhoods: memtable.New[domain.Neighborhood](),
			Pinger:        memtable.Pinger{},
		}, nil
	}
	return nil, fmt.Errorf("unknown REMOTE_DRIVER %q", cfg.RemoteDriver)
}

func openSQL(cfg shared.Config) (*Store, error) {
	d, driver, err := sqlrepo.ParseDialect(cfg.RemoteDriver)
	if err != nil {
		return nil, err
	}
	dsn := cfg.MySQLDSN
	if d == sqlrepo.Postgres {
		dsn = cfg.PostgresDSN
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ProbeTimeout)
	defer cancel()
	// not fatal: writes fall back to the local mirror
	if err := db.PingContext(ctx); err != nil {
		log.Warn().Err(err).Str("driver", driver).Msg("database ping failed")
	} else {
		log.Info().Str("driver", driver).Msg("database connection ok")
	}

	s := &Store{Pinger: sqlrepo.Pinger{DB: db}, closeFn: db.Close}
	if s.Properties, err = sqlrepo.NewTable[domain.Property](db, d, domain.Properties); err != nil {
		return nil, err
	}
	if s.Banners, err = sqlrepo.NewTable[domain.Banner](db, d, domain.Banners); err != nil {
		return nil, err
	}
	if s.Events, err = sqlrepo.NewTable[domain.Event](db, d, domain.Events); err != nil {
		return nil, err
	}
	if s.Neighborhoods, err = sqlrepo.NewTable[domain.Neighborhood](db, d, domain.Neighborhoods); err != nil {
		return nil, err
	}
	return s, nil
}
