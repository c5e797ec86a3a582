package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/skillcast/skillcast/internal/server/config"
	"github.com/skillcast/skillcast/internal/server/handlers"
	"github.com/skillcast/skillcast/internal/server/storage"
	"github.com/skillcast/skillcast/internal/server/storage/boltdb"
	"github.com/skillcast/skillcast/internal/server/storage/postgres"
	"github.com/skillcast/skillcast/internal/server/storage/redis"
	"github.com/skillcast/skillcast/internal/server/storage/sqlite"
)

// sqlStore реализует и хранилище пользователей, и реестр токенов
type sqlStore interface {
	storage.UserStorage
	storage.TokenStorage
	io.Closer
}

// Stores holds the opened credential store and refresh ledger backends.
type Stores struct {
	Users   storage.UserStorage
	Tokens  storage.TokenStorage
	Pingers []handlers.Pinger
	closers []io.Closer
}

// OpenStores opens the backends selected by cfg.DBDriver and cfg.LedgerDriver.
func OpenStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Stores, error) {
	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s := &Stores{
		Users:   db,
		Pingers: []handlers.Pinger{db},
		closers: []io.Closer{db},
	}

	switch cfg.LedgerDriver {
	case config.LedgerDriverSQL:
		s.Tokens = db
	case config.LedgerDriverRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ledger := redis.New(client, redis.DefaultPrefix)
		if err := ledger.Ping(ctx); err != nil {
			_ = ledger.Close()
			_ = s.Close()
			return nil, err
		}
		s.Tokens = ledger
		s.Pingers = append(s.Pingers, ledger)
		s.closers = append(s.closers, ledger)
	case config.LedgerDriverBolt:
		ledger, err := boltdb.New(ctx, cfg.BoltPath)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.Tokens = ledger
		s.Pingers = append(s.Pingers, ledger)
		s.closers = append(s.closers, ledger)
	default:
		_ = s.Close()
		return nil, fmt.Errorf("unknown ledger driver %q", cfg.LedgerDriver)
	}

	logger.InfoContext(ctx, "storage opened",
		slog.String("db_driver", cfg.DBDriver),
		slog.String("ledger_driver", cfg.LedgerDriver))

	return s, nil
}

func openDB(ctx context.Context, cfg config.Config) (sqlStore, error) {
	switch cfg.DBDriver {
	case config.DBDriverSQLite:
		db, err := sqlite.New(ctx, cfg.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		return db, nil
	case config.DBDriverPostgres:
		db, err := postgres.New(ctx, cfg.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DBDriver)
	}
}

// Close closes every backend in reverse order of opening.
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
