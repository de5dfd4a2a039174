package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"opsboard/internal/tables"
)

// IsPostgres reports whether dsn addresses a Postgres server.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open connects to dsn and returns a table client for it. Postgres URLs use
// the pgx driver; anything else is treated as a SQLite path.
func Open(dsn string) (*tables.Client, error) {
	if IsPostgres(dsn) {
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		return tables.New(db, "pgx"), nil
	}

	if dsn == ":memory:" {
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
		return tables.New(db, "sqlite"), nil
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", dsn+sep+"_pragma=busy_timeout(10000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	return tables.New(db, "sqlite"), nil
}

// Backend holds the two credential tiers. Public is subject to row-level
// security; Service bypasses it and carries every write.
type Backend struct {
	Public  *tables.Client
	Service *tables.Client
	log     *zap.Logger
}

// Connect opens both handles. An empty serviceDSN reuses the public handle.
func Connect(publicDSN, serviceDSN string, log *zap.Logger) (*Backend, error) {
	pub, err := Open(publicDSN)
	if err != nil {
		return nil, err
	}
	b := &Backend{Public: pub, Service: pub, log: log}
	if serviceDSN != "" && serviceDSN != publicDSN {
		svc, err := Open(serviceDSN)
		if err != nil {
			pub.DB().Close()
			return nil, err
		}
		b.Service = svc
	} else {
		log.Warn("no service-role backend configured; writes use the public handle")
	}
	return b, nil
}

// NewBackend wraps already-open clients; used by tests.
func NewBackend(public, service *tables.Client, log *zap.Logger) *Backend {
	if service == nil {
		service = public
	}
	return &Backend{Public: public, Service: service, log: log}
}

// Close releases both handles.
func (b *Backend) Close() error {
	err := b.Public.DB().Close()
	if b.Service != b.Public {
		if serr := b.Service.DB().Close(); err == nil {
			err = serr
		}
	}
	return err
}

// Logger returns the backend's logger.
func (b *Backend) Logger() *zap.Logger { return b.log }

// Ping checks both handles.
func (b *Backend) Ping(ctx context.Context) error {
	if err := b.Public.DB().PingContext(ctx); err != nil {
		return fmt.Errorf("public backend: %w", err)
	}
	if err := b.Service.DB().PingContext(ctx); err != nil {
		return fmt.Errorf("service backend: %w", err)
	}
	return nil
}
