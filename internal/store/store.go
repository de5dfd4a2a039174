// Package store is the data access layer: typed repositories over the
// table client. Reads go through the public backend handle and writes
// through the service-role handle.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"opsboard/internal/cache"
	"opsboard/internal/database"
	"opsboard/internal/reconcile"
	"opsboard/internal/rollup"
	"opsboard/internal/tables"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("not found")

// writeBatchSize bounds the rows sent in one upsert.
const writeBatchSize = 50

// Store exposes the dashboard's entities.
type Store struct {
	db    *database.Backend
	cache *cache.Cache
	log   *zap.Logger

	// CapacityHours is the weekly capacity used for work-center utilization.
	CapacityHours float64
	// Now is stubbed in tests.
	Now func() time.Time
}

// New builds a store. c may be nil to disable memoization.
func New(b *database.Backend, c *cache.Cache, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		db:            b,
		cache:         c,
		log:           log,
		CapacityHours: rollup.DefaultCapacityHours,
		Now:           time.Now,
	}
}

func (s *Store) read() *tables.Client  { return s.db.Public }
func (s *Store) write() *tables.Client { return s.db.Service }

// Ping checks both backend handles.
func (s *Store) Ping(ctx context.Context) error { return s.db.Ping(ctx) }

func (s *Store) now() string { return s.Now().UTC().Format(time.RFC3339) }

func (s *Store) invalidate() { s.cache.Invalidate() }

func cacheGet[T any](s *Store, key string, load func() (T, error)) (T, error) {
	return cache.Get(s.cache, key, load)
}

// selectRows reads a table, treating a missing table as empty. The warning
// is the only trace: callers render an empty state.
func (s *Store) selectRows(ctx context.Context, table string, q tables.Query) ([]tables.Row, error) {
	rows, err := s.read().Select(ctx, table, q)
	if errors.Is(err, tables.ErrTableMissing) {
		s.log.Warn("table missing; returning empty result", zap.String("table", table), zap.Error(err))
		return nil, nil
	}
	return rows, err
}

// upsertBatched writes rows in groups of writeBatchSize.
func (s *Store) upsertBatched(ctx context.Context, table, key string, rows []tables.Row) error {
	for start := 0; start < len(rows); start += writeBatchSize {
		end := min(start+writeBatchSize, len(rows))
		if _, err := s.write().Upsert(ctx, table, key, rows[start:end]...); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of rows in table, 0 if it is missing.
func (s *Store) Count(ctx context.Context, table string) (int, error) {
	n, err := s.read().Count(ctx, table)
	if errors.Is(err, tables.ErrTableMissing) {
		return 0, nil
	}
	return n, err
}

// Clear deletes every row of table whose key column is non-empty.
func (s *Store) Clear(ctx context.Context, table, key string) (int64, error) {
	defer s.invalidate()
	return s.write().Delete(ctx, table, tables.Or(tables.Neq(key, ""), tables.IsNull(key)))
}

func newID() string { return uuid.NewString() }

func str(r tables.Row, col string) string { return reconcile.Text(r, col) }

func integer(r tables.Row, col string) int { return int(reconcile.Number(r, col)) }

func dec(r tables.Row, col string) decimal.Decimal {
	v, ok := r[col]
	if !ok || v == nil {
		return decimal.Zero
	}
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t)
	case int64:
		return decimal.NewFromInt(t)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(fmt.Sprint(v)))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func strPtr(r tables.Row, col string) *string {
	s := str(r, col)
	if s == "" {
		return nil
	}
	return &s
}

func boolean(r tables.Row, col string) bool {
	switch t := r[col].(type) {
	case bool:
		return t
	case nil:
		return false
	}
	return reconcile.Number(r, col) != 0
}
