// Package offline owns the device-local durable store backing the event
// cache and the pending action queue. It is sqlite on disk so snapshots and
// queued actions survive process restarts.
package offline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// ErrStorageUnavailable reports that the local durable store could not be
// opened. Callers must degrade to connected-only operation, not fail.
var ErrStorageUnavailable = errors.New("offline storage unavailable")

// Open opens (creating if needed) the sqlite store at path. A DSN such as
// "file:checkin.db" or an in-memory DSN for tests is accepted as-is.
func Open(ctx context.Context, path string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	// sqlite handles one writer; more connections just contend.
	sqldb.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqldb.PingContext(pingCtx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}
