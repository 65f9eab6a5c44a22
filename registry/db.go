// Package registry persists loaded contract ABI documents in Postgres
// and serves them back through a short-lived in-memory cache, adapted
// from the teacher's contract-interface repository.
package registry

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Connect opens the Postgres connection pool backing the registry,
// retrying a handful of times while the database comes up.
func Connect(dsn string) (*bun.DB, error) {
	sqlDB := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn), pgdriver.WithWriteTimeout(time.Minute)))
	db := bun.NewDB(sqlDB, pgdialect.New())

	var err error
	for i := 0; i < 8; i++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, errors.Wrap(err, "cannot ping pg")
	}
	return db, nil
}

// CreateTables idempotently creates the registry's backing table.
func CreateTables(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model(&ContractDocument{}).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "contract documents pg create table")
	}
	return nil
}
