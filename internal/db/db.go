package db

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"payment-reconciler/migrations"
)

// RunMigrations applies the embedded goose migrations.
func RunMigrations(connStr string) error {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return errors.Wrap(err, "open migration connection")
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	if err := goose.Up(db, "."); err != nil {
		return errors.Wrap(err, "apply migrations")
	}
	return nil
}

func GetPool(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	dbpool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, errors.Wrap(err, "create pool")
	}
	if err := dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	return dbpool, nil
}
