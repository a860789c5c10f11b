package importer

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/launix-de/zdb/storage"
)

// FromPostgres opens a PostgreSQL connection via lib/pq and imports
// every row of src.Table into store, mirroring FromMySQL's shape with
// lib/pq's DSN conventions in place of go-sql-driver/mysql's.
func FromPostgres(ctx context.Context, store storage.Storage, host string, port int, user, password, database string, sslmode string, src Source) (Result, error) {
	if sslmode == "" {
		sslmode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, database, sslmode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return Result{}, err
	}
	defer db.Close()
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(8)
	if err := db.PingContext(ctx); err != nil {
		return Result{}, err
	}

	query := fmt.Sprintf("SELECT * FROM %q", src.Table)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return Result{}, err
	}
	defer rows.Close()

	return importRows(ctx, store, src, rows)
}
