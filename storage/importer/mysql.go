package importer

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/launix-de/zdb/storage"
)

// FromMySQL opens a MySQL connection and imports every row of src.Table
// into store, following the connection-setup pattern (parseTime,
// bounded pool, ping-on-open) from the teacher's openMySQL helper.
func FromMySQL(ctx context.Context, store storage.Storage, host string, port int, user, password, database string, src Source) (Result, error) {
	dsn := user
	if password != "" {
		dsn += ":" + password
	}
	dsn += "@tcp(" + host + ":" + formatDSNPort(port) + ")/" + database + "?parseTime=true&interpolateParams=true"

	db, err := sql.Open("mysql", dsn)
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

	query := "SELECT * FROM " + quoteIdent(src.Table)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return Result{}, err
	}
	defer rows.Close()

	return importRows(ctx, store, src, rows)
}
