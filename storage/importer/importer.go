/*
Copyright (C) 2024-2026  Carl-Philip Hänsch

    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU General Public License as published by
    the Free Software Foundation, either version 3 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU General Public License
    along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package importer bulk-loads rows from an external relational database
// into the core as Hash values, one row per key. It is grounded on the
// teacher's storage.mysql_import.go bulk-copy routine, generalized from
// "rows become table inserts" to "rows become keyed hashes" since this
// module has no relational table layer of its own.
package importer

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/launix-de/zdb/internal/value"
	"github.com/launix-de/zdb/storage"
)

// Source describes where to pull rows from and how to turn each row
// into a key, mirroring the source/target parameters of the teacher's
// mysql_import declaration.
type Source struct {
	Table string

	// KeyPrefix is prepended to every generated key as "prefix:rest".
	KeyPrefix string

	// KeyColumn names the column supplying the key's row-specific part.
	// If empty, rows are keyed by their 0-based offset in the result set.
	KeyColumn string
}

// Result reports how many rows were imported.
type Result struct {
	Rows int64
}

func rowKey(src Source, cols []string, row []any, offset int64) (string, error) {
	if src.KeyColumn == "" {
		return fmt.Sprintf("%s:%d", src.KeyPrefix, offset), nil
	}
	for i, c := range cols {
		if c == src.KeyColumn {
			return fmt.Sprintf("%s:%v", src.KeyPrefix, row[i]), nil
		}
	}
	return "", fmt.Errorf("importer: key column %q not found in result columns", src.KeyColumn)
}

// importRows drains rows into the store as Hash values, one per row,
// batching nothing extra beyond what database/sql already buffers —
// the teacher's own mysqlCopyData loop is likewise a plain row-at-a-time
// scan, relying on the driver's internal buffering for throughput.
func importRows(ctx context.Context, store storage.Storage, src Source, rows *sql.Rows) (Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return Result{}, err
	}

	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}

	var res Result
	for rows.Next() {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}
		if err := rows.Scan(ptrs...); err != nil {
			return res, err
		}

		key, err := rowKey(src, cols, raw, res.Rows)
		if err != nil {
			return res, err
		}

		hv := value.NewHash()
		h, _ := hv.AsHash()
		for i, c := range cols {
			h.Insert(c, sqlToValue(raw[i]))
		}
		if err := store.Set(key, hv); err != nil {
			return res, err
		}
		res.Rows++
	}
	return res, rows.Err()
}

// sqlToValue converts a database/sql scan target into a Value, the
// import-side analogue of the teacher's mysqlToScmer.
func sqlToValue(v any) value.Value {
	switch x := v.(type) {
	case nil:
		return value.NewNull()
	case int64:
		return value.NewInt(x)
	case float64:
		return value.NewFloat(x)
	case bool:
		return value.NewBool(x)
	case []byte:
		return value.NewStr(string(x))
	case string:
		return value.NewStr(x)
	case time.Time:
		return value.NewStr(x.Format("2006-01-02 15:04:05"))
	default:
		return value.NewStr(fmt.Sprint(v))
	}
}

func quoteIdent(s string) string {
	return "`" + s + "`"
}

func formatDSNPort(port int) string {
	return strconv.Itoa(port)
}
