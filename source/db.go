// Package source reads whole tables from the operational MySQL database.
package source

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/xerrors"

	"go.plantopia.dev/etl/frame"
)

// DB is a connection to the source database.
type DB struct {
	conn *sqlx.DB
}

// Open connects to MySQL and verifies the connection.
func Open(ctx context.Context, c Config) (*DB, error) {
	log.Ctx(ctx).Info().Str("dsn", c.Redacted()).Msg("connecting to source database")

	conn, err := sqlx.ConnectContext(ctx, "mysql", c.DSN())
	if err != nil {
		return nil, xerrors.Errorf("failed to connect to %s:%d/%s: %w", c.Host, c.Port, c.Database, err)
	}

	return &DB{conn: conn}, nil
}

// NewDB wraps an existing connection.
func NewDB(conn *sqlx.DB) *DB {
	return &DB{conn: conn}
}

// Close closes the connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// ListTables returns every table name in the database.
func (db *DB) ListTables(ctx context.Context) ([]string, error) {
	var names []string
	if err := db.conn.SelectContext(ctx, &names, "SHOW TABLES"); err != nil {
		return nil, xerrors.Errorf("failed to list tables: %w", err)
	}

	log.Ctx(ctx).Debug().Strs("tables", names).Msg("listed source tables")

	return names, nil
}

// ReadTable materializes a whole table. Column kinds come from the column
// database types when known, otherwise they are inferred from the values.
func (db *DB) ReadTable(ctx context.Context, name string) (*frame.Table, error) {
	rows, err := db.conn.QueryxContext(ctx, "SELECT * FROM "+quote(name))
	if err != nil {
		return nil, xerrors.Errorf("failed to query %s: %w", name, err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, xerrors.Errorf("failed to get column types of %s: %w", name, err)
	}

	var raw [][]any
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, xerrors.Errorf("failed to scan %s: %w", name, err)
		}
		raw = append(raw, values)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Errorf("failed to read %s: %w", name, err)
	}

	fields := make([]frame.Field, len(types))
	for i, ct := range types {
		k, ok := kindOf(ct)
		if !ok {
			k = frame.InferKind(lo.Map(raw, func(r []any, _ int) string { return frame.FormatValue(r[i]) }))
		}
		fields[i] = frame.Field{Name: ct.Name(), Kind: k}
	}

	out := make([]frame.Row, len(raw))
	for r, values := range raw {
		row := make(frame.Row, len(values))
		for i, v := range values {
			if row[i], err = frame.Coerce(fields[i].Kind, v); err != nil {
				return nil, xerrors.Errorf("failed to convert %s.%s at row %d: %w", name, fields[i].Name, r, err)
			}
		}
		out[r] = row
	}

	log.Ctx(ctx).Info().Str("table", name).Int("rows", len(out)).Msg("extracted table")

	return frame.New(name, fields, out), nil
}

func quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func kindOf(ct *sql.ColumnType) (frame.Kind, bool) {
	t := strings.TrimPrefix(strings.ToUpper(ct.DatabaseTypeName()), "UNSIGNED ")
	switch t {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT", "YEAR":
		return frame.KindInt, true
	case "DECIMAL", "FLOAT", "DOUBLE":
		return frame.KindFloat, true
	case "DATE", "DATETIME", "TIMESTAMP":
		return frame.KindTime, true
	case "CHAR", "VARCHAR", "TEXT", "TINYTEXT", "MEDIUMTEXT", "LONGTEXT", "ENUM", "SET", "JSON", "TIME":
		return frame.KindString, true
	}
	return frame.KindString, false
}
