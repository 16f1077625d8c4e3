package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	apperrors "emsinv/internal/errors"
	"emsinv/pkg/contracts/domain"
)

// dialect captures the SQL differences between the supported drivers
type dialect struct {
	name        string
	quote       func(string) string
	numericType string
	existsQuery string
	orderBy     string
	// transactionalDDL is false when CREATE and DROP commit implicitly
	transactionalDDL bool
}

const (
	stagingSuffix = "__staging"
	retiredSuffix = "__retired"
)

var (
	sqliteDialect = dialect{
		name:        "sqlite",
		quote:       func(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` },
		numericType: "REAL",
		existsQuery: `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name = ?`,
		orderBy:     " ORDER BY rowid",

		transactionalDDL: true,
	}
	mysqlDialect = dialect{
		name:        "mysql",
		quote:       func(s string) string { return "`" + strings.ReplaceAll(s, "`", "``") + "`" },
		numericType: "DOUBLE",
		existsQuery: `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?`,
	}
)

// SQLStore keeps tables in a relational database
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
}

// OpenSQL opens a SQLite file or a MySQL database
func OpenSQL(ctx context.Context, driver, dsn string, logger *slog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "store"), slog.String("driver", driver))

	var d dialect
	switch driver {
	case "sqlite":
		d = sqliteDialect
		if dsn == "" {
			return nil, apperrors.NewConfigError("sqlite store needs a database path", nil)
		}
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, apperrors.NewStorageError("create database directory", err)
		}
		logger = logger.With(slog.String("database", dsn))
	case "mysql":
		d = mysqlDialect
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, apperrors.NewConfigError("invalid mysql DSN", err)
		}
		logger = logger.With(slog.String("addr", cfg.Addr), slog.String("database", cfg.DBName))
	default:
		return nil, apperrors.NewConfigError(fmt.Sprintf("unsupported SQL driver %q", driver), nil)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, apperrors.NewStorageError("open database", err)
	}
	if driver == "sqlite" {
		// one writer at a time
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.NewStorageError("connect to database", err)
	}

	logger.Debug("store opened")
	return &SQLStore{db: db, dialect: d, logger: logger}, nil
}

// Close closes the database
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Save replaces table atomically. SQLite runs the whole drop, create and
// insert sequence in one transaction. MySQL commits DDL implicitly, so the
// rows go to a staging table that is then swapped in with RENAME TABLE.
func (s *SQLStore) Save(ctx context.Context, table string, t domain.RawTable) error {
	if err := validateTableName(table); err != nil {
		return err
	}
	if len(t.Columns) == 0 {
		return apperrors.NewDataError(fmt.Sprintf("cannot save table %s without columns", table), nil)
	}
	if err := t.Validate(); err != nil {
		return apperrors.NewDataError(fmt.Sprintf("cannot save table %s", table), err)
	}

	if s.dialect.transactionalDDL {
		if err := s.writeTable(ctx, table, t); err != nil {
			return err
		}
	} else {
		staging := table + stagingSuffix
		if err := s.writeTable(ctx, staging, t); err != nil {
			return err
		}
		if err := s.swap(ctx, table, staging); err != nil {
			return err
		}
	}

	s.logger.InfoContext(ctx, "table saved", slog.String("table", table), slog.Int("rows", t.Len()))
	return nil
}

func (s *SQLStore) writeTable(ctx context.Context, table string, t domain.RawTable) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStorageError("begin transaction", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	q := s.dialect.quote
	numeric := numericColumns(t)
	defs := make([]string, len(t.Columns))
	quoted := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		typ := "TEXT"
		if numeric[i] {
			typ = s.dialect.numericType
		}
		quoted[i] = q(c)
		defs[i] = quoted[i] + " " + typ
	}

	if _, err = tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+q(table)); err != nil {
		return apperrors.NewStorageError("drop table "+table, err)
	}
	if _, err = tx.ExecContext(ctx, "CREATE TABLE "+q(table)+" ("+strings.Join(defs, ", ")+")"); err != nil {
		return apperrors.NewStorageError("create table "+table, err)
	}

	ph := strings.TrimRight(strings.Repeat("?,", len(t.Columns)), ",")
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO "+q(table)+" ("+strings.Join(quoted, ", ")+") VALUES ("+ph+")")
	if err != nil {
		return apperrors.NewStorageError("prepare insert", err)
	}
	defer stmt.Close()

	args := make([]any, len(t.Columns))
	for r, row := range t.Rows {
		for i, cell := range row {
			args[i] = sqlValue(cell, numeric[i])
		}
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return apperrors.NewStorageError(fmt.Sprintf("insert row %d into %s", r, table), err)
		}
	}

	if err = tx.Commit(); err != nil {
		return apperrors.NewStorageError("commit table "+table, err)
	}
	return nil
}

// swap moves staging into place under table in one RENAME statement
func (s *SQLStore) swap(ctx context.Context, table, staging string) error {
	q := s.dialect.quote
	exists, err := s.tableExists(ctx, table)
	if err != nil {
		return err
	}
	if !exists {
		if _, err := s.db.ExecContext(ctx, "RENAME TABLE "+q(staging)+" TO "+q(table)); err != nil {
			return apperrors.NewStorageError("rename staging table", err)
		}
		return nil
	}

	old := table + retiredSuffix
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+q(old)); err != nil {
		return apperrors.NewStorageError("drop retired table", err)
	}
	if _, err := s.db.ExecContext(ctx, "RENAME TABLE "+q(table)+" TO "+q(old)+", "+q(staging)+" TO "+q(table)); err != nil {
		return apperrors.NewStorageError("swap staging table", err)
	}
	if _, err := s.db.ExecContext(ctx, "DROP TABLE "+q(old)); err != nil {
		s.logger.WarnContext(ctx, "failed to drop retired table", slog.String("table", old), slog.String("error", err.Error()))
	}
	return nil
}

// Load reads every row of table in insertion order
func (s *SQLStore) Load(ctx context.Context, table string) (domain.RawTable, error) {
	return s.query(ctx, table, -1)
}

// Head reads the first n rows of table
func (s *SQLStore) Head(ctx context.Context, table string, n int) (domain.RawTable, error) {
	if n < 0 {
		n = 0
	}
	return s.query(ctx, table, n)
}

func (s *SQLStore) query(ctx context.Context, table string, limit int) (domain.RawTable, error) {
	if err := validateTableName(table); err != nil {
		return domain.RawTable{}, err
	}
	exists, err := s.tableExists(ctx, table)
	if err != nil {
		return domain.RawTable{}, err
	}
	if !exists {
		return domain.RawTable{}, apperrors.NewInputNotFoundError("table "+table, nil)
	}

	query := "SELECT * FROM " + s.dialect.quote(table) + s.dialect.orderBy
	if limit >= 0 {
		query += " LIMIT " + strconv.Itoa(limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return domain.RawTable{}, apperrors.NewStorageError("query table "+table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return domain.RawTable{}, apperrors.NewStorageError("read columns of "+table, err)
	}
	out := domain.NewRawTable(cols...)
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return domain.RawTable{}, apperrors.NewStorageError("scan row of "+table, err)
		}
		row := make([]string, len(cols))
		for i, v := range values {
			row[i] = cellString(v)
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return domain.RawTable{}, apperrors.NewStorageError("iterate rows of "+table, err)
	}
	return out, nil
}

func (s *SQLStore) tableExists(ctx context.Context, table string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.dialect.existsQuery, table).Scan(&n)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, apperrors.NewStorageError("look up table "+table, err)
	}
	return n > 0, nil
}

// numericColumns flags columns whose present cells all parse as numbers.
// Such columns get a numeric SQL type; missing cells become NULL.
func numericColumns(t domain.RawTable) []bool {
	numeric := make([]bool, len(t.Columns))
	for i := range t.Columns {
		seen := false
		numeric[i] = true
		for _, row := range t.Rows {
			if domain.IsMissing(row[i]) {
				continue
			}
			seen = true
			if _, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64); err != nil {
				numeric[i] = false
				break
			}
		}
		numeric[i] = numeric[i] && seen
	}
	return numeric
}

func sqlValue(cell string, numeric bool) any {
	if domain.IsMissing(cell) {
		if numeric {
			return nil
		}
		return cell
	}
	if numeric {
		v, _ := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		return v
	}
	return cell
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return domain.FormatValue(t)
	case bool:
		if t {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(t)
	}
}
