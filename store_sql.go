package flight

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// sqlStore keeps entries in one table of (k, v, ea) rows, ea being the expiry
// in unix milliseconds. Expired rows read as misses and are removed lazily.
type sqlStore struct {
	db         *sql.DB
	table      string
	driverName string
	prefix     string
	defaultTTL time.Duration
	getStmt    *sql.Stmt
	upsertStmt *sql.Stmt
	deleteStmt *sql.Stmt
	flushStmt  *sql.Stmt
}

var sqlIdentPartRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func newSQLStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	if cfg.SQLDriverName == "" || cfg.SQLDSN == "" {
		return nil, errors.New("flight: sql driver requires driver name and dsn")
	}
	table := cfg.SQLTable
	if table == "" {
		table = defaultSQLTable
	}
	if err := validateSQLTableName(table); err != nil {
		return nil, err
	}
	db, err := sql.Open(cfg.SQLDriverName, cfg.SQLDSN)
	if err != nil {
		return nil, err
	}
	if cfg.SQLDriverName == "sqlite" {
		// One writer at a time; avoids SQLITE_BUSY under concurrent Remember.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = defaultStoreTTL
	}
	s := &sqlStore{
		db:         db,
		table:      table,
		driverName: cfg.SQLDriverName,
		prefix:     cfg.Prefix,
		defaultTTL: ttl,
	}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.prepareStatements(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *sqlStore) Driver() Driver { return DriverSQL }

func (s *sqlStore) ensureSchema(ctx context.Context) error {
	var stmt string
	switch s.driverName {
	case "postgres", "pgx":
		stmt = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			k TEXT PRIMARY KEY,
			v BYTEA NOT NULL,
			ea BIGINT NOT NULL
		);`, s.table)
	case "mysql":
		stmt = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			k VARBINARY(255) PRIMARY KEY,
			v LONGBLOB NOT NULL,
			ea BIGINT NOT NULL
		) ENGINE=InnoDB;`, s.table)
	default: // sqlite
		stmt = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			k TEXT PRIMARY KEY,
			v BLOB NOT NULL,
			ea INTEGER NOT NULL
		);`, s.table)
	}
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

func (s *sqlStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	var exp int64
	err := s.getStmt.QueryRowContext(ctx, s.storeKey(key)).Scan(&v, &exp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if time.Now().UnixMilli() > exp {
		_ = s.Delete(ctx, key)
		return nil, false, nil
	}
	return cloneBytes(v), true, nil
}

func (s *sqlStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if value == nil {
		value = []byte{}
	}
	exp := time.Now().Add(ttl).UnixMilli()
	_, err := s.upsertStmt.ExecContext(ctx, s.storeKey(key), value, exp)
	return err
}

func (s *sqlStore) Delete(ctx context.Context, key string) error {
	_, err := s.deleteStmt.ExecContext(ctx, s.storeKey(key))
	return err
}

// Flush removes every row under this store's prefix, or the whole table when
// the store has no prefix.
func (s *sqlStore) Flush(ctx context.Context) error {
	if s.prefix == "" {
		_, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", s.table))
		return err
	}
	_, err := s.flushStmt.ExecContext(ctx, s.prefix+":%")
	return err
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func (s *sqlStore) storeKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func (s *sqlStore) upsertSQL() string {
	p1, p2, p3 := s.ph(1), s.ph(2), s.ph(3)
	switch s.driverName {
	case "mysql":
		return fmt.Sprintf("INSERT INTO %s (k, v, ea) VALUES (%s, %s, %s) ON DUPLICATE KEY UPDATE v = VALUES(v), ea = VALUES(ea)", s.table, p1, p2, p3)
	default: // postgres, sqlite
		return fmt.Sprintf("INSERT INTO %s (k, v, ea) VALUES (%s, %s, %s) ON CONFLICT (k) DO UPDATE SET v = excluded.v, ea = excluded.ea", s.table, p1, p2, p3)
	}
}

func (s *sqlStore) prepareStatements(ctx context.Context) error {
	var err error
	if s.getStmt, err = s.db.PrepareContext(ctx, fmt.Sprintf("SELECT v, ea FROM %s WHERE k = %s", s.table, s.ph(1))); err != nil {
		return err
	}
	if s.upsertStmt, err = s.db.PrepareContext(ctx, s.upsertSQL()); err != nil {
		return err
	}
	if s.deleteStmt, err = s.db.PrepareContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE k = %s", s.table, s.ph(1))); err != nil {
		return err
	}
	if s.flushStmt, err = s.db.PrepareContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE k LIKE %s", s.table, s.ph(1))); err != nil {
		return err
	}
	return nil
}

func (s *sqlStore) ph(i int) string {
	if s.driverName == "postgres" || s.driverName == "pgx" {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

func validateSQLTableName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("flight: sql table name is required")
	}
	for _, part := range strings.Split(name, ".") {
		if !sqlIdentPartRE.MatchString(part) {
			return fmt.Errorf("flight: invalid sql table name %q", name)
		}
	}
	return nil
}
