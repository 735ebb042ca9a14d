package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

type PostgresInfo struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
}

func (p PostgresInfo) DSN() string {
	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s", p.Host, p.Port, p.User, p.Password, p.Database, sslMode)
}

func NewPostgres(info PostgresInfo) (*SQL, error) {
	db, err := sql.Open("postgres", info.DSN())
	if err != nil {
		return nil, fmt.Errorf("could not open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not reach postgres: %w", err)
	}

	return newSQL(db, DialectPostgres)
}

func NewSQLite(path string) (*SQL, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open sqlite: %w", err)
	}
	// one writer at a time, sqlite has no row level locking
	db.SetMaxOpenConns(1)

	return newSQL(db, DialectSQLite)
}

func newSQL(db *sql.DB, dialect Dialect) (*SQL, error) {
	if _, err := migrateUp(db, dialect); err != nil {
		db.Close()
		return nil, err
	}

	return &SQL{db: db, dialect: dialect}, nil
}

func isCheckViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23514"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_CHECK
	}
	return false
}
