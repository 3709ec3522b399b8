package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"chatapp-gateway/internal/models"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Dialect string

const (
	SQLite   Dialect = "sqlite"
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
)

// DB is a connection pool that knows which SQL dialect it speaks.
type DB struct {
	*sql.DB
	Dialect Dialect
}

func setPragmaValues(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}

	// these next 2 extremely speed up performance of sqlite
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return err
	}

	if _, err := db.Exec("PRAGMA synchronous = normal"); err != nil {
		return err
	}

	return nil
}

func readPragmaValues(db *sql.DB, sugar *zap.SugaredLogger) error {
	var foreignKeysValue bool
	err := db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeysValue)
	if err != nil {
		return err
	}
	if !foreignKeysValue {
		return fmt.Errorf("sqlite foreign keys could not be enabled")
	}

	var journalModeValue string
	err = db.QueryRow("PRAGMA journal_mode").Scan(&journalModeValue)
	if err != nil {
		return err
	}

	var synchronousValue int
	err = db.QueryRow("PRAGMA synchronous").Scan(&synchronousValue)
	if err != nil {
		return err
	}

	var synchronousValueStr string
	switch synchronousValue {
	case 0:
		synchronousValueStr = "off"
	case 1:
		synchronousValueStr = "normal"
	case 2:
		synchronousValueStr = "full"
	case 3:
		synchronousValueStr = "extra"
	default:
		return fmt.Errorf("synchronous value is unsupported")
	}

	sugar.Debugf("sqlite PRAGMA foreign_keys: %t, journal_mode: %s, synchronous: %s", foreignKeysValue, journalModeValue, synchronousValueStr)
	return nil
}

func dataSourceName(cfg *models.ConfigFile) string {
	if cfg.DbDSN != "" {
		return cfg.DbDSN
	}

	switch Dialect(cfg.Database) {
	case MySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&timeout=10s", cfg.DbUser, cfg.DbPassword, cfg.DbAddress, cfg.DbPort, cfg.DbDatabase)
	case Postgres:
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", cfg.DbUser, cfg.DbPassword, cfg.DbAddress, cfg.DbPort, cfg.DbDatabase)
	default:
		return cfg.DbPath
	}
}

// Setup opens the configured database and brings its schema up to date.
func Setup(ctx context.Context, cfg *models.ConfigFile, sugar *zap.SugaredLogger) (*DB, error) {
	dialect := Dialect(cfg.Database)
	sugar.Infof("Connecting to database %s...", dialect)

	db, err := Open(dialect, dataSourceName(cfg), sugar)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging %s: %w", dialect, err)
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func Open(dialect Dialect, dsn string, sugar *zap.SugaredLogger) (*DB, error) {
	var driver string
	switch dialect {
	case SQLite:
		driver = "sqlite"
	case MySQL:
		driver = "mysql"
	case Postgres:
		driver = "pgx"
	default:
		return nil, fmt.Errorf("unsupported database %q", dialect)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	switch dialect {
	case SQLite:
		// there can be sqlite busy errors if this is not set to 1
		db.SetMaxOpenConns(1)

		if err := setPragmaValues(db); err != nil {
			db.Close()
			return nil, err
		}
		if err := readPragmaValues(db, sugar); err != nil {
			db.Close()
			return nil, err
		}
	default:
		db.SetMaxOpenConns(20)
	}

	return &DB{DB: db, Dialect: dialect}, nil
}

// OpenInMemory returns a migrated private sqlite database.
func OpenInMemory(ctx context.Context) (*DB, error) {
	db, err := Open(SQLite, ":memory:", zap.NewNop().Sugar())
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) gooseDialect() goose.Dialect {
	switch db.Dialect {
	case MySQL:
		return goose.DialectMySQL
	case Postgres:
		return goose.DialectPostgres
	default:
		return goose.DialectSQLite3
	}
}

func (db *DB) Migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}

	provider, err := goose.NewProvider(db.gooseDialect(), db.DB, fsys)
	if err != nil {
		return fmt.Errorf("migration setup error: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	return nil
}

// Rebind rewrites ? placeholders into the dialect's native form.
func (db *DB) Rebind(query string) string {
	if db.Dialect != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// SnapshotTxOptions are the options for multi statement reads that must
// observe a single point in time.
func (db *DB) SnapshotTxOptions() *sql.TxOptions {
	if db.Dialect == SQLite {
		// a single connection serialises everything already
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
}
