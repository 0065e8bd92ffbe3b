package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"NewsAgent/internal/config"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// dialect captures the few SQL differences between the supported drivers.
type dialect struct {
	placeholder sq.PlaceholderFormat
	idColumn    string
	timeType    string
}

func dialectFor(driver string) dialect {
	if driver == DriverPostgres {
		return dialect{placeholder: sq.Dollar, idColumn: "BIGSERIAL PRIMARY KEY", timeType: "TIMESTAMPTZ"}
	}
	return dialect{placeholder: sq.Question, idColumn: "INTEGER PRIMARY KEY AUTOINCREMENT", timeType: "TIMESTAMP"}
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "postgresql", "pg":
		driver = DriverPostgres
	case "", "sqlite3":
		driver = DriverSQLite
	}
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sqlx.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// SQLite allows a single writer; one connection also keeps :memory: databases alive.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	return db, nil
}
