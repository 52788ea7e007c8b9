// Package db opens the backing relational store and manages its schema.
package db

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/zulandar/inboxd/internal/config"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN builds a MySQL DSN from the database section of the config.
func DSN(c config.DatabaseConfig) string {
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	mc.DBName = c.Name
	mc.ParseTime = true
	return mc.FormatDSN()
}

// SQLiteDSN builds a SQLite DSN for path. In-memory databases are passed
// through unchanged.
func SQLiteDSN(path string) string {
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return path
	}
	return path + "?_busy_timeout=5000&_journal_mode=WAL"
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}
}

// Open connects to the store selected by c.Driver.
func Open(c config.DatabaseConfig) (*gorm.DB, error) {
	switch c.Driver {
	case config.DriverMySQL:
		db, err := gorm.Open(gormmysql.Open(DSN(c)), gormConfig())
		if err != nil {
			return nil, fmt.Errorf("db: connect to %s:%d/%s: %w", c.Host, c.Port, c.Name, err)
		}
		return db, nil
	case config.DriverSQLite, "":
		return OpenSQLite(c.Path)
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", c.Driver)
	}
}

// OpenSQLite opens a SQLite database at path. SQLite allows a single
// writer, so the pool is capped at one connection; this also keeps
// ":memory:" databases shared across callers.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(SQLiteDSN(path)), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("db: open sqlite %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db: sqlite pool %s: %w", path, err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}
