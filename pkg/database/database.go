// Package database opens the GORM handle shared by the moderation stores.
package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Setup opens a database from a URL-style DSN: "sqlite://<path>" or
// "postgres://..." / "postgresql://...". For sqlite the parent directory is
// created and WAL mode set, and the pool is pinned to one connection.
func Setup(dbURL string, maxConnections int) (*gorm.DB, error) {
	var dial gorm.Dialector
	isSqlite := false
	openConns := maxConnections

	switch {
	case strings.HasPrefix(dbURL, "sqlite://"):
		sqlitePath := dbURL[len("sqlite://"):]
		// in-memory DSNs must not grow a directory
		if !strings.Contains(sqlitePath, ":?") && sqlitePath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(sqlitePath), os.ModePerm); err != nil {
				return nil, err
			}
		}
		dial = sqlite.Open(sqlitePath)
		openConns = 1
		isSqlite = true
	case strings.HasPrefix(dbURL, "postgres://"), strings.HasPrefix(dbURL, "postgresql://"):
		dial = postgres.Open(dbURL)
	default:
		return nil, fmt.Errorf("unsupported or unrecognized database URL scheme")
	}

	db, err := gorm.Open(dial, &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 slogGorm.New(),
	})
	if err != nil {
		return nil, err
	}

	sqldb, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxIdleConns(10)
	sqldb.SetMaxOpenConns(openConns)
	sqldb.SetConnMaxIdleTime(time.Hour)

	if isSqlite {
		if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
			return nil, err
		}
		if err := db.Exec("PRAGMA synchronous=normal;").Error; err != nil {
			return nil, err
		}
	}

	return db, nil
}
