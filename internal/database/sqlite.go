// Package database opens the local SQLite cache and keeps its schema
// current.
package database

import (
	"fmt"

	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/ledger"
	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/party"
	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/record"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&record.CustomerTransaction{},
		&record.MonthBookTransaction{},
		&party.Party{},
		&migrationRecord{},
	); err != nil {
		return nil, err
	}

	for _, table := range []string{ledger.CustomerStatusTable, ledger.MonthBookStatusTable} {
		if err := db.Table(table).AutoMigrate(&ledger.Entry{}); err != nil {
			return nil, err
		}
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}
