package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillMadeByOwner = "2026-06-18_backfill_made_by_owner"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillMadeByOwner, apply: backfillMadeByOwner},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// backfillMadeByOwner repairs rows written before the made_by_owner
// column existed. Rows without a remote id were necessarily created on
// this device (inbound records always carry one), so they belong to the
// owner.
func backfillMadeByOwner(db *gorm.DB) error {
	for _, table := range []string{"customer_transactions", "month_book_transactions"} {
		err := db.Table(table).
			Where("made_by_owner = ? AND (remote_id IS NULL OR remote_id = '')", false).
			Update("made_by_owner", true).Error
		if err != nil {
			return err
		}
	}
	return nil
}
