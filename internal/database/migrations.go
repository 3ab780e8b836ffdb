package database

import (
	"errors"
	"time"

	"github.com/promodoro/backend/internal/timer"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationNormalizeEventNames = "2025-01-12_normalize_event_names"

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
		{name: migrationNormalizeEventNames, apply: normalizeEventNames},
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
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := migration.apply(tx); err != nil {
				return err
			}
			appliedAt := time.Now().UTC().Unix()
			return tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error
		})
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Older clients stored break names with a space.
func normalizeEventNames(db *gorm.DB) error {
	renames := map[string]timer.EventName{
		"Short Break": timer.EventShortBreak,
		"Long Break":  timer.EventLongBreak,
	}
	for legacy, current := range renames {
		if err := db.Model(&timer.Event{}).
			Where("name = ?", legacy).
			Update("name", current).Error; err != nil {
			return err
		}
	}
	return nil
}
