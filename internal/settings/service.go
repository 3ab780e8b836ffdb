package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/promodoro/backend/internal/apperrors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingUserID   = errors.New("user identifier is required")
	validate           = apperrors.NewValidator()
)

const (
	opServiceNew         = "settings.service.new"
	opPreferences        = "settings.preferences"
	opSaveDurations      = "settings.save_durations"
	opSaveOtherSettings  = "settings.save_other_settings"
	reasonInvalidRequest = "invalid_request"
)

func newServiceError(operation, reason string, cause error) error {
	return apperrors.Internal(fmt.Sprintf("%s.%s", operation, reason), cause)
}

// DurationsInput is the payload accepted when saving durations, in minutes.
type DurationsInput struct {
	Promodoro  int `json:"promodoro" validate:"min=1,max=1440"`
	ShortBreak int `json:"short_break" validate:"min=1,max=1440"`
	LongBreak  int `json:"long_break" validate:"min=1,max=1440"`
}

// OtherSettingsInput is the payload accepted when saving rotation and goal settings.
type OtherSettingsInput struct {
	PromodorosUntilLongBreak int `json:"promodoros_until_long_break" validate:"min=1"`
	DailyGoal                int `json:"daily_goal" validate:"min=1"`
}

type ServiceConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Service reads and writes per-user preferences.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, logger: logger}, nil
}

// Preferences returns the user's resolved preferences.
func (s *Service) Preferences(ctx context.Context, userID string) (Preferences, error) {
	if userID == "" {
		return Preferences{}, apperrors.Unauthorized(opPreferences+".missing_user_id", errMissingUserID)
	}
	prefs, err := LoadPreferences(s.db.WithContext(ctx), userID)
	if err != nil {
		s.logError(opPreferences, "select_failed", err, zap.String("user_id", userID))
		return Preferences{}, newServiceError(opPreferences, "select_failed", err)
	}
	return prefs, nil
}

// SaveDurations upserts the user's durations and returns the resolved preferences.
func (s *Service) SaveDurations(ctx context.Context, userID string, input DurationsInput) (Preferences, error) {
	if userID == "" {
		return Preferences{}, apperrors.Unauthorized(opSaveDurations+".missing_user_id", errMissingUserID)
	}
	if err := validate.Struct(input); err != nil {
		return Preferences{}, apperrors.FromValidation(opSaveDurations+"."+reasonInvalidRequest, err, describeFieldError)
	}

	var prefs Preferences
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := Durations{
			UserID:     userID,
			Promodoro:  input.Promodoro,
			ShortBreak: input.ShortBreak,
			LongBreak:  input.LongBreak,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"promodoro", "short_break", "long_break", "updated_at"}),
		}).Create(&record).Error; err != nil {
			return err
		}
		loaded, err := LoadPreferences(tx, userID)
		if err != nil {
			return err
		}
		prefs = loaded
		return nil
	})
	if err != nil {
		s.logError(opSaveDurations, "upsert_failed", err, zap.String("user_id", userID))
		return Preferences{}, newServiceError(opSaveDurations, "upsert_failed", err)
	}
	return prefs, nil
}

// SaveOtherSettings upserts rotation and goal settings and returns the resolved preferences.
func (s *Service) SaveOtherSettings(ctx context.Context, userID string, input OtherSettingsInput) (Preferences, error) {
	if userID == "" {
		return Preferences{}, apperrors.Unauthorized(opSaveOtherSettings+".missing_user_id", errMissingUserID)
	}
	if err := validate.Struct(input); err != nil {
		return Preferences{}, apperrors.FromValidation(opSaveOtherSettings+"."+reasonInvalidRequest, err, describeFieldError)
	}

	var prefs Preferences
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := OtherSettings{
			UserID:                   userID,
			PromodorosUntilLongBreak: input.PromodorosUntilLongBreak,
			DailyGoal:                input.DailyGoal,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"promodoros_until_long_break", "daily_goal", "updated_at"}),
		}).Create(&record).Error; err != nil {
			return err
		}
		loaded, err := LoadPreferences(tx, userID)
		if err != nil {
			return err
		}
		prefs = loaded
		return nil
	})
	if err != nil {
		s.logError(opSaveOtherSettings, "upsert_failed", err, zap.String("user_id", userID))
		return Preferences{}, newServiceError(opSaveOtherSettings, "upsert_failed", err)
	}
	return prefs, nil
}

func describeFieldError(fieldError validator.FieldError) string {
	switch fieldError.Tag() {
	case "min":
		return fmt.Sprintf("%s must be at least %s.", fieldError.Field(), fieldError.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s.", fieldError.Field(), fieldError.Param())
	default:
		return fmt.Sprintf("%s is invalid.", fieldError.Field())
	}
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("settings service error", attrs...)
}
