package settings

import (
	"errors"

	"gorm.io/gorm"
)

const (
	DefaultPromodoroMinutes         = 25
	DefaultShortBreakMinutes        = 5
	DefaultLongBreakMinutes         = 15
	DefaultPromodorosUntilLongBreak = 4
	DefaultDailyGoal                = 8
)

// Preferences is the resolved configuration for one user. Values are always positive.
type Preferences struct {
	PromodoroMinutes         int `json:"promodoro"`
	ShortBreakMinutes        int `json:"short_break"`
	LongBreakMinutes         int `json:"long_break"`
	PromodorosUntilLongBreak int `json:"promodoros_until_long_break"`
	DailyGoal                int `json:"daily_goal"`
}

// DefaultPreferences returns the values used when a user has saved nothing.
func DefaultPreferences() Preferences {
	return Preferences{
		PromodoroMinutes:         DefaultPromodoroMinutes,
		ShortBreakMinutes:        DefaultShortBreakMinutes,
		LongBreakMinutes:         DefaultLongBreakMinutes,
		PromodorosUntilLongBreak: DefaultPromodorosUntilLongBreak,
		DailyGoal:                DefaultDailyGoal,
	}
}

func (p Preferences) withDefaults() Preferences {
	defaults := DefaultPreferences()
	if p.PromodoroMinutes <= 0 {
		p.PromodoroMinutes = defaults.PromodoroMinutes
	}
	if p.ShortBreakMinutes <= 0 {
		p.ShortBreakMinutes = defaults.ShortBreakMinutes
	}
	if p.LongBreakMinutes <= 0 {
		p.LongBreakMinutes = defaults.LongBreakMinutes
	}
	if p.PromodorosUntilLongBreak <= 0 {
		p.PromodorosUntilLongBreak = defaults.PromodorosUntilLongBreak
	}
	if p.DailyGoal <= 0 {
		p.DailyGoal = defaults.DailyGoal
	}
	return p
}

// LoadPreferences reads a user's stored settings through db, which may be a
// transaction. Missing rows and non-positive values resolve to defaults.
func LoadPreferences(db *gorm.DB, userID string) (Preferences, error) {
	var prefs Preferences

	var durations Durations
	err := db.Where("user_id = ?", userID).Take(&durations).Error
	switch {
	case err == nil:
		prefs.PromodoroMinutes = durations.Promodoro
		prefs.ShortBreakMinutes = durations.ShortBreak
		prefs.LongBreakMinutes = durations.LongBreak
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return Preferences{}, err
	}

	var other OtherSettings
	err = db.Where("user_id = ?", userID).Take(&other).Error
	switch {
	case err == nil:
		prefs.PromodorosUntilLongBreak = other.PromodorosUntilLongBreak
		prefs.DailyGoal = other.DailyGoal
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return Preferences{}, err
	}

	return prefs.withDefaults(), nil
}
