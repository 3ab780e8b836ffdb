package settings

import "time"

// Durations stores a user's per-event durations in minutes.
type Durations struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserID     string    `gorm:"column:user_id;size:190;not null;uniqueIndex"`
	Promodoro  int       `gorm:"column:promodoro;not null"`
	ShortBreak int       `gorm:"column:short_break;not null"`
	LongBreak  int       `gorm:"column:long_break;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing duration preferences.
func (Durations) TableName() string {
	return "durations"
}

// OtherSettings stores rotation and goal preferences.
type OtherSettings struct {
	ID                       int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserID                   string    `gorm:"column:user_id;size:190;not null;uniqueIndex"`
	PromodorosUntilLongBreak int       `gorm:"column:promodoros_until_long_break;not null"`
	DailyGoal                int       `gorm:"column:daily_goal;not null"`
	CreatedAt                time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing rotation and goal preferences.
func (OtherSettings) TableName() string {
	return "other_settings"
}
