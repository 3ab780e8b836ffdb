// Package stats derives progress figures from completed Promodoro events.
package stats

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/promodoro/backend/internal/apperrors"
	"github.com/promodoro/backend/internal/calendar"
	"github.com/promodoro/backend/internal/settings"
	"github.com/promodoro/backend/internal/timer"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const yearlyWindowDays = 365

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingUserID   = errors.New("user identifier is required")
)

const (
	opServiceNew          = "stats.service.new"
	opDailyProgress       = "stats.daily_progress"
	opCurrentWorkingTime  = "stats.current_working_time"
	opLongestSession      = "stats.longest_session"
	opStreak              = "stats.streak"
	opYearlyProgress      = "stats.yearly_progress"
	reasonSelectFailed    = "select_failed"
	reasonMissingUserID   = "missing_user_id"
	reasonMissingDatabase = "missing_database"
)

func newServiceError(operation, reason string, cause error) error {
	return apperrors.Internal(fmt.Sprintf("%s.%s", operation, reason), cause)
}

type DailyProgress struct {
	DailyGoal                int   `json:"daily_goal"`
	PromodorosUntilLongBreak int   `json:"promodoros_until_long_break"`
	CurrentPromodoros        int64 `json:"current_promodoros"`
}

type WorkingTime struct {
	Minutes int `json:"time"`
}

type LongestSession struct {
	Minutes int     `json:"time"`
	Date    *string `json:"date"`
}

// Streak is a run of consecutive local days with at least one completed Promodoro.
type Streak struct {
	StartAt string `json:"start_at"`
	EndAt   string `json:"end_at"`
	Count   int    `json:"count"`
}

type Streaks struct {
	Current *Streak `json:"current_streak"`
	Longest *Streak `json:"longest_streak"`
}

type DayMinutes struct {
	Date    string `json:"date"`
	Minutes int    `json:"minutes"`
}

type YearlyProgress struct {
	Events []DayMinutes `json:"events"`
	Min    int          `json:"min"`
	Max    int          `json:"max"`
}

type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service answers read-only statistics queries.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, reasonMissingDatabase, errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, clock: clock, logger: logger}, nil
}

// DailyProgress reports today's completed Promodoros against the user's goal.
func (s *Service) DailyProgress(ctx context.Context, userID string, offset calendar.Offset) (DailyProgress, error) {
	if userID == "" {
		return DailyProgress{}, apperrors.Unauthorized(opDailyProgress+"."+reasonMissingUserID, errMissingUserID)
	}
	db := s.db.WithContext(ctx)
	day := calendar.DayOf(s.clock(), offset)

	prefs, err := settings.LoadPreferences(db, userID)
	if err != nil {
		return DailyProgress{}, s.fail(opDailyProgress, userID, err)
	}
	var count int64
	if err := completedPromodoros(db, userID).
		Where("created_at >= ? AND created_at < ?", day.Start, day.End).
		Count(&count).Error; err != nil {
		return DailyProgress{}, s.fail(opDailyProgress, userID, err)
	}
	return DailyProgress{
		DailyGoal:                prefs.DailyGoal,
		PromodorosUntilLongBreak: prefs.PromodorosUntilLongBreak,
		CurrentPromodoros:        count,
	}, nil
}

// CurrentWorkingTime totals the minutes of Promodoros completed today.
func (s *Service) CurrentWorkingTime(ctx context.Context, userID string, offset calendar.Offset) (WorkingTime, error) {
	if userID == "" {
		return WorkingTime{}, apperrors.Unauthorized(opCurrentWorkingTime+"."+reasonMissingUserID, errMissingUserID)
	}
	day := calendar.DayOf(s.clock(), offset)

	var events []timer.Event
	if err := completedPromodoros(s.db.WithContext(ctx), userID).
		Where("created_at >= ? AND created_at < ?", day.Start, day.End).
		Find(&events).Error; err != nil {
		return WorkingTime{}, s.fail(opCurrentWorkingTime, userID, err)
	}
	total := 0
	for _, event := range events {
		total += eventMinutes(event)
	}
	return WorkingTime{Minutes: total}, nil
}

// LongestSession finds the local day with the most Promodoro minutes.
func (s *Service) LongestSession(ctx context.Context, userID string, offset calendar.Offset) (LongestSession, error) {
	if userID == "" {
		return LongestSession{}, apperrors.Unauthorized(opLongestSession+"."+reasonMissingUserID, errMissingUserID)
	}
	days, err := s.minutesByDay(ctx, userID, offset, time.Time{})
	if err != nil {
		return LongestSession{}, s.fail(opLongestSession, userID, err)
	}

	var longest LongestSession
	for index := range days {
		if longest.Date == nil || days[index].Minutes > longest.Minutes {
			date := days[index].Date
			longest = LongestSession{Minutes: days[index].Minutes, Date: &date}
		}
	}
	return longest, nil
}

// Streak reports the streak ending today, if any, and the longest streak ever.
func (s *Service) Streak(ctx context.Context, userID string, offset calendar.Offset) (Streaks, error) {
	if userID == "" {
		return Streaks{}, apperrors.Unauthorized(opStreak+"."+reasonMissingUserID, errMissingUserID)
	}
	days, err := s.minutesByDay(ctx, userID, offset, time.Time{})
	if err != nil {
		return Streaks{}, s.fail(opStreak, userID, err)
	}
	today := calendar.DayOf(s.clock(), offset).Date()

	runs, err := consecutiveRuns(days, offset)
	if err != nil {
		return Streaks{}, s.fail(opStreak, userID, err)
	}
	var result Streaks
	for index := range runs {
		run := runs[index]
		if run.EndAt == today {
			result.Current = &run
		}
		if result.Longest == nil || run.Count >= result.Longest.Count {
			result.Longest = &run
		}
	}
	return result, nil
}

// YearlyProgress returns per-day minutes for the heatmap. The window opens on
// the day before the start of the week that contains the date 365 days ago.
// Min is reported as zero when every day has the same total.
func (s *Service) YearlyProgress(ctx context.Context, userID string, offset calendar.Offset) (YearlyProgress, error) {
	if userID == "" {
		return YearlyProgress{}, apperrors.Unauthorized(opYearlyProgress+"."+reasonMissingUserID, errMissingUserID)
	}
	start := YearlyWindowStart(s.clock(), offset)
	days, err := s.minutesByDay(ctx, userID, offset, start.Start)
	if err != nil {
		return YearlyProgress{}, s.fail(opYearlyProgress, userID, err)
	}

	result := YearlyProgress{Events: days}
	if len(days) == 0 {
		result.Events = []DayMinutes{}
		return result, nil
	}
	result.Min, result.Max = days[0].Minutes, days[0].Minutes
	for _, day := range days[1:] {
		if day.Minutes < result.Min {
			result.Min = day.Minutes
		}
		if day.Minutes > result.Max {
			result.Max = day.Minutes
		}
	}
	if result.Min == result.Max {
		result.Min = 0
	}
	return result, nil
}

// YearlyWindowStart returns the first local day covered by YearlyProgress.
func YearlyWindowStart(now time.Time, offset calendar.Offset) calendar.Day {
	start := calendar.DayOf(now, offset).AddDays(-yearlyWindowDays)
	return start.AddDays(-(int(start.Weekday()) + 1))
}

func (s *Service) minutesByDay(ctx context.Context, userID string, offset calendar.Offset, since time.Time) ([]DayMinutes, error) {
	query := completedPromodoros(s.db.WithContext(ctx), userID)
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since)
	}
	var events []timer.Event
	if err := query.Order("created_at ASC").Find(&events).Error; err != nil {
		return nil, err
	}

	totals := make(map[string]int)
	for _, event := range events {
		totals[calendar.LocalDate(event.CreatedAt, offset)] += eventMinutes(event)
	}
	days := make([]DayMinutes, 0, len(totals))
	for date, minutes := range totals {
		days = append(days, DayMinutes{Date: date, Minutes: minutes})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days, nil
}

func consecutiveRuns(days []DayMinutes, offset calendar.Offset) ([]Streak, error) {
	var runs []Streak
	for _, day := range days {
		if len(runs) > 0 {
			last := &runs[len(runs)-1]
			current, err := calendar.ParseDate(day.Date, offset)
			if err != nil {
				return nil, err
			}
			if current.Previous().Date() == last.EndAt {
				last.EndAt = day.Date
				last.Count++
				continue
			}
		}
		runs = append(runs, Streak{StartAt: day.Date, EndAt: day.Date, Count: 1})
	}
	return runs, nil
}

func completedPromodoros(db *gorm.DB, userID string) *gorm.DB {
	return db.Model(&timer.Event{}).
		Where("user_id = ? AND name = ? AND state = ?", userID, timer.EventPromodoro, timer.StateCompleted)
}

func eventMinutes(event timer.Event) int {
	if event.EndedAt == nil {
		return 0
	}
	return int(math.Round(event.EndedAt.Sub(event.StartedAt).Minutes()))
}

func (s *Service) fail(operation, userID string, err error) error {
	s.logger.Error("stats service error",
		zap.String("operation", operation),
		zap.String("reason", reasonSelectFailed),
		zap.String("user_id", userID),
		zap.Error(err))
	return newServiceError(operation, reasonSelectFailed, err)
}
