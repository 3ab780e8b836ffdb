package timer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/promodoro/backend/internal/apperrors"
	"github.com/promodoro/backend/internal/calendar"
	"github.com/promodoro/backend/internal/settings"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxResolvePasses = 4

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingUserID   = errors.New("user identifier is required")
	errResolveLoop     = errors.New("current event did not settle")
	noOpLogger         = zap.NewNop()
)

const (
	opServiceNew    = "timer.service.new"
	opResolve       = "timer.resolve_current_event"
	opToggle        = "timer.toggle_event"
	opAdvance       = "timer.advance_event"
	reasonNotFound  = "event_not_found"
	reasonStoreFail = "store_failed"
)

func newServiceError(operation, reason string, cause error) error {
	return apperrors.Internal(fmt.Sprintf("%s.%s", operation, reason), cause)
}

func eventNotFound(operation string) error {
	return apperrors.NotFound(operation+"."+reasonNotFound, apperrors.MessageEventNotFound)
}

// ChangeNotifier is told about every committed change to a user's events.
type ChangeNotifier interface {
	NotifyEventChange(userID string, eventID int64)
}

type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
	Notifier ChangeNotifier
}

// Service resolves and mutates each user's current timer event. Every
// operation runs in one transaction while holding the user's lock.
type Service struct {
	db       *gorm.DB
	clock    func() time.Time
	logger   *zap.Logger
	notifier ChangeNotifier
	locks    *userLocks
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:       cfg.Database,
		clock:    clock,
		logger:   logger,
		notifier: cfg.Notifier,
		locks:    newUserLocks(),
	}, nil
}

type mutation struct {
	event   Event
	prefs   settings.Preferences
	changed bool
}

// ResolveCurrentEvent returns the event the user should see now, creating,
// completing or discarding rows as needed so that exactly one non-completed
// event exists for the user's local day.
func (s *Service) ResolveCurrentEvent(ctx context.Context, userID string, offset calendar.Offset) (CurrentEvent, error) {
	if userID == "" {
		return CurrentEvent{}, apperrors.Unauthorized(opResolve+".missing_user_id", errMissingUserID)
	}
	now := s.now()
	day := calendar.DayOf(now, offset)

	result, err := s.withUserTransaction(ctx, userID, func(tx *gorm.DB, result *mutation) error {
		swept, err := s.sweepStale(tx, userID, day)
		if err != nil {
			return err
		}
		completed, err := s.completeExpired(tx, userID, result.prefs, now)
		if err != nil {
			return err
		}
		result.changed = swept > 0 || completed > 0

		for pass := 0; pass < maxResolvePasses; pass++ {
			current, err := latestInDay(tx, userID, day)
			if err != nil {
				return err
			}
			phase := phaseOf(current)
			if _, err := Transition(phase, TriggerPoll); err != nil {
				return err
			}

			var name EventName
			switch phase {
			case PhaseActive, PhasePaused:
				result.event = *current
				return nil
			case PhaseNoEvent:
				name = EventPromodoro
			case PhaseCompleted:
				completedPromodoros, err := countCompletedPromodoros(tx, userID, day)
				if err != nil {
					return err
				}
				name = NextAfterCompletion(current.Name, completedPromodoros, result.prefs.PromodorosUntilLongBreak)
			}

			created := Event{
				UserID:    userID,
				Name:      name,
				State:     StatePaused,
				StartedAt: now,
				PausedAt:  now,
				CreatedAt: now,
			}
			if err := tx.Create(&created).Error; err != nil {
				return err
			}
			result.changed = true
		}
		return errResolveLoop
	})
	if err != nil {
		return CurrentEvent{}, s.classify(opResolve, userID, err)
	}
	return newCurrentEvent(result.event, result.prefs, now), nil
}

// ToggleEvent resumes a paused event or pauses an active one.
func (s *Service) ToggleEvent(ctx context.Context, userID string, eventID int64, offset calendar.Offset) (CurrentEvent, error) {
	if userID == "" {
		return CurrentEvent{}, apperrors.Unauthorized(opToggle+".missing_user_id", errMissingUserID)
	}
	now := s.now()
	day := calendar.DayOf(now, offset)

	result, err := s.withUserTransaction(ctx, userID, func(tx *gorm.DB, result *mutation) error {
		if _, err := s.completeExpired(tx, userID, result.prefs, now); err != nil {
			return err
		}
		event, err := ownedEvent(tx, userID, eventID, day)
		if err != nil {
			return err
		}
		next, err := Transition(phaseOf(event), TriggerToggle)
		if err != nil {
			return err
		}

		switch next {
		case PhaseActive:
			event.StartedAt = now.Add(-event.PausedAt.Sub(event.StartedAt))
			event.State = StateActive
		case PhasePaused:
			event.State = StatePaused
		}
		event.PausedAt = now

		if err := tx.Model(&Event{}).Where("id = ?", event.ID).Updates(map[string]interface{}{
			"state":     event.State,
			"start_at":  event.StartedAt,
			"paused_at": event.PausedAt,
		}).Error; err != nil {
			return err
		}
		result.event = *event
		result.changed = true
		return nil
	})
	if err != nil {
		return CurrentEvent{}, s.classify(opToggle, userID, err)
	}
	return newCurrentEvent(result.event, result.prefs, now), nil
}

// AdvanceEvent skips a paused event to the next kind in the fixed rotation.
// The row is rewritten in place as a fresh paused event.
func (s *Service) AdvanceEvent(ctx context.Context, userID string, eventID int64, offset calendar.Offset) (CurrentEvent, error) {
	if userID == "" {
		return CurrentEvent{}, apperrors.Unauthorized(opAdvance+".missing_user_id", errMissingUserID)
	}
	now := s.now()
	day := calendar.DayOf(now, offset)

	result, err := s.withUserTransaction(ctx, userID, func(tx *gorm.DB, result *mutation) error {
		if _, err := s.completeExpired(tx, userID, result.prefs, now); err != nil {
			return err
		}
		event, err := ownedEvent(tx, userID, eventID, day)
		if err != nil {
			return err
		}
		if _, err := Transition(phaseOf(event), TriggerAdvance); err != nil {
			return err
		}

		event.Name = NextManual(event.Name)
		event.State = StatePaused
		event.StartedAt = now
		event.PausedAt = now

		if err := tx.Model(&Event{}).Where("id = ?", event.ID).Updates(map[string]interface{}{
			"name":      event.Name,
			"state":     event.State,
			"start_at":  event.StartedAt,
			"paused_at": event.PausedAt,
		}).Error; err != nil {
			return err
		}
		result.event = *event
		result.changed = true
		return nil
	})
	if err != nil {
		return CurrentEvent{}, s.classify(opAdvance, userID, err)
	}
	return newCurrentEvent(result.event, result.prefs, now), nil
}

func (s *Service) withUserTransaction(ctx context.Context, userID string, apply func(tx *gorm.DB, result *mutation) error) (mutation, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	var result mutation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prefs, err := settings.LoadPreferences(tx, userID)
		if err != nil {
			return err
		}
		result.prefs = prefs
		return apply(tx, &result)
	})
	if err != nil {
		return mutation{}, err
	}
	if result.changed && s.notifier != nil {
		s.notifier.NotifyEventChange(userID, result.event.ID)
	}
	return result, nil
}

// sweepStale discards the user's unfinished events created before today.
func (s *Service) sweepStale(tx *gorm.DB, userID string, day calendar.Day) (int, error) {
	var stale []Event
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND state <> ? AND created_at < ?", userID, StateCompleted, day.Start).
		Find(&stale).Error; err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	ids := make([]int64, 0, len(stale))
	for index := range stale {
		if _, err := Transition(phaseOf(&stale[index]), TriggerDiscard); err != nil {
			return 0, err
		}
		ids = append(ids, stale[index].ID)
	}
	if err := tx.Where("id IN ?", ids).Delete(&Event{}).Error; err != nil {
		return 0, err
	}
	s.logger.Debug("discarded stale events", zap.String("user_id", userID), zap.Int("count", len(ids)))
	return len(ids), nil
}

// completeExpired marks active events whose duration has elapsed as completed.
// The end is the scheduled end, not the moment of discovery.
func (s *Service) completeExpired(tx *gorm.DB, userID string, prefs settings.Preferences, now time.Time) (int, error) {
	completed := 0
	for _, name := range EventNames {
		duration := durationFor(prefs, name)
		var expired []Event
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND name = ? AND state = ? AND start_at <= ?", userID, name, StateActive, now.Add(-duration)).
			Find(&expired).Error; err != nil {
			return completed, err
		}
		for _, event := range expired {
			if _, err := Transition(PhaseActive, TriggerExpire); err != nil {
				return completed, err
			}
			end := event.StartedAt.UTC().Add(duration)
			if err := tx.Model(&Event{}).Where("id = ?", event.ID).Updates(map[string]interface{}{
				"state":  StateCompleted,
				"end_at": end,
			}).Error; err != nil {
				return completed, err
			}
			completed++
		}
	}
	return completed, nil
}

func latestInDay(tx *gorm.DB, userID string, day calendar.Day) (*Event, error) {
	var event Event
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, day.Start, day.End).
		Order("id DESC").
		Take(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func ownedEvent(tx *gorm.DB, userID string, eventID int64, day calendar.Day) (*Event, error) {
	if eventID <= 0 {
		return nil, ErrInvalidTransition
	}
	var event Event
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ?", eventID, userID).
		Take(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidTransition
	}
	if err != nil {
		return nil, err
	}
	if !day.Contains(event.CreatedAt) {
		return nil, ErrInvalidTransition
	}
	return &event, nil
}

func countCompletedPromodoros(tx *gorm.DB, userID string, day calendar.Day) (int64, error) {
	var count int64
	err := tx.Model(&Event{}).
		Where("user_id = ? AND name = ? AND state = ? AND created_at >= ? AND created_at < ?",
			userID, EventPromodoro, StateCompleted, day.Start, day.End).
		Count(&count).Error
	return count, err
}

func (s *Service) classify(operation, userID string, err error) error {
	if errors.Is(err, ErrInvalidTransition) {
		return eventNotFound(operation)
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	s.logError(operation, reasonStoreFail, err, zap.String("user_id", userID))
	return newServiceError(operation, reasonStoreFail, err)
}

func (s *Service) now() time.Time {
	return s.clock().UTC().Truncate(time.Microsecond)
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
	s.logger.Error("timer service error", attrs...)
}
