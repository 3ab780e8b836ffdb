package timer

import (
	"time"

	"github.com/promodoro/backend/internal/settings"
)

// EventName identifies the kind of timer interval.
type EventName string

const (
	EventPromodoro  EventName = "Promodoro"
	EventShortBreak EventName = "ShortBreak"
	EventLongBreak  EventName = "LongBreak"
)

// EventNames lists every event kind in rotation order.
var EventNames = []EventName{EventPromodoro, EventShortBreak, EventLongBreak}

// EventState is the persisted state of an event row.
type EventState string

const (
	StateActive    EventState = "active"
	StatePaused    EventState = "paused"
	StateCompleted EventState = "completed"
)

// Event is one timer interval. EndedAt stays nil until the event completes.
type Event struct {
	ID        int64      `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    string     `gorm:"column:user_id;size:190;not null;index:idx_timer_events_user_created,priority:1"`
	Name      EventName  `gorm:"column:name;size:32;not null"`
	State     EventState `gorm:"column:state;size:16;not null"`
	StartedAt time.Time  `gorm:"column:start_at;not null"`
	PausedAt  time.Time  `gorm:"column:paused_at;not null"`
	EndedAt   *time.Time `gorm:"column:end_at"`
	CreatedAt time.Time  `gorm:"column:created_at;not null;index:idx_timer_events_user_created,priority:2"`
}

// TableName exposes the table backing timer events.
func (Event) TableName() string {
	return "timer_events"
}

func durationFor(prefs settings.Preferences, name EventName) time.Duration {
	switch name {
	case EventShortBreak:
		return time.Duration(prefs.ShortBreakMinutes) * time.Minute
	case EventLongBreak:
		return time.Duration(prefs.LongBreakMinutes) * time.Minute
	default:
		return time.Duration(prefs.PromodoroMinutes) * time.Minute
	}
}

// CurrentEvent is the client view of the event a user is working on.
type CurrentEvent struct {
	ID               int64      `json:"id"`
	Name             EventName  `json:"name"`
	State            EventState `json:"state"`
	DurationMinutes  int        `json:"duration"`
	Start            time.Time  `json:"start"`
	Paused           time.Time  `json:"paused"`
	End              time.Time  `json:"end"`
	RemainingSeconds int64      `json:"remaining_seconds"`
}

func newCurrentEvent(event Event, prefs settings.Preferences, now time.Time) CurrentEvent {
	duration := durationFor(prefs, event.Name)
	start := event.StartedAt.UTC()
	paused := event.PausedAt.UTC()
	end := start.Add(duration)
	if event.EndedAt != nil {
		end = event.EndedAt.UTC()
	}

	var remaining time.Duration
	switch event.State {
	case StateActive:
		remaining = end.Sub(now)
	case StatePaused:
		remaining = duration - paused.Sub(start)
	}
	if remaining < 0 {
		remaining = 0
	}

	return CurrentEvent{
		ID:               event.ID,
		Name:             event.Name,
		State:            event.State,
		DurationMinutes:  int(duration / time.Minute),
		Start:            start,
		Paused:           paused,
		End:              end,
		RemainingSeconds: int64(remaining / time.Second),
	}
}
