package timer

import (
	"errors"
	"fmt"
)

// Phase is the lifecycle position of a user's current event.
type Phase string

const (
	PhaseNoEvent   Phase = "no_event"
	PhaseActive    Phase = "active"
	PhasePaused    Phase = "paused"
	PhaseCompleted Phase = "completed"
)

// Trigger is an input that moves the lifecycle.
type Trigger string

const (
	TriggerPoll    Trigger = "poll"
	TriggerToggle  Trigger = "toggle"
	TriggerAdvance Trigger = "advance"
	TriggerExpire  Trigger = "expire"
	TriggerDiscard Trigger = "discard"
)

const defaultPromodorosUntilLongBreak = 4

var ErrInvalidTransition = errors.New("timer: transition not allowed")

// Polling a completed or missing event creates a fresh paused one, so both lead to PhasePaused.
var transitions = map[Phase]map[Trigger]Phase{
	PhaseNoEvent: {
		TriggerPoll: PhasePaused,
	},
	PhasePaused: {
		TriggerPoll:    PhasePaused,
		TriggerToggle:  PhaseActive,
		TriggerAdvance: PhasePaused,
		TriggerDiscard: PhaseNoEvent,
	},
	PhaseActive: {
		TriggerPoll:    PhaseActive,
		TriggerToggle:  PhasePaused,
		TriggerExpire:  PhaseCompleted,
		TriggerDiscard: PhaseNoEvent,
	},
	PhaseCompleted: {
		TriggerPoll: PhasePaused,
	},
}

// Transition returns the phase reached by applying trigger in phase from.
func Transition(from Phase, trigger Trigger) (Phase, error) {
	next, ok := transitions[from][trigger]
	if !ok {
		return "", fmt.Errorf("%w: %s on %s", ErrInvalidTransition, trigger, from)
	}
	return next, nil
}

func phaseOf(event *Event) Phase {
	if event == nil {
		return PhaseNoEvent
	}
	switch event.State {
	case StateActive:
		return PhaseActive
	case StatePaused:
		return PhasePaused
	default:
		return PhaseCompleted
	}
}

// NextAfterCompletion picks the event that follows a completed one. A break is
// always followed by a Promodoro. After a Promodoro, a long break is due when
// today's completed Promodoro count is a positive multiple of until.
func NextAfterCompletion(previous EventName, completedPromodoros int64, until int) EventName {
	if previous != EventPromodoro {
		return EventPromodoro
	}
	if until < 1 {
		until = defaultPromodorosUntilLongBreak
	}
	if completedPromodoros > 0 && completedPromodoros%int64(until) == 0 {
		return EventLongBreak
	}
	return EventShortBreak
}

// NextManual returns the event a user skips to from name.
func NextManual(name EventName) EventName {
	switch name {
	case EventPromodoro:
		return EventShortBreak
	case EventShortBreak:
		return EventLongBreak
	default:
		return EventPromodoro
	}
}
