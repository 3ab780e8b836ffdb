package timer

import (
	"errors"
	"sync"
	"testing"
)

func TestTransitionTable(t *testing.T) {
	testCases := []struct {
		from    Phase
		trigger Trigger
		want    Phase
		wantErr bool
	}{
		{from: PhaseNoEvent, trigger: TriggerPoll, want: PhasePaused},
		{from: PhaseNoEvent, trigger: TriggerToggle, wantErr: true},
		{from: PhasePaused, trigger: TriggerToggle, want: PhaseActive},
		{from: PhasePaused, trigger: TriggerAdvance, want: PhasePaused},
		{from: PhasePaused, trigger: TriggerExpire, wantErr: true},
		{from: PhaseActive, trigger: TriggerToggle, want: PhasePaused},
		{from: PhaseActive, trigger: TriggerAdvance, wantErr: true},
		{from: PhaseActive, trigger: TriggerExpire, want: PhaseCompleted},
		{from: PhaseActive, trigger: TriggerDiscard, want: PhaseNoEvent},
		{from: PhaseCompleted, trigger: TriggerPoll, want: PhasePaused},
		{from: PhaseCompleted, trigger: TriggerToggle, wantErr: true},
		{from: PhaseCompleted, trigger: TriggerDiscard, wantErr: true},
	}
	for _, testCase := range testCases {
		got, err := Transition(testCase.from, testCase.trigger)
		if testCase.wantErr {
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("%s on %s: expected invalid transition, got %v", testCase.trigger, testCase.from, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s on %s: unexpected error %v", testCase.trigger, testCase.from, err)
		}
		if got != testCase.want {
			t.Fatalf("%s on %s: got %s, want %s", testCase.trigger, testCase.from, got, testCase.want)
		}
	}
}

func TestPhaseOf(t *testing.T) {
	if phaseOf(nil) != PhaseNoEvent {
		t.Fatalf("nil event must map to no_event")
	}
	if phaseOf(&Event{State: StateActive}) != PhaseActive {
		t.Fatalf("active event must map to active")
	}
	if phaseOf(&Event{State: StateCompleted}) != PhaseCompleted {
		t.Fatalf("completed event must map to completed")
	}
}

func TestNextAfterCompletion(t *testing.T) {
	testCases := []struct {
		name      string
		previous  EventName
		completed int64
		until     int
		want      EventName
	}{
		{name: "short break follows promodoro", previous: EventPromodoro, completed: 1, until: 4, want: EventShortBreak},
		{name: "long break on multiple", previous: EventPromodoro, completed: 4, until: 4, want: EventLongBreak},
		{name: "long break on later multiple", previous: EventPromodoro, completed: 8, until: 4, want: EventLongBreak},
		{name: "zero count is never a long break", previous: EventPromodoro, completed: 0, until: 4, want: EventShortBreak},
		{name: "non positive until falls back to four", previous: EventPromodoro, completed: 4, until: 0, want: EventLongBreak},
		{name: "non positive until short break", previous: EventPromodoro, completed: 3, until: -2, want: EventShortBreak},
		{name: "every promodoro with until one", previous: EventPromodoro, completed: 1, until: 1, want: EventLongBreak},
		{name: "short break returns to promodoro", previous: EventShortBreak, completed: 4, until: 4, want: EventPromodoro},
		{name: "long break returns to promodoro", previous: EventLongBreak, completed: 4, until: 4, want: EventPromodoro},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			got := NextAfterCompletion(testCase.previous, testCase.completed, testCase.until)
			if got != testCase.want {
				t.Fatalf("got %s, want %s", got, testCase.want)
			}
		})
	}
}

func TestNextManualRotation(t *testing.T) {
	name := EventPromodoro
	want := []EventName{EventShortBreak, EventLongBreak, EventPromodoro}
	for _, expected := range want {
		name = NextManual(name)
		if name != expected {
			t.Fatalf("got %s, want %s", name, expected)
		}
	}
}

func TestUserLocksReleaseEntries(t *testing.T) {
	locks := newUserLocks()
	var waitGroup sync.WaitGroup
	counter := 0
	for index := 0; index < 20; index++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			unlock := locks.Lock("user-1")
			counter++
			unlock()
		}()
	}
	waitGroup.Wait()
	if counter != 20 {
		t.Fatalf("expected 20 increments, got %d", counter)
	}
	if locks.size() != 0 {
		t.Fatalf("expected lock entries to be released, got %d", locks.size())
	}
}
