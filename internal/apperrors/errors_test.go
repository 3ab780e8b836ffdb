package apperrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfUnwrapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("resolve: %w", NotFound("timer.toggle.event_not_found", MessageEventNotFound))
	if kind := KindOf(wrapped); kind != KindNotFound {
		t.Fatalf("expected not_found kind, got %s", kind)
	}
	classified, ok := As(wrapped)
	if !ok {
		t.Fatalf("expected classified error in chain")
	}
	if classified.Message != MessageEventNotFound {
		t.Fatalf("unexpected message %q", classified.Message)
	}
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	if kind := KindOf(errors.New("boom")); kind != KindInternal {
		t.Fatalf("expected internal kind, got %s", kind)
	}
}

func TestInternalKeepsCauseOutOfMessage(t *testing.T) {
	cause := errors.New("disk full")
	err := Internal("timer.resolve.store_failed", cause)
	if err.Message != MessageInternal {
		t.Fatalf("expected generic message, got %q", err.Message)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable through Unwrap")
	}
}

func TestFieldInvalidCarriesField(t *testing.T) {
	err := FieldInvalid("users.login.invalid_username", "username", "Invalid username.")
	if err.Kind != KindValidation || err.Field != "username" {
		t.Fatalf("unexpected field error %+v", err)
	}
}
