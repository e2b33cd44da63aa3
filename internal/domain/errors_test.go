package domain

import (
	"errors"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	err := Conflictf("round is full: it allows a maximum of %d schools", 4)
	if err.Error() != "round is full: it allows a maximum of 4 schools" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
		t.Fatalf("conflict error should unwrap to ErrConflict only")
	}
	if !errors.Is(ErrParticipationNotFound, ErrNotFound) {
		t.Fatalf("participation not found should be a not-found error")
	}
}
