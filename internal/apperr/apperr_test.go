package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		kind Kind
	}{
		{"validation", Validation(ReasonEmptyName, "name required"), KindValidation},
		{"capacity", Capacity(ReasonMaxProfiles, "max %d profiles", 4), KindCapacity},
		{"conflict", Conflict(ReasonDuplicateName, "profile %q exists", "Alice"), KindConflict},
		{"state", State(ReasonNoSession, "no active enrollment"), KindState},
		{"subject ambiguity", SubjectAmbiguity(ReasonNoFace, "no face detected"), KindSubjectAmbiguity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", tt.err.Kind, tt.kind)
			}
			if KindOf(tt.err) != tt.kind {
				t.Errorf("KindOf() = %q, want %q", KindOf(tt.err), tt.kind)
			}
		})
	}
}

func TestMessageFormatting(t *testing.T) {
	err := Capacity(ReasonMaxProfiles, "maximum of %d profiles reached", 4)
	if err.Error() != "maximum of 4 profiles reached" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("capture: %w", SubjectAmbiguity(ReasonMultipleFaces, "multiple faces"))

	if !IsKind(wrapped, KindSubjectAmbiguity) {
		t.Errorf("expected wrapped error to be subject_ambiguity, got %q", KindOf(wrapped))
	}
	if ReasonOf(wrapped) != ReasonMultipleFaces {
		t.Errorf("ReasonOf() = %q, want %q", ReasonOf(wrapped), ReasonMultipleFaces)
	}
}

func TestKindOf_PlainError(t *testing.T) {
	err := errors.New("disk full")
	if KindOf(err) != "" {
		t.Errorf("expected empty kind for plain error, got %q", KindOf(err))
	}
	if ReasonOf(err) != "" {
		t.Errorf("expected empty reason for plain error, got %q", ReasonOf(err))
	}
	if KindOf(nil) != "" {
		t.Error("expected empty kind for nil error")
	}
}
