package binding

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/face-recognition/internal/apperr"
)

func TestValidator_DecodeJSON(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		body    string
		dst     any
		wantErr string
	}{
		{"valid start", `{"name":"Alice","color":"#ff0000"}`, &StartEnrollment{}, ""},
		{"empty body", ``, &StartEnrollment{}, ""},
		{"bad color", `{"name":"Alice","color":"red"}`, &StartEnrollment{}, "color is not a valid hexcolor"},
		{"malformed", `{"name":`, &StartEnrollment{}, "invalid request body"},
		{"missing frame", `{"step":"front"}`, &Capture{}, "frame is required"},
		{"score too high", `{"challenge":"multi_face","score":11}`, &ChallengeScore{}, "score must be at most 10"},
		{"negative score", `{"challenge":"multi_face","score":-1}`, &ChallengeScore{}, "score must be at least 0"},
		{"missing challenge", `{"score":5}`, &ChallengeScore{}, "challenge is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/", strings.NewReader(tt.body))
			err := v.DecodeJSON(req, tt.dst)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("expected %q, got %v", tt.wantErr, err)
			}
			if apperr.ReasonOf(err) != apperr.ReasonInvalidRequest {
				t.Errorf("expected invalid_request reason, got %q", apperr.ReasonOf(err))
			}
		})
	}
}

func TestValidator_BodyTooLarge(t *testing.T) {
	v := NewValidator()
	body := `{"frame":"` + strings.Repeat("a", 11<<20) + `"}`
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))

	if err := v.DecodeJSON(req, &Frame{}); err == nil || err.Error() != "request body too large" {
		t.Errorf("expected too large error, got %v", err)
	}
}

func TestNewErrorBody(t *testing.T) {
	body := NewErrorBody(apperr.SubjectAmbiguity(apperr.ReasonNoFace, "No face detected"))
	if body.Error != "No face detected" || body.Kind != apperr.KindSubjectAmbiguity || body.Reason != apperr.ReasonNoFace {
		t.Errorf("unexpected body %+v", body)
	}

	plain := NewErrorBody(errors.New("boom"))
	if plain.Error != "boom" || plain.Kind != "" || plain.Reason != "" {
		t.Errorf("unexpected body %+v", plain)
	}
}
