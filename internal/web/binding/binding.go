// Package binding decodes and validates request payloads shared by the REST and
// WebSocket transports.
package binding

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kozaktomas/face-recognition/internal/apperr"
	"github.com/kozaktomas/face-recognition/internal/constants"
)

// StartEnrollment is the body of POST /api/enrollment/start.
type StartEnrollment struct {
	Name  string `json:"name" validate:"max=100"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

// Capture is the body of POST /api/enrollment/capture.
type Capture struct {
	Frame string `json:"frame" validate:"required"`
	Step  string `json:"step"`
}

// Frame carries a single base64 frame.
type Frame struct {
	Frame string `json:"frame" validate:"required"`
}

// ChallengeFrame is a frame processed for a challenge.
type ChallengeFrame struct {
	Frame     string `json:"frame" validate:"required"`
	Challenge string `json:"challenge" validate:"max=64"`
}

// ChallengeScore records the result of a challenge.
type ChallengeScore struct {
	Challenge string         `json:"challenge" validate:"required,max=64"`
	Score     float64        `json:"score" validate:"min=0,max=10"`
	Details   map[string]any `json:"details"`
}

// ErrorBody is the JSON error payload.
type ErrorBody struct {
	Error  string      `json:"error"`
	Kind   apperr.Kind `json:"kind,omitempty"`
	Reason string      `json:"reason,omitempty"`
}

// NewErrorBody builds the payload for err. Unclassified errors keep only the message.
func NewErrorBody(err error) ErrorBody {
	var e *apperr.Error
	if errors.As(err, &e) {
		return ErrorBody{Error: e.Message, Kind: e.Kind, Reason: e.Reason}
	}
	return ErrorBody{Error: err.Error()}
}

// Validator validates payloads and reports field names as they appear in JSON.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Struct validates dst and converts failures into a validation error.
func (v *Validator) Struct(dst any) error {
	err := v.validate.Struct(dst)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperr.Validation(apperr.ReasonInvalidRequest, "invalid request")
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return apperr.Validation(apperr.ReasonInvalidRequest, "%s is required", fe.Field())
	case "min", "max":
		return apperr.Validation(apperr.ReasonInvalidRequest, "%s must be %s %s", fe.Field(), bound(fe.Tag()), fe.Param())
	default:
		return apperr.Validation(apperr.ReasonInvalidRequest, "%s is not a valid %s", fe.Field(), fe.Tag())
	}
}

func bound(tag string) string {
	if tag == "min" {
		return "at least"
	}
	return "at most"
}

// Unmarshal decodes data into dst and validates it.
func (v *Validator) Unmarshal(data []byte, dst any) error {
	if len(data) > 0 {
		if err := json.Unmarshal(data, dst); err != nil {
			return apperr.Validation(apperr.ReasonInvalidRequest, "invalid request body")
		}
	}
	return v.Struct(dst)
}

// DecodeJSON reads a size-limited JSON body into dst and validates it. An empty
// body decodes as the zero value.
func (v *Validator) DecodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, constants.MaxFrameBodySize+1))
	if err != nil {
		return fmt.Errorf("reading request body: %w", err)
	}
	if len(body) > constants.MaxFrameBodySize {
		return apperr.Validation(apperr.ReasonInvalidRequest, "request body too large")
	}
	return v.Unmarshal(body, dst)
}
