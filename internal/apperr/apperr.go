// Package apperr defines the error taxonomy shared by the recognition core and the transport.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the transport layer.
type Kind string

// Error kinds.
const (
	KindValidation       Kind = "validation"
	KindCapacity         Kind = "capacity"
	KindConflict         Kind = "conflict"
	KindState            Kind = "state"
	KindSubjectAmbiguity Kind = "subject_ambiguity"
)

// Reason codes carried by errors from the core.
const (
	ReasonEmptyName           = "empty_name"
	ReasonInvalidFrame        = "invalid_frame"
	ReasonUnknownPose         = "unknown_pose"
	ReasonEncodingFailed      = "encoding_failed"
	ReasonGeometryFailed      = "geometry_failed"
	ReasonInvalidThreshold    = "invalid_threshold"
	ReasonMaxProfiles         = "max_profiles"
	ReasonDuplicateName       = "duplicate_name"
	ReasonNoSession           = "no_session"
	ReasonPoseComplete        = "pose_complete"
	ReasonInsufficientSamples = "insufficient_samples"
	ReasonNoFace              = "no_face"
	ReasonMultipleFaces       = "multiple_faces"
	ReasonInvalidRequest      = "invalid_request"
)

// Error is a classified, human-readable error.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, reason, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Validation reports bad or missing input.
func Validation(reason, format string, args ...any) *Error {
	return newError(KindValidation, reason, format, args...)
}

// Capacity reports that the profile limit has been reached.
func Capacity(reason, format string, args ...any) *Error {
	return newError(KindCapacity, reason, format, args...)
}

// Conflict reports a duplicate resource.
func Conflict(reason, format string, args ...any) *Error {
	return newError(KindConflict, reason, format, args...)
}

// State reports an operation that is invalid for the current state.
func State(reason, format string, args ...any) *Error {
	return newError(KindState, reason, format, args...)
}

// SubjectAmbiguity reports zero or multiple faces where exactly one is required.
func SubjectAmbiguity(reason, format string, args ...any) *Error {
	return newError(KindSubjectAmbiguity, reason, format, args...)
}

// KindOf returns the kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ReasonOf returns the reason code of err, or "" if err is not an *Error.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
