// Package enrollment implements the guided multi-pose enrollment state machine.
package enrollment

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-recognition/internal/apperr"
	"github.com/kozaktomas/face-recognition/internal/config"
	"github.com/kozaktomas/face-recognition/internal/constants"
	"github.com/kozaktomas/face-recognition/internal/geometry"
	"github.com/kozaktomas/face-recognition/internal/imaging"
	"github.com/kozaktomas/face-recognition/internal/quality"
	"github.com/kozaktomas/face-recognition/internal/store"
)

const thumbnailPose = "front"

// ProfileStore is the subset of the embedding store used by enrollment.
type ProfileStore interface {
	Snapshot() *store.Snapshot
	Full() bool
	MaxProfiles() int
	NameTaken(name string) bool
	Add(ctx context.Context, p store.Profile) error
}

// Manager owns at most one active enrollment session.
type Manager struct {
	mu      sync.Mutex
	session *Session

	geometry geometry.Service
	store    ProfileStore
	gate     *quality.Gate
	poses    []config.PoseRequirement
	required map[string]int
	logger   logrus.FieldLogger

	now   func() time.Time
	newID func() string
}

// NewManager creates an enrollment manager. Poses are captured in the given order.
func NewManager(geo geometry.Service, profiles ProfileStore, gate *quality.Gate, poses []config.PoseRequirement, logger logrus.FieldLogger) *Manager {
	required := make(map[string]int, len(poses))
	for _, p := range poses {
		required[p.Pose] = p.Required
	}
	return &Manager{
		geometry: geo,
		store:    profiles,
		gate:     gate,
		poses:    poses,
		required: required,
		logger:   logger,
		now:      time.Now,
		newID: func() string {
			return uuid.New().String()[:constants.SessionIDLength]
		},
	}
}

func (m *Manager) totalRequired() int {
	total := 0
	for _, p := range m.poses {
		total += p.Required
	}
	return total
}

func (m *Manager) poseNames() []string {
	names := make([]string, len(m.poses))
	for i, p := range m.poses {
		names[i] = p.Pose
	}
	return names
}

// uniqueID returns a fresh id that no enrolled profile uses.
func (m *Manager) uniqueID() string {
	snap := m.store.Snapshot()
	for {
		id := m.newID()
		if !slices.ContainsFunc(snap.Profiles(), func(p store.Profile) bool { return p.ID == id }) {
			return id
		}
	}
}

// Start begins a new session, discarding any active one.
func (m *Manager) Start(name, color string) (StartResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return StartResult{}, apperr.Validation(apperr.ReasonEmptyName, "Name is required")
	}
	if m.store.Full() {
		return StartResult{}, apperr.Capacity(apperr.ReasonMaxProfiles, "Maximum %d profiles reached", m.store.MaxProfiles())
	}
	if m.store.NameTaken(name) {
		return StartResult{}, apperr.Conflict(apperr.ReasonDuplicateName, "Profile '%s' already exists", name)
	}
	if color == "" {
		color = constants.DefaultProfileColor
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		m.logger.WithFields(logrus.Fields{
			"session_id": m.session.ID,
			"captured":   m.session.Captured(),
		}).Info("discarding active enrollment session")
	}

	buckets := make(map[string][]geometry.Embedding, len(m.poses))
	for _, p := range m.poses {
		buckets[p.Pose] = nil
	}
	m.session = &Session{
		ID:        m.uniqueID(),
		Name:      name,
		Color:     color,
		Buckets:   buckets,
		StartedAt: m.now(),
	}
	m.logger.WithFields(logrus.Fields{"session_id": m.session.ID, "name": name}).Info("enrollment started")

	return StartResult{
		Status:          "started",
		ID:              m.session.ID,
		Name:            name,
		Poses:           m.poseNames(),
		RequiredSamples: maps.Clone(m.required),
		TotalRequired:   m.totalRequired(),
	}, nil
}

// checkCapture validates session and pose. Must be called with mu held.
func (m *Manager) checkCapture(pose string) (*Session, int, error) {
	if m.session == nil {
		return nil, 0, apperr.State(apperr.ReasonNoSession, "No active enrollment")
	}
	required, ok := m.required[pose]
	if !ok {
		return nil, 0, apperr.Validation(apperr.ReasonUnknownPose, "Invalid step: %s", pose)
	}
	if len(m.session.Buckets[pose]) >= required {
		return nil, 0, apperr.State(apperr.ReasonPoseComplete, "Step %s already completed", pose)
	}
	return m.session, required, nil
}

// Capture adds one sample for pose from a base64 frame. The geometry calls run
// without holding the lock; the session is re-validated before the sample is stored.
func (m *Manager) Capture(ctx context.Context, frame, pose string) (CaptureResult, error) {
	m.mu.Lock()
	session, required, err := m.checkCapture(pose)
	m.mu.Unlock()
	if err != nil {
		return CaptureResult{}, err
	}

	img, err := imaging.DecodeFrame(frame)
	if err != nil {
		return CaptureResult{}, apperr.Validation(apperr.ReasonInvalidFrame, "Invalid frame")
	}

	boxes, err := m.geometry.Detect(ctx, img)
	if err != nil {
		m.logger.WithError(err).Warn("face detection failed during capture")
		return CaptureResult{}, apperr.Validation(apperr.ReasonGeometryFailed, "Face detection failed")
	}
	switch {
	case len(boxes) == 0:
		return CaptureResult{}, apperr.SubjectAmbiguity(apperr.ReasonNoFace, "No face detected")
	case len(boxes) > 1:
		return CaptureResult{}, apperr.SubjectAmbiguity(apperr.ReasonMultipleFaces, "Multiple faces in frame, only yours should be visible")
	}

	embeddings, err := m.geometry.Encode(ctx, img, boxes)
	if err != nil || len(embeddings) == 0 || len(embeddings[0]) == 0 {
		if err != nil {
			m.logger.WithError(err).Warn("face encoding failed during capture")
		}
		return CaptureResult{}, apperr.Validation(apperr.ReasonEncodingFailed, "Could not compute face encoding")
	}
	embedding := embeddings[0].Clone()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != session {
		return CaptureResult{}, apperr.State(apperr.ReasonNoSession, "Enrollment session changed during capture")
	}
	if _, _, err := m.checkCapture(pose); err != nil {
		return CaptureResult{}, err
	}

	stepProgress := len(session.Buckets[pose]) + 1
	session.Buckets[pose] = append(session.Buckets[pose], embedding)
	session.Embeddings = append(session.Embeddings, embedding)

	var thumbnail *string
	if pose == m.thumbnailPose() && session.Thumbnail == "" {
		thumb, err := imaging.Thumbnail(img, boxes[0].Rect(), constants.ThumbnailPadding, constants.ThumbnailSize)
		if err != nil {
			m.logger.WithError(err).Warn("failed to build profile thumbnail")
		} else {
			session.Thumbnail = thumb
			thumbnail = &thumb
		}
	}

	m.logger.WithFields(logrus.Fields{
		"session_id": session.ID,
		"pose":       pose,
		"progress":   stepProgress,
		"total":      session.Captured(),
	}).Debug("enrollment sample captured")

	return CaptureResult{
		Status:        "captured",
		Step:          pose,
		StepProgress:  stepProgress,
		StepRequired:  required,
		TotalProgress: session.Captured(),
		TotalRequired: m.totalRequired(),
		Thumbnail:     thumbnail,
	}, nil
}

func (m *Manager) thumbnailPose() string {
	if _, ok := m.required[thumbnailPose]; ok || len(m.poses) == 0 {
		return thumbnailPose
	}
	return m.poses[0].Pose
}

// Complete turns the session into a persisted profile. On a store error the
// session stays active so the caller can retry.
func (m *Manager) Complete(ctx context.Context) (CompleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return CompleteResult{}, apperr.State(apperr.ReasonNoSession, "No active enrollment")
	}
	captured := m.session.Captured()
	if captured < constants.MinSamplesToComplete {
		return CompleteResult{}, apperr.State(apperr.ReasonInsufficientSamples,
			"At least %d samples required (captured: %d)", constants.MinSamplesToComplete, captured)
	}

	profile := store.Profile{
		ID:          m.session.ID,
		Name:        m.session.Name,
		Color:       m.session.Color,
		Embeddings:  m.session.Embeddings,
		SampleCount: captured,
		CreatedAt:   m.now().UTC(),
		Thumbnail:   m.session.Thumbnail,
	}

	var lookalike *store.Candidate
	if nearest := m.store.Snapshot().Nearest(geometry.Mean(profile.Embeddings), 1); len(nearest) > 0 {
		lookalike = &nearest[0]
	}

	if err := m.store.Add(ctx, profile); err != nil {
		return CompleteResult{}, err
	}

	m.logger.WithFields(logrus.Fields{
		"profile_id": profile.ID,
		"name":       profile.Name,
		"samples":    captured,
	}).Info("enrollment completed")
	m.session = nil

	return CompleteResult{
		Status:    "completed",
		Profile:   profile.Summary(),
		Lookalike: lookalike,
	}, nil
}

// Cancel discards the active session, if any.
func (m *Manager) Cancel() CancelResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		m.logger.WithField("session_id", m.session.ID).Info("enrollment cancelled")
	}
	m.session = nil
	return CancelResult{Status: "cancelled"}
}

// Status reports the progress of the active session.
func (m *Manager) Status() StatusResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return StatusResult{Active: false}
	}

	progress := make(map[string]PoseProgress, len(m.poses))
	for _, p := range m.poses {
		progress[p.Pose] = PoseProgress{
			Captured: len(m.session.Buckets[p.Pose]),
			Required: p.Required,
		}
	}
	return StatusResult{
		Active:        true,
		ID:            m.session.ID,
		Name:          m.session.Name,
		Progress:      progress,
		TotalCaptured: m.session.Captured(),
		TotalRequired: m.totalRequired(),
	}
}

// Feedback runs the quality gate on a live frame. It does not need an active session.
func (m *Manager) Feedback(ctx context.Context, frame string) (FeedbackResult, error) {
	img, err := imaging.DecodeFrame(frame)
	if err != nil {
		return FeedbackResult{Quality: quality.Report{Message: "Invalid frame"}}, nil
	}

	boxes, err := m.geometry.Detect(ctx, img)
	if err != nil {
		m.logger.WithError(err).Warn("face detection failed during feedback")
		return FeedbackResult{}, apperr.Validation(apperr.ReasonGeometryFailed, "Face detection failed")
	}

	switch {
	case len(boxes) == 0:
		return FeedbackResult{
			Quality: quality.Report{Reason: apperr.ReasonNoFace, Message: "No face detected"},
		}, nil
	case len(boxes) > 1:
		return FeedbackResult{
			Quality:   quality.Report{Reason: apperr.ReasonMultipleFaces, Message: "Too many faces, only yours should be visible"},
			FaceCount: len(boxes),
		}, nil
	}

	box := boxes[0]
	faceBox := box.XYWH()
	result := FeedbackResult{
		Quality:   m.gate.Assess(img, box),
		FaceCount: 1,
		FaceBox:   &faceBox,
	}

	if landmarks, err := m.geometry.Landmarks(ctx, img, boxes); err != nil {
		m.logger.WithError(err).Debug("landmarks unavailable for feedback")
	} else if len(landmarks) > 0 {
		if angle, ok := geometry.EstimateAngle(landmarks[0]); ok {
			result.Angle = &angle
		}
	}
	return result, nil
}
