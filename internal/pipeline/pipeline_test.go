package pipeline_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/face-recognition/internal/analytics"
	"github.com/kozaktomas/face-recognition/internal/apperr"
	"github.com/kozaktomas/face-recognition/internal/config"
	"github.com/kozaktomas/face-recognition/internal/geometry"
	"github.com/kozaktomas/face-recognition/internal/geometry/mock"
	"github.com/kozaktomas/face-recognition/internal/logging"
	"github.com/kozaktomas/face-recognition/internal/matcher"
	"github.com/kozaktomas/face-recognition/internal/pipeline"
	"github.com/kozaktomas/face-recognition/internal/store"
)

var aliceBox = geometry.BoundingBox{Top: 100, Right: 300, Bottom: 300, Left: 100}

type recordingSink struct {
	mu     sync.Mutex
	frames [][]analytics.Detection
	fps    []float64
}

func (s *recordingSink) Track(faces []analytics.Detection, fps, latencyMS float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, faces)
	s.fps = append(s.fps, fps)
}

func encodeFrame(t *testing.T, width, height int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.Set(x, y, color.RGBA{R: 90, G: 120, B: 150, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func recognitionConfig() config.RecognitionConfig {
	return config.RecognitionConfig{
		MaxProfiles:      4,
		FrameResizeWidth: 640,
		MinFaceSize:      40,
		MatchThreshold:   0.6,
	}
}

type fixture struct {
	pipeline *pipeline.Pipeline
	geo      *mock.Service
	matcher  *matcher.Matcher
	sink     *recordingSink
	store    *store.Store
}

func newFixture(t *testing.T, profiles ...store.Profile) *fixture {
	t.Helper()
	s := store.New(nil, 4, logging.Discard())
	for _, p := range profiles {
		if err := s.Add(context.Background(), p); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	geo := mock.New()
	m := matcher.New(s, 0.6)
	sink := &recordingSink{}
	p := pipeline.New(geo, m, sink, recognitionConfig(), logging.Discard())
	return &fixture{pipeline: p, geo: geo, matcher: m, sink: sink, store: s}
}

func alice() store.Profile {
	return store.Profile{
		ID:         "a1",
		Name:       "Alice",
		Color:      "#ff0000",
		Embeddings: []geometry.Embedding{{0.1, 0.2, 0.3}},
	}
}

func TestPipeline_UndecodableFrame(t *testing.T) {
	f := newFixture(t)

	for _, frame := range []string{"", "not base64 !!", base64.StdEncoding.EncodeToString([]byte("not an image"))} {
		res, err := f.pipeline.Process(context.Background(), frame)
		if err != nil || res != nil {
			t.Errorf("Process(%q) = %v, %v; want nil, nil", frame, res, err)
		}
	}
	if len(f.sink.frames) != 0 {
		t.Error("undecodable frames must not reach analytics")
	}
	if f.pipeline.Performance().FrameCount != 0 {
		t.Error("undecodable frames must not be counted")
	}
}

func TestPipeline_RecognizesKnownFace(t *testing.T) {
	f := newFixture(t, alice())
	f.geo.SetFace(aliceBox, geometry.Embedding{0.1, 0.2, 0.3})

	res, err := f.pipeline.Process(context.Background(), encodeFrame(t, 400, 400))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if res.FaceCount != 1 || len(res.Faces) != 1 {
		t.Fatalf("expected one face, got %+v", res)
	}
	face := res.Faces[0]
	if face.Name != "Alice" || face.Confidence != 1 || face.Color != "#ff0000" || face.ProfileID == nil || *face.ProfileID != "a1" {
		t.Errorf("unexpected face %+v", face)
	}
	if face.Box != [4]int{100, 100, 200, 200} {
		t.Errorf("unexpected box %v", face.Box)
	}
	for _, stage := range []string{"decode", "preprocess", "detection", "encoding", "recognition", "total"} {
		if _, ok := res.PipelineTiming[stage]; !ok {
			t.Errorf("missing timing for %s", stage)
		}
	}
	if _, ok := res.PipelineTiming["landmarks"]; ok {
		t.Error("landmarks timing without show_landmarks")
	}
	if res.Timestamp == 0 {
		t.Error("expected timestamp")
	}

	if len(f.sink.frames) != 1 || f.sink.frames[0][0].Name != "Alice" {
		t.Errorf("analytics not fed before return: %+v", f.sink.frames)
	}
}

func TestPipeline_EmptyStoreGivesUnknown(t *testing.T) {
	f := newFixture(t)
	f.geo.SetFace(aliceBox, geometry.Embedding{0.1, 0.2, 0.3})

	res, err := f.pipeline.Process(context.Background(), encodeFrame(t, 400, 400))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(res.Faces) != 1 || res.Faces[0].Name != "unknown" || res.Faces[0].Confidence != 0 || res.Faces[0].ProfileID != nil {
		t.Errorf("expected unknown with confidence 0, got %+v", res.Faces)
	}
}

func TestPipeline_NoFaces(t *testing.T) {
	f := newFixture(t, alice())

	res, err := f.pipeline.Process(context.Background(), encodeFrame(t, 100, 100))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if res.Faces == nil || len(res.Faces) != 0 || res.FaceCount != 0 {
		t.Errorf("expected empty face list, got %+v", res.Faces)
	}
	if _, encode, _ := f.geo.Calls(); encode != 0 {
		t.Errorf("encode must not run without faces, got %d calls", encode)
	}
}

func TestPipeline_ResizesWideFrames(t *testing.T) {
	f := newFixture(t)
	var width, height int
	f.geo.DetectFunc = func(img image.Image) []geometry.BoundingBox {
		width, height = img.Bounds().Dx(), img.Bounds().Dy()
		return nil
	}

	if _, err := f.pipeline.Process(context.Background(), encodeFrame(t, 1280, 720)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if width != 640 || height != 360 {
		t.Errorf("expected 640x360, got %dx%d", width, height)
	}

	if _, err := f.pipeline.Process(context.Background(), encodeFrame(t, 320, 240)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if width != 320 || height != 240 {
		t.Errorf("narrow frames must not be resized, got %dx%d", width, height)
	}
}

func TestPipeline_DropsSmallFaces(t *testing.T) {
	f := newFixture(t, alice())
	small := geometry.BoundingBox{Top: 0, Right: 30, Bottom: 60, Left: 0}
	f.geo.SetFaces(
		[]geometry.BoundingBox{small, aliceBox},
		[]geometry.Embedding{{0.1, 0.2, 0.3}},
	)
	var encoded []geometry.BoundingBox
	f.geo.EncodeFunc = func(img image.Image, boxes []geometry.BoundingBox) []geometry.Embedding {
		encoded = boxes
		return []geometry.Embedding{{0.1, 0.2, 0.3}}
	}

	res, err := f.pipeline.Process(context.Background(), encodeFrame(t, 400, 400))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(encoded) != 1 || encoded[0] != aliceBox {
		t.Errorf("expected only the large box to be encoded, got %v", encoded)
	}
	if res.FaceCount != 1 {
		t.Errorf("expected 1 face, got %d", res.FaceCount)
	}
}

func TestPipeline_UnencodedFaceKeepsPairing(t *testing.T) {
	f := newFixture(t, alice())
	stranger := geometry.BoundingBox{Top: 10, Right: 110, Bottom: 110, Left: 10}
	f.geo.SetFaces([]geometry.BoundingBox{stranger, aliceBox}, nil)
	f.geo.EncodeFunc = func(img image.Image, boxes []geometry.BoundingBox) []geometry.Embedding {
		return []geometry.Embedding{nil, {0.1, 0.2, 0.3}}
	}

	res, err := f.pipeline.Process(context.Background(), encodeFrame(t, 400, 400))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if res.FaceCount != 1 || len(res.Faces) != 1 {
		t.Fatalf("expected only the encoded face, got %+v", res.Faces)
	}
	if face := res.Faces[0]; face.Name != "Alice" || face.Box != aliceBox.XYWH() {
		t.Errorf("Alice must stay on her own box, got %+v", face)
	}
	if len(f.sink.frames) != 1 || len(f.sink.frames[0]) != 1 {
		t.Errorf("expected one detection in analytics, got %+v", f.sink.frames)
	}

	rows, err := f.pipeline.Confusion(context.Background(), encodeFrame(t, 400, 400))
	if err != nil {
		t.Fatalf("Confusion failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Box != aliceBox.XYWH() || rows[0].Similarities["Alice"] != 1 {
		t.Errorf("unexpected confusion rows %+v", rows)
	}
}

func TestPipeline_GeometryErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*mock.Service)
	}{
		{"detect", func(s *mock.Service) { s.DetectErr = errors.New("timeout") }},
		{"encode", func(s *mock.Service) { s.EncodeErr = errors.New("timeout") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, alice())
			f.geo.SetFace(aliceBox, geometry.Embedding{0.1, 0.2, 0.3})
			tt.setup(f.geo)

			res, err := f.pipeline.Process(context.Background(), encodeFrame(t, 400, 400))
			if res != nil {
				t.Errorf("expected no result, got %+v", res)
			}
			if apperr.KindOf(err) != apperr.KindValidation || apperr.ReasonOf(err) != apperr.ReasonGeometryFailed {
				t.Errorf("expected geometry_failed validation error, got %v", err)
			}
			if len(f.sink.frames) != 0 || f.pipeline.Performance().FrameCount != 0 {
				t.Error("failed frames must not change pipeline state")
			}
		})
	}
}

func TestPipeline_Landmarks(t *testing.T) {
	f := newFixture(t, alice())
	f.geo.SetFace(aliceBox, geometry.Embedding{0.1, 0.2, 0.3})
	f.geo.Landmark = []geometry.LandmarkSet{{"chin": {{X: 1, Y: 2}}}}

	show := true
	if _, err := f.pipeline.UpdateSettings(pipeline.SettingsUpdate{ShowLandmarks: &show}); err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}

	res, err := f.pipeline.Process(context.Background(), encodeFrame(t, 400, 400))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(res.Faces[0].Landmarks["chin"]) != 1 {
		t.Errorf("expected landmarks attached to face, got %+v", res.Faces[0])
	}
	if _, ok := res.PipelineTiming["landmarks"]; !ok {
		t.Error("expected landmarks timing")
	}

	f.geo.LandmarksErr = errors.New("unavailable")
	res, err = f.pipeline.Process(context.Background(), encodeFrame(t, 400, 400))
	if err != nil {
		t.Fatalf("landmark failure must not fail the frame: %v", err)
	}
	if res.Faces[0].Landmarks != nil {
		t.Error("expected no landmarks after failure")
	}
}

func TestPipeline_SettingsApplyOnNextFrame(t *testing.T) {
	f := newFixture(t, alice())
	f.geo.SetFace(aliceBox, geometry.Embedding{0.1, 0.2, 0.7})

	strictness := 80.0
	settings, err := f.pipeline.UpdateSettings(pipeline.SettingsUpdate{Threshold: &strictness})
	if err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}
	if settings.Threshold < 0.199 || settings.Threshold > 0.201 {
		t.Errorf("expected distance 0.2, got %v", settings.Threshold)
	}
	if f.matcher.Threshold() != 0.6 {
		t.Error("threshold must not change before the next frame")
	}
	if got := f.pipeline.Performance().Settings.Threshold; got != settings.Threshold {
		t.Errorf("performance should report pending settings, got %v", got)
	}

	res, err := f.pipeline.Process(context.Background(), encodeFrame(t, 400, 400))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if f.matcher.Threshold() != settings.Threshold {
		t.Errorf("threshold not applied, got %v", f.matcher.Threshold())
	}
	if res.Faces[0].Name != "unknown" {
		t.Errorf("distance 0.4 must be unknown at strictness 80, got %+v", res.Faces[0])
	}
}

func TestPipeline_InvalidSettings(t *testing.T) {
	f := newFixture(t)

	bad := 150.0
	show := true
	_, err := f.pipeline.UpdateSettings(pipeline.SettingsUpdate{Threshold: &bad, ShowLandmarks: &show})
	if apperr.ReasonOf(err) != apperr.ReasonInvalidThreshold {
		t.Fatalf("expected invalid_threshold, got %v", err)
	}
	if s := f.pipeline.Performance().Settings; s.ShowLandmarks || s.Threshold != 0.6 {
		t.Errorf("rejected update must not change settings, got %+v", s)
	}
}

func TestPipeline_FPS(t *testing.T) {
	f := newFixture(t)
	clock := time.Unix(1_700_000_000, 0)
	pipeline.SetClock(f.pipeline, func() time.Time { return clock })
	frame := encodeFrame(t, 64, 64)

	for _, step := range []time.Duration{0, 500 * time.Millisecond, 500 * time.Millisecond} {
		clock = clock.Add(step)
		if _, err := f.pipeline.Process(context.Background(), frame); err != nil {
			t.Fatalf("Process failed: %v", err)
		}
	}
	if fps := f.pipeline.Performance().FPS; fps != 3 {
		t.Errorf("expected fps 3 after 3 frames in 1s, got %v", fps)
	}

	clock = clock.Add(250 * time.Millisecond)
	res, _ := f.pipeline.Process(context.Background(), frame)
	if res.FPS != 3 {
		t.Errorf("fps must hold between boundaries, got %v", res.FPS)
	}
	if f.sink.fps[2] != 3 || f.sink.fps[1] != 0 {
		t.Errorf("unexpected fps fed to analytics %v", f.sink.fps)
	}

	perf := f.pipeline.Performance()
	if perf.FrameCount != 4 {
		t.Errorf("expected 4 frames, got %d", perf.FrameCount)
	}
	perf.PipelineTiming["total"] = 999
	if f.pipeline.Performance().PipelineTiming["total"] == 999 {
		t.Error("pipeline timing must be returned as a copy")
	}
}

func TestPipeline_Confusion(t *testing.T) {
	f := newFixture(t, alice(), store.Profile{
		ID: "b1", Name: "Bob", Embeddings: []geometry.Embedding{{0.5, 0.2, 0.3}},
	})
	f.geo.SetFace(aliceBox, geometry.Embedding{0.1, 0.2, 0.3})

	rows, err := f.pipeline.Confusion(context.Background(), encodeFrame(t, 400, 400))
	if err != nil {
		t.Fatalf("Confusion failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Similarities["Alice"] != 1 || rows[0].Similarities["Bob"] != 0.6 {
		t.Errorf("unexpected similarities %+v", rows[0].Similarities)
	}

	rows, err = f.pipeline.Confusion(context.Background(), "garbage")
	if err != nil || rows != nil {
		t.Errorf("undecodable frame: got %v, %v", rows, err)
	}
}
