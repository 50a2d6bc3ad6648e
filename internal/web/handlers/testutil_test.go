package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-recognition/internal/analytics"
	"github.com/kozaktomas/face-recognition/internal/config"
	"github.com/kozaktomas/face-recognition/internal/enrollment"
	"github.com/kozaktomas/face-recognition/internal/geometry"
	"github.com/kozaktomas/face-recognition/internal/geometry/mock"
	"github.com/kozaktomas/face-recognition/internal/logging"
	"github.com/kozaktomas/face-recognition/internal/matcher"
	"github.com/kozaktomas/face-recognition/internal/pipeline"
	"github.com/kozaktomas/face-recognition/internal/quality"
	"github.com/kozaktomas/face-recognition/internal/store"
	storemock "github.com/kozaktomas/face-recognition/internal/store/mock"
	"github.com/kozaktomas/face-recognition/internal/web/binding"
)

var testFaceBox = geometry.BoundingBox{Top: 40, Right: 120, Bottom: 120, Left: 40}

// testDeps wires the core against in-memory fakes
type testDeps struct {
	geo         *mock.Service
	persistence *storemock.MockPersistence
	store       *store.Store
	manager     *enrollment.Manager
	pipeline    *pipeline.Pipeline
	aggregator  *analytics.Aggregator
	validator   *binding.Validator
}

func newTestDeps(t *testing.T, seed ...store.Profile) *testDeps {
	t.Helper()
	logger := logging.Discard()

	persistence := storemock.NewMockPersistence(seed...)
	s := store.New(persistence, 4, logger)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("failed to load store: %v", err)
	}

	geo := mock.New()
	geo.SetFace(testFaceBox, geometry.Embedding{0.1, 0.2, 0.3})

	gate := quality.New(config.QualityConfig{
		MinBrightness: 40, MaxBrightness: 220, BlurThreshold: 50,
		MinFaceRatio: 0.08, MaxFaceRatio: 0.85, MaxCenterOffset: 0.25,
	})
	aggregator := analytics.New(600)
	m := matcher.New(s, 0.6)

	return &testDeps{
		geo:         geo,
		persistence: persistence,
		store:       s,
		manager:     enrollment.NewManager(geo, s, gate, config.DefaultEnrollment().Poses, logger),
		pipeline: pipeline.New(geo, m, aggregator, config.RecognitionConfig{
			FrameResizeWidth: 640, MinFaceSize: 40, MatchThreshold: 0.6,
		}, logger),
		aggregator: aggregator,
		validator:  binding.NewValidator(),
	}
}

// testFrame returns a flat gray 160x160 PNG as base64
func testFrame(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 160, 160))
	for y := range 160 {
		for x := range 160 {
			img.Set(x, y, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode frame: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// jsonRequest creates a request with a JSON body
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var reader *strings.Reader
	switch b := body.(type) {
	case nil:
		reader = strings.NewReader("")
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = strings.NewReader(string(data))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}

// assertAppError checks the kind and reason of a classified error response
func assertAppError(t *testing.T, recorder *httptest.ResponseRecorder, status int, kind, reason string) {
	t.Helper()
	assertStatusCode(t, recorder, status)
	var body binding.ErrorBody
	parseJSONResponse(t, recorder, &body)
	if string(body.Kind) != kind || body.Reason != reason {
		t.Errorf("expected %s/%s, got %s/%s (%s)", kind, reason, body.Kind, body.Reason, body.Error)
	}
}

const testTimeout = 5 * time.Second
