package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed enrollment.yaml
var enrollmentYAML []byte

type Config struct {
	Server      ServerConfig
	Geometry    GeometryConfig
	Storage     StorageConfig
	Database    DatabaseConfig
	Recognition RecognitionConfig
	Quality     QualityConfig
	Analytics   AnalyticsConfig
	Log         LogConfig
	Enrollment  EnrollmentConfig
}

type ServerConfig struct {
	Port           int
	Host           string
	AllowedOrigins []string // extra origins besides localhost (WEB_ALLOWED_ORIGINS, comma separated)
}

type GeometryConfig struct {
	URL            string // defaults to http://localhost:8000
	TimeoutSeconds int    // per-call timeout applied by the caller
}

type StorageConfig struct {
	Backend string // "file" or "postgres"
	File    string // gob file used by the file backend
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type RecognitionConfig struct {
	MaxProfiles      int
	FrameResizeWidth int
	MinFaceSize      int
	MatchThreshold   float64 // euclidean distance, not a percentage
	TargetFPS        int
	FrameBurst       int
}

type QualityConfig struct {
	MinBrightness   float64
	MaxBrightness   float64
	BlurThreshold   float64
	MinFaceRatio    float64
	MaxFaceRatio    float64
	MaxCenterOffset float64
}

type AnalyticsConfig struct {
	RetentionSeconds int
}

type LogConfig struct {
	Level string
	File  string // empty means stderr only
}

// PoseRequirement is the number of samples required for one enrollment pose.
type PoseRequirement struct {
	Pose     string `yaml:"pose"`
	Required int    `yaml:"required"`
}

type EnrollmentConfig struct {
	Poses []PoseRequirement `yaml:"poses"`
}

// TotalRequired returns the sum of all pose requirements.
func (c EnrollmentConfig) TotalRequired() int {
	total := 0
	for _, p := range c.Poses {
		total += p.Required
	}
	return total
}

// Validate checks that the pose list is non-empty, unique and positive.
func (c EnrollmentConfig) Validate() error {
	if len(c.Poses) == 0 {
		return fmt.Errorf("no enrollment poses configured")
	}
	seen := make(map[string]bool, len(c.Poses))
	for _, p := range c.Poses {
		name := strings.TrimSpace(p.Pose)
		if name == "" {
			return fmt.Errorf("enrollment pose with empty name")
		}
		if seen[name] {
			return fmt.Errorf("duplicate enrollment pose %q", name)
		}
		if p.Required <= 0 {
			return fmt.Errorf("enrollment pose %q requires %d samples, must be positive", name, p.Required)
		}
		seen[name] = true
	}
	return nil
}

// ParseEnrollment parses and validates a pose requirements YAML document.
func ParseEnrollment(data []byte) (EnrollmentConfig, error) {
	var cfg EnrollmentConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return EnrollmentConfig{}, fmt.Errorf("failed to parse enrollment poses: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return EnrollmentConfig{}, err
	}
	return cfg, nil
}

// DefaultEnrollment returns the embedded pose requirements.
func DefaultEnrollment() EnrollmentConfig {
	cfg, err := ParseEnrollment(enrollmentYAML)
	if err != nil {
		// embedded file, only a broken build can get here
		panic("failed to load embedded enrollment.yaml: " + err.Error())
	}
	return cfg
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a non-negative float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Load reads the configuration from the environment. The enrollment poses come from
// ENROLLMENT_POSES_FILE when set, otherwise from the embedded defaults.
func Load() (*Config, error) {
	enrollment := DefaultEnrollment()
	if path := os.Getenv("ENROLLMENT_POSES_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read enrollment poses file: %w", err)
		}
		if enrollment, err = ParseEnrollment(data); err != nil {
			return nil, err
		}
	}

	backend := strings.ToLower(envString("PROFILE_BACKEND", "file"))
	if backend != "file" && backend != "postgres" {
		return nil, fmt.Errorf("unknown PROFILE_BACKEND %q (expected file or postgres)", backend)
	}

	return &Config{
		Server: ServerConfig{
			Port:           envInt("WEB_PORT", 5001),
			Host:           envString("WEB_HOST", "0.0.0.0"),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Geometry: GeometryConfig{
			URL:            envString("GEOMETRY_URL", "http://localhost:8000"),
			TimeoutSeconds: envInt("GEOMETRY_TIMEOUT", 10),
		},
		Storage: StorageConfig{
			Backend: backend,
			File:    envString("PROFILE_FILE", "data/face_profiles.gob"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Recognition: RecognitionConfig{
			MaxProfiles:      envInt("MAX_PROFILES", 4),
			FrameResizeWidth: envInt("FRAME_RESIZE_WIDTH", 640),
			MinFaceSize:      envInt("MIN_FACE_SIZE", 40),
			MatchThreshold:   min(envFloat("MATCH_THRESHOLD", 0.6), 1),
			TargetFPS:        envInt("TARGET_FPS", 15),
			FrameBurst:       envInt("FRAME_BURST", 2),
		},
		Quality: QualityConfig{
			MinBrightness:   envFloat("MIN_BRIGHTNESS", 40),
			MaxBrightness:   envFloat("MAX_BRIGHTNESS", 220),
			BlurThreshold:   envFloat("BLUR_THRESHOLD", 50),
			MinFaceRatio:    envFloat("MIN_FACE_RATIO", 0.08),
			MaxFaceRatio:    envFloat("MAX_FACE_RATIO", 0.85),
			MaxCenterOffset: envFloat("MAX_CENTER_OFFSET", 0.25),
		},
		Analytics: AnalyticsConfig{
			RetentionSeconds: envInt("ANALYTICS_RETENTION_SECONDS", 600),
		},
		Log: LogConfig{
			Level: envString("LOG_LEVEL", "info"),
			File:  os.Getenv("LOG_FILE"),
		},
		Enrollment: enrollment,
	}, nil
}
