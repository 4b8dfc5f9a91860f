package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Camera      CameraConfig
	Vision      VisionConfig
	Recognition RecognitionConfig
	Enrollment  EnrollmentConfig
	Database    DatabaseConfig
	Web         WebConfig
}

type CameraConfig struct {
	URL string // MJPEG stream URL of the camera device (e.g., http://cam:8081/stream)
}

type VisionConfig struct {
	URL string // base URL of the detection/embedding sidecar, defaults to http://localhost:8000
}

type RecognitionConfig struct {
	MatchThreshold float64       // minimum cosine similarity for a positive match
	EmbeddingDim   int           // fixed embedding dimension D for the deployment
	MinFaceSize    int           // boxes smaller than this (either side) are ignored
	FaceCropSize   int           // face crops are scaled to this square size before embedding
	DebounceWindow time.Duration // suppress repeated match events for the same identity
	MinDwell       time.Duration // minimum time after check-in before a check-out is accepted
	UseHNSW        bool          // accelerate matching with an in-memory HNSW index
}

type EnrollmentConfig struct {
	Samples       int           // embeddings collected per enrollment run
	SamplePause   time.Duration // pause between accepted samples to avoid saturating the device
	MinBrightness float64       // frames with mean luma below this are skipped (0-255)
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // maximum open connections (default 25)
	MaxIdleConns int    // maximum idle connections (default 5)
}

type WebConfig struct {
	Host string
	Port int
}

// yamlDefaults mirrors defaults.yaml.
type yamlDefaults struct {
	Recognition struct {
		MatchThreshold        float64 `yaml:"match_threshold"`
		EmbeddingDim          int     `yaml:"embedding_dim"`
		MinFaceSize           int     `yaml:"min_face_size"`
		FaceCropSize          int     `yaml:"face_crop_size"`
		DebounceWindowSeconds int     `yaml:"debounce_window_seconds"`
		MinDwellSeconds       int     `yaml:"min_dwell_seconds"`
	} `yaml:"recognition"`
	Enrollment struct {
		Samples       int     `yaml:"samples"`
		SamplePauseMs int     `yaml:"sample_pause_ms"`
		MinBrightness float64 `yaml:"min_brightness"`
	} `yaml:"enrollment"`
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

// envFloat reads an environment variable and parses it as a float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return defaultVal
	}
	return b
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func Load() *Config {
	var d yamlDefaults
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		// defaults.yaml is embedded, so this can only happen on a bad edit.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	dwell := envInt("MIN_DWELL_SECONDS", d.Recognition.MinDwellSeconds)
	if os.Getenv("MIN_DWELL_SECONDS") == "0" {
		// envInt rejects non-positive values, but a zero dwell interval is a
		// legitimate policy (immediate checkout on next sighting).
		dwell = 0
	}

	return &Config{
		Camera: CameraConfig{
			URL: os.Getenv("CAMERA_URL"),
		},
		Vision: VisionConfig{
			URL: os.Getenv("VISION_URL"),
		},
		Recognition: RecognitionConfig{
			MatchThreshold: envFloat("MATCH_THRESHOLD", d.Recognition.MatchThreshold),
			EmbeddingDim:   envInt("EMBEDDING_DIM", d.Recognition.EmbeddingDim),
			MinFaceSize:    envInt("MIN_FACE_SIZE", d.Recognition.MinFaceSize),
			FaceCropSize:   d.Recognition.FaceCropSize,
			DebounceWindow: time.Duration(envInt("DEBOUNCE_WINDOW_SECONDS", d.Recognition.DebounceWindowSeconds)) * time.Second,
			MinDwell:       time.Duration(dwell) * time.Second,
			UseHNSW:        envBool("USE_HNSW", false),
		},
		Enrollment: EnrollmentConfig{
			Samples:       envInt("ENROLL_SAMPLES", d.Enrollment.Samples),
			SamplePause:   time.Duration(envInt("ENROLL_SAMPLE_PAUSE_MS", d.Enrollment.SamplePauseMs)) * time.Millisecond,
			MinBrightness: envFloat("ENROLL_MIN_BRIGHTNESS", d.Enrollment.MinBrightness),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Web: WebConfig{
			Host: envString("WEB_HOST", "0.0.0.0"),
			Port: envInt("WEB_PORT", 8080),
		},
	}
}
