package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Database    DatabaseConfig
	FaceService FaceServiceConfig
	Camera      CameraConfig
	Recognition RecognitionConfig
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type FaceServiceConfig struct {
	URL string // face detection/embedding server (defaults to http://localhost:8000)
	Dim int    // embedding vector length (defaults to 128)
}

type CameraConfig struct {
	Indices []int // device indices tried in order (defaults to 0,1,2)
	Width   int
	Height  int
}

type RecognitionConfig struct {
	Tolerance       float64       // maximum embedding distance still considered a match
	ConfidenceFloor float64       // minimum 1-distance required to act on a match
	FrameInterval   int           // match every Nth frame
	Cooldown        time.Duration // minimum gap between accepted registrations
	LoopDelay       time.Duration // per-iteration sleep of the worker loop
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

// envFloat reads an environment variable and parses it as a float in (0, 1].
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

// envIndices parses a comma-separated list of device indices.
func envIndices(key string, defaultVal []int) []int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return defaultVal
		}
		out = append(out, n)
	}
	return out
}

func Load() *Config {
	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		FaceService: FaceServiceConfig{
			URL: os.Getenv("FACE_SERVICE_URL"),
			Dim: envInt("EMBEDDING_DIM", 128),
		},
		Camera: CameraConfig{
			Indices: envIndices("CAMERA_INDICES", []int{0, 1, 2}),
			Width:   envInt("CAMERA_WIDTH", 640),
			Height:  envInt("CAMERA_HEIGHT", 480),
		},
		Recognition: RecognitionConfig{
			Tolerance:       envFloat("MATCH_TOLERANCE", 0.45),
			ConfidenceFloor: envFloat("MATCH_CONFIDENCE_FLOOR", 0.55),
			FrameInterval:   envInt("FRAME_INTERVAL", 3),
			Cooldown:        time.Duration(envInt("RECOGNITION_COOLDOWN_MS", 2000)) * time.Millisecond,
			LoopDelay:       time.Duration(envInt("LOOP_DELAY_MS", 20)) * time.Millisecond,
		},
	}
}
