package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultOriginalsSubDir  = "originals"
	DefaultThumbnailsSubDir = "thumbnails"
	DefaultAvatarsSubDir    = "avatars"
	DefaultEventsSubDir     = "events"
)

const (
	defaultImageQueueSize      = 200
	defaultNumImageWorkers     = 4
	defaultRecognitionWorkers  = 2
	defaultRecognitionPause    = 100 * time.Millisecond
	defaultToolTimeout         = 8 * time.Second
	defaultMaxBatchSize        = 100
	defaultAutoProcessLimit    = 50
	defaultMaxUploadBytes      = 50 << 20
	defaultMinConfidence       = "medium"
	defaultSuggestionThreshold = 0.6
)

type Config struct {
	// storage root; originals, thumbnails, avatars and events live below it
	StoragePath    string
	OriginalsPath  string
	ThumbnailsPath string
	AvatarsPath    string
	EventsPath     string

	DatabasePath string
	DBLogLevel   string

	Port        string
	CORSOrigins []string

	// external converters used by the raw thumbnail chain
	RawConverter       string
	SecondaryConverter string
	ToolTimeout        time.Duration

	// image task workers (thumbnail, metadata)
	ImageQueueSize  int
	NumImageWorkers int

	// batch recognition
	RecognitionWorkers   int
	RecognitionPause     time.Duration
	MaxBatchSize         int
	DefaultMinConfidence string
	SuggestionThreshold  float64

	// scheduled auto processing, empty cron disables it
	AutoProcessCron  string
	AutoProcessLimit int

	MaxUploadBytes int64
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvDurationOrDefault(envVar string, defaultVal time.Duration) time.Duration {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := time.ParseDuration(valStr)
	if err != nil || val < 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %s. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvFloatOrDefault(envVar string, defaultVal float64) float64 {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil || val < 0 || val > 1 {
		log.Printf("Warning: Invalid %s '%s'. Using default %.2f. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func LoadConfig() (Config, error) {
	storage := getEnvOrDefault("UPLOAD_PATH", filepath.Join(".", "uploads"))
	absStorage, err := filepath.Abs(storage)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for upload path '%s': %w", storage, err)
	}

	minConfidence := strings.ToLower(getEnvOrDefault("DEFAULT_MIN_CONFIDENCE", defaultMinConfidence))
	switch minConfidence {
	case "low", "medium", "high":
	default:
		return Config{}, fmt.Errorf("invalid DEFAULT_MIN_CONFIDENCE '%s': must be low, medium or high", minConfidence)
	}

	cfg := Config{
		StoragePath:    absStorage,
		OriginalsPath:  filepath.Join(absStorage, DefaultOriginalsSubDir),
		ThumbnailsPath: filepath.Join(absStorage, DefaultThumbnailsSubDir),
		AvatarsPath:    filepath.Join(absStorage, DefaultAvatarsSubDir),
		EventsPath:     filepath.Join(absStorage, DefaultEventsSubDir),

		DatabasePath: getEnvOrDefault("DATABASE_PATH", "photos.db"),
		DBLogLevel:   strings.ToLower(getEnvOrDefault("DB_LOG_LEVEL", "warn")),

		Port:        getEnvOrDefault("PORT", "3001"),
		CORSOrigins: splitList(getEnvOrDefault("CORS_ORIGINS", "http://localhost:5173")),

		RawConverter:       getEnvOrDefault("RAW_CONVERTER", "dcraw"),
		SecondaryConverter: getEnvOrDefault("SECONDARY_CONVERTER", "convert"),
		ToolTimeout:        getEnvDurationOrDefault("TOOL_TIMEOUT", defaultToolTimeout),

		ImageQueueSize:  getEnvIntOrDefault("IMAGE_QUEUE_SIZE", defaultImageQueueSize),
		NumImageWorkers: getEnvIntOrDefault("NUM_IMAGE_WORKERS", defaultNumImageWorkers),

		RecognitionWorkers:   getEnvIntOrDefault("RECOGNITION_WORKERS", defaultRecognitionWorkers),
		RecognitionPause:     getEnvDurationOrDefault("RECOGNITION_PAUSE", defaultRecognitionPause),
		MaxBatchSize:         getEnvIntOrDefault("MAX_BATCH_SIZE", defaultMaxBatchSize),
		DefaultMinConfidence: minConfidence,
		SuggestionThreshold:  getEnvFloatOrDefault("SUGGESTION_THRESHOLD", defaultSuggestionThreshold),

		AutoProcessCron:  os.Getenv("AUTO_PROCESS_CRON"),
		AutoProcessLimit: getEnvIntOrDefault("AUTO_PROCESS_LIMIT", defaultAutoProcessLimit),

		MaxUploadBytes: int64(getEnvIntOrDefault("MAX_UPLOAD_BYTES", defaultMaxUploadBytes)),
	}

	return cfg, nil
}
