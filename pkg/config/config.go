package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	CORS       CORSConfig
	Log        LogConfig
	Templates  TemplatesConfig
	Generation GenerationConfig
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// TemplatesConfig points at the two bundled PDF form templates. Both are
// loaded once at process start and treated as read-only.
type TemplatesConfig struct {
	WorksheetPath  string
	AssessmentPath string
}

// GenerationConfig tunes upload validation and archive lifetime.
type GenerationConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
	MaxUploadBytes  int64
	AllowedMIMEs    []string
	QueueBufferSize int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// With an explicit config file viper reports a missing file as a
		// plain *fs.PathError, not ConfigFileNotFoundError. Either way a
		// missing .env is fine; env vars alone are a valid setup.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Templates = TemplatesConfig{
		WorksheetPath:  v.GetString("TEMPLATE_WORKSHEET_PATH"),
		AssessmentPath: v.GetString("TEMPLATE_ASSESSMENT_PATH"),
	}

	maxUpload := v.GetInt64("GENERATION_MAX_UPLOAD_SIZE")
	if maxUpload <= 0 {
		maxUpload = 10 * 1024 * 1024
	}
	cfg.Generation = GenerationConfig{
		StorageDir:      v.GetString("GENERATION_STORAGE_DIR"),
		SignedURLSecret: v.GetString("GENERATION_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("GENERATION_SIGNED_URL_TTL"), time.Hour),
		CleanupInterval: parseDuration(v.GetString("GENERATION_CLEANUP_INTERVAL"), time.Hour),
		MaxUploadBytes:  maxUpload,
		AllowedMIMEs:    splitAndTrim(v.GetString("GENERATION_ALLOWED_MIME_TYPES")),
		QueueBufferSize: v.GetInt("GENERATION_QUEUE_BUFFER"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("TEMPLATE_WORKSHEET_PATH", "./templates/Worksheet-Stages-2C-and-3.pdf")
	v.SetDefault("TEMPLATE_ASSESSMENT_PATH", "./templates/Assessment-Form-Stages-2AB.pdf")

	v.SetDefault("GENERATION_STORAGE_DIR", "./generated")
	v.SetDefault("GENERATION_SIGNED_URL_SECRET", "dev_generation_secret")
	v.SetDefault("GENERATION_SIGNED_URL_TTL", "1h")
	v.SetDefault("GENERATION_CLEANUP_INTERVAL", "1h")
	v.SetDefault("GENERATION_MAX_UPLOAD_SIZE", 10*1024*1024)
	v.SetDefault("GENERATION_ALLOWED_MIME_TYPES", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet,application/zip,application/octet-stream")
	v.SetDefault("GENERATION_QUEUE_BUFFER", 16)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
