// Package config loads the server configuration from the environment once at
// startup. A .env file in the working directory is honored when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"

	MediaCloudinary = "cloudinary"
	MediaS3         = "s3"
	MediaNone       = "none"
)

type Config struct {
	// Server
	Port          string
	GinMode       string
	PublicBaseURL string
	CORSOrigins   []string

	// Storage
	StoreBackend      string
	MongoURI          string
	MongoDatabase     string
	MongoTransactions bool

	// Auth
	JWTSecret string
	TokenTTL  time.Duration

	// Rate limit
	RateLimitPerMinute int

	// Video checks
	YouTubeAPIKey    string
	MaxVideoDuration time.Duration

	// Media
	MediaBackend    string
	CloudinaryURL   string
	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	S3PublicBaseURL string

	// Push
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string
}

// Load reads the configuration. Missing required variables are reported together.
func Load() (*Config, error) {
	// .env is optional; deployments set real environment variables.
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		GinMode:         getEnv("GIN_MODE", "debug"),
		PublicBaseURL:   strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:5173"), "/"),
		CORSOrigins:     getList("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000"),
		StoreBackend:    getEnv("STORE_BACKEND", StoreMongo),
		MongoURI:        os.Getenv("MONGODB_URI"),
		MongoDatabase:   getEnv("MONGODB_DATABASE", "storyreel"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		YouTubeAPIKey:   os.Getenv("YOUTUBE_API_KEY"),
		MediaBackend:    getEnv("MEDIA_BACKEND", MediaNone),
		CloudinaryURL:   os.Getenv("CLOUDINARY_URL"),
		S3Bucket:        os.Getenv("S3_BUCKET"),
		S3Region:        getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:      os.Getenv("S3_ENDPOINT"),
		S3AccessKey:     os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:     os.Getenv("S3_SECRET_KEY"),
		S3PublicBaseURL: strings.TrimRight(os.Getenv("S3_PUBLIC_BASE_URL"), "/"),
		VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
		VAPIDSubject:    getEnv("VAPID_SUBJECT", "mailto:admin@storyreel.app"),
	}

	var errs []error

	var err error
	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", 24*time.Hour); err != nil {
		errs = append(errs, err)
	}
	if cfg.MaxVideoDuration, err = getDuration("MAX_VIDEO_DURATION", 15*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.RateLimitPerMinute, err = getInt("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		errs = append(errs, err)
	}
	if cfg.MongoTransactions, err = getBool("MONGODB_TRANSACTIONS", false); err != nil {
		errs = append(errs, err)
	}

	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must be set"))
	}
	switch cfg.StoreBackend {
	case StoreMongo:
		if cfg.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI must be set"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreMongo, StoreMemory, cfg.StoreBackend))
	}
	switch cfg.MediaBackend {
	case MediaNone:
	case MediaCloudinary:
		if cfg.CloudinaryURL == "" {
			errs = append(errs, errors.New("CLOUDINARY_URL must be set for MEDIA_BACKEND=cloudinary"))
		}
	case MediaS3:
		if cfg.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET must be set for MEDIA_BACKEND=s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown MEDIA_BACKEND %q", cfg.MediaBackend))
	}
	if cfg.RateLimitPerMinute <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTE must be positive"))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// PushEnabled reports whether both VAPID keys are configured.
func (c *Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

// getList splits a comma list. A variable that is set but empty yields an empty
// list rather than the fallback.
func getList(key, fallback string) []string {
	v, ok := os.LookupEnv(key)
	if !ok {
		v = fallback
	}
	return splitList(v)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
