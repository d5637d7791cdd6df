package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr       string
	CORSOrigin string

	// SeedFile overrides the embedded mock dataset when set.
	SeedFile string
	// ActorID is the signed-in actor. Admin and DarkMode are session
	// settings passed to the app explicitly.
	ActorID  string
	Admin    bool
	DarkMode bool

	NarrationEnabled bool
	NarrationWPM     int

	// Redis change feed; empty disables it
	RedisURL    string
	FeedChannel string

	// Meilisearch mirror; empty URL disables it
	MeiliURL       string
	MeiliMasterKey string

	// MinIO media presigning; empty endpoint disables it
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool
	PresignTTL     time.Duration

	MetricsAddr string
}

// Load reads configuration from the environment after merging .env from the
// working directory, if present. Variables already set win over .env.
func Load() Config {
	_ = godotenv.Load(".env")
	return FromEnv()
}

// FromEnv reads configuration from the environment only.
func FromEnv() Config {
	return Config{
		Addr:       getenv("API_ADDR", ":8080"),
		CORSOrigin: getenv("CORS_ORIGIN", "*"),

		SeedFile: getenv("CIVICVOICE_SEED_FILE", ""),
		ActorID:  getenv("CIVICVOICE_ACTOR", "u5"),
		Admin:    getenvBool("CIVICVOICE_ADMIN", false),
		DarkMode: getenvBool("CIVICVOICE_DARK_MODE", false),

		NarrationEnabled: getenvBool("CIVICVOICE_NARRATION", true),
		NarrationWPM:     getenvInt("CIVICVOICE_NARRATION_WPM", 180),

		RedisURL:    getenv("REDIS_URL", ""),
		FeedChannel: getenv("CIVICVOICE_FEED_CHANNEL", "civicvoice:changes"),

		MeiliURL:       getenv("MEILI_URL", ""),
		MeiliMasterKey: getenv("MEILI_MASTER_KEY", ""),

		MinioEndpoint:  getenv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getenv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getenv("MINIO_BUCKET", "civicvoice-media"),
		MinioRegion:    getenv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getenvBool("MINIO_USE_SSL", false),
		PresignTTL:     time.Duration(getenvInt("MEDIA_PRESIGN_TTL_SECONDS", 900)) * time.Second,

		MetricsAddr: getenv("CIVICVOICE_METRICS_ADDR", ""),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
