package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server  ServerConfig
	Mongo   MongoConfig
	Redis   RedisConfig
	NATS    NATSConfig
	Auth    AuthConfig
	Email   EmailConfig
	Geocode GeocodeConfig
	Media   MediaConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigin   string
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type NATSConfig struct {
	URL string
}

type AuthConfig struct {
	JWTSecret    string
	SessionTTL   time.Duration
	CookieName   string
	CookieSecure bool
}

type EmailConfig struct {
	MailerSendKey string
	FromName      string
	FromEmail     string
	DevMode       bool // log verification codes instead of sending
}

type GeocodeConfig struct {
	Endpoint     string
	UserAgent    string
	Timeout      time.Duration
	SuggestLimit int
	CacheTTL     time.Duration
}

type MediaConfig struct {
	CloudName    string
	UploadPreset string
	Folder       string
	MaxBytes     int64
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "4000"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 5*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			CORSOrigin:   getEnv("CORS_ORIGIN", "http://localhost:3000"),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DB", "khojghar"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", ""),
		},
		Auth: AuthConfig{
			JWTSecret:    getEnv("JWT_SECRET", "dev-only-secret-change-in-prod"),
			SessionTTL:   getDuration("SESSION_TTL", 7*24*time.Hour),
			CookieName:   getEnv("SESSION_COOKIE", "token"),
			CookieSecure: getBool("SESSION_COOKIE_SECURE", false),
		},
		Email: EmailConfig{
			MailerSendKey: getEnv("MAILERSEND_API_KEY", ""),
			FromName:      getEnv("EMAIL_FROM_NAME", "KhojGhar"),
			FromEmail:     getEnv("EMAIL_FROM", "noreply@khojghar.local"),
			DevMode:       getBool("EMAIL_DEV_MODE", true),
		},
		Geocode: GeocodeConfig{
			Endpoint:     getEnv("GEOCODE_ENDPOINT", "https://nominatim.openstreetmap.org/search"),
			UserAgent:    getEnv("GEOCODE_USER_AGENT", "KhojGhar/1.0"),
			Timeout:      getDuration("GEOCODE_TIMEOUT", 5*time.Second),
			SuggestLimit: getInt("GEOCODE_SUGGEST_LIMIT", 5),
			CacheTTL:     getDuration("GEOCODE_CACHE_TTL", 10*time.Minute),
		},
		Media: MediaConfig{
			CloudName:    getEnv("CLOUDINARY_CLOUD_NAME", ""),
			UploadPreset: getEnv("CLOUDINARY_UPLOAD_PRESET", ""),
			Folder:       getEnv("CLOUDINARY_FOLDER", "khojghar/listings"),
			MaxBytes:     int64(getInt("MEDIA_MAX_BYTES", 10<<20)),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
