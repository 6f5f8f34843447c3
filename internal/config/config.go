package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration
	PublicBaseURL           string

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	JWTSecret     string
	JWTAlgorithm  string
	JWTAccessTTL  time.Duration
	JWTRefreshTTL time.Duration
	EmailTokenTTL time.Duration

	CacheDriver   string
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int
	UserCacheTTL  time.Duration

	CORSOrigins      []string
	RateLimitRPM     int
	AuthRateLimitRPM int

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	SMTPTLSMode  string

	AvatarDriver     string
	AvatarLocalRoot  string
	AvatarPublicPath string
	AvatarSize       int
	AvatarMaxUpload  int64
	S3Endpoint       string
	S3Region         string
	S3Bucket         string
	S3AccessKey      string
	S3SecretKey      string
	S3PublicURL      string

	LogLevel       string
	LogFormat      string
	MetricsEnabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:              getEnv("SERVER_PORT", "8080"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 15*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),
		PublicBaseURL:           strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),

		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 2)),

		JWTSecret:     strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTAlgorithm:  strings.ToUpper(getEnv("JWT_ALGORITHM", "HS256")),
		JWTAccessTTL:  getDuration("JWT_ACCESS_TTL", 60*time.Minute),
		JWTRefreshTTL: getDuration("JWT_REFRESH_TTL", 168*time.Hour),
		EmailTokenTTL: getDuration("EMAIL_TOKEN_TTL", 168*time.Hour),

		CacheDriver:   strings.ToLower(getEnv("CACHE_DRIVER", "redis")),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getInt("REDIS_PORT", 6379),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),
		UserCacheTTL:  getDuration("USER_CACHE_TTL", 900*time.Second),

		CORSOrigins:      splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:     getInt("RATE_LIMIT_RPM", 100),
		AuthRateLimitRPM: getInt("AUTH_RATE_LIMIT_RPM", 10),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     getEnv("SMTP_FROM", "no-reply@localhost"),
		SMTPTLSMode:  strings.ToLower(getEnv("SMTP_TLS_MODE", "auto")),

		AvatarDriver:     strings.ToLower(getEnv("AVATAR_DRIVER", "local")),
		AvatarLocalRoot:  getEnv("AVATAR_LOCAL_ROOT", "./data"),
		AvatarPublicPath: "/" + strings.Trim(getEnv("AVATAR_PUBLIC_PATH", "/static"), "/"),
		AvatarSize:       getInt("AVATAR_SIZE", 250),
		AvatarMaxUpload:  getInt64("AVATAR_MAX_UPLOAD", 5<<20),
		S3Endpoint:       getEnv("S3_ENDPOINT", ""),
		S3Region:         getEnv("S3_REGION", "us-east-1"),
		S3Bucket:         getEnv("S3_BUCKET", ""),
		S3AccessKey:      getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:      os.Getenv("S3_SECRET_KEY"),
		S3PublicURL:      strings.TrimRight(getEnv("S3_PUBLIC_URL", ""), "/"),

		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "pretty")),
		MetricsEnabled: getBool("METRICS_ENABLED", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	switch c.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("JWT_ALGORITHM must be one of HS256, HS384, HS512")
	}

	if c.JWTAccessTTL <= 0 || c.JWTRefreshTTL <= 0 || c.EmailTokenTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}

	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	switch c.CacheDriver {
	case "redis", "memory":
	default:
		return fmt.Errorf("CACHE_DRIVER must be redis or memory")
	}

	if c.UserCacheTTL <= 0 {
		return fmt.Errorf("USER_CACHE_TTL must be positive")
	}

	switch c.AvatarDriver {
	case "local":
		if strings.TrimSpace(c.AvatarLocalRoot) == "" {
			return fmt.Errorf("AVATAR_LOCAL_ROOT cannot be empty")
		}
	case "s3":
		if c.S3Bucket == "" || c.S3AccessKey == "" || c.S3SecretKey == "" {
			return fmt.Errorf("S3_BUCKET, S3_ACCESS_KEY and S3_SECRET_KEY are required for AVATAR_DRIVER=s3")
		}
	default:
		return fmt.Errorf("AVATAR_DRIVER must be local or s3")
	}

	if c.AvatarSize <= 0 {
		return fmt.Errorf("AVATAR_SIZE must be positive")
	}

	if c.AvatarMaxUpload <= 0 {
		return fmt.Errorf("AVATAR_MAX_UPLOAD must be positive")
	}

	return nil
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getInt64(key string, fallback int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}

	return v
}

func getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}

	return v
}

// getDuration accepts Go durations ("15m") and bare seconds ("900").
func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	if seconds, err := strconv.Atoi(raw); err == nil {
		return time.Duration(seconds) * time.Second
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
