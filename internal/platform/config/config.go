package config

import (
	"os"
	"time"
)

// Server captures process-level configuration. Signing keys are explicit
// fields injected at construction time so their lifecycle is visible and
// tests can use fixed keys.
type Server struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	PublicBaseURL string

	// LinkSigningKey signs external participant links; JWTSigningKey verifies
	// internal session tokens. They are distinct on purpose: rotating one must
	// not invalidate the other.
	LinkSigningKey string
	JWTSigningKey  string

	Storage Storage
}

// Storage selects the blob backend once at startup.
type Storage struct {
	Backend     string // "local" or "s3"
	LocalDir    string
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool

	// PresignTTL bounds the validity of direct-upload URLs.
	PresignTTL time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("RECAUDO_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	base := os.Getenv("PUBLIC_BASE_URL")
	if base == "" {
		base = "http://localhost:8080"
	}

	linkKey := os.Getenv("LINK_SIGNING_KEY")
	if linkKey == "" {
		// Development default - must be overridden in production.
		linkKey = "dev-link-key-change-in-production"
	}

	jwtKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtKey == "" {
		jwtKey = "dev-secret-key-change-in-production"
	}

	backend := os.Getenv("STORAGE_BACKEND")
	if backend == "" {
		backend = "local"
	}
	localDir := os.Getenv("LOCAL_STORAGE_DIR")
	if localDir == "" {
		localDir = "./data/attachments"
	}

	return Server{
		Addr:           addr,
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		PublicBaseURL:  base,
		LinkSigningKey: linkKey,
		JWTSigningKey:  jwtKey,
		Storage: Storage{
			Backend:     backend,
			LocalDir:    localDir,
			S3Endpoint:  os.Getenv("S3_ENDPOINT"),
			S3Bucket:    os.Getenv("S3_BUCKET"),
			S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
			S3SecretKey: os.Getenv("S3_SECRET_KEY"),
			S3UseSSL:    os.Getenv("S3_USE_SSL") == "true",
			PresignTTL:  15 * time.Minute,
		},
	}
}
