package config

import (
	"fmt"
	"os"
	"time"

	commonerrors "github.com/pixfeed/pixfeed/backend/internal/common/errors"
)

type APIConfig struct {
	HTTPPort       string
	DatabaseURL    string
	JWTSecret      string
	AccessTokenTTL time.Duration
	RequestTimeout time.Duration
	UploadTimeout  time.Duration

	S3Bucket   string
	S3Region   string
	S3Endpoint string
}

func LoadAPIConfig() (APIConfig, error) {
	jwtSecret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return APIConfig{}, err
	}

	if err := validateJWTSecret(jwtSecret); err != nil {
		return APIConfig{}, err
	}

	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return APIConfig{}, err
	}

	bucket, err := mustEnv("S3_BUCKET")
	if err != nil {
		return APIConfig{}, err
	}

	return APIConfig{
		HTTPPort:       getEnv("API_HTTP_PORT", "8080"),
		DatabaseURL:    databaseURL,
		JWTSecret:      jwtSecret,
		AccessTokenTTL: getDurationEnv("ACCESS_TOKEN_TTL", 24*time.Hour),
		RequestTimeout: getDurationEnv("API_REQUEST_TIMEOUT", 5*time.Second),
		UploadTimeout:  getDurationEnv("API_UPLOAD_TIMEOUT", 60*time.Second),
		S3Bucket:       bucket,
		S3Region:       getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
	}, nil
}

func validateJWTSecret(secret string) error {
	if len(secret) < 32 {
		return commonerrors.ErrInvalidJWTSecret.WithCause(fmt.Errorf("got %d bytes", len(secret)))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func mustEnv(key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", commonerrors.ErrMissingRequiredEnv.WithCause(fmt.Errorf("%s", key))
	}
	return v, nil
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

