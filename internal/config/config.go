package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                    string
	AllowedOrigin           string
	DatabaseURL             string
	RedisAddr               string
	RedisPassword           string
	RedisDB                 int
	AuthSecret              string
	AccessTokenTTLMinutes   int
	UploadSessionTTLMinutes int
	CatalogPageSize         int
	MaxUploadBytes          int64
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	sessionTTL, err := strconv.Atoi(getEnv("UPLOAD_SESSION_TTL_MINUTES", "120"))
	if err != nil || sessionTTL < 1 {
		sessionTTL = 120
	}
	pageSize, err := strconv.Atoi(getEnv("CATALOG_PAGE_SIZE", "8000"))
	if err != nil || pageSize < 1 {
		pageSize = 8000
	}
	maxUpload, err := strconv.ParseInt(getEnv("MAX_UPLOAD_BYTES", "20971520"), 10, 64)
	if err != nil || maxUpload < 1 {
		maxUpload = 20 << 20
	}

	cfg := Config{
		Port:                    getEnv("PORT", "8080"),
		AllowedOrigin:           getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		RedisAddr:               os.Getenv("REDIS_ADDR"),
		RedisPassword:           os.Getenv("REDIS_PASSWORD"),
		RedisDB:                 redisDB,
		AuthSecret:              strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:   tokenTTL,
		UploadSessionTTLMinutes: sessionTTL,
		CatalogPageSize:         pageSize,
		MaxUploadBytes:          maxUpload,
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
