package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var loadOnce sync.Once

func load() {
	loadOnce.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("Warning: .env file not found, reading from system environment variables")
		}
	})
}

// Config returns the raw value of an environment key, loading .env on first use.
func Config(key string) string {
	load()
	return os.Getenv(key)
}

func ConfigDefault(key, defaultValue string) string {
	if v := strings.TrimSpace(Config(key)); v != "" {
		return v
	}
	return defaultValue
}

func ConfigInt(key string, defaultValue int) int {
	v := strings.TrimSpace(Config(key))
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Error converting environment variable %s to int: %v", key, err)
		return defaultValue
	}
	return n
}

func ConfigDuration(key string, defaultValue time.Duration) time.Duration {
	v := strings.TrimSpace(Config(key))
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Error converting environment variable %s to duration: %v", key, err)
		return defaultValue
	}
	return d
}

// Deployment-level defaults shared by handlers and services.

func DefaultUserPassword() string {
	return ConfigDefault("DEFAULT_USER_PASSWORD", "portal@123")
}

func BulkUploadMaxBytes() int64 {
	return int64(ConfigInt("BULK_UPLOAD_MAX_BYTES", 2<<20))
}

func TxTimeout() time.Duration {
	return ConfigDuration("DB_TX_TIMEOUT", 10*time.Second)
}

func JWTSecret() string {
	return Config("JWT_SECRET")
}

func JWTTTL() time.Duration {
	return ConfigDuration("JWT_TTL", 24*time.Hour)
}
