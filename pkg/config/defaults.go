// Package config provides centralized default values for HomeVault
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

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		if err := godotenv.Load(); err != nil {
			return
		}
		log.Println("Loading configuration overrides from .env file...")
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseInt(valStr, 10, 64); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseFloat(valStr, 64); err == nil {
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	AllowedOrigins     []string
	AdminJWTSecret     string

	// Owner registry and storage paths
	HomeDir      string
	RegistryPath string
	DBPath       string
	LibSQLURL    string
	LibSQLToken  string

	// Database Pool
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeMinutes int
	DBConnMaxIdleMinutes     int

	// Cache entry TTLs (seconds, per entry type; 0 means no expiry)
	TTLAllSeconds     int
	TTLRecentSeconds  int
	TTLModTimeSeconds int
	TTLTokenSeconds   int
	TTLFileSeconds    int
	TTLByKeySeconds   int
	TTLQuerySeconds   int

	// Per-type live entry ceilings
	MaxAllEntries     int
	MaxRecentEntries  int
	MaxModTimeEntries int
	MaxTokenEntries   int
	MaxFileEntries    int
	MaxByKeyEntries   int
	MaxQueryEntries   int

	// Memory watchdog
	MemoryCheckInterval time.Duration
	MaxCacheBytes       int64
	HeapThresholdBytes  int64
	AccessCountWeight   float64
	EvictionFraction    float64
	EvictionMinimum     int

	// Collection cache behavior
	RecentRetention   int
	RefreshDebounce   time.Duration
	WIPPollInterval   time.Duration
	WIPWaitTimeout    time.Duration
	MaxCacheableFileBytes int64

	// File token policy
	FileTokenSecret string
	TokenExpiry     time.Duration
	TokenKeepWindow time.Duration

	// Local file copy registry
	LocalCopyLimit int
	LocalCopyTTL   time.Duration

	// Background sweep
	SweepInterval time.Duration
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)
	AllowedOrigins = strings.Split(getEnvString("ALLOWED_ORIGINS", "*"), ",")
	AdminJWTSecret = getEnvString("ADMIN_JWT_SECRET", "")

	// Paths
	HomeDir = getEnvString("HOMEVAULT_HOME", "data")
	RegistryPath = getEnvString("OWNER_REGISTRY_PATH", HomeDir+"/owners.json")
	DBPath = getEnvString("DB_PATH", HomeDir+"/records.db")
	LibSQLURL = getEnvString("LIBSQL_URL", "")
	LibSQLToken = getEnvString("LIBSQL_TOKEN", "")

	// Database Pool
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 3)
	DBConnMaxLifetimeMinutes = getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	DBConnMaxIdleMinutes = getEnvInt("DB_CONN_MAX_IDLE_MINUTES", 3)

	// TTL Configuration (seconds per entry type)
	TTLAllSeconds = getEnvInt("CACHE_TTL_ALL_SECONDS", 86400)
	TTLRecentSeconds = getEnvInt("CACHE_TTL_RECENT_SECONDS", 86400)
	TTLModTimeSeconds = getEnvInt("CACHE_TTL_MODTIME_SECONDS", 3600)
	TTLTokenSeconds = getEnvInt("CACHE_TTL_TOKEN_SECONDS", 1800)
	TTLFileSeconds = getEnvInt("CACHE_TTL_FILE_SECONDS", 3600)
	TTLByKeySeconds = getEnvInt("CACHE_TTL_BYKEY_SECONDS", 3600)
	TTLQuerySeconds = getEnvInt("CACHE_TTL_QUERY_SECONDS", 600)

	// Per-type ceilings
	MaxAllEntries = getEnvInt("CACHE_MAX_ALL_ENTRIES", 200)
	MaxRecentEntries = getEnvInt("CACHE_MAX_RECENT_ENTRIES", 200)
	MaxModTimeEntries = getEnvInt("CACHE_MAX_MODTIME_ENTRIES", 2000)
	MaxTokenEntries = getEnvInt("CACHE_MAX_TOKEN_ENTRIES", 2000)
	MaxFileEntries = getEnvInt("CACHE_MAX_FILE_ENTRIES", 500)
	MaxByKeyEntries = getEnvInt("CACHE_MAX_BYKEY_ENTRIES", 5000)
	MaxQueryEntries = getEnvInt("CACHE_MAX_QUERY_ENTRIES", 2000)

	// Memory watchdog
	MemoryCheckInterval = getEnvDuration("MEMORY_CHECK_INTERVAL", time.Minute)
	MaxCacheBytes = getEnvInt64("MAX_CACHE_MB", 256) * 1024 * 1024
	HeapThresholdBytes = getEnvInt64("HEAP_THRESHOLD_MB", 768) * 1024 * 1024
	AccessCountWeight = getEnvFloat("ACCESS_COUNT_WEIGHT", 0.5)
	EvictionFraction = getEnvFloat("EVICTION_FRACTION", 0.2)
	EvictionMinimum = getEnvInt("EVICTION_MINIMUM", 10)

	// Collection cache behavior
	RecentRetention = getEnvInt("RECENT_RETENTION_COUNT", 200)
	RefreshDebounce = getEnvDuration("REFRESH_DEBOUNCE", time.Second)
	WIPPollInterval = getEnvDuration("WIP_POLL_INTERVAL", 50*time.Millisecond)
	WIPWaitTimeout = getEnvDuration("WIP_WAIT_TIMEOUT", 5*time.Second)
	MaxCacheableFileBytes = getEnvInt64("MAX_CACHEABLE_FILE_KB", 512) * 1024

	// File token policy
	FileTokenSecret = getEnvString("FILE_TOKEN_SECRET", "")
	TokenExpiry = getEnvDuration("FILE_TOKEN_EXPIRY", 30*time.Minute)
	TokenKeepWindow = getEnvDuration("FILE_TOKEN_KEEP_WINDOW", 10*time.Minute)

	// Local file copy registry
	LocalCopyLimit = getEnvInt("LOCAL_COPY_REGISTRY_LIMIT", 4096)
	LocalCopyTTL = getEnvDuration("LOCAL_COPY_REGISTRY_TTL", 24*time.Hour)

	// Background sweep
	SweepInterval = getEnvDuration("CACHE_SWEEP_INTERVAL", 30*time.Minute)
}
