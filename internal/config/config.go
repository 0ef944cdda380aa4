package config

import (
	"fmt"
	"log"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultJPEGQuality    = 75
	DefaultPNGCompression = 6

	MinJPEGQuality    = 5
	MaxJPEGQuality    = 100
	MinPNGCompression = 0
	MaxPNGCompression = 9
)

// legacyDebugOutputEnv is read when DEBUG_OUTPUT is unset.
const legacyDebugOutputEnv = "BLINKENLIGHTS_IMAGE_CONVERTER_DEBUG_OUTPUT"

type Config struct {
	Workers          int
	JPEGQuality      int
	PNGCompression   int
	PreserveMetadata bool

	DBPath   string
	HTTPHost string
	HTTPPort int

	WatchDirs      []string
	WatchTarget    string
	WatchIdle      time.Duration
	StabilityDelay time.Duration
	MD5ChunkSize   int64

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	DebugOutput string
}

func Load() *Config {
	cfg := &Config{}
	cfg.Workers = getEnvInt("WORKERS", DefaultWorkers())
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers()
	}
	cfg.JPEGQuality = ClampJPEGQuality(getEnvInt("JPG_QUALITY", DefaultJPEGQuality))
	cfg.PNGCompression = ClampPNGCompression(getEnvInt("PNG_COMPRESSION", DefaultPNGCompression))
	cfg.PreserveMetadata = getEnvBool("PRESERVE_METADATA", true)
	cfg.DBPath = getEnv("DB_PATH", "convertster.db")
	cfg.HTTPHost = getEnv("HTTP_HOST", "127.0.0.1")
	cfg.HTTPPort = getEnvInt("HTTP_PORT", 8000)
	cfg.WatchDirs = splitAndTrim(os.Getenv("WATCH_DIRS"))
	cfg.WatchTarget = getEnv("WATCH_TARGET", "jpg")
	cfg.WatchIdle = getEnvDuration("WATCH_IDLE", 2*time.Second)
	cfg.StabilityDelay = getEnvDuration("STABILITY_DELAY", time.Second)
	cfg.MD5ChunkSize = getEnvInt64("MD5_CHUNK_SIZE", 4*1024*1024)
	cfg.RedisAddr = getEnv("REDIS_ADDR", "")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)
	cfg.RedisPrefix = getEnv("REDIS_PREFIX", "convertster:")
	cfg.DebugOutput = getEnv("DEBUG_OUTPUT", os.Getenv(legacyDebugOutputEnv))
	return cfg
}

func (c *Config) HTTPAddr() string { return net.JoinHostPort(c.HTTPHost, strconv.Itoa(c.HTTPPort)) }

// DefaultWorkers leaves one processor free for the rest of the machine.
func DefaultWorkers() int { return max(1, runtime.NumCPU()-1) }

func ClampJPEGQuality(q int) int { return max(MinJPEGQuality, min(MaxJPEGQuality, q)) }

func ClampPNGCompression(l int) int { return max(MinPNGCompression, min(MaxPNGCompression, l)) }

// SetupLogging sends the standard logger to DebugOutput when one is configured.
// The returned func closes the file.
func (c *Config) SetupLogging() (func(), error) {
	if c.DebugOutput == "" {
		return func() {}, nil
	}
	f, err := os.OpenFile(c.DebugOutput, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return func() {}, fmt.Errorf("open debug output: %w", err)
	}
	log.SetOutput(f)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	return func() { _ = f.Close() }, nil
}

func splitAndTrim(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: invalid integer value for %s: %s, using default: %d", key, v, def)
		return def
	}
	return i
}

func getEnvInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return i
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Warning: invalid duration value for %s: %s, using default: %v", key, v, def)
		return def
	}
	return d
}
