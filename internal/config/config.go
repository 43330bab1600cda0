package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port           string
	MongoURI       string
	MongoDB        string
	Collection     string
	ConnectTimeout time.Duration

	JSONDir   string
	ClearDB   bool
	BatchSize int

	// bucket source; used instead of JSONDir when Bucket is set
	Bucket    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Prefix    string
	UseSSL    bool

	ReloadSchedule string
	RatePerMinute  int
	LogLevel       string
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getbool(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getint(k string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(k)))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getduration(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(k)))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func Load() Config {
	return Config{
		Port:           getenv("PORT", "8080"),
		MongoURI:       getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:        getenv("MONGO_DB", "homework2"),
		Collection:     getenv("MONGO_COLLECTION", "googleTagged"),
		ConnectTimeout: getduration("MONGO_CONNECT_TIMEOUT", 30*time.Second),

		JSONDir:   getenv("JSON_DIR", "data/json"),
		ClearDB:   getbool("CLEAR_DB", true),
		BatchSize: getint("INGEST_BATCH_SIZE", 500),

		Bucket:    getenv("INGEST_BUCKET", ""),
		Endpoint:  getenv("INGEST_ENDPOINT", ""),
		AccessKey: getenv("INGEST_ACCESS_KEY", ""),
		SecretKey: getenv("INGEST_SECRET_KEY", ""),
		Prefix:    getenv("INGEST_PREFIX", ""),
		UseSSL:    getbool("INGEST_USE_SSL", false),

		ReloadSchedule: getenv("RELOAD_SCHEDULE", ""), // e.g. "@every 24h"
		RatePerMinute:  getint("RATE_PER_MINUTE", 60),
		LogLevel:       getenv("LOG_LEVEL", "info"),
	}
}
