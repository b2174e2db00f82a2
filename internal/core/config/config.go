package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type StoreCfg struct {
	Backend      string
	GeoServerURL string
	User         string
	Password     string
	InstanceID   string
	Zookeepers   string
	TableName    string
	TypeName     string
	CollectStats bool
	QueryTimeout time.Duration
	SeedFile     string
	Breaker      bool
	MaxFeatures  int
}

type CacheCfg struct {
	Enabled   bool
	RedisAddr string
	TTL       time.Duration
	OpTimeout time.Duration
	H3Res     int
	MaxCells  int
}

type InvalidationCfg struct {
	Enabled bool
	Driver  string
	Topic   string
	Brokers string
	GroupID string
}

type Config struct {
	Addr           string
	LogLevel       string
	LogConsole     bool
	LogSampleN     int
	DumpResults    bool
	MetricsEnabled bool
	MaxBodyBytes   int64
	MaxResults     int
	CORSOrigins    []string
	RateLimitRPS   int
	Store          StoreCfg
	Cache          CacheCfg
	Invalidation   InvalidationCfg
}

func FromEnv() Config {
	h3Res := getint("CACHE_H3_RES", 3)
	if h3Res < 0 || h3Res > 15 {
		h3Res = 3
	}
	maxResults := getint("SEARCH_MAX_RESULTS", 0)

	return Config{
		Addr:           getenv("ADDR", ":8090"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogConsole:     getbool("LOG_CONSOLE", false),
		LogSampleN:     getint("LOG_SAMPLE_N", 0),
		DumpResults:    getbool("SEARCH_DUMP_RESULTS", false),
		MetricsEnabled: getbool("METRICS_ENABLED", true),
		MaxBodyBytes:   int64(getint("MAX_BODY_BYTES", 1<<20)),
		MaxResults:     maxResults,
		CORSOrigins:    splitCSV(getenv("CORS_ORIGINS", "*")),
		RateLimitRPS:   getint("RATE_LIMIT_RPS", 0),
		Store: StoreCfg{
			Backend:      strings.ToLower(getenv("STORE_BACKEND", "wfs")),
			GeoServerURL: getenv("GEOSERVER_URL", "http://localhost:8080/geoserver"),
			User:         getenv("STORE_USER", "root"),
			Password:     getenv("STORE_PASSWORD", ""),
			InstanceID:   getenv("STORE_INSTANCE_ID", "bigdata"),
			Zookeepers:   getenv("STORE_ZOOKEEPERS", "localhost:2181"),
			TableName:    getenv("STORE_TABLE", "gdelt_Ukraine"),
			TypeName:     getenv("STORE_TYPE_NAME", "gdelt"),
			CollectStats: getbool("STORE_COLLECT_STATS", false),
			QueryTimeout: getduration("STORE_QUERY_TIMEOUT", 30*time.Second),
			SeedFile:     getenv("STORE_SEED_FILE", ""),
			Breaker:      getbool("BREAKER_ENABLED", true),
			MaxFeatures:  maxResults,
		},
		Cache: CacheCfg{
			Enabled:   getbool("CACHE_ENABLED", false),
			RedisAddr: getenv("REDIS_ADDR", "localhost:6379"),
			TTL:       getduration("CACHE_TTL", 5*time.Minute),
			OpTimeout: getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
			H3Res:     h3Res,
			MaxCells:  getint("CACHE_MAX_CELLS", 512),
		},
		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Driver:  getenv("INVALIDATION_DRIVER", "none"),
			Topic:   getenv("KAFKA_TOPIC", "gdelt-ingest"),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			GroupID: getenv("KAFKA_GROUP_ID", "event-cache-invalidator"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if x := strings.TrimSpace(p); x != "" {
			out = append(out, x)
		}
	}
	return out
}
