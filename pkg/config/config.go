package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"careroute/pkg/constants"
)

type Config struct {
	RedisURL          string
	RedisEnabled      bool
	PodID             string
	Port              string
	LogLevel          string
	LeaderElectionTTL int
	ConsumerGroupName string

	FollowUpCheckIntervalMS int64

	SessionBackend         string
	SessionCapacity        int
	SessionEvictBatch      int
	SessionSweepIntervalMS int64
	SessionTTLHours        int

	StoreBackend string
	SQLitePath   string

	NLGBackend   string
	GeminiAPIKey string
	GeminiModel  string
	NLGTimeoutMS int64

	NotifierBackend     string
	HelplineRegion      string
	EnableCollaboration bool
	EscalationRulesFile string
}

func Load() *Config {
	config := &Config{
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379"),
		RedisEnabled:      getEnvBool("REDIS_ENABLED", true),
		PodID:             getEnv("POD_ID", generatePodID()),
		Port:              getEnv("PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LeaderElectionTTL: getEnvInt("LEADER_ELECTION_TTL", constants.DefaultLeaderElectionTTLSeconds),
		ConsumerGroupName: getEnv("CONSUMER_GROUP_NAME", constants.DefaultNotificationGroup),

		FollowUpCheckIntervalMS: getEnvInt64("FOLLOWUP_CHECK_INTERVAL_MS", constants.DefaultFollowUpCheckIntervalMS),

		SessionBackend:         getEnv("SESSION_BACKEND", "memory"),
		SessionCapacity:        getEnvInt("SESSION_CAPACITY", constants.DefaultSessionCapacity),
		SessionEvictBatch:      getEnvInt("SESSION_EVICT_BATCH", constants.DefaultSessionEvictBatch),
		SessionSweepIntervalMS: getEnvInt64("SESSION_SWEEP_INTERVAL_MS", constants.DefaultSessionSweepIntervalMS),
		SessionTTLHours:        getEnvInt("SESSION_TTL_HOURS", constants.DefaultSessionTTLHours),

		StoreBackend: getEnv("STORE_BACKEND", "memory"),
		SQLitePath:   getEnv("SQLITE_PATH", "careroute.db"),

		NLGBackend:   getEnv("NLG_BACKEND", "mock"),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		NLGTimeoutMS: getEnvInt64("NLG_TIMEOUT_MS", 15000),

		NotifierBackend:     getEnv("NOTIFIER_BACKEND", "log"),
		HelplineRegion:      getEnv("HELPLINE_REGION", "India"),
		EnableCollaboration: getEnvBool("ENABLE_COLLABORATION", false),
		EscalationRulesFile: getEnv("ESCALATION_RULES_FILE", ""),
	}

	return config
}

// Validate rejects combinations the service cannot start with.
func (c *Config) Validate() error {
	if c.SessionCapacity <= 0 {
		return fmt.Errorf("SESSION_CAPACITY must be positive, got %d", c.SessionCapacity)
	}
	if c.SessionEvictBatch <= 0 {
		return fmt.Errorf("SESSION_EVICT_BATCH must be positive, got %d", c.SessionEvictBatch)
	}
	if !c.RedisEnabled && (c.SessionBackend == "redis" || c.NotifierBackend == "stream") {
		return fmt.Errorf("redis-backed %s/%s require REDIS_ENABLED", c.SessionBackend, c.NotifierBackend)
	}
	if c.NLGBackend == "gemini" && c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required for the gemini backend")
	}
	return nil
}

func (c *Config) FollowUpCheckInterval() time.Duration {
	return constants.MillisecondsToDuration(c.FollowUpCheckIntervalMS)
}

func (c *Config) SessionSweepInterval() time.Duration {
	return constants.MillisecondsToDuration(c.SessionSweepIntervalMS)
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

func (c *Config) NLGTimeout() time.Duration {
	return constants.MillisecondsToDuration(c.NLGTimeoutMS)
}

func (c *Config) LeaderElectionTTLDuration() time.Duration {
	return constants.SecondsToDuration(c.LeaderElectionTTL)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func generatePodID() string {
	hostname, err := os.Hostname()
	if err != nil {
		return uuid.New().String()
	}
	return hostname + "-" + uuid.New().String()[:8]
}
