package env

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	WSServerAddr           = "WS_SERVER_ADDR"
	PublicServerAddr       = "PUBLIC_SERVER_ADDR"
	LogLevel               = "LOG_LEVEL"
	LogFormat              = "LOG_FORMAT"
	CORSAllowedOrigins     = "CORS_ALLOWED_ORIGINS"
	RedisURL               = "CODESYNC_REDIS_URL"
	RedisPass              = "CODESYNC_REDIS_PASS"
	AdminSecretKey         = "ADMIN_SECRET"
	PistonURL              = "PISTON_URL"
	ExecutionTimeout       = "EXECUTION_TIMEOUT"
	ExecutionLanguagesFile = "EXECUTION_LANGUAGES_FILE"
	AWSRegion              = "AWS_REGION"
	AWSID                  = "AWS_ID"
	AWSSecret              = "AWS_SECRET"
	AWSToken               = "AWS_TOKEN"
	DynamoDBEndpoint       = "DYNAMODB_ENDPOINT"
	QueueSize              = "QUEUE_SIZE"
	QueueWorkers           = "QUEUE_WORKERS"
	WSMessagesPerSecond    = "WS_MESSAGES_PER_SECOND"
	WSMessageBurst         = "WS_MESSAGE_BURST"
)

// Load pulls variables from a .env file in the working directory, if there is
// one. Variables already present in the environment win.
func Load() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}
}

// Require panics when any of keys is unset. Binaries call it right after Load.
func Require(keys ...string) {
	for _, key := range keys {
		if os.Getenv(key) == "" {
			panic("env: required environment variable not set: " + key)
		}
	}
}

func Get(key string) string {
	return os.Getenv(key)
}

func GetOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func MustGet(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic("env: required environment variable not set: " + key)
	}
	return val
}

func GetInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", val, "default", defaultVal)
		return defaultVal
	}
	return n
}

func GetDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", val, "default", defaultVal)
		return defaultVal
	}
	return d
}
