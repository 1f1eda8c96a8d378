package config

import (
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken string `envconfig:"BOT_TOKEN" required:"true"`
	DataDir  string `envconfig:"DATA_DIR" default:"./data"`

	CallMeBotURL string        `envconfig:"CALLMEBOT_API_URL" default:"http://api.callmebot.com/start.php"`
	HTTPTimeout  time.Duration `envconfig:"CALLMEBOT_HTTP_TIMEOUT" default:"15s"`

	CheckInterval    time.Duration `envconfig:"CHECK_INTERVAL" default:"30s"`
	DeliveryTimeout  time.Duration `envconfig:"DELIVERY_TIMEOUT" default:"30s"`
	MaxCallRetries   int           `envconfig:"MAX_CALL_RETRIES" default:"3"`
	RetryBackoffBase time.Duration `envconfig:"RETRY_BACKOFF_BASE" default:"30s"`
	RetentionAge     time.Duration `envconfig:"RETENTION_AGE" default:"720h"` // retired one-time calls

	MaxCallsPerUser  int `envconfig:"MAX_CALLS_PER_USER" default:"50"`
	MinMessageLength int `envconfig:"MIN_MESSAGE_LENGTH" default:"5"`
	MaxMessageLength int `envconfig:"MAX_MESSAGE_LENGTH" default:"256"`

	DefaultTZ       string `envconfig:"DEFAULT_TZ" default:""` // empty means detect from host
	DefaultLanguage string `envconfig:"DEFAULT_LANGUAGE" default:"en-US-Standard-B"`
	DefaultRepeat   int    `envconfig:"DEFAULT_REPEAT" default:"2"`
	DefaultTimeout  int    `envconfig:"DEFAULT_CALL_TIMEOUT" default:"30"` // ring timeout, seconds

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
}

// Load reads environment variables into Config.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	if cfg.DefaultTZ == "" {
		cfg.DefaultTZ = detectHostTZ()
	}
	return cfg, nil
}

// detectHostTZ resolves the host timezone name, falling back to UTC.
func detectHostTZ() string {
	if tz := os.Getenv("TZ"); tz != "" {
		return tz
	}
	if b, err := os.ReadFile("/etc/timezone"); err == nil {
		if tz := strings.TrimSpace(string(b)); tz != "" {
			return tz
		}
	}
	return "UTC"
}
