package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/studygen/internal/platform/envutil"
	"github.com/yungbote/studygen/internal/progress"
	"github.com/yungbote/studygen/internal/services"
)

// Push transports understood by the watch command.
const (
	PushSSE  = "sse"
	PushWS   = "ws"
	PushNone = "none"
)

// Config is shared by the CLI and the dev server. Precedence, lowest first:
// defaults, YAML file, environment, flags (applied by the caller).
type Config struct {
	APIURL string `yaml:"api_url" validate:"required,url"`
	AppURL string `yaml:"app_url" validate:"required,url"`
	Push   string `yaml:"push" validate:"oneof=sse ws none"`

	PollInterval    time.Duration `yaml:"poll_interval" validate:"gt=0"`
	CompletionDelay time.Duration `yaml:"completion_delay" validate:"gte=0"`

	LogMode     string `yaml:"log_mode"`
	Environment string `yaml:"environment"`
	Port        string `yaml:"port" validate:"required"`
	CORSOrigins string `yaml:"cors_origins"`

	DatabaseURL string `yaml:"database_url"`
	SQLitePath  string `yaml:"sqlite_path"`

	RedisAddr    string `yaml:"redis_addr"`
	RedisChannel string `yaml:"redis_channel"`

	SimStepDelay time.Duration `yaml:"sim_step_delay" validate:"gt=0"`
}

func DefaultConfig() Config {
	return Config{
		APIURL:          "http://localhost:8080",
		AppURL:          "http://localhost:5173",
		Push:            PushSSE,
		PollInterval:    progress.DefaultPollInterval,
		CompletionDelay: progress.DefaultCompletionDelay,
		LogMode:         "development",
		Environment:     "development",
		Port:            "8080",
		SQLitePath:      "studygen.db",
		RedisChannel:    "studygen:sse",
		SimStepDelay:    services.DefaultSimStepDelay,
	}
}

// LoadConfig reads .env (if present), then the optional YAML file at path,
// then environment overrides. The result is not validated; call Validate
// after applying flags.
func LoadConfig(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.APIURL = envutil.String("STUDYGEN_API_URL", cfg.APIURL)
	cfg.AppURL = envutil.String("STUDYGEN_APP_URL", cfg.AppURL)
	cfg.Push = strings.ToLower(envutil.String("STUDYGEN_PUSH", cfg.Push))
	cfg.PollInterval = envutil.Duration("STUDYGEN_POLL_INTERVAL", cfg.PollInterval)
	cfg.CompletionDelay = envutil.Duration("STUDYGEN_COMPLETION_DELAY", cfg.CompletionDelay)
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)
	cfg.Environment = envutil.String("ENVIRONMENT", cfg.Environment)
	cfg.Port = envutil.String("PORT", cfg.Port)
	cfg.CORSOrigins = envutil.String("CORS_ORIGINS", cfg.CORSOrigins)
	cfg.DatabaseURL = envutil.String("DATABASE_URL", cfg.DatabaseURL)
	cfg.SQLitePath = envutil.String("SQLITE_PATH", cfg.SQLitePath)
	cfg.RedisAddr = envutil.String("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisChannel = envutil.String("REDIS_CHANNEL", cfg.RedisChannel)
	cfg.SimStepDelay = envutil.Duration("SIM_STEP_DELAY", cfg.SimStepDelay)
	return cfg, nil
}

var validate = validator.New()

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return fmt.Errorf("invalid config: %s failed %q", ve[0].Field(), ve[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Addr is the dev server listen address.
func (c Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}
