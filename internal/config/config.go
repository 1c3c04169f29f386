package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	ChatHost      string        `env:"CHAT_HOST"            envDefault:"0.0.0.0"`
	ChatPort      uint16        `env:"CHAT_PORT"            envDefault:"12345" validate:"min=1000,max=65535"`
	WriteTimeout  time.Duration `env:"CHAT_WRITE_TIMEOUT"   envDefault:"5s"    validate:"gt=0"`
	SendQueueSize int           `env:"CHAT_SEND_QUEUE_SIZE" envDefault:"256"   validate:"min=1,max=65536"`
	MaxLineBytes  int           `env:"CHAT_MAX_LINE_BYTES"  envDefault:"4096"  validate:"min=64,max=1048576"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s" validate:"gt=0"`

	HttpServerEnabled bool   `env:"HTTP_SERVER_ENABLED" envDefault:"true"`
	HttpServerPort    uint16 `env:"HTTP_SERVER_PORT"    envDefault:"8085" validate:"min=1000,max=65535"`

	RedisRelayEnabled bool   `env:"REDIS_RELAY_ENABLED" envDefault:"false"`
	RedisHost         string `env:"REDIS_HOST"          envDefault:"localhost"`
	RedisPort         uint16 `env:"REDIS_PORT"          envDefault:"6379" validate:"min=1000,max=65535"`

	// InstanceID tags relayed messages; a random one is generated when unset.
	InstanceID string `env:"INSTANCE_ID"`

	LogLevel       string `env:"LOG_LEVEL"       envDefault:"info" validate:"oneof=debug info warn error"`
	LogDevelopment bool   `env:"LOG_DEVELOPMENT" envDefault:"true"`
}

// ChatAddr is the host:port the TCP listener binds to.
func (c *Config) ChatAddr() string {
	return fmt.Sprintf("%s:%d", c.ChatHost, c.ChatPort)
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	// Parse config from environment variables
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	// Validate the config
	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
