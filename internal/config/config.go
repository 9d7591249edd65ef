package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

var errInvalidConfig = errors.New("invalid config")

type Config struct {
	LogLevel  string    `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort  string    `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	PublicURL string    `yaml:"public-url" env:"PUBLIC_URL" env-default:"http://localhost:9090"`
	Redis     Redis     `yaml:"redis"`
	Websocket Websocket `yaml:"websocket"`
	Archive   Archive   `yaml:"archive"`
}

type Redis struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Websocket struct {
	ReadBufferSize  int           `yaml:"read-buffer-size" env-default:"1024"`
	WriteBufferSize int           `yaml:"write-buffer-size" env-default:"1024"`
	SendQueue       int           `yaml:"send-queue" env-default:"32"`
	PongWait        time.Duration `yaml:"pong-wait" env-default:"60s"`
	WriteWait       time.Duration `yaml:"write-wait" env-default:"10s"`
}

type Archive struct {
	Enabled bool          `yaml:"enabled" env:"ARCHIVE_ENABLED" env-default:"true"`
	TTL     time.Duration `yaml:"ttl" env:"ARCHIVE_TTL" env-default:"168h"`
	History int64         `yaml:"history" env-default:"50"`
	Queue   int           `yaml:"queue" env-default:"256"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(err)
	}

	return config
}

// Load - reads path and applies env overrides. Missing values fall back to defaults.
func Load(path string) (*Config, error) {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("unable to load config file: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate - rejects values the websocket pumps and the archive queue cannot run with.
func (that *Config) validate() error {
	switch {
	case that.Websocket.PongWait <= 0:
		return fmt.Errorf("%w: websocket.pong-wait must be positive, got %s", errInvalidConfig, that.Websocket.PongWait)
	case that.Websocket.WriteWait <= 0:
		return fmt.Errorf("%w: websocket.write-wait must be positive, got %s", errInvalidConfig, that.Websocket.WriteWait)
	case that.Websocket.SendQueue < 0:
		return fmt.Errorf("%w: websocket.send-queue must not be negative, got %d", errInvalidConfig, that.Websocket.SendQueue)
	case that.Archive.Queue < 0:
		return fmt.Errorf("%w: archive.queue must not be negative, got %d", errInvalidConfig, that.Archive.Queue)
	}

	return nil
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
