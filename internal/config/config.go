package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

type Config struct {
	LogLevel       string   `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort       string   `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	SocketPort     string   `yaml:"socket-port" env:"SOCKET_PORT" env-default:"8080"`
	StaticDir      string   `yaml:"static-dir" env:"STATIC_DIR"`
	AllowedOrigins []string `yaml:"allowed-origins" env:"ALLOWED_ORIGINS" env-separator:","`
	Storage        string   `yaml:"storage" env:"STORAGE" env-default:"memory"`
	Redis          Redis    `yaml:"redis"`
	Room           Room     `yaml:"room"`
}

type Redis struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Room struct {
	// IdleTimeout evicts rooms left waiting for an opponent longer than this. Zero disables eviction.
	IdleTimeout       time.Duration `yaml:"idle-timeout" env:"ROOM_IDLE_TIMEOUT" env-default:"0s"`
	SweepInterval     time.Duration `yaml:"sweep-interval" env:"ROOM_SWEEP_INTERVAL" env-default:"30s"`
	EnforceMembership bool          `yaml:"enforce-membership" env:"ROOM_ENFORCE_MEMBERSHIP" env-default:"false"`
	SendBuffer        int           `yaml:"send-buffer" env:"ROOM_SEND_BUFFER" env-default:"32"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	if err := config.Validate(); err != nil {
		panic(fmt.Errorf("invalid config: %w", err))
	}

	return config
}

func (that *Config) Validate() error {
	switch that.Storage {
	case StorageMemory, StorageRedis:
	default:
		return fmt.Errorf("unknown storage %q", that.Storage)
	}

	if that.Room.IdleTimeout < 0 {
		return fmt.Errorf("room idle-timeout must not be negative: %s", that.Room.IdleTimeout)
	}

	if that.Room.IdleTimeout > 0 && that.Room.SweepInterval <= 0 {
		return fmt.Errorf("room sweep-interval must be positive: %s", that.Room.SweepInterval)
	}

	return nil
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
