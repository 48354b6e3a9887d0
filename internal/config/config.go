package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel   string  `yaml:"log-level" env-default:"info"`
	HTTPPort   string  `yaml:"http-port" env-default:"9090"`
	SocketPort string  `yaml:"socket-port" env-default:"8080"`
	Session    Session `yaml:"session"`
}

type Session struct {
	// TTL is how long a session with no live connections survives before
	// the reaper removes it.
	TTL time.Duration `env:"SESSION_TTL" env-default:"20m"`

	// SweepInterval is the pause between reaper sweeps.
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" env-default:"10m"`

	// HeartbeatInterval is how long a connection may stay silent before it
	// is treated as disconnected.
	HeartbeatInterval time.Duration `env:"SESSION_HEARTBEAT_INTERVAL" env-default:"60s"`

	// SendBufferSize is the per-connection outbound queue; a client that
	// falls this far behind is disconnected.
	SendBufferSize int `yaml:"send-buffer-size" env-default:"32"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}
