package app

import (
	"time"

	"github.com/caarlos0/env/v11"

	"emberfall/server/logging"
)

// Config is the process configuration, populated from EMBERFALL_* variables.
type Config struct {
	ListenAddr string `env:"EMBERFALL_LISTEN_ADDR" envDefault:"0.0.0.0:7777"`
	HTTPAddr   string `env:"EMBERFALL_HTTP_ADDR" envDefault:"127.0.0.1:8780"`

	// LoopbackSocket switches the transport to a unixgram socket at the
	// given path, for the local-testing harness.
	LoopbackSocket string `env:"EMBERFALL_LOOPBACK_SOCKET"`

	// MirrorSocket, when set, opens a second unixgram socket the loopback
	// mirror harness pushes coarse global-state frames over.
	MirrorSocket string `env:"EMBERFALL_MIRROR_SOCKET"`

	MaxPlayers     int  `env:"EMBERFALL_MAX_PLAYERS" envDefault:"16"`
	MaxEntities    int  `env:"EMBERFALL_MAX_ENTITIES" envDefault:"64"`
	MaxProjectiles int  `env:"EMBERFALL_MAX_PROJECTILES" envDefault:"128"`
	Dedicated      bool `env:"EMBERFALL_DEDICATED" envDefault:"false"`

	BroadcastInterval  time.Duration `env:"EMBERFALL_BROADCAST_INTERVAL" envDefault:"50ms"`
	EvictAfter         time.Duration `env:"EMBERFALL_EVICT_AFTER" envDefault:"15s"`
	ProjectileLifetime time.Duration `env:"EMBERFALL_PROJECTILE_LIFETIME" envDefault:"10s"`

	LogSinks []string `env:"EMBERFALL_LOG_SINKS" envSeparator:"," envDefault:"console"`
	LogLevel string   `env:"EMBERFALL_LOG_LEVEL" envDefault:"info"`
	LogFile  string   `env:"EMBERFALL_LOG_FILE" envDefault:"emberfall-events.ndjson"`
}

// LoadConfig reads the environment.
func LoadConfig() (Config, error) {
	return env.ParseAs[Config]()
}

func (c Config) severity() logging.Severity {
	switch c.LogLevel {
	case "debug":
		return logging.SeverityDebug
	case "warn":
		return logging.SeverityWarn
	case "error":
		return logging.SeverityError
	default:
		return logging.SeverityInfo
	}
}
