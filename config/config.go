package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/slighter12/go-lib/database/postgres"
)

const (
	defaultMaxRequestBodySize = "64KB"

	defaultSlowQueryThreshold  = 200 * time.Millisecond
	defaultPoolMonitorInterval = 5 * time.Second

	defaultMaxActiveSessions = 5
	defaultAccessTTL         = 15 * time.Minute
	defaultRefreshTTL        = 7 * 24 * time.Hour
	defaultShortRefreshTTL   = 24 * time.Hour

	defaultJanitorSchedule      = "@daily"
	defaultJanitorRetentionDays = 7

	defaultPresenceBroadcastInterval = 30 * time.Second
	defaultEventBufferSize           = 256

	defaultWSReadLimit = 4096
	defaultWSPongWait  = 90 * time.Second
	defaultWSWriteWait = 10 * time.Second
)

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port               int    `json:"port" yaml:"port"`
		MaxRequestBodySize string `json:"maxRequestBodySize" yaml:"maxRequestBodySize"`
		Timeouts           struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
	} `json:"http" yaml:"http"`

	Postgres *postgres.DBConn `json:"postgres" yaml:"postgres" mapstructure:"postgres"`

	Database struct {
		AutoMigrate bool `json:"autoMigrate" yaml:"autoMigrate"`
		// SlowQueryThreshold marks queries logged as slow.
		SlowQueryThreshold time.Duration `json:"slowQueryThreshold" yaml:"slowQueryThreshold"`
		// PoolMonitorInterval is how often pool waits are sampled. Negative disables sampling.
		PoolMonitorInterval time.Duration `json:"poolMonitorInterval" yaml:"poolMonitorInterval"`
	} `json:"database" yaml:"database"`

	SecretKey struct {
		Access  string `json:"access" yaml:"access"`
		Refresh string `json:"refresh" yaml:"refresh"`
	} `json:"secretKey" yaml:"secretKey"`

	Auth *AuthConfig `json:"auth" yaml:"auth"`

	Janitor *JanitorConfig `json:"janitor" yaml:"janitor"`

	Presence *PresenceConfig `json:"presence" yaml:"presence"`

	Events *EventsConfig `json:"events" yaml:"events"`

	WebSocket *WebSocketConfig `json:"websocket" yaml:"websocket"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// AuthConfig defines authentication and session policy.
type AuthConfig struct {
	BcryptCost        int `json:"bcryptCost" yaml:"bcryptCost"`
	MaxActiveSessions int `json:"maxActiveSessions" yaml:"maxActiveSessions"`

	AccessTTL time.Duration `json:"accessTTL" yaml:"accessTTL"`
	// RefreshTTL applies to sessions created with keepLogin.
	RefreshTTL time.Duration `json:"refreshTTL" yaml:"refreshTTL"`
	// ShortRefreshTTL applies to sessions created without keepLogin.
	ShortRefreshTTL time.Duration `json:"shortRefreshTTL" yaml:"shortRefreshTTL"`

	CookieSecure bool `json:"cookieSecure" yaml:"cookieSecure"`
}

// JanitorConfig controls the inactive session sweep.
type JanitorConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	Schedule      string `json:"schedule" yaml:"schedule"`
	RetentionDays int    `json:"retentionDays" yaml:"retentionDays"`
}

// PresenceConfig controls the periodic online-count broadcast.
type PresenceConfig struct {
	BroadcastInterval time.Duration `json:"broadcastInterval" yaml:"broadcastInterval"`
}

// EventsConfig sizes the in-process event channels.
type EventsConfig struct {
	BufferSize int `json:"bufferSize" yaml:"bufferSize"`
}

// WebSocketConfig tunes the realtime transport.
type WebSocketConfig struct {
	ReadLimit      int64         `json:"readLimit" yaml:"readLimit"`
	PongWait       time.Duration `json:"pongWait" yaml:"pongWait"`
	WriteWait      time.Duration `json:"writeWait" yaml:"writeWait"`
	AllowedOrigins []string      `json:"allowedOrigins" yaml:"allowedOrigins"`
}

func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if cfg.Postgres != nil {
		// POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, ...
		cfg.Postgres.Replicas = buildReplicasFromEnv()
	}

	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if strings.TrimSpace(cfg.HTTP.MaxRequestBodySize) == "" {
		cfg.HTTP.MaxRequestBodySize = defaultMaxRequestBodySize
	}

	if cfg.Database.SlowQueryThreshold <= 0 {
		cfg.Database.SlowQueryThreshold = defaultSlowQueryThreshold
	}
	if cfg.Database.PoolMonitorInterval == 0 {
		cfg.Database.PoolMonitorInterval = defaultPoolMonitorInterval
	}

	if cfg.Auth == nil {
		cfg.Auth = &AuthConfig{}
	}
	if cfg.Auth.MaxActiveSessions <= 0 {
		cfg.Auth.MaxActiveSessions = defaultMaxActiveSessions
	}
	if cfg.Auth.AccessTTL <= 0 {
		cfg.Auth.AccessTTL = defaultAccessTTL
	}
	if cfg.Auth.RefreshTTL <= 0 {
		cfg.Auth.RefreshTTL = defaultRefreshTTL
	}
	if cfg.Auth.ShortRefreshTTL <= 0 {
		cfg.Auth.ShortRefreshTTL = defaultShortRefreshTTL
	}

	if cfg.Janitor == nil {
		cfg.Janitor = &JanitorConfig{Enabled: true}
	}
	if strings.TrimSpace(cfg.Janitor.Schedule) == "" {
		cfg.Janitor.Schedule = defaultJanitorSchedule
	}
	if cfg.Janitor.RetentionDays <= 0 {
		cfg.Janitor.RetentionDays = defaultJanitorRetentionDays
	}

	if cfg.Presence == nil {
		cfg.Presence = &PresenceConfig{}
	}
	if cfg.Presence.BroadcastInterval <= 0 {
		cfg.Presence.BroadcastInterval = defaultPresenceBroadcastInterval
	}

	if cfg.Events == nil {
		cfg.Events = &EventsConfig{}
	}
	if cfg.Events.BufferSize <= 0 {
		cfg.Events.BufferSize = defaultEventBufferSize
	}

	if cfg.WebSocket == nil {
		cfg.WebSocket = &WebSocketConfig{}
	}
	if cfg.WebSocket.ReadLimit <= 0 {
		cfg.WebSocket.ReadLimit = defaultWSReadLimit
	}
	if cfg.WebSocket.PongWait <= 0 {
		cfg.WebSocket.PongWait = defaultWSPongWait
	}
	if cfg.WebSocket.WriteWait <= 0 {
		cfg.WebSocket.WriteWait = defaultWSWriteWait
	}
}

// buildReplicasFromEnv reads POSTGRES_REPLICAS_{index}_{HOST,PORT,USERNAME,PASSWORD}
// until the first index without a host or port.
func buildReplicasFromEnv() []postgres.ConnectionConfig {
	var replicas []postgres.ConnectionConfig

	for i := 0; ; i++ {
		prefix := "POSTGRES_REPLICAS_" + strconv.Itoa(i) + "_"

		host := os.Getenv(prefix + "HOST")
		port := os.Getenv(prefix + "PORT")
		if host == "" || port == "" {
			break
		}

		replicas = append(replicas, postgres.ConnectionConfig{
			Host:     host,
			Port:     port,
			UserName: os.Getenv(prefix + "USERNAME"),
			Password: os.Getenv(prefix + "PASSWORD"),
		})
	}

	return replicas
}

// NewTestConfig returns a fully defaulted config for unit tests.
func NewTestConfig() *Config {
	cfg := &Config{}
	cfg.Env.Env = "test"
	cfg.SecretKey.Access = "test-access-secret"
	cfg.SecretKey.Refresh = "test-refresh-secret"
	cfg.applyDefaults()

	return cfg
}
