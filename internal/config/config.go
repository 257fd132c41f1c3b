package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration shared by the server, matchmaker and tools.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Matchmaker MatchmakerConfig `mapstructure:"matchmaker"`
	Game       GameConfig       `mapstructure:"game"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig configures the game server listeners.
type ServerConfig struct {
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	// PublicIP and the bound game port are announced to the matchmaker.
	PublicIP string `mapstructure:"public_ip"`
	RoomName string `mapstructure:"room_name"`
}

type WebSocketConfig struct {
	Address         string        `mapstructure:"address"`
	Path            string        `mapstructure:"path"`
	ReadLimit       int64         `mapstructure:"read_limit"`
	PongWait        time.Duration `mapstructure:"pong_wait"`
	PingPeriod      time.Duration `mapstructure:"ping_period"`
	WriteWait       time.Duration `mapstructure:"write_wait"`
	SendBufferSize  int           `mapstructure:"send_buffer_size"`
	PortRangeLength int           `mapstructure:"port_range_length"`
}

type HTTPConfig struct {
	Address string `mapstructure:"address"`
	Enabled bool   `mapstructure:"enabled"`
}

type GRPCConfig struct {
	Address string `mapstructure:"address"`
	Enabled bool   `mapstructure:"enabled"`
}

// MatchmakerConfig configures both the registry service and its clients.
type MatchmakerConfig struct {
	Address           string        `mapstructure:"address"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
	RoomTimeout       time.Duration `mapstructure:"room_timeout"`
	DiscoveryTimeout  time.Duration `mapstructure:"discovery_timeout"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	MaxDatagramSize   int           `mapstructure:"max_datagram_size"`

	// HealthAddress serves gRPC health for the matchmaker binary; empty disables it.
	HealthAddress string `mapstructure:"health_address"`
}

// GameConfig holds the rules constants of a match.
type GameConfig struct {
	MaxHealth            int           `mapstructure:"max_health"`
	MaxMana              int           `mapstructure:"max_mana"`
	HandSize             int           `mapstructure:"hand_size"`
	DeckSize             int           `mapstructure:"deck_size"`
	AttackAnimationDelay time.Duration `mapstructure:"attack_animation_delay"`
	DestroyDelay         time.Duration `mapstructure:"destroy_delay"`
	EnforceTurnOrder     bool          `mapstructure:"enforce_turn_order"`
	InboxSize            int           `mapstructure:"inbox_size"`
}

// CatalogConfig points at the static card data.
type CatalogConfig struct {
	Path        string `mapstructure:"path"`
	DatabaseURL string `mapstructure:"database_url"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from path, falling back to defaults when the file
// does not exist. Environment variables prefixed with DRAGON_ override keys,
// e.g. DRAGON_MATCHMAKER_ADDRESS.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DRAGON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.websocket.address", ":7777")
	v.SetDefault("server.websocket.path", "/ws")
	v.SetDefault("server.websocket.read_limit", 1<<20)
	v.SetDefault("server.websocket.pong_wait", 60*time.Second)
	v.SetDefault("server.websocket.ping_period", 25*time.Second)
	v.SetDefault("server.websocket.write_wait", 10*time.Second)
	v.SetDefault("server.websocket.send_buffer_size", 256)
	v.SetDefault("server.websocket.port_range_length", 100)
	v.SetDefault("server.http.address", ":8080")
	v.SetDefault("server.http.enabled", true)
	v.SetDefault("server.grpc.address", ":50051")
	v.SetDefault("server.grpc.enabled", true)
	v.SetDefault("server.public_ip", "127.0.0.1")
	v.SetDefault("server.room_name", "")

	v.SetDefault("matchmaker.address", "127.0.0.1:5555")
	v.SetDefault("matchmaker.cleanup_interval", 30*time.Second)
	v.SetDefault("matchmaker.room_timeout", 60*time.Second)
	v.SetDefault("matchmaker.discovery_timeout", 2*time.Second)
	v.SetDefault("matchmaker.heartbeat_interval", 20*time.Second)
	v.SetDefault("matchmaker.max_datagram_size", 8192)
	v.SetDefault("matchmaker.health_address", ":50052")

	v.SetDefault("game.max_health", 30)
	v.SetDefault("game.max_mana", 10)
	v.SetDefault("game.hand_size", 7)
	v.SetDefault("game.deck_size", 30)
	v.SetDefault("game.attack_animation_delay", 2*time.Second)
	v.SetDefault("game.destroy_delay", 1500*time.Millisecond)
	v.SetDefault("game.enforce_turn_order", false)
	v.SetDefault("game.inbox_size", 256)

	v.SetDefault("catalog.path", "config/cards.yaml")
	v.SetDefault("catalog.database_url", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Validate rejects configurations that would break match invariants.
func (c *Config) Validate() error {
	if c.Game.MaxMana <= 0 {
		return fmt.Errorf("game.max_mana must be positive, got %d", c.Game.MaxMana)
	}
	if c.Game.MaxHealth <= 0 {
		return fmt.Errorf("game.max_health must be positive, got %d", c.Game.MaxHealth)
	}
	if c.Game.HandSize < 0 {
		return fmt.Errorf("game.hand_size must not be negative")
	}
	if c.Matchmaker.RoomTimeout <= 0 || c.Matchmaker.CleanupInterval <= 0 || c.Matchmaker.HeartbeatInterval <= 0 {
		return fmt.Errorf("matchmaker intervals must be positive")
	}
	if c.Server.WebSocket.PortRangeLength < 0 {
		return fmt.Errorf("server.websocket.port_range_length must not be negative")
	}
	return nil
}
