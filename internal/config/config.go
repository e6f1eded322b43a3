package config

import (
	"fmt"
	"time"

	"github.com/openremoteio/remoteio/internal/types"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig           `mapstructure:"server"`
	Database DatabaseConfig         `mapstructure:"database"`
	Auth     AuthConfig             `mapstructure:"auth"`
	Gateway  GatewayConfig          `mapstructure:"gateway"`
	Profiles ProfilesConfig         `mapstructure:"device_profiles"`
	Devices  []types.InstanceConfig `mapstructure:"devices"`
}

type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// AuthConfig carries the machine tokens accepted by the API. With no
// tokens configured the API runs open, with a startup warning.
type AuthConfig struct {
	MachineTokens []string `mapstructure:"machine_tokens"`
}

type GatewayConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	TickBudget   time.Duration `mapstructure:"tick_budget"`
}

type ProfilesConfig struct {
	SearchPaths []string `mapstructure:"search_paths"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("server.shutdown_timeout", "30s")
	viper.SetDefault("gateway.tick_interval", "1s")
	viper.SetDefault("gateway.tick_budget", "800ms")
	viper.SetDefault("database.max_connections", 10)

	viper.AutomaticEnv()
	viper.SetEnvPrefix("RIO")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// Enabled reports whether persistence is configured at all; with no
// database host the gateway runs from the static device list alone.
func (c *DatabaseConfig) Enabled() bool {
	return c.Host != ""
}
