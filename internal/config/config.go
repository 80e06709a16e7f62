package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Orders    OrdersConfig    `mapstructure:"orders"`
	Push      PushConfig      `mapstructure:"push"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Relevance RelevanceConfig `mapstructure:"relevance"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

type OrdersConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

type PushConfig struct {
	URL          string        `mapstructure:"url"`
	Room         string        `mapstructure:"room"`
	ReconnectMin time.Duration `mapstructure:"reconnect_min"`
	ReconnectMax time.Duration `mapstructure:"reconnect_max"`
	DeferDelay   time.Duration `mapstructure:"defer_delay"`
}

type RedisConfig struct {
	URL        string        `mapstructure:"url"`
	SeenKey    string        `mapstructure:"seen_key"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

type RelevanceConfig struct {
	PushWindow time.Duration `mapstructure:"push_window"`
	PollWindow time.Duration `mapstructure:"poll_window"`
}

type AlertsConfig struct {
	Expiry     time.Duration `mapstructure:"expiry"`
	CueRepeat  time.Duration `mapstructure:"cue_repeat"`
	HistoryCap int           `mapstructure:"history_cap"`
}

// envOverrides are the deployment-level settings that commonly differ per
// environment and are injected through the process environment.
type envOverrides struct {
	OrdersURL string `envconfig:"ORDERS_URL"`
	PushURL   string `envconfig:"PUSH_URL"`
	RedisURL  string `envconfig:"REDIS_URL"`
	Port      int    `envconfig:"PORT"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var env envOverrides
	if err := envconfig.Process("orderwatch", &env); err != nil {
		return nil, fmt.Errorf("failed to process environment overrides: %w", err)
	}
	if env.OrdersURL != "" {
		config.Orders.BaseURL = env.OrdersURL
	}
	if env.PushURL != "" {
		config.Push.URL = env.PushURL
	}
	if env.RedisURL != "" {
		config.Redis.URL = env.RedisURL
	}
	if env.Port != 0 {
		config.Server.Port = env.Port
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8090)
	viper.SetDefault("server.timeout_seconds", 30)
	viper.SetDefault("orders.poll_interval", "5s")
	viper.SetDefault("orders.fetch_timeout", "10s")
	viper.SetDefault("push.room", "admin")
	viper.SetDefault("push.reconnect_min", "1s")
	viper.SetDefault("push.reconnect_max", "30s")
	viper.SetDefault("push.defer_delay", "2s")
	viper.SetDefault("redis.seen_key", "orderwatch:seen")
	viper.SetDefault("redis.session_ttl", "12h")
	viper.SetDefault("relevance.push_window", "2m")
	viper.SetDefault("relevance.poll_window", "10m")
	viper.SetDefault("alerts.expiry", "2m")
	viper.SetDefault("alerts.cue_repeat", "10s")
	viper.SetDefault("alerts.history_cap", 20)
}

func (c *Config) validate() error {
	if c.Orders.BaseURL == "" {
		return fmt.Errorf("orders.base_url is required")
	}
	if c.Orders.PollInterval <= 0 {
		return fmt.Errorf("orders.poll_interval must be positive")
	}
	if c.Relevance.PushWindow <= 0 || c.Relevance.PollWindow <= 0 {
		return fmt.Errorf("relevance windows must be positive")
	}
	if c.Relevance.PushWindow > c.Relevance.PollWindow {
		return fmt.Errorf("relevance.push_window must not exceed relevance.poll_window")
	}
	if c.Alerts.Expiry <= 0 {
		return fmt.Errorf("alerts.expiry must be positive")
	}
	return nil
}
