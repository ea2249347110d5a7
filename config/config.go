package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
}

type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	HTTPPort     string        `mapstructure:"http_port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig — driver: mysql | postgres | sqlite.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text | json
	File   string `mapstructure:"file"`
}

type SyncConfig struct {
	DefaultDeviceID     string        `mapstructure:"default_device_id"`
	LivenessWindow      time.Duration `mapstructure:"liveness_window"`
	TotalPowerTolerance float64       `mapstructure:"total_power_tolerance"`
}

type MonitorConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	DeviceID string        `mapstructure:"device_id"`
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type SimulatorConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	DeviceID string        `mapstructure:"device_id"`
	Interval time.Duration `mapstructure:"interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.http_port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "dchome.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")

	v.SetDefault("sync.default_device_id", "esp32_smart_home_01")
	v.SetDefault("sync.liveness_window", 15*time.Second)
	v.SetDefault("sync.total_power_tolerance", 1.0)

	v.SetDefault("monitor.base_url", "http://127.0.0.1:8080")
	v.SetDefault("monitor.device_id", "esp32_smart_home_01")
	v.SetDefault("monitor.interval", 2*time.Second)
	v.SetDefault("monitor.timeout", 5*time.Second)

	v.SetDefault("simulator.base_url", "http://127.0.0.1:8080")
	v.SetDefault("simulator.device_id", "esp32_smart_home_01")
	v.SetDefault("simulator.interval", 5*time.Second)
}

// Load читает конфиг: defaults -> файл (если указан) -> DCHOME_* env -> флаги.
// flags может быть nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DCHOME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
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

// flag "db-driver" -> key "database.driver" и т.д.
var flagKeys = map[string]string{
	"address":       "server.address",
	"port":          "server.http_port",
	"db-driver":     "database.driver",
	"db-dsn":        "database.dsn",
	"log-level":     "logging.level",
	"log-format":    "logging.format",
	"log-file":      "logging.file",
	"device-id":     "sync.default_device_id",
	"base-url":      "monitor.base_url",
	"watch-id":      "monitor.device_id",
	"interval":      "monitor.interval",
	"sim-base-url":  "simulator.base_url",
	"sim-device-id": "simulator.device_id",
	"sim-interval":  "simulator.interval",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	if c.Sync.LivenessWindow <= 0 {
		return fmt.Errorf("sync.liveness_window must be positive")
	}
	if c.Sync.TotalPowerTolerance < 0 {
		return fmt.Errorf("sync.total_power_tolerance must not be negative")
	}
	if strings.TrimSpace(c.Sync.DefaultDeviceID) == "" {
		return fmt.Errorf("sync.default_device_id is required")
	}
	return nil
}
