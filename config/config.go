// Package config loads productsync settings from defaults, an optional
// config file, a .env file and PRODUCTSYNC_* environment variables, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/c0deZ3R0/productsync/logging"
)

// EnvPrefix prefixes every environment variable, e.g. PRODUCTSYNC_REMOTE_BASE_URL.
const EnvPrefix = "PRODUCTSYNC"

type Config struct {
	Remote    RemoteConfig    `mapstructure:"remote"`
	Store     StoreConfig     `mapstructure:"store"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       logging.Config  `mapstructure:"log"`
	Mock      MockConfig      `mapstructure:"mock"`
}

type RemoteConfig struct {
	BaseURL         string        `mapstructure:"base_url" validate:"required,url"`
	ImageBaseURL    string        `mapstructure:"image_base_url" validate:"omitempty,url"`
	Timeout         time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxResponseSize int64         `mapstructure:"max_response_size" validate:"gt=0"`
}

type StoreConfig struct {
	Path      string `mapstructure:"path" validate:"required"`
	EnableWAL bool   `mapstructure:"enable_wal"`
}

type SchedulerConfig struct {
	Interval       time.Duration `mapstructure:"interval" validate:"gte=1s"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" validate:"gt=0"`
	Multiplier     float64       `mapstructure:"multiplier" validate:"gte=1"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" validate:"gtefield=InitialBackoff"`
	MaxAttempts    int           `mapstructure:"max_attempts" validate:"gte=0"`
	RequireNetwork bool          `mapstructure:"require_network"`
	StatusPath     string        `mapstructure:"status_path"`
	Retention      time.Duration `mapstructure:"retention" validate:"gt=0"`
}

// MockConfig configures the reference remote served by `productsync mock-remote`.
type MockConfig struct {
	Addr      string `mapstructure:"addr" validate:"required"`
	Seed      string `mapstructure:"seed"`
	UploadDir string `mapstructure:"upload_dir"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("remote.base_url", "https://app.getswipe.in/api")
	v.SetDefault("remote.image_base_url", "https://app.getswipe.in")
	v.SetDefault("remote.timeout", 30*time.Second)
	v.SetDefault("remote.max_response_size", 10*1024*1024)

	v.SetDefault("store.path", "productsync.db")
	v.SetDefault("store.enable_wal", true)

	v.SetDefault("scheduler.interval", 15*time.Minute)
	v.SetDefault("scheduler.initial_backoff", 10*time.Second)
	v.SetDefault("scheduler.multiplier", 2.0)
	v.SetDefault("scheduler.max_backoff", 5*time.Hour)
	v.SetDefault("scheduler.max_attempts", 0)
	v.SetDefault("scheduler.require_network", true)
	v.SetDefault("scheduler.status_path", "productsync-jobs.db")
	v.SetDefault("scheduler.retention", 7*24*time.Hour)

	v.SetDefault("log.level", logging.DefaultConfig.Level)
	v.SetDefault("log.format", logging.DefaultConfig.Format)
	v.SetDefault("log.add_source", false)
	v.SetDefault("log.environment", logging.DefaultConfig.Environment)
	v.SetDefault("log.file.path", "")
	v.SetDefault("log.file.max_size_mb", 64)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.max_age_days", 7)
	v.SetDefault("log.file.compress", false)

	v.SetDefault("mock.addr", "127.0.0.1:8089")
	v.SetDefault("mock.seed", "")
	v.SetDefault("mock.upload_dir", "")
}

// Load reads the configuration. path may be empty; a missing .env file is
// not an error, a missing explicit config file is.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return load(viper.New(), path)
}

func load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Log = logging.ApplyEnvironmentDefaults(cfg.Log)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate checks value ranges that defaults alone cannot guarantee.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
