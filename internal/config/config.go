package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ImportConfig struct {
	MaxFileSize  int64         `mapstructure:"max_file_size"`
	SampleRows   int           `mapstructure:"sample_rows"`
	TaskRunner   string        `mapstructure:"task_runner"`
	Workers      int           `mapstructure:"workers"`
	QueueSize    int           `mapstructure:"queue_size"`
	StaleAfter   time.Duration `mapstructure:"stale_after"`
	ReapInterval time.Duration `mapstructure:"reap_interval"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
}

type Config struct {
	DatabaseURL string         `mapstructure:"database_url"`
	ServerPort  string         `mapstructure:"server_port"`
	JWTSecret   string         `mapstructure:"jwt_secret"`
	CORSOrigins []string       `mapstructure:"cors_origins"`
	Log         LogConfig      `mapstructure:"log"`
	Import      ImportConfig   `mapstructure:"import"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Temporal    TemporalConfig `mapstructure:"temporal"`
	Email       EmailConfig    `mapstructure:"email"`
}

type EmailConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	From            string   `mapstructure:"from"`
	SMTPHost        string   `mapstructure:"smtp_host"`
	SMTPPort        int      `mapstructure:"smtp_port"`
	Username        string   `mapstructure:"username"`
	Password        string   `mapstructure:"password"`
	AlertRecipients []string `mapstructure:"alert_recipients"`
}

const (
	RunnerLocal    = "local"
	RunnerTemporal = "temporal"
)

// Load reads config.yaml from . or ./config. IMPORT_ prefixed environment variables override
// file values, e.g. IMPORT_REDIS_ADDR for redis.addr.
func Load() *Config {
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("IMPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatalf("Error reading config file: %v", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		log.Fatalf("Error unmarshalling config: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT secret must be set in the config file")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("database_url must be set")
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database_url", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("server_port", "8080")
	v.SetDefault("cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("import.max_file_size", 10<<20)
	v.SetDefault("import.sample_rows", 5)
	v.SetDefault("import.task_runner", RunnerLocal)
	v.SetDefault("import.workers", 2)
	v.SetDefault("import.queue_size", 64)
	v.SetDefault("import.stale_after", 15*time.Minute)
	v.SetDefault("import.reap_interval", time.Minute)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "imports")
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("email.enabled", false)
	v.SetDefault("email.smtp_port", 587)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.Import.TaskRunner = strings.ToLower(strings.TrimSpace(cfg.Import.TaskRunner))
	if cfg.Import.TaskRunner != RunnerTemporal {
		cfg.Import.TaskRunner = RunnerLocal
	}
	return &cfg, nil
}
