package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

type Config struct {
	Mode Mode `mapstructure:"mode"`

	Port string `mapstructure:"port"`

	GCPProjectID string `mapstructure:"gcp_project"`

	StorageBackend string `mapstructure:"storage_backend"` // "memory", "firestore" or "mongo"
	Mongo          MongoCfg
	Redis          RedisCfg
	Kafka          KafkaCfg
	Auth           AuthCfg

	Notifiers     []string      `mapstructure:"notifiers"` // any of "log", "fcm", "kafka"
	NotifyTimeout time.Duration `mapstructure:"notify_timeout"`
	WatchListings bool          `mapstructure:"watch_listings"`

	LogLevel       string `mapstructure:"log_level"`
	LogDevelopment bool   `mapstructure:"log_development"`
}

type MongoCfg struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisCfg struct {
	Addr       string        `mapstructure:"addr"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	ProfileTTL time.Duration `mapstructure:"profile_ttl"`
}

type KafkaCfg struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type AuthCfg struct {
	Provider     string `mapstructure:"provider"` // "header", "jwt" or "firebase"
	JWTSecret    string `mapstructure:"jwt_secret"`
	JWTPublicKey string `mapstructure:"jwt_public_key_path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", string(ModeLocal))
	v.SetDefault("port", "8080")
	v.SetDefault("gcp_project", "")
	v.SetDefault("storage_backend", "memory")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "rentchat")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.profile_ttl", 5*time.Minute)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "chat.notifications")
	v.SetDefault("auth.provider", "header")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_public_key_path", "")
	v.SetDefault("notifiers", []string{"log"})
	v.SetDefault("notify_timeout", 5*time.Second)
	v.SetDefault("watch_listings", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_development", false)
}

// Load reads .env, an optional config file (RENTCHAT_CONFIG) and RENTCHAT_* env vars.
// Nested keys map to env vars with "_": redis.addr -> RENTCHAT_REDIS_ADDR.
func Load() (*Config, error) {
	// .env is optional; real env vars win over it.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("RENTCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	// AutomaticEnv does not split lists for Unmarshal.
	cfg.Notifiers = splitList(v.GetStringSlice("notifiers"))
	cfg.Kafka.Brokers = splitList(v.GetStringSlice("kafka.brokers"))

	switch cfg.Mode {
	case ModeGCP, ModeLocal:
	default:
		cfg.Mode = ModeLocal
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	// Minimal validation in GCP mode
	if c.Mode == ModeGCP && c.GCPProjectID == "" {
		errs = append(errs, errors.New("RENTCHAT_GCP_PROJECT must be set in gcp mode"))
	}
	switch c.StorageBackend {
	case "memory", "mongo":
	case "firestore":
		if c.GCPProjectID == "" {
			errs = append(errs, errors.New("RENTCHAT_GCP_PROJECT is required for the firestore backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.StorageBackend))
	}
	for _, n := range c.Notifiers {
		switch n {
		case "log", "fcm":
		case "kafka":
			if len(c.Kafka.Brokers) == 0 {
				errs = append(errs, errors.New("RENTCHAT_KAFKA_BROKERS is required for the kafka notifier"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown notifier %q", n))
		}
	}
	switch c.Auth.Provider {
	case "header", "firebase":
	case "jwt":
		if c.Auth.JWTSecret == "" && c.Auth.JWTPublicKey == "" {
			errs = append(errs, errors.New("jwt auth needs RENTCHAT_AUTH_JWT_SECRET or RENTCHAT_AUTH_JWT_PUBLIC_KEY_PATH"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown auth provider %q", c.Auth.Provider))
	}
	return errors.Join(errs...)
}

// UsesFirebase reports whether a Firebase app has to be initialized.
func (c *Config) UsesFirebase() bool {
	if c.Auth.Provider == "firebase" {
		return true
	}
	for _, n := range c.Notifiers {
		if n == "fcm" {
			return true
		}
	}
	return false
}

func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
