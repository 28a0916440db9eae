package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	SlowRequestMs  int      `mapstructure:"slow_request_ms"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // postgres or sqlite
	DSN          string `mapstructure:"dsn"`
	LogMode      bool   `mapstructure:"log_mode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

type TwilioConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	AccountSID     string `mapstructure:"account_sid"`
	AuthToken      string `mapstructure:"auth_token"`
	FromNumber     string `mapstructure:"from_number"`
	WhatsAppNumber string `mapstructure:"whatsapp_number"`
}

type EventsConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Region      string `mapstructure:"region"`
	SQSQueueURL string `mapstructure:"sqs_queue_url"`
	// Static keys; empty means the default AWS credential chain.
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

type SchedulerConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ReconcileSpec string `mapstructure:"reconcile_spec"`
	ExpirySpec    string `mapstructure:"expiry_spec"`
}

type LedgerConfig struct {
	MaxRetries int `mapstructure:"max_retries"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Twilio    TwilioConfig    `mapstructure:"twilio"`
	Events    EventsConfig    `mapstructure:"events"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
}

var (
	appConfig *Config
	once      sync.Once
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.slow_request_ms", 200)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.log_mode", false)
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry_hours", 24)

	v.SetDefault("twilio.enabled", false)
	v.SetDefault("events.enabled", false)
	v.SetDefault("events.region", "ap-south-1")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.reconcile_spec", "30 2 * * *")
	v.SetDefault("scheduler.expiry_spec", "0 9 * * *")

	v.SetDefault("ledger.max_retries", 3)
}

// Load reads config.yaml (or the given path) and FITSENSE_* environment
// overrides, e.g. FITSENSE_DATABASE_DSN. A missing file is not an error.
func Load(path string) (*Config, error) {
	var err error
	once.Do(func() {
		v := viper.New()
		setDefaults(v)

		if path == "" {
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			v.AddConfigPath(".")
		} else {
			v.SetConfigFile(path)
		}

		v.SetEnvPrefix("FITSENSE")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		if rerr := v.ReadInConfig(); rerr != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(rerr, &notFound) && !errors.Is(rerr, fs.ErrNotExist) {
				err = fmt.Errorf("read config: %w", rerr)
				return
			}
		}

		var c Config
		if err = v.Unmarshal(&c); err != nil {
			err = fmt.Errorf("unmarshal config: %w", err)
			return
		}

		appConfig = &c
	})

	if err != nil {
		return nil, err
	}
	return appConfig, nil
}

// Get returns the configuration loaded by Load.
func Get() *Config {
	return appConfig
}
