package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

const envPrefix = "PAYMENTS"

type Config struct {
	Env      string         `mapstructure:"env"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	GRPC     GRPCConfig     `mapstructure:"grpc"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MoMo     MoMoConfig     `mapstructure:"momo"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Log      LogConfig      `mapstructure:"log"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type GRPCConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type MoMoConfig struct {
	Endpoint         string        `mapstructure:"endpoint"`
	PartnerCode      string        `mapstructure:"partner_code"`
	PartnerName      string        `mapstructure:"partner_name"`
	StoreID          string        `mapstructure:"store_id"`
	AccessKey        string        `mapstructure:"access_key"`
	SecretKey        string        `mapstructure:"secret_key"`
	RedirectURL      string        `mapstructure:"redirect_url"`
	IPNURL           string        `mapstructure:"ipn_url"`
	Lang             string        `mapstructure:"lang"`
	RequestType      string        `mapstructure:"request_type"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxResponseBytes int64         `mapstructure:"max_response_bytes"`
}

type PaymentConfig struct {
	VerifySignature bool `mapstructure:"verify_signature"`
	DevShortcut     bool `mapstructure:"dev_shortcut"`
}

type AdminConfig struct {
	GRPCToken string `mapstructure:"grpc_token"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", EnvDevelopment)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("grpc.addr", ":50051")

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "file:checkout.db?_busy_timeout=5000&_foreign_keys=on")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 25)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 100)

	v.SetDefault("momo.endpoint", "https://test-payment.momo.vn/v2/gateway/api/create")
	v.SetDefault("momo.partner_code", "")
	v.SetDefault("momo.partner_name", "Course Checkout")
	v.SetDefault("momo.store_id", "")
	v.SetDefault("momo.access_key", "")
	v.SetDefault("momo.secret_key", "")
	v.SetDefault("momo.redirect_url", "http://localhost:3000/checkout/result")
	v.SetDefault("momo.ipn_url", "http://localhost:8080/payments/ipn")
	v.SetDefault("momo.lang", "vi")
	v.SetDefault("momo.request_type", "captureWallet")
	v.SetDefault("momo.timeout", 30*time.Second)
	v.SetDefault("momo.max_response_bytes", 1<<20)

	v.SetDefault("payment.verify_signature", true)
	v.SetDefault("payment.dev_shortcut", false)
	v.SetDefault("admin.grpc_token", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads defaults, then the optional YAML file at path, then PAYMENTS_*
// environment variables, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
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

func (c *Config) Validate() error {
	var errs []error

	switch c.Env {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		errs = append(errs, fmt.Errorf("env: unknown environment %q", c.Env))
	}

	if c.IsProduction() {
		if !c.Payment.VerifySignature {
			errs = append(errs, errors.New("payment.verify_signature must be enabled in production"))
		}
		if c.Payment.DevShortcut {
			errs = append(errs, errors.New("payment.dev_shortcut must be disabled in production"))
		}
	}

	if c.Payment.VerifySignature {
		if c.MoMo.AccessKey == "" {
			errs = append(errs, errors.New("momo.access_key is required when signatures are verified"))
		}
		if c.MoMo.SecretKey == "" {
			errs = append(errs, errors.New("momo.secret_key is required when signatures are verified"))
		}
	}

	switch c.Database.Driver {
	case "mysql", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("database.driver: unsupported driver %q", c.Database.Driver))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}
