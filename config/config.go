package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

// EnvPrefix is prepended to every environment override, e.g. BLOG_JWT_SECRETKEY.
const EnvPrefix = "BLOG"

type Config struct {
	Mode     string `mapstructure:"mode"`
	Dotenv   string `mapstructure:"dotenv"`
	Handlers struct {
		Prometheus struct {
			Port string `mapstructure:"port"`
		} `mapstructure:"prometheus"`
	} `mapstructure:"handlers"`
	Repositories struct {
		Postgres struct {
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Client    ClientConfig    `mapstructure:"client"`
	Mail      MailConfig      `mapstructure:"mail"`
	Tokens    TokenConfig     `mapstructure:"tokens"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
}

// JWTConfig configures the session tokens handed out on login.
type JWTConfig struct {
	SecretKey      string        `mapstructure:"secretKey"`
	AccessTokenTTL time.Duration `mapstructure:"accessTokenTTL"`
	Issuer         string        `mapstructure:"issuer"`
	Audience       string        `mapstructure:"audience"`
}

// ClientConfig describes the browser-facing frontend. Domain is the origin
// used when building verification and reset links.
type ClientConfig struct {
	Domain         string   `mapstructure:"domain"`
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

type MailConfig struct {
	Driver string `mapstructure:"driver"` // smtp | resend | log
	From   string `mapstructure:"from"`
	SMTP   struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
	} `mapstructure:"smtp"`
	Resend struct {
		APIKey  string `mapstructure:"apiKey"`
		BaseURL string `mapstructure:"baseURL"`
	} `mapstructure:"resend"`
	Workers     int           `mapstructure:"workers"`
	QueueSize   int           `mapstructure:"queueSize"`
	SendTimeout time.Duration `mapstructure:"sendTimeout"`
	DedupWindow time.Duration `mapstructure:"dedupWindow"`
}

type TokenConfig struct {
	VerifyTTL time.Duration `mapstructure:"verifyTTL"`
	ResetTTL  time.Duration `mapstructure:"resetTTL"`
}

type AuthConfig struct {
	BcryptCost int `mapstructure:"bcryptCost"`
	// ConcealUnknownEmail makes the reset-link endpoint answer identically
	// for known and unknown addresses.
	ConcealUnknownEmail bool `mapstructure:"concealUnknownEmail"`
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err = config.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.JWT.SecretKey == "" {
		errs = append(errs, errors.New("jwt.secretKey is required"))
	}
	if c.JWT.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("jwt.accessTokenTTL must be positive"))
	}
	if c.Client.Domain == "" {
		errs = append(errs, errors.New("client.domain is required"))
	}
	if c.Tokens.VerifyTTL <= 0 || c.Tokens.ResetTTL <= 0 {
		errs = append(errs, errors.New("tokens.verifyTTL and tokens.resetTTL must be positive"))
	}
	switch c.Mail.Driver {
	case "smtp", "resend", "log":
	default:
		errs = append(errs, fmt.Errorf("mail.driver %q is not one of smtp, resend, log", c.Mail.Driver))
	}
	if c.Mail.Driver == "log" && c.Mode != "" && c.Mode != "development" {
		errs = append(errs, fmt.Errorf("mail.driver log only delivers to the log and is not allowed in %s mode", c.Mode))
	}
	if c.Mail.Workers < 1 {
		errs = append(errs, errors.New("mail.workers must be at least 1"))
	}
	return errors.Join(errs...)
}
