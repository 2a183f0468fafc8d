package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config is loaded from VEGO_* environment variables, flags and YAML files.
type Config struct {
	Addr          string   `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL   string   `usage:"PostgreSQL connection URL (VEGO_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	SessionPepper string   `usage:"HMAC pepper for session token hashing" flag:"session-pepper"`
	TopUpDefault  string   `default:"50000" usage:"Amount credited by an empty top-up" flag:"top-up-default"`
	Redis         RedisConfig
	Kafka         KafkaConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	Graceful      GracefulConfig
	Reconcile     ReconcileConfig
}

// RedisConfig locates the cart store.
type RedisConfig struct {
	Addr     string `default:"localhost:6379" usage:"Redis address"`
	Password string `usage:"Redis password"`
	DB       int    `default:"0" usage:"Redis database"`
}

// KafkaConfig configures checkout events. No brokers disables publishing.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka brokers"`
	Topic   string   `default:"vego.checkouts" usage:"Checkout events topic"`
	GroupID string   `default:"vego-notifications" usage:"Consumer group of the notification worker" flag:"kafka-group-id"`
}

// RateLimitConfig controls the per-user sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// ReconcileConfig controls the sweep that completes paid checkouts.
type ReconcileConfig struct {
	Interval time.Duration `default:"30s" usage:"Sweep interval" flag:"reconcile-interval"`
	Grace    time.Duration `default:"1m"  usage:"Age of a paid checkout before it is swept" flag:"reconcile-grace"`
}

// LoadConfig reads .env (if present), then the environment and config files.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "load .env")
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "VEGO",
		Files:     []string{"config.yaml", "/etc/vego/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set VEGO_DATABASE_URL or DATABASE_URL")
	}
	if c.SessionPepper == "" {
		return errors.New("session pepper is required: set VEGO_SESSION_PEPPER")
	}
	if _, err := c.topUpDefault(); err != nil {
		return err
	}
	return nil
}

func (c *Config) topUpDefault() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.TopUpDefault)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse top-up default %q", c.TopUpDefault)
	}
	return d, nil
}

// applyPlatformDefaults honours the DATABASE_URL and PORT variables set by
// hosting platforms.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
