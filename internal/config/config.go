package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/telhawk-systems/userrelay/internal/history"
	"github.com/telhawk-systems/userrelay/internal/secret"
	"github.com/telhawk-systems/userrelay/internal/telemetry"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

var (
	developmentOrigins = []string{"http://localhost:3000", "http://localhost:3001"}
	productionOrigins  = []string{"https://hw.azevedev.com", "https://www.hw.azevedev.com", "https://hw-api.azevedev.com"}
)

type Config struct {
	Environment string           `mapstructure:"environment"`
	Server      ServerConfig     `mapstructure:"server"`
	CORS        CORSConfig       `mapstructure:"cors"`
	Upstream    UpstreamConfig   `mapstructure:"upstream"`
	Webhook     WebhookConfig    `mapstructure:"webhook"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Redis       RedisConfig      `mapstructure:"redis"`
	RateLimit   RateLimitConfig  `mapstructure:"ratelimit"`
	Auth        AuthConfig       `mapstructure:"auth"`
	NATS        NATSConfig       `mapstructure:"nats"`
	OpenSearch  history.Config   `mapstructure:"opensearch"`
	Telemetry   telemetry.Config `mapstructure:"telemetry"`
	Logging     LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// Addr returns host:port for http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type CORSConfig struct {
	// AllowedOrigins overrides the environment's default origin list.
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type UpstreamConfig struct {
	URL     string        `mapstructure:"url"`
	Token   secret.String `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type WebhookConfig struct {
	URL           string        `mapstructure:"url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	SigningSecret secret.String `mapstructure:"signing_secret"`
}

type DatabaseConfig struct {
	Type     string         `mapstructure:"type"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	User            string        `mapstructure:"user"`
	Password        secret.String `mapstructure:"password"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// ConnString builds a postgres URL. The password is escaped.
func (p PostgresConfig) ConnString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password.Reveal()),
		Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:     "/" + p.Database,
		RawQuery: "sslmode=" + url.QueryEscape(p.SSLMode),
	}
	return u.String()
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
	// TrustProxyHeaders must only be set behind a proxy that rewrites
	// X-Forwarded-For.
	TrustProxyHeaders bool `mapstructure:"trust_proxy_headers"`
}

type AuthConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	JWTSecret      secret.String `mapstructure:"jwt_secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type NATSConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URL           string        `mapstructure:"url"`
	Name          string        `mapstructure:"name"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("environment", EnvProduction)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_body_bytes", 4096)
	v.SetDefault("cors.allowed_origins", []string{})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 300)
	v.SetDefault("upstream.url", "")
	v.SetDefault("upstream.token", "")
	v.SetDefault("upstream.timeout", "10s")
	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.timeout", "10s")
	v.SetDefault("webhook.signing_secret", "")
	v.SetDefault("database.type", "memory")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "userrelay")
	v.SetDefault("database.postgres.user", "userrelay")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.sslmode", "disable")
	v.SetDefault("database.postgres.max_conns", 10)
	v.SetDefault("database.postgres.min_conns", 1)
	v.SetDefault("database.postgres.max_conn_lifetime", "5m")
	v.SetDefault("database.postgres.max_conn_idle_time", "1m")
	v.SetDefault("database.postgres.migrations_path", "file://migrations")
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.requests", 10)
	v.SetDefault("ratelimit.window", "1m")
	v.SetDefault("ratelimit.trust_proxy_headers", false)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.access_token_ttl", "15m")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.name", "userrelay")
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.timeout", "5s")
	v.SetDefault("opensearch.enabled", false)
	v.SetDefault("opensearch.url", "https://localhost:9200")
	v.SetDefault("opensearch.username", "admin")
	v.SetDefault("opensearch.password", "")
	v.SetDefault("opensearch.insecure", false)
	v.SetDefault("opensearch.index", "userrelay-runs")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.insecure", false)
	v.SetDefault("telemetry.timeout", "5s")
	v.SetDefault("telemetry.sampler", "parentbased_always_on")
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/userrelay")
	}

	// Environment variables override
	v.SetEnvPrefix("RELAY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Webhook.URL == "" {
		errs = append(errs, errors.New("webhook.url is required"))
	}
	if c.Upstream.URL == "" {
		errs = append(errs, errors.New("upstream.url is required"))
	}
	switch c.Database.Type {
	case "memory", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.type %q is not supported", c.Database.Type))
	}
	if c.Auth.Enabled && c.Auth.JWTSecret.Len() < 32 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 32 characters when auth is enabled"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.Requests < 1 || c.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("ratelimit.requests and ratelimit.window must be positive"))
	}
	return errors.Join(errs...)
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, EnvDevelopment)
}

// Origins returns the configured CORS origins, or the environment defaults.
func (c *Config) Origins() []string {
	if len(c.CORS.AllowedOrigins) > 0 {
		return c.CORS.AllowedOrigins
	}
	if c.IsDevelopment() {
		return developmentOrigins
	}
	return productionOrigins
}
