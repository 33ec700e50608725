// Package config loads service configuration from an optional YAML file
// (via koanf) with PRESENCE_* environment variables taking precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	pstrings "presence/pkg/platform/strings"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Policy   PolicyConfig   `koanf:"policy"`
	Issuer   IssuerConfig   `koanf:"issuer"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Kafka    KafkaConfig    `koanf:"kafka"`
	Admin    AdminConfig    `koanf:"admin"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	Environment     string        `koanf:"environment"`
	LogLevel        string        `koanf:"log_level"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
}

// PolicyConfig is the issuance policy: a subject becomes eligible once
// sessions attended / RequiredSessions reaches Threshold.
type PolicyConfig struct {
	Threshold        float64 `koanf:"threshold"`
	RequiredSessions int     `koanf:"required_sessions"`
}

type IssuerConfig struct {
	// KeystorePath holds the sealed issuer key; created on first start.
	KeystorePath string `koanf:"keystore_path"`
	Passphrase   string `koanf:"passphrase"`
	// TrustedPeers lists further issuer DIDs, comma separated, whose
	// credentials the verifier accepts alongside this service's own.
	TrustedPeers string `koanf:"trusted_peers"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL          string        `koanf:"url"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	// RevocationTTL bounds how long a cached revocation id lives in Redis.
	RevocationTTL time.Duration `koanf:"revocation_ttl"`
}

type KafkaConfig struct {
	Brokers    string `koanf:"brokers"`
	AuditTopic string `koanf:"audit_topic"`
	Acks       string `koanf:"acks"`
}

type AdminConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
	Audience  string `koanf:"audience"`
}

const devJWTSecret = "dev-admin-secret-change-me"

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			Environment:     "dev",
			LogLevel:        "info",
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    64 << 10,
		},
		Policy: PolicyConfig{
			Threshold:        0.8,
			RequiredSessions: 10,
		},
		Issuer: IssuerConfig{
			KeystorePath: "issuer.key",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize:      10,
			MinIdleConns:  2,
			DialTimeout:   5 * time.Second,
			ReadTimeout:   3 * time.Second,
			WriteTimeout:  3 * time.Second,
			RevocationTTL: 24 * time.Hour,
		},
		Kafka: KafkaConfig{
			AuditTopic: "presence.audit",
			Acks:       "all",
		},
		Admin: AdminConfig{
			JWTSecret: devJWTSecret,
			Audience:  "presence-admin",
		},
	}
}

// Load reads path (skipped when empty or missing) over the defaults and then
// applies environment overrides. It returns every problem found, not just the first.
func Load(path string) (*Config, []error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, []error{fmt.Errorf("load config file %s: %w", path, err)}
			}
		}
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, []error{fmt.Errorf("decode config: %w", err)}
	}

	errs := applyEnv(&cfg)
	errs = append(errs, cfg.Validate()...)
	if len(errs) > 0 {
		return nil, errs
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) []error {
	var errs []error
	setString(&cfg.Server.Addr, "PRESENCE_ADDR")
	setString(&cfg.Server.Environment, "PRESENCE_ENV")
	setString(&cfg.Server.LogLevel, "PRESENCE_LOG_LEVEL")
	errs = appendErr(errs, setDuration(&cfg.Server.RequestTimeout, "PRESENCE_REQUEST_TIMEOUT"))
	errs = appendErr(errs, setFloat(&cfg.Policy.Threshold, "PRESENCE_POLICY_THRESHOLD"))
	errs = appendErr(errs, setInt(&cfg.Policy.RequiredSessions, "PRESENCE_POLICY_REQUIRED_SESSIONS"))
	setString(&cfg.Issuer.KeystorePath, "PRESENCE_ISSUER_KEYSTORE")
	setString(&cfg.Issuer.Passphrase, "PRESENCE_ISSUER_PASSPHRASE")
	setString(&cfg.Issuer.TrustedPeers, "PRESENCE_ISSUER_TRUSTED_PEERS")
	setString(&cfg.Database.URL, "PRESENCE_DATABASE_URL")
	setString(&cfg.Redis.URL, "PRESENCE_REDIS_URL")
	setString(&cfg.Kafka.Brokers, "PRESENCE_KAFKA_BROKERS")
	setString(&cfg.Kafka.AuditTopic, "PRESENCE_KAFKA_AUDIT_TOPIC")
	setString(&cfg.Admin.JWTSecret, "PRESENCE_ADMIN_JWT_SECRET")
	return errs
}

func appendErr(errs []error, err error) []error {
	if err != nil {
		return append(errs, err)
	}
	return errs
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

var (
	ErrInvalidThreshold        = errors.New("policy.threshold must be in (0, 1]")
	ErrInvalidRequiredSessions = errors.New("policy.required_sessions must be positive")
	ErrMissingPassphrase       = errors.New("issuer.passphrase is required outside dev")
	ErrDevAdminSecret          = errors.New("admin.jwt_secret must be changed outside dev")
	ErrInvalidDatabaseURL      = errors.New("database.url must be a postgres:// URL")
	ErrMissingKeystorePath     = errors.New("issuer.keystore_path is required")
	ErrInvalidTrustedPeer      = errors.New("issuer.trusted_peers entries must be did:key DIDs")
)

// Validate reports every configuration problem.
func (c *Config) Validate() []error {
	var errs []error
	if c.Policy.Threshold <= 0 || c.Policy.Threshold > 1 {
		errs = append(errs, ErrInvalidThreshold)
	}
	if c.Policy.RequiredSessions <= 0 {
		errs = append(errs, ErrInvalidRequiredSessions)
	}
	if c.Issuer.KeystorePath == "" {
		errs = append(errs, ErrMissingKeystorePath)
	}
	if !c.IsDev() {
		if c.Issuer.Passphrase == "" {
			errs = append(errs, ErrMissingPassphrase)
		}
		if c.Admin.JWTSecret == devJWTSecret {
			errs = append(errs, ErrDevAdminSecret)
		}
	}
	for _, peer := range c.TrustedPeers() {
		if !strings.HasPrefix(peer, "did:key:") {
			errs = append(errs, ErrInvalidTrustedPeer)
			break
		}
	}
	if c.Database.URL != "" {
		u, err := url.Parse(c.Database.URL)
		if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errs = append(errs, ErrInvalidDatabaseURL)
		}
	}
	return errs
}

// TrustedPeers returns the distinct configured peer issuer DIDs.
func (c *Config) TrustedPeers() []string {
	return pstrings.SplitList(c.Issuer.TrustedPeers)
}

// IsDev reports whether the service runs in a development environment.
func (c *Config) IsDev() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "" || env == "dev" || env == "development" || env == "test"
}

// Passphrase returns the keystore passphrase, substituting a fixed value in dev.
func (c *Config) Passphrase() string {
	if c.Issuer.Passphrase == "" && c.IsDev() {
		return "dev-issuer-passphrase"
	}
	return c.Issuer.Passphrase
}
