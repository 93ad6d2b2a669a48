package conf

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StoreBackendRedis  = "redis"
	StoreBackendMemory = "memory"
)

// APIConfiguration holds the HTTP listener settings
type APIConfiguration struct {
	Host            string        `json:"host" envconfig:"HOST"`
	Port            string        `json:"port" envconfig:"PORT" default:"9000"`
	ReadTimeout     time.Duration `json:"read_timeout" split_words:"true" default:"10s"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" split_words:"true" default:"10s"`
	TrustedProxies  []string      `json:"trusted_proxies" split_words:"true"`
}

func (a *APIConfiguration) Validate() error {
	if a.Port == "" {
		return errors.New("api: port is required")
	}
	return nil
}

// StoreConfiguration selects the document store backend
type StoreConfiguration struct {
	Backend  string        `json:"backend" default:"redis"`
	RedisURL string        `json:"redis_url" envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	Timeout  time.Duration `json:"timeout" default:"2s"`
}

func (s *StoreConfiguration) Validate() error {
	switch s.Backend {
	case StoreBackendRedis, StoreBackendMemory:
	default:
		return fmt.Errorf("store: unknown backend %q", s.Backend)
	}
	if s.Timeout <= 0 {
		return errors.New("store: timeout must be positive")
	}
	return nil
}

// ChallengeConfiguration controls the nonces handed to wallets
type ChallengeConfiguration struct {
	TTL       time.Duration `json:"ttl" envconfig:"TTL" default:"5m"`
	Statement string        `json:"statement" default:"FarmGate wants you to sign in with your Ethereum account."`
}

func (c *ChallengeConfiguration) Validate() error {
	if c.TTL <= 0 {
		return errors.New("challenge: ttl must be positive")
	}
	if c.Statement == "" {
		return errors.New("challenge: statement is required")
	}
	return nil
}

// RateLimitConfiguration holds one budget per limiter scope
type RateLimitConfiguration struct {
	Challenge Rate `json:"challenge" default:"5/1m"`
	Verify    Rate `json:"verify" default:"5/1m"`
	Malformed Rate `json:"malformed" default:"20/1m"`

	// SignatureFailureWeight is the number of attempts charged for a bad signature
	SignatureFailureWeight int `json:"signature_failure_weight" split_words:"true" default:"2"`
}

func (r *RateLimitConfiguration) Validate() error {
	for name, rate := range map[string]*Rate{
		"challenge": &r.Challenge,
		"verify":    &r.Verify,
		"malformed": &r.Malformed,
	} {
		if err := rate.Validate(); err != nil {
			return fmt.Errorf("rate limit %s: %w", name, err)
		}
	}
	if r.SignatureFailureWeight < 1 {
		return errors.New("rate limit: signature failure weight must be at least 1")
	}
	return nil
}

// TokenConfiguration controls the session tokens issued after verification
type TokenConfiguration struct {
	TTL        time.Duration `json:"ttl" envconfig:"TTL" default:"24h"`
	SigningKey string        `json:"-" split_words:"true"`
	Audience   string        `json:"audience" default:"farmgate:session"`
}

func (t *TokenConfiguration) Validate() error {
	if t.TTL <= 0 {
		return errors.New("token: ttl must be positive")
	}
	return nil
}

// EventsConfiguration controls the Watermill publisher
type EventsConfiguration struct {
	Enabled bool `json:"enabled" default:"true"`
}

// LoggingConfig configures logrus
type LoggingConfig struct {
	Level  string            `mapstructure:"log_level" json:"log_level"`
	File   string            `mapstructure:"log_file" json:"log_file"`
	Fields map[string]string `mapstructure:"fields" json:"fields"`
}

// MetricsConfig toggles the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool `json:"enabled" default:"true"`
}

// GlobalConfiguration holds all the configuration for the service
type GlobalConfiguration struct {
	API       APIConfiguration
	Store     StoreConfiguration
	Challenge ChallengeConfiguration
	RateLimit RateLimitConfiguration `split_words:"true"`
	Token     TokenConfiguration
	Events    EventsConfiguration
	Logging   LoggingConfig `envconfig:"LOG"`
	Metrics   MetricsConfig
}

func loadEnvironment(filename string) error {
	var err error
	if filename != "" {
		err = godotenv.Overload(filename)
	} else {
		err = godotenv.Load()
		// handle if .env file does not exist, this is OK
		if os.IsNotExist(err) {
			return nil
		}
	}
	return err
}

// LoadGlobal loads configuration from an optional env file and the environment
func LoadGlobal(filename string) (*GlobalConfiguration, error) {
	if err := loadEnvironment(filename); err != nil {
		return nil, err
	}

	config := new(GlobalConfiguration)
	if err := envconfig.Process("farmgate", config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates all of configuration
func (c *GlobalConfiguration) Validate() error {
	validatables := []interface {
		Validate() error
	}{
		&c.API,
		&c.Store,
		&c.Challenge,
		&c.RateLimit,
		&c.Token,
	}

	for _, validatable := range validatables {
		if err := validatable.Validate(); err != nil {
			return err
		}
	}

	return nil
}
