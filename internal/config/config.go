package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/radorder/radorder/internal/platform/blobstore"
	"github.com/radorder/radorder/internal/platform/llm"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	AuthMode       string        `mapstructure:"AUTH_MODE"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL       string        `mapstructure:"REDIS_URL"`
	AuthIssuer     string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL    string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience   string        `mapstructure:"AUTH_AUDIENCE"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	TLSEnabled     bool          `mapstructure:"TLS_ENABLED"`
	TLSCertFile    string        `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile     string        `mapstructure:"TLS_KEY_FILE"`

	LLMProviderOrder string        `mapstructure:"LLM_PROVIDER_ORDER"`
	LLMTimeout       time.Duration `mapstructure:"LLM_TIMEOUT"`
	LLMMaxTokens     int           `mapstructure:"LLM_MAX_TOKENS"`
	LLMTemperature   float64       `mapstructure:"LLM_TEMPERATURE"`
	LLMProviderRPS   float64       `mapstructure:"LLM_PROVIDER_RPS"`
	AnthropicAPIKey  string        `mapstructure:"ANTHROPIC_API_KEY"`
	AnthropicModel   string        `mapstructure:"ANTHROPIC_MODEL"`
	AnthropicBaseURL string        `mapstructure:"ANTHROPIC_BASE_URL"`
	GrokAPIKey       string        `mapstructure:"GROK_API_KEY"`
	GrokModel        string        `mapstructure:"GROK_MODEL"`
	GrokBaseURL      string        `mapstructure:"GROK_BASE_URL"`
	OpenAIAPIKey     string        `mapstructure:"OPENAI_API_KEY"`
	OpenAIModel      string        `mapstructure:"OPENAI_MODEL"`
	OpenAIBaseURL    string        `mapstructure:"OPENAI_BASE_URL"`

	StorageEndpoint       string        `mapstructure:"STORAGE_ENDPOINT"`
	StorageAccessKey      string        `mapstructure:"STORAGE_ACCESS_KEY"`
	StorageSecretKey      string        `mapstructure:"STORAGE_SECRET_KEY"`
	StorageBucket         string        `mapstructure:"STORAGE_BUCKET"`
	StorageRegion         string        `mapstructure:"STORAGE_REGION"`
	StorageUseSSL         bool          `mapstructure:"STORAGE_USE_SSL"`
	SignatureUploadExpiry time.Duration `mapstructure:"SIGNATURE_UPLOAD_EXPIRY"`

	AMQPURL            string        `mapstructure:"AMQP_URL"`
	AMQPExchange       string        `mapstructure:"AMQP_EXCHANGE"`
	AttemptLockBackend string        `mapstructure:"ATTEMPT_LOCK_BACKEND"`
	AttemptLockTTL     time.Duration `mapstructure:"ATTEMPT_LOCK_TTL"`
	PhoneDefaultRegion string        `mapstructure:"PHONE_DEFAULT_REGION"`
}

var keys = []string{
	"PORT", "ENV", "AUTH_MODE", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"REQUEST_TIMEOUT", "TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
	"LLM_PROVIDER_ORDER", "LLM_TIMEOUT", "LLM_MAX_TOKENS", "LLM_TEMPERATURE", "LLM_PROVIDER_RPS",
	"ANTHROPIC_API_KEY", "ANTHROPIC_MODEL", "ANTHROPIC_BASE_URL",
	"GROK_API_KEY", "GROK_MODEL", "GROK_BASE_URL",
	"OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL",
	"STORAGE_ENDPOINT", "STORAGE_ACCESS_KEY", "STORAGE_SECRET_KEY", "STORAGE_BUCKET", "STORAGE_REGION",
	"STORAGE_USE_SSL", "SIGNATURE_UPLOAD_EXPIRY",
	"AMQP_URL", "AMQP_EXCHANGE", "ATTEMPT_LOCK_BACKEND", "ATTEMPT_LOCK_TTL", "PHONE_DEFAULT_REGION",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "") // inferred from ENV when empty
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("REQUEST_TIMEOUT", "60s")
	v.SetDefault("LLM_PROVIDER_ORDER", "anthropic,grok,openai")
	v.SetDefault("LLM_TIMEOUT", "30s")
	v.SetDefault("LLM_MAX_TOKENS", 2000)
	v.SetDefault("LLM_TEMPERATURE", 0.2)
	v.SetDefault("LLM_PROVIDER_RPS", 0)
	v.SetDefault("ANTHROPIC_MODEL", "claude-3-5-sonnet-latest")
	v.SetDefault("ANTHROPIC_BASE_URL", "https://api.anthropic.com")
	v.SetDefault("GROK_MODEL", "grok-2-latest")
	v.SetDefault("GROK_BASE_URL", "https://api.x.ai")
	v.SetDefault("OPENAI_MODEL", "gpt-4o")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com")
	v.SetDefault("STORAGE_BUCKET", "radorder")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_USE_SSL", true)
	v.SetDefault("SIGNATURE_UPLOAD_EXPIRY", "15m")
	v.SetDefault("AMQP_EXCHANGE", "radorder.events")
	v.SetDefault("ATTEMPT_LOCK_BACKEND", "postgres")
	v.SetDefault("ATTEMPT_LOCK_TTL", "30s")
	v.SetDefault("PHONE_DEFAULT_REGION", "US")

	// Bind explicitly so Unmarshal sees env-only keys.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuthMode returns AUTH_MODE when set. Otherwise development
// environments run without token checks and everything else expects an
// external issuer.
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return "development"
	}
	return "external"
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	mode := c.ResolvedAuthMode()
	if mode != "development" && mode != "external" {
		return fmt.Errorf("AUTH_MODE must be \"development\" or \"external\", got %q", mode)
	}
	if mode == "external" && c.AuthIssuer == "" {
		return fmt.Errorf("AUTH_ISSUER must be set when AUTH_MODE is \"external\" (current ENV=%q)", c.Env)
	}
	if c.IsProduction() && mode == "development" {
		return fmt.Errorf("AUTH_MODE=development is not allowed in production")
	}

	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	if _, err := c.providerOrder(); err != nil {
		return err
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive, got %s", c.LLMTimeout)
	}

	switch c.AttemptLockBackend {
	case "postgres":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when ATTEMPT_LOCK_BACKEND is \"redis\"")
		}
	default:
		return fmt.Errorf("ATTEMPT_LOCK_BACKEND must be \"postgres\" or \"redis\", got %q", c.AttemptLockBackend)
	}

	if c.StorageEndpoint != "" && (c.StorageAccessKey == "" || c.StorageSecretKey == "") {
		return fmt.Errorf("STORAGE_ACCESS_KEY and STORAGE_SECRET_KEY are required when STORAGE_ENDPOINT is set")
	}
	return nil
}

var providerKinds = map[string]string{
	"anthropic": llm.KindAnthropic,
	"grok":      llm.KindOpenAI,
	"openai":    llm.KindOpenAI,
}

func (c *Config) providerOrder() ([]string, error) {
	names := splitList(strings.ToLower(c.LLMProviderOrder))
	if len(names) == 0 {
		return nil, fmt.Errorf("LLM_PROVIDER_ORDER must name at least one provider")
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := providerKinds[n]; !ok {
			return nil, fmt.Errorf("LLM_PROVIDER_ORDER: unknown provider %q", n)
		}
		if seen[n] {
			return nil, fmt.Errorf("LLM_PROVIDER_ORDER: %q listed twice", n)
		}
		seen[n] = true
	}
	return names, nil
}

// LLMGateway builds the gateway configuration in LLM_PROVIDER_ORDER.
// Grok speaks the OpenAI chat completions dialect.
func (c *Config) LLMGateway() (llm.Config, error) {
	names, err := c.providerOrder()
	if err != nil {
		return llm.Config{}, err
	}
	out := llm.Config{Timeout: c.LLMTimeout, RequestsPerSecond: c.LLMProviderRPS}
	for _, n := range names {
		pc := llm.ProviderConfig{
			Name:        n,
			Kind:        providerKinds[n],
			MaxTokens:   c.LLMMaxTokens,
			Temperature: c.LLMTemperature,
		}
		switch n {
		case "anthropic":
			pc.APIKey, pc.Model, pc.BaseURL = c.AnthropicAPIKey, c.AnthropicModel, c.AnthropicBaseURL
		case "grok":
			pc.APIKey, pc.Model, pc.BaseURL = c.GrokAPIKey, c.GrokModel, c.GrokBaseURL
		case "openai":
			pc.APIKey, pc.Model, pc.BaseURL = c.OpenAIAPIKey, c.OpenAIModel, c.OpenAIBaseURL
		}
		out.Providers = append(out.Providers, pc)
	}
	return out, nil
}

// Storage returns the signature bucket location. Empty when STORAGE_ENDPOINT is unset.
func (c *Config) Storage() blobstore.Config {
	return blobstore.Config{
		Endpoint:  c.StorageEndpoint,
		AccessKey: c.StorageAccessKey,
		SecretKey: c.StorageSecretKey,
		Bucket:    c.StorageBucket,
		Region:    c.StorageRegion,
		UseSSL:    c.StorageUseSSL,
	}
}
