package config

import (
	"fmt"
	"time"

	"github.com/scrtlabs/secret-ai-sdk-go/pkg/failure"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/retry"
)

// Config holds all SDK settings required to initialize registry, chat and
// voice clients. Use Validate to fill implicit defaults.
type Config struct {
	// Profile selects the environment naming scheme (SecretAI or Claive).
	// Default: SecretAI.
	Profile Profile `json:"profile" yaml:"profile"`
	// APIKey authenticates inference and voice calls.
	APIKey string `json:"api_key" yaml:"api_key"`
	// Host overrides the inference URL discovered through the registry.
	Host string `json:"host" yaml:"host"`
	// Model is the default model used when none is given explicitly.
	Model string `json:"model" yaml:"model"`
	// Secret configures access to the worker-management smart contract.
	Secret Secret `json:"secret" yaml:"secret"`
	// Voice configures the speech endpoints.
	Voice Voice `json:"voice" yaml:"voice"`
	// Timeouts configures per-request deadlines. See Timeouts.WithDefaults.
	Timeouts Timeouts `json:"timeouts" yaml:"timeouts"`
	// Retry configures backoff for every outbound call. See Retry.WithDefaults.
	Retry Retry `json:"retry" yaml:"retry"`
	// SkipResponseValidation disables the format checks applied to
	// inference responses. nil means false.
	SkipResponseValidation *bool `json:"skip_response_validation" yaml:"skip_response_validation"`
	// Debug enables verbose logging. nil means false.
	Debug *bool `json:"debug" yaml:"debug"`
	// LogLevel is one of debug, info, warn, warning, error, critical, fatal.
	// Debug=true wins over LogLevel.
	LogLevel string `json:"log_level" yaml:"log_level"`
}

// Secret describes the Secret Network chain hosting the worker registry.
type Secret struct {
	ChainID  string `json:"chain_id" yaml:"chain_id"`
	NodeURL  string `json:"node_url" yaml:"node_url"`
	Contract string `json:"contract" yaml:"contract"`
}

// Pulsar is the Secret Network testnet that hosts the public worker registry.
var Pulsar = Secret{
	ChainID:  "pulsar-3",
	NodeURL:  "https://pulsar.lcd.secretnodes.com",
	Contract: "secret18cy3cgnmkft3ayma4nr37wgtj4faxfnrnngrlq",
}

// Voice holds the base URLs of the speech-to-text and text-to-speech services.
type Voice struct {
	STTURL string `json:"stt_url" yaml:"stt_url"`
	TTSURL string `json:"tts_url" yaml:"tts_url"`
}

// Timeouts controls request deadlines.
// Zero values will be replaced by defaults in WithDefaults.
type Timeouts struct {
	Request time.Duration `json:"request" yaml:"request"` // whole attempt
	Connect time.Duration `json:"connect" yaml:"connect"` // TCP/TLS connect
}

// Retry controls backoff between attempts.
// Zero values will be replaced by defaults in WithDefaults.
type Retry struct {
	// MaxRetries is the number of retries after the first call. nil means
	// the default; an explicit 0 disables retries.
	MaxRetries   *int          `json:"max_retries" yaml:"max_retries"`
	InitialDelay time.Duration `json:"initial_delay" yaml:"initial_delay"`
	Multiplier   float64       `json:"multiplier" yaml:"multiplier"`
	MaxDelay     time.Duration `json:"max_delay" yaml:"max_delay"`
	// Jitter randomizes each delay. nil means false; an explicit false in a
	// later layer turns off a true set by an earlier one.
	Jitter *bool `json:"jitter" yaml:"jitter"`
}

const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultMaxRetries     = 3
	DefaultInitialDelay   = time.Second
	DefaultMultiplier     = 2.0
	DefaultMaxDelay       = 30 * time.Second

	DefaultSTTURL = "https://localhost:25436"
	DefaultTTSURL = "https://localhost:25435"
)

// Int returns a pointer to n, for Retry.MaxRetries literals.
func Int(n int) *int {
	return &n
}

// Bool returns a pointer to b, for the optional switches of Config.
func Bool(b bool) *bool {
	return &b
}

// BoolValue reports the value of an optional switch; nil is false.
func BoolValue(b *bool) bool {
	return b != nil && *b
}

// Validate normalizes the configuration by applying implicit defaults for
// every section and checks that the retry settings form a valid policy.
// Credentials are checked separately by RequireAPIKey, since registry
// queries work without them.
func (c *Config) Validate() error {
	if c.Profile == "" {
		c.Profile = SecretAI
	}
	if !c.Profile.Known() {
		return failure.InvalidInput(fmt.Sprintf("unknown profile %q", c.Profile))
	}

	c.Secret = c.Secret.WithDefaults()
	c.Voice = c.Voice.WithDefaults()
	c.Timeouts = c.Timeouts.WithDefaults()
	c.Retry = c.Retry.WithDefaults()

	if _, err := c.Retry.Policy(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	return nil
}

// RequireAPIKey returns a failure.KindAPIKeyMissing error naming the
// profile's environment variable when no API key is set.
func (c *Config) RequireAPIKey() error {
	if c.APIKey == "" {
		p := c.Profile
		if p == "" {
			p = SecretAI
		}
		return failure.APIKeyMissing(p.APIKeyVar())
	}
	return nil
}

// WithDefaults returns a copy of s with empty fields taken from Pulsar.
func (s Secret) WithDefaults() Secret {
	if s.ChainID == "" {
		s.ChainID = Pulsar.ChainID
	}
	if s.NodeURL == "" {
		s.NodeURL = Pulsar.NodeURL
	}
	if s.Contract == "" {
		s.Contract = Pulsar.Contract
	}
	return s
}

// WithDefaults returns a copy of v with empty URLs set to the local defaults.
func (v Voice) WithDefaults() Voice {
	if v.STTURL == "" {
		v.STTURL = DefaultSTTURL
	}
	if v.TTSURL == "" {
		v.TTSURL = DefaultTTSURL
	}
	return v
}

// WithDefaults returns a copy of t with zero values replaced by defaults:
//
//	Request: 30s
//	Connect: 10s
func (t Timeouts) WithDefaults() Timeouts {
	tt := t
	if tt.Request == 0 {
		tt.Request = DefaultRequestTimeout
	}
	if tt.Connect == 0 {
		tt.Connect = DefaultConnectTimeout
	}
	return tt
}

// WithDefaults returns a copy of r with zero values replaced by defaults:
//
//	MaxRetries:   3
//	InitialDelay: 1s
//	Multiplier:   2
//	MaxDelay:     30s
func (r Retry) WithDefaults() Retry {
	rr := r
	if rr.MaxRetries == nil {
		rr.MaxRetries = Int(DefaultMaxRetries)
	}
	if rr.InitialDelay == 0 {
		rr.InitialDelay = DefaultInitialDelay
	}
	if rr.Multiplier == 0 {
		rr.Multiplier = DefaultMultiplier
	}
	if rr.MaxDelay == 0 {
		rr.MaxDelay = DefaultMaxDelay
	}
	return rr
}

// Policy builds the retry policy: MaxRetries+1 attempts in total. Defaults
// are applied to a copy first, so a zero Retry yields the default policy.
func (r Retry) Policy() (retry.Policy, error) {
	rr := r.WithDefaults()
	if *rr.MaxRetries < 0 {
		return retry.Policy{}, failure.InvalidInput(fmt.Sprintf("max retries must not be negative, got %d", *rr.MaxRetries))
	}
	return retry.NewPolicy(*rr.MaxRetries+1, rr.InitialDelay, rr.Multiplier, rr.MaxDelay, BoolValue(rr.Jitter))
}
