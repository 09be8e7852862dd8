package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/scrtlabs/secret-ai-sdk-go/pkg/failure"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Profile selects the environment variable naming of one of the two SDK
// distributions. Both share the Secret Network variables.
type Profile string

const (
	SecretAI Profile = "secret"
	Claive   Profile = "claive"
)

// Shared Secret Network variables.
const (
	EnvChainID  = "SECRET_CHAIN_ID"
	EnvNodeURL  = "SECRET_NODE_URL"
	EnvContract = "SECRET_WORKER_SMART_CONTRACT"
)

// Known reports whether p is one of the supported profiles.
func (p Profile) Known() bool {
	return p == SecretAI || p == Claive
}

func (p Profile) prefix() string {
	if p == Claive {
		return "CLAIVE_AI_"
	}
	return "SECRET_AI_"
}

// APIKeyVar is the variable holding the API key, e.g. SECRET_AI_API_KEY.
func (p Profile) APIKeyVar() string { return p.prefix() + "API_KEY" }

// LogLevelVar is the variable holding the log level, e.g. SECRET_SDK_LOG_LEVEL.
func (p Profile) LogLevelVar() string {
	if p == Claive {
		return "CLAIVE_SDK_LOG_LEVEL"
	}
	return "SECRET_SDK_LOG_LEVEL"
}

// Var returns the profile-prefixed name of a setting, e.g. Var("MAX_RETRIES").
func (p Profile) Var(name string) string { return p.prefix() + name }

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// FromEnv builds a Config from environment-style variables read through
// lookup. Unset variables keep their defaults. Numeric durations are seconds
// and may be fractional ("2.5"). A Secret Network variable that is set but
// empty is reported as failure.KindSecretValueMissing.
//
//	<P>_API_KEY          API key
//	<P>_HOST             inference URL override
//	<P>_MODEL            default model
//	<P>_REQUEST_TIMEOUT  seconds, default 30
//	<P>_CONNECT_TIMEOUT  seconds, default 10
//	<P>_MAX_RETRIES      retries after the first call, default 3
//	<P>_RETRY_DELAY      seconds, default 1
//	<P>_RETRY_BACKOFF    multiplier, default 2
//	<P>_MAX_RETRY_DELAY  seconds, default 30
//	<P>_RETRY_JITTER     bool
//	<P>_STT_URL, <P>_TTS_URL
//	SECRET_SDK_LOG_LEVEL / CLAIVE_SDK_LOG_LEVEL
//	SECRET_CHAIN_ID, SECRET_NODE_URL, SECRET_WORKER_SMART_CONTRACT
func FromEnv(p Profile, lookup LookupFunc) (*Config, error) {
	if p == "" {
		p = SecretAI
	}
	if !p.Known() {
		return nil, failure.InvalidInput(fmt.Sprintf("unknown profile %q", p))
	}

	c := &Config{Profile: p}
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	str(p.APIKeyVar(), &c.APIKey)
	str(p.Var("HOST"), &c.Host)
	str(p.Var("MODEL"), &c.Model)
	str(p.Var("STT_URL"), &c.Voice.STTURL)
	str(p.Var("TTS_URL"), &c.Voice.TTSURL)
	str(p.LogLevelVar(), &c.LogLevel)

	for _, s := range []struct {
		key string
		dst *string
	}{
		{EnvChainID, &c.Secret.ChainID},
		{EnvNodeURL, &c.Secret.NodeURL},
		{EnvContract, &c.Secret.Contract},
	} {
		if v, ok := lookup(s.key); ok {
			if strings.TrimSpace(v) == "" {
				return nil, failure.SecretValueMissing(s.key)
			}
			*s.dst = v
		}
	}

	var err error
	if c.Timeouts.Request, err = seconds(lookup, p.Var("REQUEST_TIMEOUT")); err != nil {
		return nil, err
	}
	if c.Timeouts.Connect, err = seconds(lookup, p.Var("CONNECT_TIMEOUT")); err != nil {
		return nil, err
	}
	if c.Retry.InitialDelay, err = seconds(lookup, p.Var("RETRY_DELAY")); err != nil {
		return nil, err
	}
	if c.Retry.MaxDelay, err = seconds(lookup, p.Var("MAX_RETRY_DELAY")); err != nil {
		return nil, err
	}

	if v, ok := lookup(p.Var("MAX_RETRIES")); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			return nil, invalidVar(p.Var("MAX_RETRIES"), v)
		}
		c.Retry.MaxRetries = Int(n)
	}
	if v, ok := lookup(p.Var("RETRY_BACKOFF")); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || f < 1 {
			return nil, invalidVar(p.Var("RETRY_BACKOFF"), v)
		}
		c.Retry.Multiplier = f
	}
	if v, ok := lookup(p.Var("RETRY_JITTER")); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, invalidVar(p.Var("RETRY_JITTER"), v)
		}
		c.Retry.Jitter = Bool(b)
	}

	return c, nil
}

func seconds(lookup LookupFunc, key string) (time.Duration, error) {
	v, ok := lookup(key)
	if !ok {
		return 0, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f <= 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, invalidVar(key, v)
	}
	return time.Duration(f * float64(time.Second)), nil
}

func invalidVar(key, value string) error {
	return failure.InvalidInput(fmt.Sprintf("%s=%q", key, value))
}

var logLevels = map[string]zapcore.Level{
	"debug":    zap.DebugLevel,
	"info":     zap.InfoLevel,
	"warn":     zap.WarnLevel,
	"warning":  zap.WarnLevel,
	"error":    zap.ErrorLevel,
	"critical": zap.DPanicLevel,
	"fatal":    zap.FatalLevel,
}

// ParseLogLevel maps a level name to a zap level. Unknown or empty names
// yield InfoLevel and ok=false.
func ParseLogLevel(name string) (lvl zapcore.Level, ok bool) {
	lvl, ok = logLevels[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return zap.InfoLevel, false
	}
	return lvl, true
}

// Level resolves the effective log level of c.
func (c *Config) Level() zapcore.Level {
	if BoolValue(c.Debug) {
		return zap.DebugLevel
	}
	lvl, _ := ParseLogLevel(c.LogLevel)
	return lvl
}
