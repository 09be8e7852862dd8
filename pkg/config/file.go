package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML configuration file. Durations use Go syntax ("1.5s",
// "30s"). Unknown keys are rejected so typos do not silently fall back to
// defaults. The result is not validated; call Validate before use.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes a YAML document into a Config.
func Parse(raw []byte) (*Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return &c, nil
		}
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

// Merge overlays every non-zero field and every set switch of o onto c. It
// is used to apply environment variables on top of a file.
func (c *Config) Merge(o *Config) {
	if o == nil {
		return
	}
	if o.Profile != "" {
		c.Profile = o.Profile
	}
	setStr(&c.APIKey, o.APIKey)
	setStr(&c.Host, o.Host)
	setStr(&c.Model, o.Model)
	setStr(&c.Secret.ChainID, o.Secret.ChainID)
	setStr(&c.Secret.NodeURL, o.Secret.NodeURL)
	setStr(&c.Secret.Contract, o.Secret.Contract)
	setStr(&c.Voice.STTURL, o.Voice.STTURL)
	setStr(&c.Voice.TTSURL, o.Voice.TTSURL)
	setStr(&c.LogLevel, o.LogLevel)
	if o.Timeouts.Request != 0 {
		c.Timeouts.Request = o.Timeouts.Request
	}
	if o.Timeouts.Connect != 0 {
		c.Timeouts.Connect = o.Timeouts.Connect
	}
	if o.Retry.MaxRetries != nil {
		c.Retry.MaxRetries = Int(*o.Retry.MaxRetries)
	}
	if o.Retry.InitialDelay != 0 {
		c.Retry.InitialDelay = o.Retry.InitialDelay
	}
	if o.Retry.Multiplier != 0 {
		c.Retry.Multiplier = o.Retry.Multiplier
	}
	if o.Retry.MaxDelay != 0 {
		c.Retry.MaxDelay = o.Retry.MaxDelay
	}
	setBool(&c.Retry.Jitter, o.Retry.Jitter)
	setBool(&c.SkipResponseValidation, o.SkipResponseValidation)
	setBool(&c.Debug, o.Debug)
}

func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst **bool, v *bool) {
	if v != nil {
		*dst = Bool(*v)
	}
}
