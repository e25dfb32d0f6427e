package pqmsg

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// FileConfig is the YAML configuration file. Empty fields keep defaults.
//
//	kem: ML-KEM-768
//	signature: ML-DSA-65
//	aead: AES-256-GCM
//	relay: ws://localhost:8700/
//	rotation:
//	  max_messages: 100
//	  max_age: 1h
//	backoff:
//	  base: 500ms
//	  max: 30s
//	log_level: info
type FileConfig struct {
	KEM           string          `yaml:"kem"`
	Signature     string          `yaml:"signature"`
	AEAD          string          `yaml:"aead"`
	Relay         string          `yaml:"relay"`
	Rotation      *RotationConfig `yaml:"rotation"`
	Backoff       *BackoffConfig  `yaml:"backoff"`
	DedupCapacity int             `yaml:"dedup_capacity"`
	KeyCache      int             `yaml:"key_cache"`
	LogLevel      string          `yaml:"log_level"`
}

// RotationConfig is the session key rotation section.
type RotationConfig struct {
	MaxMessages int           `yaml:"max_messages"`
	MaxAge      time.Duration `yaml:"max_age"`
}

// BackoffConfig is the reconnect backoff section.
type BackoffConfig struct {
	Base        time.Duration `yaml:"base"`
	Max         time.Duration `yaml:"max"`
	Multiplier  float64       `yaml:"multiplier"`
	Jitter      float64       `yaml:"jitter"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML configuration. Unknown keys are rejected.
func ParseConfig(data []byte) (*FileConfig, error) {
	var fc FileConfig
	if err := yaml.UnmarshalStrict(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if fc.LogLevel != "" {
		if _, err := logrus.ParseLevel(fc.LogLevel); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	return &fc, nil
}

// Logger returns a logrus logger at the configured level.
func (fc *FileConfig) Logger() *logrus.Logger {
	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(fc.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}
	return logger
}

// Options converts the file into messenger options.
func (fc *FileConfig) Options() []Option {
	var opts []Option
	if fc.KEM != "" {
		opts = append(opts, WithKEM(fc.KEM))
	}
	if fc.Signature != "" {
		opts = append(opts, WithSignature(fc.Signature))
	}
	if fc.AEAD != "" {
		opts = append(opts, WithAEAD(fc.AEAD))
	}
	if fc.Relay != "" {
		opts = append(opts, WithRelay(fc.Relay))
	}
	if fc.Rotation != nil {
		opts = append(opts, WithRotation(fc.Rotation.MaxMessages, fc.Rotation.MaxAge))
	}
	if fc.Backoff != nil {
		opts = append(opts, WithBackoff(Backoff{
			BaseDelay:   fc.Backoff.Base,
			MaxDelay:    fc.Backoff.Max,
			Multiplier:  fc.Backoff.Multiplier,
			Jitter:      fc.Backoff.Jitter,
			MaxAttempts: fc.Backoff.MaxAttempts,
		}))
	}
	if fc.DedupCapacity > 0 {
		opts = append(opts, WithDedupCapacity(fc.DedupCapacity))
	}
	if fc.KeyCache > 0 {
		opts = append(opts, WithKeyCache(fc.KeyCache))
	}
	if fc.LogLevel != "" {
		opts = append(opts, WithLogger(fc.Logger()))
	}
	return opts
}
