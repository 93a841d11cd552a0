package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/flashbots/spectrum/algebra"
	"gopkg.in/yaml.v3"
)

// Scheme selects the write-token construction.
type Scheme string

const (
	// SchemeInsecure carries writes in the clear, audited by password.
	SchemeInsecure Scheme = "insecure"
	// SchemeTwoKey is the two-worker seed DPF with the field audit.
	SchemeTwoKey Scheme = "two-key"
	// SchemeMultiKey is the N-worker seed-homomorphic DPF with the field audit.
	SchemeMultiKey Scheme = "multi-key"
	// SchemeTree is the two-worker tree DPF with the hash-based audit.
	SchemeTree Scheme = "tree"
	// SchemeTwoKeyPub is the two-worker seed DPF audited in a group, with
	// workers holding only the channels' public keys.
	SchemeTwoKeyPub Scheme = "two-key-pub"
)

// ErrConfig is wrapped by every configuration validation failure.
var ErrConfig = errors.New("invalid config")

// Duration is a time.Duration read and written as a string such as "30s".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Config holds the parameters every client and worker of a deployment must
// agree on. Shared parameters such as the group live here, not in messages.
type Config struct {
	// Scheme is the write-token construction.
	Scheme Scheme `json:"scheme" yaml:"scheme" toml:"scheme"`

	// Parties is the number of workers holding a share of every write.
	Parties int `json:"parties" yaml:"parties" toml:"parties"`

	// Channels is the number of broadcast channels (table height).
	Channels int `json:"channels" yaml:"channels" toml:"channels"`

	// MessageLen is the byte size of one channel (table width).
	MessageLen int `json:"message_len" yaml:"message_len" toml:"message_len"`

	// SecurityBits sizes the modular field for the "mod" group.
	SecurityBits int `json:"security_bits" yaml:"security_bits" toml:"security_bits"`

	// Group is the algebraic group, "ed25519" or "mod".
	Group string `json:"group" yaml:"group" toml:"group"`

	// GeneratorSeed is the public seed the group PRG's generators are derived from.
	GeneratorSeed string `json:"generator_seed" yaml:"generator_seed" toml:"generator_seed"`

	// EpochDuration is the length of one write/audit/reveal epoch.
	EpochDuration Duration `json:"epoch_duration" yaml:"epoch_duration" toml:"epoch_duration"`

	// AuditWorkers is the number of goroutines a worker evaluates tokens with.
	// Zero means one per CPU.
	AuditWorkers int `json:"audit_workers" yaml:"audit_workers" toml:"audit_workers"`
}

// DefaultConfig is a small two-worker tree deployment.
func DefaultConfig() *Config {
	return &Config{
		Scheme:        SchemeTree,
		Parties:       2,
		Channels:      16,
		MessageLen:    64,
		SecurityBits:  128,
		Group:         algebra.GroupEd25519,
		GeneratorSeed: "spectrum",
		EpochDuration: Duration{10 * time.Second},
	}
}

// Validate checks the parameters are consistent with the scheme.
func (c *Config) Validate() error {
	switch c.Scheme {
	case SchemeInsecure, SchemeMultiKey:
		if c.Parties < 2 {
			return fmt.Errorf("%w: %s needs at least 2 parties, got %d", ErrConfig, c.Scheme, c.Parties)
		}
	case SchemeTwoKey, SchemeTwoKeyPub, SchemeTree:
		if c.Parties != 2 {
			return fmt.Errorf("%w: %s needs exactly 2 parties, got %d", ErrConfig, c.Scheme, c.Parties)
		}
	default:
		return fmt.Errorf("%w: unknown scheme %q", ErrConfig, c.Scheme)
	}
	if c.Channels < 1 {
		return fmt.Errorf("%w: channels must be positive, got %d", ErrConfig, c.Channels)
	}
	if c.MessageLen < 1 {
		return fmt.Errorf("%w: message length must be positive, got %d", ErrConfig, c.MessageLen)
	}
	if c.AuditWorkers < 0 {
		return fmt.Errorf("%w: negative audit workers", ErrConfig)
	}
	if c.EpochDuration.Duration < numPhases*time.Millisecond {
		return fmt.Errorf("%w: epoch duration %s shorter than %dms", ErrConfig, c.EpochDuration.Duration, numPhases)
	}
	if c.Scheme == SchemeTwoKey || c.Scheme == SchemeTwoKeyPub || c.Scheme == SchemeMultiKey {
		group, err := algebra.ByName(c.Group, c.SecurityBits)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrConfig, err)
		}
		if c.Scheme == SchemeMultiKey && group.EmbedLen() == 0 {
			return fmt.Errorf("%w: group %s cannot carry data", ErrConfig, group.Name())
		}
		if c.Scheme != SchemeMultiKey && group.Scalars().Order().BitLen() <= 128 {
			return fmt.Errorf("%w: %s audit field must exceed 128 bits", ErrConfig, c.Scheme)
		}
	}
	return nil
}

// LoadConfig reads a config file. The format follows the extension: .toml,
// .json, or YAML for anything else. Unset fields keep DefaultConfig values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err = toml.Decode(string(data), cfg)
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
