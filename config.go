package mmkv

import (
	"fmt"

	"github.com/viant/mmkv/engine"
)

// Mode configures process sharing of an instance.
type Mode = engine.Mode

// EncryptionType selects the at-rest cipher strength.
type EncryptionType = engine.EncryptionType

const (
	SingleProcess = engine.SingleProcess
	MultiProcess  = engine.MultiProcess

	AES128 = engine.AES128
	AES256 = engine.AES256
)

// DefaultID is the id used when a Configuration leaves it empty.
const DefaultID = engine.DefaultInstanceID

// Configuration describes one instance. It is copied on Create, so later
// changes have no effect on an existing instance.
type Configuration struct {
	ID             string         `yaml:"id" json:"id"`
	Path           string         `yaml:"path,omitempty" json:"path,omitempty"`
	EncryptionKey  string         `yaml:"encryptionKey,omitempty" json:"-"`
	EncryptionType EncryptionType `yaml:"encryptionType,omitempty" json:"encryptionType,omitempty"`
	Mode           Mode           `yaml:"mode,omitempty" json:"mode,omitempty"`
	ReadOnly       bool           `yaml:"readOnly,omitempty" json:"readOnly,omitempty"`
}

// Equal reports whether c and o address the same instance setup.
// Only id, path, encryption key and mode take part in the comparison.
func (c Configuration) Equal(o Configuration) bool {
	return c.ID == o.ID && c.Path == o.Path && c.EncryptionKey == o.EncryptionKey && c.Mode == o.Mode
}

func (c *Configuration) init(defaultID string) {
	if c.ID == "" {
		c.ID = defaultID
	}
	if c.EncryptionType == "" {
		c.EncryptionType = AES128
	}
	if c.Mode == "" {
		c.Mode = SingleProcess
	}
}

// Validate checks the configuration before any engine call.
func (c *Configuration) Validate() error {
	switch c.Mode {
	case "", SingleProcess, MultiProcess:
	default:
		return &ConfigError{Field: "mode", Err: fmt.Errorf("unknown mode %q", string(c.Mode))}
	}
	if err := c.EncryptionType.ValidateKey(c.EncryptionKey); err != nil {
		return &ConfigError{Field: "encryptionKey", Err: err}
	}
	return nil
}

func (c *Configuration) engineConfig() engine.Config {
	return engine.Config{
		ID:             c.ID,
		RootPath:       c.Path,
		EncryptionKey:  c.EncryptionKey,
		EncryptionType: c.EncryptionType,
		Mode:           c.Mode,
		ReadOnly:       c.ReadOnly,
	}
}
