package mmkv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/viant/mmkv/engine/local"
	"github.com/viant/scy/cred/secret"
	"gopkg.in/yaml.v3"
)

// Settings is the YAML form of a registry setup.
type Settings struct {
	BaseDir     string           `yaml:"baseDir"`
	AppGroupDir string           `yaml:"appGroupDir"`
	Fallback    Fallback         `yaml:"fallback"`
	Local       LocalSettings    `yaml:"local"`
	Instances   []InstanceConfig `yaml:"instances"`
}

// LocalSettings selects the flat storage of the local fallback.
type LocalSettings struct {
	Driver    string `yaml:"driver"`
	DSN       string `yaml:"dsn"`
	Secret    string `yaml:"secret,omitempty"`
	RedisAddr string `yaml:"redisAddr"`
	Namespace string `yaml:"namespace"`
}

// InstanceConfig is a Configuration whose encryption key may be a secret template.
type InstanceConfig struct {
	Configuration `yaml:",inline"`
	Secret        string `yaml:"secret,omitempty"`
}

// LoadConfig reads settings from a YAML file. Paths may start with ~ and
// secret references are expanded into DSNs and encryption keys.
func LoadConfig(path string) (*Settings, error) {
	path, err := expandUserPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML settings.
func ParseConfig(data []byte) (*Settings, error) {
	var cfg Settings
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("mmkv: decode settings: %w", err)
	}
	ctx := context.Background()
	var err error
	if cfg.BaseDir, err = expandUserPath(cfg.BaseDir); err != nil {
		return nil, err
	}
	if cfg.AppGroupDir, err = expandUserPath(cfg.AppGroupDir); err != nil {
		return nil, err
	}
	if cfg.Local.DSN != "" && (cfg.Local.Driver == "sqlite" || cfg.Local.Driver == "") {
		if cfg.Local.DSN, err = expandUserPath(cfg.Local.DSN); err != nil {
			return nil, err
		}
	}
	if cfg.Local.DSN, err = expandWithSecret(ctx, cfg.Local.DSN, cfg.Local.Secret); err != nil {
		return nil, err
	}
	for idx, inst := range cfg.Instances {
		if inst.Path, err = expandUserPath(inst.Path); err != nil {
			return nil, err
		}
		if inst.EncryptionKey, err = expandWithSecret(ctx, inst.EncryptionKey, inst.Secret); err != nil {
			return nil, fmt.Errorf("mmkv: instance %q: %w", inst.ID, err)
		}
		if err := inst.Validate(); err != nil {
			return nil, fmt.Errorf("mmkv: instance %q: %w", inst.ID, err)
		}
		cfg.Instances[idx] = inst
	}
	return &cfg, nil
}

// Options converts the settings into registry options, opening the local
// flat storage when one is configured. The returned closer releases it.
func (s *Settings) Options() ([]Option, func() error, error) {
	closer := func() error { return nil }
	var opts []Option
	if s.BaseDir != "" || s.AppGroupDir != "" {
		base := s.BaseDir
		if base == "" {
			dir, err := DefaultPlatform().BaseDirectory()
			if err != nil {
				return nil, closer, err
			}
			base = dir
		}
		opts = append(opts, WithPlatform(StaticPlatform{Base: base, AppGroup: s.AppGroupDir}))
	}
	if s.Fallback != FallbackNone {
		opts = append(opts, WithFallback(s.Fallback))
	}
	switch {
	case s.Local.RedisAddr != "":
		client := redis.NewClient(&redis.Options{Addr: s.Local.RedisAddr})
		opts = append(opts, WithLocalStorage(local.NewRedisStorage(client, s.Local.Namespace)))
		closer = client.Close
	case s.Local.DSN != "":
		storage, err := local.OpenSQL(s.Local.Driver, s.Local.DSN)
		if err != nil {
			return nil, closer, err
		}
		opts = append(opts, WithLocalStorage(storage))
		closer = storage.Close
	}
	return opts, closer, nil
}

// expandWithSecret loads a secret and expands its placeholders in text.
func expandWithSecret(ctx context.Context, text, secretRef string) (string, error) {
	secretRef = strings.TrimSpace(secretRef)
	if secretRef == "" {
		return text, nil
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("secret %q provided but the value to expand is empty", secretRef)
	}
	sec, err := secret.New().Lookup(ctx, secret.Resource(secretRef))
	if err != nil {
		return "", err
	}
	return sec.Expand(text), nil
}

func expandUserPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || trimmed[0] != '~' {
		return path, nil
	}
	if trimmed != "~" && !strings.HasPrefix(trimmed, "~/") {
		return "", fmt.Errorf("mmkv: unsupported ~user path: %s", path)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(trimmed, "~")), nil
}
