package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"bk-go/internal/bk"
)

// Config is the main configuration for bk. It is consumed read-only by
// the engine; prompting and persistence belong to the CLI.
type Config struct {
	StorageType   string           `toml:"storage_type"`   // "local" or "remote"
	BaseDir       string           `toml:"base_dir"`       // staging dirs and local archives
	ArchiveFormat string           `toml:"archive_format"` // "tar" or "zip"
	DataDir       string           `toml:"data_dir"`       // metadata, checkpoints, schedule
	LogDir        string           `toml:"log_dir"`
	Remote        RemoteConfig     `toml:"remote"`
	Encryption    EncryptionConfig `toml:"encryption"`
}

// RemoteConfig holds the S3-compatible object store settings. Only used
// when storage_type is "remote".
type RemoteConfig struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix,omitempty"`
	Secure    bool   `toml:"secure"`
}

// EncryptionConfig selects optional artifact encryption. Type decides
// which of the remaining fields are read.
type EncryptionConfig struct {
	Type          string `toml:"type"` // "none" (default) or "age"
	RecipientPath string `toml:"recipient_path,omitempty"`
	IdentityPath  string `toml:"identity_path,omitempty"`
}

// NewConfig creates a Config with defaults rooted at baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		StorageType:   bk.StorageLocal,
		BaseDir:       filepath.Join(baseDir, "storage"),
		ArchiveFormat: bk.FormatTar,
		DataDir:       filepath.Join(baseDir, "data"),
		LogDir:        filepath.Join(baseDir, "log"),
		Encryption: EncryptionConfig{
			Type:          "none",
			RecipientPath: filepath.Join(baseDir, "keys", "bk.pub"),
			IdentityPath:  filepath.Join(baseDir, "keys", "bk.key"),
		},
	}
}

// Validate checks the fields the engine depends on.
func (c *Config) Validate() error {
	switch c.StorageType {
	case bk.StorageLocal, bk.StorageRemote:
	default:
		return fmt.Errorf("%w: storage_type %q", bk.ErrInvalidConfig, c.StorageType)
	}
	if _, err := bk.ParseArchiveFormat(c.ArchiveFormat); err != nil {
		return fmt.Errorf("%w: archive_format %q", bk.ErrInvalidConfig, c.ArchiveFormat)
	}
	if c.BaseDir == "" {
		return fmt.Errorf("%w: base_dir is required", bk.ErrInvalidConfig)
	}
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir is required", bk.ErrInvalidConfig)
	}
	if c.StorageType == bk.StorageRemote {
		if c.Remote.Endpoint == "" || c.Remote.Bucket == "" {
			return fmt.Errorf("%w: remote storage requires endpoint and bucket", bk.ErrInvalidConfig)
		}
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// WriteToFile writes a Config to the specified file path, creating the
// parent directory as needed.
func WriteToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := WriteToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
