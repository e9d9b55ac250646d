package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brettbedarf/treefs/internal/util"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Bytes per MB
const MB = 1024 * 1024

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultLogLvl = util.InfoLevel

	// DefaultMaxChildren is the fan-out limit of a single directory
	DefaultMaxChildren = 100

	// DefaultMaxNameLen is the maximum byte length of a single name
	DefaultMaxNameLen = 255

	// DefaultMaxFileSize is the maximum content size of a single file
	DefaultMaxFileSize = 16 * MB

	DefaultFollowSymlinks = false
	DefaultOnCorrupt      = OnCorruptFail
	DefaultStorageType    = StorageFile
	DefaultStoragePath    = "treefs.db"

	DefaultFsName = "treefs"
	DefaultName   = "treefs"
)

// Config contains runtime configuration values for the namespace.
type Config struct {
	MountOptions
	LogLvl         util.LogLevel `validate:"gte=0,lte=4"`
	MaxChildren    int           `validate:"min=1"`        // Maximum children per directory (Default 100)
	MaxNameLen     int           `validate:"min=1"`        // Maximum length of a single name (Default 255)
	MaxFileSize    int           `validate:"min=0"`        // Maximum file content size in bytes; 0 is unlimited (Default 16MB)
	FollowSymlinks bool          // Whether path resolution chases symbolic links (Default false)
	OnCorrupt      string        `validate:"oneof=fail reset"` // What to do when the stored tree is unreadable (Default "fail")
	Storage        StorageConfig
}

// StorageConfig selects the persistence medium. Options are decoded by the
// selected backend (see persist package) so their keys vary per Type.
type StorageConfig struct {
	Type    string         `yaml:"type" json:"type" validate:"required"`
	Codec   string         `yaml:"codec,omitempty" json:"codec,omitempty" validate:"omitempty,oneof=xdr yaml"`
	Options map[string]any `yaml:"options,omitempty" json:"options,omitempty"`
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	FsName         *string `yaml:"fs_name,omitempty" json:"fs_name,omitempty"`
	Name           *string `yaml:"name,omitempty" json:"name,omitempty"`
	Debug          *bool   `yaml:"debug,omitempty" json:"debug,omitempty"`
	LogLvl         *int    `yaml:"log_lvl,omitempty" json:"log_lvl,omitempty"` // cli verbosity 1 (error) .. 5 (trace)
	MaxChildren    *int    `yaml:"max_children,omitempty" json:"max_children,omitempty"`
	MaxNameLen     *int    `yaml:"max_name_len,omitempty" json:"max_name_len,omitempty"`
	MaxFileSize    *int    `yaml:"max_file_size,omitempty" json:"max_file_size,omitempty"`
	FollowSymlinks *bool   `yaml:"follow_symlinks,omitempty" json:"follow_symlinks,omitempty"`
	OnCorrupt      *string `yaml:"on_corrupt,omitempty" json:"on_corrupt,omitempty"`
	StorageType    *string `yaml:"storage_type,omitempty" json:"storage_type,omitempty"`
	StorageCodec   *string `yaml:"storage_codec,omitempty" json:"storage_codec,omitempty"`
	// StorageOptions are merged key by key over the current options
	StorageOptions map[string]any `yaml:"storage_options,omitempty" json:"storage_options,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		MountOptions: MountOptions{
			FsName: DefaultFsName,
			Name:   DefaultName,
		},
		LogLvl:         DefaultLogLvl,
		MaxChildren:    DefaultMaxChildren,
		MaxNameLen:     DefaultMaxNameLen,
		MaxFileSize:    DefaultMaxFileSize,
		FollowSymlinks: DefaultFollowSymlinks,
		OnCorrupt:      DefaultOnCorrupt,
		Storage: StorageConfig{
			Type:    DefaultStorageType,
			Options: map[string]any{"path": DefaultStoragePath},
		},
	}
}

// NewConfig returns the defaults with override applied; override may be nil
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.FsName != nil {
		c.FsName = *override.FsName
	}
	if override.Name != nil {
		c.Name = *override.Name
	}
	if override.Debug != nil {
		c.Debug = *override.Debug
	}
	if override.LogLvl != nil {
		c.LogLvl = util.VerbosityToLevel(*override.LogLvl)
	}
	if override.MaxChildren != nil {
		c.MaxChildren = *override.MaxChildren
	}
	if override.MaxNameLen != nil {
		c.MaxNameLen = *override.MaxNameLen
	}
	if override.MaxFileSize != nil {
		c.MaxFileSize = *override.MaxFileSize
	}
	if override.FollowSymlinks != nil {
		c.FollowSymlinks = *override.FollowSymlinks
	}
	if override.OnCorrupt != nil {
		c.OnCorrupt = *override.OnCorrupt
	}
	if override.StorageType != nil && *override.StorageType != c.Storage.Type {
		c.Storage.Type = *override.StorageType
		// options of the previous backend don't apply to the new one
		c.Storage.Options = map[string]any{}
	}
	if override.StorageCodec != nil {
		c.Storage.Codec = *override.StorageCodec
	}
	if len(override.StorageOptions) > 0 {
		if c.Storage.Options == nil {
			c.Storage.Options = make(map[string]any, len(override.StorageOptions))
		}
		for k, v := range override.StorageOptions {
			c.Storage.Options[k] = v
		}
	}
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
// This is a convenience function that combines NewDefaultConfig, LoadConfigOverrideFile, and Merge.
func NewConfigFromFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	cfg.Merge(override)
	return cfg, nil
}

// envKeys are the scalar keys read by [LoadEnvOverride]; nested keys use "."
// which maps to "_" in the variable name (storage.type -> TREEFS_STORAGE_TYPE)
var envKeys = []string{
	"fs_name", "name", "debug", "log_lvl",
	"max_children", "max_name_len", "max_file_size",
	"follow_symlinks", "on_corrupt",
	"storage.type", "storage.codec", "storage.path",
}

// LoadEnvOverride reads overrides from environment variables named
// <prefix>_<KEY>. Only variables that are set produce override fields.
func LoadEnvOverride(prefix string) *ConfigOverride {
	v := viper.New()
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	o := &ConfigOverride{}
	if v.IsSet("fs_name") {
		o.FsName = util.Pointer(v.GetString("fs_name"))
	}
	if v.IsSet("name") {
		o.Name = util.Pointer(v.GetString("name"))
	}
	if v.IsSet("debug") {
		o.Debug = util.Pointer(v.GetBool("debug"))
	}
	if v.IsSet("log_lvl") {
		o.LogLvl = util.Pointer(v.GetInt("log_lvl"))
	}
	if v.IsSet("max_children") {
		o.MaxChildren = util.Pointer(v.GetInt("max_children"))
	}
	if v.IsSet("max_name_len") {
		o.MaxNameLen = util.Pointer(v.GetInt("max_name_len"))
	}
	if v.IsSet("max_file_size") {
		o.MaxFileSize = util.Pointer(v.GetInt("max_file_size"))
	}
	if v.IsSet("follow_symlinks") {
		o.FollowSymlinks = util.Pointer(v.GetBool("follow_symlinks"))
	}
	if v.IsSet("on_corrupt") {
		o.OnCorrupt = util.Pointer(v.GetString("on_corrupt"))
	}
	if v.IsSet("storage.type") {
		o.StorageType = util.Pointer(v.GetString("storage.type"))
	}
	if v.IsSet("storage.codec") {
		o.StorageCodec = util.Pointer(v.GetString("storage.codec"))
	}
	if v.IsSet("storage.path") {
		o.StorageOptions = map[string]any{"path": v.GetString("storage.path")}
	}
	return o
}

var validate = validator.New()

// Validate checks field constraints of the configuration
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
