package config

// MountOptions holds high-level settings for the optional FUSE mount.
// No go-fuse types are exposed here.
type MountOptions struct {
	Debug  bool   `yaml:"debug" json:"debug"`     // fuse debug logs
	FsName string `yaml:"fs_name" json:"fs_name"` // mount's FsName
	Name   string `yaml:"name" json:"name"`       // mount's Name
}
