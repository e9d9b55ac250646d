package config

// EnvPrefix is the prefix for environment overrides, i.e. TREEFS_MAX_CHILDREN
const EnvPrefix = "TREEFS"

// Verbosity values accepted by [ConfigOverride.LogLvl] (cli style, 1..5)
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// Storage backend types
const (
	StorageNone   = "none" // purely in-memory; save/load are no-ops
	StorageFile   = "file"
	StorageBadger = "badger"
	StorageS3     = "s3"
)

// Policies for unreadable stored trees. See [Config.OnCorrupt]
const (
	OnCorruptFail  = "fail"
	OnCorruptReset = "reset"
)
