package ctdboot

import "github.com/agiangrant/ctdboot/internal/config"

// Config is the bootstrap configuration.
// This is a re-export of config.Config for consumer convenience.
type Config = config.Config

// TargetConfig is the per-platform bootstrap contract.
type TargetConfig = config.TargetConfig

// DefaultConfig returns the configuration used when no ctdboot.toml exists.
func DefaultConfig() Config {
	return config.Default()
}

// LoadConfig reads path, or ctdboot.toml in the working directory when
// path is empty.
func LoadConfig(path string) (Config, error) {
	return config.Load(path)
}
