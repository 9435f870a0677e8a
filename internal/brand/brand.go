// Package brand provides centralized branding constants for aliasync.
//
// The brand identity is loaded from brand.json at compile time via go:embed,
// so packaging scripts and docs read the same values as the binary.
package brand

import (
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
)

//go:embed brand.json
var brandJSON []byte

// Brand is the identity embedded from brand.json.
type Brand struct {
	Name             string `json:"name"`
	LowerName        string `json:"lowerName"`
	Description      string `json:"description"`
	Repository       string `json:"repository"`
	ConfigEnvPrefix  string `json:"configEnvPrefix"`
	DefaultConfigDir string `json:"defaultConfigDir"`
	DefaultStateDir  string `json:"defaultStateDir"`
	BinaryName       string `json:"binaryName"`
	ConfigFileName   string `json:"configFileName"`
}

var identity = mustLoad(brandJSON)

// Identity values, copied out of brand.json for convenience.
var (
	Name             = identity.Name
	LowerName        = identity.LowerName
	Description      = identity.Description
	ConfigEnvPrefix  = identity.ConfigEnvPrefix
	DefaultConfigDir = identity.DefaultConfigDir
	DefaultStateDir  = identity.DefaultStateDir
	BinaryName       = identity.BinaryName
	ConfigFileName   = identity.ConfigFileName
)

// Version and GitCommit are set at build time via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func mustLoad(data []byte) Brand {
	var b Brand
	if err := json.Unmarshal(data, &b); err != nil {
		panic("brand: invalid brand.json: " + err.Error())
	}
	return b
}

// Get returns the embedded identity.
func Get() Brand {
	return identity
}

// UserAgent returns a User-Agent string for HTTP requests
func UserAgent(version string) string {
	if version == "" {
		version = "dev"
	}
	return LowerName + "/" + version
}

// GetStateDir returns the state directory, checking env vars first.
// Priority: ALIASYNC_STATE_DIR > ALIASYNC_PREFIX/state > DefaultStateDir
func GetStateDir() string {
	return lookupDir("_STATE_DIR", "state", DefaultStateDir)
}

// GetConfigDir returns the config directory, checking env vars first.
// Priority: ALIASYNC_CONFIG_DIR > ALIASYNC_PREFIX/config > DefaultConfigDir
func GetConfigDir() string {
	return lookupDir("_CONFIG_DIR", "config", DefaultConfigDir)
}

// DefaultConfigPath is the config file used when --config is not given.
func DefaultConfigPath() string {
	return filepath.Join(GetConfigDir(), ConfigFileName)
}

// DefaultBackupDir is where snapshots land when the config does not say otherwise.
func DefaultBackupDir() string {
	return filepath.Join(GetStateDir(), "backups")
}

// DefaultAuditDB is the audit trail location when the config does not say otherwise.
func DefaultAuditDB() string {
	return filepath.Join(GetStateDir(), "audit.db")
}

func lookupDir(envSuffix, prefixSub, fallback string) string {
	if dir := os.Getenv(ConfigEnvPrefix + envSuffix); dir != "" {
		return dir
	}
	if prefix := os.Getenv(ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, prefixSub)
	}
	return fallback
}
