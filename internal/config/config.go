// Package config loads the aliasync configuration: where the appliance is,
// how to authenticate, where backups and logs go, and the declared alias set.
package config

import (
	"time"

	"grimm.is/aliasync/internal/alias"
	"grimm.is/aliasync/internal/backup"
	"grimm.is/aliasync/internal/client"
)

// Config is the top-level structure of aliasync.hcl.
type Config struct {
	Appliance *ApplianceConfig `hcl:"appliance,block" json:"appliance"`
	Backup    *BackupConfig    `hcl:"backup,block" json:"backup,omitempty"`

	LogFile     string `hcl:"log_file,optional" json:"log_file,omitempty"`
	LogLevel    string `hcl:"log_level,optional" json:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	LogFormat   string `hcl:"log_format,optional" json:"log_format,omitempty" validate:"omitempty,oneof=console json"`
	AuditDB     string `hcl:"audit_db,optional" json:"audit_db,omitempty"`
	AuditRetain int    `hcl:"audit_retain_days,optional" json:"audit_retain_days,omitempty" validate:"gte=0"`
	MetricsFile string `hcl:"metrics_file,optional" json:"metrics_file,omitempty"`
	AliasesFile string `hcl:"aliases_file,optional" json:"aliases_file,omitempty"`

	Aliases []AliasBlock `hcl:"alias,block" json:"aliases" validate:"dive"`

	// Path is the file the config was loaded from.
	Path string `json:"-"`
}

// ApplianceConfig locates and authenticates against the appliance API.
type ApplianceConfig struct {
	URL             string `hcl:"url" json:"url" validate:"required,url"`
	APIKey          string `hcl:"api_key,optional" json:"-"`
	APISecret       string `hcl:"api_secret,optional" json:"-"`
	CredentialsFile string `hcl:"credentials_file,optional" json:"credentials_file,omitempty"`
	Fingerprint     string `hcl:"fingerprint,optional" json:"fingerprint,omitempty" validate:"omitempty,fingerprint"`
	Timeout         string `hcl:"timeout,optional" json:"timeout,omitempty"`

	// TimeoutDuration is Timeout parsed during load.
	TimeoutDuration time.Duration `json:"-"`
}

// BackupConfig controls where snapshots go and how many are kept.
type BackupConfig struct {
	Dir    string `hcl:"dir,optional" json:"dir"`
	Retain int    `hcl:"retain,optional" json:"retain" validate:"gte=0"`
}

// AliasBlock declares one port alias.
//
//	alias "web" {
//	  ports       = [80, 443, "8000:8100"]
//	  description = "Web servers"
//	}
type AliasBlock struct {
	Name        string   `hcl:"name,label" json:"name" yaml:"name" validate:"required,aliasname"`
	Ports       []string `hcl:"ports" json:"ports" yaml:"ports" validate:"required,min=1,dive,portspec"`
	Description string   `hcl:"description,optional" json:"description,omitempty" yaml:"description"`
	Enabled     *bool    `hcl:"enabled,optional" json:"enabled,omitempty" yaml:"enabled"`
}

// Spec converts the block to the engine's model. Enabled defaults to true.
func (a AliasBlock) Spec() alias.Spec {
	enabled := true
	if a.Enabled != nil {
		enabled = *a.Enabled
	}
	return alias.Spec{
		Name:        a.Name,
		Ports:       append([]string(nil), a.Ports...),
		Description: a.Description,
		Enabled:     enabled,
	}
}

// AliasSet builds the declared set, rejecting duplicate names.
func (c *Config) AliasSet() (*alias.Set, error) {
	specs := make([]alias.Spec, 0, len(c.Aliases))
	for _, a := range c.Aliases {
		specs = append(specs, a.Spec())
	}
	return alias.NewSet(specs...)
}

// ClientOptions returns the options for client.NewHTTPClient.
func (c *Config) ClientOptions() []client.ClientOption {
	opts := []client.ClientOption{
		client.WithCredentials(c.Appliance.APIKey, c.Appliance.APISecret),
		client.WithTimeout(c.Appliance.TimeoutDuration),
	}
	if c.Appliance.Fingerprint != "" {
		opts = append(opts, client.WithFingerprint(c.Appliance.Fingerprint))
	}
	return opts
}

// RetainBackups returns the backup retention bound.
func (c *Config) RetainBackups() int {
	if c.Backup == nil || c.Backup.Retain <= 0 {
		return backup.DefaultRetain
	}
	return c.Backup.Retain
}
