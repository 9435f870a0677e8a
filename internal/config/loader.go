package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"gopkg.in/yaml.v2"

	"grimm.is/aliasync/internal/brand"
	"grimm.is/aliasync/internal/client"
)

// Environment variables consulted when the config carries no credentials.
var (
	EnvAPIKey    = brand.ConfigEnvPrefix + "_API_KEY"
	EnvAPISecret = brand.ConfigEnvPrefix + "_API_SECRET"
)

// EnvFunc is the HCL env(name[, default]) function.
var EnvFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "name", Type: cty.String},
	},
	VarParam: &function.Parameter{Name: "default", Type: cty.String},
	Type:     function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		if v, ok := os.LookupEnv(args[0].AsString()); ok {
			return cty.StringVal(v), nil
		}
		if len(args) > 1 {
			return cty.StringVal(args[1].AsString()), nil
		}
		return cty.StringVal(""), nil
	},
})

func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Functions: map[string]function.Function{
			"env": EnvFunc,
		},
	}
}

// LoadFile reads, completes and validates the config at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := LoadHCL(data, path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadHCL decodes HCL source. Relative paths in the config are resolved
// against the directory of filename.
func LoadHCL(data []byte, filename string) (*Config, error) {
	var cfg Config
	if err := hclsimple.Decode(filename, data, evalContext(), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Path = filename

	if err := cfg.complete(filepath.Dir(filename)); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// complete merges external alias and credential files and applies defaults.
func (c *Config) complete(baseDir string) error {
	if c.Appliance == nil {
		return fmt.Errorf("missing appliance block")
	}

	if c.AliasesFile != "" {
		path := resolve(baseDir, c.AliasesFile)
		extra, err := LoadAliasesFile(path)
		if err != nil {
			return err
		}
		c.Aliases = append(c.Aliases, extra...)
	}

	a := c.Appliance
	a.URL = strings.TrimRight(strings.TrimSpace(a.URL), "/")
	if a.CredentialsFile != "" && (a.APIKey == "" || a.APISecret == "") {
		key, secret, err := LoadCredentials(resolve(baseDir, a.CredentialsFile))
		if err != nil {
			return err
		}
		if a.APIKey == "" {
			a.APIKey = key
		}
		if a.APISecret == "" {
			a.APISecret = secret
		}
	}
	if a.APIKey == "" {
		a.APIKey = os.Getenv(EnvAPIKey)
	}
	if a.APISecret == "" {
		a.APISecret = os.Getenv(EnvAPISecret)
	}

	a.TimeoutDuration = client.DefaultTimeout
	if a.Timeout != "" {
		d, err := time.ParseDuration(a.Timeout)
		if err != nil {
			return fmt.Errorf("invalid appliance timeout %q: %w", a.Timeout, err)
		}
		a.TimeoutDuration = d
	}

	if c.Backup == nil {
		c.Backup = &BackupConfig{}
	}
	if c.Backup.Dir == "" {
		c.Backup.Dir = brand.DefaultBackupDir()
	} else {
		c.Backup.Dir = resolve(baseDir, c.Backup.Dir)
	}
	if c.AuditDB == "" {
		c.AuditDB = brand.DefaultAuditDB()
	} else if c.AuditDB != "off" {
		c.AuditDB = resolve(baseDir, c.AuditDB)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	return nil
}

// LoadAliasesFile reads a YAML list of alias declarations:
//
//	- name: web
//	  ports: [80, 443]
//	  description: Web servers
func LoadAliasesFile(path string) ([]AliasBlock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read aliases file: %w", err)
	}
	var doc struct {
		Aliases []AliasBlock `yaml:"aliases"`
	}
	if err := yaml.UnmarshalStrict(data, &doc.Aliases); err != nil {
		// Accept both a bare list and an {aliases: [...]} document.
		if err2 := yaml.UnmarshalStrict(data, &doc); err2 != nil {
			return nil, fmt.Errorf("failed to parse aliases file %s: %w", path, err)
		}
	}
	return doc.Aliases, nil
}

func resolve(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
