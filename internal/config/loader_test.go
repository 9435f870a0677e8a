package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/aliasync/internal/backup"
	"grimm.is/aliasync/internal/client"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "aliasync.hcl", `
appliance {
  url        = "https://fw.lan/"
  api_key    = "k"
  api_secret = "s"
  timeout    = "5s"
}

backup {
  dir    = "backups"
  retain = 5
}

log_level = "debug"

alias "web" {
  ports       = [80, 443, "8000:8100"]
  description = "Web"
}

alias "ssh" {
  ports   = ["22"]
  enabled = false
}
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://fw.lan", cfg.Appliance.URL)
	assert.Equal(t, 5*time.Second, cfg.Appliance.TimeoutDuration)
	assert.Equal(t, filepath.Join(dir, "backups"), cfg.Backup.Dir)
	assert.Equal(t, 5, cfg.RetainBackups())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.NotEmpty(t, cfg.AuditDB)

	set, err := cfg.AliasSet()
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())

	web := set.Specs()[0]
	assert.Equal(t, "web", web.Name)
	assert.Equal(t, []string{"80", "443", "8000:8100"}, web.Ports)
	assert.Equal(t, "80,443,8000:8100", web.Content())
	assert.True(t, web.Enabled, "enabled defaults to true")

	ssh := set.Specs()[1]
	assert.False(t, ssh.Enabled)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadHCL([]byte(`
appliance {
  url        = "https://fw.lan"
  api_key    = "k"
  api_secret = "s"
}
`), "/etc/aliasync/aliasync.hcl")
	require.NoError(t, err)

	assert.Equal(t, client.DefaultTimeout, cfg.Appliance.TimeoutDuration)
	assert.Equal(t, backup.DefaultRetain, cfg.RetainBackups())
	assert.NotEmpty(t, cfg.Backup.Dir)
	assert.Empty(t, cfg.Aliases)
	assert.Len(t, cfg.ClientOptions(), 2)
}

func TestEnvFunction(t *testing.T) {
	t.Setenv("TEST_FW_KEY", "from-env")

	cfg, err := LoadHCL([]byte(`
appliance {
  url        = "https://fw.lan"
  api_key    = env("TEST_FW_KEY")
  api_secret = env("TEST_FW_SECRET_UNSET", "fallback")
}
`), "test.hcl")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Appliance.APIKey)
	assert.Equal(t, "fallback", cfg.Appliance.APISecret)
}

func TestCredentialsFromEnvironment(t *testing.T) {
	t.Setenv(EnvAPIKey, "ek")
	t.Setenv(EnvAPISecret, "es")

	cfg, err := LoadHCL([]byte(`appliance { url = "https://fw.lan" }`), "test.hcl")
	require.NoError(t, err)
	assert.Equal(t, "ek", cfg.Appliance.APIKey)
	assert.Equal(t, "es", cfg.Appliance.APISecret)
}

func TestCredentialsFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "apikey.txt", "key=abc123\nsecret=s3cr3t/+==\n")
	path := writeFile(t, dir, "aliasync.hcl", `
appliance {
  url              = "https://fw.lan"
  credentials_file = "apikey.txt"
}
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "abc123", cfg.Appliance.APIKey)
	assert.Equal(t, "s3cr3t/+==", cfg.Appliance.APISecret)
}

func TestLoadCredentialsIncomplete(t *testing.T) {
	path := writeFile(t, t.TempDir(), "apikey.txt", "key=only\n")
	_, _, err := LoadCredentials(path)
	assert.Error(t, err)

	_, _, err = LoadCredentials(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestAliasesFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "aliases.yaml", `
- name: dns
  ports: [53]
  description: DNS
- name: ntp
  ports: ["123"]
  enabled: false
`)
	path := writeFile(t, dir, "aliasync.hcl", `
appliance {
  url        = "https://fw.lan"
  api_key    = "k"
  api_secret = "s"
}
aliases_file = "aliases.yaml"
alias "web" { ports = [80] }
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	set, err := cfg.AliasSet()
	require.NoError(t, err)
	require.Equal(t, 3, set.Len())
	assert.Equal(t, "web", set.Specs()[0].Name, "inline aliases come first")

	dns, ok := set.Lookup("dns")
	require.True(t, ok)
	assert.Equal(t, []string{"53"}, dns.Ports)
	assert.True(t, dns.Enabled)

	ntp, ok := set.Lookup("ntp")
	require.True(t, ok)
	assert.False(t, ntp.Enabled)
}

func TestAliasesFileDocument(t *testing.T) {
	path := writeFile(t, t.TempDir(), "aliases.yaml", `
aliases:
  - name: smtp
    ports: [25, 587]
`)
	blocks, err := LoadAliasesFile(path)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, []string{"25", "587"}, blocks[0].Ports)
}

const applianceBlock = `appliance {
  url        = "https://fw"
  api_key    = "k"
  api_secret = "s"
}`

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "missing appliance",
			src:  `alias "web" { ports = [80] }`,
			want: "appliance",
		},
		{
			name: "syntax",
			src:  `appliance {`,
			want: "failed to parse config",
		},
		{
			name: "bad timeout",
			src:  "appliance {\n url = \"https://fw\"\n api_key = \"k\"\n api_secret = \"s\"\n timeout = \"soon\"\n}",
			want: "invalid appliance timeout",
		},
		{
			name: "duplicate alias",
			src: applianceBlock + `
alias "web" { ports = [80] }
alias "web" { ports = [443] }`,
			want: "duplicate",
		},
		{
			name: "bad port",
			src: applianceBlock + `
alias "web" { ports = [80, 70000] }`,
			want: "is not a port",
		},
		{
			name: "inverted range",
			src: applianceBlock + `
alias "web" { ports = ["9000:8000"] }`,
			want: "is not a port",
		},
		{
			name: "bad name",
			src: applianceBlock + `
alias "my-web" { ports = [80] }`,
			want: "not a valid alias name",
		},
		{
			name: "no ports",
			src: applianceBlock + `
alias "web" { ports = [] }`,
			want: "Ports",
		},
		{
			name: "missing credentials",
			src:  `appliance { url = "https://fw" }`,
			want: "api_key and api_secret are required",
		},
		{
			name: "bad fingerprint",
			src:  "appliance {\n url = \"https://fw\"\n api_key = \"k\"\n api_secret = \"s\"\n fingerprint = \"abc\"\n}",
			want: "SHA-256",
		},
		{
			name: "bad log level",
			src: applianceBlock + `
log_level = "loud"`,
			want: "must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvAPIKey, "")
			t.Setenv(EnvAPISecret, "")
			_, err := LoadHCL([]byte(tt.src), "test.hcl")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidPortSpec(t *testing.T) {
	for _, tok := range []string{"0", "22", "65535", "8000:8100", "8000-8100", "80:80"} {
		assert.True(t, ValidPortSpec(tok), tok)
	}
	for _, tok := range []string{"", "-1", "65536", "http", "1:2:3", "100:", ":100", "10-5"} {
		assert.False(t, ValidPortSpec(tok), tok)
	}
}

func TestValidAliasName(t *testing.T) {
	assert.True(t, ValidAliasName("web"))
	assert.True(t, ValidAliasName("_internal_2"))
	assert.False(t, ValidAliasName("2web"))
	assert.False(t, ValidAliasName("web servers"))
	assert.False(t, ValidAliasName("a23456789012345678901234567890123"))
}
