package config

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// LoadCredentials reads an API key file as downloaded from the appliance:
//
//	key=...
//	secret=...
func LoadCredentials(path string) (key, secret string, err error) {
	f, err := ini.LoadSources(ini.LoadOptions{Insensitive: true, IgnoreInlineComment: true}, path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read credentials file: %w", err)
	}
	sec := f.Section(ini.DefaultSection)
	key = strings.TrimSpace(sec.Key("key").String())
	secret = strings.TrimSpace(sec.Key("secret").String())
	if key == "" || secret == "" {
		return "", "", fmt.Errorf("credentials file %s must define key and secret", path)
	}
	return key, secret, nil
}
