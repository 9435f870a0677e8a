package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxAliasNameLen is the longest alias name the appliance accepts.
const MaxAliasNameLen = 32

var aliasNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("aliasname", validateAliasName)
	_ = validate.RegisterValidation("portspec", validatePortSpec)
	_ = validate.RegisterValidation("fingerprint", validateFingerprint)
}

// ValidAliasName reports whether name is acceptable to the appliance.
func ValidAliasName(name string) bool {
	return len(name) <= MaxAliasNameLen && aliasNameRe.MatchString(name)
}

// ValidPortSpec reports whether tok is a port (0-65535) or a range lo:hi
// (also written lo-hi) with lo <= hi.
func ValidPortSpec(tok string) bool {
	tok = strings.TrimSpace(tok)
	lo, hi, isRange := strings.Cut(tok, ":")
	if !isRange {
		lo, hi, isRange = strings.Cut(tok, "-")
	}
	if !isRange {
		_, ok := parsePort(tok)
		return ok
	}
	l, ok := parsePort(lo)
	if !ok {
		return false
	}
	h, ok := parsePort(hi)
	return ok && l <= h
}

func parsePort(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 65535 {
		return 0, false
	}
	return n, true
}

func validateAliasName(fl validator.FieldLevel) bool {
	return ValidAliasName(fl.Field().String())
}

func validatePortSpec(fl validator.FieldLevel) bool {
	return ValidPortSpec(fl.Field().String())
}

func validateFingerprint(fl validator.FieldLevel) bool {
	fp := strings.ReplaceAll(fl.Field().String(), ":", "")
	b, err := hex.DecodeString(fp)
	return err == nil && len(b) == 32
}

// Validate checks the loaded config. All problems are reported together.
func (c *Config) Validate() error {
	if c.Appliance == nil {
		return fmt.Errorf("missing appliance block")
	}

	var problems []string
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("config validation: %w", err)
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	if c.Appliance.APIKey == "" || c.Appliance.APISecret == "" {
		problems = append(problems, fmt.Sprintf(
			"appliance: api_key and api_secret are required (set them, use credentials_file, or export %s and %s)",
			EnvAPIKey, EnvAPISecret))
	}

	if _, err := c.AliasSet(); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "aliasname":
		return fmt.Sprintf("%s: %q is not a valid alias name (letters, digits and _, starting with a letter or _, at most %d characters)",
			field, fe.Value(), MaxAliasNameLen)
	case "portspec":
		return fmt.Sprintf("%s: %q is not a port (0-65535) or range lo:hi", field, fe.Value())
	case "fingerprint":
		return fmt.Sprintf("%s: expected a SHA-256 fingerprint (64 hex digits)", field)
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s: %q must be one of %s", field, fe.Value(), fe.Param())
	case "url":
		return fmt.Sprintf("%s: %q is not a URL", field, fe.Value())
	default:
		return fmt.Sprintf("%s: failed %s validation", field, fe.Tag())
	}
}
