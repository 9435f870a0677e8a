// Package i18n picks a message printer for the operator's locale.
package i18n

import (
	"context"
	"os"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultLang is the fallback language
var DefaultLang = language.English

// SupportedLangs are the languages summaries are formatted for.
var SupportedLangs = []language.Tag{
	language.English,
	language.German,
}

var matcher = language.NewMatcher(SupportedLangs)

type contextKey struct{}

var printerKey = contextKey{}

// Match maps a locale string such as "de_DE.UTF-8" or "en-US" onto a
// supported language.
func Match(locale string) language.Tag {
	locale = strings.TrimSpace(locale)
	if i := strings.IndexAny(locale, ".@"); i != -1 {
		locale = locale[:i]
	}
	locale = strings.ReplaceAll(locale, "_", "-")
	if locale == "" || locale == "C" || locale == "POSIX" {
		return DefaultLang
	}

	tag, err := language.Parse(locale)
	if err != nil {
		return DefaultLang
	}
	matched, _, conf := matcher.Match(tag)
	if conf == language.No {
		return DefaultLang
	}
	base, _ := matched.Base()
	return language.Make(base.String())
}

// LocaleFromEnv returns the locale named by LC_ALL, LC_MESSAGES or LANG.
func LocaleFromEnv() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// NewCLIPrinter returns a printer for the system's locale.
func NewCLIPrinter() *message.Printer {
	return message.NewPrinter(Match(LocaleFromEnv()))
}

// WithPrinter returns a new context carrying p.
func WithPrinter(ctx context.Context, p *message.Printer) context.Context {
	return context.WithValue(ctx, printerKey, p)
}

// GetPrinter returns the printer from the context, or a default one
func GetPrinter(ctx context.Context) *message.Printer {
	if p, ok := ctx.Value(printerKey).(*message.Printer); ok {
		return p
	}
	return message.NewPrinter(DefaultLang)
}
