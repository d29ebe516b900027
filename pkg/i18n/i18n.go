package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

//go:embed messages/*.json
var messagesFS embed.FS

// Supported locales. The lab staff work in Vietnamese, so it is the default.
const (
	LocaleVietnamese = "vi"
	LocaleEnglish    = "en"
	DefaultLocale    = LocaleVietnamese
)

var supported = []string{LocaleVietnamese, LocaleEnglish}

type localeKey struct{}

// catalog maps locale to flattened dot keys, e.g. "errors.not_found".
var (
	catalog     map[string]map[string]string
	catalogOnce sync.Once
)

func load() map[string]map[string]string {
	catalogOnce.Do(func() {
		catalog = make(map[string]map[string]string, len(supported))
		for _, locale := range supported {
			data, err := messagesFS.ReadFile("messages/" + locale + ".json")
			if err != nil {
				panic(fmt.Sprintf("i18n: missing catalog %s: %v", locale, err))
			}
			var tree map[string]any
			if err := json.Unmarshal(data, &tree); err != nil {
				panic(fmt.Sprintf("i18n: bad catalog %s: %v", locale, err))
			}
			flat := make(map[string]string)
			flatten("", tree, flat)
			catalog[locale] = flat
		}
	})
	return catalog
}

func flatten(prefix string, tree map[string]any, out map[string]string) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch v := v.(type) {
		case string:
			out[key] = v
		case map[string]any:
			flatten(key, v, out)
		}
	}
}

// Localizer translates message keys for one locale
type Localizer struct {
	locale string
}

// NewLocalizer returns a Localizer; unsupported locales get DefaultLocale
func NewLocalizer(locale string) *Localizer {
	if _, ok := load()[locale]; !ok {
		locale = DefaultLocale
	}
	return &Localizer{locale: locale}
}

func LocalizerFromContext(ctx context.Context) *Localizer {
	return NewLocalizer(GetLocaleFromContext(ctx))
}

// T looks key up in the localizer's locale, then DefaultLocale, and
// substitutes {name} placeholders from params. Unknown keys come back as-is.
func (l *Localizer) T(key string, params ...map[string]string) string {
	c := load()
	msg, ok := c[l.locale][key]
	if !ok {
		if msg, ok = c[DefaultLocale][key]; !ok {
			return key
		}
	}

	if len(params) == 0 || len(params[0]) == 0 {
		return msg
	}
	pairs := make([]string, 0, 2*len(params[0]))
	for k, v := range params[0] {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

func (l *Localizer) GetLocale() string {
	return l.locale
}

// WithLocale stores locale in ctx
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey{}, locale)
}

// GetLocaleFromContext returns the locale in ctx, or DefaultLocale
func GetLocaleFromContext(ctx context.Context) string {
	if locale, ok := ctx.Value(localeKey{}).(string); ok && locale != "" {
		return locale
	}
	return DefaultLocale
}

// ParseAcceptLanguage picks the first supported language named in an
// Accept-Language header. Quality values are ignored; order wins.
func ParseAcceptLanguage(header string) string {
	for _, part := range strings.Split(strings.ToLower(header), ",") {
		tag, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		base, _, _ := strings.Cut(tag, "-")
		for _, locale := range supported {
			if base == locale {
				return locale
			}
		}
	}
	return DefaultLocale
}

// T translates with DefaultLocale
func T(key string, params ...map[string]string) string {
	return NewLocalizer(DefaultLocale).T(key, params...)
}

func TWithLocale(locale, key string, params ...map[string]string) string {
	return NewLocalizer(locale).T(key, params...)
}

func TFromContext(ctx context.Context, key string, params ...map[string]string) string {
	return LocalizerFromContext(ctx).T(key, params...)
}
