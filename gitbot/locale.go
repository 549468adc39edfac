package gitbot

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"
)

//go:embed locales/*.json
var localeFS embed.FS

// DefaultLocale is used when a user has no locale preference set, or
// when their preferred catalog is missing a key.
const DefaultLocale = "en"

// Localizer resolves message keys against embedded per-language catalogs,
// falling back to [DefaultLocale] for missing keys or unknown locales.
type Localizer struct {
	mu       sync.RWMutex
	catalogs map[string]map[string]string
}

// NewLocalizer loads all embedded locale catalogs. It returns an error
// if the default catalog is missing or any catalog fails to parse.
func NewLocalizer() (*Localizer, error) {
	entries, err := fs.ReadDir(localeFS, "locales")
	if err != nil {
		return nil, fmt.Errorf("error reading locale directory: %w", err)
	}
	catalogs := make(map[string]map[string]string, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := localeFS.ReadFile(path.Join("locales", name))
		if err != nil {
			return nil, fmt.Errorf("error reading locale %s: %w", name, err)
		}
		catalog := map[string]string{}
		if err = json.Unmarshal(data, &catalog); err != nil {
			return nil, fmt.Errorf("error parsing locale %s: %w", name, err)
		}
		catalogs[strings.TrimSuffix(name, ".json")] = catalog
	}
	if _, ok := catalogs[DefaultLocale]; !ok {
		return nil, fmt.Errorf("default locale %q not found", DefaultLocale)
	}
	return &Localizer{catalogs: catalogs}, nil
}

// Locales returns the names of all loaded catalogs.
func (l *Localizer) Locales() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.catalogs))
	for name := range l.catalogs {
		names = append(names, name)
	}
	return names
}

// HasLocale reports whether a catalog exists for the given locale.
func (l *Localizer) HasLocale(locale string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.catalogs[locale]
	return ok
}

// Get returns the message for key in the given locale, formatted with
// args. Unknown locales and missing keys fall back to [DefaultLocale].
// If the key is absent from the default catalog too, the key itself is
// returned so the gap is visible rather than silent.
func (l *Localizer) Get(locale string, key string, args ...any) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	catalog, ok := l.catalogs[locale]
	if ok {
		if msg, found := catalog[key]; found {
			return formatMessage(msg, args...)
		}
	}
	if msg, found := l.catalogs[DefaultLocale][key]; found {
		return formatMessage(msg, args...)
	}
	return key
}

// Count returns the quantity-phrased message for keyPrefix and count,
// selecting the ".none", ".singular" or ".plural" variant. The count is
// passed as the first format argument for the plural variant.
func (l *Localizer) Count(locale string, keyPrefix string, count int) string {
	key := fmt.Sprintf("%s.%s", keyPrefix, pluralKey(count))
	if count > 1 {
		return l.Get(locale, key, count)
	}
	return l.Get(locale, key)
}

func formatMessage(msg string, args ...any) string {
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}
