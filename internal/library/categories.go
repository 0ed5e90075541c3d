package library

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var categoryAliases = map[string]string{
	"albums":        "Album",
	"studio":        "Album",
	"studio albums": "Album",
	"lp":            "Album",
	"live albums":   "Live",
	"concert":       "Live",
	"compilations":  "Compilation",
	"best of":       "Compilation",
	"eps":           "EP",
	"singles":       "Single",
	"demos":         "Demo",
	"soundtracks":   "Soundtrack",
	"ost":           "Soundtrack",
	"remixes":       "Remix",
	"bootlegs":      "Bootleg",
}

// Categories is the fixed set of canonical category folder names.
type Categories struct {
	names      []string
	byKey      map[string]string
	defaultCat string
}

// NewCategories builds the category set. The default category must be one of
// names; when it is not, the first name is used.
func NewCategories(names []string, defaultCategory string) *Categories {
	c := &Categories{byKey: make(map[string]string, len(names))}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key := Fold(name)
		if _, ok := c.byKey[key]; ok {
			continue
		}
		c.byKey[key] = name
		c.names = append(c.names, name)
	}
	if canonical, ok := c.byKey[Fold(defaultCategory)]; ok {
		c.defaultCat = canonical
	} else if len(c.names) > 0 {
		c.defaultCat = c.names[0]
	}
	return c
}

// Names returns the canonical names in configured order.
func (c *Categories) Names() []string {
	return append([]string(nil), c.names...)
}

// Default returns the default category ("Album" unless configured otherwise).
func (c *Categories) Default() string {
	return c.defaultCat
}

// IsDefault reports whether label canonicalizes to the default category.
func (c *Categories) IsDefault(label string) bool {
	canonical, ok := c.Canonical(label)
	return ok && canonical == c.defaultCat
}

// FolderName reports whether name is exactly a category folder name, ignoring
// case and accents. Aliases are not accepted for folders.
func (c *Categories) FolderName(name string) (string, bool) {
	canonical, ok := c.byKey[Fold(name)]
	return canonical, ok
}

// Canonical maps a label, an alias, or a differently cased name to the
// canonical category folder name.
func (c *Categories) Canonical(label string) (string, bool) {
	key := Fold(label)
	if key == "" {
		return "", false
	}
	if canonical, ok := c.byKey[key]; ok {
		return canonical, true
	}
	if alias, ok := categoryAliases[key]; ok {
		if canonical, ok := c.byKey[Fold(alias)]; ok {
			return canonical, true
		}
	}
	return "", false
}

// Fold lowercases s, strips accents and collapses whitespace so that
// "Live", "LIVE" and "Lïve " compare equal. Casers are stateful, so each call
// builds its own.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(cases.Fold().String(stripped)), " ")
}
