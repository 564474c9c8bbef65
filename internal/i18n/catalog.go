// ABOUTME: Locale negotiation and lookup over an x/text message catalogue
// ABOUTME: Catalog is immutable after New and safe for concurrent use

package i18n

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"golang.org/x/text/number"
)

// DefaultLocale is used when nothing better matches.
const DefaultLocale = "ru"

// Language is a selectable locale with its native name.
type Language struct {
	Code string
	Name string
}

// supported is ordered with the default first; the matcher falls back to index 0.
var supported = []struct {
	tag  language.Tag
	name string
}{
	{language.Russian, "🇷🇺 Русский"},
	{language.Uzbek, "🇺🇿 O'zbekcha"},
	{language.English, "🇬🇧 English"},
}

// Catalog resolves keys to localized text.
type Catalog struct {
	matcher  language.Matcher
	printers map[string]*message.Printer
}

// New builds the catalogue from the compiled-in entries.
func New() *Catalog {
	builder := catalog.NewBuilder(catalog.Fallback(language.Russian))
	for _, e := range entries {
		mustSet(builder, language.Russian, e.key, e.ru)
		mustSet(builder, language.Uzbek, e.key, e.uz)
		mustSet(builder, language.English, e.key, e.en)
	}

	tags := make([]language.Tag, 0, len(supported))
	printers := make(map[string]*message.Printer, len(supported))
	for _, s := range supported {
		tags = append(tags, s.tag)
		printers[s.tag.String()] = message.NewPrinter(s.tag, message.Catalog(builder))
	}

	return &Catalog{
		matcher:  language.NewMatcher(tags),
		printers: printers,
	}
}

func mustSet(b *catalog.Builder, tag language.Tag, key Key, msg string) {
	if err := b.SetString(tag, string(key), msg); err != nil {
		panic(fmt.Sprintf("i18n: registering %s/%s: %v", tag, key, err))
	}
}

// Languages lists the selectable locales, default first.
func (c *Catalog) Languages() []Language {
	out := make([]Language, 0, len(supported))
	for _, s := range supported {
		out = append(out, Language{Code: s.tag.String(), Name: s.name})
	}
	return out
}

// Supported reports whether code names one of the catalogue locales exactly.
func (c *Catalog) Supported(code string) bool {
	_, ok := c.printers[code]
	return ok
}

// Match negotiates an arbitrary language code (e.g. "en-US") to a supported locale.
func (c *Catalog) Match(code string) string {
	if c.Supported(code) {
		return code
	}
	if code == "" {
		return DefaultLocale
	}
	tag, err := language.Parse(code)
	if err != nil {
		return DefaultLocale
	}
	_, idx, conf := c.matcher.Match(tag)
	if conf == language.No {
		return DefaultLocale
	}
	return supported[idx].tag.String()
}

func (c *Catalog) printer(locale string) *message.Printer {
	if p, ok := c.printers[locale]; ok {
		return p
	}
	return c.printers[c.Match(locale)]
}

// Text renders key in locale with args substituted.
func (c *Catalog) Text(locale string, key Key, args ...any) string {
	return c.printer(locale).Sprintf(string(key), args...)
}

// Money renders an amount with locale digit grouping and the currency unit.
func (c *Catalog) Money(locale string, amount decimal.Decimal) string {
	p := c.printer(locale)
	return p.Sprintf("%v %s",
		number.Decimal(amount.InexactFloat64(), number.MaxFractionDigits(2)),
		c.Text(locale, CurrencyUnit))
}
