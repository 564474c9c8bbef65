// ABOUTME: Tests for locale negotiation and catalogue completeness
// ABOUTME: Verifies every key renders in every locale with consistent format verbs

package i18n

import (
	"regexp"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	cat := New()

	tests := []struct {
		code string
		want string
	}{
		{"ru", "ru"},
		{"uz", "uz"},
		{"en", "en"},
		{"en-US", "en"},
		{"en-GB", "en"},
		{"ru-RU", "ru"},
		{"", DefaultLocale},
		{"not a tag!", DefaultLocale},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, cat.Match(tt.code))
		})
	}
}

func TestLanguages_DefaultFirst(t *testing.T) {
	langs := New().Languages()
	require.Len(t, langs, 3)
	assert.Equal(t, DefaultLocale, langs[0].Code)
	assert.Equal(t, "uz", langs[1].Code)
	assert.Equal(t, "en", langs[2].Code)
}

func TestText_Localized(t *testing.T) {
	cat := New()
	assert.Equal(t, "❌ Отменено", cat.Text("ru", MsgCancelled))
	assert.Equal(t, "❌ Bekor qilindi", cat.Text("uz", MsgCancelled))
	assert.Equal(t, "❌ Cancelled", cat.Text("en", MsgCancelled))
}

func TestText_Args(t *testing.T) {
	cat := New()
	got := cat.Text("en", MsgWelcomeBack, "Ann", "Plov House")
	assert.Equal(t, "👋 Welcome back, Ann!\n\n🏪 Restaurant: <b>Plov House</b>", got)
}

func TestText_UnknownLocaleFallsBack(t *testing.T) {
	cat := New()
	assert.Equal(t, cat.Text("ru", MsgCancelled), cat.Text("de", MsgCancelled))
}

func TestMoney(t *testing.T) {
	cat := New()
	assert.Equal(t, "12,500 UZS", cat.Money("en", decimal.NewFromInt(12500)))
	assert.Equal(t, "12.5 UZS", cat.Money("en", decimal.RequireFromString("12.50")))
	assert.True(t, strings.HasSuffix(cat.Money("ru", decimal.NewFromInt(7)), " сум"))
}

var verbPattern = regexp.MustCompile(`%[a-z]`)

func TestEntries_CompleteAndConsistent(t *testing.T) {
	seen := make(map[Key]bool, len(entries))
	for _, e := range entries {
		assert.False(t, seen[e.key], "duplicate key %s", e.key)
		seen[e.key] = true

		assert.NotEmpty(t, e.ru, "%s: ru", e.key)
		assert.NotEmpty(t, e.uz, "%s: uz", e.key)
		assert.NotEmpty(t, e.en, "%s: en", e.key)

		want := verbPattern.FindAllString(e.ru, -1)
		assert.Equal(t, want, verbPattern.FindAllString(e.uz, -1), "%s: uz verbs", e.key)
		assert.Equal(t, want, verbPattern.FindAllString(e.en, -1), "%s: en verbs", e.key)
	}
}
