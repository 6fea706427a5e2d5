package telemetry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePIILevel(t *testing.T) {
	assert.Equal(t, PIILevelNone, ParsePIILevel("NONE"))
	assert.Equal(t, PIILevelFull, ParsePIILevel(" full "))
	assert.Equal(t, PIILevelHashed, ParsePIILevel("hashed"))
	assert.Equal(t, PIILevelHashed, ParsePIILevel("bogus"))
}

func TestSanitizeTextLevels(t *testing.T) {
	input := "mail me at ali@example.com"

	assert.Equal(t, "[REDACTED]", NewSanitizer(PIILevelNone, "s").SanitizeText(input))
	assert.Equal(t, input, NewSanitizer(PIILevelFull, "s").SanitizeText(input))

	hashed := NewSanitizer(PIILevelHashed, "s").SanitizeText(input)
	assert.NotContains(t, hashed, "ali@example.com")
	assert.Contains(t, hashed, "[EMAIL:")
}

func TestSanitizeTextPatterns(t *testing.T) {
	s := NewSanitizer(PIILevelHashed, "salt")

	tests := []struct {
		name   string
		input  string
		marker string
		secret string
	}{
		{"phone", "call +98 912 345 6789 tonight", "[PHONE:", "912 345 6789"},
		{"card", "card 6037-9911-2233-4455 please", "[CARD:REDACTED]", "6037-9911"},
		{"bot token", "token 123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw0", "[TOKEN:REDACTED]", "AAHdqTcv"},
		{"api key", "my key sk-ant-REDACTED", "[KEY:REDACTED]", "api03abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.SanitizeText(tt.input)
			assert.Contains(t, got, tt.marker)
			assert.NotContains(t, got, tt.secret)
		})
	}
}

func TestSanitizeTextKeepsPlainPersian(t *testing.T) {
	s := NewSanitizer(PIILevelHashed, "salt")
	input := "آموزش پایتون برای مبتدی‌ها"
	assert.Equal(t, input, s.SanitizeText(input))
}

func TestHashIsStablePerSalt(t *testing.T) {
	a := NewSanitizer(PIILevelHashed, "one")
	b := NewSanitizer(PIILevelHashed, "two")

	assert.Equal(t, a.SanitizeText("x@y.io"), a.SanitizeText("x@y.io"))
	assert.NotEqual(t, a.SanitizeText("x@y.io"), b.SanitizeText("x@y.io"))
}

func TestSanitizeUserID(t *testing.T) {
	assert.Equal(t, "", NewSanitizer(PIILevelHashed, "s").SanitizeUserID(0))
	assert.Equal(t, "42", NewSanitizer(PIILevelFull, "s").SanitizeUserID(42))
	assert.Equal(t, "[REDACTED]", NewSanitizer(PIILevelNone, "s").SanitizeUserID(42))
	assert.Len(t, NewSanitizer(PIILevelHashed, "s").SanitizeUserID(42), 8)
}

func TestSanitizeTextTruncates(t *testing.T) {
	long := strings.Repeat("ب", MaxLoggedRunes+50)
	got := NewSanitizer(PIILevelFull, "s").SanitizeText(long)
	assert.Equal(t, MaxLoggedRunes+1, len([]rune(got)))
}
