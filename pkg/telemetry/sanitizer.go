package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// PIILevel defines how much user content reaches the logs
type PIILevel string

const (
	// PIILevelNone redacts all user content
	PIILevelNone PIILevel = "none"
	// PIILevelHashed hashes contact data and secrets, keeps the rest
	PIILevelHashed PIILevel = "hashed"
	// PIILevelFull performs no sanitization
	PIILevelFull PIILevel = "full"
)

// MaxLoggedRunes caps the length of any user text written to logs.
const MaxLoggedRunes = 200

// ParsePIILevel falls back to hashed for unknown values.
func ParsePIILevel(raw string) PIILevel {
	switch PIILevel(strings.ToLower(strings.TrimSpace(raw))) {
	case PIILevelNone:
		return PIILevelNone
	case PIILevelFull:
		return PIILevelFull
	default:
		return PIILevelHashed
	}
}

// Sanitizer scrubs chat text and user ids before they are logged
type Sanitizer struct {
	level PIILevel
	salt  string

	emailPattern    *regexp.Regexp
	phonePattern    *regexp.Regexp
	cardPattern     *regexp.Regexp
	botTokenPattern *regexp.Regexp
	apiKeyPattern   *regexp.Regexp
}

// NewSanitizer creates a sanitizer; salt keeps hashes stable within one deployment
func NewSanitizer(level PIILevel, salt string) *Sanitizer {
	return &Sanitizer{
		level:           level,
		salt:            salt,
		emailPattern:    regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
		phonePattern:    regexp.MustCompile(`\+?\d[\d\s-]{8,14}\d`),
		cardPattern:     regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`),
		botTokenPattern: regexp.MustCompile(`\b\d{6,12}:[A-Za-z0-9_-]{30,}\b`),
		apiKeyPattern:   regexp.MustCompile(`\b(?:sk|AIza|sk-or|sk-ant)[A-Za-z0-9_-]{16,}\b`),
	}
}

// SanitizeText prepares a chat message for logging
func (s *Sanitizer) SanitizeText(input string) string {
	switch s.level {
	case PIILevelNone:
		return "[REDACTED]"
	case PIILevelFull:
		return truncate(input)
	default:
		return truncate(s.hashPII(input))
	}
}

// hashPII replaces contact data with short hashes and secrets with fixed markers. Secrets
// go first so their digits are not mistaken for phone numbers.
func (s *Sanitizer) hashPII(input string) string {
	result := s.botTokenPattern.ReplaceAllString(input, "[TOKEN:REDACTED]")
	result = s.apiKeyPattern.ReplaceAllString(result, "[KEY:REDACTED]")
	result = s.cardPattern.ReplaceAllString(result, "[CARD:REDACTED]")
	result = s.emailPattern.ReplaceAllStringFunc(result, func(match string) string {
		return fmt.Sprintf("[EMAIL:%s]", s.hash(match))
	})
	result = s.phonePattern.ReplaceAllStringFunc(result, func(match string) string {
		return fmt.Sprintf("[PHONE:%s]", s.hash(match))
	})
	return result
}

// hash creates a salted SHA-256 prefix
func (s *Sanitizer) hash(data string) string {
	h := sha256.New()
	h.Write([]byte(data + s.salt))
	return hex.EncodeToString(h.Sum(nil))[:8]
}

// SanitizeUserID sanitizes a Telegram user id
func (s *Sanitizer) SanitizeUserID(userID int64) string {
	if userID == 0 {
		return ""
	}
	id := strconv.FormatInt(userID, 10)
	switch s.level {
	case PIILevelNone:
		return "[REDACTED]"
	case PIILevelFull:
		return id
	default:
		return s.hash(id)
	}
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= MaxLoggedRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxLoggedRunes]) + "…"
}
