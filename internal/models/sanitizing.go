package models

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxMemoLength caps the stored memo body in runes
const MaxMemoLength = 8192

// ConvertToUTF8 converts text from Latin-1 to UTF-8 if needed and NFC-normalizes it.
// Form posts from old browsers or curl scripts sometimes arrive as ISO-8859-1.
func ConvertToUTF8(text string) string {
	if utf8.ValidString(text) {
		return norm.NFC.String(text)
	}

	// Try Latin-1 (ISO-8859-1) to UTF-8 conversion
	decoder := charmap.ISO8859_1.NewDecoder()
	result, _, err := transform.String(decoder, text)
	if err != nil {
		// Fallback: replace invalid UTF-8 sequences with replacement character
		return norm.NFC.String(strings.ToValidUTF8(text, "�"))
	}
	return norm.NFC.String(result)
}

// CleanMemoBody prepares user input for storage.
// It does NOT escape HTML: escaping happens at render time, or not at all
// when autoescape is disabled.
func CleanMemoBody(body string) string {
	body = ConvertToUTF8(body)
	body = strings.Map(func(r rune) rune {
		// keep newlines and tabs for markdown, drop other control chars
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, body)
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) > MaxMemoLength {
		runes := []rune(body)
		body = string(runes[:MaxMemoLength])
	}
	return body
}

// NormalizeUsername trims and NFC-normalizes a username
func NormalizeUsername(username string) string {
	return norm.NFC.String(strings.TrimSpace(ConvertToUTF8(username)))
}
