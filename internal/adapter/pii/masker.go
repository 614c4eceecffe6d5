package pii

import (
	"strings"
	"unicode/utf8"
)

const (
	idPrefixLen = 10
	maskedValue = "***"
)

// MaskEmail keeps only the domain part of an address, e.g. "***@example.com".
func MaskEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return "undefined"
	}
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return maskedValue
	}
	return maskedValue + email[at:]
}

// MaskID shortens an identifier to a loggable prefix of idPrefixLen runes.
func MaskID(id string) string {
	if utf8.RuneCountInString(id) <= idPrefixLen {
		return id + "..."
	}
	return string([]rune(id)[:idPrefixLen]) + "..."
}
