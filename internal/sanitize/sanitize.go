// Package sanitize masks contact data and credentials before they reach logs
// or error messages.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	// Bearer tokens as sent in an Authorization header.
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[\w.~+/=-]+`)

	// Provider keys (sk-...) and key=value credentials.
	secretKeyPattern  = regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{8,}`)
	credentialPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|secret|token|password)(["']?\s*[=:]\s*["']?)([\w.-]{8,})`)

	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

	// French numbers, national (06 12 34 56 78) or international (+33 6 12 34 56 78).
	phonePattern = regexp.MustCompile(`(?:\+33\s?|\b0)[1-9](?:[\s.-]?\d{2}){4}\b`)
)

// String masks every credential, email address and phone number in input.
func String(input string) string {
	out := bearerPattern.ReplaceAllString(input, "Bearer ****")
	out = secretKeyPattern.ReplaceAllStringFunc(out, APIKey)
	out = credentialPattern.ReplaceAllString(out, "${1}${2}****")
	out = emailPattern.ReplaceAllStringFunc(out, Email)
	out = phonePattern.ReplaceAllStringFunc(out, Phone)
	return out
}

// Error masks the message of err. A nil error gives an empty string.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

// Email keeps the first two characters of the local part and the domain.
func Email(email string) string {
	if email == "" {
		return ""
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return "****"
	}
	if at <= 2 {
		return email[:1] + "***" + email[at:]
	}
	return email[:2] + "***" + email[at:]
}

// Phone keeps the first three and the last two characters.
func Phone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return phone[:3] + "****" + phone[len(phone)-2:]
}

// APIKey keeps the first three and the last four characters.
func APIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:3] + "****" + key[len(key)-4:]
}

// ID keeps the first two and the last two characters of an identifier such as
// a client IP.
func ID(id string) string {
	if len(id) <= 4 {
		return "****"
	}
	return id[:2] + "****" + id[len(id)-2:]
}
