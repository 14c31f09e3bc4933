package sanitize

import (
	"errors"
	"testing"
)

func TestString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"bearer token", "Authorization: Bearer abc.def-123", "Authorization: Bearer ****"},
		{"provider key", "invalid key sk-abcdef1234567890", "invalid key sk-****7890"},
		{"key value", "api_key=supersecretvalue", "api_key=****"},
		{"email", "Contact marie@exemple.fr", "Contact ma***@exemple.fr"},
		{"national phone", "Rappeler le 06 12 34 56 78 demain", "Rappeler le 06 ****78 demain"},
		{"international phone", "+33612345678", "+33****78"},
		{"nothing to mask", "Le devis est prêt.", "Le devis est prêt."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := String(tt.input); got != tt.expected {
				t.Errorf("String(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestError(t *testing.T) {
	if got := Error(nil); got != "" {
		t.Errorf("Error(nil) = %q", got)
	}
	if got := Error(errors.New("bad token=abcdefgh12")); got != "bad token=****" {
		t.Errorf("Error() = %q", got)
	}
}

func TestEmail(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"nobody", "****"},
		{"ab@x.fr", "a***@x.fr"},
		{"contact@levelapp.fr", "co***@levelapp.fr"},
	}

	for _, tt := range tests {
		if got := Email(tt.input); got != tt.expected {
			t.Errorf("Email(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestPhone(t *testing.T) {
	if got := Phone("123"); got != "****" {
		t.Errorf("short phone = %q", got)
	}
	if got := Phone("+33612345678"); got != "+33****78" {
		t.Errorf("Phone() = %q", got)
	}
}

func TestAPIKey(t *testing.T) {
	if got := APIKey("short"); got != "****" {
		t.Errorf("short key = %q", got)
	}
	if got := APIKey("sk-0123456789abcdef"); got != "sk-****cdef" {
		t.Errorf("APIKey() = %q", got)
	}
}

func TestID(t *testing.T) {
	if got := ID("1.2"); got != "****" {
		t.Errorf("short id = %q", got)
	}
	if got := ID("192.168.1.100"); got != "19****00" {
		t.Errorf("ID() = %q", got)
	}
}
