package pii

import (
	"testing"
	"unicode/utf8"
)

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Regular address", input: "jane.doe@example.com", expected: "***@example.com"},
		{name: "Surrounding whitespace", input: "  bob@mail.org ", expected: "***@mail.org"},
		{name: "Missing at sign", input: "not-an-email", expected: "***"},
		{name: "Empty", input: "", expected: "undefined"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskEmail(tt.input); got != tt.expected {
				t.Errorf("MaskEmail(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestMaskID(t *testing.T) {
	if got := MaskID("user_2abcdefghijklmnop"); got != "user_2abcd..." {
		t.Errorf("unexpected masked id: %q", got)
	}
	if got := MaskID("short"); got != "short..." {
		t.Errorf("unexpected masked id: %q", got)
	}

	t.Run("Multi-byte Identifier", func(t *testing.T) {
		got := MaskID("user_ñandú_élan_ß")
		if !utf8.ValidString(got) {
			t.Fatalf("masked id is not valid UTF-8: %q", got)
		}
		if got != "user_ñandú..." {
			t.Errorf("unexpected masked id: %q", got)
		}
	})
}
