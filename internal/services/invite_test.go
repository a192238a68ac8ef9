package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandomCodeFormat(t *testing.T) {
	for i := 0; i < 1000; i++ {
		code := randomCode()
		if len(code) != 6 {
			t.Fatalf("expected 6 characters, got %q", code)
		}
		for _, c := range code {
			if c < '0' || c > '9' {
				t.Fatalf("expected digits only, got %q", code)
			}
		}
	}
}

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"plain", "123456", "123456", true},
		{"leading zeros", "000042", "000042", true},
		{"spaces and dashes", " 123-456 ", "123456", true},
		{"truncates extra digits", "12345678", "123456", true},
		{"letters stripped", "a1b2c3d4e5f6", "123456", true},
		{"too short", "12345", "", false},
		{"empty", "", "", false},
		{"only letters", "abcdef", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeCode(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
