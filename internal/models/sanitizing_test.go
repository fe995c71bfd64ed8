package models

import (
	"strings"
	"testing"
	"time"
)

func TestConvertToUTF8(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "ascii", input: "hello", want: "hello"},
		{name: "latin1 e-acute", input: "caf\xe9", want: "café"},
		// "e" followed by a combining acute accent composes to U+00E9
		{name: "nfc", input: "cafe\u0301", want: "caf\u00e9"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ConvertToUTF8(tc.input); got != tc.want {
				t.Errorf("ConvertToUTF8(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestCleanMemoBody(t *testing.T) {
	got := CleanMemoBody("  # title\n\x00<script>alert(1)</script>\tok  ")
	want := "# title\n<script>alert(1)</script>\tok"
	if got != want {
		t.Errorf("CleanMemoBody = %q, want %q", got, want)
	}

	long := strings.Repeat("ä", MaxMemoLength+10)
	if n := len([]rune(CleanMemoBody(long))); n != MaxMemoLength {
		t.Errorf("CleanMemoBody did not truncate: %d runes", n)
	}
}

func TestUserDisplayName(t *testing.T) {
	testCases := []struct {
		user User
		want string
	}{
		{User{Username: "bob", FirstName: "Bob", LastName: "Goat"}, "Bob Goat"},
		{User{Username: "bob", FirstName: "Bob"}, "Bob"},
		{User{Username: "bob"}, "bob"},
	}
	for _, tc := range testCases {
		if got := tc.user.DisplayName(); got != tc.want {
			t.Errorf("DisplayName() = %q, want %q", got, tc.want)
		}
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	s := &Session{ExpiresAt: now}
	if !s.Expired(now) {
		t.Error("session expiring now should count as expired")
	}
	s.ExpiresAt = now.Add(time.Minute)
	if s.Expired(now) {
		t.Error("session expiring in a minute should not be expired")
	}
}
