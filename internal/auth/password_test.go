package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("goat-secret")
	require.NoError(t, err)
	require.NotEqual(t, "goat-secret", hash)
	require.True(t, CheckPassword("goat-secret", hash))
	require.False(t, CheckPassword("wrong", hash))
	require.False(t, CheckPassword("goat-secret", "not-a-hash"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr string
	}{
		{"username ok", ValidateUsername("goat_42"), ""},
		{"username short", ValidateUsername("ab"), "at least 3"},
		{"username long", ValidateUsername(strings.Repeat("a", 51)), "less than 50"},
		{"username chars", ValidateUsername("goat<script>"), "letters, numbers"},
		{"password ok", ValidatePassword("hunter22"), ""},
		{"password short", ValidatePassword("abc"), "at least 6"},
		{"password long", ValidatePassword(strings.Repeat("x", 73)), "at most 72"},
		{"email empty", ValidateEmail(""), ""},
		{"email ok", ValidateEmail("goat@example.org"), ""},
		{"email no at", ValidateEmail("goat.example.org"), "invalid email"},
		{"email no dot", ValidateEmail("goat@localhost"), "invalid email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.wantErr == "" {
				require.NoError(t, tt.err)
				return
			}
			require.ErrorContains(t, tt.err, tt.wantErr)
		})
	}
}
