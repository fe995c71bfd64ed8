package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// run executes the root command with args and stdin, returning its output
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	userFirst, userLast, userEmail = "", "", ""
	userAdmin, userYes = false, false
	servePort, servePprof = 0, ""

	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	err := rootCmd.Execute()
	return out.String(), err
}

// setupEnv points the config at a fresh database
func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GOATWEB_DB", filepath.Join(t.TempDir(), "cmd.sq3"))
	t.Setenv("GOATWEB_LOG_LEVEL", "error")
}

// passwords makes readPassword return the given answers in order
func passwords(t *testing.T, answers ...string) {
	t.Helper()
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })
	readPassword = func() (string, error) {
		if len(answers) == 0 {
			return "", errors.New("no more passwords")
		}
		p := answers[0]
		answers = answers[1:]
		return p, nil
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	require.Contains(t, out, "goatweb ")
	require.Contains(t, out, "Go version:")
}

func TestUserLifecycle(t *testing.T) {
	setupEnv(t)

	passwords(t, "secret1", "secret1")
	out, err := run(t, "", "user", "create", "alice", "--first", "Alice", "--last", "Goat", "--email", "alice@example.com")
	require.NoError(t, err)
	require.Contains(t, out, "User 'alice' created successfully")

	out, err = run(t, "", "user", "list")
	require.NoError(t, err)
	require.Contains(t, out, "alice")
	require.Contains(t, out, "Alice Goat")
	require.Contains(t, out, "Total: 1 users")

	passwords(t, "secret1")
	_, err = run(t, "", "user", "create", "alice")
	require.ErrorContains(t, err, "already exists")

	passwords(t, "secret2", "secret2")
	out, err = run(t, "", "user", "passwd", "alice")
	require.NoError(t, err)
	require.Contains(t, out, "Password of 'alice' updated")

	out, err = run(t, "n\n", "user", "delete", "alice")
	require.NoError(t, err)
	require.Contains(t, out, "Aborted.")

	out, err = run(t, "", "user", "delete", "alice", "--yes")
	require.NoError(t, err)
	require.Contains(t, out, "User 'alice' deleted")

	out, err = run(t, "", "user", "list")
	require.NoError(t, err)
	require.Contains(t, out, "No users found.")
}

func TestUserCreateValidation(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "", "user", "create", "a")
	require.Error(t, err)

	_, err = run(t, "", "user", "create", "bob", "--email", "nope")
	require.Error(t, err)

	passwords(t, "short")
	_, err = run(t, "", "user", "create", "bob")
	require.Error(t, err)

	passwords(t, "secret1", "secret2")
	_, err = run(t, "", "user", "create", "bob")
	require.ErrorContains(t, err, "passwords do not match")

	out, err := run(t, "", "user", "list")
	require.NoError(t, err)
	require.Contains(t, out, "No users found.")
}

func TestUserUnknown(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "", "user", "delete", "ghost", "--yes")
	require.ErrorContains(t, err, "not found")

	_, err = run(t, "", "user", "passwd", "ghost")
	require.ErrorContains(t, err, "not found")
}

func TestServeFailsWhenDatabaseIsUnreachable(t *testing.T) {
	t.Setenv("GOATWEB_DB", filepath.Join(t.TempDir(), "missing", "dir", "x.sq3"))
	t.Setenv("GOATWEB_LOG_LEVEL", "error")

	_, err := run(t, "", "serve", "--port", "0")
	require.ErrorIs(t, err, ErrDBConnect)
}

func TestPortFlagOverridesConfig(t *testing.T) {
	setupEnv(t)
	t.Setenv("PORT", "5000")
	initConfig()

	cfg, err := loadServeConfig()
	require.NoError(t, err)
	require.Equal(t, 5000, cfg.Port)

	servePort = 8081
	t.Cleanup(func() { servePort = 0 })
	cfg, err = loadServeConfig()
	require.NoError(t, err)
	require.Equal(t, 8081, cfg.Port)
}
