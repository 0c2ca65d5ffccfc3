package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "feedgrid", cmd.Use)
	assert.Contains(t, cmd.Short, "feedgrid")
	assert.Contains(t, cmd.Long, "optimistically")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"serve", "seed", "columns", "page", "simulate", "test", "watch"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "", configFlag.DefValue)
}

func TestDataCommandFlags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"columns", "page", "simulate", "watch"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			for _, flag := range []string{"db", "server", "viewer", "page-size"} {
				assert.NotNil(t, sub.Flags().Lookup(flag), "--%s", flag)
			}
		})
	}
}

func TestCommandSpecificFlags(t *testing.T) {
	cases := map[string][]string{
		"serve":    {"db", "listen"},
		"seed":     {"db", "columns", "rows", "gap-every", "owner"},
		"page":     {"pages"},
		"simulate": {"extent", "steps", "frame-ms"},
		"test":     {"update", "filter", "golden"},
		"watch":    {"log-file"},
	}

	cmd := NewRootCommand()
	for name, flags := range cases {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			for _, flag := range flags {
				assert.NotNil(t, sub.Flags().Lookup(flag), "--%s", flag)
			}
		})
	}

	pageCmd, _, err := cmd.Find([]string{"page"})
	require.NoError(t, err)
	assert.Equal(t, "1", pageCmd.Flags().Lookup("pages").DefValue)
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--format", "invalid", "columns"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestLoggerLevel(t *testing.T) {
	cases := []struct {
		name    string
		verbose bool
		level   string
		debug   bool
		info    bool
	}{
		{"default info", false, "info", false, true},
		{"configured debug", false, "debug", true, true},
		{"configured warn", false, "warn", false, false},
		{"verbose wins", true, "error", true, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := &RootOptions{Verbose: tc.verbose}
			buf := &bytes.Buffer{}
			logger := opts.logger(buf, tc.level)
			ctx := context.Background()
			assert.Equal(t, tc.debug, logger.Enabled(ctx, slog.LevelDebug))
			assert.Equal(t, tc.info, logger.Enabled(ctx, slog.LevelInfo))
		})
	}
}

func TestLoadConfig_BadFileIsCommandError(t *testing.T) {
	opts := &RootOptions{Config: "/nonexistent/feedgrid.yaml"}
	_, err := opts.loadConfig()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
