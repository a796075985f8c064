package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	assert.Equal(t, "liftsync", cmd.Use)
	assert.True(t, cmd.SilenceUsage)

	names := make(map[string]bool)
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"watch", "init", "call", "press", "show", "reset", "history", "test"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestRootCommand_GlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	flags := cmd.PersistentFlags()

	config := flags.Lookup("config")
	require.NotNil(t, config)
	assert.Equal(t, "c", config.Shorthand)

	verbose := flags.Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)

	format := flags.Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	offline := flags.Lookup("offline")
	require.NotNil(t, offline)
	assert.Equal(t, "false", offline.DefValue)
}

func TestExecute_InvalidFormat(t *testing.T) {
	code, _, errOut := runCLI(t, "show", "--format", "yaml")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, errOut, "Error [E_ARGS]: invalid format \"yaml\"")
}

func TestExecute_UnknownCommand(t *testing.T) {
	code, _, errOut := runCLI(t, "fly")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, errOut, "unknown command")
}

func TestIsValidFormat(t *testing.T) {
	assert.True(t, isValidFormat("json"))
	assert.True(t, isValidFormat("text"))
	assert.False(t, isValidFormat("JSON"))
	assert.False(t, isValidFormat(""))
}
