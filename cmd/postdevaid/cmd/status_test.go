package cmd

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sandboxHomeAndCwd(t *testing.T) {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", home)

	projectDir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(projectDir))
	t.Cleanup(func() { _ = os.Chdir(cwd) })
}

func TestNewStatusCmd_RegistersJSONFlag(t *testing.T) {
	cmd := newStatusCmd()
	assert.NotNil(t, cmd.Flags().Lookup("json"))
}

func TestRunStatus_PlainOutput_ReportsZeroEntries(t *testing.T) {
	sandboxHomeAndCwd(t)

	cmd := newStatusCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Total entries:      0")
	assert.Contains(t, buf.String(), "Last sync:           never")
}

func TestRunStatus_JSONOutput_IsValidJSON(t *testing.T) {
	sandboxHomeAndCwd(t)

	cmd := newStatusCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--json"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), `"TotalEntries"`)
}
