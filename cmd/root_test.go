package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "campusguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRootCommand_Structure(t *testing.T) {
	t.Parallel()

	root := RootCommand()
	assert.Equal(t, "campusguard", root.Use)
	assert.NotNil(t, root.RunE, "bare invocation runs the server")
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("log-level"))

	names := []string{}
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "config"}, names)
}

func TestRootCommand_ConfigSubcommand(t *testing.T) {
	path := writeConfig(t, "auth:\n  token: file-token\nserver:\n  port: 9100\n")

	root := RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"config", "--config", path})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "port: 9100")
	assert.NotContains(t, out.String(), "file-token")
}

func TestOptions_LogLevelOverride(t *testing.T) {
	path := writeConfig(t, "main:\n  loglevel: info\n")

	opts := &Options{ConfigPath: path, LogLevel: "debug"}
	settings, log, err := opts.load()
	require.NoError(t, err)
	assert.Equal(t, "debug", settings.Main.LogLevel)
	assert.NotNil(t, log)
}

func TestOptions_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		opts func(path string) *Options
		yaml string
	}{
		{
			name: "bad log level",
			yaml: "main:\n  loglevel: chatty\n",
			opts: func(p string) *Options { return &Options{ConfigPath: p} },
		},
		{
			name: "bad timezone",
			yaml: "main:\n  timezone: Mars/Olympus\n",
			opts: func(p string) *Options { return &Options{ConfigPath: p} },
		},
		{
			name: "missing file",
			opts: func(string) *Options { return &Options{ConfigPath: filepath.Join(os.TempDir(), "does-not-exist.yaml")} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := ""
			if tt.yaml != "" {
				path = writeConfig(t, tt.yaml)
			}
			_, _, err := tt.opts(path).load()
			require.Error(t, err)
		})
	}
}
