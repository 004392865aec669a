package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cli struct {
	config string
	dir    string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "loglayout.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`
presets:
  driver: bundle
  path: `+filepath.ToSlash(filepath.Join(dir, "presets.llb"))+`
  autosave_dir: ""
engine:
  debounce:
    small: 1ms
log:
  quiet: true
`), 0o644))
	return &cli{config: cfg, dir: dir}
}

func (c *cli) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", c.config}, args...))
	err := root.Execute()
	return out.String(), err
}

func (c *cli) writeLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(c.dir, "app.log")
	require.NoError(t, os.WriteFile(path, []byte(
		"2024-01-01T00:00:00 INFO start\n"+
			"2024-01-01T00:00:05 ERROR boom\n"+
			"2024-01-01T00:00:10 INFO done\n"+
			"2024-01-01T00:00:15 WARN slow\n"), 0o644))
	return path
}

func TestPresetCommands(t *testing.T) {
	c := newCLI(t)

	out, err := c.run(t, "preset", "save", "errors", "-l", "level:ERROR,WARN")
	require.NoError(t, err)
	assert.Contains(t, out, `saved preset "errors" (1 layers)`)

	_, err = c.run(t, "preset", "save", "empty")
	assert.Error(t, err)

	out, err = c.run(t, "preset", "show", "errors", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"LEVEL"`)

	exported := filepath.Join(c.dir, "errors.toml")
	_, err = c.run(t, "preset", "export", "errors", exported)
	require.NoError(t, err)
	out, err = c.run(t, "preset", "import", exported, "--name", "copy")
	require.NoError(t, err)
	assert.Contains(t, out, `imported preset "copy"`)

	out, err = c.run(t, "preset", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "errors")
	assert.Contains(t, out, "copy")
	assert.Contains(t, out, "level:ERROR,WARN")

	_, err = c.run(t, "preset", "delete", "copy")
	require.NoError(t, err)
	_, err = c.run(t, "preset", "delete", "copy")
	assert.Error(t, err)
}

func TestRunCommand(t *testing.T) {
	c := newCLI(t)
	logPath := c.writeLog(t)
	_, err := c.run(t, "preset", "save", "errors", "-l", "level:ERROR,WARN")
	require.NoError(t, err)

	summary := filepath.Join(c.dir, "out", "summary.json")
	out, err := c.run(t, "run", logPath, "-p", "errors", "-l", "highlight:boom", "-s", "slow", "-n", "10", "--summary", summary)
	require.NoError(t, err)
	assert.Contains(t, out, "2\t2024-01-01T00:00:05 ERROR boom")
	assert.Contains(t, out, "4\t2024-01-01T00:00:15 WARN slow")
	assert.NotContains(t, out, "INFO start")
	assert.Contains(t, out, "LEVEL")
	assert.Contains(t, out, "HIGHLIGHT")
	assert.Contains(t, out, "2 of 4 lines")
	assert.Contains(t, out, `search "slow": 1 hits`)

	data, err := os.ReadFile(summary)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"output_lines": 2`)

	_, err = c.run(t, "run", logPath, "-l", "bogus:1")
	assert.Error(t, err)
	_, err = c.run(t, "run", filepath.Join(c.dir, "missing.log"))
	assert.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	c := newCLI(t)
	out, err := c.run(t, "token", "--token", "abc")
	require.NoError(t, err)
	assert.Contains(t, out, "token:      abc")
	assert.Contains(t, out, "token_hash: $2a$")
}
