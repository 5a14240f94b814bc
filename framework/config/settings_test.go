package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvete/ignition/framework/config"
)

// writeSettings drops a settings file into a temp dir and returns its path.
func writeSettings(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

const sample = `
app:
  name: demo
  debug: true
logging:
  level: warn
  outputs:
    - stdout
    - /tmp/demo.log
  fields:
    region: eu-west-1
server:
  port: 8080
`

func TestLoad_ParsesNestedSections(t *testing.T) {
	cfg, err := config.Load(writeSettings(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "demo", cfg.Section("app").String("name", ""))
	assert.True(t, cfg.Section("app").Bool("debug", false))
	assert.Equal(t, 8080, cfg.Section("server").Int("port", 0))
	assert.Equal(t, "warn", cfg.Section("logging").String("level", "info"))
	assert.Equal(t,
		[]string{"stdout", "/tmp/demo.log"},
		cfg.Section("logging").StringSlice("outputs"))
	assert.Equal(t,
		map[string]string{"region": "eu-west-1"},
		cfg.Section("logging").StringMap("fields"))
}

func TestLoad_MissingFileIsFatal(t *testing.T) {
	t.Parallel()

	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrLoad)
}

func TestLoad_MalformedFileIsFatal(t *testing.T) {
	_, err := config.Load(writeSettings(t, "app: [unclosed"))
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrLoad)
}

func TestLoad_EnvFileOverlay(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath,
		[]byte("IGNITION_APP_NAME=from-dotenv\n"), 0o600))

	// godotenv does not clobber variables already set in the process.
	t.Setenv("IGNITION_APP_NAME", "")
	os.Unsetenv("IGNITION_APP_NAME")

	cfg, err := config.Load(writeSettings(t, sample), envPath)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Section("app").String("name", ""))
}

func TestEnvOverride_WinsOverFile(t *testing.T) {
	t.Setenv("IGNITION_LOGGING_LEVEL", "debug")

	cfg, err := config.Load(writeSettings(t, sample))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Section("logging").String("level", "info"))
}

func TestSection_AbsentIsEmptyButValid(t *testing.T) {
	t.Parallel()

	cfg := config.FromMap(map[string]any{})
	section := cfg.Section("nope").Section("deeper")
	require.NotNil(t, section)
	assert.False(t, section.Has("anything"))
	assert.Equal(t, "fallback", section.String("anything", "fallback"))
	assert.Empty(t, section.Keys())
}

func TestFallbacks(t *testing.T) {
	t.Parallel()

	cfg := config.FromMap(map[string]any{
		"str":     "x",
		"num":     7,
		"numStr":  "9",
		"boolStr": "true",
	})

	assert.Equal(t, "x", cfg.String("str", "d"))
	assert.Equal(t, 7, cfg.Int("num", 0))
	assert.Equal(t, 9, cfg.Int("numStr", 0))
	assert.True(t, cfg.Bool("boolStr", false))
	assert.Equal(t, 3, cfg.Int("missing", 3))
	assert.False(t, cfg.Bool("missing", false))
	assert.Nil(t, cfg.StringSlice("missing"))
}
