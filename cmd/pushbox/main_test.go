package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushbox/pushbox/internal/config"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldWd) })
}

func resetConfigState(t *testing.T) {
	t.Helper()
	t.Cleanup(viper.Reset)
}

func TestLoadConfigDefaults(t *testing.T) {
	resetConfigState(t)
	chdir(t, t.TempDir())

	require.NoError(t, loadConfig(rootCmd))
	cfg := configFromViper()

	assert.Equal(t, ".", cfg.SourceDir)
	assert.Equal(t, config.DefaultPort, cfg.TargetPort)
	assert.Equal(t, "", cfg.TargetHost)
	assert.False(t, cfg.DryRun)
	assert.False(t, cfg.Mirror)
}

func TestLoadConfigEnv(t *testing.T) {
	resetConfigState(t)
	chdir(t, t.TempDir())

	t.Setenv("PUSHBOX_TARGET_HOST", "deploy@example.test")
	t.Setenv("PUSHBOX_TARGET_PORT", "2222")
	t.Setenv("PUSHBOX_TARGET_DIR", "/srv/app")
	t.Setenv("PUSHBOX_SOURCE_MODE", "directory")
	t.Setenv("PUSHBOX_DRY_RUN", "true")
	t.Setenv("PUSHBOX_LOG_LEVEL", "debug")
	t.Setenv("PUSHBOX_IDENTITY_FILE", "/home/me/.ssh/id_ed25519")

	require.NoError(t, loadConfig(rootCmd))
	cfg := configFromViper()

	assert.Equal(t, "deploy@example.test", cfg.TargetHost)
	assert.Equal(t, 2222, cfg.TargetPort)
	assert.Equal(t, "/srv/app", cfg.TargetDir)
	assert.Equal(t, config.SourceModeDirectory, cfg.SourceMode)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/home/me/.ssh/id_ed25519", cfg.IdentityFile)
}

func TestLoadConfigYAML(t *testing.T) {
	resetConfigState(t)

	dummyConfig := `
source_dir: .
target_host: deploy@example.test
target_port: 2202
target_dir: /srv/app
source_mode: contents
exclude:
  - target/
  - "*.log"
ssh_options:
  - StrictHostKeyChecking=accept-new
log_level: warn
`
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, config.DefaultConfigName), []byte(dummyConfig), 0644)
	require.NoError(t, err)
	chdir(t, dir)

	require.NoError(t, loadConfig(rootCmd))
	cfg := configFromViper()

	assert.Equal(t, ".", cfg.SourceDir)
	assert.Equal(t, "deploy@example.test", cfg.TargetHost)
	assert.Equal(t, 2202, cfg.TargetPort)
	assert.Equal(t, "/srv/app", cfg.TargetDir)
	assert.Equal(t, config.SourceModeContents, cfg.SourceMode)
	assert.Equal(t, []string{"target/", "*.log"}, cfg.Exclude)
	assert.Equal(t, []string{"StrictHostKeyChecking=accept-new"}, cfg.SSHOptions)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadConfigFlagBeatsFile(t *testing.T) {
	resetConfigState(t)

	dummyConfig := `
target_host: deploy@example.test
target_port: 2202
target_dir: /srv/app
`
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, config.DefaultConfigName), []byte(dummyConfig), 0644)
	require.NoError(t, err)
	chdir(t, dir)

	require.NoError(t, rootCmd.Flags().Set("port", "2222"))
	t.Cleanup(func() {
		f := rootCmd.Flags().Lookup("port")
		f.Changed = false
		_ = f.Value.Set(f.DefValue)
	})

	require.NoError(t, loadConfig(rootCmd))
	cfg := configFromViper()

	// the explicit flag wins, untouched keys still come from the file
	assert.Equal(t, 2222, cfg.TargetPort)
	assert.Equal(t, "deploy@example.test", cfg.TargetHost)
	assert.Equal(t, "/srv/app", cfg.TargetDir)
}

func TestLoadConfigExplicitFile(t *testing.T) {
	resetConfigState(t)
	chdir(t, t.TempDir())

	other := filepath.Join(t.TempDir(), "staging.yaml")
	err := os.WriteFile(other, []byte("target_host: staging@example.test\n"), 0644)
	require.NoError(t, err)

	require.NoError(t, rootCmd.PersistentFlags().Set("config", other))
	t.Cleanup(func() {
		f := rootCmd.PersistentFlags().Lookup("config")
		f.Changed = false
		_ = f.Value.Set(f.DefValue)
	})

	require.NoError(t, loadConfig(rootCmd))
	cfg := configFromViper()

	assert.Equal(t, "staging@example.test", cfg.TargetHost)
	assert.Equal(t, other, cfg.Path)
}
