package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-saxs/config"
)

func TestLoadConfigFlagPriority(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "saxs.yaml")
	require.NoError(os.WriteFile(path, []byte("binary: /from/file\nlog:\n  level: debug\n"), 0o600))
	t.Setenv("SAXS_DATABASE_URL", "postgres://env/saxs")

	cmd := newRootCmd()
	require.NoError(cmd.Flags().Parse([]string{"--binary", "/from/flag", "--handshake", "--log-format", "console"}))

	cfg, err := loadConfig(path, cmd.Flags())
	require.NoError(err)
	require.Equal("/from/flag", cfg.Binary)
	require.Equal("postgres://env/saxs", cfg.DatabaseURL)
	require.True(cfg.Handshake.Enabled)
	require.Equal("debug", cfg.Log.Level)
	require.Equal(config.FormatConsole, cfg.Log.Format)
	require.True(cfg.VerifyChecksum)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cmd := newRootCmd()
	_, err := loadConfig(filepath.Join(t.TempDir(), "none.yaml"), cmd.Flags())
	require.Error(t, err)
}

func TestRunMissingBinary(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--binary", filepath.Join(t.TempDir(), "no-such-producer"), "--log-file", filepath.Join(t.TempDir(), "saxs.log")})
	cmd.SetOut(io.Discard)

	require.Error(t, cmd.Execute())
}
