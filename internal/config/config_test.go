package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karva-go/karva/internal/config"
)

func TestDefault_Valid(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, config.OutputFormatFull, cfg.OutputFormat)
	assert.Equal(t, config.ColorAuto, cfg.Color)
	assert.Equal(t, "test_", cfg.TestPrefix)
}

func TestValidate_RejectsDryRunAndWatch(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.DryRun = true
	cfg.Watch = true

	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidConfig)
}

func TestValidate_RejectsNegativeRetries(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Retries = -1

	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidConfig)
}

func TestValidate_RejectsBadOutputFormat(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.OutputFormat = "yaml"

	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidConfig)
}

func TestLoad_NoConfigFile_UsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, ".karva_cache", cfg.CacheDir)
}
