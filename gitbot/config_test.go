package gitbot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDefaultConfig(t *testing.T) {
	t.Parallel()

	// defaults alone are incomplete: tokens and discord credentials
	// have to come from the environment or a config file
	cfg := DefaultConfig()
	require.Error(t, structValidator.Struct(cfg))

	cfg.GitHub.Tokens = []string{"ghp_example"}
	cfg.Discord.Token = "discord-bot-token"
	cfg.Discord.ApplicationID = "1234567890"
	require.NoError(t, structValidator.Struct(cfg))
}

func TestValidateConfigRejectsBadDatabaseType(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.GitHub.Tokens = []string{"ghp_example"}
	cfg.Discord.Token = "discord-bot-token"
	cfg.Discord.ApplicationID = "1234567890"
	cfg.DatabaseType = "mysql"
	require.Error(t, structValidator.Struct(cfg))
}

func TestDefaultConfigValues(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	assert.Equal(t, dbTypeSQLite, cfg.DatabaseType)
	assert.Equal(t, DefaultObjectCacheSize, cfg.GitHub.ObjectCacheSize)
	assert.Equal(
		t,
		450*time.Second,
		cfg.GitHub.ObjectCacheMaxAge,
	)
	assert.Equal(
		t,
		int64(25*1024*1024),
		cfg.GitHub.RepoZipSizeThreshold,
	)
	assert.Equal(t, DefaultClocCommand, cfg.Loc.ClocCommand)
	assert.False(t, cfg.API.Enabled)
	assert.Equal(t, DefaultDiscordCustomStatus, cfg.Discord.CustomStatus)
}
