package gitbot

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverflowList(t *testing.T) {
	t.Parallel()

	items := []string{"a", "b", "c", "d", "e"}

	kept, overflow := overflowList(items, 3)
	assert.Equal(t, []string{"a", "b", "c"}, kept)
	assert.Equal(t, 2, overflow)

	kept, overflow = overflowList(items, 5)
	assert.Equal(t, items, kept)
	assert.Zero(t, overflow)

	kept, overflow = overflowList([]string(nil), 3)
	assert.Empty(t, kept)
	assert.Zero(t, overflow)
}

func TestPluralKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "none", pluralKey(0))
	assert.Equal(t, "singular", pluralKey(1))
	assert.Equal(t, "plural", pluralKey(2))
	assert.Equal(t, "plural", pluralKey(100))
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "abc", truncate("abcdef", 3))
	assert.Equal(t, "", truncate("abc", 0))
	assert.Equal(t, "żół", truncate("żółty", 3))
}

func TestDiscordTimestamp(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(
		t,
		"<t:1785585600:D>",
		discordTimestamp(ts, "D"),
	)
	assert.Equal(
		t,
		"<t:1785585600:D>",
		githubToDiscordTimestamp("2026-08-01T12:00:00Z"),
	)
	assert.Equal(
		t,
		"not a timestamp",
		githubToDiscordTimestamp("not a timestamp"),
	)
	assert.Equal(
		t,
		"<t:1785542400:D>",
		externalToDiscordTimestamp("2026-08-01", "2006-01-02"),
	)
}

func TestSubcommandOptions(t *testing.T) {
	t.Parallel()

	interaction := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type: discordgo.InteractionApplicationCommand,
			Data: discordgo.ApplicationCommandInteractionData{
				Name: "github",
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{
						Name: "user",
						Type: discordgo.ApplicationCommandOptionSubCommandGroup,
						Options: []*discordgo.ApplicationCommandInteractionDataOption{
							{
								Name: "info",
								Type: discordgo.ApplicationCommandOptionSubCommand,
								Options: []*discordgo.ApplicationCommandInteractionDataOption{
									{
										Name:  "user",
										Type:  discordgo.ApplicationCommandOptionString,
										Value: "octocat",
									},
								},
							},
						},
					},
				},
			},
		},
	}

	path, options := subcommandOptions(interaction)
	assert.Equal(t, []string{"user", "info"}, path)
	require.Contains(t, options, "user")
	assert.Equal(t, "octocat", options["user"].StringValue())
}

func TestGetDiscordUser(t *testing.T) {
	t.Parallel()

	user := &discordgo.User{ID: "user-123", Username: "octocat"}

	direct := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{User: user},
	}
	assert.Equal(t, user, getDiscordUser(direct))

	viaMember := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Member: &discordgo.Member{User: user},
		},
	}
	assert.Equal(t, user, getDiscordUser(viaMember))

	neither := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{},
	}
	assert.Nil(t, getDiscordUser(neither))
}

func TestGenerateRandomHexString(t *testing.T) {
	t.Parallel()

	value, err := generateRandomHexString(16)
	require.NoError(t, err)
	assert.Len(t, value, 16)

	// odd lengths round up to the next even size
	value, err = generateRandomHexString(7)
	require.NoError(t, err)
	assert.Len(t, value, 8)
}
