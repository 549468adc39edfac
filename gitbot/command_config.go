package gitbot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"gorm.io/gorm"
)

// handleConfigCommand routes the `/config` subcommands. All replies are
// ephemeral.
func (b *GitBot) handleConfigCommand(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	locale string,
) error {
	user := getDiscordUser(i)
	if user == nil {
		return errors.New("interaction has no user")
	}
	path, options := subcommandOptions(i)
	route := strings.Join(path, " ")
	switch route {
	case "set":
		return b.configSet(ctx, i, user.ID, options, locale)
	case "delete":
		return b.configDelete(ctx, i, user.ID, options, locale)
	case "show":
		return b.configShow(ctx, i, user.ID, locale)
	default:
		return fmt.Errorf("unknown config subcommand: %q", route)
	}
}

// validatePreferenceValue checks a value against the live service it
// refers to before it's saved.
func (b *GitBot) validatePreferenceValue(
	ctx context.Context,
	field string,
	value string,
) error {
	switch field {
	case PrefFieldUser:
		_, err := b.github.GetUser(ctx, value)
		return err
	case PrefFieldRepo:
		owner, name, err := splitRepoName(value)
		if err != nil {
			return err
		}
		_, err = b.github.GetRepo(ctx, owner, name)
		return err
	case PrefFieldOrg:
		_, err := b.github.GetOrg(ctx, value)
		return err
	case PrefFieldLocale:
		if !b.localizer.HasLocale(value) {
			return fmt.Errorf(
				"%w: unknown locale %q",
				ErrInvalidName,
				value,
			)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownPreferenceField, field)
	}
}

func (b *GitBot) configSet(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	userID string,
	options map[string]*discordgo.ApplicationCommandInteractionDataOption,
	locale string,
) error {
	field := options["field"].StringValue()
	value := strings.TrimSpace(options["value"].StringValue())

	if err := b.validatePreferenceValue(ctx, field, value); err != nil {
		return err
	}
	if err := b.db.SetPreference(ctx, userID, field, value); err != nil {
		return err
	}
	return b.editContent(
		i,
		b.localizer.Get(locale, "config.set", value, field),
	)
}

func (b *GitBot) configDelete(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	userID string,
	options map[string]*discordgo.ApplicationCommandInteractionDataOption,
	locale string,
) error {
	field := options["field"].StringValue()
	err := b.db.DeletePreference(ctx, userID, field)
	if errors.Is(err, ErrPreferenceNotSet) {
		return b.editContent(
			i,
			b.localizer.Get(locale, "config.not_set", field),
		)
	}
	if err != nil {
		return err
	}
	return b.editContent(
		i,
		b.localizer.Get(locale, "config.deleted", field),
	)
}

func (b *GitBot) configShow(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	userID string,
	locale string,
) error {
	prefs, err := b.db.GetPreferences(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return b.editContent(
			i,
			b.localizer.Get(locale, "config.show.empty"),
		)
	}
	if err != nil {
		return err
	}

	loc := b.localizer
	lines := make([]string, 0, len(PreferenceFields))
	for _, field := range PreferenceFields {
		value, fieldErr := prefs.Field(field)
		if fieldErr != nil {
			continue
		}
		if value == "" {
			value = loc.Get(locale, "config.show.unset")
		} else {
			value = fmt.Sprintf("`%s`", value)
		}
		lines = append(lines, fmt.Sprintf("**%s:** %s", field, value))
	}
	embed := &discordgo.MessageEmbed{
		Color:       embedColorGitHub,
		Title:       loc.Get(locale, "config.show.title"),
		Description: strings.Join(lines, "\n"),
	}
	return b.editEmbed(i, embed)
}
