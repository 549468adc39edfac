package gitbot

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// handleLinesCommand replies with the lines referenced by a GitHub or
// GitLab file link, attaching pagination buttons.
func (b *GitBot) handleLinesCommand(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	locale string,
) error {
	options := discordInteractionOptions(i)
	rawURL := ""
	if opt, ok := options["url"]; ok {
		rawURL = strings.TrimSpace(opt.StringValue())
	}
	ref, err := parseSnippetURL(rawURL)
	if err != nil {
		return err
	}

	text, err := fetchSnippetFile(ctx, b.config.HTTPClient, ref)
	if err != nil {
		return err
	}

	viewID, err := generateRandomHexString(16)
	if err != nil {
		return err
	}
	view := NewLinesView(viewID, ref)
	b.linesViews.Add(view)

	content := renderCodeBlock(ref, view.L1, view.L2, text)
	components := view.Components(b.localizer, locale)
	_, err = b.discord.session.InteractionResponseEdit(
		i.Interaction,
		&discordgo.WebhookEdit{
			Content:    &content,
			Components: &components,
		},
	)
	if err != nil {
		b.linesViews.Remove(viewID)
	}
	return err
}
