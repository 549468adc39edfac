package gitbot

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// locSheetLanguageLimit caps how many languages appear in the detailed
// result sheet.
const locSheetLanguageLimit = 15

// handleLocCommand counts lines of code in a repository and replies
// with a summary embed.
func (b *GitBot) handleLocCommand(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	locale string,
) error {
	options := discordInteractionOptions(i)
	fullName, err := b.optionOrPreference(ctx, options, i, "repo", PrefFieldRepo)
	if err != nil {
		return err
	}
	owner, name, err := splitRepoName(fullName)
	if err != nil {
		return err
	}

	nocache := false
	if opt, ok := options["nocache"]; ok {
		nocache = opt.BoolValue()
	}

	repo, err := b.github.GetRepo(ctx, owner, name)
	if err != nil {
		return err
	}
	report, err := b.loc.CountLines(ctx, owner, name, nocache)
	if err != nil {
		return err
	}

	loc := b.localizer
	title := loc.Get(
		locale,
		"loc.title",
		fmt.Sprintf("`%s/%s`", owner, name),
	)
	description := strings.Join(
		[]string{
			loc.Get(
				locale,
				"loc.description",
				report.Header.NLines,
				report.Sum.NFiles,
			),
			strings.Repeat("⎯", len([]rune(title))),
			fmt.Sprintf(
				"**%s:** %d",
				loc.Get(locale, "loc.stats.code"),
				report.Sum.Code,
			),
			fmt.Sprintf(
				"**%s:** %d",
				loc.Get(locale, "loc.stats.blank"),
				report.Sum.Blank,
			),
			fmt.Sprintf(
				"**%s:** %d",
				loc.Get(locale, "loc.stats.comments"),
				report.Sum.Comment,
			),
			fmt.Sprintf("**%s:**", loc.Get(locale, "loc.stats.detailed")),
			report.ResultSheet(locSheetLanguageLimit),
		},
		"\n",
	)

	embed := &discordgo.MessageEmbed{
		Color:       embedColorGitHub,
		Title:       title,
		URL:         repo.GetHTMLURL(),
		Description: description,
		Footer: &discordgo.MessageEmbedFooter{
			Text: loc.Get(locale, "loc.footer"),
		},
	}
	return b.editEmbed(i, embed)
}
