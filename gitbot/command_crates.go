package gitbot

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// crateOwnerLimit caps how many owners are listed for a crate; the
// remainder is summarized inline.
const crateOwnerLimit = 5

// handleCratesCommand routes the `/crates` subcommands.
func (b *GitBot) handleCratesCommand(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	locale string,
) error {
	path, options := subcommandOptions(i)
	name := ""
	if opt, ok := options["crate"]; ok {
		name = strings.ToLower(strings.TrimSpace(opt.StringValue()))
	}
	route := strings.Join(path, " ")
	switch route {
	case "info":
		return b.cratesInfo(ctx, i, name, locale)
	case "downloads":
		return b.cratesDownloads(ctx, i, name, locale)
	default:
		return fmt.Errorf("unknown crates subcommand: %q", route)
	}
}

func (b *GitBot) cratesInfo(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	name string,
	locale string,
) error {
	crate, err := b.crates.GetCrate(ctx, name)
	if err != nil {
		return err
	}
	owners, err := b.crates.GetOwners(ctx, name)
	if err != nil {
		return err
	}

	loc := b.localizer
	crateURL := fmt.Sprintf("https://crates.io/crates/%s", crate.Name)
	embedURL := crate.Homepage
	if embedURL == "" {
		embedURL = crateURL
	}
	embed := &discordgo.MessageEmbed{
		Color: embedColorRust,
		Title: fmt.Sprintf("%s `%s`", crate.Name, crate.MaxVersion),
		URL:   embedURL,
	}
	if crate.Description != "" {
		embed.Fields = append(
			embed.Fields, &discordgo.MessageEmbedField{
				Name:  fmt.Sprintf(":notepad_spiral: %s:", loc.Get(locale, "crates.glossary.description")),
				Value: fmt.Sprintf("```%s```", strings.TrimSpace(crate.Description)),
			},
		)
	}

	var lines []string
	if len(owners) > 0 {
		shown, overflow := overflowList(owners, crateOwnerLimit)
		rendered := make([]string, 0, len(shown))
		for _, owner := range shown {
			if owner.URL != "" {
				rendered = append(
					rendered,
					fmt.Sprintf("[%s](%s)", owner.DisplayName(), owner.URL),
				)
			} else {
				rendered = append(rendered, owner.DisplayName())
			}
		}
		authors := loc.Get(
			locale,
			"crates.authors",
			strings.Join(rendered, ", "),
		)
		if overflow > 0 {
			authors = fmt.Sprintf(
				"%s %s",
				authors,
				loc.Get(locale, "crates.more_authors", overflow),
			)
		}
		lines = append(lines, authors)
	}
	lines = append(
		lines,
		loc.Get(
			locale,
			"crates.created_at",
			discordTimestamp(crate.CreatedAt, "D"),
		),
		fmt.Sprintf(
			"```rust\n%d // %s```",
			crate.Downloads,
			loc.Get(locale, "crates.all_time_downloads"),
		),
	)
	embed.Fields = append(
		embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf(":mag_right: %s:", loc.Get(locale, "crates.glossary.info")),
			Value: strings.Join(lines, "\n"),
		},
	)

	if len(crate.Keywords) > 0 {
		rendered := make([]string, 0, len(crate.Keywords))
		for _, keyword := range crate.Keywords {
			rendered = append(
				rendered,
				fmt.Sprintf(
					"[`%s`](https://crates.io/keywords/%s)",
					keyword,
					keyword,
				),
			)
		}
		embed.Fields = append(
			embed.Fields, &discordgo.MessageEmbedField{
				Name:  fmt.Sprintf(":label: %s:", loc.Get(locale, "crates.glossary.keywords")),
				Value: strings.Join(rendered, " "),
			},
		)
	}
	if len(crate.Categories) > 0 {
		rendered := make([]string, 0, len(crate.Categories))
		for _, category := range crate.Categories {
			rendered = append(
				rendered,
				fmt.Sprintf(
					"[`%s`](https://crates.io/categories/%s)",
					category,
					category,
				),
			)
		}
		embed.Fields = append(
			embed.Fields, &discordgo.MessageEmbedField{
				Name:  fmt.Sprintf(":package: %s:", loc.Get(locale, "crates.glossary.categories")),
				Value: strings.Join(rendered, " "),
			},
		)
	}
	return b.editEmbed(i, embed)
}

func (b *GitBot) cratesDownloads(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	name string,
	locale string,
) error {
	history, err := b.crates.GetDownloadHistory(ctx, name)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return ErrNoChartData
	}

	yesterday, lastWeek, lastMonth := summarizeDownloads(history)

	chartPNG, err := renderDownloadChart(name, history)
	if err != nil {
		return err
	}

	loc := b.localizer
	crateURL := fmt.Sprintf("https://crates.io/crates/%s", name)
	embed := &discordgo.MessageEmbed{
		Color: embedColorRust,
		Title: loc.Get(
			locale,
			"crates.downloads.title",
			name,
			len(history)-1,
		),
		URL: crateURL,
		Description: strings.Join(
			[]string{
				loc.Get(locale, "downloads.yesterday", yesterday),
				loc.Get(locale, "downloads.last_week", lastWeek),
				loc.Get(locale, "downloads.last_month", lastMonth),
			},
			"\n",
		),
		Footer: &discordgo.MessageEmbedFooter{
			Text: loc.Get(locale, "downloads.footer"),
		},
	}
	return b.editEmbed(
		i,
		embed,
		&discordgo.File{
			Name:        fmt.Sprintf("%s-downloads-overall.png", name),
			ContentType: "image/png",
			Reader:      bytes.NewReader(chartPNG),
		},
	)
}
