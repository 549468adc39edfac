package gitbot

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// handlePyPICommand routes the `/pypi` subcommands.
func (b *GitBot) handlePyPICommand(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	locale string,
) error {
	path, options := subcommandOptions(i)
	name := ""
	if opt, ok := options["package"]; ok {
		name = strings.ToLower(strings.TrimSpace(opt.StringValue()))
	}
	route := strings.Join(path, " ")
	switch route {
	case "info":
		return b.pypiInfo(ctx, i, name, locale)
	case "downloads":
		return b.pypiDownloads(ctx, i, name, locale)
	default:
		return fmt.Errorf("unknown pypi subcommand: %q", route)
	}
}

func (b *GitBot) pypiInfo(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	name string,
	locale string,
) error {
	pkg, err := b.pypi.GetPackage(ctx, name)
	if err != nil {
		return err
	}

	loc := b.localizer
	embed := &discordgo.MessageEmbed{
		Color: embedColorPython,
		Title: fmt.Sprintf("%s `%s`", pkg.Name, pkg.Version),
		URL:   pkg.PackageURL,
	}
	if pkg.Summary != "" {
		embed.Fields = append(
			embed.Fields, &discordgo.MessageEmbedField{
				Name:  fmt.Sprintf(":notepad_spiral: %s:", loc.Get(locale, "pypi.glossary.summary")),
				Value: fmt.Sprintf("```%s```", strings.TrimSpace(pkg.Summary)),
			},
		)
	}

	var lines []string
	if pkg.Author != "" {
		lines = append(lines, loc.Get(locale, "pypi.author", pkg.Author))
	}
	if pkg.ReleasedAt != "" {
		lines = append(
			lines,
			loc.Get(
				locale,
				"pypi.last_release",
				githubToDiscordTimestamp(pkg.ReleasedAt),
			),
		)
	}
	if pkg.RequiresPython != "" {
		lines = append(
			lines,
			loc.Get(
				locale,
				"pypi.requires_python",
				fmt.Sprintf("`%s`", pkg.RequiresPython),
			),
		)
	}
	if len(lines) > 0 {
		embed.Fields = append(
			embed.Fields, &discordgo.MessageEmbedField{
				Name:  fmt.Sprintf(":mag_right: %s:", loc.Get(locale, "pypi.glossary.info")),
				Value: strings.Join(lines, "\n"),
			},
		)
	}

	var links []string
	if pkg.HomePage != "" {
		links = append(
			links,
			fmt.Sprintf(
				"- [%s](%s)",
				loc.Get(locale, "pypi.glossary.homepage"),
				pkg.HomePage,
			),
		)
	}
	for label, u := range pkg.ProjectURLs {
		if u == "" || u == pkg.HomePage {
			continue
		}
		links = append(links, fmt.Sprintf("- [%s](%s)", label, u))
	}
	if len(links) > 0 {
		shown, _ := overflowList(links, 5)
		embed.Fields = append(
			embed.Fields, &discordgo.MessageEmbedField{
				Name:  fmt.Sprintf(":link: %s:", loc.Get(locale, "pypi.glossary.links")),
				Value: strings.Join(shown, "\n"),
			},
		)
	}
	if pkg.License != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: loc.Get(
				locale,
				"pypi.license",
				truncate(pkg.License, 128),
			),
		}
	}
	return b.editEmbed(i, embed)
}

func (b *GitBot) pypiDownloads(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	name string,
	locale string,
) error {
	history, err := b.pypi.GetDownloadHistory(ctx, name)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return ErrNoChartData
	}
	recent, err := b.pypi.GetRecentDownloads(ctx, name)
	if err != nil {
		return err
	}

	chartPNG, err := renderDownloadChart(name, history)
	if err != nil {
		return err
	}

	loc := b.localizer
	statsURL := fmt.Sprintf(
		"https://pypistats.org/packages/%s",
		strings.ReplaceAll(name, ".", "-"),
	)
	embed := &discordgo.MessageEmbed{
		Color: embedColorPython,
		Title: loc.Get(locale, "pypi.downloads.title", name, len(history)-1),
		URL:   statsURL,
		Description: strings.Join(
			[]string{
				loc.Get(locale, "downloads.yesterday", recent.LastDay),
				loc.Get(locale, "downloads.last_week", recent.LastWeek),
				loc.Get(locale, "downloads.last_month", recent.LastMonth),
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
