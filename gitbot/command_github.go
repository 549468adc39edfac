package gitbot

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/google/go-github/v57/github"
	"golang.org/x/sync/errgroup"
)

const (
	embedColorGitHub = 0x00a6ff
	embedColorPython = 0x3572a5
	embedColorRust   = 0xe7b34e

	// repoListLimit caps how many repositories are listed in a single
	// embed; the remainder is summarized in the footer.
	repoListLimit = 15
)

// handleGitHubCommand routes the `/github` subcommands.
func (b *GitBot) handleGitHubCommand(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	locale string,
) error {
	path, options := subcommandOptions(i)
	route := strings.Join(path, " ")
	switch route {
	case "user info":
		return b.githubUserInfo(ctx, i, options, locale)
	case "user repos":
		return b.githubUserRepos(ctx, i, options, locale)
	case "repo info":
		return b.githubRepoInfo(ctx, i, options, locale)
	case "org info":
		return b.githubOrgInfo(ctx, i, options, locale)
	default:
		return fmt.Errorf("unknown github subcommand: %q", route)
	}
}

func (b *GitBot) githubUserInfo(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	options map[string]*discordgo.ApplicationCommandInteractionDataOption,
	locale string,
) error {
	login, err := b.optionOrPreference(ctx, options, i, "user", PrefFieldUser)
	if err != nil {
		return err
	}
	user, err := b.github.GetUser(ctx, login)
	if err != nil {
		return err
	}
	embed := b.userEmbed(locale, user)

	orgs, err := b.github.GetUserOrgs(ctx, login)
	if err == nil && len(orgs) > 0 {
		shown, overflow := overflowList(orgs, 10)
		rendered := make([]string, 0, len(shown))
		for _, org := range shown {
			rendered = append(
				rendered,
				fmt.Sprintf(
					"[%s](https://github.com/%s)",
					org.GetLogin(),
					org.GetLogin(),
				),
			)
		}
		value := strings.Join(rendered, ", ")
		if overflow > 0 {
			value = fmt.Sprintf(
				"%s %s",
				value,
				b.localizer.Get(locale, "github.org.more_members", overflow),
			)
		}
		embed.Fields = append(
			embed.Fields, &discordgo.MessageEmbedField{
				Name:  fmt.Sprintf(":office: %s:", b.localizer.Get(locale, "github.user.glossary.orgs")),
				Value: value,
			},
		)
	}
	return b.editEmbed(i, embed)
}

// userEmbed builds the profile embed shared by user and org lookups.
func (b *GitBot) userEmbed(
	locale string,
	user *GitHubUser,
) *discordgo.MessageEmbed {
	loc := b.localizer

	embed := &discordgo.MessageEmbed{
		Color: embedColorGitHub,
		Title: user.Login,
		URL:   user.URL,
		Thumbnail: &discordgo.MessageEmbedThumbnail{
			URL: user.AvatarURL,
		},
	}
	if user.Bio != "" {
		embed.Fields = append(
			embed.Fields, &discordgo.MessageEmbedField{
				Name:  fmt.Sprintf(":notepad_spiral: %s:", loc.Get(locale, "github.user.glossary.bio")),
				Value: fmt.Sprintf("```%s```", strings.TrimSpace(user.Bio)),
			},
		)
	}

	var lines []string
	if !user.CreatedAt.IsZero() {
		lines = append(
			lines,
			loc.Get(
				locale,
				"github.user.joined_at",
				discordTimestamp(user.CreatedAt, "D"),
			),
		)
	}
	lines = append(
		lines,
		loc.Count(locale, "github.user.repos", user.PublicRepos),
		loc.Count(locale, "github.user.gists", user.PublicGists),
	)
	if user.Company != "" {
		lines = append(
			lines,
			loc.Get(locale, "github.user.company", user.Company),
		)
	}
	if user.Location != "" {
		lines = append(
			lines,
			loc.Get(locale, "github.user.location", user.Location),
		)
	}
	lines = append(
		lines,
		fmt.Sprintf(
			"%s %s %s",
			loc.Count(locale, "github.user.followers", user.Followers),
			loc.Get(locale, "github.user.linking_word"),
			loc.Count(locale, "github.user.following", user.Following),
		),
	)
	if user.Contributions > 0 {
		lines = append(
			lines,
			loc.Get(
				locale,
				"github.user.contributions",
				user.Contributions,
			),
		)
	}
	embed.Fields = append(
		embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf(":mag_right: %s:", loc.Get(locale, "github.user.glossary.info")),
			Value: strings.Join(lines, "\n"),
		},
	)

	var links []string
	if user.WebsiteURL != "" {
		website := user.WebsiteURL
		if !strings.HasPrefix(website, "http://") &&
			!strings.HasPrefix(website, "https://") {
			website = "https://" + website
		}
		links = append(
			links,
			fmt.Sprintf(
				"- [%s](%s)",
				loc.Get(locale, "github.user.glossary.website"),
				website,
			),
		)
	}
	if user.Twitter != "" {
		links = append(
			links,
			fmt.Sprintf("- [Twitter](https://twitter.com/%s)", user.Twitter),
		)
	}
	if len(links) > 0 {
		embed.Fields = append(
			embed.Fields, &discordgo.MessageEmbedField{
				Name:  fmt.Sprintf(":link: %s:", loc.Get(locale, "github.user.glossary.links")),
				Value: strings.Join(links, "\n"),
			},
		)
	}
	return embed
}

func (b *GitBot) githubUserRepos(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	options map[string]*discordgo.ApplicationCommandInteractionDataOption,
	locale string,
) error {
	login, err := b.optionOrPreference(ctx, options, i, "user", PrefFieldUser)
	if err != nil {
		return err
	}
	var (
		user  *GitHubUser
		repos []*github.Repository
	)
	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = b.github.GetUser(groupCtx, login)
		return err
	})
	g.Go(func() error {
		var err error
		repos, err = b.github.GetUserRepos(groupCtx, login)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if len(repos) == 0 {
		return b.editContent(
			i,
			b.localizer.Get(locale, "github.repos.no_public", login),
		)
	}

	shown, overflow := overflowList(repos, repoListLimit)
	lines := make([]string, 0, len(shown))
	for _, repo := range shown {
		lines = append(
			lines,
			fmt.Sprintf(
				":white_small_square: [**%s**](%s)",
				repo.GetName(),
				repo.GetHTMLURL(),
			),
		)
	}
	embed := &discordgo.MessageEmbed{
		Color:       embedColorGitHub,
		Title:       b.localizer.Get(locale, "github.repos.owner", login),
		URL:         fmt.Sprintf("https://github.com/%s", login),
		Description: strings.Join(lines, "\n"),
		Thumbnail: &discordgo.MessageEmbedThumbnail{
			URL: user.AvatarURL,
		},
	}
	if overflow > 0 {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: b.localizer.Get(locale, "github.repos.more", overflow),
		}
	}
	return b.editEmbed(i, embed)
}

func (b *GitBot) githubRepoInfo(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	options map[string]*discordgo.ApplicationCommandInteractionDataOption,
	locale string,
) error {
	fullName, err := b.optionOrPreference(ctx, options, i, "repo", PrefFieldRepo)
	if err != nil {
		return err
	}
	owner, name, err := splitRepoName(fullName)
	if err != nil {
		return err
	}
	repo, err := b.github.GetRepo(ctx, owner, name)
	if err != nil {
		return err
	}

	loc := b.localizer
	embed := &discordgo.MessageEmbed{
		Color: embedColorGitHub,
		Title: repo.GetFullName(),
		URL:   repo.GetHTMLURL(),
	}
	if repoOwner := repo.GetOwner(); repoOwner != nil {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{
			URL: repoOwner.GetAvatarURL(),
		}
	}
	if desc := repo.GetDescription(); desc != "" {
		embed.Fields = append(
			embed.Fields, &discordgo.MessageEmbedField{
				Name:  fmt.Sprintf(":notepad_spiral: %s:", loc.Get(locale, "github.repo.glossary.description")),
				Value: fmt.Sprintf("```%s```", strings.TrimSpace(desc)),
			},
		)
	}

	lines := []string{
		loc.Get(
			locale,
			"github.repo.created_at",
			discordTimestamp(repo.GetCreatedAt().Time, "D"),
		),
		loc.Count(locale, "github.repo.stargazers", repo.GetStargazersCount()),
		loc.Count(locale, "github.repo.forks", repo.GetForksCount()),
		loc.Count(locale, "github.repo.open_issues", repo.GetOpenIssuesCount()),
	}
	if language := repo.GetLanguage(); language != "" {
		lines = append(
			lines,
			loc.Get(locale, "github.repo.language", language),
		)
	}
	if license := repo.GetLicense(); license != nil {
		lines = append(
			lines,
			loc.Get(locale, "github.repo.license", license.GetName()),
		)
	}
	embed.Fields = append(
		embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf(":mag_right: %s:", loc.Get(locale, "github.repo.glossary.info")),
			Value: strings.Join(lines, "\n"),
		},
	)

	if topics := repo.Topics; len(topics) > 0 {
		shown, _ := overflowList(topics, 10)
		rendered := make([]string, 0, len(shown))
		for _, topic := range shown {
			rendered = append(
				rendered,
				fmt.Sprintf(
					"[`%s`](https://github.com/topics/%s)",
					topic,
					topic,
				),
			)
		}
		embed.Fields = append(
			embed.Fields, &discordgo.MessageEmbedField{
				Name:  fmt.Sprintf(":label: %s:", loc.Get(locale, "github.repo.glossary.topics")),
				Value: strings.Join(rendered, " "),
			},
		)
	}
	return b.editEmbed(i, embed)
}

func (b *GitBot) githubOrgInfo(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	options map[string]*discordgo.ApplicationCommandInteractionDataOption,
	locale string,
) error {
	name, err := b.optionOrPreference(ctx, options, i, "org", PrefFieldOrg)
	if err != nil {
		return err
	}
	org, err := b.github.GetOrg(ctx, name)
	if err != nil {
		return err
	}
	embed := b.userEmbed(locale, org)

	members, err := b.github.GetOrgMembers(ctx, name)
	if err == nil && len(members) > 0 {
		shown, overflow := overflowList(members, 10)
		rendered := make([]string, 0, len(shown))
		for _, member := range shown {
			rendered = append(
				rendered,
				fmt.Sprintf(
					"[%s](%s)",
					member.GetLogin(),
					member.GetHTMLURL(),
				),
			)
		}
		value := strings.Join(rendered, ", ")
		if overflow > 0 {
			value = fmt.Sprintf(
				"%s %s",
				value,
				b.localizer.Get(locale, "github.org.more_members", overflow),
			)
		}
		embed.Fields = append(
			embed.Fields, &discordgo.MessageEmbedField{
				Name:  fmt.Sprintf(":busts_in_silhouette: %s:", b.localizer.Get(locale, "github.org.glossary.members")),
				Value: value,
			},
		)
	}
	return b.editEmbed(i, embed)
}

// splitRepoName splits "owner/name" into its parts.
func splitRepoName(fullName string) (string, string, error) {
	owner, name, found := strings.Cut(strings.TrimSpace(fullName), "/")
	if !found || owner == "" || name == "" {
		return "", "", fmt.Errorf(
			"%w: expected owner/name, got %q",
			ErrInvalidName,
			fullName,
		)
	}
	return owner, name, nil
}
