package gitbot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/go-playground/validator/v10"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"
)

// Build details, set via:
//
//	-ldflags "-X github.com/Sherav/gitbot/gitbot.Version=$$(date +'%Y%m%d')"
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildTime = "unknown"
)

var structValidator = validator.New(validator.WithRequiredStructEnabled())

//nolint:gochecknoinits // validator tag registration
func init() {
	structValidator.SetTagName("binding")
}

// GitBot is the top-level bot, tying together the Discord session, the
// upstream API clients, persistence, and the status API.
type GitBot struct {
	config    *Config
	logger    *slog.Logger
	db        *database
	discord   *Discord
	api       *API
	github    *GitHubClient
	pypi      *PyPIClient
	crates    *CratesClient
	loc       *LocService
	localizer *Localizer

	linesViews *linesViewRegistry
}

// New creates a GitBot from config. The config is validated, and all
// components except the database and gateway connection are
// constructed; those are deferred to [GitBot.Run].
func New(config *Config) (*GitBot, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := structValidator.Struct(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if config.HTTPClient != nil {
		if config.GitHub != nil && config.GitHub.httpClient == nil {
			config.GitHub.httpClient = config.HTTPClient
		}
		if config.Discord != nil && config.Discord.httpClient == nil {
			config.Discord.httpClient = config.HTTPClient
		}
	}

	logHandler := tint.NewHandler(
		os.Stdout,
		&tint.Options{
			Level:     config.LogLevel,
			AddSource: true,
		},
	)
	logger := slog.New(logHandler).With(loggerNameKey, "gitbot")
	slog.SetDefault(logger)

	localizer, err := NewLocalizer()
	if err != nil {
		return nil, err
	}

	bot := &GitBot{
		config:     config,
		logger:     logger,
		localizer:  localizer,
		linesViews: newLinesViewRegistry(DefaultLinesViewTimeout),
	}

	githubLogger := slog.New(logHandler).With(loggerNameKey, "github")
	bot.github, err = NewGitHubClient(config.GitHub, githubLogger)
	if err != nil {
		return nil, err
	}

	registryCache := NewObjectCache(
		config.GitHub.ObjectCacheSize,
		config.GitHub.ObjectCacheMaxAge,
	)
	bot.pypi = NewPyPIClient(
		config.HTTPClient,
		registryCache,
		slog.New(logHandler).With(loggerNameKey, "pypi"),
	)
	bot.crates = NewCratesClient(
		config.HTTPClient,
		registryCache,
		slog.New(logHandler).With(loggerNameKey, "crates"),
	)

	bot.loc = NewLocService(
		config.Loc,
		bot.github,
		slog.New(logHandler).With(loggerNameKey, "loc"),
	)

	bot.discord, err = newDiscord(config.Discord)
	if err != nil {
		return nil, err
	}
	bot.discord.logger = slog.New(logHandler).With(loggerNameKey, "discord")
	bot.discord.bot = bot

	if config.API.Enabled {
		bot.api, err = newAPI(bot, config.API)
		if err != nil {
			return nil, err
		}
	}
	return bot, nil
}

// Run connects to the database and Discord gateway, starts the status
// API if enabled, and blocks until ctx is cancelled.
func (b *GitBot) Run(ctx context.Context) error {
	startupCtx, startupCancel := context.WithTimeout(
		ctx,
		b.config.StartupTimeout,
	)
	defer startupCancel()

	gormDB, err := CreateDB(
		startupCtx,
		b.config.DatabaseType,
		b.config.Database,
	)
	if err != nil {
		return fmt.Errorf("error creating database: %w", err)
	}
	b.db = NewDatabase(
		gormDB,
		b.logger.With(loggerNameKey, "database"),
	)

	session, err := b.discord.newSession()
	if err != nil {
		return err
	}
	b.discord.session = session

	b.discord.discordgoRemoveHandlerFuncs = []func(){
		session.AddHandler(b.discord.handlerReady()),
		session.AddHandler(b.discord.handlerConnect()),
		session.AddHandler(b.discord.handlerDisconnect()),
		session.AddHandler(
			func(s *discordgo.Session, i *discordgo.InteractionCreate) {
				b.handleInteraction(WithLogger(ctx, b.logger), i)
			},
		),
		session.AddHandler(
			func(s *discordgo.Session, m *discordgo.MessageCreate) {
				b.handleMessageCreate(WithLogger(ctx, b.logger), m)
			},
		),
	}

	if err = session.Open(); err != nil {
		return fmt.Errorf("error opening discord session: %w", err)
	}

	if _, err = b.discord.registerCommands(); err != nil {
		return fmt.Errorf("error registering commands: %w", err)
	}

	g, runCtx := errgroup.WithContext(ctx)

	if b.api != nil {
		g.Go(
			func() error {
				return b.api.Serve(runCtx)
			},
		)
	}

	g.Go(
		func() error {
			<-runCtx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(
				context.Background(),
				b.config.ShutdownTimeout,
			)
			defer shutdownCancel()
			b.shutdown(shutdownCtx)
			return runCtx.Err()
		},
	)

	b.logger.Info("started", "config", b.config)
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (b *GitBot) shutdown(_ context.Context) {
	b.logger.Info("shutting down")
	for _, removeHandler := range b.discord.discordgoRemoveHandlerFuncs {
		removeHandler()
	}
	if err := b.discord.session.Close(); err != nil {
		b.logger.Error("error closing discord session", tint.Err(err))
	}
	if b.db != nil {
		if sqlDB, err := b.db.db.DB(); err == nil {
			if closeErr := sqlDB.Close(); closeErr != nil {
				b.logger.Error("error closing database", tint.Err(closeErr))
			}
		}
	}
}

// userLocale returns the user's preferred locale, or [DefaultLocale].
func (b *GitBot) userLocale(ctx context.Context, userID string) string {
	if userID == "" {
		return DefaultLocale
	}
	locale, err := b.db.GetPreference(ctx, userID, PrefFieldLocale)
	if err != nil || !b.localizer.HasLocale(locale) {
		return DefaultLocale
	}
	return locale
}

// optionOrPreference resolves a command argument from the given option
// map, falling back to the user's saved preference for prefField.
func (b *GitBot) optionOrPreference(
	ctx context.Context,
	options map[string]*discordgo.ApplicationCommandInteractionDataOption,
	i *discordgo.InteractionCreate,
	optionName string,
	prefField string,
) (string, error) {
	if opt, ok := options[optionName]; ok {
		if value := strings.TrimSpace(opt.StringValue()); value != "" {
			return value, nil
		}
	}
	user := getDiscordUser(i)
	if user == nil {
		return "", fmt.Errorf("%w: %s", ErrPreferenceNotSet, prefField)
	}
	return b.db.GetPreference(ctx, user.ID, prefField)
}

// handleInteraction is the entrypoint for all gateway interactions.
func (b *GitBot) handleInteraction(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	logger, ok := ContextLogger(ctx)
	if !ok || logger == nil {
		logger = b.logger
	}
	logger = logger.With(
		slog.Group("interaction", interactionLogAttrs(*i)...),
	)
	ctx = WithLogger(ctx, logger)

	b.logInteraction(ctx, i)

	switch i.Type {
	case discordgo.InteractionPing:
		if err := b.discord.session.InteractionRespond(
			i.Interaction,
			&discordgo.InteractionResponse{Type: discordgo.InteractionResponsePong},
		); err != nil {
			logger.ErrorContext(ctx, "error responding to ping", tint.Err(err))
		}
	case discordgo.InteractionApplicationCommand:
		b.handleApplicationCommand(ctx, i)
	case discordgo.InteractionMessageComponent:
		b.handleMessageComponent(ctx, i)
	default:
		logger.WarnContext(
			ctx,
			"unhandled interaction type",
			"type", i.Type.String(),
		)
	}
}

func (b *GitBot) logInteraction(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	if b.db == nil {
		return
	}
	rec := &InteractionLog{
		InteractionID: i.ID,
		Type:          i.Type.String(),
		GuildID:       i.GuildID,
		ChannelID:     i.ChannelID,
	}
	if user := getDiscordUser(i); user != nil {
		rec.UserID = user.ID
		rec.Username = user.Username
	}
	if i.Type == discordgo.InteractionApplicationCommand {
		data := i.ApplicationCommandData()
		rec.CommandName = data.Name
		if payload, err := json.Marshal(data); err == nil {
			rec.Payload = string(payload)
		}
	}
	go b.db.LogInteraction(context.WithoutCancel(ctx), rec)
}

// handleApplicationCommand defers an initial response, then dispatches
// to the per-command handler. Panics are recovered into a generic error
// reply so a bad lookup never kills the gateway loop.
func (b *GitBot) handleApplicationCommand(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	logger, _ := ContextLogger(ctx)
	data := i.ApplicationCommandData()

	if err := b.discord.session.InteractionRespond(
		i.Interaction,
		b.discord.ackResponse(data.Name),
	); err != nil {
		logger.ErrorContext(
			ctx,
			"error acknowledging interaction",
			tint.Err(err),
		)
		return
	}

	locale := DefaultLocale
	if user := getDiscordUser(i); user != nil {
		locale = b.userLocale(ctx, user.ID)
	}

	defer func() {
		if rc := recover(); rc != nil {
			logger.ErrorContext(
				ctx,
				"panic in command handler",
				"recovered", rc,
				"stack", string(debug.Stack()),
			)
			b.editError(ctx, i, b.localizer.Get(locale, "errors.generic"))
		}
	}()

	var err error
	switch data.Name {
	case DiscordSlashCommandGitHub:
		err = b.handleGitHubCommand(ctx, i, locale)
	case DiscordSlashCommandLoc:
		err = b.handleLocCommand(ctx, i, locale)
	case DiscordSlashCommandLines:
		err = b.handleLinesCommand(ctx, i, locale)
	case DiscordSlashCommandPyPI:
		err = b.handlePyPICommand(ctx, i, locale)
	case DiscordSlashCommandCrates:
		err = b.handleCratesCommand(ctx, i, locale)
	case DiscordSlashCommandConfig:
		err = b.handleConfigCommand(ctx, i, locale)
	default:
		err = fmt.Errorf("unknown command: %s", data.Name)
	}
	if err != nil {
		logger.ErrorContext(
			ctx,
			"command failed",
			"command", data.Name,
			tint.Err(err),
		)
		b.editError(ctx, i, b.commandErrorMessage(locale, err))
	}
}

// commandErrorMessage maps a handler error onto the user-facing reply.
func (b *GitBot) commandErrorMessage(locale string, err error) string {
	loc := b.localizer
	switch {
	case errors.Is(err, ErrUserNotFound):
		return loc.Get(locale, "errors.user_not_found")
	case errors.Is(err, ErrRepoNotFound):
		return loc.Get(locale, "errors.repo_not_found")
	case errors.Is(err, ErrPackageNotFound):
		return loc.Get(locale, "errors.package_not_found")
	case errors.Is(err, ErrCrateNotFound):
		return loc.Get(locale, "errors.crate_not_found")
	case errors.Is(err, ErrFileTooBig):
		return loc.Get(locale, "errors.file_too_big")
	case errors.Is(err, ErrInvalidName):
		return loc.Get(locale, "errors.invalid_name")
	case errors.Is(err, ErrUnsupportedURL):
		return loc.Get(locale, "errors.unsupported_url")
	case errors.Is(err, ErrSnippetUnavailable):
		return loc.Get(locale, "errors.snippet_unavailable")
	case errors.Is(err, ErrPreferenceNotSet):
		return loc.Get(locale, "errors.preference_not_set")
	case errors.Is(err, ErrFieldNotFound):
		return loc.Get(locale, "errors.field_not_found")
	default:
		return loc.Get(locale, "errors.generic")
	}
}

// editError replaces the deferred response with an error message.
func (b *GitBot) editError(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	content string,
) {
	logger, _ := ContextLogger(ctx)
	if content == "" {
		content = DefaultDiscordErrorMessage
	}
	_, err := b.discord.session.InteractionResponseEdit(
		i.Interaction,
		&discordgo.WebhookEdit{Content: &content},
	)
	if err != nil && logger != nil {
		logger.ErrorContext(ctx, "error editing response", tint.Err(err))
	}
}

// editContent replaces the deferred response with plain content.
func (b *GitBot) editContent(
	i *discordgo.InteractionCreate,
	content string,
) error {
	content = shortenString(content, discordMaxMessageLength)
	_, err := b.discord.session.InteractionResponseEdit(
		i.Interaction,
		&discordgo.WebhookEdit{Content: &content},
	)
	return err
}

// editEmbed replaces the deferred response with an embed, optionally
// attaching files.
func (b *GitBot) editEmbed(
	i *discordgo.InteractionCreate,
	embed *discordgo.MessageEmbed,
	files ...*discordgo.File,
) error {
	edit := &discordgo.WebhookEdit{
		Embeds: &[]*discordgo.MessageEmbed{embed},
	}
	if len(files) > 0 {
		edit.Files = files
	}
	_, err := b.discord.session.InteractionResponseEdit(i.Interaction, edit)
	return err
}

// handleMessageCreate watches chat messages for supported file-line
// links, replying with a paginated snippet when one is found.
func (b *GitBot) handleMessageCreate(
	ctx context.Context,
	m *discordgo.MessageCreate,
) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	ref, err := parseSnippetURL(m.Content)
	if err != nil {
		return
	}

	logger := b.logger.With(
		"channel_id", m.ChannelID,
		"message_id", m.ID,
	)
	opCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	text, err := fetchSnippetFile(opCtx, b.config.HTTPClient, ref)
	if err != nil {
		logger.WarnContext(ctx, "unable to fetch snippet", tint.Err(err))
		return
	}

	viewID, err := generateRandomHexString(16)
	if err != nil {
		logger.ErrorContext(ctx, "error generating view id", tint.Err(err))
		return
	}
	view := NewLinesView(viewID, ref)
	b.linesViews.Add(view)

	locale := b.userLocale(opCtx, m.Author.ID)
	msg := &discordgo.MessageSend{
		Content:    renderCodeBlock(ref, view.L1, view.L2, text),
		Components: view.Components(b.localizer, locale),
		Reference: &discordgo.MessageReference{
			MessageID: m.ID,
			ChannelID: m.ChannelID,
			GuildID:   m.GuildID,
		},
	}
	if _, err = b.discord.session.ChannelMessageSendComplex(
		m.ChannelID,
		msg,
	); err != nil {
		logger.ErrorContext(ctx, "error sending snippet", tint.Err(err))
	}
}

// handleMessageComponent routes button presses on paginated snippet
// messages.
func (b *GitBot) handleMessageComponent(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	logger, _ := ContextLogger(ctx)
	customID := i.MessageComponentData().CustomID

	action, viewID, ok := decodeLinesCustomID(customID)
	if !ok {
		logger.WarnContext(ctx, "unknown component", "custom_id", customID)
		return
	}

	locale := DefaultLocale
	if user := getDiscordUser(i); user != nil {
		locale = b.userLocale(ctx, user.ID)
	}

	view := b.linesViews.Get(viewID)
	if view == nil {
		if err := b.discord.session.InteractionRespond(
			i.Interaction,
			&discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseChannelMessageWithSource,
				Data: &discordgo.InteractionResponseData{
					Content: b.localizer.Get(locale, "views.lines.expired"),
					Flags:   discordgo.MessageFlagsEphemeral,
				},
			},
		); err != nil {
			logger.ErrorContext(
				ctx,
				"error replying to expired view",
				tint.Err(err),
			)
		}
		return
	}

	if err := b.handleLinesAction(ctx, i, view, action, locale); err != nil {
		logger.ErrorContext(
			ctx,
			"error handling lines action",
			"action", action,
			"view_id", viewID,
			tint.Err(err),
		)
	}
}

// handleLinesAction applies a button press to a snippet view and edits
// the message in place. The interaction is acknowledged up front, so a
// failed or empty re-fetch leaves the message untouched.
func (b *GitBot) handleLinesAction(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	view *LinesView,
	action string,
	locale string,
) error {
	if err := b.discord.session.InteractionRespond(
		i.Interaction,
		&discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredMessageUpdate,
		},
	); err != nil {
		return err
	}

	text, err := fetchSnippetFile(ctx, b.config.HTTPClient, view.Ref)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", view.Ref.RawURL(), err)
	}

	var l1, l2 int
	switch action {
	case linesActionForward:
		l1, l2 = view.forwardRange()
	case linesActionBackward:
		l1, l2 = view.backwardRange()
	case linesActionRevert:
		l1, l2 = view.OriginalL1, view.OriginalL2
	default:
		return fmt.Errorf("unknown lines action: %s", action)
	}

	// no text in the target range means the view stays put
	if sliceLines(text, l1, l2) == "" {
		return nil
	}

	var content string
	switch action {
	case linesActionRevert:
		view.Revert()
		content = renderCodeBlock(view.Ref, view.L1, view.L2, text)
	default:
		view.Step(action == linesActionForward)
		content = renderSnippet(view.Ref, view.L1, view.L2, text)
	}

	components := view.Components(b.localizer, locale)
	_, err = b.discord.session.InteractionResponseEdit(
		i.Interaction,
		&discordgo.WebhookEdit{
			Content:    &content,
			Components: &components,
		},
	)
	return err
}
