package gitbot

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// Slash command names registered with Discord.
const (
	DiscordSlashCommandGitHub = "github"
	DiscordSlashCommandLoc    = "loc"
	DiscordSlashCommandLines  = "lines"
	DiscordSlashCommandPyPI   = "pypi"
	DiscordSlashCommandCrates = "crates"
	DiscordSlashCommandConfig = "config"
)

// Discord manages the gateway session, command registration, and
// connection state.
type Discord struct {
	session                     DiscordSessionHandler
	config                      *DiscordConfig
	logger                      *slog.Logger
	metricConnects              atomic.Int64
	metricDisconnects           atomic.Int64
	connected                   atomic.Bool
	discordgoRemoveHandlerFuncs []func()
	bot                         *GitBot
}

func newDiscord(config *DiscordConfig) (*Discord, error) {
	if config == nil {
		return nil, fmt.Errorf("nil discord config")
	}
	return &Discord{
		config:                      config,
		discordgoRemoveHandlerFuncs: []func(){},
	}, nil
}

// newSession initializes a new Discord session for the Discord struct.
// It sets up the session with the appropriate logger, token, and
// configuration.
func (d *Discord) newSession() (DiscordSessionHandler, error) {
	session := DiscordSession{}
	disc, err := discordgo.New("Bot " + d.config.Token)
	if err != nil {
		return session, fmt.Errorf("error creating discord session: %w", err)
	}
	disc.SyncEvents = true
	disc.StateEnabled = true
	disc.Identify.Intents = d.config.GatewayIntents
	session.session = disc
	if d.config.httpClient != nil {
		disc.Client = d.config.httpClient
	}

	if err = session.SetLogLevel(d.config.DiscordGoLogLevel.Level()); err != nil {
		return session, err
	}
	discordgo.Logger = discordgoLoggerFunc(
		context.Background(),
		d.logger.With(loggerNameKey, "discordgo").Handler(),
	)

	return session, nil
}

// ackResponseFlag returns the message flags used when deferring a
// command. Preference management is always ephemeral.
func (*Discord) ackResponseFlag(command string) discordgo.MessageFlags {
	switch command {
	case DiscordSlashCommandConfig:
		return discordgo.MessageFlagsEphemeral
	default:
		return 0
	}
}

func (d *Discord) ackResponse(commandName string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: d.ackResponseFlag(commandName),
		},
	}
}

func (d *Discord) channelMessageSend(
	channelID string,
	content string,
	options ...discordgo.RequestOption,
) error {
	_, err := d.session.ChannelMessageSend(channelID, content, options...)
	return err
}

func (d *Discord) handlerReady() func(
	s *discordgo.Session,
	r *discordgo.Ready,
) {
	return func(s *discordgo.Session, _ *discordgo.Ready) {
		d.logger.Info(
			"Ready",
			"session_id", s.State.SessionID,
			"user_id", s.State.User.ID,
			"username", s.State.User.Username,
		)
	}
}

func (d *Discord) handlerConnect() func(
	s *discordgo.Session,
	r *discordgo.Connect,
) {
	return func(s *discordgo.Session, _ *discordgo.Connect) {
		d.metricConnects.Add(1)
		d.connected.Store(true)

		var sessionID string
		var userID string
		var username string
		if s != nil && s.State != nil {
			sessionID = s.State.SessionID
			if s.State.User != nil {
				userID = s.State.User.ID
				username = s.State.User.Username
			}
		}
		d.logger.Info(
			"Connected",
			"session_id", sessionID,
			slog.Group("user", "id", userID, "username", username),
		)
		if d.config.CustomStatus != "" {
			if statusErr := d.session.UpdateCustomStatus(
				d.config.CustomStatus,
			); statusErr != nil {
				d.logger.Error(
					"unable to set custom status",
					tint.Err(statusErr),
				)
			}
		}
		if d.config.NotificationChannelID != "" && d.config.StartupMessage != "" {
			if sendErr := d.channelMessageSend(
				d.config.NotificationChannelID,
				d.config.StartupMessage,
				discordgo.WithRetryOnRatelimit(false),
				discordgo.WithRestRetries(1),
			); sendErr != nil {
				d.logger.Error(
					"unable to send startup message",
					tint.Err(sendErr),
				)
			}
		}
	}
}

func (d *Discord) handlerDisconnect() func(
	s *discordgo.Session,
	r *discordgo.Disconnect,
) {
	return func(s *discordgo.Session, _ *discordgo.Disconnect) {
		d.connected.Store(false)
		d.metricDisconnects.Add(1)

		var sessionID string
		if s != nil && s.State != nil {
			sessionID = s.State.SessionID
		}
		d.logger.Info("disconnected", "session_id", sessionID)
	}
}

// registerCommands sends the bot's commands to the discord bulk
// overwrite endpoint.
func (d *Discord) registerCommands(
	options ...discordgo.RequestOption,
) ([]*discordgo.ApplicationCommand, error) {
	commands := []*discordgo.ApplicationCommand{
		d.appCommandGitHub(),
		d.appCommandLoc(),
		d.appCommandLines(),
		d.appCommandPyPI(),
		d.appCommandCrates(),
		d.appCommandConfig(),
	}

	created, err := d.session.ApplicationCommandBulkOverwrite(
		d.config.ApplicationID,
		d.config.GuildID,
		commands,
		options...,
	)
	if err != nil {
		d.logger.Error("error overwriting discord commands", tint.Err(err))
		return created, err
	}
	for _, c := range created {
		d.logger.Info("Created command", "command", c.Name)
	}
	return created, nil
}

func (*Discord) appCommandGitHub() *discordgo.ApplicationCommand {
	userOption := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "user",
		Description: "GitHub username (falls back to your saved user)",
	}
	return &discordgo.ApplicationCommand{
		Name:        DiscordSlashCommandGitHub,
		Description: "GitHub user, organization and repository lookups",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
				Name:        "user",
				Description: "GitHub user lookups",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "info",
						Description: "Show a user's profile",
						Options: []*discordgo.ApplicationCommandOption{
							userOption,
						},
					},
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "repos",
						Description: "List a user's public repositories",
						Options: []*discordgo.ApplicationCommandOption{
							userOption,
						},
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
				Name:        "repo",
				Description: "GitHub repository lookups",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "info",
						Description: "Show a repository's details",
						Options: []*discordgo.ApplicationCommandOption{
							{
								Type:        discordgo.ApplicationCommandOptionString,
								Name:        "repo",
								Description: "Repository as owner/name (falls back to your saved repo)",
							},
						},
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
				Name:        "org",
				Description: "GitHub organization lookups",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "info",
						Description: "Show an organization's profile",
						Options: []*discordgo.ApplicationCommandOption{
							{
								Type:        discordgo.ApplicationCommandOptionString,
								Name:        "org",
								Description: "Organization name (falls back to your saved org)",
							},
						},
					},
				},
			},
		},
	}
}

func (*Discord) appCommandLoc() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        DiscordSlashCommandLoc,
		Description: "Count lines of code in a GitHub repository",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "repo",
				Description: "Repository as owner/name (falls back to your saved repo)",
			},
			{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "nocache",
				Description: "Skip the cached result and re-count",
			},
		},
	}
}

func (*Discord) appCommandLines() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        DiscordSlashCommandLines,
		Description: "Show the lines referenced by a GitHub or GitLab link",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "url",
				Description: "File link with a #L line fragment",
				Required:    true,
			},
		},
	}
}

func (*Discord) appCommandPyPI() *discordgo.ApplicationCommand {
	packageOption := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "package",
		Description: "PyPI package name",
		Required:    true,
	}
	return &discordgo.ApplicationCommand{
		Name:        DiscordSlashCommandPyPI,
		Description: "PyPI package lookups",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "info",
				Description: "Show a package's details",
				Options: []*discordgo.ApplicationCommandOption{
					packageOption,
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "downloads",
				Description: "Show a package's download statistics",
				Options: []*discordgo.ApplicationCommandOption{
					packageOption,
				},
			},
		},
	}
}

func (*Discord) appCommandCrates() *discordgo.ApplicationCommand {
	crateOption := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "crate",
		Description: "crates.io crate name",
		Required:    true,
	}
	return &discordgo.ApplicationCommand{
		Name:        DiscordSlashCommandCrates,
		Description: "crates.io crate lookups",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "info",
				Description: "Show a crate's details",
				Options: []*discordgo.ApplicationCommandOption{
					crateOption,
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "downloads",
				Description: "Show a crate's download statistics",
				Options: []*discordgo.ApplicationCommandOption{
					crateOption,
				},
			},
		},
	}
}

func (*Discord) appCommandConfig() *discordgo.ApplicationCommand {
	fieldChoices := make(
		[]*discordgo.ApplicationCommandOptionChoice,
		0,
		len(PreferenceFields),
	)
	for _, field := range PreferenceFields {
		fieldChoices = append(
			fieldChoices,
			&discordgo.ApplicationCommandOptionChoice{
				Name:  field,
				Value: field,
			},
		)
	}
	return &discordgo.ApplicationCommand{
		Name:        DiscordSlashCommandConfig,
		Description: "Manage your saved preferences",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "set",
				Description: "Save a preference value",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "field",
						Description: "Preference to set",
						Required:    true,
						Choices:     fieldChoices,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "value",
						Description: "Value to save",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "delete",
				Description: "Delete a saved preference",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "field",
						Description: "Preference to delete",
						Required:    true,
						Choices:     fieldChoices,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "show",
				Description: "Show your saved preferences",
			},
		},
	}
}

// DiscordSessionHandler defines the subset of `discordgo.Session`
// methods used by the bot, to enable testing/mocking.
type DiscordSessionHandler interface {
	// Open creates a websocket connection to Discord
	Open() error

	// Close closes the websocket connection to Discord
	Close() error

	// ChannelMessageSend sends a message to a specified channel.
	ChannelMessageSend(
		channelID string,
		message string,
		opts ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	// ChannelMessageSendComplex sends a full message object, including
	// components and references, to a specified channel.
	ChannelMessageSendComplex(
		channelID string,
		data *discordgo.MessageSend,
		opts ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	// ApplicationCommandBulkOverwrite overwrites Discord application
	// commands in bulk.
	ApplicationCommandBulkOverwrite(
		appID string,
		guildID string,
		commands []*discordgo.ApplicationCommand,
		options ...discordgo.RequestOption,
	) ([]*discordgo.ApplicationCommand, error)

	// UpdateCustomStatus sets the bot's user status to the given string.
	UpdateCustomStatus(status string) error

	// AddHandler adds a discord gateway event handler
	AddHandler(handler any) func()

	// InteractionRespond sends an interaction response to Discord
	InteractionRespond(
		interaction *discordgo.Interaction,
		resp *discordgo.InteractionResponse,
		options ...discordgo.RequestOption,
	) error

	// InteractionResponseEdit modifies the given interaction
	InteractionResponseEdit(
		interaction *discordgo.Interaction,
		newresp *discordgo.WebhookEdit,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	// SetLogLevel modifies the session's log level
	SetLogLevel(lvl slog.Level) error
}

// DiscordSession implements DiscordSessionHandler, wrapping a
// [discordgo.Session].
type DiscordSession struct {
	session *discordgo.Session
}

func (d DiscordSession) Open() error {
	return d.session.Open()
}

func (d DiscordSession) Close() error {
	return d.session.Close()
}

func (d DiscordSession) ChannelMessageSend(
	channelID string,
	message string,
	opts ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return d.session.ChannelMessageSend(channelID, message, opts...)
}

func (d DiscordSession) ChannelMessageSendComplex(
	channelID string,
	data *discordgo.MessageSend,
	opts ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return d.session.ChannelMessageSendComplex(channelID, data, opts...)
}

func (d DiscordSession) ApplicationCommandBulkOverwrite(
	appID string,
	guildID string,
	commands []*discordgo.ApplicationCommand,
	options ...discordgo.RequestOption,
) ([]*discordgo.ApplicationCommand, error) {
	return d.session.ApplicationCommandBulkOverwrite(
		appID,
		guildID,
		commands,
		options...,
	)
}

func (d DiscordSession) UpdateCustomStatus(status string) error {
	return d.session.UpdateCustomStatus(status)
}

func (d DiscordSession) AddHandler(handler any) func() {
	return d.session.AddHandler(handler)
}

func (d DiscordSession) InteractionRespond(
	interaction *discordgo.Interaction,
	resp *discordgo.InteractionResponse,
	options ...discordgo.RequestOption,
) error {
	return d.session.InteractionRespond(interaction, resp, options...)
}

func (d DiscordSession) InteractionResponseEdit(
	interaction *discordgo.Interaction,
	newresp *discordgo.WebhookEdit,
	options ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return d.session.InteractionResponseEdit(interaction, newresp, options...)
}

// SetLogLevel maps a [slog.Level] onto the discordgo log levels.
func (d DiscordSession) SetLogLevel(lvl slog.Level) error {
	switch lvl {
	case slog.LevelDebug:
		d.session.LogLevel = discordgo.LogDebug
	case slog.LevelInfo:
		d.session.LogLevel = discordgo.LogInformational
	case slog.LevelWarn:
		d.session.LogLevel = discordgo.LogWarning
	case slog.LevelError:
		d.session.LogLevel = discordgo.LogError
	default:
		return fmt.Errorf("unknown log level: %s", lvl)
	}
	return nil
}
