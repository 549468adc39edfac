//nolint:lll // struct tags can't be split
package gitbot

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-contrib/cors"
)

const (
	// EnvvarSetEnvPrefix overrides the default environment variable
	// prefix used for configuration.
	EnvvarSetEnvPrefix = "GITBOT_ENV_PREFIX"
	DefaultEnvPrefix   = "GITBOT"

	DefaultDatabaseType = "sqlite"
	DefaultDatabase     = "gitbot.sqlite3"
	DefaultLogLevel     = slog.LevelInfo

	DefaultStartupTimeout  = 30 * time.Second
	DefaultShutdownTimeout = 60 * time.Second

	DefaultDatabaseSlowThreshold = 200 * time.Millisecond
	DefaultDatabaseLogLevel      = slog.LevelInfo
	DefaultDiscordLogLevel       = slog.LevelWarn
	DefaultDiscordgoLogLevel     = slog.LevelWarn
	DefaultAPILogLevel           = slog.LevelInfo
	DefaultGitHubLogLevel        = slog.LevelInfo

	DefaultDiscordGatewayIntent  = discordgo.IntentsAllWithoutPrivileged
	DefaultDiscordCustomStatus   = "/github with me!"
	DefaultDiscordStartupMessage = "I'm here!"
	DefaultDiscordErrorMessage   = "sorry, something went wrong!"

	DefaultAPIListen               = "127.0.0.1:5000"
	defaultListenNetwork           = "tcp"
	DefaultReadTimeout             = 5 * time.Second
	DefaultReadHeaderTimeout       = 5 * time.Second
	DefaultWriteTimeout            = 10 * time.Second
	DefaultIdleTimeout             = 30 * time.Second
	DefaultAPICORSAllowCredentials = false

	// DefaultObjectCacheSize and DefaultObjectCacheMaxAge bound the cache
	// sitting in front of GitHub API lookups.
	DefaultObjectCacheSize   = 64
	DefaultObjectCacheMaxAge = 450 * time.Second

	// DefaultLocCacheSize and DefaultLocCacheMaxAge bound the cache of
	// cloc reports, keyed by repository name.
	DefaultLocCacheSize   = 32
	DefaultLocCacheMaxAge = 30 * time.Minute

	// DefaultRepoZipSizeThreshold is the maximum accepted size of a
	// repository zipball snapshot, in bytes.
	DefaultRepoZipSizeThreshold = 25 * 1024 * 1024

	// DefaultGitHubMaxRequestsPerSecond limits outbound GitHub API calls.
	DefaultGitHubMaxRequestsPerSecond = 10

	DefaultClocCommand = "cloc"
	DefaultTempDir     = "./tmp"

	DefaultLinesViewTimeout = 180 * time.Second

	discordMaxMessageLength = 2000
)

var (
	DefaultCORSAllowMethods = []string{
		http.MethodGet,
		http.MethodOptions,
		http.MethodHead,
	}
	DefaultCORSAllowHeaders = []string{
		"Origin",
		"Content-Length",
		"Content-Type",
		"Accept",
		"Cache-Control",
		xRequestIDHeader,
	}
	DefaultCORSExposeHeaders = []string{
		"Content-Type",
		"Content-Length",
		xRequestIDHeader,
	}
	DefaultCORSMaxAge = 12 * time.Hour
)

// Config is the top-level configuration for the bot.
type Config struct {
	// Database connection string
	Database string `yaml:"database" mapstructure:"database" json:"database"`

	// DatabaseType specifies the type of database, either 'sqlite' or 'postgres'
	DatabaseType string `yaml:"database_type" mapstructure:"database_type" json:"database_type" binding:"oneof=sqlite postgres"`

	// DatabaseLogLevel sets the log level for database operations
	DatabaseLogLevel *slog.LevelVar `yaml:"database_log_level" mapstructure:"database_log_level" json:"database_log_level"`

	// DatabaseSlowThreshold is the duration threshold for identifying slow database queries
	DatabaseSlowThreshold time.Duration `yaml:"database_slow_threshold" mapstructure:"database_slow_threshold" json:"database_slow_threshold"`

	// GitHub configures GitHub API access
	GitHub *GitHubConfig `yaml:"github" mapstructure:"github" json:"github"`

	// Discord configures the discord bot itself
	Discord *DiscordConfig `yaml:"discord" mapstructure:"discord" json:"discord"`

	// API configures the status API server
	API *APIConfig `yaml:"api" mapstructure:"api" json:"api"`

	// Loc configures the lines-of-code command
	Loc *LocConfig `yaml:"loc" mapstructure:"loc" json:"loc"`

	// LogLevel is the base log level, for the default logger
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// StartupTimeout sets a limit on the amount of time the bot has to
	// initialize. If this is passed, the bot will abort startup.
	StartupTimeout time.Duration `yaml:"startup_timeout" mapstructure:"startup_timeout" json:"startup_timeout"`

	// ShutdownTimeout is the time to allow for a graceful shutdown. After this
	// elapses, the bot will force close all connections and exit.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" json:"shutdown_timeout"`

	HTTPClient *http.Client `log:"[redacted]"`
}

func (c Config) LogValue() slog.Value {
	return structToSlogValue(c)
}

// GitHubConfig configures GitHub API integration.
//
//nolint:lll // can't break tags
type GitHubConfig struct {
	// Personal access tokens. Requests rotate through these round-robin
	// to spread rate limit consumption.
	Tokens []string `yaml:"tokens" mapstructure:"tokens" json:"tokens" log:"[redacted]" binding:"required,min=1"`

	// Requester is sent in the User-Agent header of outbound requests
	Requester string `yaml:"requester" mapstructure:"requester" json:"requester"`

	// GitHub base log level
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// ObjectCacheSize caps the number of cached API objects
	ObjectCacheSize int `yaml:"object_cache_size" mapstructure:"object_cache_size" json:"object_cache_size" binding:"min=0"`

	// ObjectCacheMaxAge is the maximum age of a cached API object
	ObjectCacheMaxAge time.Duration `yaml:"object_cache_max_age" mapstructure:"object_cache_max_age" json:"object_cache_max_age" binding:"min=0"`

	// RepoZipSizeThreshold is the maximum size, in bytes, of a repository
	// zipball the bot will download
	RepoZipSizeThreshold int64 `yaml:"repo_zip_size_threshold" mapstructure:"repo_zip_size_threshold" json:"repo_zip_size_threshold" binding:"min=1"`

	// MaxRequestsPerSecond limits outbound API calls
	MaxRequestsPerSecond int `yaml:"max_requests_per_second" mapstructure:"max_requests_per_second" json:"max_requests_per_second" binding:"min=1"`

	httpClient *http.Client
}

// DiscordConfig configures the discord bot itself.
//
//nolint:lll // can't break tags
type DiscordConfig struct {
	// Discord bot token (from the 'Bot' tab in the discord dev portal)
	Token string `yaml:"token" mapstructure:"token" json:"token" log:"[redacted]" binding:"required"`

	// Discord application ID (from the 'General Information' tab in the discord dev portal)
	ApplicationID string `yaml:"application_id" mapstructure:"application_id" json:"application_id" binding:"required"`

	// GuildID specifies the guild ID used when registering slash commands.
	// Leave empty for commands to be registered as global.
	GuildID string `yaml:"guild_id" mapstructure:"guild_id" json:"guild_id"`

	// NotificationChannelID, if set, receives StartupMessage whenever the
	// bot connects to the discord gateway.
	NotificationChannelID string `yaml:"notification_channel_id" mapstructure:"notification_channel_id" json:"notification_channel_id"`

	// Base discord logging level
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// Log level for the `discordgo` library's logger
	DiscordGoLogLevel *slog.LevelVar `yaml:"discordgo_log_level" mapstructure:"discordgo_log_level" json:"discordgo_log_level"`

	// Message sent to NotificationChannelID on gateway connect
	StartupMessage string `yaml:"startup_message" mapstructure:"startup_message" json:"startup_message"`

	// CustomStatus is set as the bot's status on startup
	CustomStatus string `yaml:"custom_status" mapstructure:"custom_status" json:"custom_status"`

	// Discord gateway intents. See: https://discord.com/developers/docs/topics/gateway#gateway-intents
	GatewayIntents discordgo.Intent `yaml:"gateway_intents" mapstructure:"gateway_intents" json:"gateway_intents"`

	httpClient *http.Client
}

// APIConfig configures the read-only status API server.
//
//nolint:lll // can't break tags
type APIConfig struct {
	// Determines if the status server should be active.
	Enabled bool `yaml:"enabled" mapstructure:"enabled" json:"enabled"`

	// The address and port on which the server should listen (e.g., "127.0.0.1:5000").
	Listen string `yaml:"listen" mapstructure:"listen" json:"listen" binding:"required_if=Enabled true,hostname|filepath"`

	// The network type for listening (e.g., "tcp", "tcp4", "tcp6", "unix").
	ListenNetwork string `yaml:"listen_network" mapstructure:"listen_network" json:"listen_network" binding:"required_if=Enabled true,oneof=tcp tcp4 tcp6 unix"`

	// The logging level for the API server.
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// Cross-origin configuration
	CORS CORSConfig `yaml:"cors" mapstructure:"cors" json:"cors"`

	// Maximum duration for reading the entire request, including the body.
	ReadTimeout time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" json:"read_timeout" binding:"required_if=Enabled true,min=1s"`

	// Amount of time allowed to read request headers.
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" mapstructure:"read_header_timeout" json:"read_header_timeout"  binding:"required_if=Enabled true,min=1s"`

	// Maximum duration before timing out writes of the response.
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" json:"write_timeout"  binding:"required_if=Enabled true,min=1s"`

	// Maximum amount of time to wait for the next request when keep-alives are enabled.
	IdleTimeout time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" json:"idle_timeout"  binding:"required_if=Enabled true,min=1s"`
}

// LocConfig configures the lines-of-code command.
//
//nolint:lll // can't break tags
type LocConfig struct {
	// ClocCommand is the cloc executable to invoke. A 'perl cloc.pl'
	// style invocation works by setting this to 'perl' and ClocArgs
	// to ['cloc.pl'].
	ClocCommand string `yaml:"cloc_command" mapstructure:"cloc_command" json:"cloc_command" binding:"required"`

	// ClocArgs are arguments inserted before '--json <dir>'
	ClocArgs []string `yaml:"cloc_args" mapstructure:"cloc_args" json:"cloc_args"`

	// TempDir is the scratch directory for zipball downloads/extraction
	TempDir string `yaml:"temp_dir" mapstructure:"temp_dir" json:"temp_dir" binding:"required"`

	// CacheSize caps the number of cached cloc reports
	CacheSize int `yaml:"cache_size" mapstructure:"cache_size" json:"cache_size" binding:"min=0"`

	// CacheMaxAge is the maximum age of a cached cloc report
	CacheMaxAge time.Duration `yaml:"cache_max_age" mapstructure:"cache_max_age" json:"cache_max_age" binding:"min=0"`
}

// CORSConfig specifies cross-origin resource sharing settings
type CORSConfig struct {
	AllowOrigins     []string      `yaml:"allow_origins" mapstructure:"allow_origins" json:"allow_origins"`
	AllowMethods     []string      `yaml:"allow_methods" mapstructure:"allow_methods" json:"allow_methods"`
	AllowHeaders     []string      `yaml:"allow_headers" mapstructure:"allow_headers" json:"allow_headers"`
	ExposeHeaders    []string      `yaml:"expose_headers" mapstructure:"expose_headers" json:"expose_headers"`
	AllowCredentials bool          `yaml:"allow_credentials" mapstructure:"allow_credentials" json:"allow_credentials"`
	MaxAge           time.Duration `yaml:"max_age" mapstructure:"max_age" json:"max_age"`
}

func (c CORSConfig) GINConfig() cors.Config {
	return cors.Config{
		AllowOrigins:     c.AllowOrigins,
		AllowMethods:     c.AllowMethods,
		AllowHeaders:     c.AllowHeaders,
		MaxAge:           c.MaxAge,
		ExposeHeaders:    c.ExposeHeaders,
		AllowCredentials: c.AllowCredentials,
	}
}

func DefaultCORSConfig() CORSConfig {
	defaultMethods := make([]string, len(DefaultCORSAllowMethods))
	copy(defaultMethods, DefaultCORSAllowMethods)

	defaultHeaders := make([]string, len(DefaultCORSAllowHeaders))
	copy(defaultHeaders, DefaultCORSAllowHeaders)

	defaultExpose := make([]string, len(DefaultCORSExposeHeaders))
	copy(defaultExpose, DefaultCORSExposeHeaders)

	return CORSConfig{
		AllowOrigins:     []string{},
		AllowMethods:     defaultMethods,
		AllowHeaders:     defaultHeaders,
		ExposeHeaders:    defaultExpose,
		MaxAge:           DefaultCORSMaxAge,
		AllowCredentials: DefaultAPICORSAllowCredentials,
	}
}

// DefaultConfig returns a Config with all default settings populated
func DefaultConfig() *Config {
	mainLogLevel := &slog.LevelVar{}
	githubLogLevel := &slog.LevelVar{}
	discordLogLevel := &slog.LevelVar{}
	discordgoLogLevel := &slog.LevelVar{}
	dbLogLevel := &slog.LevelVar{}
	apiLogLevel := &slog.LevelVar{}

	mainLogLevel.Set(DefaultLogLevel)
	githubLogLevel.Set(DefaultGitHubLogLevel)
	discordLogLevel.Set(DefaultDiscordLogLevel)
	discordgoLogLevel.Set(DefaultDiscordgoLogLevel)
	dbLogLevel.Set(DefaultDatabaseLogLevel)
	apiLogLevel.Set(DefaultAPILogLevel)

	return &Config{
		DatabaseType:          DefaultDatabaseType,
		Database:              DefaultDatabase,
		DatabaseLogLevel:      dbLogLevel,
		DatabaseSlowThreshold: DefaultDatabaseSlowThreshold,
		LogLevel:              mainLogLevel,
		StartupTimeout:        DefaultStartupTimeout,
		ShutdownTimeout:       DefaultShutdownTimeout,
		GitHub: &GitHubConfig{
			LogLevel:             githubLogLevel,
			ObjectCacheSize:      DefaultObjectCacheSize,
			ObjectCacheMaxAge:    DefaultObjectCacheMaxAge,
			RepoZipSizeThreshold: DefaultRepoZipSizeThreshold,
			MaxRequestsPerSecond: DefaultGitHubMaxRequestsPerSecond,
		},
		Discord: &DiscordConfig{
			GatewayIntents:    DefaultDiscordGatewayIntent,
			LogLevel:          discordLogLevel,
			DiscordGoLogLevel: discordgoLogLevel,
			StartupMessage:    DefaultDiscordStartupMessage,
			CustomStatus:      DefaultDiscordCustomStatus,
		},
		API: &APIConfig{
			Listen:            DefaultAPIListen,
			ListenNetwork:     defaultListenNetwork,
			LogLevel:          apiLogLevel,
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
			ReadTimeout:       DefaultReadTimeout,
			WriteTimeout:      DefaultWriteTimeout,
			IdleTimeout:       DefaultIdleTimeout,
			CORS:              DefaultCORSConfig(),
		},
		Loc: &LocConfig{
			ClocCommand: DefaultClocCommand,
			TempDir:     DefaultTempDir,
			CacheSize:   DefaultLocCacheSize,
			CacheMaxAge: DefaultLocCacheMaxAge,
		},
	}
}
