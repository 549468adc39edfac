package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"syscall"

	"github.com/Sherav/gitbot/gitbot"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfg        = gitbot.DefaultConfig()
	configFile string
)

var rootCmd = &cobra.Command{
	Use: "gitbot [flags]",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		err := viper.Unmarshal(
			cfg,
			viper.DecodeHook(
				mapstructure.ComposeDecodeHookFunc(
					mapstructure.StringToTimeDurationHookFunc(),
					mapstructure.StringToSliceHookFunc(","),
					LevelToStringHookFunc(),
				),
			),
		)
		if err != nil {
			log.Fatalln(err)
		}
	},
}

func getLogLevel(level string) (slog.Level, error) {
	switch level {
	case slog.LevelDebug.String():
		return slog.LevelDebug, nil
	case slog.LevelInfo.String():
		return slog.LevelInfo, nil
	case slog.LevelWarn.String():
		return slog.LevelWarn, nil
	case slog.LevelError.String():
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}

func LevelToStringHookFunc() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data any,
	) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		if t.Kind() != reflect.Ptr {
			return data, nil
		}

		typ := t.Elem()

		if typ != reflect.TypeOf(slog.LevelVar{}) {
			return data, nil
		}
		lvl, err := getLogLevel(data.(string))
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %s", data)
		}
		lvlVar := &slog.LevelVar{}
		lvlVar.Set(lvl)
		return lvlVar, nil
	}
}

func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	rootCmd.SetContext(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(
		signals,
		os.Interrupt,
		syscall.SIGHUP,
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer func() {
		signal.Stop(signals)
		cancel()
	}()
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
			//
		}
	}()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func initConfig() {
	if configFile == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found")
		}
	} else {
		fmt.Println("loading env from file", configFile)
		if err := godotenv.Load(configFile); err != nil {
			log.Println("No .env file found")
		}
	}

	viper.SetDefault("database", gitbot.DefaultDatabase)
	viper.SetDefault("database_type", gitbot.DefaultDatabaseType)
	viper.SetDefault(
		"database_log_level",
		gitbot.DefaultDatabaseLogLevel.String(),
	)

	viper.SetDefault("log_level", gitbot.DefaultLogLevel.String())
	viper.SetDefault("startup_timeout", gitbot.DefaultStartupTimeout)
	viper.SetDefault("shutdown_timeout", gitbot.DefaultShutdownTimeout)

	// GitHub config
	viper.SetDefault("github.tokens", []string{})
	viper.SetDefault("github.log_level", gitbot.DefaultGitHubLogLevel.String())
	viper.SetDefault("github.object_cache_size", gitbot.DefaultObjectCacheSize)
	viper.SetDefault(
		"github.object_cache_max_age",
		gitbot.DefaultObjectCacheMaxAge,
	)
	viper.SetDefault(
		"github.repo_zip_size_threshold",
		gitbot.DefaultRepoZipSizeThreshold,
	)
	viper.SetDefault(
		"github.max_requests_per_second",
		gitbot.DefaultGitHubMaxRequestsPerSecond,
	)

	// Loc config
	viper.SetDefault("loc.cloc_command", gitbot.DefaultClocCommand)
	viper.SetDefault("loc.temp_dir", gitbot.DefaultTempDir)
	viper.SetDefault("loc.cache_size", gitbot.DefaultLocCacheSize)
	viper.SetDefault("loc.cache_max_age", gitbot.DefaultLocCacheMaxAge)

	// Discord config
	viper.SetDefault("discord.token", "")
	viper.SetDefault("discord.application_id", "")
	viper.SetDefault("discord.guild_id", "")
	viper.SetDefault("discord.notification_channel_id", "")
	viper.SetDefault(
		"discord.log_level",
		gitbot.DefaultDiscordLogLevel.String(),
	)
	viper.SetDefault(
		"discord.discordgo_log_level",
		gitbot.DefaultDiscordgoLogLevel.String(),
	)
	viper.SetDefault(
		"discord.gateway_intents",
		gitbot.DefaultDiscordGatewayIntent,
	)
	viper.SetDefault(
		"discord.startup_message",
		gitbot.DefaultDiscordStartupMessage,
	)
	viper.SetDefault(
		"discord.custom_status",
		gitbot.DefaultDiscordCustomStatus,
	)

	// API config
	viper.SetDefault("api.enabled", true)
	viper.SetDefault("api.listen", gitbot.DefaultAPIListen)
	viper.SetDefault("api.listen_network", "tcp")
	viper.SetDefault("api.log_level", gitbot.DefaultAPILogLevel.String())
	viper.SetDefault("api.read_timeout", gitbot.DefaultReadTimeout)
	viper.SetDefault(
		"api.read_header_timeout",
		gitbot.DefaultReadHeaderTimeout,
	)
	viper.SetDefault("api.write_timeout", gitbot.DefaultWriteTimeout)
	viper.SetDefault("api.idle_timeout", gitbot.DefaultIdleTimeout)

	// API: CORS config
	viper.SetDefault(
		"api.cors.allow_headers",
		gitbot.DefaultCORSAllowHeaders,
	)
	viper.SetDefault(
		"api.cors.allow_methods",
		gitbot.DefaultCORSAllowMethods,
	)
	viper.SetDefault(
		"api.cors.expose_headers",
		gitbot.DefaultCORSExposeHeaders,
	)
	viper.SetDefault("api.cors.allow_origins", []string{})
	viper.SetDefault("api.cors.max_age", gitbot.DefaultCORSMaxAge)
	viper.SetDefault(
		"api.cors.allow_credentials",
		gitbot.DefaultAPICORSAllowCredentials,
	)

	envPrefix := os.Getenv(gitbot.EnvvarSetEnvPrefix)
	if envPrefix == "" {
		envPrefix = gitbot.DefaultEnvPrefix
	}
	viper.SetEnvPrefix(envPrefix)

	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv()

	// Convert values to correct types
	viper.Set(
		"github.tokens",
		viper.GetStringSlice("github.tokens"),
	)
	viper.Set(
		"api.cors.allow_headers",
		viper.GetStringSlice("api.cors.allow_headers"),
	)
	viper.Set(
		"api.cors.allow_origins",
		viper.GetStringSlice("api.cors.allow_origins"),
	)
	viper.Set(
		"api.cors.allow_methods",
		viper.GetStringSlice("api.cors.allow_methods"),
	)
	viper.Set(
		"api.cors.expose_headers",
		viper.GetStringSlice("api.cors.expose_headers"),
	)

	setLevelVar := func(key string) {
		logLevelVar, err := levelStringToLevelVar(viper.GetString(key))
		if err != nil {
			log.Fatalf("error parsing %s: %v", key, err)
		}
		viper.Set(key, logLevelVar)
	}
	setLevelVar("log_level")
	setLevelVar("database_log_level")
	setLevelVar("github.log_level")
	setLevelVar("discord.log_level")
	setLevelVar("discord.discordgo_log_level")
	setLevelVar("api.log_level")
}

func levelStringToLevelVar(lvl string) (*slog.LevelVar, error) {
	level := &slog.LevelVar{}
	err := level.UnmarshalText([]byte(lvl))
	return level, err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&configFile,
		"config",
		"",
		"Config file to use",
	)
}
