package gitbot

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

const loggerContextKey contextKey = "logger"

type contextKey string

// truncate shortens s to at most limit runes.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// shortenString reduces the size of the input string to a specified limit,
// appending a truncation marker when content was dropped.
func shortenString(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	s = strings.ReplaceAll(s, "\n\n", "\n")
	if len(s) <= limit {
		return s
	}
	suffix := "\n**(output limit reached)**"
	suffixChars := []rune(suffix)
	if limit-len(suffixChars) <= 0 {
		return strings.TrimSpace(string([]rune(s)[:limit]))
	}
	return strings.TrimSpace(
		fmt.Sprintf(
			"%s%s",
			string([]rune(s)[:limit-len(suffixChars)]),
			suffix,
		),
	)
}

// overflowList returns at most max items, and the count of items beyond
// the cap (ex: 20 items with max 15 returns the first 15 and 5).
func overflowList[T any](items []T, max int) ([]T, int) {
	if len(items) <= max {
		return items, 0
	}
	return items[:max], len(items) - max
}

// pluralKey maps a count to the locale key suffix used for quantity
// phrasing: 0 -> "none", 1 -> "singular", >=2 -> "plural".
func pluralKey(count int) string {
	switch count {
	case 0:
		return "none"
	case 1:
		return "singular"
	default:
		return "plural"
	}
}

// discordTimestamp renders t as a discord timestamp markdown tag.
func discordTimestamp(t time.Time, style string) string {
	return fmt.Sprintf("<t:%d:%s>", t.Unix(), style)
}

// githubToDiscordTimestamp converts a GitHub API ISO8601 timestamp into
// discord timestamp markdown. Returns the input unchanged if it doesn't
// parse.
func githubToDiscordTimestamp(value string) string {
	return externalToDiscordTimestamp(value, time.RFC3339)
}

// externalToDiscordTimestamp converts a timestamp string in the given
// layout into discord timestamp markdown. Returns the input unchanged if
// it doesn't parse.
func externalToDiscordTimestamp(value string, layout string) string {
	t, err := time.Parse(layout, value)
	if err != nil {
		return value
	}
	return discordTimestamp(t, "D")
}

// discordInteractionOptions extracts the interaction options from a
// Discord interaction.
//
// This function takes a Discord interaction and returns a map of the
// interaction's options, where the keys are the option names and the
// values are the corresponding option data.
func discordInteractionOptions(
	i *discordgo.InteractionCreate,
) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	options := i.ApplicationCommandData().Options
	optionMap := make(
		map[string]*discordgo.ApplicationCommandInteractionDataOption,
		len(options),
	)
	for _, option := range options {
		optionMap[option.Name] = option
	}
	return optionMap
}

// subcommandOptions returns the option map of a subcommand (or
// subcommand-group member) interaction, along with the path of
// subcommand names leading to it (ex: "user", "info").
func subcommandOptions(
	i *discordgo.InteractionCreate,
) ([]string, map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	var path []string
	options := i.ApplicationCommandData().Options
	for len(options) == 1 && (options[0].Type == discordgo.ApplicationCommandOptionSubCommand ||
		options[0].Type == discordgo.ApplicationCommandOptionSubCommandGroup) {
		path = append(path, options[0].Name)
		options = options[0].Options
	}
	optionMap := make(
		map[string]*discordgo.ApplicationCommandInteractionDataOption,
		len(options),
	)
	for _, option := range options {
		optionMap[option.Name] = option
	}
	return path, optionMap
}

var discordGoLogLevels = map[int]slog.Level{
	discordgo.LogDebug:         slog.LevelDebug,
	discordgo.LogError:         slog.LevelError,
	discordgo.LogWarning:       slog.LevelWarn,
	discordgo.LogInformational: slog.LevelInfo,
}

// structToSlogValue converts a struct to a slog.Value, using the struct's
// JSON tag as the key for each field, if set.
// If the `log` tag is set, the value specified will override the
// field's actual value. Ex: `log:"REDACTED"` will cause "REDACTED" to
// be shown as the field's value.
func structToSlogValue(v any) slog.Value {
	typ := reflect.TypeOf(v)
	if typ == nil {
		return slog.AnyValue(nil)
	}
	val := reflect.ValueOf(v)

	if typ.Kind() == reflect.Ptr {
		if val.IsNil() {
			return slog.AnyValue(nil)
		}
		val = val.Elem()
		typ = typ.Elem()
	}

	if typ.Kind() != reflect.Struct {
		return slog.AnyValue(v)
	}

	var groupAttrs []slog.Attr

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		jsonTag, _, _ := strings.Cut(field.Tag.Get("json"), ",")

		if jsonTag == "" {
			jsonTag = field.Name
		}

		fv := val.Field(i)
		if !fv.CanInterface() {
			continue
		}

		logTag := field.Tag.Get("log")
		if logTag != "" {
			groupAttrs = append(
				groupAttrs,
				slog.Attr{Key: jsonTag, Value: slog.StringValue(logTag)},
			)
			continue
		}

		// skip struct values that are nil or empty
		skip := false
		switch fv.Kind() {
		case reflect.Ptr:
			if fv.IsNil() {
				skip = true
			}
		case reflect.Map, reflect.Slice:
			if fv.IsNil() || fv.Len() == 0 {
				skip = true
			}
		case reflect.String:
			if fv.String() == "" {
				skip = true
			}
		}

		if skip {
			continue
		}

		fieldValue := fv.Interface()
		groupAttrs = append(
			groupAttrs,
			slog.Attr{Key: jsonTag, Value: structToSlogValue(fieldValue)},
		)
	}
	return slog.GroupValue(groupAttrs...)
}

// WithLogger returns a new context with the given logger added.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	var ctxLogger *slog.Logger
	if logger == nil {
		ctxLogger = slog.Default()
	} else {
		ctxLogger = logger
	}
	return context.WithValue(ctx, loggerContextKey, ctxLogger)
}

// ContextLogger returns a logger from the given context if one
// is present, and a boolean indicating whether a logger was found.
func ContextLogger(ctx context.Context) (*slog.Logger, bool) {
	logger, ok := ctx.Value(loggerContextKey).(*slog.Logger)
	return logger, ok
}

func interactionLogAttrs(i discordgo.InteractionCreate) []any {
	logAttrs := []any{
		"id", i.ID,
		"type", i.Type.String(),
	}
	if i.ChannelID != "" {
		logAttrs = append(logAttrs, "channel_id", i.ChannelID)
	}
	if i.GuildID != "" {
		logAttrs = append(logAttrs, "guild_id", i.GuildID)
	}
	return logAttrs
}

// generateRandomHexString creates a random hexadecimal string of the
// specified length. If the provided length is odd, it's incremented by 1
// to ensure a valid byte slice length.
func generateRandomHexString(length int) (string, error) {
	if length%2 != 0 {
		length++
	}
	bytes := make([]byte, length/2)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// getDiscordUser returns the [discordgo.User] associated with the interaction.
// Users don't always appear in the same place in the interaction object, so
// this checks known areas.
func getDiscordUser(i *discordgo.InteractionCreate) *discordgo.User {
	u := i.User
	if u == nil && i.Member != nil {
		u = i.Member.User
	}
	return u
}
