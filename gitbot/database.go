package gitbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	customIDFormat = "%s:%s:%s"
	dbTypeSQLite   = "sqlite"
	dbTypePostgres = "postgres"
)

var (
	sqliteMaxOpenConns    = 1
	sqliteMaxIdleConns    = 1
	sqliteMaxConnLifetime = 5 * time.Minute
	sqliteExecPragma      = []string{
		"pragma journal_mode=WAL;",
		"pragma synchronous = normal;",
		"pragma temp_store = memory;",
		"pragma foreign_keys = ON;",
	}
	dbOperationTimeout = 30 * time.Second
)

// Preference field names accepted by `/config`.
const (
	PrefFieldUser   = "user"
	PrefFieldRepo   = "repo"
	PrefFieldOrg    = "org"
	PrefFieldLocale = "locale"
)

// PreferenceFields lists the valid preference field names, in the order
// they're shown by `/config show`.
var PreferenceFields = []string{
	PrefFieldUser,
	PrefFieldRepo,
	PrefFieldOrg,
	PrefFieldLocale,
}

var (
	// ErrPreferenceNotSet indicates a preference field with no stored value.
	ErrPreferenceNotSet = errors.New("preference not set")

	// ErrUnknownPreferenceField indicates a field name outside
	// [PreferenceFields].
	ErrUnknownPreferenceField = errors.New("unknown preference field")
)

// ModelUnixTime is an embeddable model with Unix timestamps for
// creation, update, and deletion.
type ModelUnixTime struct {
	CreatedAt int64          `gorm:"autoCreateTime:milli" json:"created_at,omitempty"`
	UpdatedAt int64          `gorm:"autoUpdateTime:milli" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

type ModelUintID struct {
	ID uint `gorm:"primaryKey" json:"id"`
}

// UserPreferences stores a Discord user's saved defaults. Unset fields
// are empty strings, and a record is removed entirely once its last
// field is unset.
type UserPreferences struct {
	ModelUintID
	ModelUnixTime
	DiscordUserID string `gorm:"uniqueIndex" json:"discord_user_id"`
	User          string `json:"user,omitempty"`
	Repo          string `json:"repo,omitempty"`
	Org           string `json:"org,omitempty"`
	Locale        string `json:"locale,omitempty"`
}

func (u UserPreferences) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("id", uint64(u.ID)),
		slog.String("discord_user_id", u.DiscordUserID),
		slog.String("user", u.User),
		slog.String("repo", u.Repo),
		slog.String("org", u.Org),
		slog.String("locale", u.Locale),
	)
}

// Field returns the value stored for the named field.
func (u UserPreferences) Field(field string) (string, error) {
	switch field {
	case PrefFieldUser:
		return u.User, nil
	case PrefFieldRepo:
		return u.Repo, nil
	case PrefFieldOrg:
		return u.Org, nil
	case PrefFieldLocale:
		return u.Locale, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownPreferenceField, field)
	}
}

func (u *UserPreferences) setField(field string, value string) error {
	switch field {
	case PrefFieldUser:
		u.User = value
	case PrefFieldRepo:
		u.Repo = value
	case PrefFieldOrg:
		u.Org = value
	case PrefFieldLocale:
		u.Locale = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownPreferenceField, field)
	}
	return nil
}

// empty reports whether every preference field is unset.
func (u UserPreferences) empty() bool {
	return u.User == "" && u.Repo == "" && u.Org == "" && u.Locale == ""
}

// database wraps the GORM connection with per-write locking, since the
// SQLite backend runs with a single connection.
type database struct {
	db     *gorm.DB
	mu     sync.Mutex
	logger *slog.Logger
}

// NewDatabase initializes a database over an existing GORM connection.
func NewDatabase(db *gorm.DB, log *slog.Logger) *database {
	if log == nil {
		log = slog.Default().With(loggerNameKey, "database")
	}
	return &database{db: db, logger: log}
}

// GetPreferences loads the preference record for a Discord user.
// Returns [gorm.ErrRecordNotFound] if the user has no record.
func (d *database) GetPreferences(
	ctx context.Context,
	discordUserID string,
) (*UserPreferences, error) {
	var prefs UserPreferences
	err := d.db.WithContext(ctx).Where(
		"discord_user_id = ?", discordUserID,
	).First(&prefs).Error
	if err != nil {
		return nil, err
	}
	return &prefs, nil
}

// GetPreference returns the value of one preference field for a Discord
// user. Returns [ErrPreferenceNotSet] when the user has no record, or
// the field is empty.
func (d *database) GetPreference(
	ctx context.Context,
	discordUserID string,
	field string,
) (string, error) {
	prefs, err := d.GetPreferences(ctx, discordUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: %s", ErrPreferenceNotSet, field)
		}
		return "", err
	}
	value, err := prefs.Field(field)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", fmt.Errorf("%w: %s", ErrPreferenceNotSet, field)
	}
	return value, nil
}

// SetPreference stores a value for one preference field, creating the
// user's record if it doesn't exist yet. Values are validated by the
// caller before they reach this point.
func (d *database) SetPreference(
	ctx context.Context,
	discordUserID string,
	field string,
	value string,
) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	prefs, err := d.GetPreferences(ctx, discordUserID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		prefs = &UserPreferences{DiscordUserID: discordUserID}
	}
	if err = prefs.setField(field, value); err != nil {
		return err
	}
	if err = d.db.WithContext(ctx).Save(prefs).Error; err != nil {
		return err
	}
	d.logger.InfoContext(
		ctx,
		"set preference",
		"field", field,
		"preferences", prefs,
	)
	return nil
}

// DeletePreference unsets one preference field. When the last field is
// unset, the record is deleted entirely. Returns [ErrPreferenceNotSet]
// when there's nothing to delete.
func (d *database) DeletePreference(
	ctx context.Context,
	discordUserID string,
	field string,
) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	prefs, err := d.GetPreferences(ctx, discordUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrPreferenceNotSet, field)
		}
		return err
	}
	current, err := prefs.Field(field)
	if err != nil {
		return err
	}
	if current == "" {
		return fmt.Errorf("%w: %s", ErrPreferenceNotSet, field)
	}
	if err = prefs.setField(field, ""); err != nil {
		return err
	}
	if prefs.empty() {
		if err = d.db.WithContext(ctx).Unscoped().Delete(prefs).Error; err != nil {
			return err
		}
		d.logger.InfoContext(
			ctx,
			"deleted empty preference record",
			"discord_user_id", discordUserID,
		)
		return nil
	}
	return d.db.WithContext(ctx).Save(prefs).Error
}

// CreateDB initializes the database connection and runs migrations.
//
// Parameters:
//   - databaseType: The type of the database, must be 'sqlite' or 'postgres'.
//   - database: The database connection string, or SQLite file path.
func CreateDB(
	ctx context.Context,
	databaseType string,
	database string,
) (*gorm.DB, error) {
	handler := tint.NewHandler(
		os.Stdout,
		&tint.Options{
			Level:     slog.LevelWarn,
			AddSource: true,
		},
	)

	gormLogger := newGORMLogger(handler, 500*time.Millisecond)
	dbLogger := slog.New(handler)

	dbLogger.InfoContext(
		ctx,
		"Initializing database",
		"database_type", databaseType,
		"database", database,
	)
	db, err := getDB(databaseType, database, gormLogger)
	if err != nil {
		return db, err
	}

	if databaseType == dbTypeSQLite {
		sqlDB, sqlErr := db.DB()
		if sqlErr != nil {
			return db, sqlErr
		}
		sqlDB.SetMaxOpenConns(sqliteMaxOpenConns)
		sqlDB.SetMaxIdleConns(sqliteMaxIdleConns)
		sqlDB.SetConnMaxLifetime(sqliteMaxConnLifetime)
		for _, pragma := range sqliteExecPragma {
			if err = db.WithContext(ctx).Exec(pragma).Error; err != nil {
				return db, err
			}
		}
	}

	txn := db.WithContext(ctx).Begin()

	mg := txn.Migrator()
	err = mg.AutoMigrate(
		&UserPreferences{},
		&InteractionLog{},
	)
	if err != nil {
		return db, err
	}

	if commitErr := txn.Commit().Error; commitErr != nil {
		return db, commitErr
	}

	return db, nil
}

// getDB initializes a GORM database connection based on the specified
// database type.
func getDB(
	databaseType string,
	database string,
	gormLogger *gormStructuredLogger,
) (*gorm.DB, error) {
	switch databaseType {
	case dbTypeSQLite:
		parentDir := filepath.Dir(database)
		if parentDir != "" {
			if err := os.MkdirAll(parentDir, 0755); err != nil {
				if !errors.Is(err, os.ErrExist) {
					return nil, err
				}
			}
		}
		return gorm.Open(
			sqlite.Open(database),
			&gorm.Config{
				Logger: gormLogger,
				NowFunc: func() time.Time {
					return time.Now().UTC()
				},
			},
		)
	case dbTypePostgres:
		return gorm.Open(
			postgres.Open(database), &gorm.Config{
				Logger: gormLogger,
				NowFunc: func() time.Time {
					return time.Now().UTC()
				},
			},
		)
	default:
		return nil, fmt.Errorf(
			"unsupported database type: %s (must be %q or %q)",
			databaseType, dbTypeSQLite, dbTypePostgres,
		)
	}
}

// InteractionLog records incoming Discord interactions for audit and
// debugging.
type InteractionLog struct {
	ModelUintID
	ModelUnixTime
	InteractionID string `gorm:"index" json:"interaction_id"`
	Type          string `json:"type"`
	UserID        string `gorm:"index" json:"user_id"`
	Username      string `json:"username"`
	GuildID       string `json:"guild_id"`
	ChannelID     string `json:"channel_id"`
	CommandName   string `json:"command_name"`
	Payload       string `json:"payload"`
}

// LogInteraction persists an interaction record, logging rather than
// returning errors so command handling is never blocked by audit writes.
func (d *database) LogInteraction(ctx context.Context, rec *InteractionLog) {
	d.mu.Lock()
	defer d.mu.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()
	if err := d.db.WithContext(opCtx).Create(rec).Error; err != nil {
		d.logger.ErrorContext(
			ctx,
			"error saving interaction log",
			tint.Err(err),
		)
	}
}
