package gitbot

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDatabase(t testing.TB) *database {
	t.Helper()
	dbPath := filepath.Join(
		t.TempDir(),
		fmt.Sprintf("%s.sqlite3", t.Name()),
	)
	db, err := CreateDB(context.Background(), dbTypeSQLite, dbPath)
	require.NoError(t, err)
	t.Cleanup(
		func() {
			sqlDB, dbErr := db.DB()
			if dbErr == nil {
				_ = sqlDB.Close()
			}
		},
	)
	return NewDatabase(db, nil)
}

func TestSetAndGetPreference(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	require.NoError(
		t,
		db.SetPreference(ctx, "user-123", PrefFieldRepo, "octocat/hello"),
	)
	require.NoError(
		t,
		db.SetPreference(ctx, "user-123", PrefFieldLocale, "pl"),
	)

	value, err := db.GetPreference(ctx, "user-123", PrefFieldRepo)
	require.NoError(t, err)
	assert.Equal(t, "octocat/hello", value)

	value, err = db.GetPreference(ctx, "user-123", PrefFieldLocale)
	require.NoError(t, err)
	assert.Equal(t, "pl", value)

	// unset field on an existing record
	_, err = db.GetPreference(ctx, "user-123", PrefFieldOrg)
	assert.ErrorIs(t, err, ErrPreferenceNotSet)

	// user with no record at all
	_, err = db.GetPreference(ctx, "user-456", PrefFieldRepo)
	assert.ErrorIs(t, err, ErrPreferenceNotSet)
}

func TestSetPreferenceOverwrites(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	require.NoError(
		t,
		db.SetPreference(ctx, "user-123", PrefFieldUser, "octocat"),
	)
	require.NoError(
		t,
		db.SetPreference(ctx, "user-123", PrefFieldUser, "torvalds"),
	)

	value, err := db.GetPreference(ctx, "user-123", PrefFieldUser)
	require.NoError(t, err)
	assert.Equal(t, "torvalds", value)

	prefs, err := db.GetPreferences(ctx, "user-123")
	require.NoError(t, err)
	assert.Equal(t, "torvalds", prefs.User)
}

func TestSetPreferenceUnknownField(t *testing.T) {
	db := newTestDatabase(t)

	err := db.SetPreference(
		context.Background(),
		"user-123",
		"favorite_color",
		"blurple",
	)
	assert.ErrorIs(t, err, ErrUnknownPreferenceField)
}

func TestDeletePreference(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	require.NoError(
		t,
		db.SetPreference(ctx, "user-123", PrefFieldRepo, "octocat/hello"),
	)
	require.NoError(
		t,
		db.SetPreference(ctx, "user-123", PrefFieldOrg, "github"),
	)

	require.NoError(t, db.DeletePreference(ctx, "user-123", PrefFieldRepo))
	_, err := db.GetPreference(ctx, "user-123", PrefFieldRepo)
	assert.ErrorIs(t, err, ErrPreferenceNotSet)

	// other fields survive
	value, err := db.GetPreference(ctx, "user-123", PrefFieldOrg)
	require.NoError(t, err)
	assert.Equal(t, "github", value)

	// deleting an already-unset field
	err = db.DeletePreference(ctx, "user-123", PrefFieldRepo)
	assert.ErrorIs(t, err, ErrPreferenceNotSet)
}

func TestDeleteLastPreferenceRemovesRecord(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	require.NoError(
		t,
		db.SetPreference(ctx, "user-123", PrefFieldUser, "octocat"),
	)
	require.NoError(t, db.DeletePreference(ctx, "user-123", PrefFieldUser))

	_, err := db.GetPreferences(ctx, "user-123")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestDeletePreferenceNoRecord(t *testing.T) {
	db := newTestDatabase(t)

	err := db.DeletePreference(
		context.Background(),
		"user-456",
		PrefFieldUser,
	)
	assert.ErrorIs(t, err, ErrPreferenceNotSet)
}

func TestLogInteraction(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	db.LogInteraction(
		ctx, &InteractionLog{
			InteractionID: "interaction-1",
			Type:          "ApplicationCommand",
			UserID:        "user-123",
			Username:      "octocat",
			CommandName:   "github",
			Payload:       `{"name": "github"}`,
		},
	)

	var records []InteractionLog
	require.NoError(t, db.db.WithContext(ctx).Find(&records).Error)
	require.Len(t, records, 1)
	assert.Equal(t, "interaction-1", records[0].InteractionID)
	assert.Equal(t, "github", records[0].CommandName)
}
