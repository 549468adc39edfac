package gitbot

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextLineRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		l1         int
		l2         int
		forward    bool
		expectedL1 int
		expectedL2 int
	}{
		{
			name:       "forward from single line",
			l1:         10,
			l2:         0,
			forward:    true,
			expectedL1: 10,
			expectedL2: 35,
		},
		{
			name:       "forward from range",
			l1:         10,
			l2:         35,
			forward:    true,
			expectedL1: 36,
			expectedL2: 60,
		},
		{
			name:       "backward from range",
			l1:         40,
			l2:         65,
			forward:    false,
			expectedL1: 15,
			expectedL2: 39,
		},
		{
			name:       "backward clamps to floor",
			l1:         10,
			l2:         35,
			forward:    false,
			expectedL1: 1,
			expectedL2: 9,
		},
		{
			name:       "backward from single line at floor",
			l1:         1,
			l2:         0,
			forward:    false,
			expectedL1: 1,
			expectedL2: 1,
		},
		{
			name:       "backward from first page",
			l1:         1,
			l2:         25,
			forward:    false,
			expectedL1: 1,
			expectedL2: 1,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(
			tt.name, func(t *testing.T) {
				t.Parallel()
				l1, l2 := nextLineRange(tt.l1, tt.l2, tt.forward)
				assert.Equal(t, tt.expectedL1, l1)
				assert.Equal(t, tt.expectedL2, l2)
			},
		)
	}
}

func TestLinesViewStepAndRevert(t *testing.T) {
	t.Parallel()

	ref := &SnippetRef{
		Platform: PlatformGitHub,
		Repo:     "octocat/hello",
		Path:     "main/app.py",
		L1:       10,
		L2:       20,
	}
	view := NewLinesView("abc123", ref)
	require.False(t, view.RevertEnabled)
	require.Equal(t, 10, view.OriginalL1)
	require.Equal(t, 20, view.OriginalL2)

	view.Step(true)
	assert.Equal(t, 21, view.L1)
	assert.Equal(t, 45, view.L2)
	assert.True(t, view.RevertEnabled)

	view.Step(false)
	assert.Equal(t, 1, view.L1)
	assert.Equal(t, 20, view.L2)
	assert.True(t, view.RevertEnabled)

	view.Revert()
	assert.Equal(t, 10, view.L1)
	assert.Equal(t, 20, view.L2)
	assert.False(t, view.RevertEnabled)
	assert.Equal(t, 10, view.OriginalL1)
	assert.Equal(t, 20, view.OriginalL2)
}

func TestLinesViewButtonLabels(t *testing.T) {
	t.Parallel()

	loc, err := NewLocalizer()
	require.NoError(t, err)

	assert.Equal(
		t,
		"View lines 36 - 60",
		buttonLabel(loc, DefaultLocale, 36, 60),
	)

	// backward from the first page collapses onto line 1
	assert.Equal(t, "View line 1", buttonLabel(loc, DefaultLocale, 1, 1))
}

func TestLinesViewComponents(t *testing.T) {
	t.Parallel()

	loc, err := NewLocalizer()
	require.NoError(t, err)

	ref := &SnippetRef{
		Platform: PlatformGitHub,
		Repo:     "octocat/hello",
		Path:     "main/app.py",
		L1:       30,
		L2:       54,
	}
	view := NewLinesView("abc123", ref)
	components := view.Components(loc, DefaultLocale)
	require.Len(t, components, 1)

	row, ok := components[0].(discordgo.ActionsRow)
	require.True(t, ok)
	require.Len(t, row.Components, 3)

	backward, ok := row.Components[0].(discordgo.Button)
	require.True(t, ok)
	assert.Equal(t, "View lines 5 - 29", backward.Label)
	assert.Equal(t, "lines:backward:abc123", backward.CustomID)
	assert.False(t, backward.Disabled)

	forward, ok := row.Components[1].(discordgo.Button)
	require.True(t, ok)
	assert.Equal(t, "View lines 55 - 79", forward.Label)
	assert.Equal(t, "lines:forward:abc123", forward.CustomID)

	revert, ok := row.Components[2].(discordgo.Button)
	require.True(t, ok)
	assert.Equal(t, "lines:revert:abc123", revert.CustomID)
	assert.True(t, revert.Disabled)

	view.Step(true)
	components = view.Components(loc, DefaultLocale)
	row = components[0].(discordgo.ActionsRow)
	revert = row.Components[2].(discordgo.Button)
	assert.False(t, revert.Disabled)
}

func TestDecodeLinesCustomID(t *testing.T) {
	t.Parallel()

	action, viewID, ok := decodeLinesCustomID("lines:forward:abc123")
	require.True(t, ok)
	assert.Equal(t, linesActionForward, action)
	assert.Equal(t, "abc123", viewID)

	_, _, ok = decodeLinesCustomID("feedback:good:abc123")
	assert.False(t, ok)

	_, _, ok = decodeLinesCustomID("lines:forward")
	assert.False(t, ok)
}

func TestLinesViewRegistryExpiry(t *testing.T) {
	t.Parallel()

	registry := newLinesViewRegistry(50 * time.Millisecond)
	ref := &SnippetRef{
		Platform: PlatformGitHub,
		Repo:     "octocat/hello",
		Path:     "main/app.py",
		L1:       1,
	}
	view := NewLinesView("abc123", ref)
	registry.Add(view)
	require.NotNil(t, registry.Get("abc123"))
	require.Nil(t, registry.Get("unknown"))

	time.Sleep(75 * time.Millisecond)
	assert.Nil(t, registry.Get("abc123"))
	assert.Equal(t, 0, registry.Len())

	registry.Remove("abc123")
	assert.Equal(t, 0, registry.Len())
}
