package gitbot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDiscordSession records interaction responses and edits instead of
// talking to Discord.
type stubDiscordSession struct {
	responses []*discordgo.InteractionResponse
	edits     []*discordgo.WebhookEdit
}

func (s *stubDiscordSession) Open() error { return nil }

func (s *stubDiscordSession) Close() error { return nil }

func (s *stubDiscordSession) ChannelMessageSend(
	string,
	string,
	...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return nil, nil
}

func (s *stubDiscordSession) ChannelMessageSendComplex(
	string,
	*discordgo.MessageSend,
	...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return nil, nil
}

func (s *stubDiscordSession) ApplicationCommandBulkOverwrite(
	string,
	string,
	[]*discordgo.ApplicationCommand,
	...discordgo.RequestOption,
) ([]*discordgo.ApplicationCommand, error) {
	return nil, nil
}

func (s *stubDiscordSession) UpdateCustomStatus(string) error { return nil }

func (s *stubDiscordSession) AddHandler(any) func() { return func() {} }

func (s *stubDiscordSession) InteractionRespond(
	_ *discordgo.Interaction,
	resp *discordgo.InteractionResponse,
	_ ...discordgo.RequestOption,
) error {
	s.responses = append(s.responses, resp)
	return nil
}

func (s *stubDiscordSession) InteractionResponseEdit(
	_ *discordgo.Interaction,
	edit *discordgo.WebhookEdit,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	s.edits = append(s.edits, edit)
	return nil, nil
}

func (s *stubDiscordSession) SetLogLevel(slog.Level) error { return nil }

// newLinesTestBot builds a GitBot whose snippet fetches hit a server
// answering with status and fileBody, and whose Discord session is a
// recording stub.
func newLinesTestBot(
	t testing.TB,
	fileBody string,
	status int,
) (*GitBot, *stubDiscordSession) {
	t.Helper()

	srv := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, _ *http.Request) {
				if status != http.StatusOK {
					w.WriteHeader(status)
					return
				}
				_, _ = fmt.Fprint(w, fileBody)
			},
		),
	)
	t.Cleanup(srv.Close)

	localizer, err := NewLocalizer()
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.HTTPClient = &http.Client{
		Transport: rewriteHostTransport{target: srv.URL},
	}

	session := &stubDiscordSession{}
	bot := &GitBot{
		config:     cfg,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		localizer:  localizer,
		discord:    &Discord{config: cfg.Discord, session: session},
		linesViews: newLinesViewRegistry(DefaultLinesViewTimeout),
	}
	return bot, session
}

func numberedLines(n int) string {
	lines := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		lines = append(lines, fmt.Sprintf("line%d", i))
	}
	return strings.Join(lines, "\n")
}

func TestLinesActionForwardEditsMessage(t *testing.T) {
	t.Parallel()

	bot, session := newLinesTestBot(t, numberedLines(40), http.StatusOK)
	ref := &SnippetRef{
		Platform: PlatformGitHub,
		Repo:     "octocat/hello",
		Path:     "main/app.py",
		L1:       1,
		L2:       2,
	}
	view := NewLinesView("view1", ref)
	bot.linesViews.Add(view)

	i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}}
	err := bot.handleLinesAction(
		context.Background(),
		i,
		view,
		linesActionForward,
		DefaultLocale,
	)
	require.NoError(t, err)

	require.Len(t, session.responses, 1)
	assert.Equal(
		t,
		discordgo.InteractionResponseDeferredMessageUpdate,
		session.responses[0].Type,
	)

	require.Len(t, session.edits, 1)
	content := *session.edits[0].Content
	assert.Contains(t, content, "`#L3-L27`")
	assert.Contains(t, content, "line3")
	assert.Contains(t, content, "line27")
	assert.Equal(t, 3, view.L1)
	assert.Equal(t, 27, view.L2)
	assert.True(t, view.RevertEnabled)
}

func TestLinesActionPastEndLeavesMessage(t *testing.T) {
	t.Parallel()

	bot, session := newLinesTestBot(t, "line1\nline2", http.StatusOK)
	ref := &SnippetRef{
		Platform: PlatformGitHub,
		Repo:     "octocat/hello",
		Path:     "main/app.py",
		L1:       1,
		L2:       2,
	}
	view := NewLinesView("view1", ref)
	bot.linesViews.Add(view)

	i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}}
	err := bot.handleLinesAction(
		context.Background(),
		i,
		view,
		linesActionForward,
		DefaultLocale,
	)
	require.NoError(t, err)

	// the button press is acknowledged, but the message and view state
	// stay as they were
	require.Len(t, session.responses, 1)
	assert.Equal(
		t,
		discordgo.InteractionResponseDeferredMessageUpdate,
		session.responses[0].Type,
	)
	assert.Empty(t, session.edits)
	assert.Equal(t, 1, view.L1)
	assert.Equal(t, 2, view.L2)
	assert.False(t, view.RevertEnabled)
}

func TestLinesActionFetchFailureLeavesMessage(t *testing.T) {
	t.Parallel()

	bot, session := newLinesTestBot(t, "", http.StatusNotFound)
	ref := &SnippetRef{
		Platform: PlatformGitHub,
		Repo:     "octocat/hello",
		Path:     "main/app.py",
		L1:       1,
		L2:       2,
	}
	view := NewLinesView("view1", ref)
	bot.linesViews.Add(view)

	i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}}
	err := bot.handleLinesAction(
		context.Background(),
		i,
		view,
		linesActionForward,
		DefaultLocale,
	)
	require.ErrorIs(t, err, ErrSnippetUnavailable)

	require.Len(t, session.responses, 1)
	assert.Equal(
		t,
		discordgo.InteractionResponseDeferredMessageUpdate,
		session.responses[0].Type,
	)
	assert.Empty(t, session.edits)
	assert.Equal(t, 1, view.L1)
	assert.Equal(t, 2, view.L2)
}

func TestNewPropagatesHTTPClient(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GitHub.Tokens = []string{"tok-test"}
	cfg.Discord.Token = "bot-token"
	cfg.Discord.ApplicationID = "12345"
	cfg.HTTPClient = &http.Client{}

	bot, err := New(cfg)
	require.NoError(t, err)
	require.NotNil(t, bot)
	assert.Same(t, cfg.HTTPClient, cfg.GitHub.httpClient)
	assert.Same(t, cfg.HTTPClient, cfg.Discord.httpClient)
}
