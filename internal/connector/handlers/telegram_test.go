package handlers

import (
	"testing"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	cmd, args, ok := parseCommand("/task finish the draft")
	require.True(t, ok)
	require.Equal(t, "task", cmd)
	require.Equal(t, []string{"finish", "the", "draft"}, args)

	// Group chats attach the bot name to the command.
	cmd, args, ok = parseCommand("/timezone@tallybot Europe/Paris")
	require.True(t, ok)
	require.Equal(t, "timezone", cmd)
	require.Equal(t, []string{"Europe/Paris"}, args)

	cmd, args, ok = parseCommand("/start")
	require.True(t, ok)
	require.Equal(t, "start", cmd)
	require.Empty(t, args)

	for _, text := range []string{"", "hello", "✅ done", "/", "/@tallybot"} {
		_, _, ok := parseCommand(text)
		require.False(t, ok, "text %q", text)
	}
}

func TestAutomaticForwardOrigin(t *testing.T) {
	origin := &models.MessageOrigin{
		Type: models.MessageOriginTypeChannel,
		MessageOriginChannel: &models.MessageOriginChannel{
			MessageID: 50,
			Chat:      models.Chat{ID: -100},
		},
	}

	msg := &models.Message{
		ID:                 61,
		IsAutomaticForward: true,
		ForwardOrigin:      origin,
	}
	got := automaticForwardOrigin(msg)
	require.NotNil(t, got)
	require.Equal(t, 50, got.MessageID)

	// A manual forward of a channel post is not a mirror.
	manual := &models.Message{ID: 62, ForwardOrigin: origin}
	require.Nil(t, automaticForwardOrigin(manual))

	// An automatic forward needs a channel origin.
	userOrigin := &models.Message{
		ID:                 63,
		IsAutomaticForward: true,
		ForwardOrigin: &models.MessageOrigin{
			Type:              models.MessageOriginTypeUser,
			MessageOriginUser: &models.MessageOriginUser{SenderUser: models.User{ID: 9}},
		},
	}
	require.Nil(t, automaticForwardOrigin(userOrigin))

	require.Nil(t, automaticForwardOrigin(&models.Message{ID: 64}))
	require.Nil(t, automaticForwardOrigin(nil))
}
