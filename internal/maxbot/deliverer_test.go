package maxbot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maxbridge/internal/host"
	"maxbridge/internal/maxapi"
)

func TestDeliverChunksLongText(t *testing.T) {
	env := newTestEnv(t, nil)

	long := strings.Repeat("x", MessageLimit+100)
	err := env.channel.deliver(context.Background(), maxapi.Target{UserID: 1}, "m1", "", host.OutboundPayload{Text: long})
	require.NoError(t, err)

	sent := env.api.sentMessages()
	require.Len(t, sent, 2)
	for _, msg := range sent {
		assert.LessOrEqual(t, len([]rune(msg.Body.Text)), MessageLimit)
		require.NotNil(t, msg.Body.Link)
		assert.Equal(t, "reply", msg.Body.Link.Type)
		assert.Equal(t, "m1", msg.Body.Link.MID)
	}
}

func TestDeliverStripsEditSuffixFromPayloadReplyTarget(t *testing.T) {
	env := newTestEnv(t, nil)

	err := env.channel.deliver(context.Background(), maxapi.Target{UserID: 1}, "fallback", "", host.OutboundPayload{
		Text:      "reply",
		ReplyToID: "orig_edited_1700000000",
	})
	require.NoError(t, err)

	sent := env.api.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "orig", sent[0].Body.Link.MID)
}

func TestDeliverLocalMedia(t *testing.T) {
	env := newTestEnv(t, nil)

	path := filepath.Join(t.TempDir(), "photo.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0644))

	err := env.channel.deliver(context.Background(), maxapi.Target{ChatID: -55}, "", "", host.OutboundPayload{
		Media: []string{path},
	})
	require.NoError(t, err)

	require.Len(t, env.api.uploads, 1)
	assert.Equal(t, path, env.api.uploads[0])

	sent := env.api.sentMessages()
	require.Len(t, sent, 1)
	require.Len(t, sent[0].Body.Attachments, 1)
	assert.Equal(t, maxapi.AttachmentImage, sent[0].Body.Attachments[0].Type)
	assert.Equal(t, "upload-token", sent[0].Body.Attachments[0].Payload.Token)
}

func TestDeliverTextAndMediaTogether(t *testing.T) {
	env := newTestEnv(t, nil)

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("notes"), 0644))

	err := env.channel.deliver(context.Background(), maxapi.Target{UserID: 1}, "m1", "", host.OutboundPayload{
		Text:  "see attached",
		Media: []string{path},
	})
	require.NoError(t, err)
	assert.Len(t, env.api.sentMessages(), 2)
}

func TestUploadKindByExtension(t *testing.T) {
	assert.Equal(t, maxapi.UploadImage, uploadKind("a.JPG"))
	assert.Equal(t, maxapi.UploadVideo, uploadKind("clip.mp4"))
	assert.Equal(t, maxapi.UploadAudio, uploadKind("voice.ogg"))
	assert.Equal(t, maxapi.UploadFile, uploadKind("archive.zip"))
	assert.Equal(t, maxapi.UploadFile, uploadKind("noext"))
}

func TestIsRemoteURL(t *testing.T) {
	assert.True(t, isRemoteURL("https://cdn.example.com/a.png"))
	assert.True(t, isRemoteURL("http://cdn.example.com/a.png"))
	assert.False(t, isRemoteURL("/tmp/a.png"))
	assert.False(t, isRemoteURL("a.png"))
}
