package maxbot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"maxbridge/internal/host"
	"maxbridge/internal/maxapi"
)

// editSuffixRe matches the marker appended to edit-derived message ids.
var editSuffixRe = regexp.MustCompile(`_edited_\d+$`)

// EditedMessageID derives a collision-free id for an edited message.
func EditedMessageID(originalID string, timestamp int64) string {
	return fmt.Sprintf("%s_edited_%d", originalID, timestamp)
}

// StripEditSuffix recovers the original message id from an edit-derived
// one. Plain ids pass through unchanged.
func StripEditSuffix(messageID string) string {
	return editSuffixRe.ReplaceAllString(messageID, "")
}

// deliver sends one outbound payload into the originating conversation.
// Text is chunked to the platform limit; each chunk and each media item
// fails independently.
func (c *Channel) deliver(ctx context.Context, target maxapi.Target, replyTo, sessionKey string, payload host.OutboundPayload) error {
	if payload.ReplyToID != "" {
		replyTo = StripEditSuffix(payload.ReplyToID)
	}

	var link *maxapi.NewMessageLink
	if replyTo != "" {
		link = &maxapi.NewMessageLink{Type: "reply", MID: replyTo}
	}

	var firstErr error
	if payload.Text != "" {
		chunks := []string{payload.Text}
		if c.host.Chunker != nil {
			chunks = c.host.Chunker.Split(payload.Text)
		}
		for _, chunk := range chunks {
			if _, err := c.api.SendMessage(ctx, target, maxapi.NewMessageBody{Text: chunk, Link: link}); err != nil {
				c.metrics.MessagesSent.WithLabelValues(c.account.ID, "error").Inc()
				c.logger.Error().Err(err).Msg("failed to send reply chunk")
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			c.metrics.MessagesSent.WithLabelValues(c.account.ID, "ok").Inc()
		}
	}

	for _, item := range payload.Media {
		if err := c.sendMedia(ctx, target, link, item); err != nil {
			c.metrics.MessagesSent.WithLabelValues(c.account.ID, "media_error").Inc()
			c.logger.Error().Err(err).Str("media", item).Msg("failed to send media item")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		c.metrics.MessagesSent.WithLabelValues(c.account.ID, "media_ok").Inc()
	}

	if c.host.Sessions != nil && sessionKey != "" {
		go func() {
			if err := c.host.Sessions.Touch(sessionKey, "", target.ChatID, target.UserID, "out"); err != nil {
				c.logger.Warn().Err(err).Str("session", sessionKey).Msg("failed to record outbound activity")
			}
		}()
	}
	return firstErr
}

// sendMedia uploads one media reference. Remote URLs are staged through a
// temp file that is removed on every exit path.
func (c *Channel) sendMedia(ctx context.Context, target maxapi.Target, link *maxapi.NewMessageLink, item string) error {
	localPath := item
	if isRemoteURL(item) {
		if c.host.Fetcher == nil {
			return fmt.Errorf("no media fetcher configured for remote url")
		}
		fetched, err := c.host.Fetcher.Fetch(ctx, item)
		if err != nil {
			return fmt.Errorf("failed to fetch outbound media: %w", err)
		}

		tmp, err := os.CreateTemp("", "maxbridge-media-*"+stagingExt(fetched.Filename))
		if err != nil {
			return fmt.Errorf("failed to stage outbound media: %w", err)
		}
		defer os.Remove(tmp.Name())

		if _, err := tmp.Write(fetched.Data); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write staged media: %w", err)
		}
		if err := tmp.Close(); err != nil {
			return fmt.Errorf("failed to finalize staged media: %w", err)
		}
		localPath = tmp.Name()
	}

	kind := uploadKind(localPath)
	uploadURL, err := c.api.GetUploadURL(ctx, kind)
	if err != nil {
		return fmt.Errorf("failed to get upload url: %w", err)
	}
	token, err := c.api.UploadMedia(ctx, uploadURL, localPath)
	if err != nil {
		return fmt.Errorf("failed to upload media: %w", err)
	}

	attachment := maxapi.Attachment{
		Type:    attachmentTypeFor(kind),
		Payload: maxapi.AttachmentPayload{Token: token},
	}
	if _, err := c.api.SendMessage(ctx, target, maxapi.NewMessageBody{
		Attachments: []maxapi.Attachment{attachment},
		Link:        link,
	}); err != nil {
		return fmt.Errorf("failed to send media message: %w", err)
	}
	return nil
}

func isRemoteURL(item string) bool {
	return strings.HasPrefix(item, "http://") || strings.HasPrefix(item, "https://")
}

func stagingExt(filename string) string {
	if filename == "" {
		return ""
	}
	return filepath.Ext(filename)
}

// uploadKind picks the platform upload slot from the file extension;
// anything unrecognized travels as a generic file.
func uploadKind(path string) maxapi.UploadType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return maxapi.UploadImage
	case ".mp4", ".mov", ".avi", ".mkv", ".webm":
		return maxapi.UploadVideo
	case ".mp3", ".ogg", ".wav", ".m4a", ".flac":
		return maxapi.UploadAudio
	default:
		return maxapi.UploadFile
	}
}

func attachmentTypeFor(kind maxapi.UploadType) maxapi.AttachmentType {
	switch kind {
	case maxapi.UploadImage:
		return maxapi.AttachmentImage
	case maxapi.UploadVideo:
		return maxapi.AttachmentVideo
	case maxapi.UploadAudio:
		return maxapi.AttachmentAudio
	default:
		return maxapi.AttachmentFile
	}
}
