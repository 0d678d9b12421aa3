package maxbot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"maxbridge/internal/host"
	"maxbridge/internal/maxapi"
	"maxbridge/pkg/media"
)

// attachmentResult is what attachment reduction produced for one message.
type attachmentResult struct {
	descriptions []string
	paths        []string
	types        []string
}

// normalize runs the policy gate and envelope construction for one inbound
// message and hands it to the host pipeline. messageID may be an
// edit-derived id; replies always go to the original.
func (c *Channel) normalize(ctx context.Context, msg *maxapi.Message, messageID string, isEdit bool) error {
	attachments := c.reduceAttachments(ctx, msg)

	rawText := strings.TrimSpace(msg.Body.Text)
	effective := rawText
	if effective == "" {
		effective = strings.Join(attachments.descriptions, "\n")
	}
	if effective == "" && len(attachments.paths) == 0 {
		c.metrics.UpdatesDropped.WithLabelValues(c.account.ID, "empty").Inc()
		c.logger.Debug().Str("message_id", messageID).Msg("dropping message with no content")
		return nil
	}

	chatType := msg.Recipient.ChatType
	chatID := msg.Recipient.ChatID
	sender := msg.Sender

	var mentioned bool
	if chatType.IsGroup() {
		mentioned = c.isMentioned(rawText, msg.Link)
		if !c.gateGroup(chatID, mentioned) {
			c.metrics.UpdatesDropped.WithLabelValues(c.account.ID, "group_policy").Inc()
			c.logger.Debug().Int64("chat_id", chatID).Msg("group message dropped by policy")
			return nil
		}
	} else {
		if !c.gateDM(ctx, sender) {
			c.metrics.UpdatesDropped.WithLabelValues(c.account.ID, "dm_policy").Inc()
			c.logger.Debug().Int64("sender", sender.UserID).Msg("direct message dropped by policy")
			return nil
		}
	}

	// agent-facing body carries raw text plus attachment descriptions
	bodyParts := make([]string, 0, 1+len(attachments.descriptions))
	if rawText != "" {
		bodyParts = append(bodyParts, rawText)
	}
	bodyParts = append(bodyParts, attachments.descriptions...)
	text := strings.Join(bodyParts, "\n")

	peer := host.Peer{Kind: host.PeerDirect, ID: sender.UserID}
	if chatType.IsGroup() {
		peer = host.Peer{Kind: host.PeerGroup, ID: chatID}
	}
	route := c.host.Router.Resolve(ChannelTag, c.account.ID, peer)
	sessionKey := route.SessionKey

	var replyToID string
	if msg.Link != nil && msg.Link.Type == "reply" && msg.Link.Message != nil {
		replyToID = msg.Link.Message.MID
	}

	// commands may address the bot explicitly; strip the mention so
	// "@bot /cmd" and "/cmd" look alike downstream
	commandBody := rawText
	if c.mentionRe != nil {
		commandBody = strings.TrimSpace(c.mentionRe.ReplaceAllString(rawText, "$1"))
	}

	var lastSessionAt int64
	if c.host.Sessions != nil {
		if prev := c.host.Sessions.Get(sessionKey); prev != nil {
			lastSessionAt = prev.LastActivity.Unix()
		}
	}

	var toAddr string
	if c.bot != nil {
		toAddr = fmt.Sprintf("%s:%d", ChannelTag, c.bot.UserID)
	}

	var firstPath, firstType string
	if len(attachments.paths) > 0 {
		firstPath = attachments.paths[0]
		firstType = attachments.types[0]
	}

	inbound := &host.InboundContext{
		Channel:       ChannelTag,
		Account:       c.account.ID,
		SessionKey:    sessionKey,
		AgentID:       route.AgentID,
		MessageID:     messageID,
		OriginalID:    StripEditSuffix(messageID),
		Text:          text,
		RawText:       rawText,
		CommandBody:   commandBody,
		From:          fmt.Sprintf("%s:%d", ChannelTag, sender.UserID),
		To:            toAddr,
		Provider:      ChannelTag,
		Surface:       chatTypeLabel(chatType),
		ChatType:      chatTypeLabel(chatType),
		ChatID:        chatID,
		SenderID:      sender.UserID,
		Sender:        fromLabel(chatType, sender, chatID),
		Username:      sender.Username,
		Timestamp:     msg.Timestamp,
		LastSessionAt: lastSessionAt,
		IsEdit:        isEdit,
		WasMentioned:  mentioned,
		MediaPaths:    attachments.paths,
		MediaTypes:    attachments.types,
		MediaPath:     firstPath,
		MediaType:     firstType,
		ReplyToID:     replyToID,
	}

	// session bookkeeping is best-effort and off the hot path
	if c.host.Sessions != nil {
		go func() {
			if err := c.host.Sessions.Touch(sessionKey, string(chatType), chatID, sender.UserID, "in"); err != nil {
				c.logger.Warn().Err(err).Str("session", sessionKey).Msg("failed to record session activity")
			}
		}()
	}

	target := replyTarget(chatID, sender.UserID)
	replyTo := StripEditSuffix(messageID)

	started := time.Now()
	err := c.host.Dispatcher.Dispatch(ctx, inbound, func(ctx context.Context, payload host.OutboundPayload) error {
		return c.deliver(ctx, target, replyTo, sessionKey, payload)
	})
	c.metrics.DispatchDuration.WithLabelValues(c.account.ID).Observe(time.Since(started).Seconds())
	if err != nil {
		return fmt.Errorf("host dispatch failed: %w", err)
	}
	return nil
}

// reduceAttachments classifies each attachment into a saved media file or a
// bracketed text description. One failing download never blocks the rest.
func (c *Channel) reduceAttachments(ctx context.Context, msg *maxapi.Message) attachmentResult {
	var result attachmentResult
	chatID := msg.Recipient.ChatID

	for _, att := range msg.Body.Attachments {
		if att.Type == maxapi.AttachmentSticker {
			c.stickers.Remember(chatID, att.Payload.Code)
			if att.Payload.Code != "" {
				result.descriptions = append(result.descriptions, fmt.Sprintf("[Sticker: code=%s]", att.Payload.Code))
			}
		}

		if att.Type.IsDownloadable() && att.Payload.URL != "" {
			path, mime, err := c.fetchAttachment(ctx, att.Payload.URL)
			if err == nil {
				result.paths = append(result.paths, path)
				result.types = append(result.types, mime)
				continue
			}
			c.logger.Warn().Err(err).Str("type", string(att.Type)).Msg("attachment download failed")
		}

		if desc := describeAttachment(att); desc != "" {
			result.descriptions = append(result.descriptions, desc)
		}
	}
	return result
}

func (c *Channel) fetchAttachment(ctx context.Context, url string) (string, string, error) {
	if c.host.Fetcher == nil || c.host.MediaStore == nil {
		return "", "", fmt.Errorf("media collaborators not configured")
	}
	fetched, err := c.host.Fetcher.Fetch(ctx, url)
	if err != nil {
		return "", "", err
	}
	path, err := c.host.MediaStore.Save(fetched, media.Inbound)
	if err != nil {
		return "", "", err
	}
	c.metrics.MediaSaved.WithLabelValues(c.account.ID, string(media.Inbound)).Inc()
	return path, fetched.MIME, nil
}

// describeAttachment renders a non-downloaded attachment as bracketed text.
// Stickers are described during reduction and inline keyboards are UI
// metadata, so both yield nothing here.
func describeAttachment(att maxapi.Attachment) string {
	switch att.Type {
	case maxapi.AttachmentSticker, maxapi.AttachmentInlineKeyboard:
		return ""
	case maxapi.AttachmentShare:
		if att.Payload.URL != "" {
			return fmt.Sprintf("[Share: %s]", att.Payload.URL)
		}
		return "[Share]"
	case maxapi.AttachmentLocation:
		return fmt.Sprintf("[Location: %.6f,%.6f]", att.Latitude, att.Longitude)
	case maxapi.AttachmentContact:
		if att.Payload.Name != "" {
			return fmt.Sprintf("[Contact: %s]", att.Payload.Name)
		}
		return "[Contact]"
	case maxapi.AttachmentImage, maxapi.AttachmentVideo, maxapi.AttachmentAudio, maxapi.AttachmentFile:
		if att.Filename != "" {
			return fmt.Sprintf("[%s: %s]", attachmentTag(att.Type), att.Filename)
		}
		return fmt.Sprintf("[%s]", attachmentTag(att.Type))
	default:
		return fmt.Sprintf("[%s]", string(att.Type))
	}
}

func attachmentTag(t maxapi.AttachmentType) string {
	switch t {
	case maxapi.AttachmentImage:
		return "Image"
	case maxapi.AttachmentVideo:
		return "Video"
	case maxapi.AttachmentAudio:
		return "Audio"
	default:
		return "File"
	}
}

// fromLabel is the human-readable sender label: the sender's name for DMs,
// a chat-derived label for groups.
func fromLabel(chatType maxapi.ChatType, sender maxapi.User, chatID int64) string {
	if chatType.IsGroup() {
		return fmt.Sprintf("group %d", chatID)
	}
	if sender.Name != "" {
		return sender.Name
	}
	if sender.Username != "" {
		return sender.Username
	}
	return fmt.Sprintf("user %d", sender.UserID)
}

// replyTarget picks where replies go: the chat when one is known, the
// sender's dialog otherwise.
func replyTarget(chatID, senderID int64) maxapi.Target {
	if chatID != 0 {
		return maxapi.Target{ChatID: chatID}
	}
	return maxapi.Target{UserID: senderID}
}
