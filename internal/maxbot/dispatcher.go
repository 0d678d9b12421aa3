package maxbot

import (
	"context"
	"fmt"

	"maxbridge/internal/maxapi"
)

// StartCommand is the synthetic text for bot_started updates, shaped like a
// typed command so the host's command handling picks it up.
const StartCommand = "/start"

// handleUpdate is the single dispatch entry shared by polling and webhook
// modes. Nothing may propagate past it; a bad update is logged and dropped.
func (c *Channel) handleUpdate(ctx context.Context, update maxapi.Update) {
	c.metrics.UpdatesReceived.WithLabelValues(c.account.ID, string(update.UpdateType)).Inc()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Str("kind", string(update.UpdateType)).
				Interface("panic", r).
				Msg("update handler panicked")
		}
	}()

	if err := c.dispatch(ctx, update); err != nil {
		c.logger.Error().Err(err).
			Str("kind", string(update.UpdateType)).
			Msg("failed to process update")
	}
}

func (c *Channel) dispatch(ctx context.Context, update maxapi.Update) error {
	switch update.UpdateType {
	case maxapi.UpdateMessageCreated:
		return c.onMessageCreated(ctx, update)
	case maxapi.UpdateMessageCallback:
		return c.onCallback(ctx, update)
	case maxapi.UpdateMessageEdited:
		return c.onMessageEdited(ctx, update)
	case maxapi.UpdateBotStarted:
		return c.onBotStarted(ctx, update)
	case maxapi.UpdateBotAdded:
		c.logger.Info().Int64("chat_id", update.ChatID).Msg("bot added to chat")
		return nil
	case maxapi.UpdateBotRemoved:
		c.logger.Info().Int64("chat_id", update.ChatID).Msg("bot removed from chat")
		return nil
	default:
		c.metrics.UpdatesDropped.WithLabelValues(c.account.ID, "unknown_kind").Inc()
		c.logger.Debug().Str("kind", string(update.UpdateType)).Msg("ignoring unhandled update kind")
		return nil
	}
}

func (c *Channel) onMessageCreated(ctx context.Context, update maxapi.Update) error {
	msg := update.Message
	if msg == nil {
		return fmt.Errorf("message_created update without message")
	}
	if c.isSelf(msg.Sender) {
		return nil
	}

	c.fireChatActions(msg.Recipient.ChatID)
	return c.normalize(ctx, msg, msg.Body.MID, false)
}

// onCallback turns an inline-keyboard press into a message whose text is
// the button payload. The callback id stands in as the message id. Empty
// payloads are dropped silently.
func (c *Channel) onCallback(ctx context.Context, update maxapi.Update) error {
	cb := update.Callback
	if cb == nil {
		return fmt.Errorf("message_callback update without callback")
	}
	if cb.Payload == "" {
		return nil
	}
	if update.Message == nil {
		return fmt.Errorf("message_callback update without source message")
	}

	synthesized := &maxapi.Message{
		Sender:    cb.User,
		Recipient: update.Message.Recipient,
		Timestamp: cb.Timestamp,
		Body: maxapi.MessageBody{
			MID:  cb.CallbackID,
			Text: cb.Payload,
		},
	}
	return c.normalize(ctx, synthesized, cb.CallbackID, false)
}

// onMessageEdited forwards edits under a derived id so the host's
// per-message dedup treats them as fresh input. When the edit payload lacks
// text, one best-effort canonical fetch tries to recover it.
func (c *Channel) onMessageEdited(ctx context.Context, update maxapi.Update) error {
	msg := update.Message
	if msg == nil {
		return fmt.Errorf("message_edited update without message")
	}
	if c.isSelf(msg.Sender) {
		return nil
	}

	originalID := msg.Body.MID
	derivedID := EditedMessageID(originalID, update.Timestamp)

	if msg.Body.Text == "" {
		if fetched, err := c.api.GetMessage(ctx, originalID); err != nil {
			c.logger.Warn().Err(err).Str("message_id", originalID).Msg("failed to fetch edited message")
		} else if fetched != nil {
			msg.Body.Text = fetched.Body.Text
			if len(fetched.Body.Attachments) > 0 {
				msg.Body.Attachments = fetched.Body.Attachments
			}
		}
	}

	c.fireChatActions(msg.Recipient.ChatID)
	return c.normalize(ctx, msg, derivedID, true)
}

// onBotStarted synthesizes a start command from the user who pressed Start.
func (c *Channel) onBotStarted(ctx context.Context, update maxapi.Update) error {
	if update.User == nil {
		return fmt.Errorf("bot_started update without user")
	}

	synthesized := &maxapi.Message{
		Sender: *update.User,
		Recipient: maxapi.Recipient{
			ChatID:   update.ChatID,
			ChatType: maxapi.ChatTypeDialog,
			UserID:   update.User.UserID,
		},
		Timestamp: update.Timestamp,
		Body: maxapi.MessageBody{
			MID:  fmt.Sprintf("start_%d_%d", update.User.UserID, update.Timestamp),
			Text: StartCommand,
		},
	}
	return c.normalize(ctx, synthesized, synthesized.Body.MID, false)
}

func (c *Channel) isSelf(sender maxapi.User) bool {
	return c.bot != nil && sender.UserID == c.bot.UserID
}

// fireChatActions issues mark_seen and typing_on without waiting; these
// carry no delivery guarantee relative to the main flow.
func (c *Channel) fireChatActions(chatID int64) {
	if chatID == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		for _, action := range []string{"mark_seen", "typing_on"} {
			if err := c.api.SendAction(ctx, chatID, action); err != nil {
				c.logger.Debug().Err(err).Str("action", action).Int64("chat_id", chatID).Msg("chat action failed")
			}
		}
	}()
}
