package maxbot

import (
	"context"
	"fmt"
	"strconv"

	"maxbridge/internal/config"
	"maxbridge/internal/maxapi"
)

const (
	policyDisabled  = "disabled"
	policyOpen      = "open"
	policyPairing   = "pairing"
	policyAllowlist = "allowlist"
)

// gateDM decides whether a direct message passes the account's DM policy.
// Under the pairing policy, an unknown sender gets exactly one pairing-code
// reply; repeats before approval stay silent.
func (c *Channel) gateDM(ctx context.Context, sender maxapi.User) bool {
	senderID := strconv.FormatInt(sender.UserID, 10)

	switch c.account.DMPolicy {
	case policyDisabled:
		return false
	case policyOpen:
		return true
	}

	if containsID(c.account.AllowFrom, senderID) {
		return true
	}
	if c.host.Pairing != nil && c.host.Pairing.IsApproved(senderID) {
		return true
	}

	if c.account.DMPolicy == policyPairing && c.host.Pairing != nil {
		code, created, err := c.host.Pairing.EnsurePending(senderID, sender.Username, sender.Name)
		if err != nil {
			c.logger.Error().Err(err).Str("sender", senderID).Msg("failed to record pairing request")
			return false
		}
		if created {
			c.sendPairingReply(ctx, sender.UserID, senderID, code)
		}
	}
	return false
}

// sendPairingReply messages the sender their pairing code directly, outside
// the host pipeline.
func (c *Channel) sendPairingReply(ctx context.Context, userID int64, senderID, code string) {
	text := fmt.Sprintf(
		"Pairing required. Ask the operator to approve code %s for your id %s.",
		code, senderID,
	)
	if _, err := c.api.SendMessage(ctx, maxapi.Target{UserID: userID}, maxapi.NewMessageBody{Text: text}); err != nil {
		c.logger.Error().Err(err).Str("sender", senderID).Msg("failed to send pairing reply")
	}
}

// gateGroup decides whether a group message passes the account's group
// policy and mention requirement.
func (c *Channel) gateGroup(chatID int64, mentioned bool) bool {
	switch c.account.GroupPolicy {
	case policyDisabled:
		return false
	case policyOpen:
		// no membership check
	default:
		if groupEntry(c.account.Groups, chatID) == nil {
			return false
		}
	}

	if requireMention(c.account.Groups, chatID) && !mentioned {
		return false
	}
	return true
}

// groupEntry returns the group table entry for a chat, falling back to the
// wildcard entry. Nil means the chat is not listed.
func groupEntry(groups map[string]config.GroupConfig, chatID int64) *config.GroupConfig {
	if groups == nil {
		return nil
	}
	if entry, ok := groups[strconv.FormatInt(chatID, 10)]; ok {
		return &entry
	}
	if entry, ok := groups[config.Wildcard]; ok {
		return &entry
	}
	return nil
}

// requireMention resolves the per-group mention requirement; unset means
// required.
func requireMention(groups map[string]config.GroupConfig, chatID int64) bool {
	entry := groupEntry(groups, chatID)
	if entry == nil || entry.RequireMention == nil {
		return true
	}
	return *entry.RequireMention
}

func containsID(list []string, id string) bool {
	for _, entry := range list {
		if entry == id || entry == config.Wildcard {
			return true
		}
	}
	return false
}
