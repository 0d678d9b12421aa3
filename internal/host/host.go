// Package host defines the boundary between the bridge and the agent
// runtime consuming its inbound envelopes.
package host

import (
	"context"

	"maxbridge/pkg/chunk"
	"maxbridge/pkg/media"
	"maxbridge/pkg/pairing"
	"maxbridge/pkg/session"
)

// InboundContext is the normalized envelope handed to the host for every
// accepted platform message.
type InboundContext struct {
	// Channel is always "max".
	Channel string `json:"channel"`

	// Account is the bridge account id the update arrived on.
	Account string `json:"account"`

	// SessionKey is the stable conversation key derived by the router.
	SessionKey string `json:"session_key"`

	// AgentID is the agent resolved for this conversation.
	AgentID string `json:"agent_id,omitempty"`

	// MessageID is the platform message id; edits carry a derived id of the
	// form <original>_edited_<timestamp>. OriginalID is the same id without
	// any edit suffix.
	MessageID  string `json:"message_id"`
	OriginalID string `json:"original_id,omitempty"`

	// Text is the effective message text: body text plus attachment
	// descriptions, with sender/quote prefixes applied.
	Text string `json:"text"`

	// RawText is the body text before decoration.
	RawText string `json:"raw_text,omitempty"`

	// CommandBody is the raw text with the bot's own mention stripped,
	// suitable for command matching.
	CommandBody string `json:"command_body,omitempty"`

	// From and To address the sender and the bot, prefixed with the
	// channel tag.
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	// Provider names the platform; Surface is the conversation kind
	// (direct, group, channel).
	Provider string `json:"provider,omitempty"`
	Surface  string `json:"surface,omitempty"`

	ChatType  string `json:"chat_type"`
	ChatID    int64  `json:"chat_id,omitempty"`
	SenderID  int64  `json:"sender_id"`
	Sender    string `json:"sender,omitempty"`
	Username  string `json:"username,omitempty"`
	Timestamp int64  `json:"timestamp"`

	// LastSessionAt is the unix time of the previous activity on this
	// session, zero on first contact.
	LastSessionAt int64 `json:"last_session_at,omitempty"`

	// IsEdit marks envelopes produced from message_edited updates.
	IsEdit bool `json:"is_edit,omitempty"`

	// WasMentioned is set in group chats when the bot was addressed.
	WasMentioned bool `json:"was_mentioned,omitempty"`

	// MediaPaths are local paths of attachments saved for this message;
	// MediaPath and MediaType mirror the first entry for hosts that only
	// handle one.
	MediaPaths []string `json:"media_paths,omitempty"`
	MediaTypes []string `json:"media_types,omitempty"`
	MediaPath  string   `json:"media_path,omitempty"`
	MediaType  string   `json:"media_type,omitempty"`

	// ReplyToID is the platform id of the quoted message, when replying.
	ReplyToID string `json:"reply_to_id,omitempty"`
}

// OutboundPayload is one reply coming back from the host.
type OutboundPayload struct {
	Text string `json:"text"`

	// Media lists remote URLs or local paths to send alongside (or instead
	// of) text.
	Media []string `json:"media,omitempty"`

	// ReplyToID quotes a platform message; edit-derived ids are tolerated
	// and resolved back to their original.
	ReplyToID string `json:"reply_to_id,omitempty"`
}

// ReplyFunc delivers one outbound payload back into the originating
// conversation.
type ReplyFunc func(ctx context.Context, payload OutboundPayload) error

// Dispatcher hands inbound envelopes to the host runtime. Replies arrive
// through the ReplyFunc, possibly after the Dispatch call returns.
type Dispatcher interface {
	Dispatch(ctx context.Context, inbound *InboundContext, reply ReplyFunc) error
}

// Bundle aggregates the per-account collaborators the channel needs.
type Bundle struct {
	Dispatcher Dispatcher
	Router     RouteResolver
	Pairing    *pairing.Manager
	Sessions   *session.Store
	Fetcher    *media.Fetcher
	MediaStore *media.Store
	Chunker    *chunk.Chunker
}
