// Package maxbot bridges the Max messenger Bot API to the host agent
// runtime: it receives updates, normalizes them into inbound envelopes,
// applies access policy, and delivers replies.
package maxbot

import (
	"context"
	"fmt"
	"regexp"

	"github.com/rs/zerolog"

	"maxbridge/internal/config"
	"maxbridge/internal/host"
	"maxbridge/internal/maxapi"
	"maxbridge/internal/metrics"
)

const (
	// MessageLimit is the platform's maximum message length in characters.
	MessageLimit = 4000

	// ChannelTag identifies this channel in session keys and envelopes.
	ChannelTag = "max"
)

// API is the slice of the vendor client the channel uses. Tests substitute
// a fake.
type API interface {
	Me(ctx context.Context) (*maxapi.BotInfo, error)
	SendMessage(ctx context.Context, to maxapi.Target, body maxapi.NewMessageBody) (*maxapi.Message, error)
	GetMessage(ctx context.Context, messageID string) (*maxapi.Message, error)
	SendAction(ctx context.Context, chatID int64, action string) error
	GetUpdates(ctx context.Context, req maxapi.UpdatesRequest) (*maxapi.UpdateBatch, error)
	Subscribe(ctx context.Context, publicURL, secret string, updateTypes []string) error
	Unsubscribe(ctx context.Context, publicURL string) error
	GetUploadURL(ctx context.Context, kind maxapi.UploadType) (string, error)
	UploadMedia(ctx context.Context, uploadURL, filePath string) (string, error)
}

// Options configures a Channel.
type Options struct {
	Account *config.ResolvedAccount
	API     API
	Host    *host.Bundle
	Logger  zerolog.Logger
	Metrics *metrics.Metrics

	// Stickers may be shared across channels; a fresh cache is created
	// when nil.
	Stickers *StickerCache

	// BotInfo skips the startup identity fetch when already known.
	BotInfo *maxapi.BotInfo
}

// Channel is one account's bridge instance.
type Channel struct {
	account *config.ResolvedAccount
	api     API
	host    *host.Bundle
	logger  zerolog.Logger
	metrics *metrics.Metrics

	stickers *StickerCache

	bot        *maxapi.BotInfo
	mentionRe  *regexp.Regexp
	pollMarker *int64
}

// NewChannel creates a Channel for one resolved account.
func NewChannel(opts Options) (*Channel, error) {
	if opts.Account == nil {
		return nil, fmt.Errorf("account is required")
	}
	if !opts.Account.Configured() {
		return nil, fmt.Errorf("account %s has no bot token", opts.Account.ID)
	}
	if opts.API == nil {
		return nil, fmt.Errorf("api client is required")
	}
	if opts.Host == nil || opts.Host.Dispatcher == nil {
		return nil, fmt.Errorf("host bundle with dispatcher is required")
	}
	if opts.Host.Router == nil {
		opts.Host.Router = host.StaticResolver{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Stickers == nil {
		opts.Stickers = NewStickerCache()
	}

	c := &Channel{
		account:  opts.Account,
		api:      opts.API,
		host:     opts.Host,
		logger:   opts.Logger.With().Str("channel", ChannelTag).Str("account", opts.Account.ID).Logger(),
		metrics:  opts.Metrics,
		stickers: opts.Stickers,
	}
	if opts.BotInfo != nil {
		c.setBotInfo(opts.BotInfo)
	}
	return c, nil
}

// ensureIdentity fetches the bot's own identity once; the dispatcher needs
// it for self-message skips and mention matching.
func (c *Channel) ensureIdentity(ctx context.Context) error {
	if c.bot != nil {
		return nil
	}
	info, err := c.api.Me(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch bot identity: %w", err)
	}
	c.setBotInfo(info)
	return nil
}

func (c *Channel) setBotInfo(info *maxapi.BotInfo) {
	c.bot = info
	if info.Username != "" {
		c.mentionRe = compileMentionPattern(info.Username)
	}
}

// chatTypeLabel maps platform chat types onto the host's taxonomy.
func chatTypeLabel(t maxapi.ChatType) string {
	switch t {
	case maxapi.ChatTypeDialog:
		return "direct"
	case maxapi.ChatTypeChannel:
		return "channel"
	default:
		return "group"
	}
}
