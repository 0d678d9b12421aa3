package maxbot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"maxbridge/internal/maxapi"
	"maxbridge/pkg/webhooksink"
)

// WebhookOptions describes one account's webhook registration.
type WebhookOptions struct {
	// PublicURL is what the platform is told to deliver to.
	PublicURL string

	// Path is the local sink path; derived from PublicURL when empty.
	Path string

	// Secret is echoed by the platform in the secret header.
	Secret string
}

// RunWebhook registers the account on the shared sink, subscribes the
// public URL with the platform, and blocks until ctx is cancelled. Behavior
// downstream of "an update arrived" is identical to polling mode.
//
// Subscribe failure is fatal; unsubscribe failure at shutdown is logged
// only.
func (c *Channel) RunWebhook(ctx context.Context, sink *webhooksink.Server, opts WebhookOptions) error {
	if err := c.ensureIdentity(ctx); err != nil {
		return err
	}
	if opts.PublicURL == "" {
		return fmt.Errorf("webhook mode requires a public url")
	}

	path := opts.Path
	if path == "" {
		path = pathFromURL(opts.PublicURL)
	}
	path = webhooksink.NormalizePath(path)

	target := &webhooksink.Target{
		Account: c.account.ID,
		Secret:  opts.Secret,
		Handler: c.handleWebhookBody,
	}
	if err := sink.Register(path, target); err != nil {
		return err
	}

	if err := c.api.Subscribe(ctx, opts.PublicURL, opts.Secret, maxapi.SubscribedUpdateTypes); err != nil {
		sink.Unregister(path, c.account.ID)
		return fmt.Errorf("failed to subscribe webhook: %w", err)
	}
	c.logger.Info().Str("path", path).Str("url", opts.PublicURL).Msg("webhook registered")

	<-ctx.Done()

	unsubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.api.Unsubscribe(unsubCtx, opts.PublicURL); err != nil {
		c.logger.Warn().Err(err).Msg("failed to unsubscribe webhook")
	}
	sink.Unregister(path, c.account.ID)
	return nil
}

// handleWebhookBody parses one verified delivery and feeds the shared
// dispatch path.
func (c *Channel) handleWebhookBody(ctx context.Context, body []byte) error {
	var update maxapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return fmt.Errorf("failed to parse webhook update: %w", err)
	}
	c.metrics.WebhookDelivered.WithLabelValues(c.account.ID).Inc()
	c.handleUpdate(ctx, update)
	return nil
}

// pathFromURL extracts the path component of a public webhook URL.
func pathFromURL(publicURL string) string {
	rest := publicURL
	if idx := strings.Index(rest, "://"); idx >= 0 {
		rest = rest[idx+3:]
	}
	if idx := strings.Index(rest, "/"); idx >= 0 {
		return rest[idx:]
	}
	return "/"
}
