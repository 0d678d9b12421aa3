package maxbot

import (
	"context"
	"errors"
	"strconv"
	"time"

	"maxbridge/internal/maxapi"
)

const (
	pollLimit   = 100
	pollTimeout = 30 // seconds, platform-side long-poll budget

	// pollBackoff is the fixed retry delay after a failed poll. The updates
	// endpoint already long-waits server-side, so there is nothing to gain
	// from exponential growth.
	pollBackoff = 3 * time.Second

	actionTimeout = 10 * time.Second
)

// RunPolling drives the long-poll receive loop until ctx is cancelled.
// Updates within one batch are dispatched strictly in order; a failing
// update is logged and never stalls the stream.
func (c *Channel) RunPolling(ctx context.Context) error {
	if err := c.ensureIdentity(ctx); err != nil {
		return err
	}

	c.logger.Info().Str("bot", c.bot.Username).Msg("starting long-poll loop")
	defer c.metrics.PollConnected.WithLabelValues(c.account.ID).Set(0)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		batch, err := c.api.GetUpdates(ctx, maxapi.UpdatesRequest{
			Limit:   pollLimit,
			Timeout: pollTimeout,
			Marker:  c.pollMarker,
			Types:   maxapi.SubscribedUpdateTypes,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.metrics.PollConnected.WithLabelValues(c.account.ID).Set(0)
			c.countAPIError(err)
			c.logger.Warn().Err(err).Msg("poll failed, backing off")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(pollBackoff):
			}
			continue
		}

		c.metrics.PollConnected.WithLabelValues(c.account.ID).Set(1)
		c.adoptMarker(batch.Marker)

		for _, update := range batch.Updates {
			c.handleUpdate(ctx, update)
		}
	}
}

// adoptMarker advances the resumption cursor. The marker is monotonic; a
// smaller value from the platform is ignored rather than replayed.
func (c *Channel) adoptMarker(marker *int64) {
	if marker == nil {
		return
	}
	if c.pollMarker != nil && *marker < *c.pollMarker {
		c.logger.Warn().
			Int64("current", *c.pollMarker).
			Int64("offered", *marker).
			Msg("ignoring regressing poll marker")
		return
	}
	value := *marker
	c.pollMarker = &value
}

func (c *Channel) countAPIError(err error) {
	var apiErr *maxapi.APIError
	if errors.As(err, &apiErr) {
		c.metrics.APIErrors.WithLabelValues(c.account.ID, strconv.Itoa(apiErr.StatusCode)).Inc()
		return
	}
	c.metrics.APIErrors.WithLabelValues(c.account.ID, "transport").Inc()
}
