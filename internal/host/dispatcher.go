package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// HTTPDispatcher posts inbound envelopes to an agent runtime over HTTP and
// relays the replies it returns.
type HTTPDispatcher struct {
	endpoint   string
	agentID    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewHTTPDispatcher creates a dispatcher targeting the host endpoint.
func NewHTTPDispatcher(endpoint, agentID string, logger zerolog.Logger) *HTTPDispatcher {
	return &HTTPDispatcher{
		endpoint:   endpoint,
		agentID:    agentID,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		logger:     logger,
	}
}

// dispatchRequest is the wire form of one inbound hand-off.
type dispatchRequest struct {
	AgentID string          `json:"agent_id"`
	Inbound *InboundContext `json:"inbound"`
}

// dispatchResponse carries zero or more replies produced synchronously.
type dispatchResponse struct {
	Replies []OutboundPayload `json:"replies,omitempty"`
}

// Dispatch posts the envelope and forwards each returned reply through
// the ReplyFunc. Reply delivery failures are logged per reply so one bad
// payload does not drop the rest.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, inbound *InboundContext, reply ReplyFunc) error {
	agentID := inbound.AgentID
	if agentID == "" {
		agentID = d.agentID
	}
	body, err := json.Marshal(dispatchRequest{AgentID: agentID, Inbound: inbound})
	if err != nil {
		return fmt.Errorf("failed to encode inbound envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build host request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("host dispatch failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("failed to read host response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("host returned status %d", resp.StatusCode)
	}

	if len(data) == 0 {
		return nil
	}
	var parsed dispatchResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse host response: %w", err)
	}

	for _, payload := range parsed.Replies {
		if err := reply(ctx, payload); err != nil {
			d.logger.Error().Err(err).
				Str("session", inbound.SessionKey).
				Msg("failed to deliver host reply")
		}
	}
	return nil
}
