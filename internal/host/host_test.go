package host

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionKeys(t *testing.T) {
	assert.Equal(t, "max:default:dm:100", SessionKeyDM("max", "default", 100))
	assert.Equal(t, "max:support:group:-55", SessionKeyGroup("max", "support", -55))
}

func TestStaticResolverDerivesDeterministicRoutes(t *testing.T) {
	r := StaticResolver{AgentID: "agent-1"}

	route := r.Resolve("max", "default", Peer{Kind: PeerDirect, ID: 100})
	assert.Equal(t, "agent-1", route.AgentID)
	assert.Equal(t, "max:default:dm:100", route.SessionKey)

	route = r.Resolve("max", "support", Peer{Kind: PeerGroup, ID: -55})
	assert.Equal(t, "max:support:group:-55", route.SessionKey)

	// the same triple always resolves to the same route
	again := r.Resolve("max", "support", Peer{Kind: PeerGroup, ID: -55})
	assert.Equal(t, route, again)
}

func TestHTTPDispatcherPostsEnvelope(t *testing.T) {
	var got dispatchRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"replies":[{"text":"pong"}]}`))
	}))
	defer server.Close()

	d := NewHTTPDispatcher(server.URL, "agent-1", zerolog.Nop())

	var replies []OutboundPayload
	err := d.Dispatch(context.Background(), &InboundContext{
		Channel:    "max",
		Account:    "default",
		SessionKey: SessionKeyDM("max", "default", 100),
		MessageID:  "m1",
		Text:       "ping",
		SenderID:   100,
	}, func(ctx context.Context, payload OutboundPayload) error {
		replies = append(replies, payload)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "agent-1", got.AgentID)
	assert.Equal(t, "ping", got.Inbound.Text)
	assert.Equal(t, "max", got.Inbound.Channel)
	require.Len(t, replies, 1)
	assert.Equal(t, "pong", replies[0].Text)
}

func TestHTTPDispatcherPrefersResolvedAgent(t *testing.T) {
	var got dispatchRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer server.Close()

	d := NewHTTPDispatcher(server.URL, "fallback-agent", zerolog.Nop())
	err := d.Dispatch(context.Background(), &InboundContext{AgentID: "routed-agent"}, func(ctx context.Context, payload OutboundPayload) error {
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "routed-agent", got.AgentID)
}

func TestHTTPDispatcherHostError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	d := NewHTTPDispatcher(server.URL, "agent-1", zerolog.Nop())
	err := d.Dispatch(context.Background(), &InboundContext{}, func(ctx context.Context, payload OutboundPayload) error {
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestHTTPDispatcherEmptyResponseMeansNoReplies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	d := NewHTTPDispatcher(server.URL, "agent-1", zerolog.Nop())
	called := false
	err := d.Dispatch(context.Background(), &InboundContext{}, func(ctx context.Context, payload OutboundPayload) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}
