package host

import "fmt"

// Peer kinds used for route resolution.
const (
	PeerDirect = "direct"
	PeerGroup  = "group"
)

// Peer describes the remote end of a conversation.
type Peer struct {
	Kind string
	ID   int64
}

// Route is the resolved agent destination for one conversation.
type Route struct {
	AgentID    string
	SessionKey string
}

// RouteResolver maps a channel, account and peer onto an agent route.
// Implementations may shard peers across agents; the bridge only requires
// that the same triple always resolves to the same route.
type RouteResolver interface {
	Resolve(channel, account string, peer Peer) Route
}

// StaticResolver routes every conversation to a single agent under
// deterministic session keys.
type StaticResolver struct {
	AgentID string
}

func (r StaticResolver) Resolve(channel, account string, peer Peer) Route {
	key := SessionKeyDM(channel, account, peer.ID)
	if peer.Kind == PeerGroup {
		key = SessionKeyGroup(channel, account, peer.ID)
	}
	return Route{AgentID: r.AgentID, SessionKey: key}
}

// SessionKeyDM derives the stable session key for a direct conversation.
func SessionKeyDM(channel, account string, userID int64) string {
	return fmt.Sprintf("%s:%s:dm:%d", channel, account, userID)
}

// SessionKeyGroup derives the stable session key for a group chat.
func SessionKeyGroup(channel, account string, chatID int64) string {
	return fmt.Sprintf("%s:%s:group:%d", channel, account, chatID)
}
