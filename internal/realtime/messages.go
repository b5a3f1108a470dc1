package realtime

import "github.com/goccy/go-json"

const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePing        = "ping"
	TypeSnapshot    = "snapshot"
	TypeError       = "error"
	TypePong        = "pong"
)

// Inbound is a client frame.
type Inbound struct {
	Type   string          `json:"type"`
	ID     string          `json:"id,omitempty"`
	Stream string          `json:"stream,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Outbound is a server frame. Data carries the full result set of a
// snapshot and replaces whatever the client holds for ID.
type Outbound struct {
	Type  string      `json:"type"`
	ID    string      `json:"id,omitempty"`
	Seq   uint64      `json:"seq,omitempty"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
	Code  string      `json:"code,omitempty"`
}

// Params are the stream filters a subscribe frame may carry.
type Params struct {
	Limit  int    `json:"limit,omitempty"`
	UserID string `json:"userId,omitempty"`
	PeerID string `json:"peerId,omitempty"`
}
