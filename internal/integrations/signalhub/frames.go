package signalhub

import "encoding/json"

// Wire frames. The hub speaks newline-delimited JSON over the websocket:
// the client sends invoke frames and receives result frames with a matching
// id; the server pushes event frames with a named target and a payload.
const (
	frameInvoke = "invoke"
	frameResult = "result"
	frameEvent  = "event"
)

type frame struct {
	Type   string            `json:"type"`
	ID     uint64            `json:"id,omitempty"`
	Target string            `json:"target,omitempty"`
	Args   []json.RawMessage `json:"args,omitempty"`
	Error  string            `json:"error,omitempty"`

	Payload json.RawMessage `json:"payload,omitempty"`
}
