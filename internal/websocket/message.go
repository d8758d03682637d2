package websocket

import "encoding/json"

// Message is the envelope sent to stream clients. Type is the topic the
// payload was published on.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}
