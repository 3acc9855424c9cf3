// Package cluster is the Cluster Coordinator: peer discovery against the
// registry store, an eventually-consistent instance-ownership map, and two
// TCP channels (broadcast pub/sub, direct request/response) between peers.
package cluster

import (
	"encoding/json"
	"time"
)

// Kind discriminates the three envelope shapes carried on both channels.
type Kind string

const (
	KindBroadcast Kind = "broadcast"
	KindDirect    Kind = "direct"
	KindResponse  Kind = "response"
)

// Envelope is the wire message for both the broadcast and direct channels.
type Envelope struct {
	ID         string          `json:"id"`
	SenderID   string          `json:"senderId"`
	TargetID   string          `json:"targetId,omitempty"`
	Type       Kind            `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  time.Time       `json:"timestamp"`
	ResponseID string          `json:"responseId,omitempty"`
}

// ManageInstance announces the sender now owns instanceKey. Receivers set
// their local ownership map entry to the sender's peer id.
type ManageInstance struct {
	InstanceKey string `json:"instanceKey"`
}

// ReleaseInstance announces the sender no longer owns instanceKey.
// Receivers delete their local ownership map entry.
type ReleaseInstance struct {
	InstanceKey string `json:"instanceKey"`
}

// BroadcastMessageType names the payload kinds carried inside a broadcast
// Envelope's Payload field.
const (
	PayloadManageInstance  = "manageInstance"
	PayloadReleaseInstance = "releaseInstance"
)

// TypedPayload wraps a ManageInstance/ReleaseInstance payload with a
// discriminant so the receive loop can dispatch without guessing.
type TypedPayload struct {
	Kind string          `json:"kind"`
	Body json.RawMessage `json:"body"`
}
