// Package bus is the local publish/subscribe channel that connects the
// replicas of one application instance-family. Delivery is fire and
// forget: at most once per publish, no ordering guarantee beyond
// publish order, and a replica never sees its own publications.
package bus

import "encoding/json"

const (
	// TypeDataUpdate carries a full snapshot for cross-replica state
	// propagation.
	TypeDataUpdate = "data-update"

	// TypeKeyUpdate carries a point update for a single key. Reserved:
	// published but not consumed by any current subscriber.
	TypeKeyUpdate = "update"
)

// Envelope is the wire record exchanged on the bus. Origin tags the
// publishing replica so subscribers can drop their own echoes when the
// transport does not filter them already.
type Envelope struct {
	Type   string          `json:"type"`
	Origin string          `json:"origin"`
	Key    string          `json:"key,omitempty"`
	Data   json.RawMessage `json:"data"`
}

type Handler func(Envelope)

// Bus is one replica's attachment to the channel. Publish and Subscribe
// become no-ops after Close, not errors.
type Bus interface {
	Publish(env Envelope) error
	Subscribe(fn Handler)
	Close() error
}
