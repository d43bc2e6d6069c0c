package events

import (
	"math/big"

	"helios/core/types"
)

// Event is a structured state change: a stable type string plus a rendering
// into the flat attribute form that the audit log stores.
type Event interface {
	EventType() string
	Event() *types.Event
}

// Sink receives rendered events; every engine state satisfies it.
type Sink interface {
	AppendEvent(*types.Event)
}

// Append renders the payload and hands it to the sink. Nil sinks discard.
func Append(sink Sink, evt Event) {
	if sink == nil || evt == nil {
		return
	}
	sink.AppendEvent(evt.Event())
}

// Emitter broadcasts rendered events to downstream subscribers
// (RPC, indexers).
type Emitter interface {
	Emit(*types.Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(*types.Event) {}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
