package types

// Event is one audit record emitted by a ledger operation. Attributes are
// flat string pairs so events serialize the same way everywhere.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
