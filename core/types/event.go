package types

// Event represents a typed notification emitted during ledger state
// transitions.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
