package types

// Event represents a typed event emitted by the registry engines while
// applying a state transition.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
