package domain

// LiveStatus is the ephemeral key-value-store view of an item's progress
// (§3.3). TTL-less; overwritten by the Worker. The Monitor does not publish
// it and the Serving Surface does not read it — the durable MediaRecord
// remains the source of truth for status transitions.
type LiveStatus struct {
	Status             Status         `json:"status"`
	Progress           float64        `json:"progress"`
	Message            string         `json:"message,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	AvailableRungs     []string       `json:"availableRungs,omitempty"`
	AvailableForStream bool           `json:"availableForStreaming,omitempty"`
	Error              *LiveError     `json:"error,omitempty"`
}

// LiveError carries a machine-readable short code alongside a
// human-readable message (§7 propagation rule: raw external error text is
// never surfaced to end users).
type LiveError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Heartbeat is published by the Worker every 30 seconds (§4.3.4) to the
// well-known "worker_health" key (§6.2).
type Heartbeat struct {
	Status   string `json:"status"`
	LastSeen int64  `json:"lastSeen"`
}
