package types

import "time"

// DocumentRef points at an uploaded supporting document for a transaction.
// Completion proofs are stored in the same shape.
type DocumentRef struct {
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Kind       string    `json:"kind,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// DocumentList is the jsonb-serialized collection attached to a transaction.
type DocumentList []DocumentRef

// JSONMap is a loose jsonb bag for event payload attributes.
type JSONMap map[string]any
