package domain

import "time"

// KnowledgeBase represents a document collection used for retrieval-augmented
// answering.
type KnowledgeBase struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	DocumentCount int       `json:"documentCount"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
