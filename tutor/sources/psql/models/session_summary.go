package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SessionSummary is a read model for session listings; it has no table.
type SessionSummary struct {
	ID           uuid.UUID         `json:"id"`
	Title        string            `json:"title"`
	Metadata     datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
	MessageCount int64             `json:"messageCount"`
	LastActivity time.Time         `json:"lastActivity"`
}

func NewSessionSummary(s ChatSession, count int64) SessionSummary {
	return SessionSummary{
		ID:           s.ID,
		Title:        s.Title,
		Metadata:     s.Metadata,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		MessageCount: count,
		LastActivity: s.UpdatedAt,
	}
}
