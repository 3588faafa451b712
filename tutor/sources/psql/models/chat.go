package models

import (
	"time"

	"tutor/tutor/utils/textutil"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// SessionTitleLength is the rune count kept from the first user message.
const SessionTitleLength = 50

type ChatSession struct {
	ID        uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	Title     string            `json:"title" gorm:"type:varchar(255);not null"`
	OwnerID   string            `json:"ownerId,omitempty" gorm:"type:varchar(255);not null;index"`
	Metadata  datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time         `json:"updatedAt" gorm:"autoUpdateTime"`
	Messages  []ChatMessage     `json:"-" gorm:"foreignKey:SessionID;references:ID;constraint:OnDelete:CASCADE"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

func (s *ChatSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// ChatMessage is written once and never updated. The optional columns are
// only set on assistant messages.
type ChatMessage struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	SessionID      uuid.UUID `json:"sessionId" gorm:"type:uuid;not null;index"`
	Role           string    `json:"role" gorm:"type:varchar(20);not null"`
	Content        string    `json:"content" gorm:"type:text;not null"`
	CreatedAt      time.Time `json:"createdAt" gorm:"not null;index"`
	Provider       *string   `json:"provider,omitempty" gorm:"type:varchar(50)"`
	Model          *string   `json:"model,omitempty" gorm:"type:varchar(100)"`
	Tokens         *int      `json:"tokens,omitempty"`
	SafetyScore    *float64  `json:"safetyScore,omitempty"`
	ProcessingTime *int64    `json:"processingTime,omitempty"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return nil
}

// SessionTitle derives a title from the first user message.
func SessionTitle(message string) string {
	return textutil.Truncate(textutil.CollapseSpace(message), SessionTitleLength)
}
