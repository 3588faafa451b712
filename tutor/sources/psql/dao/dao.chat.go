package dao

import (
	"context"
	"time"

	"tutor/tutor/sources/psql/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatMessageDAO struct {
	DB *gorm.DB
}

func NewChatMessageDAO(db *gorm.DB) *ChatMessageDAO {
	return &ChatMessageDAO{DB: db}
}

// SaveExchange stores a user message and the assistant reply in one
// transaction. The session row is created when it does not exist yet and its
// updated_at is bumped otherwise. When the id already belongs to another owner
// nothing is written and ErrSessionNotFound is returned.
func (dao *ChatMessageDAO) SaveExchange(ctx context.Context, session *models.ChatSession, user, assistant *models.ChatMessage) error {
	now := time.Now().UTC()
	return dao.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sessions := NewChatSessionDAO(tx)
		if err := sessions.CreateSession(ctx, session); err != nil {
			return err
		}
		if err := sessions.Touch(ctx, session.ID, session.OwnerID, now); err != nil {
			return err
		}
		session.UpdatedAt = now

		user.SessionID = session.ID
		user.Role = models.RoleUser
		assistant.SessionID = session.ID
		assistant.Role = models.RoleAssistant
		if user.CreatedAt.IsZero() {
			user.CreatedAt = now
		}
		// keeps the pair ordered when both land in the same clock tick
		if !assistant.CreatedAt.After(user.CreatedAt) {
			assistant.CreatedAt = user.CreatedAt.Add(time.Millisecond)
		}
		return tx.Create([]*models.ChatMessage{user, assistant}).Error
	})
}

// GetMessagesBySession pages through a session's messages, oldest first.
func (dao *ChatMessageDAO) GetMessagesBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]models.ChatMessage, error) {
	messages := []models.ChatMessage{}
	err := dao.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// GetRecentTurns returns the last n messages of a session, oldest first.
func (dao *ChatMessageDAO) GetRecentTurns(ctx context.Context, sessionID uuid.UUID, n int) ([]models.ChatMessage, error) {
	messages := []models.ChatMessage{}
	if n <= 0 {
		return messages, nil
	}
	err := dao.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(n).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (dao *ChatMessageDAO) CountBySession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	var count int64
	err := dao.DB.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	return count, err
}
