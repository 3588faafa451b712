package dao

import (
	"context"
	"errors"
	"time"

	"tutor/tutor/sources/psql/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrSessionNotFound = errors.New("session not found")

type ChatSessionDAO struct {
	DB *gorm.DB
}

func NewChatSessionDAO(db *gorm.DB) *ChatSessionDAO {
	return &ChatSessionDAO{DB: db}
}

// CreateSession inserts the session unless a row with its id already exists.
func (dao *ChatSessionDAO) CreateSession(ctx context.Context, session *models.ChatSession) error {
	return dao.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(session).Error
}

// GetSession returns nil, nil when the session does not exist.
func (dao *ChatSessionDAO) GetSession(ctx context.Context, id uuid.UUID) (*models.ChatSession, error) {
	var session models.ChatSession
	err := dao.DB.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// ListSessions returns the owner's sessions, most recently active first, with
// their message counts.
func (dao *ChatSessionDAO) ListSessions(ctx context.Context, ownerID string, limit, offset int) ([]models.SessionSummary, error) {
	var sessions []models.ChatSession
	err := dao.DB.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("updated_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return []models.SessionSummary{}, nil
	}

	ids := make([]uuid.UUID, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
	}
	var counts []struct {
		SessionID    uuid.UUID
		MessageCount int64
	}
	err = dao.DB.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Select("session_id, COUNT(*) AS message_count").
		Where("session_id IN ?", ids).
		Group("session_id").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	bySession := make(map[uuid.UUID]int64, len(counts))
	for _, c := range counts {
		bySession[c.SessionID] = c.MessageCount
	}

	out := make([]models.SessionSummary, len(sessions))
	for i, s := range sessions {
		out[i] = models.NewSessionSummary(s, bySession[s.ID])
	}
	return out, nil
}

// DeleteSession removes the session and its messages in one transaction.
func (dao *ChatSessionDAO) DeleteSession(ctx context.Context, id uuid.UUID, ownerID string) error {
	return dao.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.ChatSession
		err := tx.Where("id = ? AND owner_id = ?", id, ownerID).First(&session).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		if err := tx.Where("session_id = ?", id).Delete(&models.ChatMessage{}).Error; err != nil {
			return err
		}
		return tx.Delete(&session).Error
	})
}

// Touch bumps updated_at on a session the owner holds. It returns
// ErrSessionNotFound when the session is missing or owned by someone else.
func (dao *ChatSessionDAO) Touch(ctx context.Context, id uuid.UUID, ownerID string, at time.Time) error {
	res := dao.DB.WithContext(ctx).
		Model(&models.ChatSession{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Update("updated_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}
