package dao

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"tutor/tutor/sources/psql"
	"tutor/tutor/sources/psql/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := psql.Open(context.Background(), sqlite.Open(":memory:"))
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db.DB
}

func strPtr(s string) *string { return &s }

func exchange(t *testing.T, messages *ChatMessageDAO, session *models.ChatSession, at time.Time, question, answer string) {
	t.Helper()
	score := 0.9
	user := &models.ChatMessage{Content: question, CreatedAt: at}
	assistant := &models.ChatMessage{
		Content:     answer,
		CreatedAt:   at.Add(time.Second),
		Provider:    strPtr("openai"),
		Model:       strPtr("gpt-4o-mini"),
		SafetyScore: &score,
	}
	require.NoError(t, messages.SaveExchange(context.Background(), session, user, assistant))
}

func TestSaveExchange_CreatesSessionOnce(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	sessions := NewChatSessionDAO(db)
	messages := NewChatMessageDAO(db)

	session := &models.ChatSession{
		Title:    models.SessionTitle("What is photosynthesis?"),
		OwnerID:  "student-1",
		Metadata: datatypes.JSONMap{"provider": "openai"},
	}
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	exchange(t, messages, session, base, "What is photosynthesis?", "It turns light into energy.")
	require.NotEqual(t, uuid.Nil, session.ID)

	exchange(t, messages, session, base.Add(time.Minute), "And respiration?", "The reverse, roughly.")

	stored, err := sessions.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "What is photosynthesis?", stored.Title)
	assert.Equal(t, "student-1", stored.OwnerID)
	assert.Equal(t, "openai", stored.Metadata["provider"])

	all, err := messages.GetMessagesBySession(ctx, session.ID, 50, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []string{"user", "assistant", "user", "assistant"},
		[]string{all[0].Role, all[1].Role, all[2].Role, all[3].Role})
	assert.Equal(t, "What is photosynthesis?", all[0].Content)
	assert.Nil(t, all[0].SafetyScore)
	require.NotNil(t, all[1].SafetyScore)
	assert.Equal(t, 0.9, *all[1].SafetyScore)
	assert.Equal(t, "openai", *all[1].Provider)

	page, err := messages.GetMessagesBySession(ctx, session.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "And respiration?", page[0].Content)

	count, err := messages.CountBySession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}

func TestSaveExchange_SameTimestampKeepsOrder(t *testing.T) {
	db := setupDB(t)
	messages := NewChatMessageDAO(db)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	session := &models.ChatSession{Title: "t"}

	user := &models.ChatMessage{Content: "q", CreatedAt: at}
	assistant := &models.ChatMessage{Content: "a", CreatedAt: at}
	require.NoError(t, messages.SaveExchange(context.Background(), session, user, assistant))

	all, err := messages.GetMessagesBySession(context.Background(), session.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, models.RoleUser, all[0].Role)
	assert.Equal(t, models.RoleAssistant, all[1].Role)
}

func TestGetRecentTurns(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	messages := NewChatMessageDAO(db)
	session := &models.ChatSession{Title: "turns"}
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		exchange(t, messages, session, base.Add(time.Duration(i)*time.Minute), fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	turns, err := messages.GetRecentTurns(ctx, session.ID, 3)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, []string{"a1", "q2", "a2"}, []string{turns[0].Content, turns[1].Content, turns[2].Content})

	none, err := messages.GetRecentTurns(ctx, session.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetSession_Missing(t *testing.T) {
	db := setupDB(t)
	s, err := NewChatSessionDAO(db).GetSession(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, s)
}

func TestListSessions(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	sessions := NewChatSessionDAO(db)
	messages := NewChatMessageDAO(db)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	older := &models.ChatSession{Title: "older", OwnerID: "alice"}
	exchange(t, messages, older, base, "q", "a")
	newer := &models.ChatSession{Title: "newer", OwnerID: "alice"}
	exchange(t, messages, newer, base, "q", "a")
	exchange(t, messages, newer, base.Add(time.Minute), "q2", "a2")
	other := &models.ChatSession{Title: "bob's", OwnerID: "bob"}
	exchange(t, messages, other, base, "q", "a")

	list, err := sessions.ListSessions(ctx, "alice", 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].Title)
	assert.Equal(t, int64(4), list[0].MessageCount)
	assert.Equal(t, "older", list[1].Title)
	assert.Equal(t, int64(2), list[1].MessageCount)
	assert.Equal(t, list[0].UpdatedAt, list[0].LastActivity)

	page, err := sessions.ListSessions(ctx, "alice", 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "older", page[0].Title)

	empty, err := sessions.ListSessions(ctx, "carol", 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestDeleteSession(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	sessions := NewChatSessionDAO(db)
	messages := NewChatMessageDAO(db)
	session := &models.ChatSession{Title: "to delete", OwnerID: "alice"}
	exchange(t, messages, session, time.Now().UTC(), "q", "a")

	err := sessions.DeleteSession(ctx, session.ID, "bob")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, sessions.DeleteSession(ctx, session.ID, "alice"))

	s, err := sessions.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Nil(t, s)
	count, err := messages.CountBySession(ctx, session.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	assert.ErrorIs(t, sessions.DeleteSession(ctx, session.ID, "alice"), ErrSessionNotFound)
}

func TestTouch(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	sessions := NewChatSessionDAO(db)
	session := &models.ChatSession{Title: "touch", OwnerID: "alice"}
	require.NoError(t, sessions.CreateSession(ctx, session))
	// a second create with the same id leaves the first row alone
	require.NoError(t, sessions.CreateSession(ctx, &models.ChatSession{ID: session.ID, Title: "other", OwnerID: "bob"}))

	later := time.Now().UTC().Add(time.Hour)
	require.NoError(t, sessions.Touch(ctx, session.ID, "alice", later))
	assert.ErrorIs(t, sessions.Touch(ctx, session.ID, "bob", later), ErrSessionNotFound)
	assert.ErrorIs(t, sessions.Touch(ctx, uuid.New(), "alice", later), ErrSessionNotFound)

	stored, err := sessions.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.OwnerID)
	assert.Equal(t, "touch", stored.Title)
	assert.WithinDuration(t, later, stored.UpdatedAt, time.Second)
}

func TestSaveExchange_ForeignSessionIDWritesNothing(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	messages := NewChatMessageDAO(db)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	owned := &models.ChatSession{Title: "mine", OwnerID: "alice"}
	exchange(t, messages, owned, at, "What is a prime number?", "A number with exactly two divisors.")

	// bob picked the same id before his first exchange was stored
	err := messages.SaveExchange(ctx,
		&models.ChatSession{ID: owned.ID, Title: "theirs", OwnerID: "bob"},
		&models.ChatMessage{Content: "q"},
		&models.ChatMessage{Content: "a"},
	)

	assert.ErrorIs(t, err, ErrSessionNotFound)
	count, err := messages.CountBySession(ctx, owned.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)
	return db, mock
}

func TestDAO_PropagatesDatabaseErrors(t *testing.T) {
	db, mock := newMockDB(t)
	boom := errors.New("connection reset")
	mock.ExpectQuery(`SELECT \* FROM "chat_sessions"`).WillReturnError(boom)
	mock.ExpectQuery(`SELECT \* FROM "chat_messages"`).WillReturnError(boom)

	_, err := NewChatSessionDAO(db).GetSession(context.Background(), uuid.New())
	assert.ErrorIs(t, err, boom)

	_, err = NewChatMessageDAO(db).GetMessagesBySession(context.Background(), uuid.New(), 10, 0)
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveExchange_RollsBackOnFailure(t *testing.T) {
	db, mock := newMockDB(t)
	boom := errors.New("disk full")
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "chat_sessions"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "chat_sessions"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "chat_messages"`).WillReturnError(boom)
	mock.ExpectRollback()

	err := NewChatMessageDAO(db).SaveExchange(context.Background(),
		&models.ChatSession{Title: "t"},
		&models.ChatMessage{Content: "q"},
		&models.ChatMessage{Content: "a"},
	)

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
