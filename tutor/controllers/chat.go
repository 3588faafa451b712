package controllers

import (
	"context"
	"errors"
	"time"

	"tutor/tutor/services/llm"
	"tutor/tutor/services/safety"
	"tutor/tutor/services/tutor"
	"tutor/tutor/sources/cache"
	"tutor/tutor/sources/psql/dao"
	"tutor/tutor/sources/psql/models"
	"tutor/tutor/sources/storage"
	"tutor/tutor/utils/logging"
	"tutor/tutor/utils/textutil"
	"tutor/tutor/utils/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// ErrNotFound is returned for sessions that do not exist or belong to someone else.
var ErrNotFound = errors.New("session not found")

type ProviderLister interface {
	List() []llm.ProviderInfo
}

type ChatController struct {
	tutor        *tutor.Orchestrator
	providers    ProviderLister
	sessionDAO   *dao.ChatSessionDAO
	messageDAO   *dao.ChatMessageDAO
	history      cache.HistoryCache
	transcripts  storage.TranscriptStore
	historyTurns int
}

type ChatControllerDeps struct {
	Tutor       *tutor.Orchestrator
	Providers   ProviderLister
	SessionDAO  *dao.ChatSessionDAO
	MessageDAO  *dao.ChatMessageDAO
	History     cache.HistoryCache
	Transcripts storage.TranscriptStore
	// HistoryTurns is the number of earlier messages sent to the provider. It
	// is rounded down to whole exchanges so the history opens with a user turn.
	HistoryTurns int
}

func NewChatController(d ChatControllerDeps) *ChatController {
	if d.History == nil {
		d.History = cache.NopCache{}
	}
	return &ChatController{
		tutor:        d.Tutor,
		providers:    d.Providers,
		sessionDAO:   d.SessionDAO,
		messageDAO:   d.MessageDAO,
		history:      d.History,
		transcripts:  d.Transcripts,
		historyTurns: d.HistoryTurns - d.HistoryTurns%2,
	}
}

// Chat runs one exchange. Nothing is stored unless both the message and the
// reply pass the safety checks.
func (c *ChatController) Chat(ctx context.Context, ownerID string, req types.ChatRequest) (*types.ChatResponse, error) {
	defer logging.LogDuration(ctx, "ChatController.Chat")()
	received := time.Now().UTC()

	if err := types.Check(req); err != nil {
		return nil, err
	}
	if textutil.StripMarkup(req.Message) == "" {
		return nil, types.NewValidationError("message is required")
	}

	session, err := c.sessionFor(ctx, ownerID, req)
	if err != nil {
		return nil, err
	}

	var history []llm.Message
	if !session.CreatedAt.IsZero() && c.historyTurns > 0 {
		turns, err := c.messageDAO.GetRecentTurns(ctx, session.ID, c.historyTurns)
		if err != nil {
			return nil, err
		}
		for _, m := range turns {
			history = append(history, llm.Message{Role: m.Role, Content: m.Content})
		}
	}

	result, err := c.tutor.Respond(ctx, tutor.ChatRequest{
		Message:     req.Message,
		Provider:    req.Provider,
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		History:     history,
	})
	if err != nil {
		return nil, err
	}

	user := &models.ChatMessage{Content: req.Message, CreatedAt: received}
	assistant := &models.ChatMessage{
		Content:        result.Content,
		Provider:       &result.Provider,
		Model:          &result.Model,
		Tokens:         result.Tokens,
		SafetyScore:    &result.SafetyScore,
		ProcessingTime: &result.ProcessingTime,
	}
	if err := c.messageDAO.SaveExchange(ctx, session, user, assistant); err != nil {
		if errors.Is(err, dao.ErrSessionNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.invalidate(ctx, session.ID)

	logging.AppLogger.Info("exchange stored",
		zap.String("session_id", session.ID.String()),
		zap.String("provider", result.Provider),
		zap.Bool("fallback", result.FallbackUsed),
		zap.Int64("processing_ms", result.ProcessingTime),
	)

	return &types.ChatResponse{
		SessionID:   session.ID.String(),
		Message:     *assistant,
		UserMessage: *user,
		Metadata: types.ChatMetadata{
			Provider:       result.Provider,
			Model:          result.Model,
			Tokens:         result.Tokens,
			SafetyScore:    result.SafetyScore,
			ProcessingTime: result.ProcessingTime,
			FallbackUsed:   result.FallbackUsed,
		},
	}, nil
}

// sessionFor loads the requested session or prepares a new, unsaved one.
func (c *ChatController) sessionFor(ctx context.Context, ownerID string, req types.ChatRequest) (*models.ChatSession, error) {
	if req.SessionID != "" {
		id := uuid.MustParse(req.SessionID)
		session, err := c.sessionDAO.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}
		if session != nil {
			if session.OwnerID != ownerID {
				return nil, ErrNotFound
			}
			return session, nil
		}
		return newSession(id, ownerID, req), nil
	}
	return newSession(uuid.New(), ownerID, req), nil
}

func newSession(id uuid.UUID, ownerID string, req types.ChatRequest) *models.ChatSession {
	meta := datatypes.JSONMap{}
	if req.Provider != "" {
		meta["provider"] = req.Provider
	}
	return &models.ChatSession{
		ID:       id,
		Title:    models.SessionTitle(req.Message),
		OwnerID:  ownerID,
		Metadata: meta,
	}
}

func (c *ChatController) ownedSession(ctx context.Context, ownerID, rawID string) (*models.ChatSession, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, types.NewValidationError("sessionId must be a valid UUID")
	}
	session, err := c.sessionDAO.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil || session.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return session, nil
}

func (c *ChatController) History(ctx context.Context, ownerID string, q types.HistoryQuery) (*types.HistoryResponse, error) {
	if err := types.Check(q); err != nil {
		return nil, err
	}
	session, err := c.ownedSession(ctx, ownerID, q.SessionID)
	if err != nil {
		return nil, err
	}
	resp := &types.HistoryResponse{
		SessionID: session.ID.String(),
		Title:     session.Title,
		Limit:     q.Limit,
		Offset:    q.Offset,
	}

	cached, err := c.history.GetHistory(ctx, q.SessionID, q.Limit, q.Offset)
	if err == nil {
		resp.Messages = cached
		resp.Cached = true
		return resp, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		logging.ErrorLogger.Error("history cache read failed", zap.String("session_id", q.SessionID), zap.Error(err))
	}

	messages, err := c.messageDAO.GetMessagesBySession(ctx, session.ID, q.Limit, q.Offset)
	if err != nil {
		return nil, err
	}
	if err := c.history.SetHistory(ctx, q.SessionID, q.Limit, q.Offset, messages); err != nil {
		logging.ErrorLogger.Error("history cache write failed", zap.String("session_id", q.SessionID), zap.Error(err))
	}
	resp.Messages = messages
	return resp, nil
}

func (c *ChatController) DeleteHistory(ctx context.Context, ownerID, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return types.NewValidationError("sessionId must be a valid UUID")
	}
	if err := c.sessionDAO.DeleteSession(ctx, id, ownerID); err != nil {
		if errors.Is(err, dao.ErrSessionNotFound) {
			return ErrNotFound
		}
		return err
	}
	c.invalidate(ctx, id)
	logging.AppLogger.Info("session deleted", zap.String("session_id", rawID))
	return nil
}

func (c *ChatController) Sessions(ctx context.Context, ownerID string, q types.PageQuery) ([]models.SessionSummary, error) {
	if err := types.Check(q); err != nil {
		return nil, err
	}
	return c.sessionDAO.ListSessions(ctx, ownerID, q.Limit, q.Offset)
}

// Export archives the full transcript of a session in object storage.
func (c *ChatController) Export(ctx context.Context, ownerID, rawID string) (*types.ExportResponse, error) {
	if c.transcripts == nil {
		return nil, storage.ErrStorageDisabled
	}
	session, err := c.ownedSession(ctx, ownerID, rawID)
	if err != nil {
		return nil, err
	}
	messages, err := c.messageDAO.GetMessagesBySession(ctx, session.ID, -1, 0)
	if err != nil {
		return nil, err
	}
	key, err := c.transcripts.UploadTranscript(ctx, storage.Transcript{
		Session:    *session,
		Messages:   messages,
		ExportedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	logging.AppLogger.Info("transcript exported", zap.String("session_id", rawID), zap.String("key", key))
	return &types.ExportResponse{SessionID: session.ID.String(), Key: key}, nil
}

// Validate scores text the same way chat messages are scored.
func (c *ChatController) Validate(req types.ValidateRequest) (safety.Validation, error) {
	if err := types.Check(req); err != nil {
		return safety.Validation{}, err
	}
	return c.tutor.Validate(req.Text), nil
}

func (c *ChatController) Providers() []llm.ProviderInfo {
	return c.providers.List()
}

func (c *ChatController) invalidate(ctx context.Context, id uuid.UUID) {
	if err := c.history.Invalidate(ctx, id.String()); err != nil {
		logging.ErrorLogger.Error("history cache invalidation failed", zap.String("session_id", id.String()), zap.Error(err))
	}
}
