package routes

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"tutor/tutor/config"
	"tutor/tutor/controllers"
	"tutor/tutor/middlewares"
	"tutor/tutor/utils/logging"
	"tutor/tutor/utils/types"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const (
	EventStatus  = "status"
	EventMessage = "message"
	EventError   = "error"
)

// SocketEvent is every frame the server sends on /chat/ws.
type SocketEvent struct {
	Type   string     `json:"type"`
	Status string     `json:"status,omitempty"`
	Data   any        `json:"data,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
}

func socketOwner(r *http.Request, cfg config.Config) (string, bool) {
	if cfg.JWTSecret == "" {
		return "", true
	}
	header := r.Header.Get("Authorization")
	if token := r.URL.Query().Get("token"); token != "" {
		header = "Bearer " + token
	}
	owner, err := middlewares.ParseToken(header, cfg.JWTSecret)
	if err != nil {
		return "", false
	}
	return owner, true
}

// chatSocket answers each JSON chat request read from the socket with a
// status event followed by a message or error event.
func chatSocket(ctrl *controllers.ChatController, cfg config.Config, limiter *middlewares.RateLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := socketOwner(r, cfg)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, ErrorBody{Error: "UNAUTHORIZED", Message: "unauthorized"})
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: cfg.CORSOrigin == "*"})
		if err != nil {
			logging.ErrorLogger.Error("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusInternalError, "internal error")
		conn.SetReadLimit(maxBodyBytes)

		reqID := middleware.GetReqID(r.Context())
		ip, _, _ := net.SplitHostPort(r.RemoteAddr)
		if ip == "" {
			ip = r.RemoteAddr
		}
		logging.AppLogger.Info("websocket opened", zap.String("request_id", reqID), zap.String("remote", ip))

		// Timeout middleware bounds the request context; the socket lives
		// until either side closes it.
		ctx := context.WithoutCancel(r.Context())
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				status := websocket.CloseStatus(err)
				if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
					conn.Close(websocket.StatusNormalClosure, "")
				}
				return
			}

			var req types.ChatRequest
			if err := json.Unmarshal(data, &req); err != nil {
				_, body := errorResponse(types.NewValidationError("message must be a JSON chat request"))
				if err := wsjson.Write(ctx, conn, SocketEvent{Type: EventError, Error: &body}); err != nil {
					return
				}
				continue
			}

			if !limiter.Allow(ip) {
				body := ErrorBody{Error: "RATE_LIMITED", Message: "too many requests, slow down"}
				if err := wsjson.Write(ctx, conn, SocketEvent{Type: EventError, Error: &body}); err != nil {
					return
				}
				continue
			}

			if err := wsjson.Write(ctx, conn, SocketEvent{Type: EventStatus, Status: "thinking"}); err != nil {
				return
			}

			turnCtx, cancel := context.WithTimeout(logging.WithRequestID(ctx, reqID), 60*time.Second)
			resp, err := ctrl.Chat(turnCtx, owner, req)
			cancel()

			event := SocketEvent{Type: EventMessage, Data: resp}
			if err != nil {
				status, body := errorResponse(err)
				if status >= http.StatusInternalServerError {
					logging.ErrorLogger.Error("websocket chat failed", zap.String("request_id", reqID), zap.Error(err))
				}
				event = SocketEvent{Type: EventError, Error: &body}
			}
			if err := wsjson.Write(ctx, conn, event); err != nil {
				return
			}
		}
	}
}
