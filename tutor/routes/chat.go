package routes

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"tutor/tutor/config"
	"tutor/tutor/controllers"
	"tutor/tutor/middlewares"
	"tutor/tutor/utils/types"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

type messageBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return types.NewValidationError("request body is required")
		}
		return types.NewValidationError("request body must be valid JSON")
	}
	return nil
}

// pageParams reads limit and offset, defaulting limit to 50.
func pageParams(r *http.Request) (int, int, error) {
	limit, offset := types.DefaultHistoryLimit, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, types.NewValidationError("limit must be an integer")
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, types.NewValidationError("offset must be an integer")
		}
		offset = n
	}
	return limit, offset, nil
}

func ChatRoutes(ctrl *controllers.ChatController, cfg config.Config, limiter *middlewares.RateLimiter) chi.Router {
	r := chi.NewRouter()
	r.Group(func(gr chi.Router) {
		gr.Use(middlewares.AuthMiddleware(cfg))

		// POST /chat : send a message, get the tutor's reply
		gr.With(limiter.Middleware).Post("/", handleJSON(func(r *http.Request) (any, int, error) {
			var req types.ChatRequest
			if err := decodeBody(r, &req); err != nil {
				return nil, http.StatusBadRequest, err
			}
			resp, err := ctrl.Chat(r.Context(), middlewares.OwnerID(r.Context()), req)
			if err != nil {
				return nil, http.StatusInternalServerError, err
			}
			return resp, http.StatusOK, nil
		}))

		// GET /chat/history?sessionId=&limit=&offset=
		gr.Get("/history", handleJSON(func(r *http.Request) (any, int, error) {
			limit, offset, err := pageParams(r)
			if err != nil {
				return nil, http.StatusBadRequest, err
			}
			resp, err := ctrl.History(r.Context(), middlewares.OwnerID(r.Context()), types.HistoryQuery{
				SessionID: r.URL.Query().Get("sessionId"),
				Limit:     limit,
				Offset:    offset,
			})
			if err != nil {
				return nil, http.StatusInternalServerError, err
			}
			return resp, http.StatusOK, nil
		}))

		gr.Delete("/history/{sessionId}", func(w http.ResponseWriter, r *http.Request) {
			err := ctrl.DeleteHistory(r.Context(), middlewares.OwnerID(r.Context()), chi.URLParam(r, "sessionId"))
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, messageBody{Success: true, Message: "chat history cleared"})
		})

		gr.Get("/sessions", handleJSON(func(r *http.Request) (any, int, error) {
			limit, offset, err := pageParams(r)
			if err != nil {
				return nil, http.StatusBadRequest, err
			}
			sessions, err := ctrl.Sessions(r.Context(), middlewares.OwnerID(r.Context()), types.PageQuery{Limit: limit, Offset: offset})
			if err != nil {
				return nil, http.StatusInternalServerError, err
			}
			return sessions, http.StatusOK, nil
		}))

		gr.Post("/sessions/{sessionId}/export", handleJSON(func(r *http.Request) (any, int, error) {
			resp, err := ctrl.Export(r.Context(), middlewares.OwnerID(r.Context()), chi.URLParam(r, "sessionId"))
			if err != nil {
				return nil, http.StatusInternalServerError, err
			}
			return resp, http.StatusCreated, nil
		}))
	})

	// GET /chat/ws : checks its own token (Authorization header or ?token=)
	r.With(limiter.Middleware).Get("/ws", chatSocket(ctrl, cfg, limiter))
	return r
}

// TutorRoutes registers the stateless helpers on the API router.
func TutorRoutes(r chi.Router, ctrl *controllers.ChatController, cfg config.Config) {
	r.Group(func(gr chi.Router) {
		gr.Use(middlewares.AuthMiddleware(cfg))

		gr.Post("/validate", handleJSON(func(r *http.Request) (any, int, error) {
			var req types.ValidateRequest
			if err := decodeBody(r, &req); err != nil {
				return nil, http.StatusBadRequest, err
			}
			v, err := ctrl.Validate(req)
			if err != nil {
				return nil, http.StatusBadRequest, err
			}
			return v, http.StatusOK, nil
		}))

		gr.Get("/providers", handleJSON(func(r *http.Request) (any, int, error) {
			return ctrl.Providers(), http.StatusOK, nil
		}))
	})
}
