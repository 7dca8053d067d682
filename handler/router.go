package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Router serves the same operations as Handle for local and container use,
// plus /metrics when configured.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		h.write(w, r, http.StatusOK, map[string]string{"status": "ok"}, nil)
	})
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics)
	}

	r.Post("/dialogs", func(w http.ResponseWriter, r *http.Request) {
		status, body, err := h.createDialog()
		h.write(w, r, status, body, err)
	})
	r.Get("/dialogs/{id}", func(w http.ResponseWriter, r *http.Request) {
		status, body, err := h.getDialog(chi.URLParam(r, "id"))
		h.write(w, r, status, body, err)
	})
	r.Post("/dialogs/{id}/events", func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
		if err != nil {
			h.write(w, r, 0, nil, err)
			return
		}
		if len(raw) > maxBodyBytes {
			h.write(w, r, 0, nil, errBodyTooLarge())
			return
		}
		status, body, err := h.postEvent(r.Context(), chi.URLParam(r, "id"), raw)
		h.write(w, r, status, body, err)
	})
	r.Get("/analytics/{sessionId}", func(w http.ResponseWriter, r *http.Request) {
		status, body, err := h.getAnalytics(r.Context(), chi.URLParam(r, "sessionId"))
		h.write(w, r, status, body, err)
	})

	return r
}

func (h *Handler) write(w http.ResponseWriter, r *http.Request, status int, body any, err error) {
	correlationID := correlationIDFrom(map[string]string{correlationHeader: r.Header.Get(correlationHeader)})
	if err != nil {
		status, body = h.errorBody(h.logger.With("correlationId", correlationID), err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(correlationHeader, correlationID)
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
		h.logger.Warn("handler: write response", "err", encErr)
	}
}
