package catalog

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"scheme-admin/internal/httpx"
	"scheme-admin/internal/middleware"
	"scheme-admin/internal/transport"
	"scheme-admin/internal/validation"
)

type Handler struct {
	service *Service
	val     *validation.Validator
	log     *slog.Logger
}

func NewHandler(service *Service, val *validation.Validator, log *slog.Logger) *Handler {
	return &Handler{
		service: service,
		val:     val,
		log:     log,
	}
}

// List serves every entry of kind as {data: [...]}.
func (h *Handler) List(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := h.logWithRequest(r)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		items, err := h.service.List(ctx, kind)
		if err != nil {
			log.Error("catalog list: database error", slog.String("kind", string(kind)), slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
			return
		}

		log.Info("catalog list: ok", slog.String("kind", string(kind)), slog.Int("count", len(items)))
		transport.WriteData(w, http.StatusOK, items)
	}
}

func (h *Handler) Create(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := h.logWithRequest(r)

		req, ok := h.decode(w, r, log, "create")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
		defer cancel()

		item, err := h.service.Create(ctx, kind, req)
		if err != nil {
			h.writeServiceError(w, log, "create", kind, err)
			return
		}

		log.Info("admin catalog create: ok", slog.String("kind", string(kind)), slog.String("entry_id", item.ID))
		transport.WriteData(w, http.StatusCreated, item.entity())
	}
}

func (h *Handler) Update(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := h.logWithRequest(r)
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		if id == "" {
			transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
			return
		}

		req, ok := h.decode(w, r, log, "update")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
		defer cancel()

		item, err := h.service.Update(ctx, kind, id, req)
		if err != nil {
			h.writeServiceError(w, log, "update", kind, err)
			return
		}

		log.Info("admin catalog update: ok", slog.String("kind", string(kind)), slog.String("entry_id", id))
		transport.WriteData(w, http.StatusOK, item.entity())
	}
}

func (h *Handler) Delete(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := h.logWithRequest(r)
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		if id == "" {
			transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := h.service.Delete(ctx, kind, id); err != nil {
			h.writeServiceError(w, log, "delete", kind, err)
			return
		}

		log.Info("admin catalog delete: ok", slog.String("kind", string(kind)), slog.String("entry_id", id))
		transport.WriteJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, log *slog.Logger, op string) (UpsertRequest, bool) {
	var req UpsertRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin catalog "+op+": invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return req, false
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("admin catalog " + op + ": validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return req, false
	}
	return req, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, log *slog.Logger, op string, kind Kind, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		log.Warn("admin catalog "+op+": not found", slog.String("kind", string(kind)))
		transport.WriteError(w, http.StatusNotFound, "entry not found", nil)
	case errors.Is(err, ErrSlugExists):
		log.Warn("admin catalog "+op+": slug exists", slog.String("kind", string(kind)))
		transport.WriteError(w, http.StatusConflict, "slug already exists", nil)
	case errors.Is(err, ErrInvalidSlug):
		transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"slug": "invalid"})
	default:
		log.Error("admin catalog "+op+": database error", slog.String("kind", string(kind)), slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
	}
}

func (h *Handler) logWithRequest(r *http.Request) *slog.Logger {
	if r == nil {
		return h.log
	}
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return h.log.With(slog.String("request_id", id))
	}
	return h.log
}
