package schemes

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

const (
	defaultPageSize = 20
	maxPageSize     = 1000
)

type Handler struct {
	service   *Service
	val       *validation.Validator
	log       *slog.Logger
	maxUpload int64
}

func NewHandler(service *Service, val *validation.Validator, log *slog.Logger, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &Handler{
		service:   service,
		val:       val,
		log:       log,
		maxUpload: maxUpload,
	}
}

// List serves one page. An empty page is a 404 so clients can tell "no more
// results" from an error.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	page, limit, err := httpx.ParsePage(r.URL.Query(), defaultPageSize, maxPageSize)
	if err != nil {
		log.Warn("schemes list: invalid query", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	filter := ListFilter{
		StateID:    strings.TrimSpace(r.URL.Query().Get("stateId")),
		CategoryID: strings.TrimSpace(r.URL.Query().Get("categoryId")),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	result, err := h.service.List(ctx, filter, page, limit)
	if err != nil {
		log.Error("schemes list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}
	if len(result.Items) == 0 {
		log.Info("schemes list: empty", slog.Int64("page", page))
		transport.WriteError(w, http.StatusNotFound, "No schemes found", nil)
		return
	}

	log.Info("schemes list: ok", slog.Int("count", len(result.Items)), slog.Int64("total", result.Total))
	transport.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) GetBySlugOrID(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	key := strings.TrimSpace(chi.URLParam(r, "slugOrId"))
	if key == "" {
		log.Warn("schemes get: missing key")
		transport.WriteError(w, http.StatusBadRequest, "missing slug or id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	item, err := h.service.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("schemes get: not found", slog.String("key", key))
			transport.WriteError(w, http.StatusNotFound, "Scheme not found", nil)
			return
		}
		log.Error("schemes get: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("schemes get: ok", slog.String("key", key))
	transport.WriteData(w, http.StatusOK, item)
}

func (h *Handler) AdminCreate(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	req, files, ok := h.readForm(w, r, log, "create")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	item, err := h.service.Create(ctx, req, files)
	if err != nil {
		h.writeServiceError(w, log, "create", err)
		return
	}

	log.Info("admin schemes create: ok", slog.String("scheme_id", item.ID), slog.String("slug", item.Slug))
	transport.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Scheme created",
		"data":    item,
	})
}

func (h *Handler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		log.Warn("admin schemes update: missing id")
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	req, files, ok := h.readForm(w, r, log, "update")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	item, err := h.service.Update(ctx, id, req, files)
	if err != nil {
		h.writeServiceError(w, log, "update", err)
		return
	}

	log.Info("admin schemes update: ok", slog.String("scheme_id", id), slog.String("slug", item.Slug))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Scheme updated",
		"data":    item,
	})
}

func (h *Handler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		log.Warn("admin schemes delete: missing id")
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.service.Delete(ctx, id); err != nil {
		h.writeServiceError(w, log, "delete", err)
		return
	}

	log.Info("admin schemes delete: ok", slog.String("scheme_id", id))
	transport.WriteJSON(w, http.StatusOK, map[string]string{"message": "Scheme deleted"})
}

func (h *Handler) readForm(w http.ResponseWriter, r *http.Request, log *slog.Logger, op string) (UpsertRequest, Files, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn("admin schemes "+op+": payload too large")
			transport.WriteError(w, http.StatusRequestEntityTooLarge, "payload too large", nil)
			return UpsertRequest{}, Files{}, false
		}
		log.Warn("admin schemes "+op+": invalid multipart", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, "invalid multipart form", nil)
		return UpsertRequest{}, Files{}, false
	}

	req, files, err := decodeForm(r.MultipartForm)
	if err != nil {
		var formErr *FormError
		details := map[string]string(nil)
		if errors.As(err, &formErr) {
			details = map[string]string{formErr.Field: "invalid"}
		}
		log.Warn("admin schemes "+op+": invalid field", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, "validation error", details)
		return req, files, false
	}

	if err := h.val.Struct(req); err != nil {
		log.Warn("admin schemes " + op + ": validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return req, files, false
	}
	return req, files, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		log.Warn("admin schemes " + op + ": not found")
		transport.WriteError(w, http.StatusNotFound, "Scheme not found", nil)
	case errors.Is(err, ErrSlugExists):
		log.Warn("admin schemes " + op + ": slug exists")
		transport.WriteError(w, http.StatusConflict, "A scheme with this slug already exists", nil)
	case errors.Is(err, ErrInvalidSlug):
		transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"slug": "invalid"})
	case errors.Is(err, ErrBadImage):
		log.Warn("admin schemes "+op+": bad image", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, "Only image uploads are accepted", nil)
	default:
		log.Error("admin schemes "+op+": database error", slog.String("error", err.Error()))
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
