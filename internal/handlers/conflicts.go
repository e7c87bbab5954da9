package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mhartsell/gatehouse/internal/models"
	pkghttp "github.com/mhartsell/gatehouse/pkg/http"
)

// ConflictService is the scan-and-fix surface.
type ConflictService interface {
	Scan(ctx context.Context) ([]models.ConflictRecord, error)
	Resolve(ctx context.Context, fixID, actor string) error
}

// NoticeStore serves and dismisses admin notices and lists applied
// fixes.
type NoticeStore interface {
	ListActive(ctx context.Context) ([]models.Notice, error)
	Dismiss(ctx context.Context, id string) error
	ListFixActions(ctx context.Context, limit int) ([]models.FixAction, error)
}

// SecurityLogReader lists recent security events.
type SecurityLogReader interface {
	ListRecent(ctx context.Context, limit int) ([]models.SecurityLogEntry, error)
}

// ConflictHandler serves the conflict, notice, and security-log admin
// API.
type ConflictHandler struct {
	conflicts ConflictService
	notices   NoticeStore
	secLog    SecurityLogReader
}

func NewConflictHandler(conflicts ConflictService, notices NoticeStore, secLog SecurityLogReader) *ConflictHandler {
	return &ConflictHandler{conflicts: conflicts, notices: notices, secLog: secLog}
}

func (h *ConflictHandler) Scan(w http.ResponseWriter, r *http.Request) {
	records, err := h.conflicts.Scan(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	if records == nil {
		records = []models.ConflictRecord{}
	}
	pkghttp.WriteData(w, http.StatusOK, records)
}

func (h *ConflictHandler) ApplyFix(w http.ResponseWriter, r *http.Request) {
	fixID := chi.URLParam(r, "fixID")
	if err := h.conflicts.Resolve(r.Context(), fixID, actorFrom(r)); err != nil {
		if errors.Is(err, models.ErrUnknownFix) {
			pkghttp.WriteNotFound(w, "Unknown fix")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, pkghttp.SuccessData{Message: "Fix applied."})
}

func (h *ConflictHandler) ListNotices(w http.ResponseWriter, r *http.Request) {
	notices, err := h.notices.ListActive(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	if notices == nil {
		notices = []models.Notice{}
	}
	pkghttp.WriteData(w, http.StatusOK, notices)
}

func (h *ConflictHandler) DismissNotice(w http.ResponseWriter, r *http.Request) {
	if err := h.notices.Dismiss(r.Context(), chi.URLParam(r, "noticeID")); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Notice not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, pkghttp.SuccessData{Message: "Notice dismissed."})
}

func (h *ConflictHandler) ListFixActions(w http.ResponseWriter, r *http.Request) {
	actions, err := h.notices.ListFixActions(r.Context(), listLimit(r, 20))
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	if actions == nil {
		actions = []models.FixAction{}
	}
	pkghttp.WriteData(w, http.StatusOK, actions)
}

func (h *ConflictHandler) SecurityLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.secLog.ListRecent(r.Context(), listLimit(r, 100))
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	if entries == nil {
		entries = []models.SecurityLogEntry{}
	}
	pkghttp.WriteData(w, http.StatusOK, entries)
}

func listLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > 500 {
		return fallback
	}
	return limit
}
