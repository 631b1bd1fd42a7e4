package tasks

import (
	"errors"
	"log/slog"
	"net/http"

	"tasker/cmd/identity"
	"tasker/cmd/internal/auth/gate"
	"tasker/cmd/internal/httpx"
)

type createRequest struct {
	Title string `json:"title" validate:"required,min=2,max=50"`
}

type replaceRequest struct {
	Title       string   `json:"title" validate:"required,min=2,max=50"`
	Description string   `json:"description" validate:"required,min=1,max=225"`
	IsCompleted *bool    `json:"isCompleted" validate:"required"`
	Priority    *int     `json:"priority" validate:"required,min=1,max=3"`
	Tags        []string `json:"tags" validate:"required,max=20,dive,max=20"`
}

type patchRequest struct {
	Title       *string   `json:"title" validate:"omitnil,min=2,max=50"`
	Description *string   `json:"description" validate:"omitnil,max=225"`
	IsCompleted *bool     `json:"isCompleted"`
	Priority    *int      `json:"priority" validate:"omitnil,min=1,max=3"`
	Tags        *[]string `json:"tags" validate:"omitnil,max=20,dive,max=20"`
}

// Handler exposes the task API. Every route runs behind the gate.
type Handler struct {
	log     *slog.Logger
	svc     *Service
	gate    *gate.Gate
	maxBody int64
}

// NewHandler constructs a Handler.
func NewHandler(log *slog.Logger, svc *Service, g *gate.Gate) (*Handler, error) {
	if svc == nil || g == nil {
		return nil, errors.New("tasks: nil service or gate")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, svc: svc, gate: g, maxBody: httpx.DefaultMaxBodyBytes}, nil
}

// Register wires task routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.Handle("GET /api/tasks", h.gate.Protect(h.handleList))
	mux.Handle("POST /api/tasks", h.gate.Protect(h.handleCreate))
	mux.Handle("GET /api/tasks/{id}", h.gate.Protect(h.handleGet))
	mux.Handle("PUT /api/tasks/{id}", h.gate.Protect(h.handleReplace))
	mux.Handle("PATCH /api/tasks/{id}", h.gate.Protect(h.handlePatch))
	mux.Handle("DELETE /api/tasks/{id}", h.gate.Protect(h.handleDelete))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request, user identity.User) {
	q, err := ParseQuery(r.URL.Query())
	if err != nil {
		h.writeErr(w, "list", err)
		return
	}
	out, err := h.svc.List(r.Context(), user.ID, q)
	if err != nil {
		h.writeErr(w, "list", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, user identity.User) {
	t, err := h.svc.Get(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		h.writeErr(w, "get", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request, user identity.User) {
	var req createRequest
	if !h.decode(w, r, &req) {
		return
	}
	t, err := h.svc.Create(r.Context(), user.ID, CreateInput{Title: req.Title})
	if err != nil {
		h.writeErr(w, "create", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, t)
}

func (h *Handler) handleReplace(w http.ResponseWriter, r *http.Request, user identity.User) {
	var req replaceRequest
	if !h.decode(w, r, &req) {
		return
	}
	t, err := h.svc.Replace(r.Context(), user.ID, r.PathValue("id"), ReplaceInput{
		Title:       req.Title,
		Description: req.Description,
		IsCompleted: *req.IsCompleted,
		Priority:    *req.Priority,
		Tags:        req.Tags,
	})
	if err != nil {
		h.writeErr(w, "replace", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) handlePatch(w http.ResponseWriter, r *http.Request, user identity.User) {
	var req patchRequest
	if !h.decode(w, r, &req) {
		return
	}
	t, err := h.svc.Patch(r.Context(), user.ID, r.PathValue("id"), PatchInput{
		Title:       req.Title,
		Description: req.Description,
		IsCompleted: req.IsCompleted,
		Priority:    req.Priority,
		Tags:        req.Tags,
	})
	if err != nil {
		h.writeErr(w, "patch", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, user identity.User) {
	if err := h.svc.Delete(r.Context(), user.ID, r.PathValue("id")); err != nil {
		h.writeErr(w, "delete", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, true)
}

// decode reads and validates a request body, writing 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(w, r, h.maxBody, dst); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return false
	}
	if err := httpx.Validate(dst); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	return true
}

func (h *Handler) writeErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", ErrNotFound.Error())
	case errors.Is(err, ErrInvalidInput):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		h.log.Error("tasks."+op+".fail", "err", err)
		httpx.WriteInternal(w)
	}
}
