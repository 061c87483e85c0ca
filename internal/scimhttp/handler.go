// Package scimhttp serves the SCIM protocol endpoints: paged, filtered,
// sorted list queries over users and groups.
package scimhttp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"scim-mysql/internal/attrmap"
	"scim-mysql/internal/filter"
	"scim-mysql/internal/logging"
	"scim-mysql/internal/planner"
	"scim-mysql/internal/resource"
	"scim-mysql/internal/scimnaming"
	"scim-mysql/internal/store"
)

// ContentType is the SCIM media type every response is served with.
const ContentType = "application/scim+json"

// UserLister serves counted, filtered user pages.
type UserLister interface {
	Count(ctx context.Context, req store.PageRequest) (int64, error)
	Filter(ctx context.Context, req store.PageRequest) ([]resource.User, error)
}

// GroupLister serves counted, filtered group pages.
type GroupLister interface {
	Count(ctx context.Context, req store.PageRequest) (int64, error)
	Filter(ctx context.Context, req store.PageRequest) ([]resource.Group, error)
}

// Config holds the protocol-level knobs of the list endpoints.
type Config struct {
	// DefaultCount is the page size used when the request carries no count
	// parameter. MaxCount caps any requested page size.
	DefaultCount int `mapstructure:"default_count"`
	MaxCount     int `mapstructure:"max_count"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		DefaultCount: 100,
		MaxCount:     500,
	}
}

// Handler serves the SCIM list endpoints.
type Handler struct {
	users  UserLister
	groups GroupLister
	namer  *scimnaming.Namer
	logger *logging.Logger
	cfg    Config
}

// NewHandler creates a SCIM handler for the given stores.
func NewHandler(users UserLister, groups GroupLister, namer *scimnaming.Namer, logger *logging.Logger, cfg Config) *Handler {
	if namer == nil {
		namer = scimnaming.Default()
	}
	if cfg.DefaultCount <= 0 {
		cfg.DefaultCount = DefaultConfig().DefaultCount
	}
	if cfg.MaxCount <= 0 {
		cfg.MaxCount = DefaultConfig().MaxCount
	}
	return &Handler{
		users:  users,
		groups: groups,
		namer:  namer,
		logger: logger,
		cfg:    cfg,
	}
}

// Register mounts the list endpoints on the mux. Endpoint paths are derived
// from the resource type names, so "/Users" and "/Groups" by default.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle(h.UsersPath(), http.HandlerFunc(h.listUsers))
	mux.Handle(h.GroupsPath(), http.HandlerFunc(h.listGroups))
}

// UsersPath is the mounted path of the user list endpoint.
func (h *Handler) UsersPath() string { return h.namer.EndpointPath("User") }

// GroupsPath is the mounted path of the group list endpoint.
func (h *Handler) GroupsPath() string { return h.namer.EndpointPath("Group") }

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, func(ctx context.Context, req store.PageRequest) (int64, []any, error) {
		total, err := h.users.Count(ctx, req)
		if err != nil {
			return 0, nil, err
		}
		users, err := h.users.Filter(ctx, req)
		if err != nil {
			return 0, nil, err
		}
		resources := make([]any, 0, len(users))
		for i := range users {
			users[i].Meta.Location = h.UsersPath() + "/" + users[i].ID
			resources = append(resources, users[i])
		}
		return total, resources, nil
	})
}

func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, func(ctx context.Context, req store.PageRequest) (int64, []any, error) {
		total, err := h.groups.Count(ctx, req)
		if err != nil {
			return 0, nil, err
		}
		groups, err := h.groups.Filter(ctx, req)
		if err != nil {
			return 0, nil, err
		}
		resources := make([]any, 0, len(groups))
		for i := range groups {
			groups[i].Meta.Location = h.GroupsPath() + "/" + groups[i].ID
			resources = append(resources, groups[i])
		}
		return total, resources, nil
	})
}

type pageFunc func(ctx context.Context, req store.PageRequest) (int64, []any, error)

func (h *Handler) list(w http.ResponseWriter, r *http.Request, page pageFunc) {
	if r.Method != http.MethodGet {
		h.writeError(w, r, http.StatusMethodNotAllowed, "", "only list queries are supported")
		return
	}

	req, err := h.parseListRequest(r)
	if err != nil {
		var badReq *badRequestError
		if errors.As(err, &badReq) {
			h.writeError(w, r, http.StatusBadRequest, badReq.scimType, badReq.detail)
			return
		}
		h.writeError(w, r, http.StatusInternalServerError, "", "internal error")
		return
	}

	total, resources, err := page(r.Context(), req)
	if err != nil {
		var unknown *attrmap.UnknownAttributeError
		if errors.As(err, &unknown) {
			h.writeError(w, r, http.StatusBadRequest, "invalidFilter", unknown.Error())
			return
		}
		h.logError(r, "list query failed", err)
		h.writeError(w, r, http.StatusInternalServerError, "", "internal error")
		return
	}

	h.writeJSON(w, http.StatusOK, resource.ListResponse{
		Schemas:      []string{resource.ListResponseSchema},
		TotalResults: total,
		StartIndex:   req.StartIndex,
		ItemsPerPage: len(resources),
		Resources:    resources,
	})
}

// badRequestError carries the SCIM error detail of a malformed request.
type badRequestError struct {
	scimType string
	detail   string
}

func (e *badRequestError) Error() string { return e.detail }

func (h *Handler) parseListRequest(r *http.Request) (store.PageRequest, error) {
	query := r.URL.Query()
	req := store.PageRequest{
		StartIndex: 1,
		Count:      h.cfg.DefaultCount,
	}

	if raw := query.Get("filter"); raw != "" {
		tree, err := filter.Parse(raw)
		if err != nil {
			return req, &badRequestError{scimType: "invalidFilter", detail: err.Error()}
		}
		req.Filter = tree
	}

	req.SortBy = query.Get("sortBy")
	order, ok := planner.ParseSortOrder(query.Get("sortOrder"))
	if !ok {
		return req, &badRequestError{
			scimType: "invalidValue",
			detail:   "sortOrder must be 'ascending' or 'descending'",
		}
	}
	req.SortOrder = order
	// ascending is the protocol default whenever a sort attribute is given
	if req.SortBy != "" && req.SortOrder == planner.SortNone {
		req.SortOrder = planner.SortAscending
	}

	if raw := query.Get("startIndex"); raw != "" {
		idx, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return req, &badRequestError{scimType: "invalidValue", detail: "startIndex must be an integer"}
		}
		// values below 1 mean "from the beginning" per the protocol
		if idx < 1 {
			idx = 1
		}
		req.StartIndex = idx
	}

	if raw := query.Get("count"); raw != "" {
		count, err := strconv.Atoi(raw)
		if err != nil {
			return req, &badRequestError{scimType: "invalidValue", detail: "count must be an integer"}
		}
		if count < 0 {
			count = 0
		}
		req.Count = count
	}
	if req.Count > h.cfg.MaxCount {
		req.Count = h.cfg.MaxCount
	}

	return req, nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, scimType, detail string) {
	if status >= 400 && status < 500 {
		h.logWarn(r, "request rejected", slog.Int("status", status), slog.String("detail", detail))
	}
	h.writeJSON(w, status, resource.Error{
		Schemas:  []string{resource.ErrorSchema},
		Status:   strconv.Itoa(status),
		ScimType: scimType,
		Detail:   detail,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil && h.logger != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func (h *Handler) logWarn(r *http.Request, msg string, attrs ...any) {
	if h.logger == nil {
		return
	}
	h.logger.WarnContext(r.Context(), msg, attrs...)
}

func (h *Handler) logError(r *http.Request, msg string, err error) {
	if h.logger == nil {
		return
	}
	h.logger.ErrorContext(r.Context(), msg, slog.String("error", err.Error()))
}
