package rules

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"github.com/JaimeStill/sectional/pkg/handlers"
	"github.com/JaimeStill/sectional/pkg/routes"
)

const maxRuleBody = 1 << 20

// Summary describes the rule set of one section.
type Summary struct {
	Section int    `json:"section"`
	Name    string `json:"name,omitempty"`
	Include int    `json:"include"`
	Exclude int    `json:"exclude"`
	Stored  bool   `json:"stored"`
}

// AddRequest is the body of an add-rules request.
type AddRequest struct {
	Rules   []Rule `json:"rules"`
	Persist bool   `json:"persist,omitempty"`
}

// AddResult reports the effect of an add-rules request.
type AddResult struct {
	Section   int  `json:"section"`
	Added     int  `json:"added"`
	Total     int  `json:"total"`
	Persisted bool `json:"persisted"`
}

// Handler exposes the rule store over HTTP.
type Handler struct {
	store  *Store
	logger *slog.Logger
	// Protect wraps the mutating routes, typically with authentication.
	Protect func(http.Handler) http.Handler
}

// NewHandler creates a Handler over store.
func NewHandler(store *Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger.With("handler", "rules"),
	}
}

// Routes returns the route group definition for rule endpoints.
func (h *Handler) Routes() routes.Group {
	var protect []func(http.Handler) http.Handler
	if h.Protect != nil {
		protect = append(protect, h.Protect)
	}
	return routes.Group{
		Prefix: "/rules",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List, OpenAPI: Spec.List},
			{Method: "GET", Pattern: "/{section}", Handler: h.Get, OpenAPI: Spec.Get},
			{Method: "POST", Pattern: "/{section}", Handler: h.Add, Middleware: protect, OpenAPI: Spec.Add},
			{Method: "POST", Pattern: "/{section}/persist", Handler: h.Persist, Middleware: protect, OpenAPI: Spec.Persist},
			{Method: "POST", Pattern: "/{section}/reload", Handler: h.Reload, Middleware: protect, OpenAPI: Spec.Reload},
		},
	}
}

// List summarizes every registry section plus any section with stored or
// learned rules.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stored := h.store.Stored(ctx)

	ids := h.store.Registry().IDs()
	ids = append(ids, stored...)
	ids = append(ids, h.store.Sections()...)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		set := h.store.Rules(ctx, id)
		s := Summary{
			Section: id,
			Include: len(set.Include),
			Exclude: len(set.Exclude),
			Stored:  slices.Contains(stored, id),
		}
		if meta, ok := h.store.Registry().Section(id); ok {
			s.Name = meta.Name
		}
		out = append(out, s)
	}

	handlers.RespondJSON(w, http.StatusOK, out)
}

// Get returns the full rule set of a section.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	section, ok := h.section(w, r)
	if !ok {
		return
	}
	handlers.RespondJSON(w, http.StatusOK, h.store.Rules(r.Context(), section))
}

// Add merges rules into a section. Every rule must compile; a request with
// any invalid pattern changes nothing.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	section, ok := h.section(w, r)
	if !ok {
		return
	}

	req, err := handlers.DecodeJSON[AddRequest](w, r, maxRuleBody)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	if len(req.Rules) == 0 {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: no rules", ErrInvalidPattern))
		return
	}

	var errs []error
	for i, rule := range req.Rules {
		if err := rule.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("rule %d: %w", i, err))
		}
	}
	if len(errs) > 0 {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errors.Join(errs...))
		return
	}

	ctx := r.Context()
	added := h.store.Add(ctx, section, req.Rules...)
	result := AddResult{
		Section: section,
		Added:   added,
		Total:   h.store.Rules(ctx, section).Len(),
	}

	if req.Persist {
		if err := h.store.Persist(ctx, section); err != nil {
			handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
			return
		}
		result.Persisted = true
	}

	h.logger.Info("rules added", "section", section, "added", added, "persisted", result.Persisted)
	handlers.RespondJSON(w, http.StatusOK, result)
}

// Persist writes a section's rules through the store's source.
func (h *Handler) Persist(w http.ResponseWriter, r *http.Request) {
	section, ok := h.section(w, r)
	if !ok {
		return
	}
	if err := h.store.Persist(r.Context(), section); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reload drops the cached rules of a section so the next use reads the
// source again. Unpersisted learned rules are discarded.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	section, ok := h.section(w, r)
	if !ok {
		return
	}
	h.store.Invalidate(section)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) section(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("section"))
	if err != nil || id <= 0 {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %q", ErrInvalidSection, r.PathValue("section")))
		return 0, false
	}
	return id, true
}
