package webhook

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/harmonia-saude/leadops-cli/internal/lead"
	"github.com/harmonia-saude/leadops-cli/internal/phone"
)

// Resolver matches an inbound identity to a stored lead.
type Resolver interface {
	Resolve(ctx context.Context, in lead.Input) lead.MatchResult
}

// Handler serves the inbound webhook and quiz endpoints.
type Handler struct {
	resolver Resolver
	store    lead.Store
	denylist *phone.Denylist
	regions  []string
	origins  []string
}

// Option configures a Handler.
type Option func(*Handler)

// WithDenylist rejects quiz submissions from known throwaway numbers.
func WithDenylist(d *phone.Denylist) Option {
	return func(h *Handler) { h.denylist = d }
}

// WithRegions sets the country fallback order for quiz phone normalization.
func WithRegions(regions []string) Option {
	return func(h *Handler) { h.regions = regions }
}

// WithAllowedOrigins sets the CORS allowlist for browser-originated posts.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) { h.origins = origins }
}

// NewHandler builds the webhook handler.
func NewHandler(resolver Resolver, store lead.Store, opts ...Option) *Handler {
	h := &Handler{
		resolver: resolver,
		store:    store,
		regions:  phone.DefaultRegions,
		origins:  []string{"*"},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router assembles the chi routing tree.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", h.handleHealth)
	r.Post("/webhooks/whatsapp", h.handleInbound)
	r.Post("/webhooks/quiz", h.handleQuiz)

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInbound resolves a vendor callback to a stored lead. Unknown senders
// get a typed 404 so the automation platform can branch to a capture flow.
func (h *Handler) handleInbound(w http.ResponseWriter, r *http.Request) {
	var payload InboundPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_json"})
		return
	}

	raw := payload.RawPhone()
	if raw == "" && payload.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing_identity"})
		return
	}

	result := h.resolver.Resolve(r.Context(), lead.Input{Phone: raw, Email: payload.Email})
	if result.Lead == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":     "lead_not_found",
			"method":    result.Method,
			"canonical": result.Canonical,
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleQuiz upserts a lead from a funnel submission. Quiz posts are the one
// entry point where a bad number is rejected outright instead of matched
// fuzzily, so the stored phone is always canonical.
func (h *Handler) handleQuiz(w http.ResponseWriter, r *http.Request) {
	var sub QuizSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_json"})
		return
	}

	canonical, err := phone.Normalize(sub.Phone, h.regions...)
	if err != nil {
		zap.L().Debug("quiz submission with unusable phone",
			zap.String("raw", sub.Phone),
			zap.Error(err),
		)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": "invalid_phone",
			"raw":   sub.Phone,
		})
		return
	}
	if h.denylist.Contains(canonical) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": "denylisted_phone",
			"raw":   sub.Phone,
		})
		return
	}

	l := &lead.Lead{
		Phone:  canonical,
		Email:  sub.Email,
		Name:   sub.Name,
		Source: lead.SourceQuiz,
		Tags:   sub.Tags,
	}
	if err := h.store.UpsertLead(r.Context(), l); err != nil {
		zap.L().Error("quiz lead upsert failed", zap.String("phone", canonical), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "store_failure"})
		return
	}

	zap.L().Info("quiz lead upserted",
		zap.String("id", l.ID),
		zap.String("phone", canonical),
	)
	writeJSON(w, http.StatusCreated, l)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}
