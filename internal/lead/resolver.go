package lead

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/harmonia-saude/leadops-cli/internal/phone"
)

// MatchMethod identifies the strategy that produced a match.
type MatchMethod string

// Match methods, in decreasing order of confidence.
const (
	MethodExact         MatchMethod = "exact"
	MethodEmailFallback MatchMethod = "email-fallback"
	MethodSuffix9       MatchMethod = "suffix-9"
	MethodSuffix8       MatchMethod = "suffix-8"
	MethodNotFound      MatchMethod = "not-found"
)

// MatchResult is the outcome of one resolution. PhoneConfidence is true only
// for exact canonical matches; callers must treat every other match as
// probabilistic and not assume the matched lead's phone equals the input.
type MatchResult struct {
	Lead            *Lead       `json:"lead,omitempty"`
	Method          MatchMethod `json:"method"`
	PhoneConfidence bool        `json:"phone_match_confidence"`
	Canonical       string      `json:"canonical,omitempty"`
	Candidates      int         `json:"candidates,omitempty"`
}

// Input carries the raw values extracted from a webhook payload or CLI flags.
type Input struct {
	Phone string
	Email string
}

// Resolver matches raw phone inputs to stored leads using a linear cascade
// of strategies in strictly decreasing order of confidence:
//
//  1. Exact canonical phone match
//  2. Case-insensitive email match
//  3. Last-9-digit suffix match
//  4. Last-8-digit suffix match (catches the mobile 9th-digit quirk: a legacy
//     10-digit row and its 11-digit form share their last 8 digits)
//
// Store failures and timeouts are per-strategy misses, never fatal; suffix
// ambiguity is resolved deterministically by taking the store's first
// (most-recently-updated) candidate and is always audited.
type Resolver struct {
	store        Store
	denylist     *phone.Denylist
	regions      []string
	suffixLimit  int
	queryTimeout time.Duration
	selfHeal     bool
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithRegions sets the ordered parse regions for normalization.
func WithRegions(regions ...string) ResolverOption {
	return func(r *Resolver) {
		if len(regions) > 0 {
			r.regions = regions
		}
	}
}

// WithDenylist installs a known-invalid number list; denylisted inputs skip
// every phone-based strategy.
func WithDenylist(d *phone.Denylist) ResolverOption {
	return func(r *Resolver) { r.denylist = d }
}

// WithSuffixLimit caps the candidate count fetched by suffix strategies.
func WithSuffixLimit(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.suffixLimit = n
		}
	}
}

// WithQueryTimeout bounds each store query within a resolution.
func WithQueryTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.queryTimeout = d
		}
	}
}

// WithSelfHeal enables rewriting a matched lead's non-canonical stored phone
// to the canonical form of the input after a non-exact match. The write is
// fire-and-forget and only ever tightens stored format quality.
func WithSelfHeal(enabled bool) ResolverOption {
	return func(r *Resolver) { r.selfHeal = enabled }
}

// NewResolver creates a resolver over the given store.
func NewResolver(store Store, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:        store,
		regions:      phone.DefaultRegions,
		suffixLimit:  5,
		queryTimeout: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve runs the strategy cascade and returns the first match. It never
// returns an error: normalization failure degrades to the fuzzy strategies,
// store failures degrade to the next strategy, and exhausting the cascade is
// the valid terminal state MethodNotFound.
func (r *Resolver) Resolve(ctx context.Context, in Input) MatchResult {
	denied := r.denylist.Contains(in.Phone)
	if denied {
		zap.L().Debug("resolve: denylisted input, skipping phone strategies",
			zap.String("phone", in.Phone),
		)
	}

	canonical := ""
	if in.Phone != "" && !denied {
		c, err := phone.Normalize(in.Phone, r.regions...)
		if err != nil {
			zap.L().Debug("resolve: normalization failed",
				zap.String("phone", in.Phone),
				zap.Error(err),
			)
		} else {
			canonical = c
		}
	}

	// Pass 1: exact canonical match. The only strategy callers may trust
	// for state-mutating actions without confirmation.
	if canonical != "" {
		l, err := r.findByPhone(ctx, canonical)
		if err != nil {
			zap.L().Warn("resolve: exact lookup failed", zap.Error(err))
		} else if l != nil {
			zap.L().Debug("resolve: matched exact",
				zap.String("lead_id", l.ID),
			)
			return MatchResult{Lead: l, Method: MethodExact, PhoneConfidence: true, Canonical: canonical}
		}
	}

	// Pass 2: email fallback. The stored phone may differ from the input.
	if in.Email != "" {
		l, err := r.findByEmail(ctx, in.Email)
		if err != nil {
			zap.L().Warn("resolve: email lookup failed", zap.Error(err))
		} else if l != nil {
			res := MatchResult{Lead: l, Method: MethodEmailFallback, Canonical: canonical}
			r.audit(ctx, in, res)
			r.heal(ctx, l, canonical)
			return res
		}
	}

	// Passes 3-4: suffix matches, longest suffix first. Skipped entirely for
	// inputs with fewer digits than the suffix length.
	if in.Phone != "" && !denied {
		for _, n := range []int{9, 8} {
			suffix := phone.LastDigits(in.Phone, n)
			if suffix == "" {
				continue
			}
			leads, err := r.findBySuffix(ctx, suffix)
			if err != nil {
				zap.L().Warn("resolve: suffix lookup failed",
					zap.Int("suffix_len", n),
					zap.Error(err),
				)
				continue
			}
			if len(leads) == 0 {
				continue
			}

			method := MethodSuffix9
			if n == 8 {
				method = MethodSuffix8
			}
			if len(leads) > 1 {
				zap.L().Warn("resolve: ambiguous suffix match, taking first",
					zap.String("suffix", suffix),
					zap.Int("candidates", len(leads)),
					zap.String("lead_id", leads[0].ID),
				)
			}
			res := MatchResult{
				Lead:       &leads[0],
				Method:     method,
				Canonical:  canonical,
				Candidates: len(leads),
			}
			r.audit(ctx, in, res)
			r.heal(ctx, res.Lead, canonical)
			return res
		}
	}

	return MatchResult{Method: MethodNotFound, Canonical: canonical}
}

func (r *Resolver) findByPhone(ctx context.Context, canonical string) (*Lead, error) {
	qctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	return r.store.FindByPhone(qctx, canonical)
}

func (r *Resolver) findByEmail(ctx context.Context, email string) (*Lead, error) {
	qctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	return r.store.FindByEmail(qctx, email)
}

func (r *Resolver) findBySuffix(ctx context.Context, suffix string) ([]Lead, error) {
	qctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()
	return r.store.FindByPhoneSuffix(qctx, suffix, r.suffixLimit)
}

// audit logs a non-exact match and records it in the persisted audit trail,
// fire-and-forget. The trail is the manual-review surface for misdelivered
// messages.
func (r *Resolver) audit(ctx context.Context, in Input, res MatchResult) {
	leadID := ""
	if res.Lead != nil {
		leadID = res.Lead.ID
	}
	zap.L().Info("resolve: non-exact match",
		zap.String("method", string(res.Method)),
		zap.String("input_phone", in.Phone),
		zap.String("canonical", res.Canonical),
		zap.String("lead_id", leadID),
		zap.Int("candidates", res.Candidates),
	)

	rec := &ResolutionRecord{
		InputPhone: in.Phone,
		InputEmail: in.Email,
		Canonical:  res.Canonical,
		Method:     res.Method,
		LeadID:     leadID,
		Candidates: res.Candidates,
	}
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.queryTimeout)
	go func() {
		defer cancel()
		if err := r.store.RecordResolution(bg, rec); err != nil {
			zap.L().Warn("resolve: audit record failed", zap.Error(err))
		}
	}()
}

// heal rewrites a matched lead's stored phone to the canonical form of the
// input. Only runs when enabled, and only from non-canonical to canonical:
// format quality is tightened, never loosened, so repeated heals converge.
func (r *Resolver) heal(ctx context.Context, l *Lead, canonical string) {
	if !r.selfHeal || l == nil || canonical == "" {
		return
	}
	if l.Phone == canonical || phone.IsCanonical(l.Phone) {
		return
	}

	id, stored := l.ID, l.Phone
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.queryTimeout)
	go func() {
		defer cancel()
		if err := r.store.UpdatePhone(bg, id, canonical); err != nil {
			zap.L().Warn("resolve: self-heal update failed",
				zap.String("lead_id", id),
				zap.Error(err),
			)
			return
		}
		zap.L().Info("resolve: self-healed stored phone",
			zap.String("lead_id", id),
			zap.String("from", stored),
			zap.String("to", canonical),
		)
	}()
}
