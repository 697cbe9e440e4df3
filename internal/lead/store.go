package lead

import "context"

// Store defines the persistence boundary for leads and the resolution audit
// trail. Lookup queries are store-agnostic: FindByPhone is an exact match on
// the canonical form, FindByEmail is case-insensitive, and FindByPhoneSuffix
// returns candidates ordered most-recently-updated first.
type Store interface {
	// Resolution lookups
	FindByPhone(ctx context.Context, canonical string) (*Lead, error)
	FindByEmail(ctx context.Context, email string) (*Lead, error)
	FindByPhoneSuffix(ctx context.Context, suffix string, limit int) ([]Lead, error)

	// Mutations
	UpdatePhone(ctx context.Context, id, canonical string) error
	UpsertLead(ctx context.Context, l *Lead) error

	// Maintenance
	GetLead(ctx context.Context, id string) (*Lead, error)
	ListLeads(ctx context.Context, afterID string, limit int) ([]Lead, error)

	// Audit trail
	RecordResolution(ctx context.Context, rec *ResolutionRecord) error
	ListResolutions(ctx context.Context, limit int) ([]ResolutionRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
