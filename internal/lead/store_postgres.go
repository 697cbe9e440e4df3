package lead

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/harmonia-saude/leadops-cli/internal/db"
)

// PostgresStore implements Store using pgx against the hosted Postgres
// (Supabase) lead database.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a PostgresStore over an existing pool. The store
// takes ownership of the pool; Close releases it.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying pool for subsystems that need direct query
// access (e.g., bulk import).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id         TEXT PRIMARY KEY,
	phone      TEXT NOT NULL,
	email      TEXT,
	name       TEXT,
	source     TEXT,
	tags       TEXT[] NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS leads_phone_idx ON leads (phone);
CREATE INDEX IF NOT EXISTS leads_email_lower_idx ON leads (lower(email));
CREATE INDEX IF NOT EXISTS leads_phone_suffix_idx ON leads (reverse(phone) text_pattern_ops);

CREATE TABLE IF NOT EXISTS resolution_audit (
	id          BIGSERIAL PRIMARY KEY,
	input_phone TEXT,
	input_email TEXT,
	canonical   TEXT,
	method      TEXT NOT NULL,
	lead_id     TEXT,
	candidates  INT NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS resolution_audit_created_idx ON resolution_audit (created_at DESC);
`

// Migrate creates the leads schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "lead: migrate")
	}
	return nil
}

// Close releases the underlying pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const leadColumns = `id, phone, COALESCE(email,''), COALESCE(name,''), COALESCE(source,''), tags, created_at, updated_at`

func leadDests(l *Lead) []any {
	return []any{&l.ID, &l.Phone, &l.Email, &l.Name, &l.Source, &l.Tags, &l.CreatedAt, &l.UpdatedAt}
}

func scanLeads(rows pgx.Rows) ([]Lead, error) {
	var leads []Lead
	for rows.Next() {
		var l Lead
		if err := rows.Scan(leadDests(&l)...); err != nil {
			return nil, eris.Wrap(err, "lead: scan row")
		}
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "lead: iterate rows")
	}
	return leads, nil
}

// FindByPhone fetches the lead whose phone equals the canonical string exactly.
func (s *PostgresStore) FindByPhone(ctx context.Context, canonical string) (*Lead, error) {
	l := &Lead{}
	err := s.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE phone=$1`, canonical).
		Scan(leadDests(l)...)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "lead: find by phone %s", canonical)
	}
	return l, nil
}

// FindByEmail fetches the most recently updated lead with a case-insensitive
// email match.
func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*Lead, error) {
	l := &Lead{}
	err := s.pool.QueryRow(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE lower(email) = lower($1)
		ORDER BY updated_at DESC
		LIMIT 1`, email).
		Scan(leadDests(l)...)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrap(err, "lead: find by email")
	}
	return l, nil
}

// FindByPhoneSuffix returns leads whose phone ends in suffix, most recently
// updated first. The reversed-prefix form lets Postgres use the
// leads_phone_suffix_idx index instead of a full scan.
func (s *PostgresStore) FindByPhoneSuffix(ctx context.Context, suffix string, limit int) ([]Lead, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE reverse(phone) LIKE reverse($1) || '%'
		ORDER BY updated_at DESC
		LIMIT $2`, suffix, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "lead: find by suffix %s", suffix)
	}
	defer rows.Close()
	return scanLeads(rows)
}

// UpdatePhone rewrites a lead's phone field to canonical form.
func (s *PostgresStore) UpdatePhone(ctx context.Context, id, canonical string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE leads SET phone=$2, updated_at=now() WHERE id=$1`, id, canonical)
	if err != nil {
		return eris.Wrapf(err, "lead: update phone for %s", id)
	}
	return nil
}

// UpsertLead inserts a lead or, when the canonical phone already exists,
// fills in missing attributes on the existing row. The caller's ID is used
// only for new rows; on conflict the stored row keeps its identity and l.ID
// is overwritten with it.
func (s *PostgresStore) UpsertLead(ctx context.Context, l *Lead) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Tags == nil {
		l.Tags = []string{}
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO leads (id, phone, email, name, source, tags)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (phone) DO UPDATE SET
			email      = COALESCE(NULLIF(EXCLUDED.email, ''), leads.email),
			name       = COALESCE(NULLIF(EXCLUDED.name, ''), leads.name),
			updated_at = now()
		RETURNING id, created_at, updated_at`,
		l.ID, l.Phone, l.Email, l.Name, l.Source, l.Tags,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return eris.Wrap(err, "lead: upsert")
	}
	return nil
}

// GetLead fetches a lead by id.
func (s *PostgresStore) GetLead(ctx context.Context, id string) (*Lead, error) {
	l := &Lead{}
	err := s.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id=$1`, id).
		Scan(leadDests(l)...)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "lead: get %s", id)
	}
	return l, nil
}

// ListLeads pages through all leads in id order using keyset pagination.
// Pass afterID="" for the first page.
func (s *PostgresStore) ListLeads(ctx context.Context, afterID string, limit int) ([]Lead, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE id > $1
		ORDER BY id
		LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "lead: list")
	}
	defer rows.Close()
	return scanLeads(rows)
}

// RecordResolution appends a row to the resolution audit trail.
func (s *PostgresStore) RecordResolution(ctx context.Context, rec *ResolutionRecord) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO resolution_audit (input_phone, input_email, canonical, method, lead_id, candidates)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		rec.InputPhone, rec.InputEmail, rec.Canonical, string(rec.Method), rec.LeadID, rec.Candidates,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return eris.Wrap(err, "lead: record resolution")
	}
	return nil
}

// ListResolutions returns the most recent audit rows, newest first.
func (s *PostgresStore) ListResolutions(ctx context.Context, limit int) ([]ResolutionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, COALESCE(input_phone,''), COALESCE(input_email,''), COALESCE(canonical,''),
		       method, COALESCE(lead_id,''), candidates, created_at
		FROM resolution_audit
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "lead: list resolutions")
	}
	defer rows.Close()

	var recs []ResolutionRecord
	for rows.Next() {
		var rec ResolutionRecord
		var method string
		if err := rows.Scan(&rec.ID, &rec.InputPhone, &rec.InputEmail, &rec.Canonical,
			&method, &rec.LeadID, &rec.Candidates, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "lead: scan resolution")
		}
		rec.Method = MatchMethod(method)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "lead: iterate resolutions")
	}
	return recs, nil
}

var _ Store = (*PostgresStore)(nil)
