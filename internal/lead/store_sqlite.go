package lead

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite, for local
// development and tests without a hosted database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given DSN and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "lead: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "lead: sqlite exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id         TEXT PRIMARY KEY,
	phone      TEXT NOT NULL UNIQUE,
	email      TEXT,
	name       TEXT,
	source     TEXT,
	tags       TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS leads_email_lower_idx ON leads (lower(email));

CREATE TABLE IF NOT EXISTS resolution_audit (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	input_phone TEXT,
	input_email TEXT,
	canonical   TEXT,
	method      TEXT NOT NULL,
	lead_id     TEXT,
	candidates  INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL
);
`

// Migrate creates the leads schema if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "lead: sqlite migrate")
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteLeadColumns = `id, phone, COALESCE(email,''), COALESCE(name,''), COALESCE(source,''), tags, created_at, updated_at`

// scanSQLiteLead decodes one row; timestamps are stored as RFC 3339 text and
// tags as a JSON array.
func scanSQLiteLead(scan func(dest ...any) error) (*Lead, error) {
	l := &Lead{}
	var tags, createdAt, updatedAt string
	err := scan(&l.ID, &l.Phone, &l.Email, &l.Name, &l.Source, &tags, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &l.Tags); err != nil {
		return nil, eris.Wrap(err, "lead: sqlite decode tags")
	}
	if l.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, eris.Wrap(err, "lead: sqlite parse created_at")
	}
	if l.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, eris.Wrap(err, "lead: sqlite parse updated_at")
	}
	return l, nil
}

func (s *SQLiteStore) queryOne(ctx context.Context, query string, args ...any) (*Lead, error) {
	row := s.db.QueryRowContext(ctx, query, args...)
	l, err := scanSQLiteLead(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return l, nil
}

func (s *SQLiteStore) queryMany(ctx context.Context, query string, args ...any) ([]Lead, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []Lead
	for rows.Next() {
		l, err := scanSQLiteLead(rows.Scan)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, rows.Err()
}

// FindByPhone fetches the lead whose phone equals the canonical string exactly.
func (s *SQLiteStore) FindByPhone(ctx context.Context, canonical string) (*Lead, error) {
	l, err := s.queryOne(ctx, `SELECT `+sqliteLeadColumns+` FROM leads WHERE phone = ?`, canonical)
	if err != nil {
		return nil, eris.Wrapf(err, "lead: sqlite find by phone %s", canonical)
	}
	return l, nil
}

// FindByEmail fetches the most recently updated lead with a case-insensitive
// email match.
func (s *SQLiteStore) FindByEmail(ctx context.Context, email string) (*Lead, error) {
	l, err := s.queryOne(ctx, `
		SELECT `+sqliteLeadColumns+` FROM leads
		WHERE lower(email) = lower(?)
		ORDER BY updated_at DESC
		LIMIT 1`, email)
	if err != nil {
		return nil, eris.Wrap(err, "lead: sqlite find by email")
	}
	return l, nil
}

// FindByPhoneSuffix returns leads whose phone ends in suffix, most recently
// updated first.
func (s *SQLiteStore) FindByPhoneSuffix(ctx context.Context, suffix string, limit int) ([]Lead, error) {
	if limit <= 0 {
		limit = 5
	}
	leads, err := s.queryMany(ctx, `
		SELECT `+sqliteLeadColumns+` FROM leads
		WHERE phone LIKE '%' || ?
		ORDER BY updated_at DESC
		LIMIT ?`, suffix, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "lead: sqlite find by suffix %s", suffix)
	}
	return leads, nil
}

// UpdatePhone rewrites a lead's phone field to canonical form.
func (s *SQLiteStore) UpdatePhone(ctx context.Context, id, canonical string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE leads SET phone = ?, updated_at = ? WHERE id = ?`,
		canonical, now(), id)
	if err != nil {
		return eris.Wrapf(err, "lead: sqlite update phone for %s", id)
	}
	return nil
}

// UpsertLead inserts a lead or fills in missing attributes on the existing
// row with the same canonical phone.
func (s *SQLiteStore) UpsertLead(ctx context.Context, l *Lead) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Tags == nil {
		l.Tags = []string{}
	}
	tags, err := json.Marshal(l.Tags)
	if err != nil {
		return eris.Wrap(err, "lead: sqlite encode tags")
	}

	ts := now()
	var created, updated string
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO leads (id, phone, email, name, source, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (phone) DO UPDATE SET
			email      = CASE WHEN excluded.email != '' THEN excluded.email ELSE leads.email END,
			name       = CASE WHEN excluded.name != '' THEN excluded.name ELSE leads.name END,
			updated_at = excluded.updated_at
		RETURNING id, created_at, updated_at`,
		l.ID, l.Phone, l.Email, l.Name, l.Source, string(tags), ts, ts,
	).Scan(&l.ID, &created, &updated)
	if err != nil {
		return eris.Wrap(err, "lead: sqlite upsert")
	}
	if l.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return eris.Wrap(err, "lead: sqlite parse created_at")
	}
	if l.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return eris.Wrap(err, "lead: sqlite parse updated_at")
	}
	return nil
}

// GetLead fetches a lead by id.
func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*Lead, error) {
	l, err := s.queryOne(ctx, `SELECT `+sqliteLeadColumns+` FROM leads WHERE id = ?`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "lead: sqlite get %s", id)
	}
	return l, nil
}

// ListLeads pages through all leads in id order using keyset pagination.
func (s *SQLiteStore) ListLeads(ctx context.Context, afterID string, limit int) ([]Lead, error) {
	if limit <= 0 {
		limit = 500
	}
	leads, err := s.queryMany(ctx, `
		SELECT `+sqliteLeadColumns+` FROM leads
		WHERE id > ?
		ORDER BY id
		LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "lead: sqlite list")
	}
	return leads, nil
}

// RecordResolution appends a row to the resolution audit trail.
func (s *SQLiteStore) RecordResolution(ctx context.Context, rec *ResolutionRecord) error {
	ts := now()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO resolution_audit (input_phone, input_email, canonical, method, lead_id, candidates, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		rec.InputPhone, rec.InputEmail, rec.Canonical, string(rec.Method), rec.LeadID, rec.Candidates, ts,
	).Scan(&rec.ID)
	if err != nil {
		return eris.Wrap(err, "lead: sqlite record resolution")
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, ts)
	return nil
}

// ListResolutions returns the most recent audit rows, newest first.
func (s *SQLiteStore) ListResolutions(ctx context.Context, limit int) ([]ResolutionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(input_phone,''), COALESCE(input_email,''), COALESCE(canonical,''),
		       method, COALESCE(lead_id,''), candidates, created_at
		FROM resolution_audit
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "lead: sqlite list resolutions")
	}
	defer rows.Close()

	var recs []ResolutionRecord
	for rows.Next() {
		var rec ResolutionRecord
		var method, createdAt string
		if err := rows.Scan(&rec.ID, &rec.InputPhone, &rec.InputEmail, &rec.Canonical,
			&method, &rec.LeadID, &rec.Candidates, &createdAt); err != nil {
			return nil, eris.Wrap(err, "lead: sqlite scan resolution")
		}
		rec.Method = MatchMethod(method)
		if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, eris.Wrap(err, "lead: sqlite parse created_at")
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "lead: sqlite iterate resolutions")
	}
	return recs, nil
}

// now returns the current UTC time as RFC 3339 text, the timestamp encoding
// used throughout the SQLite schema.
func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

var _ Store = (*SQLiteStore)(nil)
