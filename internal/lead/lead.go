// Package lead owns the lead data model, its persistence boundary, and the
// phone-identity resolver that matches inbound vendor callbacks to stored
// leads.
package lead

import "time"

// Lead is a prospective customer record. The phone field holds canonical
// E.164 for rows written by this system; legacy rows may carry bare national
// numbers or junk, which is what the resolver's suffix strategies exist for.
type Lead struct {
	ID        string    `json:"id" db:"id"`
	Phone     string    `json:"phone" db:"phone"`
	Email     string    `json:"email,omitempty" db:"email"`
	Name      string    `json:"name,omitempty" db:"name"`
	Source    string    `json:"source,omitempty" db:"source"`
	Tags      []string  `json:"tags,omitempty" db:"tags"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Lead sources.
const (
	SourceQuiz    = "quiz"
	SourceImport  = "csv-import"
	SourceWebhook = "webhook"
)

// ResolutionRecord is one row of the resolution audit trail. Every non-exact
// match is recorded so misdelivered messages can be traced back to the fuzzy
// lookup that caused them.
type ResolutionRecord struct {
	ID         int64       `json:"id" db:"id"`
	InputPhone string      `json:"input_phone" db:"input_phone"`
	InputEmail string      `json:"input_email,omitempty" db:"input_email"`
	Canonical  string      `json:"canonical,omitempty" db:"canonical"`
	Method     MatchMethod `json:"method" db:"method"`
	LeadID     string      `json:"lead_id,omitempty" db:"lead_id"`
	Candidates int         `json:"candidates" db:"candidates"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
}
