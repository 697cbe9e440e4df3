// Package webhook exposes the HTTP surface for inbound vendor callbacks and
// quiz funnel submissions.
package webhook

// InboundPayload is the union of the message shapes the vendor sends.
// Different event types (and different vendor API versions) place the sender
// phone under different keys, so every known key is decoded and RawPhone
// picks the first one present.
type InboundPayload struct {
	Phone       string         `json:"phone"`
	From        string         `json:"from"`
	Number      string         `json:"number"`
	PhoneNumber string         `json:"phoneNumber"`
	Contact     InboundContact `json:"contact"`
	Email       string         `json:"email"`
	Name        string         `json:"name"`
	Message     string         `json:"message"`
}

// InboundContact is the nested contact block on contact-update events.
type InboundContact struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

// RawPhone returns the first populated phone field, in priority order.
// Returns "" when no field carries a number.
func (p InboundPayload) RawPhone() string {
	for _, candidate := range []string{p.Phone, p.From, p.Number, p.PhoneNumber, p.Contact.Phone} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// QuizSubmission is the funnel form post that creates or refreshes a lead.
type QuizSubmission struct {
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Phone string   `json:"phone"`
	Tags  []string `json:"tags"`
}
