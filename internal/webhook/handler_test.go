package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmonia-saude/leadops-cli/internal/lead"
	"github.com/harmonia-saude/leadops-cli/internal/phone"
)

func newTestHandler(t *testing.T, opts ...Option) (*Handler, lead.Store) {
	t.Helper()
	st, err := lead.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	res := lead.NewResolver(st)
	return NewHandler(res, st, opts...), st
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestQuiz_CreatesLead(t *testing.T) {
	h, st := newTestHandler(t)

	rec := postJSON(t, h.Router(), "/webhooks/quiz", QuizSubmission{
		Name:  "Ana Souza",
		Email: "ana@example.com",
		Phone: "(11) 99845-7676",
		Tags:  []string{"quiz-2026"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created lead.Lead
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "+5511998457676", created.Phone)
	assert.NotEmpty(t, created.ID)

	stored, err := st.FindByPhone(context.Background(), "+5511998457676")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Ana Souza", stored.Name)
	assert.Equal(t, lead.SourceQuiz, stored.Source)
}

func TestQuiz_InvalidPhone(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := postJSON(t, h.Router(), "/webhooks/quiz", QuizSubmission{Phone: "123"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_phone")
}

func TestQuiz_DenylistedPhone(t *testing.T) {
	h, _ := newTestHandler(t, WithDenylist(phone.NewDenylist([]string{"+5511998457676"})))

	rec := postJSON(t, h.Router(), "/webhooks/quiz", QuizSubmission{Phone: "11998457676"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "denylisted_phone")
}

func TestInbound_ExactMatch(t *testing.T) {
	h, st := newTestHandler(t)
	require.NoError(t, st.UpsertLead(context.Background(),
		&lead.Lead{Phone: "+5511998457676", Name: "Ana"}))

	rec := postJSON(t, h.Router(), "/webhooks/whatsapp", InboundPayload{From: "5511998457676"})
	require.Equal(t, http.StatusOK, rec.Code)

	var result lead.MatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, lead.MethodExact, result.Method)
	assert.True(t, result.PhoneConfidence)
	require.NotNil(t, result.Lead)
	assert.Equal(t, "Ana", result.Lead.Name)
}

func TestInbound_EmailFallback(t *testing.T) {
	h, st := newTestHandler(t)
	require.NoError(t, st.UpsertLead(context.Background(),
		&lead.Lead{Phone: "+5511998457676", Email: "ana@example.com"}))

	rec := postJSON(t, h.Router(), "/webhooks/whatsapp", InboundPayload{
		Phone: "not-a-number",
		Email: "ana@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result lead.MatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, lead.MethodEmailFallback, result.Method)
	assert.False(t, result.PhoneConfidence)
}

func TestInbound_UnknownSender(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := postJSON(t, h.Router(), "/webhooks/whatsapp", InboundPayload{From: "5511900000000"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "lead_not_found")
}

func TestInbound_MissingIdentity(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := postJSON(t, h.Router(), "/webhooks/whatsapp", InboundPayload{Message: "oi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing_identity")
}

func TestInbound_BadJSON(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
