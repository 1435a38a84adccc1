package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djec2006-hash/News-Flow-sub001/internal/models"
	"github.com/djec2006-hash/News-Flow-sub001/internal/service"
)

type fakeAccounts struct {
	user *models.UserAccount
	err  error
}

func (f *fakeAccounts) FindByToken(_ context.Context, token string) (*models.UserAccount, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.user != nil && token == "good-token" {
		return f.user, nil
	}
	return nil, nil
}

type fakeGenerator struct {
	result *service.GenerateResult
	err    error
	extra  string
}

func (f *fakeGenerator) Generate(_ context.Context, _ *models.UserAccount, extraInstructions string) (*service.GenerateResult, error) {
	f.extra = extraInstructions
	return f.result, f.err
}

type fakeReader struct {
	flow  *models.Flow
	flows []models.Flow
	err   error
}

func (f *fakeReader) GetByID(context.Context, int64) (*models.Flow, error) {
	return f.flow, f.err
}

func (f *fakeReader) ListByUser(context.Context, int64, int) ([]models.Flow, error) {
	return f.flows, f.err
}

type fakeUsage struct {
	count, limit int
	err          error
}

func (f *fakeUsage) Usage(context.Context, *models.UserAccount) (int, int, error) {
	return f.count, f.limit, f.err
}

type fakePinger struct {
	err error
}

func (f *fakePinger) PingContext(context.Context) error { return f.err }

type serverFakes struct {
	accounts *fakeAccounts
	flows    *fakeGenerator
	reader   *fakeReader
	usage    *fakeUsage
	db       *fakePinger
}

func newTestServer(f serverFakes) *Server {
	if f.accounts == nil {
		f.accounts = &fakeAccounts{user: &models.UserAccount{ID: 7, PlanTier: models.PlanBasic, CreditBalance: 3}}
	}
	if f.flows == nil {
		f.flows = &fakeGenerator{}
	}
	if f.reader == nil {
		f.reader = &fakeReader{}
	}
	if f.usage == nil {
		f.usage = &fakeUsage{}
	}
	if f.db == nil {
		f.db = &fakePinger{}
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(":0", log, f.accounts, f.flows, f.reader, f.usage, f.db)
}

func doRequest(s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(serverFakes{})

	rec := doRequest(s, http.MethodPost, "/flows", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHENTICATED", decodeBody(t, rec)["code"])

	rec = doRequest(s, http.MethodPost, "/flows", "bad-token", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHENTICATED", decodeBody(t, rec)["code"])
}

func TestGenerateFlowSaved(t *testing.T) {
	gen := &fakeGenerator{result: &service.GenerateResult{
		ID:      42,
		Summary: "today's digest",
		Body:    "## Introduction\n\n...",
		Saved:   true,
		Elapsed: 12 * time.Second,
	}}
	s := newTestServer(serverFakes{flows: gen})

	rec := doRequest(s, http.MethodPost, "/flows", "good-token", `{"extra_instructions": "be brief"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(42), body["id"])
	assert.Equal(t, "today's digest", body["summary"])
	assert.Equal(t, float64(12), body["elapsed_time_seconds"])
	assert.NotContains(t, body, "warning")
	assert.NotContains(t, body, "sections")
	assert.Equal(t, "be brief", gen.extra)
}

func TestGenerateFlowDegraded(t *testing.T) {
	gen := &fakeGenerator{result: &service.GenerateResult{
		Summary:  "today's digest",
		Body:     "## Introduction\n\n...",
		Sections: []models.FlowSection{{Title: "Introduction", Content: "...", Sentiment: models.SentimentNeutral}},
		Sources:  []string{"reuters.com"},
		Saved:    false,
		Warning:  "not saved",
	}}
	s := newTestServer(serverFakes{flows: gen})

	rec := doRequest(s, http.MethodPost, "/flows", "good-token", "")

	// Still success-shaped, never an error code.
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "not saved", body["warning"])
	assert.Equal(t, "today's digest", body["summary"])
	assert.Len(t, body["sections"], 1)
	assert.Equal(t, []any{"reuters.com"}, body["sources"])
	assert.NotContains(t, body, "id")
}

func TestGenerateFlowErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        *service.FlowError
		wantStatus int
	}{
		{"limit reached", &service.FlowError{Code: service.CodeLimitReached, Count: 7, Limit: 7}, http.StatusTooManyRequests},
		{"credits", &service.FlowError{Code: service.CodeCreditsExceeded}, http.StatusPaymentRequired},
		{"no topics", &service.FlowError{Code: service.CodeNoActiveTopics}, http.StatusUnprocessableEntity},
		{"no sections", &service.FlowError{Code: service.CodeNoSectionsGenerated}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(serverFakes{flows: &fakeGenerator{err: tt.err}})

			rec := doRequest(s, http.MethodPost, "/flows", "good-token", "")

			require.Equal(t, tt.wantStatus, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tt.err.Code, body["code"])
			if tt.err.Count > 0 {
				assert.Equal(t, float64(tt.err.Count), body["count"])
				assert.Equal(t, float64(tt.err.Limit), body["limit"])
			}
		})
	}
}

func TestGenerateFlowInternalError(t *testing.T) {
	s := newTestServer(serverFakes{flows: &fakeGenerator{err: errors.New("boom")}})

	rec := doRequest(s, http.MethodPost, "/flows", "good-token", "")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom", "internal details stay out of responses")
}

func TestGetFlowOwnership(t *testing.T) {
	reader := &fakeReader{flow: &models.Flow{ID: 9, OwnerID: 99, Summary: "someone else's"}}
	s := newTestServer(serverFakes{reader: reader})

	rec := doRequest(s, http.MethodGet, "/flows/9", "good-token", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetFlow(t *testing.T) {
	reader := &fakeReader{flow: &models.Flow{
		ID:            9,
		OwnerID:       7,
		Summary:       "digest",
		Body:          "body",
		TopicsCovered: "Markets, Tech",
		Document:      models.FlowDocument{TopicsCovered: "Markets, Tech"},
	}}
	s := newTestServer(serverFakes{reader: reader})

	rec := doRequest(s, http.MethodGet, "/flows/9", "good-token", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(9), body["id"])
	assert.Equal(t, "Markets, Tech", body["topics_covered"])
}

func TestListFlows(t *testing.T) {
	reader := &fakeReader{flows: []models.Flow{
		{ID: 2, OwnerID: 7, Summary: "newest", CreatedAt: time.Now()},
		{ID: 1, OwnerID: 7, Summary: "older", CreatedAt: time.Now().Add(-time.Hour)},
	}}
	s := newTestServer(serverFakes{reader: reader})

	rec := doRequest(s, http.MethodGet, "/flows", "good-token", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var items []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 2)
	assert.Equal(t, float64(2), items[0]["id"])
}

func TestUsage(t *testing.T) {
	s := newTestServer(serverFakes{usage: &fakeUsage{count: 3, limit: 7}})

	rec := doRequest(s, http.MethodGet, "/usage", "good-token", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(3), body["week_count"])
	assert.Equal(t, float64(7), body["week_limit"])
	assert.Equal(t, float64(3), body["credit_balance"])
	assert.Equal(t, "basic", body["plan_tier"])
}

func TestHealthz(t *testing.T) {
	s := newTestServer(serverFakes{})
	rec := doRequest(s, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	s = newTestServer(serverFakes{db: &fakePinger{err: errors.New("down")}})
	rec = doRequest(s, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
