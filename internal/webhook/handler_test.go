package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Health(t *testing.T) {
	f := newFixture(t)
	router := NewHandler(f.ingestor, f.feed).Router()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandler_ProfileEventAcceptedThenDuplicate(t *testing.T) {
	f := newFixture(t)
	router := NewHandler(f.ingestor, f.feed).Router()

	rec := postJSON(t, router, "/webhook/profile", delivery("evt-1"))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var res Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, OutcomeProcessed, res.Outcome)

	// Replay returns 200 without reprocessing.
	rec = postJSON(t, router, "/webhook/profile", delivery("evt-1"))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
}

func TestHandler_ProfileEventWireFormat(t *testing.T) {
	f := newFixture(t)
	router := NewHandler(f.ingestor, f.feed).Router()

	body := `{
		"idempotencyKey": "evt-9",
		"eventType": "job_change",
		"person": {"profileId": "prof-1", "name": "Dana Reyes"},
		"oldValue": "Acme",
		"newValue": "Zenith"
	}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/profile", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	company, err := f.store.GetCompany(context.Background(), f.company.ID)
	require.NoError(t, err)
	assert.True(t, company.RerunNeeded)
}

func TestHandler_ProfileEventMissingKey(t *testing.T) {
	f := newFixture(t)
	router := NewHandler(f.ingestor, f.feed).Router()

	ev := delivery("")
	rec := postJSON(t, router, "/webhook/profile", ev)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_ProfileEventBadBody(t *testing.T) {
	f := newFixture(t)
	router := NewHandler(f.ingestor, f.feed).Router()

	req := httptest.NewRequest(http.MethodPost, "/webhook/profile", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_NotificationsFlow(t *testing.T) {
	f := newFixture(t)
	router := NewHandler(f.ingestor, f.feed).Router()

	// A critical delivery produces a pending notification.
	rec := postJSON(t, router, "/webhook/profile", delivery("evt-1"))
	require.Equal(t, http.StatusAccepted, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Equal(t, 1, listing.Count)

	// Acknowledge and the feed drains.
	rec = postJSON(t, router, "/notifications/"+f.person.ID+"/ack", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notifications", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Equal(t, 0, listing.Count)
}
