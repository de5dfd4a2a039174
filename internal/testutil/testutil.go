// Package testutil builds in-memory backends and HTTP helpers for tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"opsboard/internal/audit"
	"opsboard/internal/database"
	"opsboard/internal/models"
	"opsboard/internal/store"
	"opsboard/internal/tables"
	"opsboard/internal/websocket"
)

// Clock is the fixed time stores built here report as now.
var Clock = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

// SetupTestDB opens a migrated in-memory SQLite client that is closed when
// the test ends.
func SetupTestDB(t *testing.T) *tables.Client {
	t.Helper()
	c, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test DB: %v", err)
	}
	t.Cleanup(func() { c.DB().Close() })
	if err := database.Migrate(context.Background(), c); err != nil {
		t.Fatalf("Failed to migrate test DB: %v", err)
	}
	return c
}

// SetupEmptyDB opens an in-memory client with no tables.
func SetupEmptyDB(t *testing.T) *tables.Client {
	t.Helper()
	c, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test DB: %v", err)
	}
	t.Cleanup(func() { c.DB().Close() })
	return c
}

// NewStore returns a store over c with caching disabled and the clock
// pinned to Clock.
func NewStore(t *testing.T, c *tables.Client) *store.Store {
	t.Helper()
	st := store.New(database.NewBackend(c, c, zap.NewNop()), nil, zap.NewNop())
	st.Now = func() time.Time { return Clock }
	return st
}

// NewAudit returns an audit logger writing to c.
func NewAudit(c *tables.Client) *audit.Logger {
	return &audit.Logger{DB: c, Hub: websocket.NewHub(zap.NewNop()), Log: zap.NewNop()}
}

// Insert writes raw rows, failing the test on error.
func Insert(t *testing.T, c *tables.Client, table string, rows ...tables.Row) {
	t.Helper()
	if _, err := c.Insert(context.Background(), table, rows...); err != nil {
		t.Fatalf("insert into %s: %v", table, err)
	}
}

// JSONRequest builds a request with body marshalled as JSON.
func JSONRequest(method, path string, body interface{}) *http.Request {
	var buf []byte
	if body != nil {
		buf, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DecodeAPIResponse decodes an APIResponse from a ResponseRecorder.
func DecodeAPIResponse(t *testing.T, w *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var response models.APIResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode API response: %v", err)
	}
	return response
}

// AssertStatus checks that the HTTP status code matches expected.
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// DecodeEnvelope decodes an API response envelope and extracts the data.
func DecodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var resp models.APIResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode API envelope: %v", err)
	}
	dataBytes, _ := json.Marshal(resp.Data)
	if err := json.Unmarshal(dataBytes, v); err != nil {
		t.Fatalf("Failed to decode data from envelope: %v", err)
	}
}
