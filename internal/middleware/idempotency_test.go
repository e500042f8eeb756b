package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuspay/backend/internal/auth"
	"github.com/campuspay/backend/internal/middleware"
	"github.com/campuspay/backend/internal/repository"
)

type memoryReplayStore struct {
	mu      sync.Mutex
	records map[string]*repository.ReplayRecord
}

func newMemoryReplayStore() *memoryReplayStore {
	return &memoryReplayStore{records: make(map[string]*repository.ReplayRecord)}
}

func (s *memoryReplayStore) Find(_ context.Context, key string, userID uuid.UUID) (*repository.ReplayRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[key+"/"+userID.String()], nil
}

func (s *memoryReplayStore) Save(_ context.Context, rec *repository.ReplayRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := rec.Key + "/" + rec.UserID.String()
	if _, exists := s.records[id]; !exists {
		s.records[id] = rec
	}
	return nil
}

func mutatingRequest(userID uuid.UUID, key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/wallet/topup", strings.NewReader(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req.WithContext(auth.ContextWithUserID(req.Context(), userID))
}

func TestIdempotency_ReplaysCachedResponse(t *testing.T) {
	store := newMemoryReplayStore()
	var calls int
	h := middleware.Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"success":true}`))
	}))

	userID := uuid.New()

	first := httptest.NewRecorder()
	h.ServeHTTP(first, mutatingRequest(userID, "key-1", `{"amount":"10.00"}`))
	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, 1, calls)

	// Same key, same body: cached response comes back, the handler
	// does not run again.
	second := httptest.NewRecorder()
	h.ServeHTTP(second, mutatingRequest(userID, "key-1", `{"amount":"10.00"}`))
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("X-Idempotent-Replayed"))
	assert.Equal(t, 1, calls)
}

func TestIdempotency_ConflictOnDifferentBody(t *testing.T) {
	store := newMemoryReplayStore()
	var calls int
	h := middleware.Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	userID := uuid.New()

	first := httptest.NewRecorder()
	h.ServeHTTP(first, mutatingRequest(userID, "key-1", `{"amount":"10.00"}`))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, mutatingRequest(userID, "key-1", `{"amount":"999.00"}`))
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotency_MissingKey(t *testing.T) {
	store := newMemoryReplayStore()
	var calls int
	h := middleware.Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, mutatingRequest(uuid.New(), "", `{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, calls)
}

func TestIdempotency_KeysAreScopedPerCaller(t *testing.T) {
	store := newMemoryReplayStore()
	var calls int
	h := middleware.Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	// Two callers sharing a key must not see each other's responses.
	for range 2 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, mutatingRequest(uuid.New(), "shared-key", `{"amount":"10.00"}`))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-Idempotent-Replayed"))
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotency_ReadsPassThrough(t *testing.T) {
	store := newMemoryReplayStore()
	var calls int
	h := middleware.Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil)
	req = req.WithContext(auth.ContextWithUserID(req.Context(), uuid.New()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, 1, calls)
}
