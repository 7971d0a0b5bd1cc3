package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/edgesync/internal/core/domain"
)

type stubStore struct {
	latest *time.Time
	err    error
	delay  time.Duration
}

func (s *stubStore) LatestUpdate(ctx context.Context) (*time.Time, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.latest, s.err
}

func newTestServer(t *testing.T, store Store) *httptest.Server {
	t.Helper()
	s := NewServer(Config{AllowedOrigins: []string{"https://dashboard.example.com"}}, store)
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestLiveness(t *testing.T) {
	ts := newTestServer(t, &stubStore{})

	code, body := getJSON(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestStatus_Healthy(t *testing.T) {
	latest := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ts := newTestServer(t, &stubStore{latest: &latest})

	code, body := getJSON(t, ts.URL+"/status")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["database_connected"])
	assert.Equal(t, "2024-03-01T12:00:00Z", body["last_update"])
	assert.NotContains(t, body, "error")
}

func TestStatus_EmptyStore(t *testing.T) {
	ts := newTestServer(t, &stubStore{})

	code, body := getJSON(t, ts.URL+"/status")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "last_update")
	assert.Nil(t, body["last_update"])
}

func TestStatus_StoreDownWhileLivenessHealthy(t *testing.T) {
	store := &stubStore{
		err:   fmt.Errorf("%w: connection refused", domain.ErrPersistenceConnection),
		delay: 200 * time.Millisecond,
	}
	ts := newTestServer(t, store)

	type result struct {
		code int
		body map[string]any
		err  error
	}
	fetch := func(url string) result {
		resp, err := http.Get(url)
		if err != nil {
			return result{err: err}
		}
		defer resp.Body.Close()
		var body map[string]any
		err = json.NewDecoder(resp.Body).Decode(&body)
		return result{code: resp.StatusCode, body: body, err: err}
	}

	var wg sync.WaitGroup
	var statusRes, liveRes result
	wg.Add(2)
	go func() {
		defer wg.Done()
		statusRes = fetch(ts.URL + "/status")
	}()
	go func() {
		defer wg.Done()
		liveRes = fetch(ts.URL + "/")
	}()
	wg.Wait()

	require.NoError(t, statusRes.err)
	require.NoError(t, liveRes.err)
	liveCode, statusCode, statusBody := liveRes.code, statusRes.code, statusRes.body

	assert.Equal(t, http.StatusOK, liveCode)
	assert.Equal(t, http.StatusInternalServerError, statusCode)
	assert.Equal(t, "error", statusBody["status"])
	assert.Equal(t, false, statusBody["database_connected"])
	assert.Contains(t, statusBody["error"], "connection refused")
	assert.NotContains(t, statusBody, "last_update")
}

func TestStatus_QueryTimeout(t *testing.T) {
	s := NewServer(Config{QueryTimeout: 50 * time.Millisecond}, &stubStore{delay: time.Second})
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	code, body := getJSON(t, ts.URL+"/status")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, false, body["database_connected"])
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubStore{})

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, &stubStore{})

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/status", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://dashboard.example.com")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "https://dashboard.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServer_StartStop(t *testing.T) {
	s := NewServer(Config{Port: 0}, &stubStore{})

	done := make(chan error, 1)
	go func() { done <- s.Start() }()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	select {
	case err := <-done:
		assert.False(t, errors.Is(err, http.ErrServerClosed))
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
