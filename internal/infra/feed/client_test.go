package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vietddude/edgesync/internal/core/domain"
)

func newTestClient(url string) *Client {
	return NewClient(Config{
		URL:     url,
		APIKey:  "test-key",
		APIHost: "sportsbook-api2.p.rapidapi.com",
		Timeout: 2 * time.Second,
	})
}

func TestClient_FetchAdvantages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if got := r.URL.Query().Get("type"); got != "PLUS_EV_AVERAGE" {
			t.Errorf("expected type PLUS_EV_AVERAGE, got %q", got)
		}
		if got := r.Header.Get("x-rapidapi-key"); got != "test-key" {
			t.Errorf("expected api key header, got %q", got)
		}
		if got := r.Header.Get("x-rapidapi-host"); got != "sportsbook-api2.p.rapidapi.com" {
			t.Errorf("expected api host header, got %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"advantages":[{"key":"abc","type":"PLUS_EV","market":{"type":"moneyline","event":{"name":"A vs B"}},"outcomes":[{"payout":2.5}]}]}`))
	}))
	defer server.Close()

	advantages, err := newTestClient(server.URL).FetchAdvantages(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(advantages) != 1 {
		t.Fatalf("expected 1 advantage, got %d", len(advantages))
	}
	adv := advantages[0]
	if adv.Key == nil || *adv.Key != "abc" {
		t.Errorf("expected key abc, got %v", adv.Key)
	}
	if adv.Market == nil || adv.Market.Event == nil || *adv.Market.Event.Name != "A vs B" {
		t.Errorf("expected market event name to be decoded")
	}
	if len(adv.Outcomes) != 1 || *adv.Outcomes[0].Payout != 2.5 {
		t.Errorf("expected payout 2.5, got %+v", adv.Outcomes)
	}
}

func TestClient_FetchAdvantages_MissingKey(t *testing.T) {
	for _, body := range []string{`{}`, `{"advantages":null}`, `{"advantages":[]}`} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))

		advantages, err := newTestClient(server.URL).FetchAdvantages(context.Background())
		server.Close()

		if err != nil {
			t.Errorf("body %s: unexpected error: %v", body, err)
			continue
		}
		if advantages == nil || len(advantages) != 0 {
			t.Errorf("body %s: expected empty non-nil slice, got %v", body, advantages)
		}
	}
}

func TestClient_FetchAdvantages_DecodeError(t *testing.T) {
	for _, body := range []string{`<html>oops</html>`, `null`, `[1,2]`, `{"advantages":{"key":"x"}}`} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))

		_, err := newTestClient(server.URL).FetchAdvantages(context.Background())
		server.Close()

		if !errors.Is(err, domain.ErrDecode) {
			t.Errorf("body %s: expected ErrDecode, got %v", body, err)
		}
	}
}

func TestClient_FetchAdvantages_WrongTypedRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"advantages":[
			{"key":"good","type":"PLUS_EV","market":{"type":"moneyline","event":{"name":"A vs B"}},"outcomes":[{"payout":2.5}]},
			{"key":"bad","type":"PLUS_EV","market":{"type":"moneyline","event":{"name":"C vs D"}},"outcomes":[{"payout":"2.5"}]},
			{"key":5,"type":"PLUS_EV"},
			7
		]}`))
	}))
	defer server.Close()

	advantages, err := newTestClient(server.URL).FetchAdvantages(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(advantages) != 4 {
		t.Fatalf("expected 4 advantages, got %d", len(advantages))
	}

	good := advantages[0]
	if good.Invalid != nil {
		t.Errorf("expected good record to decode, got %v", good.Invalid)
	}
	if good.Key == nil || *good.Key != "good" {
		t.Errorf("expected key good, got %v", good.Key)
	}

	bad := advantages[1]
	if bad.Invalid == nil {
		t.Fatal("expected wrong-typed payout to mark the record invalid")
	}
	if bad.Invalid.Key != "bad" || bad.Key == nil || *bad.Key != "bad" {
		t.Errorf("expected key bad to be recovered, got %+v", bad.Invalid)
	}
	if bad.Invalid.Field != "outcomes.payout" {
		t.Errorf("expected field outcomes.payout, got %q", bad.Invalid.Field)
	}

	for i, adv := range advantages[2:] {
		if adv.Invalid == nil {
			t.Errorf("record %d: expected invalid record", i+2)
			continue
		}
		if adv.Invalid.Key != "" || adv.Key != nil {
			t.Errorf("record %d: expected no key, got %+v", i+2, adv.Invalid)
		}
	}
}

func TestClient_FetchAdvantages_HTTPStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchAdvantages(context.Background())

	var statusErr *domain.HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected HTTPStatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", statusErr.StatusCode)
	}
	if statusErr.RetryAfter != 7*time.Second {
		t.Errorf("expected retry after 7s, got %v", statusErr.RetryAfter)
	}
}

func TestClient_FetchAdvantages_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(url).FetchAdvantages(context.Background())
	if !errors.Is(err, domain.ErrNetwork) {
		t.Errorf("expected ErrNetwork, got %v", err)
	}
}

func TestClient_FetchAdvantages_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(Config{URL: server.URL, Timeout: 100 * time.Millisecond})
	_, err := client.FetchAdvantages(context.Background())
	if !errors.Is(err, domain.ErrNetwork) {
		t.Errorf("expected ErrNetwork on timeout, got %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d := parseRetryAfter(""); d != 0 {
		t.Errorf("expected 0, got %v", d)
	}
	if d := parseRetryAfter("30"); d != 30*time.Second {
		t.Errorf("expected 30s, got %v", d)
	}
	if d := parseRetryAfter("soon"); d != 0 {
		t.Errorf("expected 0 for garbage, got %v", d)
	}
}
