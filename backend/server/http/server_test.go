package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func newTestServer(turnURL string) *httptest.Server {
	logger := zerolog.Nop()
	srv := NewServer(Config{
		Logger:             &logger,
		TurnCredentialsURL: turnURL,
		ListenAddr:         ":0",
	})
	return httptest.NewServer(srv.Handler)
}

func TestTurnCredentialsPassThrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apiKey") != "k123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"iceServers":[{"urls":"turn:relay.example.net:443"}]}`))
	}))
	defer upstream.Close()

	ts := newTestServer(upstream.URL + "/api/v1/turn/credentials?apiKey=k123")
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/turn")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	var payload struct {
		ICEServers []struct {
			URLs string `json:"urls"`
		} `json:"iceServers"`
	}
	if err = json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("response is not the upstream JSON: %v", err)
	}
	if len(payload.ICEServers) != 1 {
		t.Errorf("body not passed through verbatim: %s", body)
	}
}

func TestTurnCredentialsUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer upstream.Close()

	ts := newTestServer(upstream.URL)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/turn")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestTurnCredentialsNotConfigured(t *testing.T) {
	ts := newTestServer("")
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/turn")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer("")
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
