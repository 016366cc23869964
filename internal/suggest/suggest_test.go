package suggest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestSuggestEmptyCart(t *testing.T) {
	client := NewClient("http://unused", zap.NewNop().Sugar())
	got := client.Suggest(context.Background(), nil)
	if len(got) != 0 {
		t.Fatalf("got = %v, want none for empty cart", got)
	}
}

func TestSuggestHappyPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/suggestions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req struct {
			Items []string `json:"items"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if len(req.Items) != 2 {
			t.Errorf("items = %v", req.Items)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"suggestions":["Café","Açúcar"]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop().Sugar())
	got := client.Suggest(context.Background(), []string{"Arroz", "Feijão"})
	if len(got) != 2 || got[0] != "Café" {
		t.Fatalf("got = %v", got)
	}
}

func TestSuggestCapsAtThree(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"suggestions":["a","b","c","d","e"]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop().Sugar())
	got := client.Suggest(context.Background(), []string{"x"})
	if len(got) != 3 {
		t.Fatalf("got %d suggestions, want capped at 3", len(got))
	}
}

func TestSuggestFallsBackOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop().Sugar())
	got := client.Suggest(context.Background(), []string{"Arroz"})
	if len(got) != 3 || got[0] != "Milk" {
		t.Fatalf("got = %v, want static fallback", got)
	}
}

func TestSuggestFallsBackOnBadPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop().Sugar())
	got := client.Suggest(context.Background(), []string{"Arroz"})
	if len(got) != 3 || got[0] != "Milk" {
		t.Fatalf("got = %v, want static fallback", got)
	}
}

func TestSuggestFallsBackWithoutServiceURL(t *testing.T) {
	client := NewClient("", zap.NewNop().Sugar())
	got := client.Suggest(context.Background(), []string{"Arroz"})
	if len(got) != 3 || got[2] != "Eggs" {
		t.Fatalf("got = %v, want static fallback", got)
	}
}
