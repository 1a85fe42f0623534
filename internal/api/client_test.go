package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

type widget struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestClientDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/widgets/w-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("missing accept header")
		}
		json.NewEncoder(w).Encode(widget{ID: "w-1", Name: "gear"})
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client(), nil)
	got, err := Get[widget](context.Background(), c, "/api/widgets/w-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != "w-1" || got.Name != "gear" {
		t.Errorf("unexpected result %+v", got)
	}
}

func TestClientSendsJSONPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		var in widget
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		in.ID = "w-2"
		json.NewEncoder(w).Encode(in)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client(), nil)
	got, err := Post[widget](context.Background(), c, "/api/widgets", widget{Name: "sprocket"})
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if got.ID != "w-2" || got.Name != "sprocket" {
		t.Errorf("unexpected result %+v", got)
	}
}

func TestClientDecodesErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "name is required"})
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client(), nil)
	_, err := Post[widget](context.Background(), c, "/api/widgets", widget{})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.Status != http.StatusBadRequest {
		t.Errorf("unexpected status %d", apiErr.Status)
	}
	if apiErr.Message != "name is required" {
		t.Errorf("unexpected message %q", apiErr.Message)
	}
	if !apiErr.IsRejection() {
		t.Error("expected 4xx to count as rejection")
	}
}

func TestClientErrorWithoutEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client(), nil)
	_, err := Get[widget](context.Background(), c, "/api/widgets")
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.Status != http.StatusInternalServerError {
		t.Errorf("unexpected status %d", apiErr.Status)
	}
	if apiErr.Message != http.StatusText(http.StatusInternalServerError) {
		t.Errorf("unexpected message %q", apiErr.Message)
	}
	if apiErr.IsRejection() {
		t.Error("5xx must not count as rejection")
	}
}

func TestClientEmptyBodyDecodesToZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client(), nil)
	if _, err := Delete[struct{}](context.Background(), c, "/api/widgets/w-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
}

func TestClientCircuitOpensAfterServerFailures(t *testing.T) {
	var mu sync.Mutex
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client(), nil)
	for i := 0; i < 5; i++ {
		if _, err := Get[widget](context.Background(), c, "/api/widgets"); err == nil {
			t.Fatal("expected failure")
		}
	}

	_, err := Get[widget](context.Background(), c, "/api/widgets")
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if hits != 5 {
		t.Errorf("expected breaker to stop request 6, server saw %d", hits)
	}
}

func TestClientRejectionsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client(), nil)
	for i := 0; i < 10; i++ {
		_, err := Get[widget](context.Background(), c, "/api/widgets/nope")
		var apiErr *Error
		if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
			t.Fatalf("request %d: expected 404, got %v", i, err)
		}
	}
}
