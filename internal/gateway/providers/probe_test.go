package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProbe_ReachableServer(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProbe(srv.URL + "/v1")
	if !p.LocalAvailable(context.Background()) {
		t.Error("LocalAvailable = false for a reachable server")
	}
	if gotPath != "/" {
		t.Errorf("probe hit %q, want the server root", gotPath)
	}
}

func TestProbe_ErrorStatusIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewProbe(srv.URL)
	if p.LocalAvailable(context.Background()) {
		t.Error("LocalAvailable = true for a failing server")
	}
}

func TestProbe_ConnectionErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	p := NewProbe(srv.URL + "/v1")
	if p.LocalAvailable(context.Background()) {
		t.Error("LocalAvailable = true for an unreachable server")
	}
}
