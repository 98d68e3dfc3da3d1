package profile

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRESTStoreGetProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/profiles" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("apikey") != "anon" || r.Header.Get("Authorization") != "Bearer user-token" {
			t.Errorf("unexpected auth headers: %v", r.Header)
		}
		switch r.URL.Query().Get("id") {
		case "eq.u1":
			_, _ = w.Write([]byte(`[{"id":"u1","email":"a@b.com","role":"admin","full_name":null,"country_id":42,"is_verified":true,"created_at":"2024-05-01T10:00:00Z"}]`))
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	store, err := NewRESTStore(RESTConfig{BaseURL: srv.URL + "/", APIKey: "anon"}, srv.Client())
	if err != nil {
		t.Fatalf("NewRESTStore failed: %v", err)
	}
	store.AccessToken = func() string { return "user-token" }

	row, err := store.GetProfileByID(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetProfileByID failed: %v", err)
	}
	if row.Role != "admin" || row.CountryID != "42" || !row.IsVerified || row.FullName != "" {
		t.Fatalf("unexpected row: %+v", row)
	}
	if !row.CreatedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected created_at %v", row.CreatedAt)
	}

	if _, err := store.GetProfileByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRESTStoreServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"JWT expired"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	store, err := NewRESTStore(RESTConfig{BaseURL: srv.URL, APIKey: "anon"}, srv.Client())
	if err != nil {
		t.Fatalf("NewRESTStore failed: %v", err)
	}
	_, err = store.GetProfileByID(context.Background(), "u1")
	if !errors.Is(err, ErrUnavailable) || IsCanceled(err) {
		t.Fatalf("expected retryable unavailable error, got %v", err)
	}
}

func TestRESTStoreCanceled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	store, err := NewRESTStore(RESTConfig{BaseURL: srv.URL, APIKey: "anon"}, srv.Client())
	if err != nil {
		t.Fatalf("NewRESTStore failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err = store.GetProfileByID(ctx, "u1")
	if !errors.Is(err, ErrCanceled) {
		t.Fatalf("expected ErrCanceled, got %v", err)
	}
}

func TestNewRESTStoreValidatesURL(t *testing.T) {
	if _, err := NewRESTStore(RESTConfig{BaseURL: "::bad"}, nil); err == nil {
		t.Fatalf("expected url validation error")
	}
}
