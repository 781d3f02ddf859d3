package store

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedKey(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("Failed to sign key: %v", err)
	}
	return token
}

func TestRESTStoreFetchAll(t *testing.T) {
	var gotPath, gotQuery, gotKey, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("apikey")
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[{"id":"o1","total":100,"items":[{"sku":"a"}]}]`))
	}))
	defer server.Close()

	s, err := NewRESTStore(server.URL+"/", "anon-key")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	records, err := s.FetchAll(context.Background(), "orders")
	if err != nil {
		t.Fatalf("Failed to fetch: %v", err)
	}

	if gotPath != "/rest/v1/orders" {
		t.Errorf("Expected path /rest/v1/orders, got %s", gotPath)
	}
	if gotQuery != "order=created_at.desc&select=%2A" {
		t.Errorf("Expected select and order params, got %s", gotQuery)
	}
	if gotKey != "anon-key" || gotAuth != "Bearer anon-key" {
		t.Errorf("Expected api key headers, got apikey=%q auth=%q", gotKey, gotAuth)
	}
	if len(records) != 1 || records[0]["total"] != 100.0 {
		t.Errorf("Expected one decoded record, got %v", records)
	}
	if items, ok := records[0]["items"].([]any); !ok || len(items) != 1 {
		t.Errorf("Expected items array, got %v", records[0]["items"])
	}
}

func TestRESTStoreResourceMapping(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Write([]byte(`null`))
	}))
	defer server.Close()

	s, _ := NewRESTStore(server.URL, "key", WithResource("products", "admin_products"))

	for _, table := range []string{"cart", "wishlist", "products"} {
		records, err := s.FetchAll(context.Background(), table)
		if err != nil {
			t.Fatalf("Failed to fetch %s: %v", table, err)
		}
		if records == nil || len(records) != 0 {
			t.Errorf("Expected empty non-nil records for null body, got %v", records)
		}
	}

	expected := []string{"/rest/v1/cart_items", "/rest/v1/wishlist_items", "/rest/v1/admin_products"}
	for i, path := range expected {
		if paths[i] != path {
			t.Errorf("Expected %s, got %s", path, paths[i])
		}
	}
}

func TestRESTStoreHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"permission denied"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	s, _ := NewRESTStore(server.URL, "key")

	_, err := s.FetchAll(context.Background(), "customers")
	if err == nil {
		t.Fatal("Expected error for 401 response")
	}
	if want := `fetch customers: HTTP 401: {"message":"permission denied"}`; err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
}

func TestRESTStoreContextTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	s, _ := NewRESTStore(server.URL, "key")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := s.FetchAll(ctx, "orders"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestRESTStoreAPIKey(t *testing.T) {
	if _, err := NewRESTStore("http://localhost", ""); err == nil {
		t.Error("Expected error for empty api key")
	}
	if _, err := NewRESTStore("", "key"); err == nil {
		t.Error("Expected error for empty url")
	}

	valid := signedKey(t, jwt.MapClaims{"role": "anon", "exp": time.Now().Add(time.Hour).Unix()})
	s, err := NewRESTStore("http://localhost", valid)
	if err != nil {
		t.Fatalf("Failed to create store with valid key: %v", err)
	}
	if s.Role() != "anon" {
		t.Errorf("Expected role anon, got %q", s.Role())
	}

	expired := signedKey(t, jwt.MapClaims{"role": "anon", "exp": time.Now().Add(-time.Hour).Unix()})
	if _, err := NewRESTStore("http://localhost", expired); !errors.Is(err, ErrExpiredKey) {
		t.Errorf("Expected ErrExpiredKey, got %v", err)
	}
}
