package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nickyhof/ShopQL/core"
)

var ErrExpiredKey = errors.New("api key has expired")

// DefaultResources maps catalog tables to the shop database's table and
// REST resource names where they differ.
var DefaultResources = map[string]string{
	"cart":     "cart_items",
	"wishlist": "wishlist_items",
}

// DefaultOrders is the server-side ordering requested per table.
var DefaultOrders = map[string]string{
	"categories": "name.asc",
	"customers":  "created_at.desc",
	"orders":     "created_at.desc",
}

// RESTStore reads tables from a PostgREST endpoint such as Supabase's
// /rest/v1 API.
type RESTStore struct {
	baseURL   string
	apiKey    string
	role      string
	client    *http.Client
	resources map[string]string
	orders    map[string]string
}

type RESTOption func(*RESTStore)

func WithHTTPClient(client *http.Client) RESTOption {
	return func(s *RESTStore) { s.client = client }
}

// WithResource maps table to a differently named REST resource.
func WithResource(table, resource string) RESTOption {
	return func(s *RESTStore) { s.resources[strings.ToLower(table)] = resource }
}

// NewRESTStore validates apiKey and returns a store reading from baseURL.
// Keys that are JWTs must not be expired. Opaque keys are passed through.
func NewRESTStore(baseURL, apiKey string, opts ...RESTOption) (*RESTStore, error) {
	if baseURL == "" {
		return nil, errors.New("rest store: url is required")
	}
	if apiKey == "" {
		return nil, errors.New("rest store: api key is required")
	}

	role, err := inspectAPIKey(apiKey, time.Now())
	if err != nil {
		return nil, err
	}

	s := &RESTStore{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		role:      role,
		client:    &http.Client{},
		resources: make(map[string]string, len(DefaultResources)),
		orders:    DefaultOrders,
	}
	for table, resource := range DefaultResources {
		s.resources[table] = resource
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// inspectAPIKey reads the role claim of a JWT key without verifying its
// signature. The server does the verification.
func inspectAPIKey(apiKey string, now time.Time) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(apiKey, claims); err != nil {
		return "", nil
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil && exp.Before(now) {
		return "", fmt.Errorf("%w: expired at %s", ErrExpiredKey, exp.Format(time.RFC3339))
	}

	role, _ := claims["role"].(string)
	return role, nil
}

// Role is the role claim of the API key, empty for opaque keys.
func (s *RESTStore) Role() string {
	return s.role
}

func (s *RESTStore) resourceURL(table string) string {
	table = strings.ToLower(table)
	resource := resourceFor(s.resources, table)

	query := url.Values{}
	query.Set("select", "*")
	if order, ok := s.orders[table]; ok {
		query.Set("order", order)
	}

	return fmt.Sprintf("%s/rest/v1/%s?%s", s.baseURL, url.PathEscape(resource), query.Encode())
}

func (s *RESTStore) FetchAll(ctx context.Context, table string) ([]core.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.resourceURL(table), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", table, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: HTTP %d: %s", table, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var records []core.Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", table, err)
	}
	if records == nil {
		records = []core.Record{}
	}
	return records, nil
}
