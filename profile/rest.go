package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RESTConfig configures a [RESTStore].
type RESTConfig struct {
	// BaseURL is the project URL; requests go to BaseURL/rest/v1/<Table>.
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Table   string        `mapstructure:"table"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RESTStore reads profiles from a PostgREST-compatible endpoint.
type RESTStore struct {
	cfg    RESTConfig
	client *http.Client
	// AccessToken supplies the signed-in user's token for row-level security.
	// When nil or empty the API key is used as bearer.
	AccessToken func() string
}

// NewRESTStore returns a [RESTStore]. A nil client gets a default one with cfg.Timeout.
func NewRESTStore(cfg RESTConfig, client *http.Client) (*RESTStore, error) {
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid profile base url: %w", err)
	}
	if cfg.Table == "" {
		cfg.Table = "profiles"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &RESTStore{cfg: cfg, client: client}, nil
}

func (s *RESTStore) GetProfileByID(ctx context.Context, id string) (*Row, error) {
	q := url.Values{}
	q.Set("id", "eq."+id)
	q.Set("select", "*")
	q.Set("limit", "1")
	endpoint := s.cfg.BaseURL + "/rest/v1/" + url.PathEscape(s.cfg.Table) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", s.cfg.APIKey)
	bearer := s.cfg.APIKey
	if s.AccessToken != nil {
		if tok := s.AccessToken(); tok != "" {
			bearer = tok
		}
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, classify(err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var rows []restRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0].toRow(), nil
}

// restRow tolerates nulls in every column.
type restRow struct {
	ID         string     `json:"id"`
	Email      *string    `json:"email"`
	Role       *string    `json:"role"`
	FullName   *string    `json:"full_name"`
	Phone      *string    `json:"phone"`
	Currency   *string    `json:"currency"`
	CountryID  flexString `json:"country_id"`
	IsVerified *bool      `json:"is_verified"`
	IsApproved *bool      `json:"is_approved"`
	CreatedAt  *time.Time `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at"`
}

func (r restRow) toRow() *Row {
	out := &Row{ID: r.ID}
	out.Email = deref(r.Email)
	out.Role = deref(r.Role)
	out.FullName = deref(r.FullName)
	out.Phone = deref(r.Phone)
	out.Currency = deref(r.Currency)
	out.CountryID = string(r.CountryID)
	if r.IsVerified != nil {
		out.IsVerified = *r.IsVerified
	}
	if r.IsApproved != nil {
		out.IsApproved = *r.IsApproved
	}
	if r.CreatedAt != nil {
		out.CreatedAt = *r.CreatedAt
	}
	if r.UpdatedAt != nil {
		out.UpdatedAt = *r.UpdatedAt
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// flexString accepts a JSON string or number; country references are
// numeric in some schemas and uuids in others.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
