package local

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/storeauth/provider"
)

var errAccountNotFound = errors.New("account not found")

type account struct {
	ID           string
	Email        string
	PasswordHash string
	Metadata     map[string]any
	CreatedAt    time.Time
	ConfirmedAt  time.Time
}

func (a *account) confirmed() bool {
	return !a.ConfirmedAt.IsZero()
}

func (a *account) user() *provider.User {
	u := &provider.User{
		ID:           a.ID,
		Email:        a.Email,
		UserMetadata: cloneMetadata(a.Metadata),
		CreatedAt:    a.CreatedAt,
	}
	if a.confirmed() {
		at := a.ConfirmedAt
		u.EmailConfirmedAt = &at
	}
	if phone, ok := a.Metadata["phone"].(string); ok {
		u.Phone = phone
	}
	return u
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *Provider) accountKey(email string) string {
	return p.cfg.Prefix + ":acct:" + normalizeEmail(email)
}

func (p *Provider) refreshKey(token string) string {
	return p.cfg.Prefix + ":rt:" + token
}

func (p *Provider) loadAccount(ctx context.Context, email string) (*account, error) {
	fields, err := p.redis.HGetAll(ctx, p.accountKey(email)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 || fields["id"] == "" {
		return nil, errAccountNotFound
	}

	a := &account{
		ID:           fields["id"],
		Email:        fields["email"],
		PasswordHash: fields["password_hash"],
		CreatedAt:    unixField(fields["created_at"]),
		ConfirmedAt:  unixField(fields["confirmed_at"]),
	}
	if raw := fields["user_metadata"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &a.Metadata); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (p *Provider) saveAccount(ctx context.Context, a *account) error {
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return err
	}
	confirmed := ""
	if a.confirmed() {
		confirmed = strconv.FormatInt(a.ConfirmedAt.Unix(), 10)
	}
	return p.redis.HSet(ctx, p.accountKey(a.Email), map[string]any{
		"id":            a.ID,
		"email":         normalizeEmail(a.Email),
		"password_hash": a.PasswordHash,
		"user_metadata": string(meta),
		"created_at":    strconv.FormatInt(a.CreatedAt.Unix(), 10),
		"confirmed_at":  confirmed,
	}).Err()
}

func (p *Provider) setAccountField(ctx context.Context, email, field, value string) error {
	return p.redis.HSet(ctx, p.accountKey(email), field, value).Err()
}

type refreshRecord struct {
	Email     string `json:"email"`
	SessionID string `json:"session_id"`
}

func (p *Provider) saveRefresh(ctx context.Context, token string, rec refreshRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return p.redis.Set(ctx, p.refreshKey(token), data, p.cfg.RefreshTTL).Err()
}

// takeRefresh deletes and returns the record so each refresh token is used once.
func (p *Provider) takeRefresh(ctx context.Context, token string) (*refreshRecord, error) {
	data, err := p.redis.GetDel(ctx, p.refreshKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errAccountNotFound
		}
		return nil, err
	}
	var rec refreshRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func unixField(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return time.Time{}
	}
	return time.Unix(n, 0).UTC()
}

func cloneMetadata(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
