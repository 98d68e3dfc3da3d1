package profile

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each profile as a Redis hash under prefix:profile:<id>.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore returns a [RedisStore]. An empty prefix defaults to "sfp".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "sfp"
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + ":profile:" + id
}

func (s *RedisStore) GetProfileByID(ctx context.Context, id string) (*Row, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, classify(err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	row := &Row{
		ID:         fields["id"],
		Email:      fields["email"],
		Role:       fields["role"],
		FullName:   fields["full_name"],
		Phone:      fields["phone"],
		Currency:   fields["currency"],
		CountryID:  fields["country_id"],
		IsVerified: fields["is_verified"] == "1",
		IsApproved: fields["is_approved"] == "1",
		CreatedAt:  parseUnix(fields["created_at"]),
		UpdatedAt:  parseUnix(fields["updated_at"]),
	}
	if row.ID == "" {
		row.ID = id
	}
	return row, nil
}

func (s *RedisStore) PutProfile(ctx context.Context, row Row) error {
	if strings.TrimSpace(row.ID) == "" {
		return ErrInvalidRow
	}
	now := time.Now()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = now
	}

	err := s.redis.HSet(ctx, s.key(row.ID), map[string]any{
		"id":          row.ID,
		"email":       row.Email,
		"role":        row.Role,
		"full_name":   row.FullName,
		"phone":       row.Phone,
		"currency":    row.Currency,
		"country_id":  row.CountryID,
		"is_verified": boolFlag(row.IsVerified),
		"is_approved": boolFlag(row.IsApproved),
		"created_at":  strconv.FormatInt(row.CreatedAt.Unix(), 10),
		"updated_at":  strconv.FormatInt(row.UpdatedAt.Unix(), 10),
	}).Err()
	return classify(err)
}

func boolFlag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func parseUnix(v string) time.Time {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return time.Time{}
	}
	return time.Unix(n, 0)
}
