package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound means no profile row exists for the id.
	ErrNotFound = errors.New("profile not found")
	// ErrCanceled means the lookup was aborted before the backend answered.
	ErrCanceled = errors.New("profile request canceled")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("profile backend unavailable")
	// ErrInvalidRow is returned by writers for rows without an id.
	ErrInvalidRow = errors.New("invalid profile row")
)

// Row is the stored profile record.
type Row struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	FullName   string    `json:"full_name"`
	Phone      string    `json:"phone"`
	Currency   string    `json:"currency"`
	CountryID  string    `json:"country_id"`
	IsVerified bool      `json:"is_verified"`
	IsApproved bool      `json:"is_approved"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Store looks up a single profile row by subject id.
type Store interface {
	GetProfileByID(ctx context.Context, id string) (*Row, error)
}

// Writer materializes profile rows.
type Writer interface {
	PutProfile(ctx context.Context, row Row) error
}

// IsCanceled reports whether err means the request itself was aborted.
// Typed signals win; the message check covers backends that only surface text.
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "abort") || strings.Contains(msg, "cancel")
}

// classify maps transport errors onto the package sentinels.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	default:
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
}
