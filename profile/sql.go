package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Placeholder is the bind-parameter style of a database/sql driver.
type Placeholder uint8

const (
	// PlaceholderDollar rewrites parameters to $1, $2, ... (pgx, lib/pq).
	PlaceholderDollar Placeholder = iota
	// PlaceholderQuestion keeps ? parameters (sqlite, mysql).
	PlaceholderQuestion
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

const profileColumns = "id, email, role, full_name, phone, currency, country_id, is_verified, is_approved, created_at, updated_at"

// SQLStore reads and upserts profile rows in a relational table.
type SQLStore struct {
	db          *sql.DB
	table       string
	placeholder Placeholder
}

// NewSQLStore returns a [SQLStore] over table. Register the driver first,
// e.g. import _ "github.com/jackc/pgx/v5/stdlib" and open with "pgx".
func NewSQLStore(db *sql.DB, table string, placeholder Placeholder) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("nil database handle")
	}
	if table == "" {
		table = "profiles"
	}
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid profile table name %q", table)
	}
	return &SQLStore{db: db, table: table, placeholder: placeholder}, nil
}

func (s *SQLStore) rebind(query string) string {
	if s.placeholder != PlaceholderDollar {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (s *SQLStore) GetProfileByID(ctx context.Context, id string) (*Row, error) {
	query := s.rebind("SELECT " + profileColumns + " FROM " + s.table + " WHERE id = ? LIMIT 1")

	var (
		row                                         Row
		email, role, fullName, phone, currency, cid sql.NullString
		verified, approved                          sql.NullBool
		createdAt, updatedAt                        sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&row.ID, &email, &role, &fullName, &phone, &currency, &cid,
		&verified, &approved, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, classify(err)
	}

	row.Email = email.String
	row.Role = role.String
	row.FullName = fullName.String
	row.Phone = phone.String
	row.Currency = currency.String
	row.CountryID = cid.String
	row.IsVerified = verified.Bool
	row.IsApproved = approved.Bool
	row.CreatedAt = createdAt.Time
	row.UpdatedAt = updatedAt.Time
	return &row, nil
}

// PutProfile inserts row or updates every column of an existing row.
func (s *SQLStore) PutProfile(ctx context.Context, row Row) error {
	if strings.TrimSpace(row.ID) == "" {
		return ErrInvalidRow
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = now
	}

	query := s.rebind("INSERT INTO " + s.table + " (" + profileColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) " +
		"ON CONFLICT (id) DO UPDATE SET email = excluded.email, role = excluded.role, full_name = excluded.full_name, " +
		"phone = excluded.phone, currency = excluded.currency, country_id = excluded.country_id, " +
		"is_verified = excluded.is_verified, is_approved = excluded.is_approved, updated_at = excluded.updated_at")

	_, err := s.db.ExecContext(ctx, query,
		row.ID, row.Email, row.Role, row.FullName, row.Phone, row.Currency, row.CountryID,
		row.IsVerified, row.IsApproved, row.CreatedAt, row.UpdatedAt,
	)
	return classify(err)
}
