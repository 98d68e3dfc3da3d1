package stores

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	codeRecordVersionV1 = 1
)

var (
	ErrCodeNotFound         = errors.New("one-time code not found")
	ErrCodeMismatch         = errors.New("one-time code mismatch")
	ErrCodeAttemptsExceeded = errors.New("one-time code attempts exceeded")
	ErrCodeRedisUnavailable = errors.New("one-time code redis unavailable")
)

// CodeRecord is a pending one-time code for an account.
type CodeRecord struct {
	UserID    string
	CodeHash  [32]byte
	ExpiresAt int64
	Attempts  uint16
}

// CodeStore persists [CodeRecord] values keyed by purpose and email.
type CodeStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewCodeStore(redisClient redis.UniversalClient, prefix string) *CodeStore {
	if prefix == "" {
		prefix = "sfc"
	}
	return &CodeStore{
		redis:  redisClient,
		prefix: prefix,
		now:    time.Now,
	}
}

// WithClock overrides the time source used for expiry checks.
func (s *CodeStore) WithClock(now func() time.Time) *CodeStore {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *CodeStore) key(purpose, email string) string {
	return s.prefix + ":" + purpose + ":" + strings.ToLower(strings.TrimSpace(email))
}

// Save stores record, replacing any pending code for the same purpose and email.
func (s *CodeStore) Save(ctx context.Context, purpose, email string, record *CodeRecord, ttl time.Duration) error {
	encoded, err := encodeCodeRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(purpose, email), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCodeRedisUnavailable, err)
	}
	return nil
}

// Consume checks providedHash against the pending record. A match deletes the
// record and returns it. A mismatch counts an attempt; reaching maxAttempts
// deletes the record and returns ErrCodeAttemptsExceeded.
func (s *CodeStore) Consume(
	ctx context.Context,
	purpose, email string,
	providedHash [32]byte,
	maxAttempts int,
) (*CodeRecord, error) {
	const maxRetries = 4
	key := s.key(purpose, email)

	for i := 0; i < maxRetries; i++ {
		var matched *CodeRecord

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return ErrCodeNotFound
				}
				return err
			}

			record, err := decodeCodeRecord(data)
			if err != nil {
				return err
			}

			del := func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			}

			now := s.now()
			if now.Unix() > record.ExpiresAt {
				if _, err := tx.TxPipelined(ctx, del); err != nil {
					return err
				}
				return ErrCodeNotFound
			}

			if subtle.ConstantTimeCompare(record.CodeHash[:], providedHash[:]) != 1 {
				record.Attempts++
				if maxAttempts > 0 && int(record.Attempts) >= maxAttempts {
					if _, err := tx.TxPipelined(ctx, del); err != nil {
						return err
					}
					return ErrCodeAttemptsExceeded
				}

				ttl := time.Unix(record.ExpiresAt, 0).Sub(now)
				if ttl <= 0 {
					if _, err := tx.TxPipelined(ctx, del); err != nil {
						return err
					}
					return ErrCodeNotFound
				}

				updated, err := encodeCodeRecord(record)
				if err != nil {
					return err
				}
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, updated, ttl)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrCodeMismatch
			}

			if _, err := tx.TxPipelined(ctx, del); err != nil {
				return err
			}
			matched = record
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, ErrCodeNotFound), errors.Is(err, ErrCodeMismatch), errors.Is(err, ErrCodeAttemptsExceeded):
				return nil, err
			default:
				return nil, fmt.Errorf("%w: %v", ErrCodeRedisUnavailable, err)
			}
		}

		return matched, nil
	}

	return nil, ErrCodeNotFound
}

// Delete drops any pending code for purpose and email.
func (s *CodeStore) Delete(ctx context.Context, purpose, email string) error {
	if err := s.redis.Del(ctx, s.key(purpose, email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCodeRedisUnavailable, err)
	}
	return nil
}

func encodeCodeRecord(record *CodeRecord) ([]byte, error) {
	if record == nil {
		return nil, errors.New("code record is nil")
	}
	var buf bytes.Buffer

	buf.WriteByte(codeRecordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.UserID) > 65535 {
		return nil, errors.New("code record user id too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UserID)
	buf.Write(record.CodeHash[:])

	return buf.Bytes(), nil
}

func decodeCodeRecord(data []byte) (*CodeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != codeRecordVersionV1 {
		return nil, errors.New("invalid code record version")
	}

	record := &CodeRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var userIDLen uint16
	if err := binary.Read(reader, binary.BigEndian, &userIDLen); err != nil {
		return nil, err
	}
	userID := make([]byte, userIDLen)
	if _, err := io.ReadFull(reader, userID); err != nil {
		return nil, err
	}
	record.UserID = string(userID)

	if _, err := io.ReadFull(reader, record.CodeHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
