package authflow

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pendingRecordVersionV1 = 1

	contactMarkerPrefix  = "ctc"
	signedUpMarkerPrefix = "sgn"

	// Terminal markers outlive the flow but not the account lifetime; they
	// exist for downstream consumers of "last known contact" and "signed
	// up this session".
	markerTTL = 24 * time.Hour
)

var (
	errPendingNotFound         = errors.New("pending record not found")
	errPendingDecodeFailed     = errors.New("pending record decode failed")
	errPendingRedisUnavailable = errors.New("pending redis unavailable")
)

// pendingStore persists the Pending Session Record across the email step's
// full-page redirect. Staleness is enforced twice: the redis TTL and the
// IssuedAt embedded in the record, so a byte-for-byte restore of the key
// cannot resurrect a stale attempt.
type pendingStore struct {
	redis  *redis.Client
	prefix string
	window time.Duration

	now func() time.Time
}

func newPendingStore(redisClient *redis.Client, cfg SessionConfig) *pendingStore {
	return &pendingStore{
		redis:  redisClient,
		prefix: cfg.RedisPrefix,
		window: cfg.FreshnessWindow,
		now:    time.Now,
	}
}

func (s *pendingStore) key(scopeID string) string {
	return s.prefix + ":" + scopeID
}

// Save writes the record under the flow scope. A fresh IssuedAt is stamped
// unless preserveIssuedAt is set (the redirect-bounce resume path), in
// which case the TTL is the remainder of the original freshness window.
func (s *pendingStore) Save(ctx context.Context, scopeID string, record *PendingSession, preserveIssuedAt bool) error {
	now := s.now()
	ttl := s.window
	if preserveIssuedAt && record.IssuedAt > 0 {
		remaining := s.window - now.Sub(time.Unix(record.IssuedAt, 0))
		if remaining <= 0 {
			return errPendingNotFound
		}
		ttl = remaining
	} else {
		record.IssuedAt = now.Unix()
	}

	encoded, err := encodePendingSession(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(scopeID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errPendingRedisUnavailable, err)
	}
	return nil
}

// Load returns the stored record, or errPendingNotFound when no record
// exists, it fails to decode, or its freshness window has elapsed. A stale
// or undecodable record is deleted on the way out.
func (s *pendingStore) Load(ctx context.Context, scopeID string) (*PendingSession, error) {
	data, err := s.redis.Get(ctx, s.key(scopeID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errPendingNotFound
		}
		return nil, fmt.Errorf("%w: %v", errPendingRedisUnavailable, err)
	}

	record, err := decodePendingSession(data)
	if err != nil {
		_ = s.redis.Del(ctx, s.key(scopeID)).Err()
		return nil, errPendingNotFound
	}

	if s.now().Sub(time.Unix(record.IssuedAt, 0)) >= s.window {
		_ = s.redis.Del(ctx, s.key(scopeID)).Err()
		return nil, errPendingNotFound
	}
	return record, nil
}

// IsValid reports whether a fresh record exists for the scope.
func (s *pendingStore) IsValid(ctx context.Context, scopeID string) bool {
	_, err := s.Load(ctx, scopeID)
	return err == nil
}

// Clear describes the clear operation and its observable behavior.
func (s *pendingStore) Clear(ctx context.Context, scopeID string) error {
	if err := s.redis.Del(ctx, s.key(scopeID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errPendingRedisUnavailable, err)
	}
	return nil
}

// SetTerminalMarkers persists the last known contact number and the
// signed-up marker. Written only on entry to the token-issued state.
func (s *pendingStore) SetTerminalMarkers(ctx context.Context, scopeID, mobile string, signedUp bool) error {
	if err := s.redis.Set(ctx, contactMarkerPrefix+":"+scopeID, mobile, markerTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", errPendingRedisUnavailable, err)
	}
	if signedUp {
		if err := s.redis.Set(ctx, signedUpMarkerPrefix+":"+scopeID, "1", markerTTL).Err(); err != nil {
			return fmt.Errorf("%w: %v", errPendingRedisUnavailable, err)
		}
	}
	return nil
}

// ContactNumber describes the contactnumber operation and its observable behavior.
func (s *pendingStore) ContactNumber(ctx context.Context, scopeID string) (string, error) {
	mobile, err := s.redis.Get(ctx, contactMarkerPrefix+":"+scopeID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", errPendingRedisUnavailable, err)
	}
	return mobile, nil
}

// SignedUp describes the signedup operation and its observable behavior.
func (s *pendingStore) SignedUp(ctx context.Context, scopeID string) (bool, error) {
	_, err := s.redis.Get(ctx, signedUpMarkerPrefix+":"+scopeID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", errPendingRedisUnavailable, err)
	}
	return true, nil
}

func encodePendingSession(record *PendingSession) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(pendingRecordVersionV1)

	var flags byte
	if record.Credentials.MFAChallenge {
		flags |= 1 << 0
	}
	if record.WhatsAppOptIn {
		flags |= 1 << 1
	}
	buf.WriteByte(flags)

	if err := binary.Write(&buf, binary.BigEndian, record.IssuedAt); err != nil {
		return nil, err
	}

	for _, field := range []string{
		record.Credentials.Mobile,
		record.Credentials.Email,
		record.Credentials.OTPCode,
		record.Credentials.OTPID,
	} {
		if len(field) > 65535 {
			return nil, errors.New("pending record field too long")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		buf.WriteString(field)
	}

	return buf.Bytes(), nil
}

func decodePendingSession(data []byte) (*PendingSession, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, errPendingDecodeFailed
	}
	if version != pendingRecordVersionV1 {
		return nil, errPendingDecodeFailed
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, errPendingDecodeFailed
	}

	record := &PendingSession{
		WhatsAppOptIn: flags&(1<<1) != 0,
	}
	record.Credentials.MFAChallenge = flags&(1<<0) != 0

	if err := binary.Read(reader, binary.BigEndian, &record.IssuedAt); err != nil {
		return nil, errPendingDecodeFailed
	}

	fields := make([]string, 4)
	for i := range fields {
		var length uint16
		if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
			return nil, errPendingDecodeFailed
		}
		raw := make([]byte, length)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, errPendingDecodeFailed
		}
		fields[i] = string(raw)
	}
	record.Credentials.Mobile = fields[0]
	record.Credentials.Email = fields[1]
	record.Credentials.OTPCode = fields[2]
	record.Credentials.OTPID = fields[3]

	return record, nil
}
