package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/eduverify/credtrust/storage/model"
)

const (
	defaultRedisOTPPrefix = "credtrust:otp:"
	redisTxRetries        = 16
)

// RedisOTPStorage implements model.OTPStore on top of redis. Sessions are
// stored msgpack encoded under one key per subject. Keys outlive the session
// expiry by Retention so that an expired code can still be told apart from a
// missing one.
type RedisOTPStorage struct {
	client    redis.UniversalClient
	prefix    string
	Retention time.Duration
}

// NewRedisOTPStorage returns a RedisOTPStorage using the passed client
func NewRedisOTPStorage(client redis.UniversalClient, retention time.Duration) *RedisOTPStorage {
	return &RedisOTPStorage{
		client:    client,
		prefix:    defaultRedisOTPPrefix,
		Retention: retention,
	}
}

func (s *RedisOTPStorage) key(subject string) string {
	return s.prefix + subject
}

// ttl is the key lifetime derived from the session's own issue and expiry
// times, so it follows the clock the session was issued with
func (s *RedisOTPStorage) ttl(session model.OTPSession) time.Duration {
	ttl := session.ExpiresAt.Sub(session.IssuedAt) + s.Retention
	if ttl <= 0 {
		ttl = time.Second
	}
	return ttl
}

func (s *RedisOTPStorage) read(ctx context.Context, c redis.Cmdable, subject string) (*model.OTPSession, error) {
	data, err := c.Get(ctx, s.key(subject)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.NotFoundErrorFmt("no otp session for '%s'", subject)
		}
		return nil, errors.Wrap(err, "failed to read otp session")
	}
	var session model.OTPSession
	if err = msgpack.Unmarshal(data, &session); err != nil {
		return nil, errors.Wrap(err, "failed to decode otp session")
	}
	return &session, nil
}

// Put stores the session, replacing the subject's previous session
func (s *RedisOTPStorage) Put(session model.OTPSession) error {
	data, err := msgpack.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "failed to encode otp session")
	}
	return errors.Wrap(
		s.client.Set(context.Background(), s.key(session.Subject), data, s.ttl(session)).Err(),
		"failed to store otp session",
	)
}

// Get returns the session of the subject
func (s *RedisOTPStorage) Get(subject string) (*model.OTPSession, error) {
	return s.read(context.Background(), s.client, subject)
}

// Delete removes the session of the subject
func (s *RedisOTPStorage) Delete(subject string) error {
	return errors.Wrap(s.client.Del(context.Background(), s.key(subject)).Err(), "failed to delete otp session")
}

// watch runs fn in an optimistic transaction on the subject's key and
// retries when the key changed concurrently
func (s *RedisOTPStorage) watch(subject string, fn func(ctx context.Context, tx *redis.Tx) error) error {
	ctx := context.Background()
	key := s.key(subject)
	for i := 0; i < redisTxRetries; i++ {
		err := s.client.Watch(
			ctx, func(tx *redis.Tx) error {
				return fn(ctx, tx)
			}, key,
		)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return errors.Errorf("otp session of '%s' is under heavy contention", subject)
}

// Consume deletes the session only if it is still the session with the passed id
func (s *RedisOTPStorage) Consume(subject string, id uuid.UUID) (consumed bool, err error) {
	err = s.watch(
		subject, func(ctx context.Context, tx *redis.Tx) error {
			consumed = false
			session, err := s.read(ctx, tx, subject)
			if err != nil {
				var notFound model.NotFoundError
				if errors.As(err, &notFound) {
					return nil
				}
				return err
			}
			if session.ID != id {
				return nil
			}
			_, err = tx.TxPipelined(
				ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, s.key(subject))
					return nil
				},
			)
			if err == nil {
				consumed = true
			}
			return err
		},
	)
	return
}

// RecordFailure increments the failed attempts of the session
func (s *RedisOTPStorage) RecordFailure(subject string, id uuid.UUID) (attempts int, err error) {
	err = s.watch(
		subject, func(ctx context.Context, tx *redis.Tx) error {
			session, err := s.read(ctx, tx, subject)
			if err != nil {
				return err
			}
			if session.ID != id {
				return model.NotFoundErrorFmt("no otp session for '%s'", subject)
			}
			session.Attempts++
			data, err := msgpack.Marshal(session)
			if err != nil {
				return errors.Wrap(err, "failed to encode otp session")
			}
			_, err = tx.TxPipelined(
				ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, s.key(subject), data, redis.KeepTTL)
					return nil
				},
			)
			if err == nil {
				attempts = session.Attempts
			}
			return err
		},
	)
	return
}
