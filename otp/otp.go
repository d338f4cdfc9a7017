// Package otp implements one-time passcode step-up authentication.
//
// A subject (an email address or phone number) has at most one live
// session. Requesting a new code supersedes the previous one. Codes expire
// after a fixed TTL, checked against the server held expiry at verification
// time, and are accepted at most once.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/eduverify/credtrust/notify"
	"github.com/eduverify/credtrust/storage/model"
)

// Defaults
const (
	DefaultTTL         = 10 * time.Minute
	DefaultMaxAttempts = 5
	CodeLength         = 6
)

var codeSpace = big.NewInt(1_000_000)

// Protocol rejections of VerifyCode
var (
	ErrInvalidCode    = errors.New("invalid code")
	ErrExpired        = errors.New("code expired")
	ErrLocked         = errors.New("too many failed attempts; request a new code")
	ErrUnknownPurpose = errors.New("unknown otp purpose")
	ErrNoSubject      = errors.New("no subject given")
)

// Clock is the time source of an Authenticator
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Authenticator issues and checks one-time codes
type Authenticator struct {
	store       model.OTPStore
	notifier    notify.Notifier
	settings    model.KeyValueStore
	clock       Clock
	random      io.Reader
	ttl         time.Duration
	maxAttempts int
}

// Option configures an Authenticator
type Option func(*Authenticator)

// WithTTL sets the code lifetime
func WithTTL(ttl time.Duration) Option {
	return func(a *Authenticator) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// WithMaxAttempts sets the number of failed attempts after which a session
// is locked; 0 disables the cap
func WithMaxAttempts(n int) Option {
	return func(a *Authenticator) {
		if n >= 0 {
			a.maxAttempts = n
		}
	}
}

// WithSettings makes the Authenticator read max_attempts from the otp scope
// of the key-value store, overriding the configured value
func WithSettings(kv model.KeyValueStore) Option {
	return func(a *Authenticator) { a.settings = kv }
}

// WithClock sets the time source
func WithClock(c Clock) Option {
	return func(a *Authenticator) { a.clock = c }
}

// WithRandom sets the source of randomness for codes
func WithRandom(r io.Reader) Option {
	return func(a *Authenticator) { a.random = r }
}

// NewAuthenticator returns an Authenticator storing sessions in store and
// delivering codes through notifier
func NewAuthenticator(store model.OTPStore, notifier notify.Notifier, opts ...Option) *Authenticator {
	a := &Authenticator{
		store:       store,
		notifier:    notifier,
		clock:       systemClock{},
		random:      rand.Reader,
		ttl:         DefaultTTL,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// TTL returns the code lifetime
func (a *Authenticator) TTL() time.Duration {
	return a.ttl
}

// NormalizeSubject trims the subject and lower-cases email addresses
func NormalizeSubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if strings.Contains(subject, "@") {
		subject = strings.ToLower(subject)
	}
	return subject
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func codeMatches(session *model.OTPSession, code string) bool {
	return subtle.ConstantTimeCompare([]byte(session.CodeHash), []byte(hashCode(strings.TrimSpace(code)))) == 1
}

func (a *Authenticator) newCode() (string, error) {
	n, err := rand.Int(a.random, codeSpace)
	if err != nil {
		return "", errors.Wrap(err, "failed to generate code")
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}

// RequestCode issues a fresh code for the subject, superseding any previous
// session, and hands it to the notifier. If delivery fails the session is
// still stored and returned together with a *notify.DeliveryFailedError.
func (a *Authenticator) RequestCode(ctx context.Context, subject string, purpose model.OTPPurpose) (
	*model.OTPSession, error,
) {
	subject = NormalizeSubject(subject)
	if subject == "" {
		return nil, ErrNoSubject
	}
	if !purpose.Valid() {
		return nil, errors.WithStack(ErrUnknownPurpose)
	}
	code, err := a.newCode()
	if err != nil {
		return nil, err
	}
	now := a.clock.Now().UTC()
	session := model.OTPSession{
		ID:        uuid.New(),
		Subject:   subject,
		Purpose:   purpose,
		CodeHash:  hashCode(code),
		IssuedAt:  now,
		ExpiresAt: now.Add(a.ttl),
	}
	if err = a.store.Put(session); err != nil {
		return nil, err
	}
	log.WithFields(
		log.Fields{
			"subject": subject,
			"purpose": purpose,
		},
	).Debug("otp session issued")

	if err = a.deliver(ctx, session, code); err != nil {
		return &session, err
	}
	return &session, nil
}

// Resend issues a new code; the countdown starts over and the previous
// code stops working
func (a *Authenticator) Resend(ctx context.Context, subject string, purpose model.OTPPurpose) (
	*model.OTPSession, error,
) {
	return a.RequestCode(ctx, subject, purpose)
}

func (a *Authenticator) deliver(ctx context.Context, session model.OTPSession, code string) error {
	if a.notifier == nil {
		return nil
	}
	msg := notify.Message{
		Channel: notify.ChannelFor(session.Subject),
		To:      session.Subject,
		Subject: "Your credtrust verification code",
		Body: fmt.Sprintf(
			"Your verification code is %s. It expires in %d minutes.", code, int(a.ttl.Minutes()),
		),
		Purpose: string(session.Purpose),
	}
	err := a.notifier.Notify(ctx, msg)
	if err == nil {
		return nil
	}
	var failed *notify.DeliveryFailedError
	if !errors.As(err, &failed) {
		err = &notify.DeliveryFailedError{
			Channel: msg.Channel,
			To:      msg.To,
			Err:     err,
		}
	}
	log.WithError(err).WithField("subject", session.Subject).Warn("otp delivery failed")
	return err
}

func (a *Authenticator) attemptCap() int {
	if a.settings == nil {
		return a.maxAttempts
	}
	var n int
	found, err := a.settings.GetAs(model.KeyValueScopeOTP, model.KeyValueKeyMaxAttempts, &n)
	if err != nil {
		log.WithError(err).Error("failed to read otp max_attempts setting")
		return a.maxAttempts
	}
	if !found || n < 0 {
		return a.maxAttempts
	}
	return n
}

// VerifyCode checks a code for the subject.
//
// It returns the accepted session, which is consumed, or one of
// model.NotFoundError (no live session), ErrExpired, ErrLocked and
// ErrInvalidCode. Expired and locked sessions are discarded.
func (a *Authenticator) VerifyCode(_ context.Context, subject, code string) (*model.OTPSession, error) {
	subject = NormalizeSubject(subject)
	session, err := a.store.Get(subject)
	if err != nil {
		return nil, err
	}
	if session.Expired(a.clock.Now()) {
		a.discard(session)
		return nil, ErrExpired
	}
	limit := a.attemptCap()
	if limit > 0 && session.Attempts >= limit {
		a.discard(session)
		return nil, ErrLocked
	}
	if !codeMatches(session, code) {
		attempts, err := a.store.RecordFailure(subject, session.ID)
		if err != nil {
			var notFound model.NotFoundError
			if errors.As(err, &notFound) {
				// superseded or consumed meanwhile
				return nil, ErrInvalidCode
			}
			return nil, err
		}
		if limit > 0 && attempts >= limit {
			a.discard(session)
			log.WithField("subject", subject).Warn("otp session locked")
			return nil, ErrLocked
		}
		return nil, ErrInvalidCode
	}
	consumed, err := a.store.Consume(subject, session.ID)
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, model.NotFoundErrorFmt("no live otp session for '%s'", subject)
	}
	return session, nil
}

func (a *Authenticator) discard(session *model.OTPSession) {
	if _, err := a.store.Consume(session.Subject, session.ID); err != nil {
		log.WithError(err).WithField("subject", session.Subject).Error("failed to discard otp session")
	}
}
