package storage

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/datatypes"

	"github.com/eduverify/credtrust/storage/model"
)

// LoadMemoryBackends returns backends that keep everything in process
// memory. Nothing survives a restart.
func LoadMemoryBackends(userParams Argon2idParams) model.Backends {
	return model.Backends{
		Certificates: NewMemoryCertificateStorage(),
		Events:       NewMemoryEventStorage(),
		OTP:          NewMemoryOTPStorage(),
		Users:        NewMemoryUsersStorage(userParams),
		KV:           NewMemoryKeyValueStorage(),
	}
}

type memoryCertificate struct {
	mu    sync.Mutex
	cert  model.Certificate
	count atomic.Int64
}

func (r *memoryCertificate) snapshot() *model.Certificate {
	r.mu.Lock()
	c := r.cert
	r.mu.Unlock()
	c.VerificationCount = r.count.Load()
	return &c
}

// MemoryCertificateStorage implements model.CertificateStore in memory.
// The map is guarded by a RWMutex; each record has its own lock for status
// changes and an atomic verification counter.
type MemoryCertificateStorage struct {
	mu      sync.RWMutex
	records map[string]*memoryCertificate
}

// NewMemoryCertificateStorage returns an empty MemoryCertificateStorage
func NewMemoryCertificateStorage() *MemoryCertificateStorage {
	return &MemoryCertificateStorage{records: make(map[string]*memoryCertificate)}
}

// Create inserts a new certificate record
func (s *MemoryCertificateStorage) Create(cert *model.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[cert.CertificateID]; ok {
		return model.AlreadyExistsErrorFmt("certificate id already exists: %s", cert.CertificateID)
	}
	if cert.ID == uuid.Nil {
		cert.ID = uuid.New()
	}
	now := time.Now()
	if cert.CreatedAt.IsZero() {
		cert.CreatedAt = now
	}
	cert.UpdatedAt = now
	r := &memoryCertificate{cert: *cert}
	r.count.Store(cert.VerificationCount)
	s.records[cert.CertificateID] = r
	return nil
}

func (s *MemoryCertificateStorage) record(certificateID string) (*memoryCertificate, error) {
	s.mu.RLock()
	r, ok := s.records[certificateID]
	s.mu.RUnlock()
	if !ok {
		return nil, model.NotFoundErrorFmt("certificate not found: %s", certificateID)
	}
	return r, nil
}

// Get returns the certificate with the passed certificate id
func (s *MemoryCertificateStorage) Get(certificateID string) (*model.Certificate, error) {
	r, err := s.record(certificateID)
	if err != nil {
		return nil, err
	}
	return r.snapshot(), nil
}

// Activate moves a pending certificate to active
func (s *MemoryCertificateStorage) Activate(certificateID string, at time.Time) (*model.Certificate, error) {
	r, err := s.record(certificateID)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	if r.cert.Status != model.StatusPending {
		from := r.cert.Status
		r.mu.Unlock()
		return nil, model.InvalidTransitionError{
			CertificateID: certificateID,
			From:          from,
			To:            model.StatusActive,
		}
	}
	r.cert.Status = model.StatusActive
	r.cert.ActivatedAt = &at
	r.cert.UpdatedAt = time.Now()
	r.mu.Unlock()
	return r.snapshot(), nil
}

// Revoke moves a pending or active certificate to revoked
func (s *MemoryCertificateStorage) Revoke(certificateID string, info model.RevokeInfo) (*model.Certificate, error) {
	r, err := s.record(certificateID)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	if !r.cert.Status.CanTransitionTo(model.StatusRevoked) {
		r.mu.Unlock()
		return nil, model.AlreadyRevokedErrorFmt("certificate already revoked: %s", certificateID)
	}
	at := info.At
	r.cert.Status = model.StatusRevoked
	r.cert.RevokedAt = &at
	r.cert.RevokedBy = info.Actor
	r.cert.RevocationReason = info.Reason
	r.cert.UpdatedAt = time.Now()
	r.mu.Unlock()
	return r.snapshot(), nil
}

// IncrementVerifications atomically increments the verification counter
func (s *MemoryCertificateStorage) IncrementVerifications(certificateID string) (*model.Certificate, error) {
	r, err := s.record(certificateID)
	if err != nil {
		return nil, err
	}
	r.count.Add(1)
	return r.snapshot(), nil
}

// List returns all certificates matching the query, newest first
func (s *MemoryCertificateStorage) List(query model.CertificateQuery) ([]model.Certificate, error) {
	s.mu.RLock()
	records := make([]*memoryCertificate, 0, len(s.records))
	for _, r := range s.records {
		records = append(records, r)
	}
	s.mu.RUnlock()

	var certs []model.Certificate
	for _, r := range records {
		c := r.snapshot()
		if query.Matches(c) {
			certs = append(certs, *c)
		}
	}
	sort.Slice(
		certs, func(i, j int) bool {
			if certs[i].IssuedAt.Equal(certs[j].IssuedAt) {
				return certs[i].CertificateID > certs[j].CertificateID
			}
			return certs[i].IssuedAt.After(certs[j].IssuedAt)
		},
	)
	return certs, nil
}

// ByInstitution returns all certificates of the passed institution
func (s *MemoryCertificateStorage) ByInstitution(institutionName string) ([]model.Certificate, error) {
	return s.List(model.CertificateQuery{InstitutionName: institutionName})
}

// MemoryEventStorage implements model.CertificateEventStore in memory
type MemoryEventStorage struct {
	mu     sync.RWMutex
	nextID uint
	events map[string][]model.CertificateEvent
}

// NewMemoryEventStorage returns an empty MemoryEventStorage
func NewMemoryEventStorage() *MemoryEventStorage {
	return &MemoryEventStorage{events: make(map[string][]model.CertificateEvent)}
}

// Add stores the passed event
func (s *MemoryEventStorage) Add(event model.CertificateEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	event.ID = s.nextID
	event.CreatedAt = time.Now()
	s.events[event.CertificateID] = append(s.events[event.CertificateID], event)
	return nil
}

// ForCertificate returns all events of a certificate in chronological order
func (s *MemoryEventStorage) ForCertificate(certificateID string) ([]model.CertificateEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.CertificateEvent(nil), s.events[certificateID]...), nil
}

// MemoryOTPStorage implements model.OTPStore in memory
type MemoryOTPStorage struct {
	mu       sync.Mutex
	sessions map[string]model.OTPSession
}

// NewMemoryOTPStorage returns an empty MemoryOTPStorage
func NewMemoryOTPStorage() *MemoryOTPStorage {
	return &MemoryOTPStorage{sessions: make(map[string]model.OTPSession)}
}

// Put stores the session, replacing the subject's previous session
func (s *MemoryOTPStorage) Put(session model.OTPSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Subject] = session
	return nil
}

// Get returns the session of the subject
func (s *MemoryOTPStorage) Get(subject string) (*model.OTPSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[subject]
	if !ok {
		return nil, model.NotFoundErrorFmt("no otp session for '%s'", subject)
	}
	return &session, nil
}

// Delete removes the session of the subject
func (s *MemoryOTPStorage) Delete(subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, subject)
	return nil
}

// Consume deletes the session only if it is still the session with the passed id
func (s *MemoryOTPStorage) Consume(subject string, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[subject]
	if !ok || session.ID != id {
		return false, nil
	}
	delete(s.sessions, subject)
	return true, nil
}

// RecordFailure increments the failed attempts of the session
func (s *MemoryOTPStorage) RecordFailure(subject string, id uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[subject]
	if !ok || session.ID != id {
		return 0, model.NotFoundErrorFmt("no otp session for '%s'", subject)
	}
	session.Attempts++
	s.sessions[subject] = session
	return session.Attempts, nil
}

// MemoryKeyValueStorage implements model.KeyValueStore in memory
type MemoryKeyValueStorage struct {
	mu     sync.RWMutex
	values map[string]datatypes.JSON
}

// NewMemoryKeyValueStorage returns an empty MemoryKeyValueStorage
func NewMemoryKeyValueStorage() *MemoryKeyValueStorage {
	return &MemoryKeyValueStorage{values: make(map[string]datatypes.JSON)}
}

func kvKey(scope, key string) string {
	return scope + "\x00" + key
}

// Get returns the JSON value for a (scope, key). If not found, returns nil, nil.
func (s *MemoryKeyValueStorage) Get(scope, key string) (datatypes.JSON, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[kvKey(scope, key)], nil
}

// Set stores the JSON value for a (scope, key)
func (s *MemoryKeyValueStorage) Set(scope, key string, value datatypes.JSON) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[kvKey(scope, key)] = value
	return nil
}

// Delete removes a (scope, key) pair
func (s *MemoryKeyValueStorage) Delete(scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, kvKey(scope, key))
	return nil
}

// Scope returns a copy of all entries stored under scope
func (s *MemoryKeyValueStorage) Scope(scope string) (map[string]datatypes.JSON, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := kvKey(scope, "")
	values := make(map[string]datatypes.JSON)
	for k, v := range s.values {
		if key, found := strings.CutPrefix(k, prefix); found {
			values[key] = v
		}
	}
	return values, nil
}

// GetAs implements model.KeyValueStore
func (s *MemoryKeyValueStorage) GetAs(scope, key string, out any) (bool, error) {
	return decodeSetting(s, scope, key, out)
}

// SetAny implements model.KeyValueStore
func (s *MemoryKeyValueStorage) SetAny(scope, key string, v any) error {
	return encodeSetting(s, scope, key, v)
}

// MemoryUsersStorage implements model.UsersStore in memory
type MemoryUsersStorage struct {
	mu     sync.RWMutex
	nextID uint
	users  map[string]model.User
	params Argon2idParams
}

// NewMemoryUsersStorage returns an empty MemoryUsersStorage
func NewMemoryUsersStorage(params Argon2idParams) *MemoryUsersStorage {
	params = params.orDefault()
	return &MemoryUsersStorage{
		users:  make(map[string]model.User),
		params: params,
	}
}

// Count returns the number of users
func (s *MemoryUsersStorage) Count() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

// CountByRole returns the number of users with the passed role
func (s *MemoryUsersStorage) CountByRole(role string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, u := range s.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

// List returns all users (without password hashes)
func (s *MemoryUsersStorage) List() ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, *withoutHash(u))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// Get returns a user by username
func (s *MemoryUsersStorage) Get(username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return nil, model.NotFoundErrorFmt("user not found: %s", username)
	}
	return withoutHash(u), nil
}

// Create creates a user with an Argon2id-hashed password
func (s *MemoryUsersStorage) Create(user model.User, password string) (*model.User, error) {
	if len(user.Username) == 0 || len(password) == 0 {
		return nil, errors.Errorf("username and password are required")
	}
	hash, err := newPasswordHash(password, s.params)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Username]; ok {
		return nil, model.AlreadyExistsErrorFmt("user already exists: %s", user.Username)
	}
	s.nextID++
	now := time.Now()
	user.ID = s.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	user.PasswordHash = hash
	normalizeUser(&user)
	s.users[user.Username] = user
	return withoutHash(user), nil
}

// Update updates the passed attributes of a user
func (s *MemoryUsersStorage) Update(username string, data model.UserData) (*model.User, error) {
	hash, err := hashForUpdate(data, s.params)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return nil, model.NotFoundErrorFmt("user not found: %s", username)
	}
	applyUserData(&u, data, hash)
	u.UpdatedAt = time.Now()
	s.users[username] = u
	return withoutHash(u), nil
}

// Delete deletes a user by username
func (s *MemoryUsersStorage) Delete(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; !ok {
		return model.NotFoundErrorFmt("user not found: %s", username)
	}
	delete(s.users, username)
	return nil
}

// Authenticate validates username/password
func (s *MemoryUsersStorage) Authenticate(username, password string) (*model.User, error) {
	s.mu.RLock()
	u, ok := s.users[username]
	s.mu.RUnlock()
	if !ok {
		return nil, model.NotFoundErrorFmt("user not found: %s", username)
	}
	if err := usable(&u); err != nil {
		return nil, err
	}
	if valid, _ := checkPassword(u.PasswordHash, password, s.params); !valid {
		return nil, errUserCredentials
	}
	return withoutHash(u), nil
}
