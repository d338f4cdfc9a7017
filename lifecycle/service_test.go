package lifecycle

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/eduverify/credtrust/events"
	"github.com/eduverify/credtrust/identity"
	"github.com/eduverify/credtrust/storage"
	"github.com/eduverify/credtrust/storage/model"
)

var testFields = identity.Fields{
	StudentName:     "Grace Hopper",
	StudentEmail:    "grace@example.org",
	Degree:          "PhD Mathematics",
	InstitutionName: "Yale",
	IssueDate:       "1934-06-01",
}

// collidingStore reports AlreadyExists for the first n creates
type collidingStore struct {
	model.CertificateStore
	mu        sync.Mutex
	remaining int
	calls     int
	attempts  []*model.Certificate
}

func (s *collidingStore) Create(cert *model.Certificate) error {
	s.mu.Lock()
	s.calls++
	attempt := *cert
	s.attempts = append(s.attempts, &attempt)
	if s.remaining > 0 {
		s.remaining--
		s.mu.Unlock()
		return model.AlreadyExistsErrorFmt("certificate id already exists: %s", cert.CertificateID)
	}
	s.mu.Unlock()
	return s.CertificateStore.Create(cert)
}

func newTestService(opts ...Option) (*Service, *storage.MemoryCertificateStorage, *events.Recorder) {
	store := storage.NewMemoryCertificateStorage()
	rec := &events.Recorder{}
	opts = append([]Option{WithPublisher(rec)}, opts...)
	return NewService(store, storage.NewMemoryEventStorage(), opts...), store, rec
}

func TestIssueActive(t *testing.T) {
	svc, _, rec := newTestService()
	cert, err := svc.Issue(context.Background(), "yale-registrar", IssueRequest{Fields: testFields})
	require.NoError(t, err)
	require.Equal(t, model.StatusActive, cert.Status)
	require.NotNil(t, cert.ActivatedAt)
	require.Equal(t, int64(0), cert.VerificationCount)
	require.Equal(t, identity.Hash(testFields), cert.CertificateHash)
	require.True(t, identity.LooksLikeCertificateID(cert.CertificateID))
	require.GreaterOrEqual(t, cert.AIConfidenceScore, 95)
	require.LessOrEqual(t, cert.AIConfidenceScore, 99)
	require.Equal(t, "yale-registrar", cert.IssuedBy)

	got, err := svc.Get(context.Background(), cert.CertificateID)
	require.NoError(t, err)
	require.Equal(t, cert.CertificateHash, got.CertificateHash)
	require.Equal(t, cert.Refs, got.Refs)

	require.Len(t, rec.OfType(events.TypeCertificateIssued), 1)
	history, err := svc.History(context.Background(), cert.CertificateID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, model.EventTypeIssued, history[0].Type)
}

func TestIssueExplicitConfidence(t *testing.T) {
	svc, _, _ := newTestService()
	score := 42
	cert, err := svc.Issue(context.Background(), "", IssueRequest{Fields: testFields, AIConfidenceScore: &score})
	require.NoError(t, err)
	require.Equal(t, 42, cert.AIConfidenceScore)

	score = 101
	_, err = svc.Issue(context.Background(), "", IssueRequest{Fields: testFields, AIConfidenceScore: &score})
	var vErr identity.ValidationError
	require.True(t, errors.As(err, &vErr))
}

func TestIssueValidation(t *testing.T) {
	svc, store, _ := newTestService()
	f := testFields
	f.StudentName = ""
	_, err := svc.Issue(context.Background(), "", IssueRequest{Fields: f})
	var vErr identity.ValidationError
	require.True(t, errors.As(err, &vErr))
	certs, err := store.List(model.CertificateQuery{})
	require.NoError(t, err)
	require.Empty(t, certs)
}

func TestIssueDefaultsIssueDate(t *testing.T) {
	now := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	svc, _, _ := newTestService(WithClock(func() time.Time { return now }))
	f := testFields
	f.IssueDate = ""
	cert, err := svc.Issue(context.Background(), "", IssueRequest{Fields: f})
	require.NoError(t, err)
	require.Equal(t, "2024-09-01", cert.IssueDate)
	require.True(t, identity.VerifyHash(cert.Fields, cert.CertificateHash))
}

func TestIssuePending(t *testing.T) {
	svc, _, rec := newTestService(WithPolicy(StaticPolicy{RequireConfirmation: true}))
	cert, err := svc.Issue(context.Background(), "", IssueRequest{Fields: testFields})
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, cert.Status)
	require.Nil(t, cert.ActivatedAt)

	cert, err = svc.Activate(context.Background(), "admin", cert.CertificateID)
	require.NoError(t, err)
	require.Equal(t, model.StatusActive, cert.Status)
	require.Len(t, rec.OfType(events.TypeCertificateActivated), 1)

	_, err = svc.Activate(context.Background(), "admin", cert.CertificateID)
	var invalid model.InvalidTransitionError
	require.True(t, errors.As(err, &invalid))
}

func TestIssueRetriesOnCollision(t *testing.T) {
	store := &collidingStore{CertificateStore: storage.NewMemoryCertificateStorage(), remaining: 3}
	svc := NewService(store, nil)
	cert, err := svc.Issue(context.Background(), "", IssueRequest{Fields: testFields})
	require.NoError(t, err)
	require.NotNil(t, cert)
	require.Equal(t, 4, store.calls)
}

func TestIssueRetryRedrawsOnlyID(t *testing.T) {
	store := &collidingStore{CertificateStore: storage.NewMemoryCertificateStorage(), remaining: 2}
	svc := NewService(store, nil)
	fields := testFields
	fields.StudentName = "  " + fields.StudentName + " "
	cert, err := svc.Issue(context.Background(), "", IssueRequest{Fields: fields})
	require.NoError(t, err)
	require.Len(t, store.attempts, 3)
	require.Equal(t, identity.Hash(testFields), cert.CertificateHash)
	ids := map[string]bool{}
	for _, a := range store.attempts {
		ids[a.CertificateID] = true
		require.Equal(t, cert.CertificateHash, a.CertificateHash)
		require.Equal(t, cert.Refs, a.Refs)
		require.Equal(t, testFields.StudentName, a.Fields.StudentName)
	}
	require.Len(t, ids, 3)
}

func TestIssueRetryBudgetExhausted(t *testing.T) {
	store := &collidingStore{CertificateStore: storage.NewMemoryCertificateStorage(), remaining: 100}
	svc := NewService(store, nil, WithPolicy(StaticPolicy{RetryBudget: 3}))
	_, err := svc.Issue(context.Background(), "", IssueRequest{Fields: testFields})
	var dup DuplicateIdentityError
	require.True(t, errors.As(err, &dup))
	require.Equal(t, 3, dup.Attempts)
	require.Equal(t, 3, store.calls)
}

func TestRevoke(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, _, rec := newTestService(WithClock(func() time.Time { return now }))
	cert, err := svc.Issue(context.Background(), "", IssueRequest{Fields: testFields})
	require.NoError(t, err)

	revoked, err := svc.Revoke(context.Background(), "yale-registrar", cert.CertificateID, "issued in error")
	require.NoError(t, err)
	require.Equal(t, model.StatusRevoked, revoked.Status)
	require.Equal(t, "issued in error", revoked.RevocationReason)
	require.NotNil(t, revoked.RevokedAt)
	require.True(t, revoked.RevokedAt.Equal(now))
	require.Equal(t, cert.CertificateHash, revoked.CertificateHash)

	_, err = svc.Revoke(context.Background(), "yale-registrar", cert.CertificateID, "")
	var already model.AlreadyRevokedError
	require.True(t, errors.As(err, &already))

	_, err = svc.Revoke(context.Background(), "yale-registrar", "EDU-0-NOPE0", "")
	var notFound model.NotFoundError
	require.True(t, errors.As(err, &notFound))

	require.Len(t, rec.OfType(events.TypeCertificateRevoked), 1)
}

func TestConcurrentRevokeSucceedsOnce(t *testing.T) {
	svc, _, _ := newTestService()
	cert, err := svc.Issue(context.Background(), "", IssueRequest{Fields: testFields})
	require.NoError(t, err)

	const n = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Revoke(context.Background(), "", cert.CertificateID, ""); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, succeeded)
}

func TestGetCaseInsensitive(t *testing.T) {
	svc, _, _ := newTestService()
	cert, err := svc.Issue(context.Background(), "", IssueRequest{Fields: testFields})
	require.NoError(t, err)
	got, err := svc.Get(context.Background(), "  "+strings.ToLower(cert.CertificateID)+" ")
	require.NoError(t, err)
	require.Equal(t, cert.CertificateID, got.CertificateID)
}

func TestListAndStats(t *testing.T) {
	svc, _, _ := newTestService()
	other := testFields
	other.InstitutionName = "Harvard"
	other.StudentEmail = "other@example.org"
	for _, f := range []identity.Fields{testFields, testFields, other} {
		_, err := svc.Issue(context.Background(), "", IssueRequest{Fields: f})
		require.NoError(t, err)
	}
	certs, err := svc.List(context.Background(), model.CertificateQuery{InstitutionName: "Yale"})
	require.NoError(t, err)
	require.Len(t, certs, 2)
	_, err = svc.Revoke(context.Background(), "", certs[0].CertificateID, "")
	require.NoError(t, err)

	stats, err := svc.Stats(context.Background(), model.CertificateQuery{InstitutionName: "Yale"})
	require.NoError(t, err)
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 1, stats.ByStatus["active"])
	require.Equal(t, 1, stats.ByStatus["revoked"])
	require.Equal(t, 0, stats.ByStatus["pending"])

	certs, err = svc.List(context.Background(), model.CertificateQuery{StudentEmail: "other@example.org"})
	require.NoError(t, err)
	require.Len(t, certs, 1)
	require.Equal(t, "Harvard", certs[0].InstitutionName)
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats(nil)
	require.Equal(t, 0, stats.Total)
	require.Equal(t, 0.0, stats.AverageConfidence)
	require.Len(t, stats.ByStatus, 3)
}

func TestKVPolicy(t *testing.T) {
	kv := storage.NewMemoryKeyValueStorage()
	source := KVPolicy{
		KV:       kv,
		Defaults: Policy{RetryBudget: 7},
	}
	policy, err := source.IssuancePolicy()
	require.NoError(t, err)
	require.False(t, policy.RequireConfirmation)
	require.Equal(t, 7, policy.RetryBudget)

	require.NoError(t, StorePolicy(kv, Policy{RequireConfirmation: true, RetryBudget: 2}))
	policy, err = source.IssuancePolicy()
	require.NoError(t, err)
	require.True(t, policy.RequireConfirmation)
	require.Equal(t, 2, policy.RetryBudget)
	require.Equal(t, model.StatusPending, policy.InitialStatus())
}
