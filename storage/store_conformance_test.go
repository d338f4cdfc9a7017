package storage

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/eduverify/credtrust/identity"
	"github.com/eduverify/credtrust/storage/model"
)

var testArgon2idParams = Argon2idParams{
	Time:        1,
	MemoryKiB:   1024,
	Parallelism: 1,
	KeyLen:      16,
	SaltLen:     8,
}

func newTestCertificate(id, institution string, status model.Status, issuedAt time.Time) *model.Certificate {
	fields := identity.Fields{
		StudentName:     "Student " + id,
		StudentEmail:    "student@example.org",
		Degree:          "BSc",
		InstitutionName: institution,
		IssueDate:       "2024-01-01",
	}
	return &model.Certificate{
		ID:                uuid.New(),
		CertificateID:     id,
		Fields:            fields,
		CertificateHash:   identity.Hash(fields),
		AIConfidenceScore: 97,
		Status:            status,
		IssuedAt:          issuedAt,
	}
}

func testCertificateStore(t *testing.T, store model.CertificateStore) {
	now := time.Now().UTC().Truncate(time.Second)
	if err := store.Create(newTestCertificate("EDU-1-AAAAA", "Uni A", model.StatusActive, now)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(
		newTestCertificate("EDU-2-BBBBB", "Uni A", model.StatusPending, now.Add(time.Second)),
	); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(
		newTestCertificate("EDU-3-CCCCC", "Uni B", model.StatusActive, now.Add(2*time.Second)),
	); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := store.Create(newTestCertificate("EDU-1-AAAAA", "Uni C", model.StatusActive, now))
	var exists model.AlreadyExistsError
	if !errors.As(err, &exists) {
		t.Fatalf("expected AlreadyExistsError, got %v", err)
	}

	cert, err := store.Get("EDU-1-AAAAA")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cert.InstitutionName != "Uni A" || cert.Status != model.StatusActive {
		t.Errorf("unexpected certificate: %+v", cert)
	}
	var notFound model.NotFoundError
	if _, err = store.Get("EDU-9-ZZZZZ"); !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}

	// listing
	certs, err := store.ByInstitution("Uni A")
	if err != nil {
		t.Fatalf("by institution: %v", err)
	}
	if len(certs) != 2 {
		t.Fatalf("expected 2 certificates of Uni A, got %d", len(certs))
	}
	if certs[0].CertificateID != "EDU-2-BBBBB" {
		t.Errorf("expected newest first, got %s", certs[0].CertificateID)
	}
	certs, err = store.List(model.CertificateQuery{Statuses: []model.Status{model.StatusActive}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(certs) != 2 {
		t.Errorf("expected 2 active certificates, got %d", len(certs))
	}
	certs, err = store.List(
		model.CertificateQuery{
			Filters: []model.CertificateFilter{
				func(c *model.Certificate) bool { return c.InstitutionName == "Uni B" },
			},
		},
	)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(certs) != 1 || certs[0].CertificateID != "EDU-3-CCCCC" {
		t.Errorf("unexpected filtered listing: %+v", certs)
	}

	// activation
	var invalid model.InvalidTransitionError
	if _, err = store.Activate("EDU-1-AAAAA", now); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if invalid.From != model.StatusActive {
		t.Errorf("expected transition from active, got %s", invalid.From)
	}
	cert, err = store.Activate("EDU-2-BBBBB", now)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if cert.Status != model.StatusActive || cert.ActivatedAt == nil {
		t.Errorf("unexpected activated certificate: %+v", cert)
	}
	if _, err = store.Activate("EDU-9-ZZZZZ", now); !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}

	// revocation
	cert, err = store.Revoke("EDU-1-AAAAA", model.RevokeInfo{Actor: "admin", Reason: "fraud", At: now})
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if cert.Status != model.StatusRevoked || cert.RevokedBy != "admin" || cert.RevocationReason != "fraud" {
		t.Errorf("unexpected revoked certificate: %+v", cert)
	}
	var revoked model.AlreadyRevokedError
	if _, err = store.Revoke("EDU-1-AAAAA", model.RevokeInfo{At: now}); !errors.As(err, &revoked) {
		t.Fatalf("expected AlreadyRevokedError, got %v", err)
	}
	if _, err = store.Revoke("EDU-9-ZZZZZ", model.RevokeInfo{At: now}); !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if _, err = store.Activate("EDU-1-AAAAA", now); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError for revoked -> active, got %v", err)
	}

	// verification counter
	cert, err = store.IncrementVerifications("EDU-1-AAAAA")
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if cert.VerificationCount != 1 {
		t.Errorf("expected count 1, got %d", cert.VerificationCount)
	}
	if cert.Status != model.StatusRevoked {
		t.Errorf("increment must not change status, got %s", cert.Status)
	}
	if _, err = store.IncrementVerifications("EDU-9-ZZZZZ"); !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func testConcurrentIncrements(t *testing.T, store model.CertificateStore, n int) {
	if err := store.Create(newTestCertificate("EDU-7-CONCR", "Uni A", model.StatusActive, time.Now())); err != nil {
		t.Fatalf("create: %v", err)
	}
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.IncrementVerifications("EDU-7-CONCR"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("increment: %v", err)
	}
	cert, err := store.Get("EDU-7-CONCR")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cert.VerificationCount != int64(n) {
		t.Errorf("expected %d verifications, got %d", n, cert.VerificationCount)
	}
}

func testOTPStore(t *testing.T, store model.OTPStore) {
	now := time.Now().UTC().Truncate(time.Second)
	first := model.OTPSession{
		ID:        uuid.New(),
		Subject:   "a@example.org",
		Purpose:   model.OTPPurposeLogin,
		CodeHash:  "h1",
		IssuedAt:  now,
		ExpiresAt: now.Add(10 * time.Minute),
	}
	if err := store.Put(first); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.Get(first.Subject)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != first.ID || got.CodeHash != "h1" || got.Purpose != model.OTPPurposeLogin {
		t.Errorf("unexpected session: %+v", got)
	}

	second := first
	second.ID = uuid.New()
	second.CodeHash = "h2"
	if err = store.Put(second); err != nil {
		t.Fatalf("put: %v", err)
	}
	if ok, err := store.Consume(first.Subject, first.ID); err != nil || ok {
		t.Fatalf("consuming a replaced session must fail: %v %v", ok, err)
	}

	attempts, err := store.RecordFailure(second.Subject, second.ID)
	if err != nil {
		t.Fatalf("record failure: %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
	if attempts, _ = store.RecordFailure(second.Subject, second.ID); attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	consumed := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Consume(second.Subject, second.ID)
			if err != nil {
				t.Errorf("consume: %v", err)
				return
			}
			if ok {
				mu.Lock()
				consumed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if consumed != 1 {
		t.Errorf("expected exactly one successful consume, got %d", consumed)
	}
	var notFound model.NotFoundError
	if _, err = store.Get(second.Subject); !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if _, err = store.RecordFailure(second.Subject, second.ID); !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if err = store.Delete(second.Subject); err != nil {
		t.Fatalf("deleting a missing session must not fail: %v", err)
	}
}

func testUsersStore(t *testing.T, users model.UsersStore) {
	if n, _ := users.Count(); n != 0 {
		t.Fatalf("expected empty store, got %d users", n)
	}
	u, err := users.Create(
		model.User{
			Username:    "uni-a",
			Role:        "institute",
			Email:       " Registrar@Uni-A.example ",
			Institution: "Uni A",
		}, "secret",
	)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.PasswordHash != "" {
		t.Error("password hash must not be returned")
	}
	if u.Email != "registrar@uni-a.example" {
		t.Errorf("expected normalized email, got %q", u.Email)
	}
	var exists model.AlreadyExistsError
	if _, err = users.Create(model.User{Username: "uni-a"}, "x"); !errors.As(err, &exists) {
		t.Fatalf("expected AlreadyExistsError, got %v", err)
	}
	if n, _ := users.CountByRole("institute"); n != 1 {
		t.Errorf("expected 1 institute, got %d", n)
	}
	if _, err = users.Authenticate("uni-a", "secret"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if _, err = users.Authenticate("uni-a", "wrong"); err == nil {
		t.Fatal("expected error for wrong password")
	}
	newPassword := "other"
	disabled := true
	if _, err = users.Update("uni-a", model.UserData{Password: &newPassword}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err = users.Authenticate("uni-a", "other"); err != nil {
		t.Fatalf("authenticate with new password: %v", err)
	}
	if _, err = users.Update("uni-a", model.UserData{Disabled: &disabled}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err = users.Authenticate("uni-a", "other"); err == nil {
		t.Fatal("expected error for disabled user")
	}
	if _, err = users.Create(
		model.User{
			Username:            "student-b",
			Role:                "student",
			PendingVerification: true,
		}, "secret",
	); err != nil {
		t.Fatalf("create pending: %v", err)
	}
	if _, err = users.Authenticate("student-b", "secret"); err == nil {
		t.Fatal("expected error for unverified registration")
	}
	verified := false
	if u, err = users.Update("student-b", model.UserData{PendingVerification: &verified}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if u.PendingVerification || u.Disabled {
		t.Fatalf("expected active account, got pending=%v disabled=%v", u.PendingVerification, u.Disabled)
	}
	if _, err = users.Authenticate("student-b", "secret"); err != nil {
		t.Fatalf("authenticate after verification: %v", err)
	}
	var notFound model.NotFoundError
	if err = users.Delete("nobody"); !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if err = users.Delete("uni-a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func testKeyValueStore(t *testing.T, kv model.KeyValueStore) {
	var requireConfirmation bool
	found, err := kv.GetAs(model.KeyValueScopeIssuance, model.KeyValueKeyRequireConfirmation, &requireConfirmation)
	if err != nil || found {
		t.Fatalf("expected missing value, got found=%v err=%v", found, err)
	}
	if err = kv.SetAny(model.KeyValueScopeIssuance, model.KeyValueKeyRequireConfirmation, true); err != nil {
		t.Fatalf("set: %v", err)
	}
	found, err = kv.GetAs(model.KeyValueScopeIssuance, model.KeyValueKeyRequireConfirmation, &requireConfirmation)
	if err != nil || !found || !requireConfirmation {
		t.Fatalf("expected true, got %v found=%v err=%v", requireConfirmation, found, err)
	}
	if err = kv.SetAny(model.KeyValueScopeIssuance, model.KeyValueKeyRequireConfirmation, false); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err = kv.GetAs(
		model.KeyValueScopeIssuance, model.KeyValueKeyRequireConfirmation, &requireConfirmation,
	); err != nil || requireConfirmation {
		t.Fatalf("expected overwritten value false, got %v err=%v", requireConfirmation, err)
	}
	if err = kv.SetAny(model.KeyValueScopeOTP, model.KeyValueKeyMaxAttempts, 4); err != nil {
		t.Fatalf("set: %v", err)
	}
	scoped, err := kv.Scope(model.KeyValueScopeIssuance)
	if err != nil {
		t.Fatalf("scope: %v", err)
	}
	if len(scoped) != 1 || string(scoped[model.KeyValueKeyRequireConfirmation]) != "false" {
		t.Fatalf("unexpected issuance scope: %v", scoped)
	}
	if err = kv.Delete(model.KeyValueScopeIssuance, model.KeyValueKeyRequireConfirmation); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if raw, err := kv.Get(model.KeyValueScopeIssuance, model.KeyValueKeyRequireConfirmation); err != nil || raw != nil {
		t.Fatalf("expected deleted value, got %s err=%v", raw, err)
	}
}

func testEventStore(t *testing.T, events model.CertificateEventStore) {
	for i, typ := range []string{model.EventTypeIssued, model.EventTypeRevoked} {
		if err := events.Add(
			model.CertificateEvent{
				CertificateID: "EDU-1-AAAAA",
				Timestamp:     int64(i),
				Type:          typ,
			},
		); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	list, err := events.ForCertificate("EDU-1-AAAAA")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Type != model.EventTypeIssued || list[1].Type != model.EventTypeRevoked {
		t.Errorf("unexpected events: %+v", list)
	}
	if list, _ = events.ForCertificate("EDU-2-BBBBB"); len(list) != 0 {
		t.Errorf("expected no events, got %d", len(list))
	}
}
