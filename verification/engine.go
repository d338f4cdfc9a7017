// Package verification resolves certificate lookups, counts them and
// scores the issuing institution.
package verification

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/eduverify/credtrust/events"
	"github.com/eduverify/credtrust/identity"
	"github.com/eduverify/credtrust/storage/model"
)

// NotFoundHints are the advisory causes reported for an unknown certificate
// id. Any of them may apply; the engine cannot tell which.
var NotFoundHints = []string{
	"the certificate id may be mistyped or malformed",
	"the certificate may never have been issued",
	"the certificate may have been revoked and purged by its issuer",
}

// Result is the outcome of a verification
type Result struct {
	CertificateID string             `json:"certificate_id"`
	Found         bool               `json:"found"`
	Trustworthy   bool               `json:"trustworthy"`
	HashValid     bool               `json:"hash_valid"`
	Certificate   *model.Certificate `json:"certificate,omitempty"`
	Reputation    *Reputation        `json:"reputation,omitempty"`
	// InstitutionTotalCerts and InstitutionTotalVerifications are
	// report-only transparency fields
	InstitutionTotalCerts         int       `json:"institution_total_certs"`
	InstitutionTotalVerifications int64     `json:"institution_total_verifications"`
	ReasonHints                   []string  `json:"reason_hints,omitempty"`
	VerifiedAt                    time.Time `json:"verified_at"`
}

// Engine verifies certificates against a model.CertificateStore
type Engine struct {
	store     model.CertificateStore
	publisher events.Publisher
	now       func() time.Time
}

// NewEngine returns an Engine. publisher may be nil.
func NewEngine(store model.CertificateStore, publisher events.Publisher) *Engine {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Engine{
		store:     store,
		publisher: publisher,
		now:       time.Now,
	}
}

// SetClock replaces the Engine's time source
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Verify looks up a certificate, counts the lookup and scores its
// institution. Unknown ids give a not-found Result and change nothing.
// Revoked and pending certificates are found and counted but never
// trustworthy.
func (e *Engine) Verify(ctx context.Context, certificateID string) (*Result, error) {
	return e.resolve(ctx, certificateID, true)
}

// Inspect is Verify without counting the lookup
func (e *Engine) Inspect(ctx context.Context, certificateID string) (*Result, error) {
	return e.resolve(ctx, certificateID, false)
}

// Reputation returns the reputation block of an institution
func (e *Engine) Reputation(_ context.Context, institutionName string) (*Reputation, error) {
	certs, err := e.store.ByInstitution(institutionName)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load institution certificates")
	}
	rep := ComputeReputation(institutionName, certs)
	return &rep, nil
}

func (e *Engine) resolve(ctx context.Context, certificateID string, count bool) (*Result, error) {
	id := identity.NormalizeID(certificateID)
	res := &Result{
		CertificateID: id,
		VerifiedAt:    e.now().UTC(),
	}
	if id == "" {
		res.ReasonHints = NotFoundHints
		return res, nil
	}

	var cert *model.Certificate
	var err error
	if count {
		cert, err = e.store.IncrementVerifications(id)
	} else {
		cert, err = e.store.Get(id)
	}
	if err != nil {
		var notFound model.NotFoundError
		if errors.As(err, &notFound) {
			res.ReasonHints = NotFoundHints
			return res, nil
		}
		return nil, err
	}

	res.Found = true
	res.Certificate = cert
	res.HashValid = identity.VerifyHash(cert.Fields, cert.CertificateHash)
	res.Trustworthy = cert.Status == model.StatusActive && res.HashValid

	rep, err := e.Reputation(ctx, cert.InstitutionName)
	if err != nil {
		return nil, err
	}
	res.Reputation = rep
	res.InstitutionTotalCerts = rep.TotalCertificates
	res.InstitutionTotalVerifications = rep.TotalVerifications

	if count {
		e.publish(ctx, res)
	}
	return res, nil
}

func (e *Engine) publish(ctx context.Context, res *Result) {
	event := events.New(events.TypeCertificateVerified, res.CertificateID)
	event.InstitutionName = res.Certificate.InstitutionName
	event.Status = res.Certificate.Status.String()
	event.VerificationCount = res.Certificate.VerificationCount
	trustworthy := res.Trustworthy
	event.Trustworthy = &trustworthy
	if err := e.publisher.Publish(ctx, event); err != nil {
		log.WithError(err).WithField("certificate_id", res.CertificateID).Error("failed to publish verification event")
	}
}
