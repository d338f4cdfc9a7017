// Package lifecycle orchestrates issuance, activation, revocation and
// listing of certificates on top of a model.CertificateStore.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/eduverify/credtrust/events"
	"github.com/eduverify/credtrust/identity"
	"github.com/eduverify/credtrust/storage/model"
)

// DuplicateIdentityError is returned when no unused certificate id could be
// generated within the retry budget
type DuplicateIdentityError struct {
	Attempts int
}

// Error implements the error interface
func (e DuplicateIdentityError) Error() string {
	return fmt.Sprintf("could not generate an unused certificate id within %d attempts", e.Attempts)
}

// IssueRequest holds the input of an issuance
type IssueRequest struct {
	identity.Fields
	// AIConfidenceScore is the issuer supplied confidence; if nil the
	// configured identity.Assessor is asked
	AIConfidenceScore *int `json:"ai_confidence_score,omitempty"`
}

// Service implements the certificate lifecycle
type Service struct {
	store     model.CertificateStore
	audit     model.CertificateEventStore
	generator *identity.Generator
	assessor  identity.Assessor
	policy    PolicySource
	publisher events.Publisher
	now       func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithGenerator sets the identity.Generator
func WithGenerator(g *identity.Generator) Option {
	return func(s *Service) { s.generator = g }
}

// WithAssessor sets the identity.Assessor used when no confidence is given
func WithAssessor(a identity.Assessor) Option {
	return func(s *Service) { s.assessor = a }
}

// WithPolicy sets the PolicySource
func WithPolicy(p PolicySource) Option {
	return func(s *Service) { s.policy = p }
}

// WithPublisher sets the events.Publisher
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService returns a Service on top of the passed stores. audit may be nil.
func NewService(store model.CertificateStore, audit model.CertificateEventStore, opts ...Option) *Service {
	s := &Service{
		store:     store,
		audit:     audit,
		generator: identity.NewGenerator(),
		assessor:  identity.DefaultAssessor(),
		policy:    StaticPolicy{},
		publisher: events.Nop{},
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Issue creates a new certificate from the passed request. The certificate
// starts as pending or active depending on the issuance policy.
// Invalid input gives an identity.ValidationError; if the store keeps
// reporting id collisions a DuplicateIdentityError is returned.
func (s *Service) Issue(ctx context.Context, actor string, req IssueRequest) (*model.Certificate, error) {
	now := s.now().UTC()
	ident, err := s.generator.Issue(req.Fields, now)
	if err != nil {
		return nil, err
	}
	score, err := s.confidence(req, ident.Fields)
	if err != nil {
		return nil, err
	}
	policy, err := s.policy.IssuancePolicy()
	if err != nil {
		return nil, err
	}

	budget := policy.retryBudget()
	for attempt := 1; attempt <= budget; attempt++ {
		if attempt > 1 {
			if ident.CertificateID, err = s.generator.NewCertificateID(now); err != nil {
				return nil, err
			}
		}
		cert := &model.Certificate{
			ID:                uuid.New(),
			CertificateID:     ident.CertificateID,
			Fields:            ident.Fields,
			CertificateHash:   ident.CertificateHash,
			Refs:              ident.Refs,
			AIConfidenceScore: score,
			Status:            policy.InitialStatus(),
			IssuedAt:          now,
			IssuedBy:          actor,
		}
		if cert.Status == model.StatusActive {
			cert.ActivatedAt = &now
		}
		err = s.store.Create(cert)
		if err == nil {
			s.record(ctx, cert, model.EventTypeIssued, events.TypeCertificateIssued, actor, "")
			return cert, nil
		}
		var exists model.AlreadyExistsError
		if !errors.As(err, &exists) {
			return nil, err
		}
		log.WithFields(
			log.Fields{
				"certificate_id": ident.CertificateID,
				"attempt":        attempt,
			},
		).Warn("certificate id collision, retrying")
	}
	return nil, DuplicateIdentityError{Attempts: budget}
}

func (s *Service) confidence(req IssueRequest, fields identity.Fields) (int, error) {
	if req.AIConfidenceScore != nil {
		if !identity.ValidConfidence(*req.AIConfidenceScore) {
			return 0, identity.ValidationError("ai_confidence_score must be within [0, 100]")
		}
		return *req.AIConfidenceScore, nil
	}
	return s.assessor.Assess(fields)
}

// Get returns the certificate with the passed id; ids compare
// case-insensitively
func (s *Service) Get(_ context.Context, certificateID string) (*model.Certificate, error) {
	return s.store.Get(identity.NormalizeID(certificateID))
}

// Activate moves a pending certificate to active
func (s *Service) Activate(ctx context.Context, actor, certificateID string) (*model.Certificate, error) {
	cert, err := s.store.Activate(identity.NormalizeID(certificateID), s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.record(ctx, cert, model.EventTypeActivated, events.TypeCertificateActivated, actor, "")
	return cert, nil
}

// Revoke moves a certificate to the terminal revoked status
func (s *Service) Revoke(ctx context.Context, actor, certificateID, reason string) (*model.Certificate, error) {
	cert, err := s.store.Revoke(
		identity.NormalizeID(certificateID), model.RevokeInfo{
			Actor:  actor,
			Reason: reason,
			At:     s.now().UTC(),
		},
	)
	if err != nil {
		return nil, err
	}
	s.record(ctx, cert, model.EventTypeRevoked, events.TypeCertificateRevoked, actor, reason)
	return cert, nil
}

// List returns the certificates selected by the passed query
func (s *Service) List(_ context.Context, query model.CertificateQuery) ([]model.Certificate, error) {
	for i, id := range query.CertificateIDs {
		query.CertificateIDs[i] = identity.NormalizeID(id)
	}
	return s.store.List(query)
}

// History returns the lifecycle events of a certificate
func (s *Service) History(_ context.Context, certificateID string) ([]model.CertificateEvent, error) {
	if s.audit == nil {
		return nil, nil
	}
	return s.audit.ForCertificate(identity.NormalizeID(certificateID))
}

func (s *Service) record(ctx context.Context, cert *model.Certificate, auditType, eventType, actor, message string) {
	logger := log.WithFields(
		log.Fields{
			"certificate_id": cert.CertificateID,
			"event":          auditType,
		},
	)
	if s.audit != nil {
		status := cert.Status.String()
		e := model.CertificateEvent{
			CertificateID: cert.CertificateID,
			Timestamp:     s.now().Unix(),
			Type:          auditType,
			Status:        &status,
		}
		if actor != "" {
			e.Actor = &actor
		}
		if message != "" {
			e.Message = &message
		}
		if err := s.audit.Add(e); err != nil {
			logger.WithError(err).Error("failed to store certificate event")
		}
	}
	event := events.New(eventType, cert.CertificateID)
	event.InstitutionName = cert.InstitutionName
	event.Status = cert.Status.String()
	event.Actor = actor
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.WithError(err).Error("failed to publish certificate event")
	}
	logger.Info("certificate lifecycle event")
}
