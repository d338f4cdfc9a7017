package credtrust

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/eduverify/credtrust/api/apimodel"
	"github.com/eduverify/credtrust/notify"
	"github.com/eduverify/credtrust/proof"
	"github.com/eduverify/credtrust/storage/model"
)

type proofRequest struct {
	Email string `json:"email" form:"email"`
	Code  string `json:"code" form:"code"`
}

type proofResponse struct {
	SentTo string `json:"sent_to"`
	Proof  string `json:"proof"`
}

func (s *Server) registerVerify(r fiber.Router) {
	g := r.Group("/verify")
	g.Get("/:id", s.handleVerify)
	g.Post("/:id/proof", s.handleProof)
}

func (s *Server) handleVerify(ctx *fiber.Ctx) error {
	res, err := s.Verification.Verify(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return writeError(ctx, err)
	}
	if !res.Found {
		ctx.Status(fiber.StatusNotFound)
	}
	return ctx.JSON(res)
}

// handleProof accepts a verification_proof code for the email address,
// signs a proof of the certificate's current state and sends it there
func (s *Server) handleProof(ctx *fiber.Ctx) error {
	if s.Signer == nil {
		ctx.Status(fiber.StatusNotFound)
		return ctx.JSON(apimodel.ErrorNotFound("verification proofs are not enabled"))
	}
	var req proofRequest
	if err := ctx.BodyParser(&req); err != nil {
		ctx.Status(fiber.StatusBadRequest)
		return ctx.JSON(apimodel.ErrorInvalidRequest("could not parse request body: " + err.Error()))
	}
	if req.Email == "" || req.Code == "" {
		ctx.Status(fiber.StatusBadRequest)
		return ctx.JSON(apimodel.ErrorInvalidRequest("email and code are required"))
	}
	if err := s.acceptCode(ctx, req.Email, req.Code, model.OTPPurposeVerificationProof); err != nil {
		return writeError(ctx, err)
	}
	res, err := s.Verification.Inspect(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return writeError(ctx, err)
	}
	p, err := proof.FromResult(res, req.Email, time.Now())
	if err != nil {
		return writeError(ctx, err)
	}
	signed, err := s.Signer.Sign(*p)
	if err != nil {
		return writeError(ctx, errors.Wrap(err, "could not sign proof"))
	}
	msg := notify.Message{
		Channel: notify.ChannelEmail,
		To:      req.Email,
		Subject: fmt.Sprintf("Verification proof for certificate %s", p.CertificateID),
		Body: fmt.Sprintf(
			"Certificate %s issued by %s was checked at %s with result %s.\n"+
				"The attached signed proof can be checked against %s.",
			p.CertificateID, p.Institution, p.VerifiedAt.UTC().Format(time.RFC3339), p.Status, s.Signer.Issuer(),
		),
		Purpose:        string(model.OTPPurposeVerificationProof),
		AttachmentName: p.CertificateID + ".jws",
		Attachment:     signed,
	}
	if err = s.Notifier.Notify(ctx.UserContext(), msg); err != nil {
		return writeError(ctx, err)
	}
	log.WithFields(
		log.Fields{
			"certificate_id": p.CertificateID,
			"status":         p.Status,
		},
	).Info("sent verification proof")
	return ctx.JSON(
		proofResponse{
			SentTo: maskAddress(req.Email),
			Proof:  string(signed),
		},
	)
}

func (s *Server) addProofKeysEndpoint(endpoint EndpointConf) {
	s.server.Get(
		endpoint.Path, func(ctx *fiber.Ctx) error {
			set, err := s.Signer.JWKS()
			if err != nil {
				return writeError(ctx, err)
			}
			ctx.Set(fiber.HeaderCacheControl, "public, max-age=3600")
			return ctx.JSON(set)
		},
	)
}
