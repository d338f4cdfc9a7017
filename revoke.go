package credtrust

import (
	"github.com/gofiber/fiber/v2"
)

type revokeRequest struct {
	Reason string `json:"reason" form:"reason"`
}

func (s *Server) handleRevoke(ctx *fiber.Ctx) error {
	var req revokeRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return writeError(ctx, fiber.NewError(fiber.StatusBadRequest, "could not parse request body: "+err.Error()))
		}
	}
	cert, err := s.scopedCertificate(ctx)
	if err != nil {
		return writeError(ctx, err)
	}
	cert, err = s.Lifecycle.Revoke(ctx.UserContext(), principalFrom(ctx).Username, cert.CertificateID, req.Reason)
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(cert)
}

func (s *Server) handleActivate(ctx *fiber.Ctx) error {
	cert, err := s.scopedCertificate(ctx)
	if err != nil {
		return writeError(ctx, err)
	}
	cert, err = s.Lifecycle.Activate(ctx.UserContext(), principalFrom(ctx).Username, cert.CertificateID)
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(cert)
}
