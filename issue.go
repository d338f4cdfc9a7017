package credtrust

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/eduverify/credtrust/access"
	"github.com/eduverify/credtrust/api/apimodel"
	"github.com/eduverify/credtrust/lifecycle"
)

func (s *Server) registerCertificates(r fiber.Router) {
	g := r.Group("/certificates", s.authenticate)
	g.Post(
		"/", requireCapability(access.ActionCreate, access.ResourceCertificate),
		s.reputationCacheInvalidationMiddleware, s.handleIssue,
	)
	g.Get("/", requireCapability(access.ActionList, access.ResourceCertificate), s.handleList)
	g.Get("/stats", requireCapability(access.ActionView, access.ResourceAnalytics), s.handleStats)
	g.Get("/:id", requireCapability(access.ActionRead, access.ResourceCertificate), s.handleGet)
	g.Get("/:id/history", requireCapability(access.ActionRead, access.ResourceCertificate), s.handleHistory)
	g.Post(
		"/:id/activate", requireCapability(access.ActionUpdate, access.ResourceCertificate),
		s.reputationCacheInvalidationMiddleware, s.handleActivate,
	)
	g.Post(
		"/:id/revoke", requireCapability(access.ActionRevoke, access.ResourceCertificate),
		s.reputationCacheInvalidationMiddleware, s.handleRevoke,
	)
}

func (s *Server) handleIssue(ctx *fiber.Ctx) error {
	var req lifecycle.IssueRequest
	if err := ctx.BodyParser(&req); err != nil {
		ctx.Status(fiber.StatusBadRequest)
		return ctx.JSON(apimodel.ErrorInvalidRequest("could not parse request body: " + err.Error()))
	}
	p := principalFrom(ctx)
	if p.Role == access.RoleInstitute {
		switch strings.TrimSpace(req.InstitutionName) {
		case "":
			req.InstitutionName = p.Institution
		case p.Institution:
		default:
			ctx.Status(fiber.StatusForbidden)
			return ctx.JSON(apimodel.ErrorForbidden("institutes can only issue certificates in their own name"))
		}
	}
	cert, err := s.Lifecycle.Issue(ctx.UserContext(), p.Username, req)
	if err != nil {
		return writeError(ctx, err)
	}
	ctx.Status(fiber.StatusCreated)
	return ctx.JSON(cert)
}
