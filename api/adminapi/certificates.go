package adminapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	"github.com/eduverify/credtrust/api/apimodel"
	"github.com/eduverify/credtrust/internal/utils"
	"github.com/eduverify/credtrust/lifecycle"
	"github.com/eduverify/credtrust/storage/model"
)

func certificateError(c *fiber.Ctx, err error) error {
	var (
		alreadyRevoked    model.AlreadyRevokedError
		invalidTransition model.InvalidTransitionError
	)
	switch {
	case errors.As(err, &alreadyRevoked):
		return c.Status(fiber.StatusConflict).JSON(
			apimodel.NewError(apimodel.ErrorCodeAlreadyRevoked, alreadyRevoked.Error()),
		)
	case errors.As(err, &invalidTransition):
		return c.Status(fiber.StatusConflict).JSON(
			apimodel.NewError(apimodel.ErrorCodeInvalidTransition, invalidTransition.Error()),
		)
	default:
		return storeError(c, err, "certificate not found")
	}
}

// registerCertificates wires unscoped certificate management for admins
func registerCertificates(r fiber.Router, service *lifecycle.Service, onChange func()) {
	g := r.Group("/certificates")
	changed := changeNotificationMiddleware(onChange)

	g.Get(
		"/", func(c *fiber.Ctx) error {
			query := model.CertificateQuery{
				CertificateIDs:  utils.SplitList(c.Query("certificate_id")),
				InstitutionName: c.Query("institution_name"),
				StudentEmail:    c.Query("student_email"),
			}
			for _, v := range utils.SplitList(c.Query("status")) {
				st, err := model.ParseStatus(v)
				if err != nil {
					return c.Status(fiber.StatusBadRequest).JSON(apimodel.ErrorInvalidRequest(err.Error()))
				}
				query.Statuses = append(query.Statuses, st)
			}
			certs, err := service.List(c.UserContext(), query)
			if err != nil {
				return certificateError(c, err)
			}
			if certs == nil {
				certs = []model.Certificate{}
			}
			return c.JSON(certs)
		},
	)

	g.Get(
		"/:id/history", func(c *fiber.Ctx) error {
			history, err := service.History(c.UserContext(), c.Params("id"))
			if err != nil {
				return certificateError(c, err)
			}
			if history == nil {
				history = []model.CertificateEvent{}
			}
			return c.JSON(history)
		},
	)

	g.Post(
		"/:id/activate", changed, func(c *fiber.Ctx) error {
			cert, err := service.Activate(c.UserContext(), actor(c), c.Params("id"))
			if err != nil {
				return certificateError(c, err)
			}
			return c.JSON(cert)
		},
	)

	type revokeReq struct {
		Reason string `json:"reason"`
	}
	g.Post(
		"/:id/revoke", changed, func(c *fiber.Ctx) error {
			var req revokeReq
			if len(c.Body()) > 0 {
				if err := c.BodyParser(&req); err != nil {
					return c.Status(fiber.StatusBadRequest).JSON(apimodel.ErrorInvalidRequest("invalid body"))
				}
			}
			cert, err := service.Revoke(c.UserContext(), actor(c), c.Params("id"), req.Reason)
			if err != nil {
				return certificateError(c, err)
			}
			return c.JSON(cert)
		},
	)
}
