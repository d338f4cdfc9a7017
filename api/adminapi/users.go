package adminapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	"github.com/eduverify/credtrust/access"
	"github.com/eduverify/credtrust/api/apimodel"
	"github.com/eduverify/credtrust/storage/model"
)

func storeError(c *fiber.Ctx, err error, notFound string) error {
	var nf model.NotFoundError
	var ae model.AlreadyExistsError
	switch {
	case errors.As(err, &nf):
		return c.Status(fiber.StatusNotFound).JSON(apimodel.ErrorNotFound(notFound))
	case errors.As(err, &ae):
		return c.Status(fiber.StatusConflict).JSON(apimodel.NewError(apimodel.ErrorCodeConflict, ae.Error()))
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(apimodel.ErrorServerError(err.Error()))
	}
}

// validateRole checks the role of a user and that institutes name their
// institution
func validateRole(role, institution string) error {
	if !access.Role(role).Valid() {
		return errors.Errorf("unknown role '%s'", role)
	}
	if access.Role(role) == access.RoleInstitute && institution == "" {
		return errors.New("users with role 'institute' need an institution")
	}
	return nil
}

// registerUsers wires handlers using a UsersStore abstraction.
func registerUsers(r fiber.Router, users model.UsersStore) {
	g := r.Group("/users")

	g.Get(
		"/", func(c *fiber.Ctx) error {
			list, err := users.List()
			if err != nil {
				return storeError(c, err, "")
			}
			if list == nil {
				list = []model.User{}
			}
			return c.JSON(list)
		},
	)

	type createReq struct {
		Username    string `json:"username"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
		Role        string `json:"role"`
		Email       string `json:"email"`
		Phone       string `json:"phone"`
		Institution string `json:"institution"`
	}
	g.Post(
		"/", func(c *fiber.Ctx) error {
			var req createReq
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(apimodel.ErrorInvalidRequest("invalid body"))
			}
			if req.Username == "" || req.Password == "" {
				return c.Status(fiber.StatusBadRequest).JSON(
					apimodel.ErrorInvalidRequest("username and password are required"),
				)
			}
			if req.Role == "" {
				req.Role = string(access.RoleAdmin)
			}
			if err := validateRole(req.Role, req.Institution); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(apimodel.ErrorInvalidRequest(err.Error()))
			}
			u, err := users.Create(
				model.User{
					Username:    req.Username,
					DisplayName: req.DisplayName,
					Role:        req.Role,
					Email:       req.Email,
					Phone:       req.Phone,
					Institution: req.Institution,
				}, req.Password,
			)
			if err != nil {
				return storeError(c, err, "")
			}
			return c.Status(fiber.StatusCreated).JSON(u)
		},
	)

	g.Put(
		"/:username", func(c *fiber.Ctx) error {
			username := c.Params("username")
			var req model.UserData
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(apimodel.ErrorInvalidRequest("invalid body"))
			}
			if req.Role != nil || req.Institution != nil {
				current, err := users.Get(username)
				if err != nil {
					return storeError(c, err, "user not found")
				}
				role, institution := current.Role, current.Institution
				if req.Role != nil {
					role = *req.Role
				}
				if req.Institution != nil {
					institution = *req.Institution
				}
				if err = validateRole(role, institution); err != nil {
					return c.Status(fiber.StatusBadRequest).JSON(apimodel.ErrorInvalidRequest(err.Error()))
				}
			}
			u, err := users.Update(username, req)
			if err != nil {
				return storeError(c, err, "user not found")
			}
			return c.JSON(u)
		},
	)

	g.Get(
		"/:username", func(c *fiber.Ctx) error {
			u, err := users.Get(c.Params("username"))
			if err != nil {
				return storeError(c, err, "user not found")
			}
			return c.JSON(u)
		},
	)

	g.Delete(
		"/:username", func(c *fiber.Ctx) error {
			if err := users.Delete(c.Params("username")); err != nil {
				return storeError(c, err, "user not found")
			}
			return c.SendStatus(fiber.StatusNoContent)
		},
	)
}
