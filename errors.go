package credtrust

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/eduverify/credtrust/access"
	"github.com/eduverify/credtrust/api/apimodel"
	"github.com/eduverify/credtrust/identity"
	"github.com/eduverify/credtrust/lifecycle"
	"github.com/eduverify/credtrust/notify"
	"github.com/eduverify/credtrust/otp"
	"github.com/eduverify/credtrust/proof"
	"github.com/eduverify/credtrust/storage/model"
)

// errorResponse maps an error returned by the engine to a status code and
// response body
func errorResponse(err error) (int, apimodel.Error) {
	var (
		validation        identity.ValidationError
		notFound          model.NotFoundError
		alreadyExists     model.AlreadyExistsError
		alreadyRevoked    model.AlreadyRevokedError
		invalidTransition model.InvalidTransitionError
		duplicate         lifecycle.DuplicateIdentityError
		deliveryFailed    *notify.DeliveryFailedError
		fiberErr          *fiber.Error
	)
	switch {
	case errors.As(err, &validation):
		return fiber.StatusBadRequest, apimodel.ErrorInvalidRequest(validation.Error())
	case errors.As(err, &notFound):
		return fiber.StatusNotFound, apimodel.ErrorNotFound(notFound.Error())
	case errors.Is(err, proof.ErrNotFound):
		return fiber.StatusNotFound, apimodel.ErrorNotFound(err.Error())
	case errors.As(err, &alreadyExists):
		return fiber.StatusConflict, apimodel.NewError(apimodel.ErrorCodeConflict, alreadyExists.Error())
	case errors.As(err, &alreadyRevoked):
		return fiber.StatusConflict, apimodel.NewError(apimodel.ErrorCodeAlreadyRevoked, alreadyRevoked.Error())
	case errors.As(err, &invalidTransition):
		return fiber.StatusConflict, apimodel.NewError(
			apimodel.ErrorCodeInvalidTransition, invalidTransition.Error(),
		)
	case errors.As(err, &duplicate):
		return fiber.StatusServiceUnavailable, apimodel.NewError(
			apimodel.ErrorCodeTemporarilyUnavail, duplicate.Error(),
		)
	case errors.Is(err, otp.ErrInvalidCode):
		return fiber.StatusUnauthorized, apimodel.NewError(apimodel.ErrorCodeInvalidCode, err.Error())
	case errors.Is(err, otp.ErrExpired):
		return fiber.StatusGone, apimodel.NewError(apimodel.ErrorCodeExpiredCode, err.Error())
	case errors.Is(err, otp.ErrLocked):
		return fiber.StatusTooManyRequests, apimodel.NewError(apimodel.ErrorCodeLocked, err.Error())
	case errors.Is(err, otp.ErrUnknownPurpose), errors.Is(err, otp.ErrNoSubject):
		return fiber.StatusBadRequest, apimodel.ErrorInvalidRequest(err.Error())
	case errors.As(err, &deliveryFailed):
		return fiber.StatusBadGateway, apimodel.NewError(apimodel.ErrorCodeDeliveryFailed, deliveryFailed.Error())
	case errors.Is(err, access.ErrNoScope):
		return fiber.StatusForbidden, apimodel.ErrorForbidden(err.Error())
	case errors.As(err, &fiberErr):
		return fiberErr.Code, apimodel.NewError(errorCodeForStatus(fiberErr.Code), fiberErr.Message)
	default:
		return fiber.StatusInternalServerError, apimodel.ErrorServerError(err.Error())
	}
}

func errorCodeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return apimodel.ErrorCodeInvalidRequest
	case fiber.StatusUnauthorized:
		return apimodel.ErrorCodeInvalidClient
	case fiber.StatusForbidden:
		return apimodel.ErrorCodeForbidden
	case fiber.StatusNotFound:
		return apimodel.ErrorCodeNotFound
	default:
		return apimodel.ErrorCodeServerError
	}
}

// writeError writes the response for err
func writeError(ctx *fiber.Ctx, err error) error {
	status, body := errorResponse(err)
	if status >= fiber.StatusInternalServerError {
		log.WithError(err).WithField("path", ctx.Path()).Error("request failed")
	}
	ctx.Status(status)
	return ctx.JSON(body)
}

func handleError(ctx *fiber.Ctx, err error) error {
	return writeError(ctx, err)
}
