package credtrust

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"tideland.dev/go/slices"

	"github.com/eduverify/credtrust/api/apimodel"
	"github.com/eduverify/credtrust/otp"
	"github.com/eduverify/credtrust/storage/model"
)

type otpRequest struct {
	Subject string           `json:"subject" form:"subject"`
	Purpose model.OTPPurpose `json:"purpose" form:"purpose"`
	Code    string           `json:"code" form:"code"`
}

type otpVerifiedResponse struct {
	Subject  string           `json:"subject"`
	Purpose  model.OTPPurpose `json:"purpose"`
	Verified bool             `json:"verified"`
}

func (s *Server) registerOTP(r fiber.Router) {
	g := r.Group("/otp")
	g.Post("/request", s.handleOTPRequest)
	g.Post("/resend", s.handleOTPRequest)
	g.Post("/verify", s.handleOTPVerify)
}

// accountPurposes are only issued by the /auth endpoints, which check the
// account state before sending a code
var accountPurposes = []model.OTPPurpose{
	model.OTPPurposeLogin,
	model.OTPPurposeRegistration,
}

// parseOTPRequest parses the body and rejects the account purposes
func parseOTPRequest(ctx *fiber.Ctx) (*otpRequest, *apimodel.Error) {
	var req otpRequest
	if err := ctx.BodyParser(&req); err != nil {
		e := apimodel.ErrorInvalidRequest("could not parse request body: " + err.Error())
		return nil, &e
	}
	if slices.IsMember(req.Purpose, accountPurposes) {
		e := apimodel.ErrorInvalidRequest(
			fmt.Sprintf("%s codes are requested through the /auth endpoints", req.Purpose),
		)
		return nil, &e
	}
	return &req, nil
}

func (s *Server) handleOTPRequest(ctx *fiber.Ctx) error {
	req, e := parseOTPRequest(ctx)
	if e != nil {
		ctx.Status(fiber.StatusBadRequest)
		return ctx.JSON(e)
	}
	return s.sendCode(ctx, req.Subject, req.Purpose)
}

func (s *Server) handleOTPVerify(ctx *fiber.Ctx) error {
	req, e := parseOTPRequest(ctx)
	if e != nil {
		ctx.Status(fiber.StatusBadRequest)
		return ctx.JSON(e)
	}
	if req.Code == "" {
		ctx.Status(fiber.StatusBadRequest)
		return ctx.JSON(apimodel.ErrorInvalidRequest("code is required"))
	}
	if !req.Purpose.Valid() {
		return writeError(ctx, errors.WithStack(otp.ErrUnknownPurpose))
	}
	if err := s.acceptCode(ctx, req.Subject, req.Code, req.Purpose); err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(
		otpVerifiedResponse{
			Subject:  maskAddress(req.Subject),
			Purpose:  req.Purpose,
			Verified: true,
		},
	)
}
