package credtrust

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/eduverify/credtrust/access"
	"github.com/eduverify/credtrust/api/adminapi"
	"github.com/eduverify/credtrust/api/apimodel"
	"github.com/eduverify/credtrust/otp"
	"github.com/eduverify/credtrust/storage/model"
)

const localsPrincipal = "principal"

// authenticate requires HTTP Basic credentials of an enabled user and
// stores the resulting access.Principal for the following handlers
func (s *Server) authenticate(ctx *fiber.Ctx) error {
	username, password, ok := adminapi.ParseBasicAuth(ctx)
	if !ok {
		ctx.Set(fiber.HeaderWWWAuthenticate, "Basic realm=credtrust")
		ctx.Status(fiber.StatusUnauthorized)
		return ctx.JSON(apimodel.ErrorInvalidClient("missing credentials"))
	}
	user, err := s.backends.Users.Authenticate(username, password)
	if err != nil {
		ctx.Set(fiber.HeaderWWWAuthenticate, "Basic realm=credtrust")
		ctx.Status(fiber.StatusUnauthorized)
		return ctx.JSON(apimodel.ErrorInvalidClient("invalid credentials"))
	}
	ctx.Locals(localsPrincipal, access.PrincipalFromUser(user))
	return ctx.Next()
}

func principalFrom(ctx *fiber.Ctx) access.Principal {
	p, _ := ctx.Locals(localsPrincipal).(access.Principal)
	return p
}

// requireCapability rejects principals lacking the capability
func requireCapability(action access.Action, resource access.Resource) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if !principalFrom(ctx).Can(action, resource) {
			ctx.Status(fiber.StatusForbidden)
			return ctx.JSON(
				apimodel.ErrorForbidden(
					"missing capability '" + string(resource) + ":" + string(action) + "'",
				),
			)
		}
		return ctx.Next()
	}
}

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type codeRequest struct {
	Username string `json:"username" form:"username"`
	Code     string `json:"code" form:"code"`
}

type registerRequest struct {
	Username    string `json:"username" form:"username"`
	Password    string `json:"password" form:"password"`
	DisplayName string `json:"display_name" form:"display_name"`
	Email       string `json:"email" form:"email"`
	Phone       string `json:"phone" form:"phone"`
	Role        string `json:"role" form:"role"`
}

// codeSentResponse tells the client where a one-time code went
type codeSentResponse struct {
	SentTo    string    `json:"sent_to"`
	ExpiresAt time.Time `json:"expires_at"`
}

// selfRegistrationRoles are the roles a user may pick when registering;
// institutes are created by an admin
var selfRegistrationRoles = []access.Role{
	access.RoleStudent,
	access.RoleVerifier,
}

func (s *Server) registerAuth(r fiber.Router) {
	g := r.Group("/auth")
	g.Post("/login", s.handleLogin)
	g.Post("/login/verify", s.handleLoginVerify)
	g.Post("/register", s.handleRegister)
	g.Post("/register/verify", s.handleRegisterVerify)
	g.Post("/register/resend", s.handleRegisterResend)
	r.Get(
		"/me", s.authenticate, func(ctx *fiber.Ctx) error {
			return ctx.JSON(principalFrom(ctx))
		},
	)
}

// otpAddress returns where one-time codes for the user are delivered
func otpAddress(u *model.User) string {
	if u.Email != "" {
		return u.Email
	}
	return u.Phone
}

// maskAddress hides most of an email address or phone number
func maskAddress(address string) string {
	if local, domain, ok := strings.Cut(address, "@"); ok {
		if len(local) <= 1 {
			return "*@" + domain
		}
		return local[:1] + strings.Repeat("*", len(local)-1) + "@" + domain
	}
	if len(address) <= 4 {
		return strings.Repeat("*", len(address))
	}
	return strings.Repeat("*", len(address)-4) + address[len(address)-4:]
}

func (s *Server) sendCode(ctx *fiber.Ctx, address string, purpose model.OTPPurpose) error {
	session, err := s.OTP.RequestCode(ctx.UserContext(), address, purpose)
	if err != nil {
		return writeError(ctx, err)
	}
	ctx.Status(fiber.StatusAccepted)
	return ctx.JSON(
		codeSentResponse{
			SentTo:    maskAddress(session.Subject),
			ExpiresAt: session.ExpiresAt,
		},
	)
}

// acceptCode verifies a code for the address and checks it was issued for
// the expected purpose
func (s *Server) acceptCode(ctx *fiber.Ctx, address, code string, purpose model.OTPPurpose) error {
	session, err := s.OTP.VerifyCode(ctx.UserContext(), address, code)
	if err != nil {
		return err
	}
	if session.Purpose != purpose {
		log.WithFields(
			log.Fields{
				"subject":  session.Subject,
				"expected": purpose,
				"got":      session.Purpose,
			},
		).Warn("otp code used for wrong purpose")
		return errors.Wrapf(otp.ErrInvalidCode, "code was issued for '%s'", session.Purpose)
	}
	return nil
}

func (s *Server) handleLogin(ctx *fiber.Ctx) error {
	var req loginRequest
	if err := ctx.BodyParser(&req); err != nil {
		ctx.Status(fiber.StatusBadRequest)
		return ctx.JSON(apimodel.ErrorInvalidRequest("could not parse request body: " + err.Error()))
	}
	user, err := s.backends.Users.Authenticate(req.Username, req.Password)
	if err != nil {
		ctx.Status(fiber.StatusUnauthorized)
		return ctx.JSON(apimodel.ErrorInvalidClient("invalid credentials"))
	}
	address := otpAddress(user)
	if address == "" {
		ctx.Status(fiber.StatusBadRequest)
		return ctx.JSON(apimodel.ErrorInvalidRequest("account has no email address or phone number"))
	}
	return s.sendCode(ctx, address, model.OTPPurposeLogin)
}

func (s *Server) handleLoginVerify(ctx *fiber.Ctx) error {
	var req codeRequest
	if err := ctx.BodyParser(&req); err != nil {
		ctx.Status(fiber.StatusBadRequest)
		return ctx.JSON(apimodel.ErrorInvalidRequest("could not parse request body: " + err.Error()))
	}
	user, err := s.backends.Users.Get(req.Username)
	if err != nil || user.Disabled || user.PendingVerification {
		ctx.Status(fiber.StatusUnauthorized)
		return ctx.JSON(apimodel.ErrorInvalidClient("invalid credentials"))
	}
	if err = s.acceptCode(ctx, otpAddress(user), req.Code, model.OTPPurposeLogin); err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(access.PrincipalFromUser(user))
}

func (s *Server) handleRegister(ctx *fiber.Ctx) error {
	var req registerRequest
	if err := ctx.BodyParser(&req); err != nil {
		ctx.Status(fiber.StatusBadRequest)
		return ctx.JSON(apimodel.ErrorInvalidRequest("could not parse request body: " + err.Error()))
	}
	if req.Username == "" || req.Password == "" {
		ctx.Status(fiber.StatusBadRequest)
		return ctx.JSON(apimodel.ErrorInvalidRequest("username and password are required"))
	}
	if req.Email == "" && req.Phone == "" {
		ctx.Status(fiber.StatusBadRequest)
		return ctx.JSON(apimodel.ErrorInvalidRequest("an email address or phone number is required"))
	}
	if req.Role == "" {
		req.Role = string(access.RoleStudent)
	}
	allowed := false
	for _, r := range selfRegistrationRoles {
		if access.Role(req.Role) == r {
			allowed = true
			break
		}
	}
	if !allowed {
		ctx.Status(fiber.StatusBadRequest)
		return ctx.JSON(apimodel.ErrorInvalidRequest("role '" + req.Role + "' cannot be chosen at registration"))
	}
	user, err := s.backends.Users.Create(
		model.User{
			Username:    req.Username,
			DisplayName: req.DisplayName,
			Role:        req.Role,
			Email:       req.Email,
			Phone:       req.Phone,

			PendingVerification: true,
		}, req.Password,
	)
	if err != nil {
		return writeError(ctx, err)
	}
	return s.sendCode(ctx, otpAddress(user), model.OTPPurposeRegistration)
}

// pendingRegistration returns the account named in the body if it still
// awaits its registration code
func (s *Server) pendingRegistration(ctx *fiber.Ctx, req *codeRequest) (*model.User, error) {
	if err := ctx.BodyParser(req); err != nil {
		ctx.Status(fiber.StatusBadRequest)
		return nil, ctx.JSON(apimodel.ErrorInvalidRequest("could not parse request body: " + err.Error()))
	}
	user, err := s.backends.Users.Get(req.Username)
	if err != nil {
		return nil, writeError(ctx, err)
	}
	if !user.PendingVerification {
		ctx.Status(fiber.StatusConflict)
		return nil, ctx.JSON(apimodel.NewError(apimodel.ErrorCodeConflict, "account has no pending registration"))
	}
	return user, nil
}

func (s *Server) handleRegisterResend(ctx *fiber.Ctx) error {
	var req codeRequest
	user, err := s.pendingRegistration(ctx, &req)
	if user == nil {
		return err
	}
	return s.sendCode(ctx, otpAddress(user), model.OTPPurposeRegistration)
}

func (s *Server) handleRegisterVerify(ctx *fiber.Ctx) error {
	var req codeRequest
	user, err := s.pendingRegistration(ctx, &req)
	if user == nil {
		return err
	}
	if err = s.acceptCode(ctx, otpAddress(user), req.Code, model.OTPPurposeRegistration); err != nil {
		return writeError(ctx, err)
	}
	verified := false
	user, err = s.backends.Users.Update(user.Username, model.UserData{PendingVerification: &verified})
	if err != nil {
		return writeError(ctx, err)
	}
	if user.Disabled {
		ctx.Status(fiber.StatusForbidden)
		return ctx.JSON(apimodel.ErrorForbidden("account is disabled"))
	}
	return ctx.JSON(access.PrincipalFromUser(user))
}
