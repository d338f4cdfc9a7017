package credtrust

import (
	"fmt"

	arrays "github.com/adam-hanna/arrayOperations"
	"github.com/gofiber/fiber/v2"
	"tideland.dev/go/slices"

	"github.com/eduverify/credtrust/access"
	"github.com/eduverify/credtrust/api/apimodel"
	"github.com/eduverify/credtrust/internal/utils"
	"github.com/eduverify/credtrust/storage/model"
)

func statusStrings(statuses []model.Status) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = st.String()
	}
	return out
}

// visibleStatuses returns the statuses of certificates the principal may
// see; students do not see certificates their institution has not
// confirmed yet
func visibleStatuses(p access.Principal) []string {
	if p.Role == access.RoleStudent {
		return []string{
			model.StatusActive.String(),
			model.StatusRevoked.String(),
		}
	}
	return statusStrings(model.AllStatuses)
}

// scopedQuery builds the certificate query of a request from the
// principal's scope and the status and certificate_id query parameters
func scopedQuery(ctx *fiber.Ctx) (model.CertificateQuery, *apimodel.Error) {
	p := principalFrom(ctx)
	query, err := access.Scope(p)
	if err != nil {
		e := apimodel.ErrorForbidden(err.Error())
		return query, &e
	}
	wanted := utils.SplitList(ctx.Query("status"))
	if unknown := slices.Subtract(wanted, statusStrings(model.AllStatuses)); len(unknown) > 0 {
		e := apimodel.ErrorInvalidRequest(
			fmt.Sprintf("parameter 'status' contains the following unknown values: %+v", unknown),
		)
		return query, &e
	}
	visible := visibleStatuses(p)
	if len(wanted) == 0 {
		wanted = visible
	}
	statuses := arrays.Intersect(wanted, visible)
	if len(statuses) == 0 {
		// Nothing requested is visible; match no status at all.
		query.Filters = append(query.Filters, func(*model.Certificate) bool { return false })
	}
	for _, st := range statuses {
		parsed, _ := model.ParseStatus(st)
		query.Statuses = append(query.Statuses, parsed)
	}
	query.CertificateIDs = utils.SplitList(ctx.Query("certificate_id"))
	return query, nil
}

func (s *Server) handleList(ctx *fiber.Ctx) error {
	query, e := scopedQuery(ctx)
	if e != nil {
		ctx.Status(statusForError(*e))
		return ctx.JSON(e)
	}
	certs, err := s.Lifecycle.List(ctx.UserContext(), query)
	if err != nil {
		return writeError(ctx, err)
	}
	if certs == nil {
		certs = []model.Certificate{}
	}
	return ctx.JSON(certs)
}

func (s *Server) handleStats(ctx *fiber.Ctx) error {
	query, e := scopedQuery(ctx)
	if e != nil {
		ctx.Status(statusForError(*e))
		return ctx.JSON(e)
	}
	stats, err := s.Lifecycle.Stats(ctx.UserContext(), query)
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(stats)
}

func statusForError(e apimodel.Error) int {
	if e.Error == apimodel.ErrorCodeForbidden {
		return fiber.StatusForbidden
	}
	return fiber.StatusBadRequest
}

// scopedCertificate returns the certificate of the id path parameter if
// the principal may see it; others are reported as not found
func (s *Server) scopedCertificate(ctx *fiber.Ctx) (*model.Certificate, error) {
	id := ctx.Params("id")
	cert, err := s.Lifecycle.Get(ctx.UserContext(), id)
	if err != nil {
		return nil, err
	}
	p := principalFrom(ctx)
	if !access.InScope(p, cert) || !slices.IsMember(cert.Status.String(), visibleStatuses(p)) {
		return nil, model.NotFoundErrorFmt("certificate not found: %s", id)
	}
	return cert, nil
}

func (s *Server) handleGet(ctx *fiber.Ctx) error {
	cert, err := s.scopedCertificate(ctx)
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(cert)
}

func (s *Server) handleHistory(ctx *fiber.Ctx) error {
	cert, err := s.scopedCertificate(ctx)
	if err != nil {
		return writeError(ctx, err)
	}
	history, err := s.Lifecycle.History(ctx.UserContext(), cert.CertificateID)
	if err != nil {
		return writeError(ctx, err)
	}
	if history == nil {
		history = []model.CertificateEvent{}
	}
	return ctx.JSON(history)
}
