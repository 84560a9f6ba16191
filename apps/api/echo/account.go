package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/account"
)

type accountApi struct {
	svc *account.Service
}

func registerAccountAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := accountApi{svc: s.deps.AccountSvc}

	bg := g.Group("/auth/account/bulk", jwt, adminMiddleware(s.sessions))
	bg.POST("/student-accounts", api.createStudents)
	bg.POST("/teacher-accounts", api.createTeachers)
	bg.POST("/parent-accounts", api.createParents)
	bg.GET("/:kind/template", api.template)
}

// Handlers

func (api *accountApi) createStudents(ctx echo.Context) error {
	rows, err := bindUploadRows(ctx)
	if err != nil {
		return err
	}
	data, err := account.StudentRows(rows)
	if err != nil {
		return err
	}
	accs, err := api.svc.CreateStudents(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student accounts")
	}
	return ctx.JSON(http.StatusCreated, BulkAccountsResponse{Created: len(accs), Accounts: accs})
}

func (api *accountApi) createTeachers(ctx echo.Context) error {
	rows, err := bindUploadRows(ctx)
	if err != nil {
		return err
	}
	accs, err := api.svc.CreateTeachers(ctx.Request().Context(), account.TeacherRows(rows))
	if err != nil {
		return errors.Wrap(err, "creating teacher accounts")
	}
	return ctx.JSON(http.StatusCreated, BulkAccountsResponse{Created: len(accs), Accounts: accs})
}

func (api *accountApi) createParents(ctx echo.Context) error {
	rows, err := bindUploadRows(ctx)
	if err != nil {
		return err
	}
	accs, err := api.svc.CreateParents(ctx.Request().Context(), account.ParentRows(rows))
	if err != nil {
		return errors.Wrap(err, "creating parent accounts")
	}
	return ctx.JSON(http.StatusCreated, BulkAccountsResponse{Created: len(accs), Accounts: accs})
}

func (api *accountApi) template(ctx echo.Context) error {
	kind := account.Kind(ctx.Param("kind"))
	if !kind.IsValid() {
		return errHttpNotFound
	}
	return sendTable(ctx, account.Template(kind))
}

// BulkAccountsResponse lists the accounts created out of a bulk file.
type BulkAccountsResponse struct {
	Created  int                      `json:"created"`
	Accounts []account.CreatedAccount `json:"accounts"`
}
