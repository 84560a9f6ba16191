package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/discipline"
)

type disciplineApi struct {
	svc      *discipline.Service
	sessions *sessions
}

func registerDisciplineAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := disciplineApi{svc: s.deps.DisciplineSvc, sessions: s.sessions}

	dg := g.Group("/demerit-point", jwt)
	dg.GET("", api.query)
	dg.POST("", api.create, staffMiddleware(s.sessions))
	dg.GET("/categories", api.categories)
	dg.GET("/summary", api.summary)
	dg.DELETE("/:id", api.destroy, staffMiddleware(s.sessions))
}

// bindDemeritFilter returns the classroom_id param along with the other filters.
func bindDemeritFilter(ctx echo.Context) (string, discipline.QueryFilter, error) {
	var filter discipline.QueryFilter
	var classroomID string
	var dates dateRange
	var categories []string
	b := echo.QueryParamsBinder(ctx).
		String("classroom_id", &classroomID).
		Strings("student_id", &filter.StudentIDs).
		Strings("category", &categories)
	if err := dates.bind(b).BindError(); err != nil {
		return "", filter, err
	}
	filter.Date, filter.From, filter.To = dates.Date, dates.From, dates.To
	for _, c := range categories {
		filter.Categories = append(filter.Categories, discipline.Category(c))
	}
	return classroomID, filter, nil
}

// Handlers

func (api *disciplineApi) create(ctx echo.Context) error {
	var data discipline.NewDemeritPoints
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDemeritPoints")
	}
	actor, err := api.sessions.actor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	points, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "recording demerit points")
	}
	return ctx.JSON(http.StatusCreated, points)
}

func (api *disciplineApi) query(ctx echo.Context) error {
	classroomID, filter, err := bindDemeritFilter(ctx)
	if err != nil {
		return err
	}
	actor, err := api.sessions.actor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	points, err := api.svc.Query(ctx.Request().Context(), actor, classroomID, filter)
	if err != nil {
		return errors.Wrap(err, "querying demerit points")
	}
	if points == nil {
		points = []discipline.DemeritPoint{}
	}
	return ctx.JSON(http.StatusOK, points)
}

func (api *disciplineApi) categories(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, discipline.Categories)
}

func (api *disciplineApi) summary(ctx echo.Context) error {
	classroomID, filter, err := bindDemeritFilter(ctx)
	if err != nil {
		return err
	}
	actor, err := api.sessions.actor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	summaries, err := api.svc.Summary(ctx.Request().Context(), actor, discipline.SummaryFilter{
		ClassroomID: classroomID,
		QueryFilter: filter,
	})
	if err != nil {
		return errors.Wrap(err, "summarizing demerit points")
	}
	if summaries == nil {
		summaries = []discipline.StudentSummary{}
	}
	return ctx.JSON(http.StatusOK, summaries)
}

func (api *disciplineApi) destroy(ctx echo.Context) error {
	actor, err := api.sessions.actor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	if err := api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting demerit point")
	}
	return ctx.NoContent(http.StatusNoContent)
}
