package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/grading"
	"github.com/trezcool/shule/core/school"
)

type gradingApi struct {
	svc      *grading.Service
	sessions *sessions
}

func registerGradingAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := gradingApi{svc: s.deps.GradingSvc, sessions: s.sessions}

	ag := g.Group("/assessments", jwt)
	ag.GET("", api.queryAssessments)
	ag.POST("", api.createAssessment, staffMiddleware(s.sessions))
	ag.GET("/export", api.exportScores, staffMiddleware(s.sessions))
	ag.GET("/:id", api.retrieveAssessment)
	ag.DELETE("/:id", api.destroyAssessment, staffMiddleware(s.sessions))
	ag.GET("/:id/scores", api.scores)
	ag.POST("/:id/scores", api.upsertScores, staffMiddleware(s.sessions))

	g.GET("/gradebooks", api.queryGradebooks, jwt)
}

func bindAssessmentFilter(ctx echo.Context) (grading.AssessmentFilter, error) {
	var filter grading.AssessmentFilter
	var typ string
	err := echo.QueryParamsBinder(ctx).
		Strings("id", &filter.IDs).
		Strings("classroom_id", &filter.ClassroomIDs).
		String("subject_id", &filter.SubjectID).
		String("academic_year", &filter.AcademicYear).
		Int("semester", &filter.Semester).
		String("type", &typ).
		BindError()
	filter.Type = school.AssessmentType(typ)
	return filter, err
}

// Handlers

func (api *gradingApi) createAssessment(ctx echo.Context) error {
	var data grading.NewAssessment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssessment")
	}
	actor, err := api.sessions.actor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	a, err := api.svc.CreateAssessment(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating assessment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *gradingApi) queryAssessments(ctx echo.Context) error {
	filter, err := bindAssessmentFilter(ctx)
	if err != nil {
		return err
	}
	actor, err := api.sessions.actor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	assessments, err := api.svc.QueryAssessments(ctx.Request().Context(), actor, filter)
	if err != nil {
		return errors.Wrap(err, "querying assessments")
	}
	if assessments == nil {
		assessments = []grading.Assessment{}
	}
	return ctx.JSON(http.StatusOK, assessments)
}

func (api *gradingApi) retrieveAssessment(ctx echo.Context) error {
	actor, err := api.sessions.actor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	a, err := api.svc.GetAssessment(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding assessment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *gradingApi) destroyAssessment(ctx echo.Context) error {
	actor, err := api.sessions.actor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	if err := api.svc.DeleteAssessment(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting assessment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *gradingApi) scores(ctx echo.Context) error {
	actor, err := api.sessions.actor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	scores, err := api.svc.Scores(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying scores")
	}
	if scores == nil {
		scores = []grading.AssessmentScore{}
	}
	return ctx.JSON(http.StatusOK, scores)
}

func (api *gradingApi) upsertScores(ctx echo.Context) error {
	var data grading.UpsertScores
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpsertScores")
	}
	actor, err := api.sessions.actor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	scores, err := api.svc.UpsertScores(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "upserting scores")
	}
	if scores == nil {
		scores = []grading.AssessmentScore{}
	}
	return ctx.JSON(http.StatusOK, scores)
}

func (api *gradingApi) exportScores(ctx echo.Context) error {
	filter, err := bindAssessmentFilter(ctx)
	if err != nil {
		return err
	}
	actor, err := api.sessions.actor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	table, err := api.svc.ScoreSheet(ctx.Request().Context(), actor, filter)
	if err != nil {
		return errors.Wrap(err, "exporting scores")
	}
	return sendTable(ctx, table)
}

func (api *gradingApi) queryGradebooks(ctx echo.Context) error {
	var filter grading.GradebookFilter
	err := echo.QueryParamsBinder(ctx).
		Strings("id", &filter.IDs).
		Strings("student_id", &filter.StudentIDs).
		String("subject_id", &filter.SubjectID).
		String("academic_year", &filter.AcademicYear).
		Int("semester", &filter.Semester).
		BindError()
	if err != nil {
		return err
	}
	actor, err := api.sessions.actor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	gbs, err := api.svc.QueryGradebooks(ctx.Request().Context(), actor, filter)
	if err != nil {
		return errors.Wrap(err, "querying gradebooks")
	}
	if gbs == nil {
		gbs = []grading.GradebookView{}
	}
	return ctx.JSON(http.StatusOK, gbs)
}
