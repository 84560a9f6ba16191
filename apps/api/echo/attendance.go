package echoapi

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/attendance"
)

var errInvalidStatus = errors.New("invalid status")

type attendanceApi struct {
	svc      *attendance.Service
	sessions *sessions
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := attendanceApi{svc: s.deps.AttendanceSvc, sessions: s.sessions}

	ag := g.Group("/attendance", jwt)
	ag.GET("", api.query)
	ag.POST("", api.upsert, staffMiddleware(s.sessions))
	ag.GET("/summary", api.summary)
	ag.GET("/export", api.export)
	ag.DELETE("/:id", api.destroy, staffMiddleware(s.sessions))
}

func bindAttendanceFilter(ctx echo.Context) (attendance.QueryFilter, error) {
	var filter attendance.QueryFilter
	var dates dateRange
	var status string
	b := echo.QueryParamsBinder(ctx).
		String("classroom_id", &filter.ClassroomID).
		Strings("student_id", &filter.StudentIDs).
		String("status", &status)
	if err := dates.bind(b).BindError(); err != nil {
		return filter, err
	}
	filter.Date, filter.From, filter.To = dates.Date, dates.From, dates.To
	filter.Status = attendance.Status(status)
	if filter.Status != "" && !slices.Contains(attendance.Statuses, filter.Status) {
		return filter, core.NewValidationError(errInvalidStatus, core.FieldError{Field: "status", Error: errInvalidStatus.Error()})
	}
	return filter, nil
}

// Handlers

func (api *attendanceApi) upsert(ctx echo.Context) error {
	var data attendance.BulkAttendance
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkAttendance")
	}
	actor, err := api.sessions.actor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	records, err := api.svc.Upsert(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "upserting attendance")
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) query(ctx echo.Context) error {
	filter, err := bindAttendanceFilter(ctx)
	if err != nil {
		return err
	}
	actor, err := api.sessions.actor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	records, err := api.svc.Query(ctx.Request().Context(), actor, filter)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	if records == nil {
		records = []attendance.Attendance{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) summary(ctx echo.Context) error {
	filter, err := bindAttendanceFilter(ctx)
	if err != nil {
		return err
	}
	actor, err := api.sessions.actor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	summaries, err := api.svc.Summary(ctx.Request().Context(), actor, filter)
	if err != nil {
		return errors.Wrap(err, "summarizing attendance")
	}
	if summaries == nil {
		summaries = []attendance.StudentSummary{}
	}
	return ctx.JSON(http.StatusOK, summaries)
}

func (api *attendanceApi) export(ctx echo.Context) error {
	filter, err := bindAttendanceFilter(ctx)
	if err != nil {
		return err
	}
	actor, err := api.sessions.actor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	table, err := api.svc.Export(ctx.Request().Context(), actor, filter)
	if err != nil {
		return errors.Wrap(err, "exporting attendance")
	}
	return sendTable(ctx, table)
}

func (api *attendanceApi) destroy(ctx echo.Context) error {
	actor, err := api.sessions.actor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	if err := api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting attendance")
	}
	return ctx.NoContent(http.StatusNoContent)
}
