package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hazira/core/attendance"
	"github.com/trezcool/hazira/core/student"
)

type studentApi struct {
	svc           *student.Service
	attendanceSvc *attendance.Service
}

func registerStudentAPI(g *echo.Group, svc *student.Service, attendanceSvc *attendance.Service) {
	api := studentApi{svc: svc, attendanceSvc: attendanceSvc}

	sg := g.Group("/students")
	sg.GET("", api.query)
	sg.GET("/:key", api.retrieve)
	sg.DELETE("/:key", api.destroy)
	sg.DELETE("/:key/attendance/:eventKey", api.destroyEvent)
}

// Handlers

func (api *studentApi) query(ctx echo.Context) error {
	filter, err := attendance.ParseTimeFilter(ctx.QueryParam("filter"))
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	fleet, err := api.attendanceSvc.Fleet(ctx.Request().Context(), filter, ctx.QueryParam(searchParam), ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "summarizing students")
	}
	return ctx.JSON(http.StatusOK, fleet)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	report, err := api.attendanceSvc.StudentReport(ctx.Request().Context(), ctx.Param("key"))
	if err != nil {
		return errors.Wrap(err, "reporting student attendance")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *studentApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("key")); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentApi) destroyEvent(ctx echo.Context) error {
	if err := api.svc.DeleteEvent(ctx.Request().Context(), ctx.Param("key"), ctx.Param("eventKey")); err != nil {
		return errors.Wrap(err, "deleting attendance record")
	}
	return ctx.NoContent(http.StatusNoContent)
}
