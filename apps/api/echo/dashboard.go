package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hazira/core/attendance"
)

func registerDashboardAPI(g *echo.Group, svc *attendance.Service) {
	g.GET("/dashboard", func(ctx echo.Context) error {
		stats, err := svc.Dashboard(ctx.Request().Context())
		if err != nil {
			return errors.Wrap(err, "computing dashboard")
		}
		return ctx.JSON(http.StatusOK, stats)
	})
}
