package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hazira/core/enrollment"
)

type enrollmentApi struct {
	svc      *enrollment.Service
	validate *validator.Validate
}

type (
	SlotsResponse struct {
		Available []int `json:"available"`
		Reserved  []int `json:"reserved"`
	}
)

func registerEnrollmentAPI(g *echo.Group, svc *enrollment.Service, validate *validator.Validate) {
	api := enrollmentApi{svc: svc, validate: validate}

	eg := g.Group("/enrollment")
	eg.GET("/slots", api.slots)
	eg.GET("/pending", api.pending)
	eg.POST("", api.create)
	eg.DELETE("", api.cancel)
}

// Handlers

func (api *enrollmentApi) slots(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	reserved, err := api.svc.ReservedSlots(rctx)
	if err != nil {
		return errors.Wrap(err, "listing reserved slots")
	}
	available, err := api.svc.AvailableSlots(rctx)
	if err != nil {
		return errors.Wrap(err, "listing available slots")
	}
	if reserved == nil {
		reserved = []int{}
	}
	if available == nil {
		available = []int{}
	}
	return ctx.JSON(http.StatusOK, SlotsResponse{Available: available, Reserved: reserved})
}

func (api *enrollmentApi) pending(ctx echo.Context) error {
	enr, ok, err := api.svc.Pending(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "reading pending enrollment")
	}
	if !ok {
		return enrollment.ErrNoPending
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *enrollmentApi) create(ctx echo.Context) error {
	var data enrollment.NewEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	enr, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering enrollment")
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *enrollmentApi) cancel(ctx echo.Context) error {
	enr, err := api.svc.CancelPending(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "cancelling enrollment")
	}
	return ctx.JSON(http.StatusOK, enr)
}
