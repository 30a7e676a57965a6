package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hazira/core/lecture"
)

type lectureApi struct {
	svc      *lecture.Service
	validate *validator.Validate
}

type (
	ActivationResponse struct {
		Current lecture.SubjectRow `json:"current"`
		Counter lecture.Counter    `json:"counter"`
	}
)

func registerLectureAPI(g *echo.Group, svc *lecture.Service, validate *validator.Validate) {
	api := lectureApi{svc: svc, validate: validate}

	lg := g.Group("/lectures")
	lg.GET("/catalog", api.catalog)
	lg.POST("/activate", api.activate)
	lg.GET("/current", api.current)
	lg.GET("/counters", api.counters)
	lg.PUT("/counters", api.persist)
	lg.POST("/counters/increment", api.increment)
}

// Handlers

func (api *lectureApi) catalog(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	rows, err := api.svc.Catalog(rctx)
	if err != nil {
		return errors.Wrap(err, "building catalog")
	}
	markers, err := api.svc.Markers(rctx)
	if err != nil {
		return errors.Wrap(err, "reading markers")
	}
	rows = lecture.FilterCatalog(rows, ctx.QueryParam(searchParam))
	return ctx.JSON(http.StatusOK, lecture.MarkActive(rows, markers))
}

func (api *lectureApi) activate(ctx echo.Context) error {
	var data lecture.Activation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Activation")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	row, c, err := api.svc.ActivateSelection(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "activating subject")
	}
	return ctx.JSON(http.StatusOK, ActivationResponse{Current: row, Counter: c})
}

func (api *lectureApi) current(ctx echo.Context) error {
	markers, err := api.svc.Markers(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "reading markers")
	}
	return ctx.JSON(http.StatusOK, markers)
}

func (api *lectureApi) counters(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	var counters []lecture.Counter
	if active, _ := strconv.ParseBool(ctx.QueryParam("active")); active {
		cs, err := api.svc.ActiveCounters(rctx)
		if err != nil {
			return errors.Wrap(err, "reading active counters")
		}
		counters = cs
	} else {
		tree, err := api.svc.Counters(rctx)
		if err != nil {
			return errors.Wrap(err, "reading counters")
		}
		counters = tree.All()
	}
	if counters == nil {
		counters = []lecture.Counter{}
	}
	return ctx.JSON(http.StatusOK, counters)
}

func (api *lectureApi) persist(ctx echo.Context) error {
	var data lecture.CounterUpdate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CounterUpdate")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c := data.CounterKey.NewCounter(data.Count)
	if err := api.svc.Persist(ctx.Request().Context(), c); err != nil {
		return errors.Wrap(err, "persisting counter")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *lectureApi) increment(ctx echo.Context) error {
	var data lecture.Adjustment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Adjustment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.Increment(ctx.Request().Context(), data.CounterKey, data.Delta)
	if err != nil {
		return errors.Wrap(err, "incrementing counter")
	}
	return ctx.JSON(http.StatusOK, c)
}
