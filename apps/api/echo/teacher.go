package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hazira/core/teacher"
)

type teacherApi struct {
	svc      *teacher.Service
	validate *validator.Validate
}

func registerTeacherAPI(g *echo.Group, svc *teacher.Service, validate *validator.Validate) {
	api := teacherApi{svc: svc, validate: validate}

	tg := g.Group("/teachers")
	tg.GET("", api.query)
	tg.POST("", api.create)

	// detail endpoints
	dg := tg.Group("/:id", teacherMiddleware(svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.PUT("/subjects", api.assignSubjects)
	dg.POST("/subjects", api.addSubject)
	dg.DELETE("/subjects/:idx", api.removeSubject)
}

// Handlers

func (api *teacherApi) query(ctx echo.Context) error {
	teachers, err := api.svc.List(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing teachers")
	}
	return ctx.JSON(http.StatusOK, teachers)
}

func (api *teacherApi) create(ctx echo.Context) error {
	var data teacher.NewTeacher
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeacher")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering teacher")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *teacherApi) retrieve(ctx echo.Context) error {
	t, err := contextObject[teacher.Teacher](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *teacherApi) update(ctx echo.Context) error {
	t, err := contextObject[teacher.Teacher](ctx)
	if err != nil {
		return err
	}

	var data teacher.UpdateTeacher
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTeacher")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if t, err = api.svc.Update(ctx.Request().Context(), t.ID, data); err != nil {
		return errors.Wrap(err, "updating teacher")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *teacherApi) destroy(ctx echo.Context) error {
	t, err := contextObject[teacher.Teacher](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), t.ID); err != nil {
		return errors.Wrap(err, "deleting teacher")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *teacherApi) assignSubjects(ctx echo.Context) error {
	t, err := contextObject[teacher.Teacher](ctx)
	if err != nil {
		return err
	}

	var data teacher.AssignSubjects
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignSubjects")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if t, err = api.svc.AssignSubjects(ctx.Request().Context(), t.ID, data.Selections); err != nil {
		return errors.Wrap(err, "assigning subjects")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *teacherApi) addSubject(ctx echo.Context) error {
	t, err := contextObject[teacher.Teacher](ctx)
	if err != nil {
		return err
	}

	var data teacher.Selection
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Selection")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if t, err = api.svc.AddAssignment(ctx.Request().Context(), t.ID, data); err != nil {
		return errors.Wrap(err, "adding assignment")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *teacherApi) removeSubject(ctx echo.Context) error {
	t, err := contextObject[teacher.Teacher](ctx)
	if err != nil {
		return err
	}
	idx, err := indexParam(ctx, "idx")
	if err != nil {
		return err
	}

	if t, err = api.svc.RemoveAssignment(ctx.Request().Context(), t.ID, idx); err != nil {
		return errors.Wrap(err, "removing assignment")
	}
	return ctx.JSON(http.StatusOK, t)
}
