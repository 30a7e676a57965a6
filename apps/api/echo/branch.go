package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hazira/core/branch"
)

type branchApi struct {
	svc      *branch.Service
	validate *validator.Validate
}

func registerBranchAPI(g *echo.Group, svc *branch.Service, validate *validator.Validate) {
	api := branchApi{svc: svc, validate: validate}

	bg := g.Group("/branches")
	bg.GET("", api.query)
	bg.POST("", api.create)

	// detail endpoints
	dg := bg.Group("/:id", branchMiddleware(svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)

	dg.POST("/semesters", api.addSemester)
	dg.PUT("/semesters/:semID", api.renameSemester)
	dg.DELETE("/semesters/:semID", api.removeSemester)

	dg.POST("/semesters/:semID/subjects", api.addSubject)
	dg.PUT("/semesters/:semID/subjects/:idx", api.renameSubject)
	dg.DELETE("/semesters/:semID/subjects/:idx", api.removeSubject)
}

// Handlers

func (api *branchApi) query(ctx echo.Context) error {
	branches, err := api.svc.List(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing branches")
	}
	return ctx.JSON(http.StatusOK, branches)
}

func (api *branchApi) create(ctx echo.Context) error {
	var data branch.NewBranch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBranch")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	b, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating branch")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *branchApi) retrieve(ctx echo.Context) error {
	b, err := contextObject[branch.Branch](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *branchApi) update(ctx echo.Context) error {
	b, err := contextObject[branch.Branch](ctx)
	if err != nil {
		return err
	}

	var data branch.UpdateBranch
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateBranch")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if b, err = api.svc.Update(ctx.Request().Context(), b.ID, data); err != nil {
		return errors.Wrap(err, "updating branch")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *branchApi) destroy(ctx echo.Context) error {
	b, err := contextObject[branch.Branch](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), b.ID); err != nil {
		return errors.Wrap(err, "deleting branch")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *branchApi) addSemester(ctx echo.Context) error {
	name, err := api.bindName(ctx)
	if err != nil {
		return err
	}
	return api.edit(ctx, http.StatusCreated, func(b *branch.Branch) error {
		_, err := b.AddSemester(name)
		return err
	})
}

func (api *branchApi) renameSemester(ctx echo.Context) error {
	name, err := api.bindName(ctx)
	if err != nil {
		return err
	}
	return api.edit(ctx, http.StatusOK, func(b *branch.Branch) error {
		return b.RenameSemester(ctx.Param("semID"), name)
	})
}

func (api *branchApi) removeSemester(ctx echo.Context) error {
	return api.edit(ctx, http.StatusOK, func(b *branch.Branch) error {
		return b.RemoveSemester(ctx.Param("semID"))
	})
}

func (api *branchApi) addSubject(ctx echo.Context) error {
	name, err := api.bindName(ctx)
	if err != nil {
		return err
	}
	return api.edit(ctx, http.StatusCreated, func(b *branch.Branch) error {
		return b.AddSubject(ctx.Param("semID"), name)
	})
}

func (api *branchApi) renameSubject(ctx echo.Context) error {
	idx, err := indexParam(ctx, "idx")
	if err != nil {
		return err
	}
	name, err := api.bindName(ctx)
	if err != nil {
		return err
	}
	return api.edit(ctx, http.StatusOK, func(b *branch.Branch) error {
		return b.RenameSubject(ctx.Param("semID"), idx, name)
	})
}

func (api *branchApi) removeSubject(ctx echo.Context) error {
	idx, err := indexParam(ctx, "idx")
	if err != nil {
		return err
	}
	return api.edit(ctx, http.StatusOK, func(b *branch.Branch) error {
		return b.RemoveSubject(ctx.Param("semID"), idx)
	})
}

func (api *branchApi) bindName(ctx echo.Context) (string, error) {
	var data branch.Name
	if err := ctx.Bind(&data); err != nil {
		return "", errors.Wrap(err, "binding to Name")
	}
	if err := data.Validate(api.validate); err != nil {
		return "", err
	}
	return data.Name, nil
}

// edit applies fn to the context branch, saves it and responds with the result.
func (api *branchApi) edit(ctx echo.Context, code int, fn func(b *branch.Branch) error) error {
	b, err := contextObject[branch.Branch](ctx)
	if err != nil {
		return err
	}
	if err = fn(&b); err != nil {
		return err
	}
	if err = api.svc.Save(ctx.Request().Context(), b); err != nil {
		return errors.Wrap(err, "saving branch")
	}
	return ctx.JSON(code, b)
}
