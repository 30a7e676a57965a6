package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hazira/core/branch"
	"github.com/trezcool/hazira/core/teacher"
)

const objectKey = "object"

var errObjNotFoundInCtx = errors.New("object not found in echo.Context")

// branchMiddleware loads the branch named by the `id` param into the context.
func branchMiddleware(svc *branch.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			b, err := svc.Get(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "finding branch by ID")
			}
			ctx.Set(objectKey, b)
			return next(ctx)
		}
	}
}

// teacherMiddleware loads the teacher named by the `id` param into the context.
func teacherMiddleware(svc *teacher.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			t, err := svc.Get(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "finding teacher by ID")
			}
			ctx.Set(objectKey, t)
			return next(ctx)
		}
	}
}

func contextObject[T any](ctx echo.Context) (T, error) {
	obj, ok := ctx.Get(objectKey).(T)
	if !ok {
		return obj, errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	return obj, nil
}
