package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hazira/core"
)

var (
	orderingParam = "ordering"
	searchParam   = "search"

	errInvalidIndex = errors.New("index must be a non-negative integer")
)

type Ordering struct {
	Orderings []core.Ordering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	ord.Orderings = core.ParseOrderings(ctx.QueryParam(orderingParam))
}

func indexParam(ctx echo.Context, name string) (int, error) {
	idx, err := strconv.Atoi(ctx.Param(name))
	if err != nil || idx < 0 {
		return 0, core.NewFieldValidationError(name, errInvalidIndex)
	}
	return idx, nil
}
