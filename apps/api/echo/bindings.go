package echoapi

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/NoheilaRamdani/sae401/core"
)

var pageParam = "page"

// bindPage reads the 1-based page number; missing or invalid values fall back to the first page.
func bindPage(ctx echo.Context) core.Pagination {
	page, err := strconv.Atoi(ctx.QueryParam(pageParam))
	if err != nil || page < 1 {
		page = 1
	}
	return core.Pagination{Page: page, PageSize: core.DefaultPageSize}
}

// bindAndValidate binds the request into form and runs the struct validations.
func bindAndValidate(ctx echo.Context, validate *validator.Validate, form interface{}, name string) error {
	if err := ctx.Bind(form); err != nil {
		return errors.Wrap(err, "binding to "+name)
	}
	return validate.Struct(form)
}
