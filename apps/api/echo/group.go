package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/NoheilaRamdani/sae401/core/group"
	"github.com/NoheilaRamdani/sae401/core/user"
)

type groupApi struct {
	svc      *group.Service
	usrSvc   *user.Service
	validate *validator.Validate
}

func registerGroupAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := groupApi{
		svc:      deps.GroupSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	gg := g.Group("/groups")

	// the group list feeds the sign-up form
	gg.GET("", api.query)
	gg.POST("", api.create, jwt, adminMiddleware(api.usrSvc))

	dg := gg.Group("/:id", jwt, api.memberOrAdminMiddleware)
	dg.GET("/members", api.members)
	dg.GET("/delegates", api.delegates)
	dg.POST("/delegates/:userId/toggle", api.toggleDelegate, adminMiddleware(api.usrSvc))
}

// Handlers

func (api *groupApi) query(ctx echo.Context) error {
	groups, err := api.svc.Query(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying groups")
	}
	if groups == nil {
		groups = []group.Group{}
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *groupApi) create(ctx echo.Context) error {
	var data group.NewGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	data.Clean()
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	grp, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating group")
	}
	return ctx.JSON(http.StatusCreated, grp)
}

func (api *groupApi) members(ctx echo.Context) error {
	members, err := api.svc.Members(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing members")
	}
	if members == nil {
		members = []group.Member{}
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *groupApi) delegates(ctx echo.Context) error {
	delegates, err := api.svc.ActiveDelegates(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing delegates")
	}
	if delegates == nil {
		delegates = []group.Delegate{}
	}
	return ctx.JSON(http.StatusOK, delegates)
}

func (api *groupApi) toggleDelegate(ctx echo.Context) error {
	d, err := api.svc.ToggleDelegate(ctx.Request().Context(), ctx.Param("id"), ctx.Param("userId"))
	if err != nil {
		return errors.Wrap(err, "toggling delegate")
	}
	return ctx.JSON(http.StatusOK, d)
}

// memberOrAdminMiddleware hides the groups the context user does not belong to.
func (api *groupApi) memberOrAdminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		p, err := getPrincipal(ctx, api.usrSvc)
		if err != nil {
			return err
		}
		if p.IsAdmin() || p.InGroup(ctx.Param("id")) {
			return next(ctx)
		}
		return group.ErrNotFound
	}
}
