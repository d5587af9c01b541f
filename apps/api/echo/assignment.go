package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/NoheilaRamdani/sae401/core/assignment"
	"github.com/NoheilaRamdani/sae401/core/user"
)

const calendarContentType = "text/calendar; charset=utf-8"

type assignmentApi struct {
	svc      *assignment.Service
	usrSvc   *user.Service
	validate *validator.Validate
}

func newAssignmentApi(deps ServerDeps) assignmentApi {
	return assignmentApi{
		svc:      deps.AssignmentSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}
}

func registerAssignmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := newAssignmentApi(deps)
	delegate := delegateMiddleware(api.usrSvc)

	ag := g.Group("/assignments", jwt)
	ag.GET("", api.upcoming)
	ag.GET("/history", api.history)
	ag.POST("", api.create, delegate)

	dg := ag.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, delegate)
	dg.DELETE("", api.destroy, delegate)
	dg.POST("/toggle-complete", api.toggleComplete)
}

func registerCalendarAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := newAssignmentApi(deps)

	g.GET("/calendar/events", api.calendarEvents, jwt)
	g.GET("/calendar.ics", api.icalFeed, jwt)
}

// Handlers

func (api *assignmentApi) create(ctx echo.Context) error {
	var data assignment.NewAssignment
	if err := bindAndValidate(ctx, api.validate, &data, "NewAssignment"); err != nil {
		return err
	}
	p, err := getPrincipal(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	a, err := api.svc.Create(ctx.Request().Context(), p, data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *assignmentApi) retrieve(ctx echo.Context) error {
	p, err := getPrincipal(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	v, err := api.svc.Get(ctx.Request().Context(), p, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting assignment")
	}
	return ctx.JSON(http.StatusOK, v)
}

func (api *assignmentApi) update(ctx echo.Context) error {
	var data assignment.Form
	if err := bindAndValidate(ctx, api.validate, &data, "Form"); err != nil {
		return err
	}
	p, err := getPrincipal(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	a, err := api.svc.Update(ctx.Request().Context(), p, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assignmentApi) destroy(ctx echo.Context) error {
	p, err := getPrincipal(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), p, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *assignmentApi) toggleComplete(ctx echo.Context) error {
	p, err := getPrincipal(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	completed, err := api.svc.ToggleComplete(ctx.Request().Context(), p, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "toggling completion")
	}
	return ctx.JSON(http.StatusOK, ToggleCompleteResponse{Success: true, IsCompleted: completed})
}

func (api *assignmentApi) upcoming(ctx echo.Context) error {
	var filters assignment.Filters
	if err := ctx.Bind(&filters); err != nil {
		return errors.Wrap(err, "binding to Filters")
	}
	p, err := getPrincipal(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	views, err := api.svc.ListUpcoming(ctx.Request().Context(), p, filters)
	if err != nil {
		return errors.Wrap(err, "listing assignments")
	}
	if views == nil {
		views = []assignment.View{}
	}
	return ctx.JSON(http.StatusOK, views)
}

func (api *assignmentApi) history(ctx echo.Context) error {
	var filters assignment.Filters
	if err := ctx.Bind(&filters); err != nil {
		return errors.Wrap(err, "binding to Filters")
	}
	p, err := getPrincipal(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	page, err := api.svc.ListHistory(ctx.Request().Context(), p, filters, bindPage(ctx))
	if err != nil {
		return errors.Wrap(err, "listing history")
	}
	if page.Items == nil {
		page.Items = []assignment.View{}
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *assignmentApi) calendarEvents(ctx echo.Context) error {
	var filters assignment.Filters
	if err := ctx.Bind(&filters); err != nil {
		return errors.Wrap(err, "binding to Filters")
	}
	p, err := getPrincipal(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	events, err := api.svc.CalendarEvents(ctx.Request().Context(), p, filters)
	if err != nil {
		return errors.Wrap(err, "listing calendar events")
	}
	if events == nil {
		events = []assignment.CalendarEvent{}
	}
	return ctx.JSON(http.StatusOK, events)
}

func (api *assignmentApi) icalFeed(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	feed, err := api.svc.ICalFeed(ctx.Request().Context(), usr.Principal(), "Rendus de "+usr.Email)
	if err != nil {
		return errors.Wrap(err, "rendering calendar")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `inline; filename="cal.ics"`)
	return ctx.Blob(http.StatusOK, calendarContentType, []byte(feed))
}

type ToggleCompleteResponse struct {
	Success     bool `json:"success"`
	IsCompleted bool `json:"is_completed"`
}
