package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/NoheilaRamdani/sae401/core/access"
	"github.com/NoheilaRamdani/sae401/core/suggestion"
	"github.com/NoheilaRamdani/sae401/core/user"
)

type suggestionApi struct {
	svc      *suggestion.Service
	usrSvc   *user.Service
	validate *validator.Validate
}

func registerSuggestionAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := suggestionApi{
		svc:      deps.SuggestionSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	// any user who can see the assignment may suggest
	g.POST("/assignments/:id/suggestions", api.submit, jwt)

	sg := g.Group("/suggestions", jwt, delegateMiddleware(api.usrSvc))
	sg.GET("/pending", api.pending)
	sg.GET("/history", api.history)
	sg.GET("/:id", api.retrieve)
	sg.POST("/:id/approve", api.approve)
	sg.POST("/:id/reject", api.reject)
}

// Handlers

func (api *suggestionApi) submit(ctx echo.Context) error {
	var data suggestion.SubmitForm
	if err := bindAndValidate(ctx, api.validate, &data, "SubmitForm"); err != nil {
		return err
	}
	p, err := getPrincipal(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	s, err := api.svc.Submit(ctx.Request().Context(), p, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "submitting suggestion")
	}
	return ctx.JSON(http.StatusCreated, SubmitResponse{
		ID:              s.ID,
		Status:          s.Status,
		ProposedChanges: s.ProposedChanges,
		OriginalValues:  s.OriginalValues,
	})
}

func (api *suggestionApi) pending(ctx echo.Context) error {
	p, err := getPrincipal(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	items, err := api.svc.Pending(ctx.Request().Context(), p)
	if err != nil {
		return errors.Wrap(err, "listing pending suggestions")
	}
	if items == nil {
		items = []suggestion.Summary{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *suggestionApi) history(ctx echo.Context) error {
	p, err := getPrincipal(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	page, err := api.svc.History(ctx.Request().Context(), p, bindPage(ctx))
	if err != nil {
		return errors.Wrap(err, "listing suggestions")
	}
	if page.Items == nil {
		page.Items = []suggestion.Summary{}
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *suggestionApi) retrieve(ctx echo.Context) error {
	p, err := getPrincipal(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	rv, err := api.svc.Get(ctx.Request().Context(), p, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting suggestion")
	}
	return ctx.JSON(http.StatusOK, rv)
}

func (api *suggestionApi) approve(ctx echo.Context) error {
	return api.review(ctx, api.svc.Approve)
}

func (api *suggestionApi) reject(ctx echo.Context) error {
	return api.review(ctx, api.svc.Reject)
}

func (api *suggestionApi) review(ctx echo.Context, decide reviewFunc) error {
	p, err := getPrincipal(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	s, err := decide(ctx.Request().Context(), p, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "reviewing suggestion")
	}
	return ctx.JSON(http.StatusOK, s)
}

type (
	SubmitResponse struct {
		ID              string               `json:"id"`
		Status          suggestion.Status    `json:"status"`
		ProposedChanges suggestion.Patch     `json:"proposed_changes"`
		OriginalValues  suggestion.Originals `json:"original_values"`
	}

	reviewFunc func(ctx context.Context, p access.Principal, id string) (suggestion.Suggestion, error)
)
