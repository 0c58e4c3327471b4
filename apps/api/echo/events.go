package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/moffermann/school-attendance/core/attendance"
)

type eventApi struct {
	svc      *attendance.Service
	validate *validator.Validate
}

func registerEventAPI(g *echo.Group, svc *attendance.Service, validate *validator.Validate) {
	api := eventApi{
		svc:      svc,
		validate: validate,
	}

	g.POST("/events", api.register)

	// per-student detail endpoints
	sg := g.Group("/students/:id")
	sg.GET("/events", api.timeline)
	sg.GET("/corrections", api.corrections)
}

// Handlers

func (api *eventApi) register(ctx echo.Context) error {
	var data attendance.NewEvent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvent")
	}

	ev, err := api.svc.RegisterEvent(ctx.Request().Context(), data)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusCreated, ev)
}

func (api *eventApi) timeline(ctx echo.Context) error {
	var filter attendance.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	var ord Ordering
	ord.Bind(ctx)

	events, err := api.svc.StudentTimeline(ctx.Request().Context(), ctx.Param("id"), &filter, ord.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying timeline")
	}

	return ctx.JSON(http.StatusOK, events)
}

func (api *eventApi) corrections(ctx echo.Context) error {
	corrs, err := api.svc.StudentCorrections(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying corrections")
	}

	return ctx.JSON(http.StatusOK, corrs)
}
