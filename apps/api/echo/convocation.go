package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/toure-cloud/institutdeveloppement/core/convocation"
)

type convocationApi struct {
	svc      convocation.Service
	validate *validator.Validate
}

func registerConvocationAPI(g *echo.Group, s *Server) {
	api := convocationApi{svc: s.deps.ConvocationSvc, validate: s.deps.Validate}

	cg := g.Group("/convocations")
	cg.GET("", api.query)
	cg.PUT("", api.upsert)
	cg.DELETE("/:id", api.destroy)
}

// Handlers

func (api *convocationApi) query(ctx echo.Context) error {
	schedules, err := api.svc.Query(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying exam schedules")
	}
	if schedules == nil {
		schedules = []convocation.Schedule{}
	}
	return ctx.JSON(http.StatusOK, schedules)
}

// upsert creates the exam schedule of a formation, or replaces it.
func (api *convocationApi) upsert(ctx echo.Context) error {
	var data convocation.ScheduleForm
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScheduleForm")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sch, err := api.svc.Upsert(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "saving exam schedule")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *convocationApi) destroy(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting exam schedule")
	}
	return ctx.NoContent(http.StatusNoContent)
}
