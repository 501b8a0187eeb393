package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/toure-cloud/institutdeveloppement/core"
	"github.com/toure-cloud/institutdeveloppement/core/activity"
)

const imagesField = "images"

type activityApi struct {
	svc      activity.Service
	validate *validator.Validate
}

func registerActivityAPI(g *echo.Group, s *Server) {
	api := activityApi{svc: s.deps.ActivitySvc, validate: s.deps.Validate}

	ag := g.Group("/activities")
	ag.GET("", api.query)
	ag.POST("", api.create)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update)
	ag.DELETE("/:id", api.destroy)

	g.DELETE("/activity-images/:id", api.destroyImage)
}

func (api *activityApi) bindForm(ctx echo.Context) (activity.ActivityForm, []core.File, error) {
	var data activity.ActivityForm
	if err := ctx.Bind(&data); err != nil {
		return data, nil, errors.Wrap(err, "binding to ActivityForm")
	}
	if err := data.Validate(api.validate); err != nil {
		return data, nil, err
	}
	images, err := formFiles(ctx, imagesField)
	if err != nil {
		return data, nil, err
	}
	return data, images, nil
}

// Handlers

func (api *activityApi) query(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)
	if len(ordering.Orderings) == 0 {
		ordering.Orderings = []core.DBOrdering{{Field: "date"}}
	}

	activities, err := api.svc.Query(ctx.Request().Context(), ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying activities")
	}
	if activities == nil {
		activities = []activity.Activity{}
	}
	return ctx.JSON(http.StatusOK, activities)
}

func (api *activityApi) create(ctx echo.Context) error {
	data, images, err := api.bindForm(ctx)
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	a, warnings, err := api.svc.Create(ctx.Request().Context(), data, claims.Subject, images)
	if err != nil {
		return errors.Wrap(err, "creating activity")
	}
	return ctx.JSON(http.StatusCreated, ActivityResponse{
		Success:  "Activité créée avec succès",
		Activity: a,
		Warnings: nonNil(warnings),
	})
}

func (api *activityApi) retrieve(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	a, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding activity")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *activityApi) update(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	data, images, err := api.bindForm(ctx)
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	a, warnings, err := api.svc.Update(ctx.Request().Context(), id, data, claims.Subject, images)
	if err != nil {
		return errors.Wrap(err, "updating activity")
	}
	return ctx.JSON(http.StatusOK, ActivityResponse{
		Success:  "Activité modifiée avec succès",
		Activity: a,
		Warnings: nonNil(warnings),
	})
}

func (api *activityApi) destroy(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting activity")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *activityApi) destroyImage(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	img, err := api.svc.DeleteImage(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "deleting activity image")
	}
	return ctx.JSON(http.StatusOK, DeleteImageResponse{Success: "Image supprimée avec succès", ActivityID: img.ActivityID})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type (
	ActivityResponse struct {
		Success  string            `json:"success"`
		Activity activity.Activity `json:"activity"`
		Warnings []string          `json:"warnings"`
	}

	DeleteImageResponse struct {
		Success    string `json:"success"`
		ActivityID int64  `json:"activity_id"`
	}
)
