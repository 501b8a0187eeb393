package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/toure-cloud/institutdeveloppement/core/content"
)

type contentApi struct {
	svc      content.Service
	validate *validator.Validate
}

func registerContentAPI(g *echo.Group, s *Server) {
	api := contentApi{svc: s.deps.ContentSvc, validate: s.deps.Validate}

	g.POST("/partners", api.createPartner)
	g.POST("/team-members", api.createTeamMember)

	fg := g.Group("/formations")
	fg.GET("", api.queryFormations)
	fg.POST("", api.createFormation)
	fg.POST("/:name/programme", api.createProgramme)
	fg.POST("/:name/maquette", api.createMaquette)
}

// Handlers

func (api *contentApi) createPartner(ctx echo.Context) error {
	var data content.NewPartner
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPartner")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	logo, err := formFile(ctx, "logo")
	if err != nil {
		return err
	}

	p, err := api.svc.CreatePartner(ctx.Request().Context(), data, logo)
	if err != nil {
		return errors.Wrap(err, "creating partner")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *contentApi) createTeamMember(ctx echo.Context) error {
	var data content.NewTeamMember
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeamMember")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	photo, err := formFile(ctx, "photo")
	if err != nil {
		return err
	}

	tm, err := api.svc.CreateTeamMember(ctx.Request().Context(), data, photo)
	if err != nil {
		return errors.Wrap(err, "creating team member")
	}
	return ctx.JSON(http.StatusCreated, tm)
}

func (api *contentApi) queryFormations(ctx echo.Context) error {
	formations, err := api.svc.Formations(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying formations")
	}
	if formations == nil {
		formations = []content.Formation{}
	}
	return ctx.JSON(http.StatusOK, formations)
}

func (api *contentApi) createFormation(ctx echo.Context) error {
	var data content.NewFormation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFormation")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	f, err := api.svc.CreateFormation(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating formation")
	}
	return ctx.JSON(http.StatusCreated, f)
}

func (api *contentApi) createProgramme(ctx echo.Context) error {
	var data content.NewProgramme
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProgramme")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.CreateProgramme(ctx.Request().Context(), ctx.Param("name"), data)
	if err != nil {
		return errors.Wrap(err, "creating programme")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *contentApi) createMaquette(ctx echo.Context) error {
	var data content.NewMaquette
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMaquette")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	file, err := formFile(ctx, "fichier")
	if err != nil {
		return err
	}

	m, err := api.svc.CreateMaquette(ctx.Request().Context(), ctx.Param("name"), data, file)
	if err != nil {
		return errors.Wrap(err, "creating maquette")
	}
	return ctx.JSON(http.StatusCreated, m)
}
