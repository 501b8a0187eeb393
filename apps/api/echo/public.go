package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/toure-cloud/institutdeveloppement/core/activity"
	"github.com/toure-cloud/institutdeveloppement/core/content"
)

type publicApi struct {
	contentSvc  content.Service
	activitySvc activity.Service
	auth        *authenticator
}

func registerPublicAPI(g *echo.Group, s *Server) {
	api := publicApi{
		contentSvc:  s.deps.ContentSvc,
		activitySvc: s.deps.ActivitySvc,
		auth:        s.auth,
	}

	g.GET("/home", api.home)
	g.GET("/pages/:name", api.page)
	g.GET("/activities", api.queryActivities)
	g.GET("/activities/:id", api.retrieveActivity)
	g.GET("/formations", api.formations)
	g.GET("/team-members/:slug", api.teamMember)
}

// Handlers

func (api *publicApi) home(ctx echo.Context) error {
	home, err := api.contentSvc.Home(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "building home")
	}
	return ctx.JSON(http.StatusOK, home)
}

func (api *publicApi) page(ctx echo.Context) error {
	page, err := api.contentSvc.Page(ctx.Request().Context(), ctx.Param("name"), api.auth.viewerID(ctx))
	if err != nil {
		return errors.Wrap(err, "building page")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *publicApi) queryActivities(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	activities, err := api.activitySvc.Query(ctx.Request().Context(), ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying activities")
	}
	if activities == nil {
		activities = []activity.Activity{}
	}
	return ctx.JSON(http.StatusOK, activities)
}

func (api *publicApi) retrieveActivity(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	a, err := api.activitySvc.Get(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding activity")
	}
	prev, next, err := api.activitySvc.Neighbours(ctx.Request().Context(), a)
	if err != nil {
		return errors.Wrap(err, "finding neighbours")
	}
	return ctx.JSON(http.StatusOK, ActivityDetail{Activity: a, Previous: prev, Next: next})
}

func (api *publicApi) formations(ctx echo.Context) error {
	formations, err := api.contentSvc.Formations(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying formations")
	}
	if formations == nil {
		formations = []content.Formation{}
	}
	return ctx.JSON(http.StatusOK, formations)
}

func (api *publicApi) teamMember(ctx echo.Context) error {
	tm, err := api.contentSvc.TeamMemberBySlug(ctx.Request().Context(), ctx.Param("slug"))
	if err != nil {
		return errors.Wrap(err, "finding team member")
	}
	return ctx.JSON(http.StatusOK, TeamMemberDetail{
		TeamMember:      tm,
		FullName:        tm.FullName(),
		CategoryDisplay: tm.CategoryDisplay(),
		SocialLinks:     tm.ActiveSocialLinks(),
	})
}

type (
	ActivityDetail struct {
		activity.Activity
		Previous *activity.Activity `json:"previous"`
		Next     *activity.Activity `json:"next"`
	}

	TeamMemberDetail struct {
		content.TeamMember
		FullName        string            `json:"full_name"`
		CategoryDisplay string            `json:"category_display"`
		SocialLinks     map[string]string `json:"social_links"`
	}
)
