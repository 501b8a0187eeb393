package echoapi

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/toure-cloud/institutdeveloppement/core/enrollment"
	"github.com/toure-cloud/institutdeveloppement/core/mailing"
	metricsvc "github.com/toure-cloud/institutdeveloppement/services/metrics"
)

type enrollmentApi struct {
	svc        enrollment.Service
	mailingSvc mailing.Service
	metrics    *metricsvc.Metrics
	loc        *time.Location
}

func registerAdminAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	ag := g.Group("/admin", jwt, adminMiddleware(false), noStore)

	api := enrollmentApi{
		svc:        s.deps.EnrollmentSvc,
		mailingSvc: s.deps.MailingSvc,
		metrics:    s.deps.Metrics,
		loc:        s.deps.Conf.Location(),
	}
	ag.GET("/dashboard", api.dashboard)

	eg := ag.Group("/enrollments")
	eg.GET("", api.query)
	eg.GET("/export", api.export)
	eg.POST("/validate-selection", api.validateSelection)
	eg.POST("/delete-selection", api.deleteSelection)
	eg.GET("/:id", api.retrieve)
	eg.POST("/:id/validate", api.validate)
	eg.POST("/:id/reject", api.reject)
	eg.DELETE("/:id", api.destroy)
	eg.POST("/:id/email", api.email)
	eg.GET("/:id/documents/:kind", api.document)

	registerMailingAPI(ag, s)
	registerActivityAPI(ag, s)
	registerConvocationAPI(ag, s)
	registerContentAPI(ag, s)
}

func (api *enrollmentApi) statusChanged(status enrollment.Status, n int) {
	if api.metrics != nil && n > 0 {
		api.metrics.AddStatusChanges(string(status), n)
	}
}

// Handlers

func (api *enrollmentApi) dashboard(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "gathering stats")
	}
	if stats.ByFormation == nil {
		stats.ByFormation = []enrollment.FormationStat{}
	}
	if stats.Latest == nil {
		stats.Latest = []enrollment.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *enrollmentApi) query(ctx echo.Context) error {
	filter := new(enrollment.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Filtre invalide")
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	reqCtx := ctx.Request().Context()
	enrollments, err := api.svc.Query(reqCtx, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	counts, err := api.svc.CountByStatus(reqCtx)
	if err != nil {
		return errors.Wrap(err, "counting enrollments")
	}
	formations, err := api.svc.Formations(reqCtx)
	if err != nil {
		return errors.Wrap(err, "listing formations")
	}

	if enrollments == nil {
		enrollments = []enrollment.Enrollment{}
	}
	if formations == nil {
		formations = []string{}
	}
	return ctx.JSON(http.StatusOK, EnrollmentsResponse{
		Results:    enrollments,
		Counts:     counts,
		Formations: formations,
		Statuses:   enrollment.StatusChoices,
	})
}

func (api *enrollmentApi) export(ctx echo.Context) error {
	var buf bytes.Buffer
	if err := api.svc.ExportCSV(ctx.Request().Context(), &buf); err != nil {
		return errors.Wrap(err, "exporting enrollments")
	}
	filename := enrollment.ExportFilename(time.Now().In(api.loc))
	return attachment(ctx, "text/csv; charset=utf-8", filename, buf.Bytes())
}

func (api *enrollmentApi) retrieve(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	e, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding enrollment")
	}
	return ctx.JSON(http.StatusOK, EnrollmentDetail{
		Enrollment:  e,
		StatusLabel: e.Status.Label(),
		StatusClass: e.Status.Class(),
		Documents:   documentLinks("/api/admin/enrollments/"+strconv.FormatInt(e.ID, 10)+"/documents", e),
		Completion:  e.Documents.Completion(),
	})
}

func (api *enrollmentApi) document(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	e, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding enrollment")
	}
	return sendDocument(ctx, api.svc, e)
}

func (api *enrollmentApi) validate(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	e, err := api.svc.Validate(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "validating enrollment")
	}
	api.statusChanged(enrollment.StatusValidated, 1)
	return ctx.JSON(http.StatusOK, e)
}

func (api *enrollmentApi) reject(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	e, err := api.svc.Reject(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "rejecting enrollment")
	}
	api.statusChanged(enrollment.StatusRejected, 1)
	return ctx.JSON(http.StatusOK, e)
}

func (api *enrollmentApi) destroy(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *enrollmentApi) email(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	var data EmailRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EmailRequest")
	}

	to, err := api.mailingSvc.SendToEnrollment(ctx.Request().Context(), id, data.Subject, data.Message)
	if err != nil {
		return errors.Wrap(err, "emailing enrollment")
	}
	if api.metrics != nil {
		api.metrics.IncrementEmails("single", 1)
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Email envoyé avec succès à " + to})
}

func (api *enrollmentApi) validateSelection(ctx echo.Context) error {
	var data IDsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to IDsRequest")
	}
	n, err := api.svc.ValidateSelection(ctx.Request().Context(), data.IDs)
	if err != nil {
		return errors.Wrap(err, "validating selection")
	}
	api.statusChanged(enrollment.StatusValidated, n)
	return ctx.JSON(http.StatusOK, CountResponse{Success: "Inscriptions validées avec succès", Count: n})
}

func (api *enrollmentApi) deleteSelection(ctx echo.Context) error {
	var data IDsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to IDsRequest")
	}
	n, err := api.svc.DeleteSelection(ctx.Request().Context(), data.IDs)
	if err != nil {
		return errors.Wrap(err, "deleting selection")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Success: "Inscriptions supprimées avec succès", Count: n})
}

type (
	EnrollmentsResponse struct {
		Results    []enrollment.Enrollment `json:"results"`
		Counts     enrollment.StatusCounts `json:"counts"`
		Formations []string                `json:"formations"`
		Statuses   []enrollment.Choice     `json:"statuts"`
	}

	EnrollmentDetail struct {
		enrollment.Enrollment
		StatusLabel string                             `json:"statut_display"`
		StatusClass string                             `json:"statut_class"`
		Documents   map[enrollment.DocumentKind]string `json:"document_urls"`
		Completion  float64                            `json:"completion"`
	}

	EmailRequest struct {
		Subject string `json:"sujet" form:"sujet"`
		Message string `json:"message" form:"message"`
	}
)
