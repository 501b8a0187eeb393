package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/toure-cloud/institutdeveloppement/core"
	"github.com/toure-cloud/institutdeveloppement/core/content"
	"github.com/toure-cloud/institutdeveloppement/core/convocation"
	"github.com/toure-cloud/institutdeveloppement/core/enrollment"
	metricsvc "github.com/toure-cloud/institutdeveloppement/services/metrics"
)

// registration form upload fields
var registrationFiles = map[enrollment.DocumentKind]string{
	enrollment.DocPhoto:            "photo_identite",
	enrollment.DocBac:              "bac_scan",
	enrollment.DocDiploma:          "diplome_scan",
	enrollment.DocBirthCertificate: "extrait_naissance",
}

const candidateDocumentsPath = "/api/candidates/me/documents"

type candidateApi struct {
	svc            enrollment.Service
	contentSvc     content.Service
	convocationSvc convocation.Service
	userApi        *userApi
	validate       *validator.Validate
	metrics        *metricsvc.Metrics
}

func registerCandidateAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := candidateApi{
		svc:            s.deps.EnrollmentSvc,
		contentSvc:     s.deps.ContentSvc,
		convocationSvc: s.deps.ConvocationSvc,
		userApi:        &userApi{svc: s.deps.UserSvc, auth: s.auth, validate: s.deps.Validate},
		validate:       s.deps.Validate,
		metrics:        s.deps.Metrics,
	}

	cg := g.Group("/candidates", noStore)
	cg.POST("/register/:formation", api.register, rateLimitMiddleware(s.deps.Limiters.Register, "register", api.metrics))

	mg := cg.Group("/me", jwt, candidateMiddleware)
	mg.GET("", api.space)
	mg.PUT("/profile", api.updateProfile)
	mg.PATCH("/profile", api.patchProfile)
	mg.POST("/documents", api.uploadDocument)
	mg.GET("/documents/:kind", api.document)
	mg.GET("/formation", api.formation)
	mg.GET("/programme", api.programme)
	mg.GET("/maquette", api.maquette)
	mg.GET("/convocation", api.convocation)
}

func (api *candidateApi) contextEnrollment(ctx echo.Context) (enrollment.Enrollment, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "getting context claims")
	}
	e, err := api.svc.GetByUser(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == enrollment.ErrNotFound {
			return enrollment.Enrollment{}, echo.NewHTTPError(http.StatusNotFound, "Aucune inscription trouvée pour votre compte.")
		}
		return enrollment.Enrollment{}, errors.Wrap(err, "finding enrollment")
	}
	return e, nil
}

// Handlers

func (api *candidateApi) register(ctx echo.Context) error {
	var data enrollment.NewEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	files := make(map[enrollment.DocumentKind]core.File, len(registrationFiles))
	for kind, field := range registrationFiles {
		f, err := formFile(ctx, field)
		if err != nil {
			return err
		}
		if f != nil {
			files[kind] = *f
		}
	}

	e, usr, err := api.svc.Register(ctx.Request().Context(), ctx.Param("formation"), data, files)
	if err != nil {
		return errors.Wrap(err, "registering")
	}
	if api.metrics != nil {
		api.metrics.IncrementRegistrations()
	}

	claims, token, err := api.userApi.auth.login(ctx.Request().Context(), usr, api.userApi.svc)
	if err != nil {
		return errors.Wrap(err, "logging in")
	}
	return ctx.JSON(http.StatusCreated, RegisterResponse{
		Success:    "Inscription réussie ! Un email de confirmation vous a été envoyé.",
		Token:      token,
		Portal:     claims.Portal(),
		Enrollment: e,
	})
}

func (api *candidateApi) space(ctx echo.Context) error {
	e, err := api.contextEnrollment(ctx)
	if err != nil {
		return err
	}

	res := SpaceResponse{
		Enrollment:  e,
		StatusLabel: e.Status.Label(),
		StatusClass: e.Status.Class(),
		Documents:   documentLinks(candidateDocumentsPath, e),
		Completion:  e.Documents.Completion(),
	}
	f, err := api.contentSvc.FormationByName(ctx.Request().Context(), e.Formation)
	switch {
	case err == nil:
		res.Formation = &f
	case errors.Cause(err) != content.ErrFormationNotFound:
		return errors.Wrap(err, "finding formation")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *candidateApi) updateProfile(ctx echo.Context) error {
	var data enrollment.UpdateProfile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	e, _, err := api.svc.UpdateProfile(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *candidateApi) patchProfile(ctx echo.Context) error {
	var data enrollment.UpdateProfile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if data.IsEmpty() {
		return core.NewValidationError(errors.New("Aucun champ à mettre à jour"))
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	_, updated, err := api.svc.UpdateProfile(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	if updated == nil {
		updated = []string{}
	}
	return ctx.JSON(http.StatusOK, PatchProfileResponse{Success: "Profil mis à jour avec succès", UpdatedFields: updated})
}

func (api *candidateApi) uploadDocument(ctx echo.Context) error {
	kind := enrollment.DocumentKind(ctx.FormValue("document_type"))
	if !kind.Valid() {
		return core.NewFieldError("document_type", "Type de document invalide")
	}
	f, err := formFile(ctx, "document")
	if err != nil {
		return err
	}
	if f == nil {
		return core.NewFieldError("document", "Aucun fichier fourni")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	e, err := api.svc.UploadDocument(ctx.Request().Context(), claims.Subject, kind, *f)
	if err != nil {
		return errors.Wrap(err, "uploading document")
	}
	return ctx.JSON(http.StatusOK, UploadResponse{
		Success: "Document téléchargé avec succès",
		URL:     documentLinks(candidateDocumentsPath, e)[kind],
	})
}

func (api *candidateApi) document(ctx echo.Context) error {
	e, err := api.contextEnrollment(ctx)
	if err != nil {
		return err
	}
	return sendDocument(ctx, api.svc, e)
}

func (api *candidateApi) formation(ctx echo.Context) error {
	e, err := api.contextEnrollment(ctx)
	if err != nil {
		return err
	}
	f, err := api.contentSvc.FormationByName(ctx.Request().Context(), e.Formation)
	if err != nil {
		return errors.Wrap(err, "finding formation")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *candidateApi) programme(ctx echo.Context) error {
	e, err := api.contextEnrollment(ctx)
	if err != nil {
		return err
	}
	p, err := api.contentSvc.ProgrammeFor(ctx.Request().Context(), e.Formation)
	if err != nil {
		return errors.Wrap(err, "finding programme")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *candidateApi) maquette(ctx echo.Context) error {
	e, err := api.contextEnrollment(ctx)
	if err != nil {
		return err
	}
	m, err := api.contentSvc.MaquetteFor(ctx.Request().Context(), e.Formation)
	if err != nil {
		return errors.Wrap(err, "finding maquette")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *candidateApi) convocation(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	doc, err := api.convocationSvc.Generate(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "generating convocation")
	}
	return attachment(ctx, "application/pdf", doc.Filename, doc.Content)
}

type (
	RegisterResponse struct {
		Success    string                `json:"success"`
		Token      string                `json:"token"`
		Portal     string                `json:"portal"`
		Enrollment enrollment.Enrollment `json:"inscription"`
	}

	SpaceResponse struct {
		Enrollment  enrollment.Enrollment              `json:"inscription"`
		StatusLabel string                             `json:"statut_display"`
		StatusClass string                             `json:"statut_class"`
		Formation   *content.Formation                 `json:"formation"`
		Documents   map[enrollment.DocumentKind]string `json:"documents"`
		Completion  float64                            `json:"completion"`
	}

	PatchProfileResponse struct {
		Success       string   `json:"success"`
		UpdatedFields []string `json:"updated_fields"`
	}

	UploadResponse struct {
		Success string `json:"success"`
		URL     string `json:"document_url"`
	}
)
