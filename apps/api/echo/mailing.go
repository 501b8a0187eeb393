package echoapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/toure-cloud/institutdeveloppement/core/mailing"
	metricsvc "github.com/toure-cloud/institutdeveloppement/services/metrics"
)

type mailingApi struct {
	svc     mailing.Service
	metrics *metricsvc.Metrics
}

func registerMailingAPI(g *echo.Group, s *Server) {
	api := mailingApi{svc: s.deps.MailingSvc, metrics: s.deps.Metrics}

	mg := g.Group("/mail")
	mg.POST("", api.sendBulk)
	mg.POST("/notify-all", api.notifyAll)
	mg.POST("/test", api.sendTest)
}

func (api *mailingApi) emailsSent(kind string, n int) {
	if api.metrics != nil && n > 0 {
		api.metrics.IncrementEmails(kind, n)
	}
}

// parseEmails accepts a JSON list, a comma separated list or repeated form values.
func parseEmails(values []string) []string {
	var emails []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		var list []string
		if strings.HasPrefix(v, "[") && json.Unmarshal([]byte(v), &list) == nil {
			emails = append(emails, list...)
			continue
		}
		emails = append(emails, strings.Split(v, ",")...)
	}
	return emails
}

// Handlers

func (api *mailingApi) sendBulk(ctx echo.Context) error {
	var data BulkEmailRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkEmailRequest")
	}

	bm := mailing.BulkMessage{Subject: data.Subject, Message: data.Message}
	if len(data.Emails) > 0 {
		bm.Emails = parseEmails(data.Emails)
	} else if params, err := ctx.FormParams(); err == nil {
		bm.Emails = parseEmails(params["emails"])
	}

	if data.IncludeAttachment == "" || data.IncludeAttachment == "true" || data.IncludeAttachment == "on" {
		f, err := formFile(ctx, "piece_jointe")
		if err != nil {
			return err
		}
		bm.Attachment = f
	}

	n, err := api.svc.SendBulk(ctx.Request().Context(), bm)
	if err != nil {
		return errors.Wrap(err, "sending bulk email")
	}
	api.emailsSent("bulk", n)
	return ctx.JSON(http.StatusOK, CountResponse{Success: "Emails envoyés avec succès", Count: n})
}

func (api *mailingApi) notifyAll(ctx echo.Context) error {
	n, err := api.svc.NotifyAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "notifying candidates")
	}
	api.emailsSent("notice", n)
	return ctx.JSON(http.StatusOK, CountResponse{Success: "Emails envoyés avec succès", Count: n})
}

func (api *mailingApi) sendTest(ctx echo.Context) error {
	var data TestEmailRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TestEmailRequest")
	}
	to, err := api.svc.SendTest(ctx.Request().Context(), strings.TrimSpace(data.To))
	if err != nil {
		return errors.Wrap(err, "sending test email")
	}
	api.emailsSent("test", 1)
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Email de test envoyé à " + to})
}

type (
	BulkEmailRequest struct {
		Emails            []string `json:"emails"`
		Subject           string   `json:"sujet" form:"sujet"`
		Message           string   `json:"message" form:"message"`
		IncludeAttachment string   `json:"-" form:"includeAttachment"`
	}

	TestEmailRequest struct {
		To string `json:"email" form:"email"`
	}
)
