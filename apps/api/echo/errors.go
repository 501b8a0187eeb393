package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/toure-cloud/institutdeveloppement/core"
	"github.com/toure-cloud/institutdeveloppement/core/activity"
	"github.com/toure-cloud/institutdeveloppement/core/content"
	"github.com/toure-cloud/institutdeveloppement/core/convocation"
	"github.com/toure-cloud/institutdeveloppement/core/enrollment"
	"github.com/toure-cloud/institutdeveloppement/core/mailing"
	"github.com/toure-cloud/institutdeveloppement/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "Utilisateur non authentifié.")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "Identifiants invalides.")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "Ce compte est désactivé.")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "La session a expiré.")
	errTokenRevoked         = echo.NewHTTPError(http.StatusUnauthorized, "Session terminée.")
	errCandidatesOnly       = echo.NewHTTPError(http.StatusForbidden, "Accès réservé aux candidats")
	errStaffOnly            = echo.NewHTTPError(http.StatusForbidden, "Accès réservé à l'administration")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "Permission refusée.")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "Introuvable.")
	errTooManyRequests      = echo.NewHTTPError(http.StatusTooManyRequests, "Trop de tentatives. Veuillez réessayer plus tard.")

	// domain errors answered with a 404
	notFoundErrors = map[error]bool{
		user.ErrNotFound:                  true,
		enrollment.ErrNotFound:            true,
		enrollment.ErrDocumentNotFound:    true,
		activity.ErrNotFound:              true,
		activity.ErrImageNotFound:         true,
		content.ErrPageNotFound:           true,
		content.ErrTeamMemberNotFound:     true,
		content.ErrFormationNotFound:      true,
		content.ErrProgrammeNotFound:      true,
		content.ErrMaquetteNotFound:       true,
		convocation.ErrNotFound:           true,
		convocation.ErrNoEnrollment:       true,
		convocation.ErrScheduleIDNotFound: true,
	}

	// domain errors answered with a 400
	badRequestErrors = map[error]bool{
		enrollment.ErrInvalidTransition: true,
		content.ErrFormationExists:      true,
		mailing.ErrNoRecipients:         true,
		mailing.ErrNoSubject:            true,
		mailing.ErrNoMessage:            true,
		mailing.ErrNoEmailFound:         true,
	}
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, fErr := range core.TranslateErrors(origErr, translator) {
				fldErrs[fErr.Field] = fErr.Error
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			switch {
			case notFoundErrors[cause]:
				code = http.StatusNotFound
				message = cause.Error()
			case badRequestErrors[cause]:
				code = http.StatusBadRequest
				message = cause.Error()
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				var usr user.User
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					usr.ID = claims.Subject
					usr.Username = claims.Username
					usr.Email = claims.Email
				}
				logger.Error(msg, errors.Wrap(err, msg), usr)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
