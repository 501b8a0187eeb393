package echoapi

import (
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/toure-cloud/institutdeveloppement/core"
	"github.com/toure-cloud/institutdeveloppement/core/enrollment"
)

// identity documents live under this media directory and are only served to their owner and to staff
const documentsDir = "documents"

var mediaTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".pdf":  "application/pdf",
}

type mediaApi struct {
	storage core.FileStorage
}

func registerMediaAPI(app *echo.Echo, s *Server) {
	prefix := "/media"
	if u, err := url.Parse(s.deps.Conf.Media.URL); err == nil && strings.Trim(u.Path, "/") != "" {
		prefix = "/" + strings.Trim(u.Path, "/")
	}
	api := mediaApi{storage: s.deps.Storage}
	app.GET(prefix+"/*", api.serve)
}

func (api *mediaApi) serve(ctx echo.Context) error {
	name, err := url.PathUnescape(ctx.Param("*"))
	if err != nil {
		return errHttpNotFound
	}
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if name == documentsDir || strings.HasPrefix(name, documentsDir+"/") {
		return errHttpNotFound
	}
	ct, ok := mediaTypes[strings.ToLower(path.Ext(name))]
	if !ok {
		return errHttpNotFound
	}

	rc, err := api.storage.Open(ctx.Request().Context(), name)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "opening media file")
	}
	defer rc.Close()

	ctx.Response().Header().Set("X-Content-Type-Options", "nosniff")
	return ctx.Stream(http.StatusOK, ct, rc)
}

// documentLinks maps each document kind to its download route under base; missing documents map to "".
func documentLinks(base string, e enrollment.Enrollment) map[enrollment.DocumentKind]string {
	links := make(map[enrollment.DocumentKind]string, len(enrollment.DocumentKinds))
	for _, kind := range enrollment.DocumentKinds {
		if e.Documents.Get(kind) != "" {
			links[kind] = base + "/" + string(kind)
		} else {
			links[kind] = ""
		}
	}
	return links
}

// sendDocument streams the document of e named by the `kind` path parameter.
func sendDocument(ctx echo.Context, svc enrollment.Service, e enrollment.Enrollment) error {
	kind := enrollment.DocumentKind(ctx.Param("kind"))
	if !kind.Valid() {
		return errHttpNotFound
	}
	rc, filename, err := svc.OpenDocument(ctx.Request().Context(), e, kind)
	if err != nil {
		return errors.Wrap(err, "opening document")
	}
	defer rc.Close()

	ct, ok := mediaTypes[strings.ToLower(path.Ext(filename))]
	if !ok {
		ct = echo.MIMEOctetStream
	}
	h := ctx.Response().Header()
	h.Set(echo.HeaderContentDisposition, contentDisposition("inline", filename))
	h.Set("X-Content-Type-Options", "nosniff")
	return ctx.Stream(http.StatusOK, ct, rc)
}

// contentDisposition formats a Content-Disposition value, quoting or encoding filename as needed.
func contentDisposition(disposition, filename string) string {
	if v := mime.FormatMediaType(disposition, map[string]string{"filename": filename}); v != "" {
		return v
	}
	return disposition
}
