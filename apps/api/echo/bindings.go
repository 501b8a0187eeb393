package echoapi

import (
	"bytes"
	"io/ioutil"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/toure-cloud/institutdeveloppement/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// paramID parses the `:id` path parameter; a malformed id is a 404.
func paramID(ctx echo.Context) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}

// readFile loads an uploaded file and sniffs its content type.
func readFile(fh *multipart.FileHeader) (core.File, error) {
	f, err := fh.Open()
	if err != nil {
		return core.File{}, errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	data, err := ioutil.ReadAll(f)
	if err != nil {
		return core.File{}, errors.Wrap(err, "reading uploaded file")
	}
	return core.File{
		Name:        fh.Filename,
		ContentType: http.DetectContentType(data),
		Size:        int64(len(data)),
		Content:     bytes.NewReader(data),
	}, nil
}

// formFile returns the named upload, or nil when the field is absent.
func formFile(ctx echo.Context, field string) (*core.File, error) {
	fh, err := ctx.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile || err == http.ErrNotMultipart {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading form file %q", field)
	}
	f, err := readFile(fh)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// formFiles returns every upload of the named field.
func formFiles(ctx echo.Context, field string) ([]core.File, error) {
	form, err := ctx.MultipartForm()
	if err != nil {
		if err == http.ErrNotMultipart {
			return nil, nil
		}
		return nil, errors.Wrap(err, "parsing multipart form")
	}
	files := make([]core.File, 0, len(form.File[field]))
	for _, fh := range form.File[field] {
		f, err := readFile(fh)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// attachment sends content as a downloadable file.
func attachment(ctx echo.Context, contentType, filename string, content []byte) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, contentDisposition("attachment", filename))
	return ctx.Blob(http.StatusOK, contentType, content)
}

type (
	IDsRequest struct {
		IDs []int64 `json:"ids"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	CountResponse struct {
		Success string `json:"success"`
		Count   int    `json:"count"`
	}
)
