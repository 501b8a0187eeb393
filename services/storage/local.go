package storagesvc

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/toure-cloud/institutdeveloppement/core"
)

var ErrInvalidPath = errors.New("invalid media path")

// localStorage keeps media files under the media root and serves them from the media URL.
type localStorage struct {
	root    string
	baseURL string
}

var _ core.FileStorage = (*localStorage)(nil)

func NewLocalStorage(conf *core.Config) core.FileStorage {
	baseURL := conf.Media.URL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &localStorage{root: conf.Media.Root, baseURL: baseURL}
}

// abs maps a slash separated media path to the file system, refusing paths that escape the root.
func (s *localStorage) abs(name string) (string, error) {
	clean := path.Clean("/" + name)
	if clean == "/" {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// available returns name, or name with a random suffix when a file already exists there.
func (s *localStorage) available(name string) (string, error) {
	for {
		fp, err := s.abs(name)
		if err != nil {
			return "", err
		}
		if _, err = os.Stat(fp); os.IsNotExist(err) {
			return name, nil
		} else if err != nil {
			return "", errors.Wrap(err, "checking media file")
		}
		ext := path.Ext(name)
		name = strings.TrimSuffix(name, ext) + "_" + uuid.NewString()[:7] + ext
	}
}

func (s *localStorage) Save(ctx context.Context, name string, content io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name, err := s.available(strings.TrimPrefix(path.Clean("/"+name), "/"))
	if err != nil {
		return "", err
	}
	fp, _ := s.abs(name)
	if err = os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return "", errors.Wrap(err, "creating media directory")
	}

	f, err := os.OpenFile(fp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", errors.Wrap(err, "creating media file")
	}
	if _, err = io.Copy(f, content); err != nil {
		_ = f.Close()
		_ = os.Remove(fp)
		return "", errors.Wrap(err, "writing media file")
	}
	return name, errors.Wrap(f.Close(), "closing media file")
}

func (s *localStorage) Open(_ context.Context, name string) (io.ReadCloser, error) {
	fp, err := s.abs(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fp)
	if err != nil {
		return nil, errors.Wrap(err, "opening media file")
	}
	return f, nil
}

// Delete removes the file; a missing file is not an error.
func (s *localStorage) Delete(_ context.Context, name string) error {
	fp, err := s.abs(name)
	if err != nil {
		return err
	}
	if err = os.Remove(fp); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "deleting media file")
	}
	return nil
}

func (s *localStorage) URL(name string) string {
	if name == "" {
		return ""
	}
	return s.baseURL + strings.TrimPrefix(name, "/")
}
