package core

import (
	"context"
	"io"
	"path"
	"strings"
)

type (
	// File is an uploaded file. ContentType is sniffed from the content, not taken from the client.
	File struct {
		Name        string
		ContentType string
		Size        int64
		Content     io.Reader
	}

	// FileStorage stores media files under relative, slash separated paths.
	FileStorage interface {
		// Save stores the content under name and returns the final path, which may differ from name
		// when a file with that name already exists.
		Save(ctx context.Context, name string, content io.Reader) (string, error)
		Open(ctx context.Context, name string) (io.ReadCloser, error)
		Delete(ctx context.Context, name string) error
		URL(name string) string
	}
)

var contentTypeExts = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"application/pdf": ".pdf",
}

// Ext returns the extension matching the sniffed content type, or "" for an unsupported type.
// The client file name never decides the stored extension.
func (f File) Ext() string {
	return contentTypeExts[f.ContentType]
}

// NameExt returns the lower-cased extension of the client file name.
func (f File) NameExt() string {
	return strings.ToLower(path.Ext(clientBase(f.Name)))
}

// StoredName returns the stem of the client file name, reduced to safe characters, followed by Ext.
func (f File) StoredName() string {
	base := clientBase(f.Name)
	stem := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, strings.TrimSuffix(base, path.Ext(base)))
	if stem = strings.Trim(stem, "-"); stem == "" {
		stem = "fichier"
	}
	return stem + f.Ext()
}

func clientBase(name string) string {
	return path.Base(strings.ReplaceAll(name, `\`, "/"))
}
