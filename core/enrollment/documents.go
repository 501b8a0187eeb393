package enrollment

import (
	"fmt"
	"path"
	"strings"

	"github.com/toure-cloud/institutdeveloppement/core"
)

type DocumentKind string

const (
	DocPhoto            DocumentKind = "photo"
	DocBac              DocumentKind = "bac"
	DocDiploma          DocumentKind = "diplome"
	DocBirthCertificate DocumentKind = "extrait"

	MaxDocumentSize = 5 << 20
)

// DocumentKinds lists the document slots of an enrollment, in display order.
var DocumentKinds = []DocumentKind{DocPhoto, DocBac, DocDiploma, DocBirthCertificate}

var (
	documentLabels = map[DocumentKind]string{
		DocPhoto:            "Photo d'identité",
		DocBac:              "Diplôme du bac",
		DocDiploma:          "Diplôme de licence",
		DocBirthCertificate: "Extrait de naissance",
	}

	imageTypes    = []string{"image/jpeg", "image/png"}
	documentTypes = []string{"application/pdf", "image/jpeg", "image/png"}

	imageExts    = []string{".jpg", ".jpeg", ".png"}
	documentExts = []string{".pdf", ".jpg", ".jpeg", ".png"}
)

func (k DocumentKind) Valid() bool {
	_, ok := documentLabels[k]
	return ok
}

func (k DocumentKind) Label() string {
	return documentLabels[k]
}

// AllowedTypes returns the content types accepted for this kind of document.
func (k DocumentKind) AllowedTypes() []string {
	if k == DocPhoto {
		return imageTypes
	}
	return documentTypes
}

// AllowedExts returns the file name extensions accepted for this kind of document.
func (k DocumentKind) AllowedExts() []string {
	if k == DocPhoto {
		return imageExts
	}
	return documentExts
}

// CheckFile verifies the size, content type and file name extension of a document.
func (k DocumentKind) CheckFile(f core.File) error {
	field := string(k)
	if !k.Valid() {
		return core.NewFieldError("document_type", "Type de document invalide")
	}
	if f.Size > MaxDocumentSize {
		return core.NewFieldError(field, "Le fichier ne doit pas dépasser 5 Mo")
	}
	if !contains(k.AllowedExts(), f.NameExt()) {
		return core.NewFieldError(field, fmt.Sprintf("Extension de fichier non autorisée (%s)", strings.Join(k.AllowedExts(), ", ")))
	}
	if contains(k.AllowedTypes(), f.ContentType) {
		return nil
	}
	if k == DocPhoto {
		return core.NewFieldError(field, "Format d'image invalide (JPEG ou PNG attendu)")
	}
	return core.NewFieldError(field, "Format de fichier invalide (PDF, JPEG ou PNG attendu)")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// DocumentPath is the storage path of a document: `documents/<kind>/<NOM>_<Prenom>_<kind><ext>`.
func DocumentPath(e Enrollment, kind DocumentKind, ext string) string {
	name := fmt.Sprintf("%s_%s_%s%s", pathSafe(e.LastName), pathSafe(e.FirstName), kind, strings.ToLower(ext))
	return path.Join("documents", string(kind), name)
}

func pathSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ', '.':
			return '-'
		}
		return r
	}, core.CleanString(s))
}

// MissingDocuments returns an error listing the labels of the kinds absent from files.
func MissingDocuments(files map[DocumentKind]core.File) error {
	var missing []string
	for _, kind := range DocumentKinds {
		if f, ok := files[kind]; !ok || f.Content == nil {
			missing = append(missing, kind.Label())
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return core.NewFieldError("documents", "Fichiers obligatoires manquants: "+strings.Join(missing, ", "))
}
