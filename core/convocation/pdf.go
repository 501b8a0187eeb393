package convocation

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/toure-cloud/institutdeveloppement/core/enrollment"
)

var instructions = []string{
	"• Se présenter 30 minutes avant l'heure de l'examen",
	"• Se munir de cette convocation et d'une pièce d'identité officielle",
	"• Les téléphones portables et tout appareil électronique sont interdits",
	"• Aucun document n'est autorisé sauf mention contraire",
	"• Tout retardataire ne sera pas admis en salle d'examen",
}

const (
	notProvidedF = "Non renseignée"
	notProvided  = "Non renseigné"
	toBeDefined  = "À préciser"
)

// document wraps fpdf with the cp1252 translation needed by the core fonts.
type document struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func newDocument(title string) *document {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()
	doc := &document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, doc.tr(title), "", 1, "C", false, 0, "")
	pdf.Ln(12)
	return doc
}

func (doc *document) heading(text string) {
	doc.pdf.SetFont("Helvetica", "B", 11)
	doc.pdf.CellFormat(0, 8, doc.tr(text), "", 1, "L", false, 0, "")
	doc.pdf.Ln(3)
}

// table renders label/value rows in two columns of the given widths.
func (doc *document) table(rows [][2]string, labelW, valueW float64) {
	doc.pdf.SetFont("Helvetica", "", 10)
	for _, row := range rows {
		doc.pdf.CellFormat(labelW, 8, doc.tr(row[0]), "", 0, "L", false, 0, "")
		doc.pdf.CellFormat(valueW, 8, doc.tr(row[1]), "", 1, "L", false, 0, "")
	}
	doc.pdf.Ln(8)
}

func (doc *document) paragraph(text string) {
	doc.pdf.SetFont("Helvetica", "", 10)
	doc.pdf.MultiCell(0, 6, doc.tr(text), "", "L", false)
	doc.pdf.Ln(2)
}

func (doc *document) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := doc.pdf.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "writing pdf")
	}
	return buf.Bytes(), nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// renderConvocation renders the exam notice of e.
func renderConvocation(e enrollment.Enrollment, s Schedule) ([]byte, error) {
	birthDate := notProvidedF
	if !e.BirthDate.IsZero() {
		birthDate = e.BirthDate.Format("02/01/2006")
	}

	doc := newDocument("CONVOCATION AU CONCOURS D'ENTRÉE")
	doc.table([][2]string{
		{"Nom:", strings.ToUpper(e.LastName)},
		{"Prénom:", e.FirstName},
		{"Date de naissance:", birthDate},
		{"Lieu de naissance:", orDefault(e.BirthPlace, notProvided)},
		{"Numéro CNI:", orDefault(e.CNI, notProvided)},
		{"Formation:", strings.ToUpper(e.Formation)},
	}, 60, 100)

	doc.heading("INFORMATIONS SUR L'EXAMEN")
	doc.table([][2]string{
		{"Date:", s.ExamDate.Format("02/01/2006")},
		{"Heure:", s.ExamTime},
		{"Lieu:", s.Location},
		{"Salle:", orDefault(s.Room, toBeDefined)},
	}, 30, 130)

	doc.heading("CONSIGNES IMPORTANTES")
	for _, inst := range instructions {
		doc.paragraph(inst)
	}
	doc.pdf.Ln(8)
	doc.paragraph("Bonne chance pour votre examen !")
	return doc.bytes()
}

// SheetRenderer renders the registration sheet attached to the confirmation email.
type SheetRenderer struct {
	siteName string
}

var _ enrollment.SheetRenderer = (*SheetRenderer)(nil)

func NewSheetRenderer(siteName string) *SheetRenderer {
	vala.BeginValidation().Validate(vala.StringNotEmpty(siteName, "siteName")).CheckAndPanic()
	return &SheetRenderer{siteName: siteName}
}

func (sr *SheetRenderer) EnrollmentSheet(e enrollment.Enrollment) ([]byte, error) {
	doc := newDocument("FICHE D'INSCRIPTION")
	doc.paragraph(sr.siteName)

	doc.heading("IDENTITÉ DU CANDIDAT")
	doc.table([][2]string{
		{"Nom:", strings.ToUpper(e.LastName)},
		{"Prénom:", e.FirstName},
		{"Sexe:", e.Sex},
		{"Date de naissance:", e.BirthDate.Format("02/01/2006")},
		{"Lieu de naissance:", orDefault(e.BirthPlace, notProvided)},
		{"Email:", e.Email},
		{"Téléphone:", e.Phone},
		{"Numéro CMU:", e.CMU},
		{"Numéro CNI:", e.CNI},
	}, 60, 100)

	doc.heading("PARCOURS")
	doc.table([][2]string{
		{"Série du bac:", e.BacSeries},
		{"Année du bac:", itoa(e.BacYear)},
		{"Mention:", e.BacMention},
		{"Numéro du bac:", e.BacNumber},
		{"Établissement:", orDefault(e.BacSchool, notProvided)},
		{"Licence:", e.Licence},
		{"Année de licence:", itoa(e.LicenceYear)},
	}, 60, 100)

	doc.heading("FORMATION")
	doc.table([][2]string{
		{"Formation:", strings.ToUpper(e.Formation)},
		{"Date d'inscription:", e.CreatedAt.Format("02/01/2006 15:04")},
		{"Statut:", e.Status.Label()},
	}, 60, 100)
	return doc.bytes()
}

func itoa(n int) string {
	if n == 0 {
		return notProvided
	}
	return strconv.Itoa(n)
}
