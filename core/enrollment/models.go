package enrollment

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/toure-cloud/institutdeveloppement/core"
	"github.com/toure-cloud/institutdeveloppement/core/user"
)

// Status is the state of an enrollment. Only pending enrollments may be validated or rejected.
type Status string

const (
	StatusPending   Status = "E"
	StatusValidated Status = "V"
	StatusRejected  Status = "R"
)

var statusLabels = map[Status]string{
	StatusPending:   "En attente",
	StatusValidated: "Validé",
	StatusRejected:  "Rejeté",
}

var statusClasses = map[Status]string{
	StatusPending:   "bg-warning",
	StatusValidated: "bg-success",
	StatusRejected:  "bg-danger",
}

func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Class is the badge css class used by the back office for this status.
func (s Status) Class() string {
	if c, ok := statusClasses[s]; ok {
		return c
	}
	return "bg-secondary"
}

func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

const DefaultLicence = "Inconnu"

var (
	StatusChoices = []Choice{
		{string(StatusPending), "En attente"},
		{string(StatusValidated), "Validé"},
		{string(StatusRejected), "Rejeté"},
	}

	Sexes = []Choice{{"M", "Masculin"}, {"F", "Féminin"}}

	BacSeries = []Choice{
		{"A", "Série A"}, {"C", "Série C"}, {"D", "Série D"},
		{"E", "Série E"}, {"F", "Série F"}, {"G", "Série G"},
	}

	BacMentions = []Choice{{"TB", "Très Bien"}, {"B", "Bien"}, {"AB", "Assez Bien"}, {"P", "Passable"}}
)

type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Documents holds the storage paths of the four enrollment documents; empty when not uploaded.
type Documents struct {
	Photo            string `json:"photo"`
	Bac              string `json:"bac"`
	Diploma          string `json:"diplome"`
	BirthCertificate string `json:"extrait"`
}

func (d Documents) Get(kind DocumentKind) string {
	switch kind {
	case DocPhoto:
		return d.Photo
	case DocBac:
		return d.Bac
	case DocDiploma:
		return d.Diploma
	case DocBirthCertificate:
		return d.BirthCertificate
	}
	return ""
}

func (d *Documents) Set(kind DocumentKind, path string) {
	switch kind {
	case DocPhoto:
		d.Photo = path
	case DocBac:
		d.Bac = path
	case DocDiploma:
		d.Diploma = path
	case DocBirthCertificate:
		d.BirthCertificate = path
	}
}

// Present reports which document slots are filled.
func (d Documents) Present() map[DocumentKind]bool {
	present := make(map[DocumentKind]bool, len(DocumentKinds))
	for _, kind := range DocumentKinds {
		present[kind] = d.Get(kind) != ""
	}
	return present
}

// Completion is the percentage of filled document slots.
func (d Documents) Completion() float64 {
	var filled int
	for _, ok := range d.Present() {
		if ok {
			filled++
		}
	}
	return float64(filled) / float64(len(DocumentKinds)) * 100
}

type Enrollment struct {
	ID                int64     `json:"id"`
	UserID            string    `json:"user_id"`
	LastName          string    `json:"nom"`
	FirstName         string    `json:"prenom"`
	Sex               string    `json:"sexe"`
	BirthDate         time.Time `json:"date_naissance"`
	BirthPlace        string    `json:"lieu_naissance"`
	Email             string    `json:"email"`
	EmailConfirmation string    `json:"email_confirmation"`
	Phone             string    `json:"telephone"`
	CMU               string    `json:"cmu"`
	CNI               string    `json:"cni"`
	BacSeries         string    `json:"serie_bac"`
	BacYear           int       `json:"annee_obtentionbac"`
	BacMention        string    `json:"mention_bac"`
	BacNumber         string    `json:"numero_bac"`
	BacSchool         string    `json:"ecole_diplomebac"`
	Licence           string    `json:"licence"`
	LicenceYear       int       `json:"annee_obtentionlicence"`
	Documents         Documents `json:"documents"`
	Formation         string    `json:"formation"`
	Status            Status    `json:"statut"`
	CreatedAt         time.Time `json:"date_inscription"` // UTC
}

func (e Enrollment) FullName() string {
	return e.FirstName + " " + e.LastName
}

// Normalize applies the storage casing rules.
func (e *Enrollment) Normalize() {
	e.LastName = strings.ToUpper(core.CleanString(e.LastName))
	e.FirstName = core.Capitalize(e.FirstName)
	e.BacNumber = strings.ToUpper(core.CleanString(e.BacNumber))
	e.Email = core.CleanString(e.Email, true /* lower */)
	e.EmailConfirmation = core.CleanString(e.EmailConfirmation, true /* lower */)
	if core.CleanString(e.Licence) == "" {
		e.Licence = DefaultLicence
	}
	if e.BacSeries == "" {
		e.BacSeries = "A"
	}
	if e.Status == "" {
		e.Status = StatusPending
	}
}

// NewEnrollment is the registration form of a candidate.
type NewEnrollment struct {
	LastName          string `json:"nom" form:"nom" validate:"required,notblank,max=100"`
	FirstName         string `json:"prenom" form:"prenom" validate:"required,notblank,max=100"`
	Sex               string `json:"sexe" form:"sexe" validate:"required,oneof=M F"`
	BirthDate         string `json:"date_naissance" form:"date_naissance" validate:"required,datetime=2006-01-02"`
	BirthPlace        string `json:"lieu_naissance" form:"lieu_naissance" validate:"required,max=100"`
	Email             string `json:"email" form:"email" validate:"required,email,max=254"`
	EmailConfirmation string `json:"email_confirmation" form:"email_confirmation" validate:"required,email"`
	Phone             string `json:"telephone" form:"telephone" validate:"required,phone"`
	CMU               string `json:"cmu" form:"cmu" validate:"required,notblank,max=50"`
	CNI               string `json:"cni" form:"cni" validate:"required,notblank,max=50"`
	BacSeries         string `json:"serie_bac" form:"serie_bac" validate:"omitempty,oneof=A C D E F G"`
	BacYear           int    `json:"annee_obtentionbac" form:"annee_obtentionbac" validate:"required,min=1950,notfuture"`
	BacMention        string `json:"mention_bac" form:"mention_bac" validate:"required,oneof=TB B AB P"`
	BacNumber         string `json:"numero_bac" form:"numero_bac" validate:"required,notblank,max=50"`
	BacSchool         string `json:"ecole_diplomebac" form:"ecole_diplomebac" validate:"max=200"`
	Licence           string `json:"licence" form:"licence" validate:"max=100"`
	LicenceYear       int    `json:"annee_obtentionlicence" form:"annee_obtentionlicence" validate:"required,min=1950,notfuture"`
	Password          string `json:"password" form:"password" validate:"required"`
}

func (ne *NewEnrollment) Clean() {
	ne.LastName = core.CleanString(ne.LastName)
	ne.FirstName = core.CleanString(ne.FirstName)
	ne.BirthPlace = core.CleanString(ne.BirthPlace)
	ne.Email = core.CleanString(ne.Email, true /* lower */)
	ne.EmailConfirmation = core.CleanString(ne.EmailConfirmation, true /* lower */)
	ne.Phone = core.CleanString(ne.Phone)
	ne.CMU = core.CleanString(ne.CMU)
	ne.CNI = core.CleanString(ne.CNI)
	ne.BacNumber = core.CleanString(ne.BacNumber)
	ne.BacSchool = core.CleanString(ne.BacSchool)
	ne.Licence = core.CleanString(ne.Licence)
}

// Validate checks the form fields, then the cross-field rules (email confirmation, years order).
func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	ne.Clean()
	if err := validate.Struct(ne); err != nil {
		return err
	}
	if ne.Email != ne.EmailConfirmation {
		return core.NewFieldError("email_confirmation", "Les adresses email ne correspondent pas")
	}
	if ne.LicenceYear < ne.BacYear {
		return core.NewFieldError("annee_obtentionlicence", "La licence ne peut pas être antérieure au bac")
	}
	cp := user.CandidatePassword{Name: ne.FirstName + " " + ne.LastName, Email: ne.Email, Password: ne.Password}
	return cp.Validate(validate)
}

func (ne NewEnrollment) Enrollment(userID, formation string) Enrollment {
	birthDate, _ := time.Parse("2006-01-02", ne.BirthDate)
	e := Enrollment{
		UserID:            userID,
		LastName:          ne.LastName,
		FirstName:         ne.FirstName,
		Sex:               ne.Sex,
		BirthDate:         birthDate,
		BirthPlace:        ne.BirthPlace,
		Email:             ne.Email,
		EmailConfirmation: ne.EmailConfirmation,
		Phone:             ne.Phone,
		CMU:               ne.CMU,
		CNI:               ne.CNI,
		BacSeries:         ne.BacSeries,
		BacYear:           ne.BacYear,
		BacMention:        ne.BacMention,
		BacNumber:         ne.BacNumber,
		BacSchool:         ne.BacSchool,
		Licence:           ne.Licence,
		LicenceYear:       ne.LicenceYear,
		Formation:         core.CleanString(formation),
		Status:            StatusPending,
		CreatedAt:         time.Now().UTC(),
	}
	e.Normalize()
	return e
}

// UpdateProfile holds the fields a candidate may change. Nil fields are left untouched.
type UpdateProfile struct {
	Phone      *string `json:"telephone" validate:"omitempty,phone"`
	CMU        *string `json:"cmu" validate:"omitempty,notblank,max=50"`
	CNI        *string `json:"cni" validate:"omitempty,notblank,max=50"`
	BirthPlace *string `json:"lieu_naissance" validate:"omitempty,max=100"`
	BacSchool  *string `json:"ecole_diplomebac" validate:"omitempty,max=200"`
	Licence    *string `json:"licence" validate:"omitempty,max=100"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	for _, fld := range []*string{up.Phone, up.CMU, up.CNI, up.BirthPlace, up.BacSchool, up.Licence} {
		if fld != nil {
			*fld = core.CleanString(*fld)
		}
	}
	return validate.Struct(up)
}

func (up UpdateProfile) IsEmpty() bool {
	return up.Phone == nil && up.CMU == nil && up.CNI == nil && up.BirthPlace == nil && up.BacSchool == nil && up.Licence == nil
}

// Apply copies the set fields onto e and returns the names of the changed fields.
func (up UpdateProfile) Apply(e *Enrollment) []string {
	var updated []string
	set := func(name string, src *string, dst *string) {
		if src != nil && *src != *dst {
			*dst = *src
			updated = append(updated, name)
		}
	}
	set("telephone", up.Phone, &e.Phone)
	set("cmu", up.CMU, &e.CMU)
	set("cni", up.CNI, &e.CNI)
	set("lieu_naissance", up.BirthPlace, &e.BirthPlace)
	set("ecole_diplomebac", up.BacSchool, &e.BacSchool)
	set("licence", up.Licence, &e.Licence)
	if e.Licence == "" {
		e.Licence = DefaultLicence
	}
	return updated
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Status      Status    `query:"statut"`
	Formation   string    `query:"formation"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
	Limit       int       `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Formation = core.CleanString(qf.Formation)
	if !qf.Status.Valid() {
		qf.Status = ""
	}
}

// UniqueFilter looks for enrollments clashing with the unique fields of e.
type UniqueFilter struct {
	Email     string
	CMU       string
	CNI       string
	BacNumber string
	LastName  string
	FirstName string
	BirthDate time.Time
	ExcludeID int64
}

// StatusCounts is the number of enrollments per status.
type StatusCounts struct {
	Total     int `json:"total"`
	Pending   int `json:"en_attente"`
	Validated int `json:"valides"`
	Rejected  int `json:"rejetes"`
}

type FormationStat struct {
	Formation  string  `json:"formation"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Stats feeds the back office dashboard.
type Stats struct {
	StatusCounts
	Recent         int             `json:"recents"`
	ThisMonth      int             `json:"inscriptions_mois"`
	ValidationRate float64         `json:"taux_validation"`
	ByFormation    []FormationStat `json:"formations"`
	Latest         []Enrollment    `json:"dernieres_inscriptions"`
}
