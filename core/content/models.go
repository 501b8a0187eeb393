package content

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/toure-cloud/institutdeveloppement/core"
)

type PartnerCategory string

const (
	PartnerAcademic      PartnerCategory = "academique"
	PartnerInstitutional PartnerCategory = "institutionnel"
	PartnerPrivate       PartnerCategory = "prive"
)

var partnerCategoryLabels = map[PartnerCategory]string{
	PartnerAcademic:      "Académique",
	PartnerInstitutional: "Institutionnel",
	PartnerPrivate:       "Privé",
}

func (c PartnerCategory) Display() string {
	if l, ok := partnerCategoryLabels[c]; ok {
		return l
	}
	return string(c)
}

type Partner struct {
	ID          int64           `json:"id"`
	Name        string          `json:"nom"`
	Logo        string          `json:"-"`
	LogoURL     string          `json:"logo"`
	Category    PartnerCategory `json:"category"`
	Description string          `json:"description"`
	Website     string          `json:"website"`
}

// PartnerGroups is the home page view of partners, one list per category.
type PartnerGroups struct {
	Academic      []Partner `json:"academiques"`
	Institutional []Partner `json:"institutionnels"`
	Private       []Partner `json:"prives"`
}

func GroupPartners(partners []Partner) PartnerGroups {
	groups := PartnerGroups{Academic: []Partner{}, Institutional: []Partner{}, Private: []Partner{}}
	for _, p := range partners {
		switch p.Category {
		case PartnerAcademic:
			groups.Academic = append(groups.Academic, p)
		case PartnerInstitutional:
			groups.Institutional = append(groups.Institutional, p)
		case PartnerPrivate:
			groups.Private = append(groups.Private, p)
		}
	}
	return groups
}

type NewPartner struct {
	Name        string          `json:"nom" form:"nom" validate:"required,notblank,max=100"`
	Category    PartnerCategory `json:"category" form:"category" validate:"required,oneof=academique institutionnel prive"`
	Description string          `json:"description" form:"description"`
	Website     string          `json:"website" form:"website" validate:"omitempty,url,max=200"`
}

func (np *NewPartner) Validate(validate *validator.Validate) error {
	np.Name = core.CleanString(np.Name)
	np.Description = core.CleanString(np.Description)
	np.Website = core.CleanString(np.Website)
	return validate.Struct(np)
}

type TeamCategory string

const (
	TeamResearch       TeamCategory = "recherche"
	TeamTeaching       TeamCategory = "enseignement"
	TeamAdministration TeamCategory = "admin"
)

var teamCategoryLabels = map[TeamCategory]string{
	TeamResearch:       "Recherche",
	TeamTeaching:       "Enseignement",
	TeamAdministration: "Administration",
}

type Expertise struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type TeamMember struct {
	ID              int64        `json:"id"`
	FirstName       string       `json:"first_name"`
	LastName        string       `json:"last_name"`
	Slug            string       `json:"slug"`
	Title           string       `json:"title"`
	Bio             string       `json:"bio"`
	Photo           string       `json:"-"`
	PhotoURL        string       `json:"photo"`
	Category        TeamCategory `json:"category"`
	Expertises      []Expertise  `json:"expertises"`
	LinkedinURL     string       `json:"linkedin_url"`
	ResearchgateURL string       `json:"researchgate_url"`
	DisplayOrder    int          `json:"display_order"`
	CreatedAt       time.Time    `json:"created_at"` // UTC
	UpdatedAt       time.Time    `json:"updated_at"` // UTC
}

func (tm TeamMember) FullName() string {
	return tm.FirstName + " " + tm.LastName
}

func (tm TeamMember) CategoryDisplay() string {
	if l, ok := teamCategoryLabels[tm.Category]; ok {
		return l
	}
	return string(tm.Category)
}

// ActiveSocialLinks maps each social network to the member's profile URL, when set.
func (tm TeamMember) ActiveSocialLinks() map[string]string {
	links := make(map[string]string, 2)
	if tm.LinkedinURL != "" {
		links["linkedin"] = tm.LinkedinURL
	}
	if tm.ResearchgateURL != "" {
		links["researchgate"] = tm.ResearchgateURL
	}
	return links
}

type NewTeamMember struct {
	FirstName       string       `json:"first_name" form:"first_name" validate:"required,min=2,max=100"`
	LastName        string       `json:"last_name" form:"last_name" validate:"required,min=2,max=100"`
	Title           string       `json:"title" form:"title" validate:"max=150"`
	Bio             string       `json:"bio" form:"bio"`
	Category        TeamCategory `json:"category" form:"category" validate:"required,oneof=recherche enseignement admin"`
	Expertises      []string     `json:"expertises" form:"expertises" validate:"dive,notblank,max=50"`
	LinkedinURL     string       `json:"linkedin_url" form:"linkedin_url" validate:"omitempty,url,max=200"`
	ResearchgateURL string       `json:"researchgate_url" form:"researchgate_url" validate:"omitempty,url,max=200"`
	DisplayOrder    int          `json:"display_order" form:"display_order" validate:"min=0"`
}

func (ntm *NewTeamMember) Validate(validate *validator.Validate) error {
	ntm.FirstName = core.CleanString(ntm.FirstName)
	ntm.LastName = core.CleanString(ntm.LastName)
	ntm.Title = core.CleanString(ntm.Title)
	ntm.Bio = core.CleanString(ntm.Bio)
	ntm.LinkedinURL = core.CleanString(ntm.LinkedinURL)
	ntm.ResearchgateURL = core.CleanString(ntm.ResearchgateURL)
	for i, e := range ntm.Expertises {
		ntm.Expertises[i] = core.CleanString(e)
	}
	return validate.Struct(ntm)
}

// Slugify lowers s, folds accents and joins words with dashes.
func Slugify(s string) string {
	var (
		b       strings.Builder
		pending bool
	)
	for _, r := range strings.ToLower(core.CleanString(s)) {
		if rr, ok := asciiFold[r]; ok {
			r = rr
		}
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			pending = false
			b.WriteRune(r)
		case r == '-', r == '_', r == ' ', r == '\t':
			pending = true
		}
	}
	return b.String()
}

var asciiFold = map[rune]rune{
	'à': 'a', 'â': 'a', 'ä': 'a', 'á': 'a',
	'ç': 'c',
	'é': 'e', 'è': 'e', 'ê': 'e', 'ë': 'e',
	'î': 'i', 'ï': 'i', 'í': 'i',
	'ô': 'o', 'ö': 'o', 'ó': 'o',
	'ù': 'u', 'û': 'u', 'ü': 'u', 'ú': 'u',
	'ÿ': 'y',
}

// ECUE is a constituent element of a teaching unit.
type ECUE struct {
	ID     int64  `json:"id"`
	UnitID int64  `json:"-"`
	Name   string `json:"nom"`
	Code   string `json:"code"`
}

// UE is a teaching unit.
type UE struct {
	ID          int64  `json:"id"`
	FormationID int64  `json:"-"`
	Name        string `json:"nom"`
	Code        string `json:"code"`
	ECUEs       []ECUE `json:"ecues"`
}

type Formation struct {
	ID            int64   `json:"id"`
	Name          string  `json:"nom"`
	DurationHours int     `json:"duree"`
	Cost          float64 `json:"cout"`
	UEs           []UE    `json:"ues"`
}

type NewFormation struct {
	Name          string  `json:"nom" validate:"required,notblank,max=255"`
	DurationHours int     `json:"duree" validate:"required,min=1"`
	Cost          float64 `json:"cout" validate:"min=0"`
	UEs           []NewUE `json:"ues" validate:"dive"`
}

type NewUE struct {
	Name  string `json:"nom" validate:"required,notblank,max=255"`
	Code  string `json:"code" validate:"required,notblank,max=50"`
	ECUEs []struct {
		Name string `json:"nom" validate:"required,notblank,max=255"`
		Code string `json:"code" validate:"required,notblank,max=50"`
	} `json:"ecues" validate:"dive"`
}

func (nf *NewFormation) Validate(validate *validator.Validate) error {
	nf.Name = core.CleanString(nf.Name)
	return validate.Struct(nf)
}

func (nf NewFormation) Formation() Formation {
	f := Formation{Name: nf.Name, DurationHours: nf.DurationHours, Cost: nf.Cost, UEs: make([]UE, 0, len(nf.UEs))}
	for _, nue := range nf.UEs {
		ue := UE{Name: core.CleanString(nue.Name), Code: core.CleanString(nue.Code), ECUEs: make([]ECUE, 0, len(nue.ECUEs))}
		for _, necue := range nue.ECUEs {
			ue.ECUEs = append(ue.ECUEs, ECUE{Name: core.CleanString(necue.Name), Code: core.CleanString(necue.Code)})
		}
		f.UEs = append(f.UEs, ue)
	}
	return f
}

type ProgrammeModule struct {
	ID            int64  `json:"id"`
	Name          string `json:"nom"`
	DurationHours int    `json:"duree_heures"`
	Trainer       string `json:"formateur"`
	Objectives    string `json:"objectifs"`
}

type Programme struct {
	ID          int64             `json:"id"`
	FormationID int64             `json:"formation_id"`
	TotalHours  int               `json:"duree_totale"`
	StartDate   time.Time         `json:"date_debut"`
	EndDate     time.Time         `json:"date_fin"`
	ModuleCount int               `json:"nombre_modules"`
	Modules     []ProgrammeModule `json:"modules"`
}

type Maquette struct {
	ID           int64  `json:"id"`
	FormationID  int64  `json:"formation_id"`
	Version      string `json:"version"`
	AcademicYear string `json:"annee_academique"`
	ECTSCredits  int    `json:"credits_ects"`
	Objectives   string `json:"objectifs"`
	Competences  string `json:"competences"`
	File         string `json:"-"`
	FileURL      string `json:"fichier"`
}

// Slide is a home page carousel entry.
type Slide struct {
	Image  string `json:"image"`
	Slogan string `json:"slogan"`
}

var Slides = []Slide{
	{"cascade.jpg", "Découvrez la beauté de la nature"},
	{"baselique.jpg", "L'architecture au cœur de l'histoire"},
	{"man.jpg", "L'esprit humain, une aventure infinie"},
	{"pt.jpg", "Un regard sur les horizons lointains"},
	{"tourisme.jpg", "Explorez le monde, vivez l'expérience"},
}

type Home struct {
	Slides      []Slide       `json:"slides"`
	TeamMembers []TeamMember  `json:"team_members"`
	Partners    PartnerGroups `json:"partenaires"`
}

// Page is a public page of the site. Data depends on the page.
type Page struct {
	Name  string      `json:"name"`
	Title string      `json:"title"`
	Data  interface{} `json:"data,omitempty"`
}

const (
	PageFormation    = "formation"
	PageContact      = "contact"
	PageActivity     = "activite"
	PagePresentation = "presentation"
	PageResearch     = "travaux"
	PageEnrollment   = "inscription"
)

var pageTitles = map[string]string{
	PageFormation:    "Nos Formations",
	PageContact:      "Contact",
	PageActivity:     "Activité",
	PagePresentation: "Présentation",
	PageResearch:     "Travaux",
	PageEnrollment:   "Inscription",
}

func PageTitle(name string) (string, bool) {
	t, ok := pageTitles[name]
	return t, ok
}

type NewProgramme struct {
	TotalHours int    `json:"duree_totale" validate:"required,min=1"`
	StartDate  string `json:"date_debut" validate:"required,datetime=2006-01-02"`
	EndDate    string `json:"date_fin" validate:"required,datetime=2006-01-02"`
	Modules    []struct {
		Name          string `json:"nom" validate:"required,notblank,max=200"`
		DurationHours int    `json:"duree_heures" validate:"required,min=1"`
		Trainer       string `json:"formateur" validate:"max=100"`
		Objectives    string `json:"objectifs"`
	} `json:"modules" validate:"dive"`
}

func (np *NewProgramme) Validate(validate *validator.Validate) error {
	if err := validate.Struct(np); err != nil {
		return err
	}
	if np.EndDate < np.StartDate {
		return core.NewFieldError("date_fin", "La date de fin doit être postérieure à la date de début")
	}
	return nil
}

func (np NewProgramme) Programme(formationID int64) Programme {
	start, _ := time.Parse("2006-01-02", np.StartDate)
	end, _ := time.Parse("2006-01-02", np.EndDate)
	p := Programme{
		FormationID: formationID,
		TotalHours:  np.TotalHours,
		StartDate:   start,
		EndDate:     end,
		ModuleCount: len(np.Modules),
		Modules:     make([]ProgrammeModule, 0, len(np.Modules)),
	}
	for _, m := range np.Modules {
		p.Modules = append(p.Modules, ProgrammeModule{
			Name:          core.CleanString(m.Name),
			DurationHours: m.DurationHours,
			Trainer:       core.CleanString(m.Trainer),
			Objectives:    core.CleanString(m.Objectives),
		})
	}
	return p
}

type NewMaquette struct {
	Version      string `json:"version" form:"version" validate:"required,notblank,max=50"`
	AcademicYear string `json:"annee_academique" form:"annee_academique" validate:"required,notblank,max=20"`
	ECTSCredits  int    `json:"credits_ects" form:"credits_ects" validate:"required,min=1"`
	Objectives   string `json:"objectifs" form:"objectifs"`
	Competences  string `json:"competences" form:"competences"`
}

func (nm *NewMaquette) Validate(validate *validator.Validate) error {
	nm.Version = core.CleanString(nm.Version)
	nm.AcademicYear = core.CleanString(nm.AcademicYear)
	nm.Objectives = core.CleanString(nm.Objectives)
	nm.Competences = core.CleanString(nm.Competences)
	return validate.Struct(nm)
}
