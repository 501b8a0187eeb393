package content

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/toure-cloud/institutdeveloppement/core"
	"github.com/toure-cloud/institutdeveloppement/core/activity"
	"github.com/toure-cloud/institutdeveloppement/core/enrollment"
)

var (
	// errors
	ErrPageNotFound       = errors.New("Page introuvable")
	ErrTeamMemberNotFound = errors.New("team member not found")
	ErrFormationNotFound  = errors.New("formation not found")
	ErrFormationExists    = errors.New("Une formation avec ce nom existe déjà.")
	ErrProgrammeNotFound  = errors.New("programme not found")
	ErrMaquetteNotFound   = errors.New("maquette not found")

	imageTypes = []string{"image/jpeg", "image/png", "image/gif"}
	pdfTypes   = []string{"application/pdf"}
)

type (
	Repository interface {
		CreatePartner(ctx context.Context, p Partner, exec ...core.DBExecutor) (Partner, error)
		// QueryPartners returns partners ordered by category then name.
		QueryPartners(ctx context.Context, exec ...core.DBExecutor) ([]Partner, error)

		SlugExists(ctx context.Context, slug string, exec ...core.DBExecutor) (bool, error)
		// CreateTeamMember stores the member and links its expertises, creating the missing ones.
		CreateTeamMember(ctx context.Context, tm TeamMember, exec ...core.DBExecutor) (TeamMember, error)
		// QueryTeamMembers returns members ordered by display order, last name and first name.
		QueryTeamMembers(ctx context.Context, exec ...core.DBExecutor) ([]TeamMember, error)
		GetTeamMember(ctx context.Context, slug string, exec ...core.DBExecutor) (TeamMember, error)

		// CreateFormation stores the formation with its UEs and ECUEs. It returns ErrFormationExists on name clash.
		CreateFormation(ctx context.Context, f Formation, exec ...core.DBExecutor) (Formation, error)
		QueryFormations(ctx context.Context, exec ...core.DBExecutor) ([]Formation, error)
		// GetFormation does a case-insensitive match on name.
		GetFormation(ctx context.Context, name string, exec ...core.DBExecutor) (Formation, error)

		CreateProgramme(ctx context.Context, p Programme, exec ...core.DBExecutor) (Programme, error)
		// GetProgramme returns the latest programme of the formation.
		GetProgramme(ctx context.Context, formationID int64, exec ...core.DBExecutor) (Programme, error)
		CreateMaquette(ctx context.Context, m Maquette, exec ...core.DBExecutor) (Maquette, error)
		// GetMaquette returns the latest maquette of the formation.
		GetMaquette(ctx context.Context, formationID int64, exec ...core.DBExecutor) (Maquette, error)
	}

	// ActivityLister is the part of activity.Service the public pages need.
	ActivityLister interface {
		Query(ctx context.Context, ordering []core.DBOrdering) ([]activity.Activity, error)
	}

	// EnrollmentFinder is the part of enrollment.Service the public pages need.
	EnrollmentFinder interface {
		GetByUser(ctx context.Context, userID string) (enrollment.Enrollment, error)
	}

	Service interface {
		Home(ctx context.Context) (Home, error)
		// Page returns the named public page. viewerID is the logged in user, if any.
		Page(ctx context.Context, name, viewerID string) (Page, error)
		TeamMemberBySlug(ctx context.Context, slug string) (TeamMember, error)
		Formations(ctx context.Context) ([]Formation, error)
		FormationByName(ctx context.Context, name string) (Formation, error)
		ProgrammeFor(ctx context.Context, formation string) (Programme, error)
		MaquetteFor(ctx context.Context, formation string) (Maquette, error)
		CreatePartner(ctx context.Context, np NewPartner, logo *core.File) (Partner, error)
		CreateTeamMember(ctx context.Context, ntm NewTeamMember, photo *core.File) (TeamMember, error)
		CreateFormation(ctx context.Context, nf NewFormation) (Formation, error)
		CreateProgramme(ctx context.Context, formation string, np NewProgramme) (Programme, error)
		CreateMaquette(ctx context.Context, formation string, nm NewMaquette, file *core.File) (Maquette, error)
	}

	service struct {
		repo        Repository
		transactor  core.Transactor
		storage     core.FileStorage
		activities  ActivityLister
		enrollments EnrollmentFinder
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, transactor core.Transactor, storage core.FileStorage, activities ActivityLister, enrollments EnrollmentFinder) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(transactor, "transactor"),
		vala.IsNotNil(storage, "storage"),
		vala.IsNotNil(activities, "activities"),
		vala.IsNotNil(enrollments, "enrollments"),
	).CheckAndPanic()

	return &service{
		repo:        repo,
		transactor:  transactor,
		storage:     storage,
		activities:  activities,
		enrollments: enrollments,
	}
}

func (svc *service) url(p string) string {
	if p == "" {
		return ""
	}
	return svc.storage.URL(p)
}

func (svc *service) teamMembers(ctx context.Context) ([]TeamMember, error) {
	members, err := svc.repo.QueryTeamMembers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range members {
		members[i].PhotoURL = svc.url(members[i].Photo)
	}
	return members, nil
}

func (svc *service) Home(ctx context.Context) (Home, error) {
	members, err := svc.teamMembers(ctx)
	if err != nil {
		return Home{}, errors.Wrap(err, "querying team members")
	}
	partners, err := svc.repo.QueryPartners(ctx)
	if err != nil {
		return Home{}, errors.Wrap(err, "querying partners")
	}
	for i := range partners {
		partners[i].LogoURL = svc.url(partners[i].Logo)
	}
	return Home{Slides: Slides, TeamMembers: members, Partners: GroupPartners(partners)}, nil
}

func (svc *service) Page(ctx context.Context, name, viewerID string) (Page, error) {
	title, ok := PageTitle(name)
	if !ok {
		return Page{}, ErrPageNotFound
	}
	page := Page{Name: name, Title: title}

	switch name {
	case PageFormation:
		formations, err := svc.Formations(ctx)
		if err != nil {
			return Page{}, err
		}
		page.Data = map[string]interface{}{"formations": formations}
	case PageActivity:
		activities, err := svc.activities.Query(ctx, []core.DBOrdering{{Field: "date"}})
		if err != nil {
			return Page{}, err
		}
		page.Data = map[string]interface{}{"activities": activities}
	case PagePresentation:
		data := map[string]interface{}{"year": time.Now().Year(), "inscription": nil}
		if viewerID != "" {
			e, err := svc.enrollments.GetByUser(ctx, viewerID)
			switch {
			case err == nil:
				data["inscription"] = e
			case errors.Cause(err) != enrollment.ErrNotFound:
				return Page{}, err
			}
		}
		page.Data = data
	}
	return page, nil
}

func (svc *service) TeamMemberBySlug(ctx context.Context, slug string) (TeamMember, error) {
	tm, err := svc.repo.GetTeamMember(ctx, core.CleanString(slug, true /* lower */))
	if err != nil {
		return TeamMember{}, err
	}
	tm.PhotoURL = svc.url(tm.Photo)
	return tm, nil
}

func (svc *service) Formations(ctx context.Context) ([]Formation, error) {
	return svc.repo.QueryFormations(ctx)
}

func (svc *service) FormationByName(ctx context.Context, name string) (Formation, error) {
	return svc.repo.GetFormation(ctx, core.CleanString(name))
}

func (svc *service) ProgrammeFor(ctx context.Context, formation string) (Programme, error) {
	f, err := svc.FormationByName(ctx, formation)
	if err != nil {
		return Programme{}, err
	}
	return svc.repo.GetProgramme(ctx, f.ID)
}

func (svc *service) MaquetteFor(ctx context.Context, formation string) (Maquette, error) {
	f, err := svc.FormationByName(ctx, formation)
	if err != nil {
		return Maquette{}, err
	}
	m, err := svc.repo.GetMaquette(ctx, f.ID)
	if err != nil {
		return Maquette{}, err
	}
	m.FileURL = svc.url(m.File)
	return m, nil
}

// save stores f under dir when its sniffed content type is one of allowed.
func (svc *service) save(ctx context.Context, dir, field string, f *core.File, allowed []string) (string, error) {
	if f == nil || f.Content == nil {
		return "", nil
	}
	ok := false
	for _, ct := range allowed {
		ok = ok || f.ContentType == ct
	}
	if !ok || f.Ext() == "" {
		return "", core.NewFieldError(field, fmt.Sprintf("Le format %s n'est pas supporté.", f.ContentType))
	}
	return svc.storage.Save(ctx, path.Join(dir, f.StoredName()), f.Content)
}

func (svc *service) CreatePartner(ctx context.Context, np NewPartner, logo *core.File) (Partner, error) {
	p := Partner{Name: np.Name, Category: np.Category, Description: np.Description, Website: np.Website}
	var err error
	if p.Logo, err = svc.save(ctx, "partenaires", "logo", logo, imageTypes); err != nil {
		return Partner{}, errors.Wrap(err, "saving logo")
	}
	if p, err = svc.repo.CreatePartner(ctx, p); err != nil {
		return Partner{}, err
	}
	p.LogoURL = svc.url(p.Logo)
	return p, nil
}

// uniqueSlug appends `-1`, `-2`, ... to the slug of `first-last` until it is free.
func (svc *service) uniqueSlug(ctx context.Context, first, last string, exec ...core.DBExecutor) (string, error) {
	base := Slugify(first + "-" + last)
	slug := base
	for i := 1; ; i++ {
		exists, err := svc.repo.SlugExists(ctx, slug, exec...)
		if err != nil {
			return "", errors.Wrap(err, "checking slug")
		}
		if !exists {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

func (svc *service) CreateTeamMember(ctx context.Context, ntm NewTeamMember, photo *core.File) (TeamMember, error) {
	now := time.Now().UTC()
	tm := TeamMember{
		FirstName:       ntm.FirstName,
		LastName:        ntm.LastName,
		Title:           ntm.Title,
		Bio:             ntm.Bio,
		Category:        ntm.Category,
		LinkedinURL:     ntm.LinkedinURL,
		ResearchgateURL: ntm.ResearchgateURL,
		DisplayOrder:    ntm.DisplayOrder,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, name := range ntm.Expertises {
		tm.Expertises = append(tm.Expertises, Expertise{Name: name})
	}

	var err error
	dir := path.Join("team", now.Format("2006/01/02"))
	if tm.Photo, err = svc.save(ctx, dir, "photo", photo, imageTypes); err != nil {
		return TeamMember{}, errors.Wrap(err, "saving photo")
	}

	err = svc.transactor.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if tm.Slug, err = svc.uniqueSlug(ctx, tm.FirstName, tm.LastName, core.Execs(exec)...); err != nil {
			return err
		}
		tm, err = svc.repo.CreateTeamMember(ctx, tm, core.Execs(exec)...)
		return err
	})
	if err != nil {
		if tm.Photo != "" {
			_ = svc.storage.Delete(ctx, tm.Photo)
		}
		return TeamMember{}, err
	}
	tm.PhotoURL = svc.url(tm.Photo)
	return tm, nil
}

func (svc *service) CreateFormation(ctx context.Context, nf NewFormation) (Formation, error) {
	var f Formation
	err := svc.transactor.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		f, err = svc.repo.CreateFormation(ctx, nf.Formation(), core.Execs(exec)...)
		return err
	})
	if errors.Cause(err) == ErrFormationExists {
		return Formation{}, core.NewValidationError(err, core.FieldError{Field: "nom", Error: ErrFormationExists.Error()})
	}
	return f, err
}

func (svc *service) CreateProgramme(ctx context.Context, formation string, np NewProgramme) (Programme, error) {
	f, err := svc.FormationByName(ctx, formation)
	if err != nil {
		return Programme{}, err
	}
	var p Programme
	err = svc.transactor.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		p, err = svc.repo.CreateProgramme(ctx, np.Programme(f.ID), core.Execs(exec)...)
		return err
	})
	return p, err
}

func (svc *service) CreateMaquette(ctx context.Context, formation string, nm NewMaquette, file *core.File) (Maquette, error) {
	f, err := svc.FormationByName(ctx, formation)
	if err != nil {
		return Maquette{}, err
	}
	m := Maquette{
		FormationID:  f.ID,
		Version:      nm.Version,
		AcademicYear: nm.AcademicYear,
		ECTSCredits:  nm.ECTSCredits,
		Objectives:   nm.Objectives,
		Competences:  nm.Competences,
	}
	if m.File, err = svc.save(ctx, "maquettes", "fichier", file, pdfTypes); err != nil {
		return Maquette{}, errors.Wrap(err, "saving file")
	}
	if m, err = svc.repo.CreateMaquette(ctx, m); err != nil {
		return Maquette{}, err
	}
	m.FileURL = svc.url(m.File)
	return m, nil
}
