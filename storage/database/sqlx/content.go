package sqlxrepos

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/toure-cloud/institutdeveloppement/core"
	"github.com/toure-cloud/institutdeveloppement/core/content"
)

const (
	partnerColumns    = `id, name, logo, category, description, website`
	teamMemberColumns = `id, first_name, last_name, slug, title, bio, photo, category, linkedin_url, researchgate_url,
		display_order, created_at, updated_at`
	formationColumns = `id, name, duration_hours, cost`
	programmeColumns = `id, formation_id, total_hours, start_date, end_date, module_count`
	maquetteColumns  = `id, formation_id, version, academic_year, ects_credits, objectives, competences, file`
)

type partnerRow struct {
	ID          int64  `db:"id"`
	Name        string `db:"name"`
	Logo        string `db:"logo"`
	Category    string `db:"category"`
	Description string `db:"description"`
	Website     string `db:"website"`
}

func (r partnerRow) partner() content.Partner {
	return content.Partner{
		ID:          r.ID,
		Name:        r.Name,
		Logo:        r.Logo,
		Category:    content.PartnerCategory(r.Category),
		Description: r.Description,
		Website:     r.Website,
	}
}

type teamMemberRow struct {
	ID              int64       `db:"id"`
	FirstName       string      `db:"first_name"`
	LastName        string      `db:"last_name"`
	Slug            string      `db:"slug"`
	Title           string      `db:"title"`
	Bio             string      `db:"bio"`
	Photo           string      `db:"photo"`
	Category        string      `db:"category"`
	LinkedinURL     null.String `db:"linkedin_url"`
	ResearchgateURL null.String `db:"researchgate_url"`
	DisplayOrder    int         `db:"display_order"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

func (r teamMemberRow) teamMember() content.TeamMember {
	return content.TeamMember{
		ID:              r.ID,
		FirstName:       r.FirstName,
		LastName:        r.LastName,
		Slug:            r.Slug,
		Title:           r.Title,
		Bio:             r.Bio,
		Photo:           r.Photo,
		Category:        content.TeamCategory(r.Category),
		Expertises:      make([]content.Expertise, 0),
		LinkedinURL:     r.LinkedinURL.String,
		ResearchgateURL: r.ResearchgateURL.String,
		DisplayOrder:    r.DisplayOrder,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

type formationRow struct {
	ID            int64   `db:"id"`
	Name          string  `db:"name"`
	DurationHours int     `db:"duration_hours"`
	Cost          float64 `db:"cost"`
}

type programmeRow struct {
	ID          int64     `db:"id"`
	FormationID int64     `db:"formation_id"`
	TotalHours  int       `db:"total_hours"`
	StartDate   time.Time `db:"start_date"`
	EndDate     time.Time `db:"end_date"`
	ModuleCount int       `db:"module_count"`
}

type maquetteRow struct {
	ID           int64       `db:"id"`
	FormationID  int64       `db:"formation_id"`
	Version      string      `db:"version"`
	AcademicYear string      `db:"academic_year"`
	ECTSCredits  int         `db:"ects_credits"`
	Objectives   string      `db:"objectives"`
	Competences  string      `db:"competences"`
	File         null.String `db:"file"`
}

func (r maquetteRow) maquette() content.Maquette {
	return content.Maquette{
		ID:           r.ID,
		FormationID:  r.FormationID,
		Version:      r.Version,
		AcademicYear: r.AcademicYear,
		ECTSCredits:  r.ECTSCredits,
		Objectives:   r.Objectives,
		Competences:  r.Competences,
		File:         r.File.String,
	}
}

type contentRepository struct {
	repository
}

var _ content.Repository = (*contentRepository)(nil)

func NewContentRepository(exec core.DBExecutor) content.Repository {
	return &contentRepository{repository{exec: exec}}
}

func (repo *contentRepository) CreatePartner(ctx context.Context, p content.Partner, exec ...core.DBExecutor) (content.Partner, error) {
	var row partnerRow
	q := `INSERT INTO partner (name, logo, category, description, website) VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + partnerColumns
	if err := repo.get(ctx, exec, &row, q, p.Name, p.Logo, string(p.Category), p.Description, p.Website); err != nil {
		return content.Partner{}, errors.Wrap(err, "inserting partner")
	}
	return row.partner(), nil
}

func (repo *contentRepository) QueryPartners(ctx context.Context, exec ...core.DBExecutor) ([]content.Partner, error) {
	var rows []partnerRow
	if err := repo.selekt(ctx, exec, &rows, `SELECT `+partnerColumns+` FROM partner ORDER BY category, name`); err != nil {
		return nil, errors.Wrap(err, "querying partners")
	}
	partners := make([]content.Partner, 0, len(rows))
	for _, r := range rows {
		partners = append(partners, r.partner())
	}
	return partners, nil
}

func (repo *contentRepository) SlugExists(ctx context.Context, slug string, exec ...core.DBExecutor) (bool, error) {
	var found bool
	if err := repo.get(ctx, exec, &found, `SELECT EXISTS (SELECT 1 FROM team_member WHERE slug = $1)`, slug); err != nil {
		return false, errors.Wrap(err, "checking team member slug")
	}
	return found, nil
}

func (repo *contentRepository) CreateTeamMember(ctx context.Context, tm content.TeamMember, exec ...core.DBExecutor) (content.TeamMember, error) {
	now := time.Now().UTC()
	var row teamMemberRow
	q := `INSERT INTO team_member (
			first_name, last_name, slug, title, bio, photo, category, linkedin_url, researchgate_url,
			display_order, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		RETURNING ` + teamMemberColumns
	err := repo.get(ctx, exec, &row, q,
		tm.FirstName, tm.LastName, tm.Slug, tm.Title, tm.Bio, tm.Photo, string(tm.Category),
		null.NewString(tm.LinkedinURL, tm.LinkedinURL != ""),
		null.NewString(tm.ResearchgateURL, tm.ResearchgateURL != ""),
		tm.DisplayOrder, now)
	if err != nil {
		return content.TeamMember{}, errors.Wrap(err, "inserting team member")
	}
	created := row.teamMember()

	for _, exp := range tm.Expertises {
		var id int64
		// the no-op update makes RETURNING yield the existing row
		q := `INSERT INTO expertise (name) VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`
		if err = repo.get(ctx, exec, &id, q, exp.Name); err != nil {
			return content.TeamMember{}, errors.Wrap(err, "upserting expertise")
		}
		q = `INSERT INTO team_member_expertise (team_member_id, expertise_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
		if _, err = repo.getExec(exec).ExecContext(ctx, q, created.ID, id); err != nil {
			return content.TeamMember{}, errors.Wrap(err, "linking expertise")
		}
		created.Expertises = append(created.Expertises, content.Expertise{ID: id, Name: exp.Name})
	}
	return created, nil
}

// attachExpertises loads the expertises of members, by name.
func (repo *contentRepository) attachExpertises(ctx context.Context, members []content.TeamMember, exec []core.DBExecutor) error {
	if len(members) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(members))
	index := make(map[int64]int, len(members))
	for i, tm := range members {
		ids = append(ids, tm.ID)
		index[tm.ID] = i
	}

	var rows []struct {
		MemberID int64  `db:"team_member_id"`
		ID       int64  `db:"id"`
		Name     string `db:"name"`
	}
	q := `SELECT tme.team_member_id, e.id, e.name
		FROM team_member_expertise tme JOIN expertise e ON e.id = tme.expertise_id
		WHERE tme.team_member_id = ANY($1)
		ORDER BY e.name`
	if err := repo.selekt(ctx, exec, &rows, q, pq.Int64Array(ids)); err != nil {
		return errors.Wrap(err, "querying expertises")
	}
	for _, r := range rows {
		i := index[r.MemberID]
		members[i].Expertises = append(members[i].Expertises, content.Expertise{ID: r.ID, Name: r.Name})
	}
	return nil
}

func (repo *contentRepository) QueryTeamMembers(ctx context.Context, exec ...core.DBExecutor) ([]content.TeamMember, error) {
	var rows []teamMemberRow
	q := `SELECT ` + teamMemberColumns + ` FROM team_member ORDER BY display_order, last_name, first_name`
	if err := repo.selekt(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying team members")
	}
	members := make([]content.TeamMember, 0, len(rows))
	for _, r := range rows {
		members = append(members, r.teamMember())
	}
	if err := repo.attachExpertises(ctx, members, exec); err != nil {
		return nil, err
	}
	return members, nil
}

func (repo *contentRepository) GetTeamMember(ctx context.Context, slug string, exec ...core.DBExecutor) (content.TeamMember, error) {
	var row teamMemberRow
	if err := repo.get(ctx, exec, &row, `SELECT `+teamMemberColumns+` FROM team_member WHERE slug = $1`, slug); err != nil {
		return content.TeamMember{}, trapNoRowsErr(err, content.ErrTeamMemberNotFound, "finding team member")
	}
	members := []content.TeamMember{row.teamMember()}
	if err := repo.attachExpertises(ctx, members, exec); err != nil {
		return content.TeamMember{}, err
	}
	return members[0], nil
}

func (repo *contentRepository) CreateFormation(ctx context.Context, f content.Formation, exec ...core.DBExecutor) (content.Formation, error) {
	var row formationRow
	q := `INSERT INTO formation (name, duration_hours, cost) VALUES ($1, $2, $3) RETURNING ` + formationColumns
	if err := repo.get(ctx, exec, &row, q, f.Name, f.DurationHours, f.Cost); err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return content.Formation{}, content.ErrFormationExists
		}
		return content.Formation{}, errors.Wrap(err, "inserting formation")
	}
	f.ID = row.ID

	for i := range f.UEs {
		ue := &f.UEs[i]
		q := `INSERT INTO teaching_unit (formation_id, name, code) VALUES ($1, $2, $3) RETURNING id`
		if err := repo.get(ctx, exec, &ue.ID, q, f.ID, ue.Name, ue.Code); err != nil {
			return content.Formation{}, errors.Wrap(err, "inserting UE")
		}
		ue.FormationID = f.ID
		for j := range ue.ECUEs {
			ecue := &ue.ECUEs[j]
			q := `INSERT INTO teaching_element (unit_id, name, code) VALUES ($1, $2, $3) RETURNING id`
			if err := repo.get(ctx, exec, &ecue.ID, q, ue.ID, ecue.Name, ecue.Code); err != nil {
				return content.Formation{}, errors.Wrap(err, "inserting ECUE")
			}
			ecue.UnitID = ue.ID
		}
	}
	return f, nil
}

// attachUnits loads the UEs and ECUEs of formations.
func (repo *contentRepository) attachUnits(ctx context.Context, formations []content.Formation, exec []core.DBExecutor) error {
	if len(formations) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(formations))
	index := make(map[int64]int, len(formations))
	for i, f := range formations {
		ids = append(ids, f.ID)
		index[f.ID] = i
	}

	var units []struct {
		ID          int64  `db:"id"`
		FormationID int64  `db:"formation_id"`
		Name        string `db:"name"`
		Code        string `db:"code"`
	}
	q := `SELECT id, formation_id, name, code FROM teaching_unit WHERE formation_id = ANY($1) ORDER BY id`
	if err := repo.selekt(ctx, exec, &units, q, pq.Int64Array(ids)); err != nil {
		return errors.Wrap(err, "querying UEs")
	}
	var elements []struct {
		ID     int64  `db:"id"`
		UnitID int64  `db:"unit_id"`
		Name   string `db:"name"`
		Code   string `db:"code"`
	}
	q = `SELECT te.id, te.unit_id, te.name, te.code
		FROM teaching_element te JOIN teaching_unit tu ON tu.id = te.unit_id
		WHERE tu.formation_id = ANY($1)
		ORDER BY te.id`
	if err := repo.selekt(ctx, exec, &elements, q, pq.Int64Array(ids)); err != nil {
		return errors.Wrap(err, "querying ECUEs")
	}

	ecues := make(map[int64][]content.ECUE)
	for _, el := range elements {
		ecues[el.UnitID] = append(ecues[el.UnitID], content.ECUE{ID: el.ID, UnitID: el.UnitID, Name: el.Name, Code: el.Code})
	}
	for _, u := range units {
		ue := content.UE{ID: u.ID, FormationID: u.FormationID, Name: u.Name, Code: u.Code, ECUEs: ecues[u.ID]}
		if ue.ECUEs == nil {
			ue.ECUEs = make([]content.ECUE, 0)
		}
		i := index[u.FormationID]
		formations[i].UEs = append(formations[i].UEs, ue)
	}
	return nil
}

func (repo *contentRepository) formations(ctx context.Context, exec []core.DBExecutor, query string, args ...interface{}) ([]content.Formation, error) {
	var rows []formationRow
	if err := repo.selekt(ctx, exec, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying formations")
	}
	formations := make([]content.Formation, 0, len(rows))
	for _, r := range rows {
		formations = append(formations, content.Formation{
			ID:            r.ID,
			Name:          r.Name,
			DurationHours: r.DurationHours,
			Cost:          r.Cost,
			UEs:           make([]content.UE, 0),
		})
	}
	if err := repo.attachUnits(ctx, formations, exec); err != nil {
		return nil, err
	}
	return formations, nil
}

func (repo *contentRepository) QueryFormations(ctx context.Context, exec ...core.DBExecutor) ([]content.Formation, error) {
	return repo.formations(ctx, exec, `SELECT `+formationColumns+` FROM formation ORDER BY name`)
}

func (repo *contentRepository) GetFormation(ctx context.Context, name string, exec ...core.DBExecutor) (content.Formation, error) {
	formations, err := repo.formations(ctx, exec, `SELECT `+formationColumns+` FROM formation WHERE LOWER(name) = LOWER($1)`, name)
	if err != nil {
		return content.Formation{}, err
	}
	if len(formations) == 0 {
		return content.Formation{}, content.ErrFormationNotFound
	}
	return formations[0], nil
}

func (repo *contentRepository) CreateProgramme(ctx context.Context, p content.Programme, exec ...core.DBExecutor) (content.Programme, error) {
	q := `INSERT INTO programme (formation_id, total_hours, start_date, end_date, module_count)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := repo.get(ctx, exec, &p.ID, q, p.FormationID, p.TotalHours, p.StartDate, p.EndDate, p.ModuleCount); err != nil {
		if isForeignKeyViolation(err) {
			return content.Programme{}, content.ErrFormationNotFound
		}
		return content.Programme{}, errors.Wrap(err, "inserting programme")
	}
	for i := range p.Modules {
		m := &p.Modules[i]
		q := `INSERT INTO programme_module (programme_id, name, duration_hours, trainer, objectives)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`
		if err := repo.get(ctx, exec, &m.ID, q, p.ID, m.Name, m.DurationHours, m.Trainer, m.Objectives); err != nil {
			return content.Programme{}, errors.Wrap(err, "inserting programme module")
		}
	}
	return p, nil
}

func (repo *contentRepository) GetProgramme(ctx context.Context, formationID int64, exec ...core.DBExecutor) (content.Programme, error) {
	var row programmeRow
	q := `SELECT ` + programmeColumns + ` FROM programme WHERE formation_id = $1 ORDER BY id DESC LIMIT 1`
	if err := repo.get(ctx, exec, &row, q, formationID); err != nil {
		return content.Programme{}, trapNoRowsErr(err, content.ErrProgrammeNotFound, "finding programme")
	}

	p := content.Programme{
		ID:          row.ID,
		FormationID: row.FormationID,
		TotalHours:  row.TotalHours,
		StartDate:   row.StartDate,
		EndDate:     row.EndDate,
		ModuleCount: row.ModuleCount,
		Modules:     make([]content.ProgrammeModule, 0),
	}
	q = `SELECT id, name, duration_hours, trainer, objectives FROM programme_module WHERE programme_id = $1 ORDER BY id`
	rows, err := repo.getExec(exec).QueryxContext(ctx, q, p.ID)
	if err != nil {
		return content.Programme{}, errors.Wrap(err, "querying programme modules")
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var m content.ProgrammeModule
		if err = rows.Scan(&m.ID, &m.Name, &m.DurationHours, &m.Trainer, &m.Objectives); err != nil {
			return content.Programme{}, errors.Wrap(err, "scanning programme module")
		}
		p.Modules = append(p.Modules, m)
	}
	return p, errors.Wrap(rows.Err(), "querying programme modules")
}

func (repo *contentRepository) CreateMaquette(ctx context.Context, m content.Maquette, exec ...core.DBExecutor) (content.Maquette, error) {
	var row maquetteRow
	q := `INSERT INTO maquette (formation_id, version, academic_year, ects_credits, objectives, competences, file)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + maquetteColumns
	err := repo.get(ctx, exec, &row, q, m.FormationID, m.Version, m.AcademicYear, m.ECTSCredits, m.Objectives,
		m.Competences, null.NewString(m.File, m.File != ""))
	if err != nil {
		if isForeignKeyViolation(err) {
			return content.Maquette{}, content.ErrFormationNotFound
		}
		return content.Maquette{}, errors.Wrap(err, "inserting maquette")
	}
	return row.maquette(), nil
}

func (repo *contentRepository) GetMaquette(ctx context.Context, formationID int64, exec ...core.DBExecutor) (content.Maquette, error) {
	var row maquetteRow
	q := `SELECT ` + maquetteColumns + ` FROM maquette WHERE formation_id = $1 ORDER BY id DESC LIMIT 1`
	if err := repo.get(ctx, exec, &row, q, formationID); err != nil {
		return content.Maquette{}, trapNoRowsErr(err, content.ErrMaquetteNotFound, "finding maquette")
	}
	return row.maquette(), nil
}
