package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/toure-cloud/institutdeveloppement/core"
	"github.com/toure-cloud/institutdeveloppement/core/content"
)

type contentRepository struct {
	db *contentTables
}

var _ content.Repository = (*contentRepository)(nil)

func NewContentRepository(db *DB) content.Repository {
	return &contentRepository{db: db.content}
}

func (repo *contentRepository) nextPK() int64 {
	repo.db.pk++
	return repo.db.pk
}

func (repo *contentRepository) CreatePartner(_ context.Context, p content.Partner, _ ...core.DBExecutor) (content.Partner, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	p.ID = repo.nextPK()
	repo.db.partners[p.ID] = &p
	return p, nil
}

func (repo *contentRepository) QueryPartners(_ context.Context, _ ...core.DBExecutor) ([]content.Partner, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	partners := make([]content.Partner, 0, len(repo.db.partners))
	for _, p := range repo.db.partners {
		partners = append(partners, *p)
	}
	sort.Slice(partners, func(i, j int) bool {
		if partners[i].Category == partners[j].Category {
			return partners[i].Name < partners[j].Name
		}
		return partners[i].Category < partners[j].Category
	})
	return partners, nil
}

func (repo *contentRepository) SlugExists(_ context.Context, slug string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, tm := range repo.db.members {
		if tm.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (repo *contentRepository) CreateTeamMember(_ context.Context, tm content.TeamMember, _ ...core.DBExecutor) (content.TeamMember, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for i, exp := range tm.Expertises {
		id, ok := repo.db.expertises[exp.Name]
		if !ok {
			id = repo.nextPK()
			repo.db.expertises[exp.Name] = id
		}
		tm.Expertises[i].ID = id
	}
	tm.ID = repo.nextPK()
	repo.db.members[tm.ID] = &tm
	return tm, nil
}

func (repo *contentRepository) QueryTeamMembers(_ context.Context, _ ...core.DBExecutor) ([]content.TeamMember, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	members := make([]content.TeamMember, 0, len(repo.db.members))
	for _, tm := range repo.db.members {
		members = append(members, *tm)
	}
	sort.Slice(members, func(i, j int) bool {
		a, b := members[i], members[j]
		if a.DisplayOrder != b.DisplayOrder {
			return a.DisplayOrder < b.DisplayOrder
		}
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		return a.FirstName < b.FirstName
	})
	return members, nil
}

func (repo *contentRepository) GetTeamMember(_ context.Context, slug string, _ ...core.DBExecutor) (content.TeamMember, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, tm := range repo.db.members {
		if tm.Slug == slug {
			return *tm, nil
		}
	}
	return content.TeamMember{}, content.ErrTeamMemberNotFound
}

func (repo *contentRepository) CreateFormation(_ context.Context, f content.Formation, _ ...core.DBExecutor) (content.Formation, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, other := range repo.db.formations {
		if strings.EqualFold(other.Name, f.Name) {
			return content.Formation{}, content.ErrFormationExists
		}
	}
	f.ID = repo.nextPK()
	for i := range f.UEs {
		f.UEs[i].ID = repo.nextPK()
		f.UEs[i].FormationID = f.ID
		for j := range f.UEs[i].ECUEs {
			f.UEs[i].ECUEs[j].ID = repo.nextPK()
			f.UEs[i].ECUEs[j].UnitID = f.UEs[i].ID
		}
	}
	repo.db.formations[f.ID] = &f
	return f, nil
}

func (repo *contentRepository) QueryFormations(_ context.Context, _ ...core.DBExecutor) ([]content.Formation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	formations := make([]content.Formation, 0, len(repo.db.formations))
	for _, f := range repo.db.formations {
		formations = append(formations, *f)
	}
	sort.Slice(formations, func(i, j int) bool { return formations[i].Name < formations[j].Name })
	return formations, nil
}

func (repo *contentRepository) GetFormation(_ context.Context, name string, _ ...core.DBExecutor) (content.Formation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, f := range repo.db.formations {
		if strings.EqualFold(f.Name, name) {
			return *f, nil
		}
	}
	return content.Formation{}, content.ErrFormationNotFound
}

func (repo *contentRepository) CreateProgramme(_ context.Context, p content.Programme, _ ...core.DBExecutor) (content.Programme, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.formations[p.FormationID]; !ok {
		return content.Programme{}, content.ErrFormationNotFound
	}
	p.ID = repo.nextPK()
	for i := range p.Modules {
		p.Modules[i].ID = repo.nextPK()
	}
	repo.db.programmes[p.ID] = &p
	return p, nil
}

func (repo *contentRepository) GetProgramme(_ context.Context, formationID int64, _ ...core.DBExecutor) (content.Programme, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var latest *content.Programme
	for _, p := range repo.db.programmes {
		if p.FormationID == formationID && (latest == nil || p.ID > latest.ID) {
			latest = p
		}
	}
	if latest == nil {
		return content.Programme{}, content.ErrProgrammeNotFound
	}
	return *latest, nil
}

func (repo *contentRepository) CreateMaquette(_ context.Context, m content.Maquette, _ ...core.DBExecutor) (content.Maquette, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.formations[m.FormationID]; !ok {
		return content.Maquette{}, content.ErrFormationNotFound
	}
	m.ID = repo.nextPK()
	repo.db.maquettes[m.ID] = &m
	return m, nil
}

func (repo *contentRepository) GetMaquette(_ context.Context, formationID int64, _ ...core.DBExecutor) (content.Maquette, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var latest *content.Maquette
	for _, m := range repo.db.maquettes {
		if m.FormationID == formationID && (latest == nil || m.ID > latest.ID) {
			latest = m
		}
	}
	if latest == nil {
		return content.Maquette{}, content.ErrMaquetteNotFound
	}
	return *latest, nil
}
