package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/toure-cloud/institutdeveloppement/core"
	"github.com/toure-cloud/institutdeveloppement/core/enrollment"
)

type enrollmentRepository struct {
	db *enrollmentTable
}

var _ enrollment.Repository = (*enrollmentRepository)(nil)

func NewEnrollmentRepository(db *DB) enrollment.Repository {
	return &enrollmentRepository{db: db.enrollment}
}

// query returns a copy of the table, newest first.
func (repo *enrollmentRepository) query() []enrollment.Enrollment {
	enrollments := make([]enrollment.Enrollment, 0, len(repo.db.table))
	for _, e := range repo.db.table {
		enrollments = append(enrollments, *e)
	}
	sort.SliceStable(enrollments, func(i, j int) bool {
		if enrollments[i].CreatedAt.Equal(enrollments[j].CreatedAt) {
			return enrollments[i].ID > enrollments[j].ID
		}
		return enrollments[i].CreatedAt.After(enrollments[j].CreatedAt)
	})
	return enrollments
}

var enrollmentLess = map[string]func(a, b enrollment.Enrollment) bool{
	"nom":              func(a, b enrollment.Enrollment) bool { return a.LastName < b.LastName },
	"prenom":           func(a, b enrollment.Enrollment) bool { return a.FirstName < b.FirstName },
	"email":            func(a, b enrollment.Enrollment) bool { return a.Email < b.Email },
	"formation":        func(a, b enrollment.Enrollment) bool { return a.Formation < b.Formation },
	"statut":           func(a, b enrollment.Enrollment) bool { return a.Status < b.Status },
	"date_inscription": func(a, b enrollment.Enrollment) bool { return a.CreatedAt.Before(b.CreatedAt) },
}

func sortEnrollments(enrollments []enrollment.Enrollment, ordering []core.DBOrdering) {
	for i := len(ordering) - 1; i >= 0; i-- {
		ord := ordering[i]
		less, ok := enrollmentLess[ord.Field]
		if !ok {
			continue
		}
		sort.SliceStable(enrollments, func(i, j int) bool {
			if ord.Ascending {
				return less(enrollments[i], enrollments[j])
			}
			return less(enrollments[j], enrollments[i])
		})
	}
}

func (repo *enrollmentRepository) FindDuplicates(_ context.Context, filter enrollment.UniqueFilter, _ ...core.DBExecutor) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	found := make(map[string]bool)
	for _, e := range repo.db.table {
		if e.ID == filter.ExcludeID {
			continue
		}
		if filter.Email != "" && e.Email == filter.Email {
			found["email"] = true
		}
		if filter.CMU != "" && e.CMU == filter.CMU {
			found["cmu"] = true
		}
		if filter.CNI != "" && e.CNI == filter.CNI {
			found["cni"] = true
		}
		if filter.BacNumber != "" && e.BacNumber == filter.BacNumber {
			found["numero_bac"] = true
		}
		if filter.LastName != "" && e.LastName == filter.LastName && e.FirstName == filter.FirstName &&
			e.BirthDate.Equal(filter.BirthDate) {
			found["date_naissance"] = true
		}
	}

	var fields []string
	for _, fld := range []string{"email", "cmu", "cni", "numero_bac", "date_naissance"} {
		if found[fld] {
			fields = append(fields, fld)
		}
	}
	return fields, nil
}

func (repo *enrollmentRepository) CreateEnrollment(_ context.Context, e enrollment.Enrollment, _ ...core.DBExecutor) (enrollment.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, other := range repo.db.table {
		if (e.UserID != "" && other.UserID == e.UserID) || other.Email == e.Email || other.CMU == e.CMU || other.CNI == e.CNI ||
			other.BacNumber == e.BacNumber {
			return enrollment.Enrollment{}, enrollment.ErrDuplicate
		}
	}
	repo.db.pk++
	e.ID = repo.db.pk
	repo.db.table[e.ID] = &e
	return e, nil
}

func (repo *enrollmentRepository) GetEnrollment(_ context.Context, filter enrollment.GetFilter, _ ...core.DBExecutor) (enrollment.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if filter.ID != 0 {
		if e, ok := repo.db.table[filter.ID]; ok {
			return *e, nil
		}
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	for _, e := range repo.db.table {
		if (filter.UserID != "" && e.UserID == filter.UserID) || (filter.Email != "" && e.Email == filter.Email) {
			return *e, nil
		}
	}
	return enrollment.Enrollment{}, enrollment.ErrNotFound
}

func (repo *enrollmentRepository) QueryEnrollments(_ context.Context, filter *enrollment.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]enrollment.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	enrollments := repo.query()
	sortEnrollments(enrollments, ordering)
	if filter == nil {
		return enrollments, nil
	}

	search := strings.ToLower(filter.Search)
	res := make([]enrollment.Enrollment, 0, len(enrollments))
	for _, e := range enrollments {
		if search != "" &&
			!strings.Contains(strings.ToLower(e.LastName), search) &&
			!strings.Contains(strings.ToLower(e.FirstName), search) &&
			!strings.Contains(e.Email, search) {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.Formation != "" && !strings.EqualFold(e.Formation, filter.Formation) {
			continue
		}
		if !filter.CreatedFrom.IsZero() && e.CreatedAt.Before(filter.CreatedFrom) {
			continue
		}
		if !filter.CreatedTo.IsZero() && e.CreatedAt.After(filter.CreatedTo) {
			continue
		}
		res = append(res, e)
		if filter.Limit > 0 && len(res) == filter.Limit {
			break
		}
	}
	return res, nil
}

func (repo *enrollmentRepository) UpdateEnrollment(_ context.Context, e enrollment.Enrollment, _ ...core.DBExecutor) (enrollment.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[e.ID]; !ok {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	repo.db.table[e.ID] = &e
	return e, nil
}

func (repo *enrollmentRepository) UpdateStatus(_ context.Context, ids []int64, status enrollment.Status, from []enrollment.Status, _ ...core.DBExecutor) ([]enrollment.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	updated := make([]enrollment.Enrollment, 0, len(ids))
	for _, id := range ids {
		e, ok := repo.db.table[id]
		if !ok || !statusIn(e.Status, from) {
			continue
		}
		e.Status = status
		updated = append(updated, *e)
	}
	return updated, nil
}

func statusIn(status enrollment.Status, statuses []enrollment.Status) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (repo *enrollmentRepository) DeleteEnrollments(_ context.Context, ids []int64, _ ...core.DBExecutor) ([]enrollment.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	deleted := make([]enrollment.Enrollment, 0, len(ids))
	for _, id := range ids {
		if e, ok := repo.db.table[id]; ok {
			deleted = append(deleted, *e)
			delete(repo.db.table, id)
		}
	}
	return deleted, nil
}

func (repo *enrollmentRepository) CountByStatus(_ context.Context, _ ...core.DBExecutor) (enrollment.StatusCounts, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var counts enrollment.StatusCounts
	for _, e := range repo.db.table {
		counts.Total++
		switch e.Status {
		case enrollment.StatusPending:
			counts.Pending++
		case enrollment.StatusValidated:
			counts.Validated++
		case enrollment.StatusRejected:
			counts.Rejected++
		}
	}
	return counts, nil
}

func (repo *enrollmentRepository) CountCreatedSince(_ context.Context, since time.Time, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var n int
	for _, e := range repo.db.table {
		if !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (repo *enrollmentRepository) CountByFormation(_ context.Context, _ ...core.DBExecutor) ([]enrollment.FormationStat, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	counts := make(map[string]int)
	for _, e := range repo.db.table {
		if f := strings.TrimSpace(e.Formation); f != "" {
			counts[f]++
		}
	}
	stats := make([]enrollment.FormationStat, 0, len(counts))
	for f, n := range counts {
		stats = append(stats, enrollment.FormationStat{Formation: f, Count: n})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count == stats[j].Count {
			return stats[i].Formation < stats[j].Formation
		}
		return stats[i].Count > stats[j].Count
	})
	return stats, nil
}

func (repo *enrollmentRepository) Formations(_ context.Context, _ ...core.DBExecutor) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	seen := make(map[string]bool)
	formations := make([]string, 0)
	for _, e := range repo.db.table {
		if f := strings.TrimSpace(e.Formation); f != "" && !seen[f] {
			seen[f] = true
			formations = append(formations, f)
		}
	}
	sort.Strings(formations)
	return formations, nil
}
