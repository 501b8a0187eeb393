package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/toure-cloud/institutdeveloppement/core"
	"github.com/toure-cloud/institutdeveloppement/core/convocation"
)

type scheduleRepository struct {
	db *scheduleTable
}

var _ convocation.Repository = (*scheduleRepository)(nil)

func NewScheduleRepository(db *DB) convocation.Repository {
	return &scheduleRepository{db: db.convocation}
}

func (repo *scheduleRepository) UpsertSchedule(_ context.Context, s convocation.Schedule, _ ...core.DBExecutor) (convocation.Schedule, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, other := range repo.db.table {
		if strings.EqualFold(other.Formation, s.Formation) {
			s.ID = other.ID
			s.CreatedAt = other.CreatedAt
			repo.db.table[s.ID] = &s
			return s, nil
		}
	}
	repo.db.pk++
	s.ID = repo.db.pk
	repo.db.table[s.ID] = &s
	return s, nil
}

func (repo *scheduleRepository) GetSchedule(_ context.Context, formation string, _ ...core.DBExecutor) (convocation.Schedule, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, s := range repo.db.table {
		if strings.EqualFold(s.Formation, formation) {
			return *s, nil
		}
	}
	return convocation.Schedule{}, convocation.ErrNotFound
}

func (repo *scheduleRepository) QuerySchedules(_ context.Context, _ ...core.DBExecutor) ([]convocation.Schedule, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	schedules := make([]convocation.Schedule, 0, len(repo.db.table))
	for _, s := range repo.db.table {
		schedules = append(schedules, *s)
	}
	sort.Slice(schedules, func(i, j int) bool { return schedules[i].ExamDate.Before(schedules[j].ExamDate) })
	return schedules, nil
}

func (repo *scheduleRepository) DeleteSchedule(_ context.Context, id int64, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return convocation.ErrScheduleIDNotFound
	}
	delete(repo.db.table, id)
	return nil
}
