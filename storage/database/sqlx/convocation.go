package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/toure-cloud/institutdeveloppement/core"
	"github.com/toure-cloud/institutdeveloppement/core/convocation"
)

const scheduleColumns = `id, formation, exam_date, exam_time, location, room, created_at, updated_at`

type scheduleRow struct {
	ID        int64       `db:"id"`
	Formation string      `db:"formation"`
	ExamDate  time.Time   `db:"exam_date"`
	ExamTime  string      `db:"exam_time"`
	Location  string      `db:"location"`
	Room      null.String `db:"room"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

func (r scheduleRow) schedule() convocation.Schedule {
	return convocation.Schedule{
		ID:        r.ID,
		Formation: r.Formation,
		ExamDate:  r.ExamDate,
		ExamTime:  r.ExamTime,
		Location:  r.Location,
		Room:      r.Room.String,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type scheduleRepository struct {
	repository
}

var _ convocation.Repository = (*scheduleRepository)(nil)

func NewScheduleRepository(exec core.DBExecutor) convocation.Repository {
	return &scheduleRepository{repository{exec: exec}}
}

func (repo *scheduleRepository) UpsertSchedule(ctx context.Context, s convocation.Schedule, exec ...core.DBExecutor) (convocation.Schedule, error) {
	now := time.Now().UTC()
	var row scheduleRow
	q := `INSERT INTO exam_schedule (formation, exam_date, exam_time, location, room, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (LOWER(formation)) DO UPDATE SET
			exam_date = EXCLUDED.exam_date,
			exam_time = EXCLUDED.exam_time,
			location = EXCLUDED.location,
			room = EXCLUDED.room,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + scheduleColumns
	err := repo.get(ctx, exec, &row, q, s.Formation, s.ExamDate, s.ExamTime, s.Location,
		null.NewString(s.Room, s.Room != ""), now)
	if err != nil {
		return convocation.Schedule{}, errors.Wrap(err, "upserting exam schedule")
	}
	return row.schedule(), nil
}

func (repo *scheduleRepository) GetSchedule(ctx context.Context, formation string, exec ...core.DBExecutor) (convocation.Schedule, error) {
	var row scheduleRow
	q := `SELECT ` + scheduleColumns + ` FROM exam_schedule WHERE LOWER(formation) = LOWER($1)`
	if err := repo.get(ctx, exec, &row, q, formation); err != nil {
		return convocation.Schedule{}, trapNoRowsErr(err, convocation.ErrNotFound, "finding exam schedule")
	}
	return row.schedule(), nil
}

func (repo *scheduleRepository) QuerySchedules(ctx context.Context, exec ...core.DBExecutor) ([]convocation.Schedule, error) {
	var rows []scheduleRow
	if err := repo.selekt(ctx, exec, &rows, `SELECT `+scheduleColumns+` FROM exam_schedule ORDER BY exam_date, formation`); err != nil {
		return nil, errors.Wrap(err, "querying exam schedules")
	}
	schedules := make([]convocation.Schedule, 0, len(rows))
	for _, r := range rows {
		schedules = append(schedules, r.schedule())
	}
	return schedules, nil
}

func (repo *scheduleRepository) DeleteSchedule(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM exam_schedule WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting exam schedule")
	}
	if n, err := res.RowsAffected(); err != nil {
		return errors.Wrap(err, "deleting exam schedule")
	} else if n == 0 {
		return convocation.ErrScheduleIDNotFound
	}
	return nil
}
