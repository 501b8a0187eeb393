package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/toure-cloud/institutdeveloppement/core"
	"github.com/toure-cloud/institutdeveloppement/core/activity"
)

const (
	activityColumns = `id, title, description, category, date, location, created_by, created_at, updated_at`
	imageColumns    = `id, activity_id, path, caption, uploaded_by, uploaded_at`
)

// dateless activities sort last in both directions
var activityOrderColumns = map[string]string{
	"title":      "title",
	"created_at": "created_at",
	"date":       "date IS NULL, date",
}

type activityRow struct {
	ID          int64       `db:"id"`
	Title       string      `db:"title"`
	Description string      `db:"description"`
	Category    string      `db:"category"`
	Date        null.Time   `db:"date"`
	Location    null.String `db:"location"`
	CreatedBy   string      `db:"created_by"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func toActivityRow(a activity.Activity) activityRow {
	return activityRow{
		ID:          a.ID,
		Title:       a.Title,
		Description: a.Description,
		Category:    string(a.Category),
		Date:        null.TimeFromPtr(a.Date),
		Location:    null.NewString(a.Location, a.Location != ""),
		CreatedBy:   a.CreatedBy,
		CreatedAt:   a.CreatedAt.UTC(),
		UpdatedAt:   a.UpdatedAt.UTC(),
	}
}

func (r activityRow) activity() activity.Activity {
	return activity.Activity{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Category:    activity.Category(r.Category),
		Date:        r.Date.Ptr(),
		Location:    r.Location.String,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		Images:      make([]activity.Image, 0),
	}
}

type imageRow struct {
	ID         int64     `db:"id"`
	ActivityID int64     `db:"activity_id"`
	Path       string    `db:"path"`
	Caption    string    `db:"caption"`
	UploadedBy string    `db:"uploaded_by"`
	UploadedAt time.Time `db:"uploaded_at"`
}

func (r imageRow) image() activity.Image {
	return activity.Image{
		ID:         r.ID,
		ActivityID: r.ActivityID,
		Path:       r.Path,
		Caption:    r.Caption,
		UploadedBy: r.UploadedBy,
		UploadedAt: r.UploadedAt,
	}
}

type activityRepository struct {
	repository
}

var _ activity.Repository = (*activityRepository)(nil)

func NewActivityRepository(exec core.DBExecutor) activity.Repository {
	return &activityRepository{repository{exec: exec}}
}

// attachImages loads the images of activities, newest first.
func (repo *activityRepository) attachImages(ctx context.Context, activities []activity.Activity, exec []core.DBExecutor) error {
	if len(activities) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(activities))
	index := make(map[int64]int, len(activities))
	for i, a := range activities {
		ids = append(ids, a.ID)
		index[a.ID] = i
	}

	var rows []imageRow
	q := `SELECT ` + imageColumns + ` FROM activity_image WHERE activity_id = ANY($1) ORDER BY uploaded_at DESC, id DESC`
	if err := repo.selekt(ctx, exec, &rows, q, pq.Int64Array(ids)); err != nil {
		return errors.Wrap(err, "querying activity images")
	}
	for _, r := range rows {
		i := index[r.ActivityID]
		activities[i].Images = append(activities[i].Images, r.image())
	}
	return nil
}

func (repo *activityRepository) CreateActivity(ctx context.Context, a activity.Activity, exec ...core.DBExecutor) (activity.Activity, error) {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	q := `INSERT INTO activity (title, description, category, date, location, created_by, created_at, updated_at)
		VALUES (:title, :description, :category, :date, :location, :created_by, :created_at, :updated_at)
		RETURNING ` + activityColumns
	query, args, err := named(q, toActivityRow(a))
	if err != nil {
		return activity.Activity{}, errors.Wrap(err, "inserting activity")
	}
	var row activityRow
	if err = repo.get(ctx, exec, &row, query, args...); err != nil {
		return activity.Activity{}, errors.Wrap(err, "inserting activity")
	}
	return row.activity(), nil
}

func (repo *activityRepository) UpdateActivity(ctx context.Context, a activity.Activity, exec ...core.DBExecutor) (activity.Activity, error) {
	a.UpdatedAt = time.Now().UTC()
	q := `UPDATE activity SET
			title = :title, description = :description, category = :category, date = :date,
			location = :location, updated_at = :updated_at
		WHERE id = :id
		RETURNING ` + activityColumns
	query, args, err := named(q, toActivityRow(a))
	if err != nil {
		return activity.Activity{}, errors.Wrap(err, "updating activity")
	}
	var row activityRow
	if err = repo.get(ctx, exec, &row, query, args...); err != nil {
		return activity.Activity{}, trapNoRowsErr(err, activity.ErrNotFound, "updating activity")
	}

	updated := []activity.Activity{row.activity()}
	if err = repo.attachImages(ctx, updated, exec); err != nil {
		return activity.Activity{}, err
	}
	return updated[0], nil
}

func (repo *activityRepository) DeleteActivity(ctx context.Context, id int64, exec ...core.DBExecutor) (activity.Activity, error) {
	a, err := repo.GetActivity(ctx, id, exec...)
	if err != nil {
		return activity.Activity{}, err
	}
	// images go with the activity (ON DELETE CASCADE)
	if _, err = repo.getExec(exec).ExecContext(ctx, `DELETE FROM activity WHERE id = $1`, id); err != nil {
		return activity.Activity{}, errors.Wrap(err, "deleting activity")
	}
	return a, nil
}

func (repo *activityRepository) GetActivity(ctx context.Context, id int64, exec ...core.DBExecutor) (activity.Activity, error) {
	var row activityRow
	if err := repo.get(ctx, exec, &row, `SELECT `+activityColumns+` FROM activity WHERE id = $1`, id); err != nil {
		return activity.Activity{}, trapNoRowsErr(err, activity.ErrNotFound, "finding activity")
	}
	found := []activity.Activity{row.activity()}
	if err := repo.attachImages(ctx, found, exec); err != nil {
		return activity.Activity{}, err
	}
	return found[0], nil
}

func (repo *activityRepository) QueryActivities(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]activity.Activity, error) {
	q := `SELECT ` + activityColumns + ` FROM activity ORDER BY ` +
		core.OrderByClause(ordering, activityOrderColumns, "created_at DESC") + `, created_at DESC`
	var rows []activityRow
	if err := repo.selekt(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying activities")
	}
	activities := make([]activity.Activity, 0, len(rows))
	for _, r := range rows {
		activities = append(activities, r.activity())
	}
	if err := repo.attachImages(ctx, activities, exec); err != nil {
		return nil, err
	}
	return activities, nil
}

func (repo *activityRepository) neighbour(ctx context.Context, exec []core.DBExecutor, query string, args ...interface{}) (*activity.Activity, error) {
	var row activityRow
	if err := repo.get(ctx, exec, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "finding neighbour activity")
	}
	a := row.activity()
	return &a, nil
}

func (repo *activityRepository) Neighbours(ctx context.Context, a activity.Activity, exec ...core.DBExecutor) (*activity.Activity, *activity.Activity, error) {
	base := `SELECT ` + activityColumns + ` FROM activity WHERE `
	var prevQ, nextQ string
	var arg interface{}
	if a.Date != nil {
		prevQ = base + `date < $1 ORDER BY date DESC, id DESC LIMIT 1`
		nextQ = base + `date > $1 ORDER BY date, id LIMIT 1`
		arg = *a.Date
	} else {
		prevQ = base + `id < $1 ORDER BY id DESC LIMIT 1`
		nextQ = base + `id > $1 ORDER BY id LIMIT 1`
		arg = a.ID
	}

	prev, err := repo.neighbour(ctx, exec, prevQ, arg)
	if err != nil {
		return nil, nil, err
	}
	next, err := repo.neighbour(ctx, exec, nextQ, arg)
	if err != nil {
		return nil, nil, err
	}
	return prev, next, nil
}

func (repo *activityRepository) AddImages(ctx context.Context, images []activity.Image, exec ...core.DBExecutor) ([]activity.Image, error) {
	saved := make([]activity.Image, 0, len(images))
	q := `INSERT INTO activity_image (activity_id, path, caption, uploaded_by, uploaded_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + imageColumns
	for _, img := range images {
		if img.UploadedAt.IsZero() {
			img.UploadedAt = time.Now().UTC()
		}
		var row imageRow
		err := repo.get(ctx, exec, &row, q, img.ActivityID, img.Path, img.Caption, img.UploadedBy, img.UploadedAt.UTC())
		if err != nil {
			return nil, errors.Wrap(err, "inserting activity image")
		}
		saved = append(saved, row.image())
	}
	return saved, nil
}

func (repo *activityRepository) DeleteImage(ctx context.Context, id int64, exec ...core.DBExecutor) (activity.Image, error) {
	var row imageRow
	if err := repo.get(ctx, exec, &row, `DELETE FROM activity_image WHERE id = $1 RETURNING `+imageColumns, id); err != nil {
		return activity.Image{}, trapNoRowsErr(err, activity.ErrImageNotFound, "deleting activity image")
	}
	return row.image(), nil
}
