package sqlxrepos

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/toure-cloud/institutdeveloppement/core"
	"github.com/toure-cloud/institutdeveloppement/core/enrollment"
)

const enrollmentColumns = `id, user_id, last_name, first_name, sex, birth_date, birth_place, email, email_confirmation,
	phone, cmu, cni, bac_series, bac_year, bac_mention, bac_number, bac_school, licence, licence_year,
	photo, bac_document, diploma, birth_certificate, formation, status, created_at`

var enrollmentOrderColumns = map[string]string{
	"nom":              "last_name",
	"prenom":           "first_name",
	"email":            "email",
	"formation":        "formation",
	"statut":           "status",
	"date_inscription": "created_at",
}

type enrollmentRow struct {
	ID                int64     `db:"id"`
	UserID            string    `db:"user_id"`
	LastName          string    `db:"last_name"`
	FirstName         string    `db:"first_name"`
	Sex               string    `db:"sex"`
	BirthDate         time.Time `db:"birth_date"`
	BirthPlace        string    `db:"birth_place"`
	Email             string    `db:"email"`
	EmailConfirmation string    `db:"email_confirmation"`
	Phone             string    `db:"phone"`
	CMU               string    `db:"cmu"`
	CNI               string    `db:"cni"`
	BacSeries         string    `db:"bac_series"`
	BacYear           int       `db:"bac_year"`
	BacMention        string    `db:"bac_mention"`
	BacNumber         string    `db:"bac_number"`
	BacSchool         string    `db:"bac_school"`
	Licence           string    `db:"licence"`
	LicenceYear       int       `db:"licence_year"`
	Photo             string    `db:"photo"`
	BacDocument       string    `db:"bac_document"`
	Diploma           string    `db:"diploma"`
	BirthCertificate  string    `db:"birth_certificate"`
	Formation         string    `db:"formation"`
	Status            string    `db:"status"`
	CreatedAt         time.Time `db:"created_at"`
}

func toEnrollmentRow(e enrollment.Enrollment) enrollmentRow {
	return enrollmentRow{
		ID:                e.ID,
		UserID:            e.UserID,
		LastName:          e.LastName,
		FirstName:         e.FirstName,
		Sex:               e.Sex,
		BirthDate:         e.BirthDate,
		BirthPlace:        e.BirthPlace,
		Email:             e.Email,
		EmailConfirmation: e.EmailConfirmation,
		Phone:             e.Phone,
		CMU:               e.CMU,
		CNI:               e.CNI,
		BacSeries:         e.BacSeries,
		BacYear:           e.BacYear,
		BacMention:        e.BacMention,
		BacNumber:         e.BacNumber,
		BacSchool:         e.BacSchool,
		Licence:           e.Licence,
		LicenceYear:       e.LicenceYear,
		Photo:             e.Documents.Photo,
		BacDocument:       e.Documents.Bac,
		Diploma:           e.Documents.Diploma,
		BirthCertificate:  e.Documents.BirthCertificate,
		Formation:         e.Formation,
		Status:            string(e.Status),
		CreatedAt:         e.CreatedAt.UTC(),
	}
}

func (r enrollmentRow) enrollment() enrollment.Enrollment {
	return enrollment.Enrollment{
		ID:                r.ID,
		UserID:            r.UserID,
		LastName:          r.LastName,
		FirstName:         r.FirstName,
		Sex:               r.Sex,
		BirthDate:         r.BirthDate,
		BirthPlace:        r.BirthPlace,
		Email:             r.Email,
		EmailConfirmation: r.EmailConfirmation,
		Phone:             r.Phone,
		CMU:               r.CMU,
		CNI:               r.CNI,
		BacSeries:         r.BacSeries,
		BacYear:           r.BacYear,
		BacMention:        r.BacMention,
		BacNumber:         r.BacNumber,
		BacSchool:         r.BacSchool,
		Licence:           r.Licence,
		LicenceYear:       r.LicenceYear,
		Documents: enrollment.Documents{
			Photo:            r.Photo,
			Bac:              r.BacDocument,
			Diploma:          r.Diploma,
			BirthCertificate: r.BirthCertificate,
		},
		Formation: r.Formation,
		Status:    enrollment.Status(r.Status),
		CreatedAt: r.CreatedAt,
	}
}

func enrollments(rows []enrollmentRow) []enrollment.Enrollment {
	res := make([]enrollment.Enrollment, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.enrollment())
	}
	return res
}

type enrollmentRepository struct {
	repository
}

var _ enrollment.Repository = (*enrollmentRepository)(nil)

func NewEnrollmentRepository(exec core.DBExecutor) enrollment.Repository {
	return &enrollmentRepository{repository{exec: exec}}
}

func (repo *enrollmentRepository) FindDuplicates(ctx context.Context, filter enrollment.UniqueFilter, exec ...core.DBExecutor) ([]string, error) {
	var found struct {
		Email     bool `db:"email"`
		CMU       bool `db:"cmu"`
		CNI       bool `db:"cni"`
		BacNumber bool `db:"numero_bac"`
		Identity  bool `db:"date_naissance"`
	}
	// empty filter values never match
	q := `SELECT
			COALESCE(BOOL_OR($1 <> '' AND email = $1), FALSE) AS email,
			COALESCE(BOOL_OR($2 <> '' AND cmu = $2), FALSE) AS cmu,
			COALESCE(BOOL_OR($3 <> '' AND cni = $3), FALSE) AS cni,
			COALESCE(BOOL_OR($4 <> '' AND bac_number = $4), FALSE) AS numero_bac,
			COALESCE(BOOL_OR($5 <> '' AND last_name = $5 AND first_name = $6 AND birth_date = $7::date), FALSE) AS date_naissance
		FROM enrollment
		WHERE id <> $8`
	err := repo.get(ctx, exec, &found, q,
		filter.Email, filter.CMU, filter.CNI, filter.BacNumber,
		filter.LastName, filter.FirstName, filter.BirthDate, filter.ExcludeID)
	if err != nil {
		return nil, errors.Wrap(err, "checking enrollment duplicates")
	}

	var fields []string
	for _, f := range []struct {
		name  string
		found bool
	}{
		{"email", found.Email},
		{"cmu", found.CMU},
		{"cni", found.CNI},
		{"numero_bac", found.BacNumber},
		{"date_naissance", found.Identity},
	} {
		if f.found {
			fields = append(fields, f.name)
		}
	}
	return fields, nil
}

func (repo *enrollmentRepository) CreateEnrollment(ctx context.Context, e enrollment.Enrollment, exec ...core.DBExecutor) (enrollment.Enrollment, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	q := `INSERT INTO enrollment (
			user_id, last_name, first_name, sex, birth_date, birth_place, email, email_confirmation,
			phone, cmu, cni, bac_series, bac_year, bac_mention, bac_number, bac_school, licence, licence_year,
			photo, bac_document, diploma, birth_certificate, formation, status, created_at
		) VALUES (
			:user_id, :last_name, :first_name, :sex, :birth_date, :birth_place, :email, :email_confirmation,
			:phone, :cmu, :cni, :bac_series, :bac_year, :bac_mention, :bac_number, :bac_school, :licence, :licence_year,
			:photo, :bac_document, :diploma, :birth_certificate, :formation, :status, :created_at
		) RETURNING ` + enrollmentColumns
	query, args, err := named(q, toEnrollmentRow(e))
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}

	var row enrollmentRow
	if err = repo.get(ctx, exec, &row, query, args...); err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return enrollment.Enrollment{}, enrollment.ErrDuplicate
		}
		return enrollment.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return row.enrollment(), nil
}

func (repo *enrollmentRepository) GetEnrollment(ctx context.Context, filter enrollment.GetFilter, exec ...core.DBExecutor) (enrollment.Enrollment, error) {
	var cond string
	var arg interface{}
	switch {
	case filter.ID != 0:
		cond, arg = "id = $1", filter.ID
	case filter.UserID != "":
		cond, arg = "user_id::text = $1", filter.UserID
	case filter.Email != "":
		cond, arg = "email = $1", filter.Email
	default:
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}

	var row enrollmentRow
	if err := repo.get(ctx, exec, &row, `SELECT `+enrollmentColumns+` FROM enrollment WHERE `+cond, arg); err != nil {
		return enrollment.Enrollment{}, trapNoRowsErr(err, enrollment.ErrNotFound, "finding enrollment")
	}
	return row.enrollment(), nil
}

func (repo *enrollmentRepository) QueryEnrollments(ctx context.Context, filter *enrollment.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]enrollment.Enrollment, error) {
	w := newWhere()
	var limit string
	if filter != nil {
		if filter.Search != "" {
			val := containsPattern(filter.Search)
			w.add("(last_name ILIKE ? OR first_name ILIKE ? OR email ILIKE ?)", val, val, val)
		}
		if filter.Status != "" {
			w.add("status = ?", string(filter.Status))
		}
		if filter.Formation != "" {
			w.add("LOWER(formation) = LOWER(?)", filter.Formation)
		}
		if !filter.CreatedFrom.IsZero() {
			w.add("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			w.add("created_at <= ?", filter.CreatedTo.UTC())
		}
		if filter.Limit > 0 {
			limit = " LIMIT ?"
			w.args = append(w.args, filter.Limit)
		}
	}

	q := `SELECT ` + enrollmentColumns + ` FROM enrollment` + w.clause() +
		` ORDER BY ` + core.OrderByClause(ordering, enrollmentOrderColumns, "created_at DESC") + `, id DESC` + limit
	var rows []enrollmentRow
	if err := repo.selekt(ctx, exec, &rows, w.rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	return enrollments(rows), nil
}

func (repo *enrollmentRepository) UpdateEnrollment(ctx context.Context, e enrollment.Enrollment, exec ...core.DBExecutor) (enrollment.Enrollment, error) {
	q := `UPDATE enrollment SET
			last_name = :last_name, first_name = :first_name, sex = :sex, birth_date = :birth_date,
			birth_place = :birth_place, email = :email, email_confirmation = :email_confirmation, phone = :phone,
			cmu = :cmu, cni = :cni, bac_series = :bac_series, bac_year = :bac_year, bac_mention = :bac_mention,
			bac_number = :bac_number, bac_school = :bac_school, licence = :licence, licence_year = :licence_year,
			photo = :photo, bac_document = :bac_document, diploma = :diploma, birth_certificate = :birth_certificate,
			formation = :formation, status = :status
		WHERE id = :id
		RETURNING ` + enrollmentColumns
	query, args, err := named(q, toEnrollmentRow(e))
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "updating enrollment")
	}

	var row enrollmentRow
	if err = repo.get(ctx, exec, &row, query, args...); err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return enrollment.Enrollment{}, enrollment.ErrDuplicate
		}
		return enrollment.Enrollment{}, trapNoRowsErr(err, enrollment.ErrNotFound, "updating enrollment")
	}
	return row.enrollment(), nil
}

func (repo *enrollmentRepository) UpdateStatus(ctx context.Context, ids []int64, status enrollment.Status, from []enrollment.Status, exec ...core.DBExecutor) ([]enrollment.Enrollment, error) {
	if len(ids) == 0 {
		return []enrollment.Enrollment{}, nil
	}
	froms := make([]string, 0, len(from))
	for _, s := range from {
		froms = append(froms, string(s))
	}

	q := `UPDATE enrollment SET status = $1
		WHERE id = ANY($2) AND (CARDINALITY($3::text[]) = 0 OR status = ANY($3))
		RETURNING ` + enrollmentColumns
	var rows []enrollmentRow
	if err := repo.selekt(ctx, exec, &rows, q, string(status), pq.Int64Array(ids), pq.StringArray(froms)); err != nil {
		return nil, errors.Wrap(err, "updating enrollment status")
	}
	return enrollments(rows), nil
}

func (repo *enrollmentRepository) DeleteEnrollments(ctx context.Context, ids []int64, exec ...core.DBExecutor) ([]enrollment.Enrollment, error) {
	if len(ids) == 0 {
		return []enrollment.Enrollment{}, nil
	}
	var rows []enrollmentRow
	q := `DELETE FROM enrollment WHERE id = ANY($1) RETURNING ` + enrollmentColumns
	if err := repo.selekt(ctx, exec, &rows, q, pq.Int64Array(ids)); err != nil {
		return nil, errors.Wrap(err, "deleting enrollments")
	}
	return enrollments(rows), nil
}

func (repo *enrollmentRepository) CountByStatus(ctx context.Context, exec ...core.DBExecutor) (enrollment.StatusCounts, error) {
	var counts enrollment.StatusCounts
	q := `SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = $1) AS pending,
			COUNT(*) FILTER (WHERE status = $2) AS validated,
			COUNT(*) FILTER (WHERE status = $3) AS rejected
		FROM enrollment`
	row := repo.getExec(exec).QueryRowxContext(ctx, q,
		string(enrollment.StatusPending), string(enrollment.StatusValidated), string(enrollment.StatusRejected))
	if err := row.Scan(&counts.Total, &counts.Pending, &counts.Validated, &counts.Rejected); err != nil {
		return enrollment.StatusCounts{}, errors.Wrap(err, "counting enrollments")
	}
	return counts, nil
}

func (repo *enrollmentRepository) CountCreatedSince(ctx context.Context, since time.Time, exec ...core.DBExecutor) (int, error) {
	var n int
	if err := repo.get(ctx, exec, &n, `SELECT COUNT(*) FROM enrollment WHERE created_at >= $1`, since.UTC()); err != nil {
		return 0, errors.Wrap(err, "counting recent enrollments")
	}
	return n, nil
}

func (repo *enrollmentRepository) CountByFormation(ctx context.Context, exec ...core.DBExecutor) ([]enrollment.FormationStat, error) {
	var rows []struct {
		Formation string `db:"formation"`
		Count     int    `db:"count"`
	}
	q := `SELECT TRIM(formation) AS formation, COUNT(*) AS count
		FROM enrollment
		WHERE TRIM(formation) <> ''
		GROUP BY TRIM(formation)
		ORDER BY count DESC, formation`
	if err := repo.selekt(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "counting enrollments by formation")
	}
	stats := make([]enrollment.FormationStat, 0, len(rows))
	for _, r := range rows {
		stats = append(stats, enrollment.FormationStat{Formation: r.Formation, Count: r.Count})
	}
	return stats, nil
}

func (repo *enrollmentRepository) Formations(ctx context.Context, exec ...core.DBExecutor) ([]string, error) {
	formations := make([]string, 0)
	q := `SELECT DISTINCT TRIM(formation) AS formation FROM enrollment WHERE TRIM(formation) <> '' ORDER BY formation`
	if err := repo.selekt(ctx, exec, &formations, q); err != nil {
		return nil, errors.Wrap(err, "listing formations")
	}
	return formations, nil
}
