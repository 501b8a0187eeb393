package convocation

import (
	"context"
	"fmt"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/toure-cloud/institutdeveloppement/core"
	"github.com/toure-cloud/institutdeveloppement/core/enrollment"
)

var (
	// errors
	ErrNotFound           = errors.New("Aucune convocation disponible pour votre formation.")
	ErrNoEnrollment       = errors.New("Aucune inscription trouvée.")
	ErrScheduleIDNotFound = errors.New("exam schedule not found")
)

type (
	Repository interface {
		// UpsertSchedule creates the schedule of s.Formation or replaces the existing one.
		UpsertSchedule(ctx context.Context, s Schedule, exec ...core.DBExecutor) (Schedule, error)
		// GetSchedule does a case-insensitive match on formation.
		GetSchedule(ctx context.Context, formation string, exec ...core.DBExecutor) (Schedule, error)
		QuerySchedules(ctx context.Context, exec ...core.DBExecutor) ([]Schedule, error)
		DeleteSchedule(ctx context.Context, id int64, exec ...core.DBExecutor) error
	}

	// EnrollmentFinder is the part of enrollment.Service convocations need.
	EnrollmentFinder interface {
		GetByUser(ctx context.Context, userID string) (enrollment.Enrollment, error)
	}

	Service interface {
		Upsert(ctx context.Context, sf ScheduleForm) (Schedule, error)
		Get(ctx context.Context, formation string) (Schedule, error)
		Query(ctx context.Context) ([]Schedule, error)
		Delete(ctx context.Context, id int64) error
		// Generate renders the exam notice of the candidate.
		Generate(ctx context.Context, userID string) (Document, error)
	}

	service struct {
		repo        Repository
		enrollments EnrollmentFinder
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, enrollments EnrollmentFinder) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(enrollments, "enrollments"),
	).CheckAndPanic()

	return &service{repo: repo, enrollments: enrollments}
}

func (svc *service) Upsert(ctx context.Context, sf ScheduleForm) (Schedule, error) {
	s := sf.schedule()
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	return svc.repo.UpsertSchedule(ctx, s)
}

func (svc *service) Get(ctx context.Context, formation string) (Schedule, error) {
	return svc.repo.GetSchedule(ctx, core.CleanString(formation))
}

func (svc *service) Query(ctx context.Context) ([]Schedule, error) {
	return svc.repo.QuerySchedules(ctx)
}

func (svc *service) Delete(ctx context.Context, id int64) error {
	return svc.repo.DeleteSchedule(ctx, id)
}

func (svc *service) Generate(ctx context.Context, userID string) (Document, error) {
	e, err := svc.enrollments.GetByUser(ctx, userID)
	if err != nil {
		if errors.Cause(err) == enrollment.ErrNotFound {
			return Document{}, ErrNoEnrollment
		}
		return Document{}, errors.Wrap(err, "finding enrollment")
	}
	s, err := svc.Get(ctx, e.Formation)
	if err != nil {
		return Document{}, err
	}

	content, err := renderConvocation(e, s)
	if err != nil {
		return Document{}, err
	}
	return Document{
		Filename: fmt.Sprintf("convocation_%s_%s.pdf", e.LastName, e.FirstName),
		Content:  content,
	}, nil
}
