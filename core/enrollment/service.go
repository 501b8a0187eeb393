package enrollment

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"net/mail"
	"os"
	"path"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/toure-cloud/institutdeveloppement/core"
	"github.com/toure-cloud/institutdeveloppement/core/user"
)

var (
	// errors
	ErrNotFound          = errors.New("enrollment not found")
	ErrInvalidTransition = errors.New("Seules les inscriptions en attente peuvent être validées ou rejetées.")
	ErrDuplicate         = errors.New("enrollment already exists")
	ErrDocumentNotFound  = errors.New("Document introuvable")

	duplicateTexts = map[string]string{
		"email":          "Cet email est déjà utilisé.",
		"cmu":            "Ce numéro CMU est déjà enregistré.",
		"cni":            "Ce numéro CNI est déjà enregistré.",
		"numero_bac":     "Ce numéro de bac est déjà enregistré.",
		"date_naissance": "Un candidat avec ce nom, ce prénom et cette date de naissance est déjà inscrit.",
	}

	csvHeader = []string{"Nom", "Prénom", "Email", "Téléphone", "Formation", "Date Inscription", "Statut", "CMU", "CNI"}
)

const (
	deletedSubject = "Votre inscription a été supprimée"
	deletedText    = "Votre inscription à notre formation a été supprimée. Pour plus d'informations, veuillez nous contacter."
	validatedSubj  = "Votre inscription a été validée"

	latestCount = 10
)

type (
	Repository interface {
		// FindDuplicates returns the json names of the unique fields already held by another enrollment.
		// The (nom, prénom, date de naissance) triple is reported as "date_naissance".
		FindDuplicates(ctx context.Context, filter UniqueFilter, exec ...core.DBExecutor) ([]string, error)
		CreateEnrollment(ctx context.Context, e Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		GetEnrollment(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Enrollment, error)
		// QueryEnrollments applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of LastName, FirstName or Email.
		QueryEnrollments(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Enrollment, error)
		UpdateEnrollment(ctx context.Context, e Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		// UpdateStatus sets status on the listed enrollments whose current status is in from (any when empty)
		// and returns the updated ones.
		UpdateStatus(ctx context.Context, ids []int64, status Status, from []Status, exec ...core.DBExecutor) ([]Enrollment, error)
		DeleteEnrollments(ctx context.Context, ids []int64, exec ...core.DBExecutor) ([]Enrollment, error)
		CountByStatus(ctx context.Context, exec ...core.DBExecutor) (StatusCounts, error)
		CountCreatedSince(ctx context.Context, since time.Time, exec ...core.DBExecutor) (int, error)
		CountByFormation(ctx context.Context, exec ...core.DBExecutor) ([]FormationStat, error)
		Formations(ctx context.Context, exec ...core.DBExecutor) ([]string, error)
	}

	// SheetRenderer renders the registration sheet PDF sent with the confirmation email.
	SheetRenderer interface {
		EnrollmentSheet(e Enrollment) ([]byte, error)
	}

	Service interface {
		Register(ctx context.Context, formation string, ne NewEnrollment, files map[DocumentKind]core.File) (Enrollment, user.User, error)
		UploadDocument(ctx context.Context, userID string, kind DocumentKind, file core.File) (Enrollment, error)
		OpenDocument(ctx context.Context, e Enrollment, kind DocumentKind) (io.ReadCloser, string, error)
		UpdateProfile(ctx context.Context, userID string, up UpdateProfile) (Enrollment, []string, error)
		Validate(ctx context.Context, id int64) (Enrollment, error)
		Reject(ctx context.Context, id int64) (Enrollment, error)
		ValidateSelection(ctx context.Context, ids []int64) (int, error)
		Delete(ctx context.Context, id int64) error
		DeleteSelection(ctx context.Context, ids []int64) (int, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Enrollment, error)
		Get(ctx context.Context, id int64) (Enrollment, error)
		GetByUser(ctx context.Context, userID string) (Enrollment, error)
		GetByEmail(ctx context.Context, email string) (Enrollment, error)
		Formations(ctx context.Context) ([]string, error)
		CountByStatus(ctx context.Context) (StatusCounts, error)
		Stats(ctx context.Context) (Stats, error)
		ExportCSV(ctx context.Context, w io.Writer) error
	}

	GetFilter struct {
		ID     int64
		UserID string
		Email  string
	}

	service struct {
		repo       Repository
		userSvc    user.Service
		transactor core.Transactor
		storage    core.FileStorage
		mailSvc    core.EmailService
		sheets     SheetRenderer
		logger     core.Logger
		loc        *time.Location
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	userSvc user.Service,
	transactor core.Transactor,
	storage core.FileStorage,
	mailSvc core.EmailService,
	sheets SheetRenderer,
	logger core.Logger,
	conf *core.Config,
) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(userSvc, "userSvc"),
		vala.IsNotNil(transactor, "transactor"),
		vala.IsNotNil(storage, "storage"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(sheets, "sheets"),
		vala.IsNotNil(logger, "logger"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &service{
		repo:       repo,
		userSvc:    userSvc,
		transactor: transactor,
		storage:    storage,
		mailSvc:    mailSvc,
		sheets:     sheets,
		logger:     logger,
		loc:        conf.Location(),
	}
}

func (svc *service) checkDuplicates(ctx context.Context, filter UniqueFilter, exec ...core.DBExecutor) error {
	fields, err := svc.repo.FindDuplicates(ctx, filter, exec...)
	if err != nil {
		return errors.Wrap(err, "finding duplicates")
	}
	if len(fields) == 0 {
		return nil
	}
	fldErrs := make([]core.FieldError, 0, len(fields))
	for _, fld := range fields {
		fldErrs = append(fldErrs, core.FieldError{Field: fld, Error: duplicateTexts[fld]})
	}
	return core.NewValidationError(ErrDuplicate, fldErrs...)
}

// Register creates the candidate account and its enrollment, then stores the documents.
// ne must have been validated.
func (svc *service) Register(ctx context.Context, formation string, ne NewEnrollment, files map[DocumentKind]core.File) (Enrollment, user.User, error) {
	if err := MissingDocuments(files); err != nil {
		return Enrollment{}, user.User{}, err
	}
	for _, kind := range DocumentKinds {
		if err := kind.CheckFile(files[kind]); err != nil {
			return Enrollment{}, user.User{}, err
		}
	}

	e := ne.Enrollment("", formation)
	if err := svc.checkDuplicates(ctx, UniqueFilter{
		Email:     e.Email,
		CMU:       e.CMU,
		CNI:       e.CNI,
		BacNumber: e.BacNumber,
		LastName:  e.LastName,
		FirstName: e.FirstName,
		BirthDate: e.BirthDate,
	}); err != nil {
		return Enrollment{}, user.User{}, err
	}
	if err := svc.userSvc.CheckUniqueness(ctx, "", e.Email); err != nil {
		return Enrollment{}, user.User{}, err
	}

	var (
		usr   user.User
		saved []string
	)
	err := svc.transactor.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		usr, err = svc.userSvc.CreateCandidate(ctx, e.LastName, e.FirstName, e.Email, ne.Password, core.Execs(exec)...)
		if err != nil {
			return errors.Wrap(err, "creating candidate")
		}
		e.UserID = usr.ID
		if e, err = svc.repo.CreateEnrollment(ctx, e, core.Execs(exec)...); err != nil {
			return errors.Wrap(err, "creating enrollment")
		}

		for _, kind := range DocumentKinds {
			f := files[kind]
			p, err := svc.storage.Save(ctx, DocumentPath(e, kind, f.Ext()), f.Content)
			if err != nil {
				return errors.Wrapf(err, "saving %s", kind)
			}
			saved = append(saved, p)
			e.Documents.Set(kind, p)
		}
		e, err = svc.repo.UpdateEnrollment(ctx, e, core.Execs(exec)...)
		return errors.Wrap(err, "updating documents")
	})
	if err != nil {
		svc.deleteFiles(ctx, saved...)
		return Enrollment{}, user.User{}, err
	}

	svc.sendConfirmation(e)
	return e, usr, nil
}

func (svc *service) sendConfirmation(e Enrollment) {
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: e.FullName(), Address: e.Email}},
		Subject:      "Confirmation d'inscription à la formation " + e.Formation,
		TemplateName: "enrollment_confirmation",
		TemplateData: map[string]string{"FirstName": e.FirstName, "Formation": e.Formation},
	}
	sheet, err := svc.sheets.EnrollmentSheet(e)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("enrollment.sendConfirmation: rendering sheet: %v", err), err)
	} else {
		filename := fmt.Sprintf("%s_%s_inscription.pdf", e.LastName, e.FirstName)
		if err = msg.Attach(bytes.NewReader(sheet), filename, "application/pdf"); err != nil {
			svc.logger.Error(fmt.Sprintf("enrollment.sendConfirmation: %v", err), err)
		}
	}
	svc.mailSvc.SendMessages(msg)
}

func (svc *service) deleteFiles(ctx context.Context, paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := svc.storage.Delete(ctx, p); err != nil {
			svc.logger.Warn(fmt.Sprintf("enrollment: deleting %s: %v", p, err))
		}
	}
}

// UploadDocument replaces one document of the candidate. The previous file is removed once the
// enrollment points at the new one.
func (svc *service) UploadDocument(ctx context.Context, userID string, kind DocumentKind, file core.File) (Enrollment, error) {
	if err := kind.CheckFile(file); err != nil {
		return Enrollment{}, err
	}
	e, err := svc.GetByUser(ctx, userID)
	if err != nil {
		return Enrollment{}, err
	}

	old := e.Documents.Get(kind)
	p, err := svc.storage.Save(ctx, DocumentPath(e, kind, file.Ext()), file.Content)
	if err != nil {
		return Enrollment{}, errors.Wrapf(err, "saving %s", kind)
	}
	e.Documents.Set(kind, p)
	if e, err = svc.repo.UpdateEnrollment(ctx, e); err != nil {
		svc.deleteFiles(ctx, p)
		return Enrollment{}, errors.Wrap(err, "updating documents")
	}
	if old != p {
		svc.deleteFiles(ctx, old)
	}
	return e, nil
}

// OpenDocument opens the stored document of e and returns it with its file name.
func (svc *service) OpenDocument(ctx context.Context, e Enrollment, kind DocumentKind) (io.ReadCloser, string, error) {
	p := e.Documents.Get(kind)
	if p == "" {
		return nil, "", ErrDocumentNotFound
	}
	rc, err := svc.storage.Open(ctx, p)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return nil, "", ErrDocumentNotFound
		}
		return nil, "", errors.Wrapf(err, "opening %s", kind)
	}
	return rc, path.Base(p), nil
}

// UpdateProfile applies up, which must have been validated, and returns the changed fields.
func (svc *service) UpdateProfile(ctx context.Context, userID string, up UpdateProfile) (Enrollment, []string, error) {
	e, err := svc.GetByUser(ctx, userID)
	if err != nil {
		return Enrollment{}, nil, err
	}
	updated := up.Apply(&e)
	if len(updated) == 0 {
		return e, updated, nil
	}

	if err = svc.checkDuplicates(ctx, UniqueFilter{CMU: e.CMU, CNI: e.CNI, ExcludeID: e.ID}); err != nil {
		return Enrollment{}, nil, err
	}
	if e, err = svc.repo.UpdateEnrollment(ctx, e); err != nil {
		return Enrollment{}, nil, err
	}
	return e, updated, nil
}

func (svc *service) transition(ctx context.Context, id int64, status Status) (Enrollment, error) {
	updated, err := svc.repo.UpdateStatus(ctx, []int64{id}, status, []Status{StatusPending})
	if err != nil {
		return Enrollment{}, err
	}
	if len(updated) == 0 {
		if _, err = svc.Get(ctx, id); err != nil {
			return Enrollment{}, err
		}
		return Enrollment{}, ErrInvalidTransition
	}
	return updated[0], nil
}

// Validate moves a pending enrollment to V. Only ValidateSelection notifies candidates.
func (svc *service) Validate(ctx context.Context, id int64) (Enrollment, error) {
	return svc.transition(ctx, id, StatusValidated)
}

// Reject moves a pending enrollment to R.
func (svc *service) Reject(ctx context.Context, id int64) (Enrollment, error) {
	return svc.transition(ctx, id, StatusRejected)
}

// ValidateSelection validates the listed enrollments whatever their status.
func (svc *service) ValidateSelection(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	updated, err := svc.repo.UpdateStatus(ctx, ids, StatusValidated, nil)
	if err != nil {
		return 0, err
	}
	msgs := make([]*core.EmailMessage, 0, len(updated))
	for _, e := range updated {
		msgs = append(msgs, validatedMessage(e))
	}
	svc.mailSvc.SendMessages(msgs...)
	return len(updated), nil
}

func validatedMessage(e Enrollment) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: e.FullName(), Address: e.Email}},
		Subject:      validatedSubj,
		TemplateName: "enrollment_validated",
		TemplateData: map[string]string{"FirstName": e.FirstName, "LastName": e.LastName, "Formation": e.Formation},
	}
}

// delete removes the enrollments, then their documents. Candidate accounts are kept.
func (svc *service) delete(ctx context.Context, ids []int64) ([]Enrollment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	deleted, err := svc.repo.DeleteEnrollments(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, e := range deleted {
		for _, kind := range DocumentKinds {
			svc.deleteFiles(ctx, e.Documents.Get(kind))
		}
	}
	return deleted, nil
}

// Delete removes an enrollment and its documents.
func (svc *service) Delete(ctx context.Context, id int64) error {
	deleted, err := svc.delete(ctx, []int64{id})
	if err != nil {
		return err
	}
	if len(deleted) == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSelection is Delete for many enrollments; each candidate is notified.
func (svc *service) DeleteSelection(ctx context.Context, ids []int64) (int, error) {
	deleted, err := svc.delete(ctx, ids)
	if err != nil {
		return 0, err
	}
	msgs := make([]*core.EmailMessage, 0, len(deleted))
	for _, e := range deleted {
		msgs = append(msgs, &core.EmailMessage{
			To:      []mail.Address{{Name: e.FullName(), Address: e.Email}},
			Subject: deletedSubject,
			BodyStr: deletedText,
		})
	}
	svc.mailSvc.SendMessages(msgs...)
	return len(deleted), nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Enrollment, error) {
	return svc.repo.QueryEnrollments(ctx, filter, ordering)
}

func (svc *service) Get(ctx context.Context, id int64) (Enrollment, error) {
	return svc.repo.GetEnrollment(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUser(ctx context.Context, userID string) (Enrollment, error) {
	return svc.repo.GetEnrollment(ctx, GetFilter{UserID: userID})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (Enrollment, error) {
	return svc.repo.GetEnrollment(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) Formations(ctx context.Context) ([]string, error) {
	return svc.repo.Formations(ctx)
}

func (svc *service) CountByStatus(ctx context.Context) (StatusCounts, error) {
	return svc.repo.CountByStatus(ctx)
}

// Stats gathers the dashboard figures; the underlying queries run concurrently.
func (svc *service) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	now := time.Now().In(svc.loc)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, svc.loc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.StatusCounts, err = svc.repo.CountByStatus(gctx)
		return errors.Wrap(err, "counting by status")
	})
	g.Go(func() (err error) {
		stats.Recent, err = svc.repo.CountCreatedSince(gctx, now.AddDate(0, 0, -7).UTC())
		return errors.Wrap(err, "counting recent")
	})
	g.Go(func() (err error) {
		stats.ThisMonth, err = svc.repo.CountCreatedSince(gctx, monthStart.UTC())
		return errors.Wrap(err, "counting this month")
	})
	g.Go(func() (err error) {
		stats.ByFormation, err = svc.repo.CountByFormation(gctx)
		return errors.Wrap(err, "counting by formation")
	})
	g.Go(func() (err error) {
		stats.Latest, err = svc.repo.QueryEnrollments(gctx, &QueryFilter{Limit: latestCount}, []core.DBOrdering{{Field: "date_inscription"}})
		return errors.Wrap(err, "querying latest")
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	if stats.Total > 0 {
		stats.ValidationRate = percentage(stats.Validated, stats.Total)
	}
	for i := range stats.ByFormation {
		stats.ByFormation[i].Percentage = percentage(stats.ByFormation[i].Count, stats.Total)
	}
	return stats, nil
}

func percentage(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*1000) / 10
}

// ExportCSV writes every enrollment, newest first, as a `;` separated CSV file.
func (svc *service) ExportCSV(ctx context.Context, w io.Writer) error {
	enrollments, err := svc.repo.QueryEnrollments(ctx, nil, []core.DBOrdering{{Field: "date_inscription"}})
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}

	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err = cw.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range enrollments {
		row := []string{
			e.LastName,
			e.FirstName,
			e.Email,
			e.Phone,
			e.Formation,
			e.CreatedAt.In(svc.loc).Format("02/01/2006 15:04"),
			e.Status.Label(),
			e.CMU,
			e.CNI,
		}
		if err = cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportFilename is the attachment name of a CSV export made at t.
func ExportFilename(t time.Time) string {
	return "inscriptions_" + t.Format("20060102_150405") + ".csv"
}
