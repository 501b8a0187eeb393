package enrollment_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"log"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toure-cloud/institutdeveloppement/core"
	"github.com/toure-cloud/institutdeveloppement/core/enrollment"
	"github.com/toure-cloud/institutdeveloppement/core/user"
	appfs "github.com/toure-cloud/institutdeveloppement/fs"
	emailsvc "github.com/toure-cloud/institutdeveloppement/services/email"
	logsvc "github.com/toure-cloud/institutdeveloppement/services/logger"
	storagesvc "github.com/toure-cloud/institutdeveloppement/services/storage"
	inmemdb "github.com/toure-cloud/institutdeveloppement/storage/database/inmem"
	testutil "github.com/toure-cloud/institutdeveloppement/tests"
)

var (
	pngData = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	pdfData = []byte("%PDF-1.4\n1 0 obj\n<< >>\nendobj\ntrailer\n<< >>\n%%EOF\n")
)

type fakeSheets struct {
	err error
}

func (f fakeSheets) EnrollmentSheet(e enrollment.Enrollment) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return pdfData, nil
}

// flakyStorage fails every Save while fail is set.
type flakyStorage struct {
	core.FileStorage
	fail bool
}

func (s *flakyStorage) Save(ctx context.Context, name string, content io.Reader) (string, error) {
	if s.fail {
		return "", errors.New("disk full")
	}
	return s.FileStorage.Save(ctx, name, content)
}

type testEnv struct {
	svc     enrollment.Service
	repo    enrollment.Repository
	usrRepo user.Repository
	storage *flakyStorage
	mailSvc *emailsvc.ConsoleServiceMock
}

func setup(t *testing.T, sheets enrollment.SheetRenderer) *testEnv {
	conf := &core.Config{
		AppName:  "Institut",
		TestMode: true,
		TimeZone: "UTC",
		Media:    core.MediaConfig{Root: t.TempDir(), URL: "/media/"},
	}
	conf.Server.PasswordResetTimeoutDelta = time.Hour
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	core.ParseEmailTemplates(appfs.FS, true, logger)

	db := inmemdb.Open()
	repo := inmemdb.NewEnrollmentRepository(db)
	usrRepo := inmemdb.NewUserRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock(logger, conf)
	storage := &flakyStorage{FileStorage: storagesvc.NewLocalStorage(conf)}
	usrSvc := user.NewService(usrRepo, mailSvc, conf)

	return &testEnv{
		svc:     enrollment.NewService(repo, usrSvc, inmemdb.NewTransactor(), storage, mailSvc, sheets, logger, conf),
		repo:    repo,
		usrRepo: usrRepo,
		storage: storage,
		mailSvc: mailSvc,
	}
}

func newFile(name, contentType string, content []byte) core.File {
	return core.File{Name: name, ContentType: contentType, Size: int64(len(content)), Content: bytes.NewReader(content)}
}

func documents() map[enrollment.DocumentKind]core.File {
	return map[enrollment.DocumentKind]core.File{
		enrollment.DocPhoto:            newFile("photo.png", "image/png", pngData),
		enrollment.DocBac:              newFile("bac.pdf", "application/pdf", pdfData),
		enrollment.DocDiploma:          newFile("licence.pdf", "application/pdf", pdfData),
		enrollment.DocBirthCertificate: newFile("extrait.pdf", "application/pdf", pdfData),
	}
}

func newEnrollment(seed string) enrollment.NewEnrollment {
	return enrollment.NewEnrollment{
		LastName:          "Kouassi",
		FirstName:         "awa",
		Sex:               "F",
		BirthDate:         "2000-03-12",
		BirthPlace:        "Bouaké",
		Email:             seed + "@test.ci",
		EmailConfirmation: seed + "@test.ci",
		Phone:             "+2250701020304",
		CMU:               "CMU-" + seed,
		CNI:               "CNI-" + seed,
		BacSeries:         "C",
		BacYear:           2018,
		BacMention:        "AB",
		BacNumber:         "bac-" + seed,
		LicenceYear:       2021,
		Password:          "Kz9!plmQ2xw",
	}
}

func fieldErrors(t *testing.T, err error) (error, map[string]string) {
	t.Helper()
	verr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok, "want a *core.ValidationError, got %v", err)
	fields := make(map[string]string, len(verr.Fields))
	for _, f := range verr.Fields {
		fields[f.Field] = f.Error
	}
	return verr.Err, fields
}

func TestService_Register(t *testing.T) {
	env := setup(t, &fakeSheets{})
	ctx := context.Background()

	t.Run("missing documents", func(t *testing.T) {
		files := documents()
		delete(files, enrollment.DocDiploma)
		_, _, err := env.svc.Register(ctx, "Informatique", newEnrollment("awa"), files)
		_, fields := fieldErrors(t, err)
		assert.Contains(t, fields["documents"], "Diplôme de licence")
	})

	t.Run("photo must be an image", func(t *testing.T) {
		files := documents()
		files[enrollment.DocPhoto] = newFile("photo.pdf", "application/pdf", pdfData)
		_, _, err := env.svc.Register(ctx, "Informatique", newEnrollment("awa"), files)
		_, fields := fieldErrors(t, err)
		assert.Contains(t, fields, "photo")
	})

	var registered enrollment.Enrollment
	t.Run("registered", func(t *testing.T) {
		env.mailSvc.Reset()
		e, usr, err := env.svc.Register(ctx, " Informatique ", newEnrollment("awa"), documents())
		require.NoError(t, err)
		registered = e

		assert.Equal(t, "KOUASSI", e.LastName)
		assert.Equal(t, "Awa", e.FirstName)
		assert.Equal(t, "BAC-AWA", e.BacNumber)
		assert.Equal(t, "Informatique", e.Formation)
		assert.Equal(t, enrollment.StatusPending, e.Status)
		assert.Equal(t, enrollment.DefaultLicence, e.Licence)
		assert.Equal(t, usr.ID, e.UserID)
		assert.Equal(t, 100.0, e.Documents.Completion())
		assert.Equal(t, "documents/photo/KOUASSI_Awa_photo.png", e.Documents.Photo)

		assert.True(t, usr.HasRole(user.RoleCandidate))
		assert.Equal(t, "awa@test.ci", usr.Email)

		rc, err := env.storage.Open(ctx, e.Documents.Bac)
		require.NoError(t, err)
		content, _ := io.ReadAll(rc)
		_ = rc.Close()
		assert.Equal(t, pdfData, content)

		sent := env.mailSvc.SentMessages()
		if assert.Len(t, sent, 1) {
			assert.Equal(t, "awa@test.ci", sent[0].To[0].Address)
			assert.Contains(t, sent[0].Subject, "Informatique")
			if assert.Len(t, sent[0].Attachments, 1) {
				assert.Equal(t, "KOUASSI_Awa_inscription.pdf", sent[0].Attachments[0].Filename)
			}
		}
	})

	t.Run("duplicates", func(t *testing.T) {
		ne := newEnrollment("other")
		ne.CMU = "CMU-awa"
		ne.BacNumber = "BAC-AWA"
		_, _, err := env.svc.Register(ctx, "Informatique", ne, documents())
		cause, fields := fieldErrors(t, err)
		assert.Equal(t, enrollment.ErrDuplicate, cause)
		assert.Contains(t, fields, "cmu")
		assert.Contains(t, fields, "numero_bac")
		// same names and birth date
		assert.Contains(t, fields, "date_naissance")
		assert.NotContains(t, fields, "email")
	})

	t.Run("profile", func(t *testing.T) {
		phone, licence := "+2250505050505", "Informatique de gestion"
		e, updated, err := env.svc.UpdateProfile(ctx, registered.UserID, enrollment.UpdateProfile{Phone: &phone, Licence: &licence})
		require.NoError(t, err)
		assert.Equal(t, []string{"telephone", "licence"}, updated)
		assert.Equal(t, phone, e.Phone)
		assert.Equal(t, licence, e.Licence)

		_, updated, err = env.svc.UpdateProfile(ctx, registered.UserID, enrollment.UpdateProfile{Phone: &phone})
		require.NoError(t, err)
		assert.Empty(t, updated)
	})

	t.Run("upload document", func(t *testing.T) {
		e, err := env.svc.UploadDocument(ctx, registered.UserID, enrollment.DocBac, newFile("bac.png", "image/png", pngData))
		require.NoError(t, err)
		assert.Equal(t, "documents/bac/KOUASSI_Awa_bac.png", e.Documents.Bac)

		_, err = env.storage.Open(ctx, registered.Documents.Bac)
		assert.Error(t, err, "the previous document is removed")

		rc, filename, err := env.svc.OpenDocument(ctx, e, enrollment.DocBac)
		require.NoError(t, err)
		content, _ := io.ReadAll(rc)
		_ = rc.Close()
		assert.Equal(t, "KOUASSI_Awa_bac.png", filename)
		assert.Equal(t, pngData, content)

		_, _, err = env.svc.OpenDocument(ctx, enrollment.Enrollment{}, enrollment.DocBac)
		assert.Equal(t, enrollment.ErrDocumentNotFound, err)

		_, err = env.svc.UploadDocument(ctx, "unknown", enrollment.DocBac, newFile("bac.png", "image/png", pngData))
		assert.Equal(t, enrollment.ErrNotFound, errors.Cause(err))

		_, err = env.svc.UploadDocument(ctx, registered.UserID, enrollment.DocumentKind("lol"), newFile("bac.png", "image/png", pngData))
		_, fields := fieldErrors(t, err)
		assert.Contains(t, fields, "document_type")
	})

	t.Run("stored extension follows the content", func(t *testing.T) {
		tests := []struct {
			name    string
			file    core.File
			wantErr bool
		}{
			{name: "html name", file: newFile("photo.html", "image/png", pngData), wantErr: true},
			{name: "html content", file: newFile("photo.png", "text/html; charset=utf-8", []byte("<script>alert(1)</script>")), wantErr: true},
			{name: "mismatched image", file: newFile("photo.JPG", "image/png", pngData)},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				e, err := env.svc.UploadDocument(ctx, registered.UserID, enrollment.DocPhoto, tt.file)
				if tt.wantErr {
					_, fields := fieldErrors(t, err)
					assert.Contains(t, fields, "photo")
					return
				}
				require.NoError(t, err)
				// the slot already holds KOUASSI_Awa_photo.png, so the new name gets a suffix
				assert.True(t, strings.HasPrefix(e.Documents.Photo, "documents/photo/KOUASSI_Awa_photo_"), e.Documents.Photo)
				assert.Equal(t, ".png", path.Ext(e.Documents.Photo))
			})
		}
	})

	t.Run("failed upload keeps the previous document", func(t *testing.T) {
		before, err := env.svc.GetByUser(ctx, registered.UserID)
		require.NoError(t, err)

		env.storage.fail = true
		_, err = env.svc.UploadDocument(ctx, registered.UserID, enrollment.DocBac, newFile("bac.pdf", "application/pdf", pdfData))
		env.storage.fail = false
		assert.Error(t, err)

		after, err := env.svc.GetByUser(ctx, registered.UserID)
		require.NoError(t, err)
		assert.Equal(t, before.Documents.Bac, after.Documents.Bac)
		rc, err := env.storage.Open(ctx, after.Documents.Bac)
		require.NoError(t, err)
		_ = rc.Close()
	})
}

func TestService_Register_sheetFailure(t *testing.T) {
	env := setup(t, &fakeSheets{err: errors.New("no font")})

	_, _, err := env.svc.Register(context.Background(), "Gestion", newEnrollment("ali"), documents())
	require.NoError(t, err)

	// the confirmation still goes out, without the sheet
	sent := env.mailSvc.SentMessages()
	if assert.Len(t, sent, 1) {
		assert.Empty(t, sent[0].Attachments)
	}
}

func TestService_transitions(t *testing.T) {
	env := setup(t, &fakeSheets{})
	ctx := context.Background()

	usr := testutil.CreateUser(t, env.usrRepo, "Awa Kouassi", "", "awa@test.ci", "", []string{user.RoleCandidate}, true)
	pending := testutil.CreateEnrollment(t, env.repo, testutil.NewEnrollment(usr.ID, "Kouassi", "Awa", "awa", "Informatique"))
	other := testutil.CreateEnrollment(t, env.repo, testutil.NewEnrollment("", "Kone", "Ali", "ali", "Gestion"))

	tests := []struct {
		name       string
		fn         func(ctx context.Context, id int64) (enrollment.Enrollment, error)
		id         int64
		wantStatus enrollment.Status
		wantErr    error
		wantSent   int
	}{
		{name: "validate unknown", fn: env.svc.Validate, id: 999, wantErr: enrollment.ErrNotFound},
		{name: "reject unknown", fn: env.svc.Reject, id: 999, wantErr: enrollment.ErrNotFound},
		{name: "validate", fn: env.svc.Validate, id: pending.ID, wantStatus: enrollment.StatusValidated},
		{name: "validate again", fn: env.svc.Validate, id: pending.ID, wantErr: enrollment.ErrInvalidTransition},
		{name: "reject validated", fn: env.svc.Reject, id: pending.ID, wantErr: enrollment.ErrInvalidTransition},
		{name: "reject", fn: env.svc.Reject, id: other.ID, wantStatus: enrollment.StatusRejected},
		{name: "validate rejected", fn: env.svc.Validate, id: other.ID, wantErr: enrollment.ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.mailSvc.Reset()
			e, err := tt.fn(ctx, tt.id)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, e.Status)
			assert.Len(t, env.mailSvc.SentMessages(), tt.wantSent)
		})
	}

	t.Run("validate selection", func(t *testing.T) {
		env.mailSvc.Reset()
		n, err := env.svc.ValidateSelection(ctx, []int64{other.ID, 999})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Len(t, env.mailSvc.SentMessages(), 1)

		e, err := env.svc.Get(ctx, other.ID)
		require.NoError(t, err)
		assert.Equal(t, enrollment.StatusValidated, e.Status)

		n, err = env.svc.ValidateSelection(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("delete selection", func(t *testing.T) {
		env.mailSvc.Reset()
		n, err := env.svc.DeleteSelection(ctx, []int64{pending.ID, other.ID})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Len(t, env.mailSvc.SentMessages(), 2)

		// the candidate account is kept
		_, err = env.usrRepo.GetUser(ctx, user.GetFilter{ID: usr.ID})
		assert.NoError(t, err)

		assert.Equal(t, enrollment.ErrNotFound, errors.Cause(env.svc.Delete(ctx, pending.ID)))
	})
}

func TestService_Stats(t *testing.T) {
	env := setup(t, &fakeSheets{})
	ctx := context.Background()

	stats, err := env.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.ValidationRate)

	old := testutil.NewEnrollment("", "Yao", "Ama", "ama", "Informatique")
	old.CreatedAt = time.Now().UTC().AddDate(0, -2, 0)
	old.Status = enrollment.StatusValidated
	testutil.CreateEnrollment(t, env.repo, old)
	testutil.CreateEnrollment(t, env.repo, testutil.NewEnrollment("", "Kouassi", "Awa", "awa", "Informatique"))
	testutil.CreateEnrollment(t, env.repo, testutil.NewEnrollment("", "Kone", "Ali", "ali", "Gestion"))
	testutil.CreateEnrollment(t, env.repo, testutil.NewEnrollment("", "Bamba", "Issa", "issa", "Gestion"))

	stats, err = env.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusCounts{Total: 4, Pending: 3, Validated: 1}, stats.StatusCounts)
	assert.Equal(t, 3, stats.Recent)
	assert.Equal(t, 25.0, stats.ValidationRate)
	assert.Equal(t, []enrollment.FormationStat{
		{Formation: "Gestion", Count: 2, Percentage: 50},
		{Formation: "Informatique", Count: 2, Percentage: 50},
	}, stats.ByFormation)
	if assert.Len(t, stats.Latest, 4) {
		assert.Equal(t, "YAO", stats.Latest[3].LastName)
	}
}

func TestService_ExportCSV(t *testing.T) {
	env := setup(t, &fakeSheets{})

	e := testutil.NewEnrollment("", "Kouassi", "Awa", "awa", "Informatique")
	e.CreatedAt = time.Date(2026, 9, 1, 8, 30, 0, 0, time.UTC)
	testutil.CreateEnrollment(t, env.repo, e)

	var buf bytes.Buffer
	require.NoError(t, env.svc.ExportCSV(context.Background(), &buf))

	r := csv.NewReader(strings.NewReader(buf.String()))
	r.Comma = ';'
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Nom", "Prénom", "Email", "Téléphone", "Formation", "Date Inscription", "Statut", "CMU", "CNI"}, rows[0])
	assert.Equal(t, "KOUASSI", rows[1][0])
	assert.Equal(t, "01/09/2026 08:30", rows[1][5])
	assert.Equal(t, "En attente", rows[1][6])

	assert.Equal(t, "inscriptions_20260901_083000.csv", enrollment.ExportFilename(e.CreatedAt))
}
