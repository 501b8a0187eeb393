package mailing

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toure-cloud/institutdeveloppement/core"
	"github.com/toure-cloud/institutdeveloppement/core/enrollment"
	appfs "github.com/toure-cloud/institutdeveloppement/fs"
	emailsvc "github.com/toure-cloud/institutdeveloppement/services/email"
	logsvc "github.com/toure-cloud/institutdeveloppement/services/logger"
)

type enrollmentLister []enrollment.Enrollment

func (l enrollmentLister) Get(_ context.Context, id int64) (enrollment.Enrollment, error) {
	for _, e := range l {
		if e.ID == id {
			return e, nil
		}
	}
	return enrollment.Enrollment{}, enrollment.ErrNotFound
}

func (l enrollmentLister) Query(context.Context, *enrollment.QueryFilter, []core.DBOrdering) ([]enrollment.Enrollment, error) {
	return l, nil
}

func setup(t *testing.T, enrollments enrollmentLister) (Service, *emailsvc.ConsoleServiceMock) {
	conf := &core.Config{AppName: "Institut", FrontendBaseURL: "http://localhost:3000/", TimeZone: "UTC"}
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	core.ParseEmailTemplates(appfs.FS, true, logger)
	mailSvc := emailsvc.NewConsoleServiceMock(logger, conf)
	return NewService(enrollments, mailSvc, logger, conf), mailSvc
}

func validationCause(t *testing.T, err error) error {
	t.Helper()
	verr, ok := err.(*core.ValidationError)
	require.True(t, ok, "want a *core.ValidationError, got %v", err)
	return verr.Err
}

func Test_cleanRecipients(t *testing.T) {
	tests := []struct {
		name    string
		emails  []string
		want    []mail.Address
		wantErr bool
	}{
		{name: "empty", emails: nil, want: []mail.Address{}},
		{name: "deduped", emails: []string{" Awa@Test.ci", "awa@test.ci", "", "ali@test.ci"}, want: []mail.Address{{Address: "awa@test.ci"}, {Address: "ali@test.ci"}}},
		{name: "invalid", emails: []string{"awa@test.ci", "lol"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cleanRecipients(tt.emails)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_SendBulk(t *testing.T) {
	svc, mailSvc := setup(t, enrollmentLister{})
	ctx := context.Background()

	tests := []struct {
		name      string
		bm        BulkMessage
		wantCause error
	}{
		{name: "no recipients", bm: BulkMessage{Subject: "Rentrée", Message: "Bonjour"}, wantCause: ErrNoRecipients},
		{name: "no subject", bm: BulkMessage{Emails: []string{"awa@test.ci"}, Subject: " ", Message: "Bonjour"}, wantCause: ErrNoSubject},
		{name: "no message", bm: BulkMessage{Emails: []string{"awa@test.ci"}, Subject: "Rentrée"}, wantCause: ErrNoMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SendBulk(ctx, tt.bm)
			assert.Equal(t, tt.wantCause, validationCause(t, err))
		})
	}
	assert.Empty(t, mailSvc.SentMessages())

	n, err := svc.SendBulk(ctx, BulkMessage{
		Emails:     []string{"awa@test.ci", "AWA@test.ci", "ali@test.ci"},
		Subject:    "Rentrée",
		Message:    "La rentrée aura lieu lundi.",
		Attachment: &core.File{Name: "calendrier.pdf", ContentType: "application/pdf", Content: bytes.NewReader([]byte("%PDF"))},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	sent := mailSvc.SentMessages()
	require.Len(t, sent, 1)
	// recipients stay hidden from each other
	if assert.Len(t, sent[0].To, 1) {
		assert.Equal(t, "Institut", sent[0].To[0].Name)
	}
	assert.Len(t, sent[0].Bcc, 2)
	assert.Len(t, sent[0].Attachments, 1)
	assert.Contains(t, sent[0].TextContent, "La rentrée aura lieu lundi.")
}

func TestService_SendToEnrollment(t *testing.T) {
	svc, mailSvc := setup(t, enrollmentLister{{ID: 1, LastName: "KOUASSI", FirstName: "Awa", Email: "awa@test.ci"}})
	ctx := context.Background()

	_, err := svc.SendToEnrollment(ctx, 1, "", "Bonjour")
	assert.Equal(t, ErrNoSubject, validationCause(t, err))

	_, err = svc.SendToEnrollment(ctx, 2, "Dossier", "Bonjour")
	assert.Equal(t, enrollment.ErrNotFound, err)

	to, err := svc.SendToEnrollment(ctx, 1, "Dossier", "Bonjour Awa")
	require.NoError(t, err)
	assert.Equal(t, "awa@test.ci", to)

	sent := mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Awa KOUASSI", sent[0].To[0].Name)
	assert.Equal(t, "Bonjour Awa", sent[0].TextContent)
}

func TestService_SendTest(t *testing.T) {
	svc, mailSvc := setup(t, enrollmentLister{})

	_, err := svc.SendTest(context.Background(), "lol")
	assert.Error(t, err)

	to, err := svc.SendTest(context.Background(), " Admin@Test.ci ")
	require.NoError(t, err)
	assert.Equal(t, "admin@test.ci", to)
	assert.Len(t, mailSvc.SentMessages(), 1)
}

func TestService_NotifyAll(t *testing.T) {
	_, err := func() (int, error) {
		svc, _ := setup(t, enrollmentLister{})
		return svc.NotifyAll(context.Background())
	}()
	assert.Equal(t, ErrNoEmailFound, validationCause(t, err))

	svc, mailSvc := setup(t, enrollmentLister{
		{ID: 1, Email: "awa@test.ci"},
		{ID: 2, Email: "ali@test.ci"},
	})
	n, err := svc.NotifyAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	sent := mailSvc.SentMessages()
	require.Len(t, sent, 2)
	for _, msg := range sent {
		assert.Len(t, msg.To, 1)
		assert.Equal(t, noticeSubject, msg.Subject)
	}
}
