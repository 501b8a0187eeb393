// Package mailing sends the back office emails: bulk messages, single messages and notices.
package mailing

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/toure-cloud/institutdeveloppement/core"
	"github.com/toure-cloud/institutdeveloppement/core/enrollment"
)

var (
	// errors
	ErrNoRecipients = errors.New("Aucun destinataire spécifié")
	ErrNoSubject    = errors.New("Le sujet est requis")
	ErrNoMessage    = errors.New("Le message est requis")
	ErrNoEmailFound = errors.New("Aucun email trouvé.")
)

const (
	noticeSubject = "Informations Importantes"
	noticeText    = "Bonjour, ceci est un message automatique pour vous tenir informé."
	testSubject   = "Test de configuration email"
	testText      = "Ceci est un email de test."
)

type (
	BulkMessage struct {
		Emails     []string
		Subject    string
		Message    string
		Attachment *core.File
	}

	// EnrollmentLister is the part of enrollment.Service mailing needs.
	EnrollmentLister interface {
		Get(ctx context.Context, id int64) (enrollment.Enrollment, error)
		Query(ctx context.Context, filter *enrollment.QueryFilter, ordering []core.DBOrdering) ([]enrollment.Enrollment, error)
	}

	Service interface {
		// SendBulk sends a single message addressed to the sender with every recipient in BCC
		// and returns the recipient count.
		SendBulk(ctx context.Context, bm BulkMessage) (int, error)
		// SendToEnrollment emails one candidate and returns the address used.
		SendToEnrollment(ctx context.Context, id int64, subject, message string) (string, error)
		// SendTest emails a configuration check to `to`, or to the sender address when empty.
		SendTest(ctx context.Context, to string) (string, error)
		// NotifyAll sends the standard notice to every enrolled candidate and returns the recipient count.
		NotifyAll(ctx context.Context) (int, error)
	}

	service struct {
		enrollments    EnrollmentLister
		mailSvc        core.EmailService
		logger         core.Logger
		from           mail.Address
		unsubscribeURL string
		loc            *time.Location
	}
)

var _ Service = (*service)(nil)

func NewService(enrollments EnrollmentLister, mailSvc core.EmailService, logger core.Logger, conf *core.Config) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(enrollments, "enrollments"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(logger, "logger"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &service{
		enrollments:    enrollments,
		mailSvc:        mailSvc,
		logger:         logger,
		from:           conf.DefaultFromEmail(),
		unsubscribeURL: strings.TrimSuffix(conf.FrontendBaseURL, "/") + "/desabonnement/",
		loc:            conf.Location(),
	}
}

// cleanRecipients parses, lowers and dedupes the addresses. Invalid ones are reported together.
func cleanRecipients(emails []string) ([]mail.Address, error) {
	var (
		addrs   = make([]mail.Address, 0, len(emails))
		seen    = make(map[string]bool, len(emails))
		invalid []string
	)
	for _, email := range emails {
		email = core.CleanString(email, true /* lower */)
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true
		addr, err := mail.ParseAddress(email)
		if err != nil {
			invalid = append(invalid, email)
			continue
		}
		addrs = append(addrs, mail.Address{Address: addr.Address})
	}
	if len(invalid) > 0 {
		return nil, core.NewFieldError("emails", "adresses email invalides: "+strings.Join(invalid, ", "))
	}
	return addrs, nil
}

func (svc *service) SendBulk(ctx context.Context, bm BulkMessage) (int, error) {
	bm.Subject = core.CleanString(bm.Subject)
	bm.Message = core.CleanString(bm.Message)

	recipients, err := cleanRecipients(bm.Emails)
	if err != nil {
		return 0, err
	}
	switch {
	case len(recipients) == 0:
		return 0, core.NewValidationError(ErrNoRecipients, core.FieldError{Field: "emails", Error: ErrNoRecipients.Error()})
	case bm.Subject == "":
		return 0, core.NewValidationError(ErrNoSubject, core.FieldError{Field: "sujet", Error: ErrNoSubject.Error()})
	case bm.Message == "":
		return 0, core.NewValidationError(ErrNoMessage, core.FieldError{Field: "message", Error: ErrNoMessage.Error()})
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{svc.from},
		Bcc:          recipients,
		Subject:      bm.Subject,
		TemplateName: "bulk",
		TemplateData: map[string]string{
			"Subject":        bm.Subject,
			"Message":        bm.Message,
			"SentAt":         time.Now().In(svc.loc).Format("02/01/2006 à 15:04"),
			"UnsubscribeURL": svc.unsubscribeURL,
		},
	}
	if bm.Attachment != nil && bm.Attachment.Content != nil {
		if err = msg.Attach(bm.Attachment.Content, bm.Attachment.Name, bm.Attachment.ContentType); err != nil {
			return 0, errors.Wrap(err, "attaching file")
		}
	}

	svc.mailSvc.SendMessages(msg)
	svc.logger.Info(fmt.Sprintf("mailing.SendBulk: %q sent to %d recipient(s)", bm.Subject, len(recipients)))
	return len(recipients), nil
}

func (svc *service) SendToEnrollment(ctx context.Context, id int64, subject, message string) (string, error) {
	subject = core.CleanString(subject)
	message = core.CleanString(message)
	if subject == "" {
		return "", core.NewValidationError(ErrNoSubject, core.FieldError{Field: "sujet", Error: ErrNoSubject.Error()})
	}
	if message == "" {
		return "", core.NewValidationError(ErrNoMessage, core.FieldError{Field: "message", Error: ErrNoMessage.Error()})
	}

	e, err := svc.enrollments.Get(ctx, id)
	if err != nil {
		return "", err
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: e.FullName(), Address: e.Email}},
		Subject: subject,
		BodyStr: message,
	})
	return e.Email, nil
}

func (svc *service) SendTest(ctx context.Context, to string) (string, error) {
	addr := svc.from
	if to = core.CleanString(to, true /* lower */); to != "" {
		parsed, err := mail.ParseAddress(to)
		if err != nil {
			return "", core.NewFieldError("email", "adresse email invalide")
		}
		addr = mail.Address{Address: parsed.Address}
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{addr},
		Subject: testSubject,
		BodyStr: testText,
	})
	return addr.Address, nil
}

func (svc *service) NotifyAll(ctx context.Context) (int, error) {
	enrollments, err := svc.enrollments.Query(ctx, nil, nil)
	if err != nil {
		return 0, errors.Wrap(err, "querying enrollments")
	}

	emails := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		emails = append(emails, e.Email)
	}
	recipients, err := cleanRecipients(emails)
	if err != nil {
		return 0, err
	}
	if len(recipients) == 0 {
		return 0, core.NewValidationError(ErrNoEmailFound, core.FieldError{Field: "emails", Error: ErrNoEmailFound.Error()})
	}

	msgs := make([]*core.EmailMessage, 0, len(recipients))
	for _, addr := range recipients {
		msgs = append(msgs, &core.EmailMessage{
			To:      []mail.Address{addr},
			Subject: noticeSubject,
			BodyStr: noticeText,
		})
	}
	svc.mailSvc.SendMessages(msgs...)
	return len(msgs), nil
}
