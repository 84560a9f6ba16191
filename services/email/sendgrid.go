package emailsvc

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/trezcool/shule/core"
)

const (
	sendgridMaxInFlight = 8
	sendgridTimeout     = 15 * time.Second
)

type sendgridService struct {
	client     *sendgrid.Client
	from       *sgmail.Email
	subjPrefix string
	env        string
	templates  *core.EmailTemplates
	logger     core.Logger
	inFlight   chan struct{}
}

var _ core.EmailService = (*sendgridService)(nil)

// NewSendgridService returns an EmailService posting to the sendgrid v3 API,
// at most sendgridMaxInFlight requests at a time.
func NewSendgridService(conf *core.Config, templates *core.EmailTemplates, logger core.Logger) core.EmailService {
	return &sendgridService{
		client:     sendgrid.NewSendClient(conf.SendgridApiKey),
		from:       sgmail.NewEmail(conf.DefaultFromEmail.Name, conf.DefaultFromEmail.Address),
		subjPrefix: "[" + conf.AppName + "] ",
		env:        conf.Env,
		templates:  templates,
		logger:     logger,
		inFlight:   make(chan struct{}, sendgridMaxInFlight),
	}
}

func (svc *sendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go func(msg *core.EmailMessage) {
			svc.inFlight <- struct{}{}
			defer func() { <-svc.inFlight }()

			if err := msg.Render(svc.templates); err != nil {
				svc.logger.Error(fmt.Sprintf("rendering email: %v", err), errors.Wrap(err, "rendering email"))
				return
			}
			if !(msg.HasRecipients() && msg.HasContent()) {
				return
			}
			if err := svc.send(*msg); err != nil {
				svc.logger.Error(err.Error(), err, map[string]interface{}{"template": msg.TemplateName, "to": joinAddresses(msg.To)})
			}
		}(msg)
	}
}

func (svc *sendgridService) prepare(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject
	for _, to := range msg.To {
		p.AddTos(sgEmail(to))
	}
	for _, cc := range msg.Cc {
		p.AddCCs(sgEmail(cc))
	}
	for _, bcc := range msg.Bcc {
		p.AddBCCs(sgEmail(bcc))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)
	if msg.TemplateName != "" {
		m.AddCategories(msg.TemplateName)
	}
	m.SetCustomArg("env", svc.env)

	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	return m
}

func sgEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}

func (svc *sendgridService) send(msg core.EmailMessage) error {
	ctx, cancel := context.WithTimeout(context.Background(), sendgridTimeout)
	defer cancel()

	res, err := svc.client.SendWithContext(ctx, svc.prepare(msg))
	if err != nil {
		return errors.Wrap(err, "sending email")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("sending email: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}
