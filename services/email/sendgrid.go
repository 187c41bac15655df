package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/carosello75/courseconnect/core"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

type SendgridService struct {
	conf       *core.Config
	from       *sgmail.Email
	subjPrefix string
	logger     core.Logger
}

var _ core.EmailService = (*SendgridService)(nil)

func NewSendgridService(conf *core.Config, logger core.Logger) *SendgridService {
	return &SendgridService{
		conf:       conf,
		from:       sgmail.NewEmail(conf.DefaultFromEmail.Name, conf.DefaultFromEmail.Address),
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
	}
}

func (svc *SendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go func() {
			if err := msg.Render(svc.conf); err != nil {
				svc.logger.Error(fmt.Sprintf("emailsvc.sendgrid: rendering %q: %v", msg.TemplateName, err), err)
				return
			}
			if msg.Ready() {
				svc.send(*msg)
			}
		}()
	}
}

func (svc *SendgridService) prepare(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject

	for _, to := range msg.To {
		p.AddTos(sgEmail(to))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)

	// text/plain must come first
	if msg.TextContent != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	}
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	return m
}

func sgEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}

func (svc *SendgridService) send(msg core.EmailMessage) {
	req := sendgrid.GetRequest(svc.conf.SendgridApiKey, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(svc.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("emailsvc.sendgrid: sending email: %v", err), err)
	} else if res.StatusCode >= http.StatusBadRequest {
		svc.logger.Error(fmt.Sprintf("emailsvc.sendgrid: sending email - status: %d - body: %s", res.StatusCode, res.Body))
	}
}
