package emailsvc

import (
	"fmt"
	"log"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/carosello75/courseconnect/core"
)

// ConsoleService prints emails to a logger instead of sending them.
type ConsoleService struct {
	conf          *core.Config
	out           *log.Logger
	logger        core.Logger
	subjPrefix    string
	disableOutput bool
	sync          bool

	mu   sync.Mutex
	sent []core.EmailMessage
}

var _ core.EmailService = (*ConsoleService)(nil)

func NewConsoleService(conf *core.Config, out *log.Logger, logger core.Logger) *ConsoleService {
	return &ConsoleService{
		conf:       conf,
		out:        out,
		logger:     logger,
		subjPrefix: "[" + conf.AppName + "] ",
	}
}

// NewConsoleServiceMock returns a silent ConsoleService that sends synchronously, for tests.
func NewConsoleServiceMock(conf *core.Config, logger core.Logger) *ConsoleService {
	svc := NewConsoleService(conf, nil, logger)
	svc.disableOutput = true
	svc.sync = true
	return svc
}

func (svc *ConsoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		if svc.sync {
			svc.sendMessage(msg)
		} else {
			go svc.sendMessage(msg)
		}
	}
}

// SentMessages returns a copy of the messages sent so far.
func (svc *ConsoleService) SentMessages() []core.EmailMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]core.EmailMessage(nil), svc.sent...)
}

func (svc *ConsoleService) sendMessage(msg *core.EmailMessage) {
	if err := msg.Render(svc.conf); err != nil {
		svc.logger.Error(fmt.Sprintf("emailsvc.console: rendering %q: %v", msg.TemplateName, err), errors.Wrap(err, "rendering email"))
		return
	}
	if !msg.Ready() {
		return
	}

	body, err := svc.format(*msg)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("emailsvc.console: %v", err), err)
		return
	}
	if !svc.disableOutput && svc.out != nil {
		svc.out.Println(body)
	}

	svc.mu.Lock()
	svc.sent = append(svc.sent, *msg)
	svc.mu.Unlock()
}

// format lays msg out as a multipart/alternative MIME message.
func (svc *ConsoleService) format(msg core.EmailMessage) (string, error) {
	body := new(strings.Builder)
	altW := multipart.NewWriter(body)

	_, _ = fmt.Fprintf(body, "From: %s\r\n", svc.conf.DefaultFromEmail.String())
	_, _ = fmt.Fprint(body, "MIME-Version: 1.0\r\n")
	_, _ = fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	_, _ = fmt.Fprintf(body, "Subject: %s\r\n", svc.subjPrefix+msg.Subject)
	_, _ = fmt.Fprintf(body, "To: %s\r\n", joinAddresses(msg.To))
	_, _ = fmt.Fprintf(body, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", altW.Boundary())

	parts := []struct{ contentType, content string }{
		{"text/plain", msg.TextContent},
		{"text/html", msg.HTMLContent},
	}
	for _, part := range parts {
		if part.content == "" {
			continue
		}
		w, err := altW.CreatePart(textproto.MIMEHeader{"Content-Type": {part.contentType}})
		if err != nil {
			return "", errors.Wrap(err, "creating "+part.contentType+" part")
		}
		_, _ = fmt.Fprintf(w, "%s\r\n", part.content)
	}
	if err := altW.Close(); err != nil {
		return "", errors.Wrap(err, "closing multipart writer")
	}
	return body.String(), nil
}

func joinAddresses(addrs []mail.Address) string {
	toJoin := make([]string, 0, len(addrs))
	for _, a := range addrs {
		toJoin = append(toJoin, a.String())
	}
	return strings.Join(toJoin, ", ")
}
