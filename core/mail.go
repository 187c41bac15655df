package core

import (
	"bytes"
	"embed"
	"fmt"
	htmltmpl "html/template"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

//go:embed templates/email/*
var templatesFS embed.FS

const templatesDir = "templates/email"

var (
	emailTemplates = make(map[string]*emailTemplate)
	tmplInit       sync.Once
)

// emailTemplate holds the parsed variants of one template; either may be missing.
type emailTemplate struct {
	text *texttmpl.Template
	html *htmltmpl.Template
}

type (
	// EmailMessage is rendered from the embedded template TemplateName before being sent.
	EmailMessage struct {
		To           []mail.Address
		Subject      string
		TemplateName string // without ext
		TemplateData interface{}

		// set by Render
		TextContent string
		HTMLContent string
	}

	// templateContext is what every email template is executed with.
	templateContext struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// Render fills TextContent and HTMLContent from the message template.
func (m *EmailMessage) Render(conf *Config) error {
	tmpl, ok := emailTemplates[m.TemplateName]
	if !ok {
		return fmt.Errorf("unknown email template %q", m.TemplateName)
	}
	data := templateContext{AppName: conf.AppName, FrontendBaseURL: conf.FrontendBaseURL, Data: m.TemplateData}

	var buf bytes.Buffer
	if tmpl.text != nil {
		if err := tmpl.text.Execute(&buf, data); err != nil {
			return errors.Wrap(err, "rendering text content")
		}
		m.TextContent = buf.String()
		buf.Reset()
	}
	if tmpl.html != nil {
		if err := tmpl.html.Execute(&buf, data); err != nil {
			return errors.Wrap(err, "rendering html content")
		}
		m.HTMLContent = buf.String()
	}
	return nil
}

// Ready reports whether the message has someone to go to and something to say.
func (m *EmailMessage) Ready() bool {
	return len(m.To) > 0 && (m.TextContent != "" || m.HTMLContent != "")
}

// ParseEmailTemplates parses the embedded email templates once.
// Files starting with "_" are layouts: each template is parsed along with the layout of its extension.
func ParseEmailTemplates(logger Logger) {
	tmplInit.Do(func() {
		fps, err := fs.Glob(templatesFS, path.Join(templatesDir, "[^_]*"))
		if err != nil {
			logger.Error(fmt.Sprintf("core.ParseEmailTemplates: %v", err), err)
			return
		}
		for _, fp := range fps {
			if err := parseTemplate(fp); err != nil {
				logger.Error(fmt.Sprintf("core.ParseEmailTemplates(%s): %v", fp, err), err)
			}
		}
	})
}

func parseTemplate(fp string) error {
	ext := path.Ext(fp)
	name := strings.TrimSuffix(path.Base(fp), ext)
	layout := path.Join(templatesDir, "_base"+ext)

	tmpl, ok := emailTemplates[name]
	if !ok {
		tmpl = new(emailTemplate)
	}
	switch ext {
	case ".txt":
		t, err := texttmpl.ParseFS(templatesFS, layout, fp)
		if err != nil {
			return err
		}
		tmpl.text = t.Option("missingkey=error")
	case ".gohtml":
		t, err := htmltmpl.ParseFS(templatesFS, layout, fp)
		if err != nil {
			return err
		}
		tmpl.html = t.Option("missingkey=error")
	default:
		return nil
	}
	emailTemplates[name] = tmpl
	return nil
}
