package core

import (
	"bytes"
	"fmt"
	htmltmpl "html/template"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	texttmpl "text/template"
)

const emailTemplatesDir = "templates/email"

type (
	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string
		BodyStr string // simple text/plain, non-templated content

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}

	// EmailTemplates holds the parsed `templates/email` files, each extended from its `_base` layout.
	EmailTemplates struct {
		appName string
		baseURL string
		text    map[string]*texttmpl.Template
		html    map[string]*htmltmpl.Template
	}
)

// ParseEmailTemplates parses every non-underscored .txt and .gohtml file under templates/email.
func ParseEmailTemplates(fsys fs.FS, conf *Config, logger Logger) *EmailTemplates {
	tmpls := &EmailTemplates{
		appName: conf.AppName,
		baseURL: conf.FrontendBaseURL,
		text:    make(map[string]*texttmpl.Template),
		html:    make(map[string]*htmltmpl.Template),
	}
	strict := conf.Debug || conf.TestMode

	entries, err := fs.ReadDir(fsys, emailTemplatesDir)
	if err != nil {
		logger.Error(fmt.Sprintf("core.ParseEmailTemplates: %v", err), err)
		return tmpls
	}
	for _, entry := range entries {
		fname := entry.Name()
		ext := path.Ext(fname)
		if entry.IsDir() || strings.HasPrefix(fname, "_") || !(ext == ".txt" || ext == ".gohtml") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		fp := path.Join(emailTemplatesDir, fname)
		base := path.Join(emailTemplatesDir, "_base"+ext)

		if ext == ".txt" {
			tmpl, err := texttmpl.ParseFS(fsys, base, fp)
			if err != nil {
				logger.Error(fmt.Sprintf("core.ParseEmailTemplates(%s): %v", fp, err), err)
				continue
			}
			if strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			tmpls.text[name] = tmpl
		} else {
			tmpl, err := htmltmpl.ParseFS(fsys, base, fp)
			if err != nil {
				logger.Error(fmt.Sprintf("core.ParseEmailTemplates(%s): %v", fp, err), err)
				continue
			}
			if strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			tmpls.html[name] = tmpl
		}
	}
	return tmpls
}

// Has reports whether a template with the given name was parsed.
func (t *EmailTemplates) Has(name string) bool {
	_, txt := t.text[name]
	_, html := t.html[name]
	return txt || html
}

func (t *EmailTemplates) contextData(m *EmailMessage) ContextData {
	return ContextData{AppName: t.appName, FrontendBaseURL: t.baseURL, Data: m.TemplateData}
}

// Render fills TextContent and HTMLContent from BodyStr or the message template.
func (m *EmailMessage) Render(tmpls *EmailTemplates) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	}
	if m.TemplateName == "" || tmpls == nil {
		return nil
	}

	if tmpl, ok := tmpls.text[m.TemplateName]; ok && m.TextContent == "" {
		var buff bytes.Buffer
		if err := tmpl.Execute(&buff, tmpls.contextData(m)); err != nil {
			return err
		}
		m.TextContent = buff.String()
	}
	if tmpl, ok := tmpls.html[m.TemplateName]; ok {
		var buff bytes.Buffer
		if err := tmpl.Execute(&buff, tmpls.contextData(m)); err != nil {
			return err
		}
		m.HTMLContent = buff.String()
	}
	return nil
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }
