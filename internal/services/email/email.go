// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email delivers activation links.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/a-h/templ"

	"codeberg.org/oliverandrich/go-magiclink/internal/i18n"
	"codeberg.org/oliverandrich/go-magiclink/internal/templates"
)

// DefaultTemplate is the message ID prefix used when none is configured.
const DefaultTemplate = "login_link"

// Message is a rendered email ready for delivery.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Service renders activation mails and hands them to a Sender.
type Service struct {
	sender   Sender
	baseURL  string
	template string
	appName  string
	ttl      time.Duration
}

// NewService creates a new email service. Links are built as <baseURL>/activate/<code>.
func NewService(sender Sender, baseURL, template string, ttl time.Duration) (*Service, error) {
	if sender == nil {
		return nil, fmt.Errorf("email sender is required")
	}
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	if template == "" {
		template = DefaultTemplate
	}
	if !i18n.Has(template + "_subject") {
		slog.Warn("unknown email template, using default", "template", template, "default", DefaultTemplate)
		template = DefaultTemplate
	}

	return &Service{
		sender:   sender,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		template: template,
		appName:  i18n.T(context.Background(), "app_name"),
		ttl:      ttl,
	}, nil
}

// ActivationLink returns the link that redeems a code.
func (s *Service) ActivationLink(code string) string {
	return s.baseURL + "/activate/" + url.PathEscape(code)
}

// SendActivationLink sends the activation link for code to the given address.
func (s *Service) SendActivationLink(ctx context.Context, to, code string) error {
	msg, err := s.compose(ctx, to, code)
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, msg)
}

func (s *Service) compose(ctx context.Context, to, code string) (Message, error) {
	link := s.ActivationLink(code)
	minutes := int(s.ttl.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}

	body := i18n.TData(ctx, s.template+"_body", map[string]any{
		"AppName": s.appName,
		"Link":    link,
		"Minutes": minutes,
	})

	buf := templ.GetBuffer()
	defer templ.ReleaseBuffer(buf)

	err := templates.ActivationEmail(templates.ActivationEmailData{
		AppName:  s.appName,
		Link:     link,
		Template: s.template,
		Minutes:  minutes,
	}).Render(ctx, buf)
	if err != nil {
		return Message{}, fmt.Errorf("rendering email: %w", err)
	}

	return Message{
		To:      to,
		Subject: i18n.T(ctx, s.template+"_subject"),
		Text:    body,
		HTML:    buf.String(),
	}, nil
}
