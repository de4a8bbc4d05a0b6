package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/market-dot-dev/studio-sub000/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Provider sends transactional mail. Implementations must be safe for
// concurrent use.
type Provider interface {
	Send(ctx context.Context, msg Message) error
}

type Message struct {
	To      string
	Subject string
	Body    string
}

type smtpProvider struct {
	addr string
	from string
	auth smtp.Auth
	log  *zap.Logger
}

type noopProvider struct {
	log *zap.Logger
}

type ProviderParam struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

// NewProvider returns an SMTP provider when a host is configured and a
// logging no-op otherwise, so local development needs no mail server.
func NewProvider(p ProviderParam) Provider {
	log := p.Log.Named("email.provider")
	if p.Config.SMTPHost == "" {
		return &noopProvider{log: log}
	}

	var auth smtp.Auth
	if p.Config.SMTPUsername != "" {
		auth = smtp.PlainAuth("", p.Config.SMTPUsername, p.Config.SMTPPassword, p.Config.SMTPHost)
	}

	return &smtpProvider{
		addr: fmt.Sprintf("%s:%d", p.Config.SMTPHost, p.Config.SMTPPort),
		from: p.Config.SMTPFrom,
		auth: auth,
		log:  log,
	}
}

func (p *smtpProvider) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", p.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Body)

	if err := smtp.SendMail(p.addr, p.auth, p.from, []string{msg.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (p *noopProvider) Send(_ context.Context, msg Message) error {
	p.log.Info("email suppressed (no smtp host configured)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}

var Module = fx.Module("email.provider",
	fx.Provide(NewProvider),
)
