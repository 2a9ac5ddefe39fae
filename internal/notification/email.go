// Package notification sends transactional messages to customers.
package notification

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"mime"
	"net/smtp"

	"github.com/karyatek/storefront/internal/checkout/domain"
	apperrors "github.com/karyatek/storefront/pkg/errors"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var orderConfirmationTmpl = template.Must(
	template.New("order_confirmation.html.tmpl").
		Funcs(template.FuncMap{"money": formatCents}).
		ParseFS(templateFS, "templates/order_confirmation.html.tmpl"),
)

// formatCents renders integer cents as a decimal amount.
func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// SMTPConfig holds mail server settings. SupportEmail, when set, appears in
// the confirmation footer.
type SMTPConfig struct {
	Host         string
	Port         int
	Username     string
	Password     string
	From         string
	FromName     string
	SupportEmail string
}

// fromHeader renders the From header, with the display name when configured.
func (c SMTPConfig) fromHeader() string {
	if c.FromName == "" {
		return c.From
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", c.FromName), c.From)
}

// SMTPSender emails order confirmations rendered from the HTML template.
type SMTPSender struct {
	cfg    SMTPConfig
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	logger *slog.Logger
}

// NewSMTPSender creates an SMTP-backed confirmation sender.
func NewSMTPSender(cfg SMTPConfig, logger *slog.Logger) *SMTPSender {
	return &SMTPSender{cfg: cfg, send: smtp.SendMail, logger: logger}
}

// SendOrderConfirmation renders and emails the confirmation to the address
// captured on the order.
func (s *SMTPSender) SendOrderConfirmation(ctx context.Context, order *domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	to := order.ShippingAddress.Email
	if to == "" {
		return apperrors.InvalidInput("order has no contact email")
	}

	msg, err := buildConfirmationMessage(s.cfg, to, order)
	if err != nil {
		return fmt.Errorf("build confirmation message: %w", err)
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	if err := s.send(addr, auth, s.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("send confirmation email: %w", err)
	}

	s.logger.InfoContext(ctx, "order confirmation sent",
		slog.String("order_number", order.OrderNumber),
		slog.String("recipient", to),
	)
	return nil
}

// buildConfirmationMessage renders the full RFC 5322 message, headers included.
func buildConfirmationMessage(cfg SMTPConfig, to string, order *domain.Order) ([]byte, error) {
	var body bytes.Buffer
	data := map[string]any{"Order": order, "SupportEmail": cfg.SupportEmail}
	if err := orderConfirmationTmpl.Execute(&body, data); err != nil {
		return nil, fmt.Errorf("render order confirmation template: %w", err)
	}

	subject := fmt.Sprintf("Order confirmation %s", order.OrderNumber)

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", cfg.fromHeader())
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}
