// Package notify delivers customer-facing e-mails.
package notify

import (
	"context"
	"embed"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"crm/internal/config"
	"crm/internal/model"

	"github.com/goliatone/go-template"
)

//go:embed templates/*.html
var templateFS embed.FS

var renderer = mustRenderer()

func mustRenderer() *template.Engine {
	r, err := template.NewRenderer(
		template.WithFS(templateFS),
		template.WithExtension(".html"),
	)
	if err != nil {
		panic(fmt.Sprintf("notify: failed to load templates: %v", err))
	}
	return r
}

// Notifier sends a quotation to its lead.
type Notifier interface {
	SendQuotation(ctx context.Context, lead *model.Lead, quotation *model.Quotation) error
}

type quotationItem struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	Price       string `json:"price"`
	Subtotal    string `json:"subtotal"`
}

type quotationView struct {
	LeadName    string          `json:"lead_name"`
	QuotationID string          `json:"quotation_id"`
	Items       []quotationItem `json:"items"`
	Total       string          `json:"total"`
}

// RenderQuotation renders the HTML body sent for a quotation.
func RenderQuotation(lead *model.Lead, q *model.Quotation) (string, error) {
	view := quotationView{
		LeadName:    lead.Name,
		QuotationID: q.ID.String(),
		Total:       q.TotalPrice.StringFixed(2),
	}
	for _, item := range q.LineItems {
		view.Items = append(view.Items, quotationItem{
			Description: item.Description,
			Quantity:    strconv.Itoa(item.Quantity),
			Price:       item.Price.StringFixed(2),
			Subtotal:    item.Subtotal().StringFixed(2),
		})
	}

	html, err := renderer.RenderTemplate("templates/quotation", view)
	if err != nil {
		return "", fmt.Errorf("failed to render quotation: %w", err)
	}
	return html, nil
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier sends mail through an SMTP relay using STARTTLS when offered.
type SMTPNotifier struct {
	cfg      config.MailConfig
	sendMail sendMailFunc
}

func NewSMTPNotifier(cfg config.MailConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, sendMail: smtp.SendMail}
}

func (n *SMTPNotifier) SendQuotation(_ context.Context, lead *model.Lead, q *model.Quotation) error {
	if !lead.HasEmail() {
		return fmt.Errorf("lead %s has no email", lead.ID)
	}

	body, err := RenderQuotation(lead, q)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if n.cfg.Password != "" {
		auth = smtp.PlainAuth("", n.cfg.From, n.cfg.Password, n.cfg.Host)
	}

	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	msg := buildMessage(n.cfg.From, *lead.Email, n.cfg.Subject, body)
	if err := n.sendMail(addr, auth, n.cfg.From, []string{*lead.Email}, msg); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", *lead.Email, err)
	}
	return nil
}

func buildMessage(from, to, subject, html string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)
	return []byte(b.String())
}
