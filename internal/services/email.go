package services

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html"
	"log"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mrz1836/postmark"

	"jnsite/internal/config"
	"jnsite/internal/domain"
	"jnsite/internal/metrics"
)

// mailSender is one delivery transport
type mailSender interface {
	send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// EmailService sends submission notifications through SMTP or Postmark
type EmailService struct {
	cfg    *config.EmailConfig
	sender mailSender
}

// NewEmailService creates a new email service
func NewEmailService(cfg *config.EmailConfig) *EmailService {
	s := &EmailService{cfg: cfg}
	switch cfg.Provider {
	case "postmark":
		s.sender = &postmarkSender{
			client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
			from:   formatFrom(cfg),
		}
	default:
		s.sender = &smtpSender{cfg: cfg}
	}
	return s
}

// IsEnabled returns whether notifications can be delivered
func (s *EmailService) IsEnabled() bool {
	return s.cfg.IsConfigured()
}

// NotifySubmission sends the notification for a stored submission to the
// configured recipient. It makes a single attempt.
func (s *EmailService) NotifySubmission(ctx context.Context, sub *domain.Submission) error {
	if !s.IsEnabled() {
		log.Printf("[EMAIL] Notification for %s skipped: mail relay not configured", sub.CustomerNumber)
		metrics.RecordNotification("skipped")
		return nil
	}

	subject := fmt.Sprintf("New submission %s from %s", sub.CustomerNumber, fallback(sub.Name, "anonymous"))
	err := s.sender.send(ctx, s.cfg.NotifyEmail, subject, submissionHTML(sub), submissionText(sub))
	if err != nil {
		metrics.RecordNotification("failed")
		return fmt.Errorf("failed to send notification for %s: %w", sub.CustomerNumber, err)
	}

	log.Printf("[EMAIL] Notification sent for %s to %s", sub.CustomerNumber, s.cfg.NotifyEmail)
	metrics.RecordNotification("sent")
	return nil
}

type field struct {
	label string
	value string
}

func submissionFields(sub *domain.Submission) []field {
	return []field{
		{"Reference", sub.CustomerNumber},
		{"Date", sub.SubmissionDate},
		{"Name", sub.Name},
		{"Phone", sub.Phone},
		{"Email", sub.Email},
		{"Services", sub.Services},
		{"Message", sub.Message},
	}
}

func submissionText(sub *domain.Submission) string {
	var b strings.Builder
	b.WriteString("New contact form submission\n\n")
	for _, f := range submissionFields(sub) {
		fmt.Fprintf(&b, "%s: %s\n", f.label, f.value)
	}
	return b.String()
}

func submissionHTML(sub *domain.Submission) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><body style="font-family: Arial, sans-serif; color: #0D1A2D;">`)
	b.WriteString(`<h2 style="margin: 0 0 16px;">New contact form submission</h2>`)
	b.WriteString(`<table cellpadding="6" cellspacing="0" border="0">`)
	for _, f := range submissionFields(sub) {
		fmt.Fprintf(&b, `<tr><td style="font-weight: 600; vertical-align: top;">%s</td><td style="white-space: pre-wrap;">%s</td></tr>`,
			f.label, html.EscapeString(f.value))
	}
	b.WriteString(`</table></body></html>`)
	return b.String()
}

func formatFrom(cfg *config.EmailConfig) string {
	if cfg.FromName != "" {
		return fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail)
	}
	return cfg.FromEmail
}

func fallback(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// postmarkSender delivers through the Postmark API
type postmarkSender struct {
	client *postmark.Client
	from   string
}

func (p *postmarkSender) send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	resp, err := p.client.SendEmail(ctx, postmark.Email{
		From:     p.from,
		To:       to,
		Subject:  subject,
		Tag:      "submission",
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
	if err != nil {
		return fmt.Errorf("postmark request failed: %w", err)
	}
	if resp.ErrorCode > 0 {
		return fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message)
	}
	return nil
}

// smtpSender delivers over SMTP with starttls, tls or plain transport
type smtpSender struct {
	cfg *config.EmailConfig
}

func (c *smtpSender) send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	message := buildMIMEMessage(formatFrom(c.cfg), to, subject, htmlBody, textBody)
	addr := net.JoinHostPort(c.cfg.SMTPHost, strconv.Itoa(c.cfg.SMTPPort))

	var (
		client *smtp.Client
		err    error
	)
	switch c.cfg.TLSMode {
	case "tls":
		conn, dialErr := tls.Dial("tcp", addr, &tls.Config{ServerName: c.cfg.SMTPHost})
		if dialErr != nil {
			return fmt.Errorf("failed to connect to SMTP server with TLS: %w", dialErr)
		}
		client, err = smtp.NewClient(conn, c.cfg.SMTPHost)
		if err != nil {
			_ = conn.Close()
			return fmt.Errorf("failed to create SMTP client: %w", err)
		}
	default:
		client, err = smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("failed to connect to SMTP server: %w", err)
		}
	}
	defer func() { _ = client.Close() }()

	if c.cfg.TLSMode == "starttls" {
		if err := client.StartTLS(&tls.Config{ServerName: c.cfg.SMTPHost}); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if c.cfg.Username != "" {
		auth := smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
	}

	if err := client.Mail(c.cfg.FromEmail); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err := w.Write(message); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	// The message is accepted once DATA closes; some servers drop the
	// connection before QUIT.
	if err := client.Quit(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Printf("[EMAIL] SMTP quit: %v", err)
	}
	return nil
}

// buildMIMEMessage builds a multipart/alternative message with a plain text
// part and an optional HTML part.
func buildMIMEMessage(from, to, subject, htmlBody, textBody string) []byte {
	boundary := "jn-" + uuid.NewString()

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(textBody + "\r\n")

	if htmlBody != "" {
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
		b.WriteString(htmlBody + "\r\n")
	}

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}
