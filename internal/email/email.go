package email

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"os"
	"strings"

	"github.com/evidenceledger/certchain/internal/errl"
	"github.com/evidenceledger/certchain/internal/models"
)

// Service sends issuance notices to certificate recipients
type Service struct {
	smtpHost     string
	smtpPort     string
	smtpUsername string
	smtpPassword string
	fromEmail    string
	fromName     string
	templates    *template.Template

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NoticeData represents the data passed to the notice template
type NoticeData struct {
	AppName       string
	RecipientName string
	Title         string
	IssueDate     string
	Fingerprint   string
	Strategy      string
	TxID          string
	VerifyURL     string
}

// NewService creates a new email service configured from the environment
func NewService() *Service {
	tmpl, err := template.New("notice").Parse(issuanceNoticeTemplate)
	if err != nil {
		slog.Error("Failed to parse email templates", "error", err)
		panic(err)
	}

	return &Service{
		smtpHost:     getEnvOrDefault("SMTP_HOST", "localhost"),
		smtpPort:     getEnvOrDefault("SMTP_PORT", "587"),
		smtpUsername: os.Getenv("SMTP_USERNAME"),
		smtpPassword: os.Getenv("SMTP_PASSWORD"),
		fromEmail:    getEnvOrDefault("FROM_EMAIL", "noreply@certchain.local"),
		fromName:     getEnvOrDefault("FROM_NAME", "CertChain"),
		templates:    tmpl,
		send:         smtp.SendMail,
	}
}

// SendIssuanceNotice tells the recipient that their certificate was committed
// and how to verify it.
func (s *Service) SendIssuanceNotice(toEmail string, rec *models.CommitRecord, verifyURL string) error {
	if err := s.ValidateEmail(toEmail); err != nil {
		return errl.Errorf("invalid email: %w", err)
	}

	data := NoticeData{
		AppName:       s.fromName,
		RecipientName: rec.RecipientName,
		Title:         rec.Title,
		IssueDate:     rec.IssueDate,
		Fingerprint:   rec.Fingerprint,
		Strategy:      rec.Strategy,
		TxID:          rec.TxID,
		VerifyURL:     verifyURL,
	}

	var body bytes.Buffer
	if err := s.templates.Execute(&body, data); err != nil {
		return errl.Errorf("failed to execute email template: %w", err)
	}

	subject := "Your certificate has been issued - " + s.fromName
	return s.sendEmail(toEmail, subject, body.String())
}

// sendEmail sends an email using SMTP
func (s *Service) sendEmail(toEmail string, subject string, body string) error {
	// Without SMTP credentials the message is only logged
	if s.smtpUsername == "" || s.smtpPassword == "" {
		slog.Info("Email would be sent (development mode)",
			"to", toEmail,
			"subject", subject,
			"body_length", len(body))
		return nil
	}

	message := fmt.Sprintf("From: %s <%s>\r\n", s.fromName, s.fromEmail)
	message += fmt.Sprintf("To: %s\r\n", toEmail)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += "MIME-Version: 1.0\r\n"
	message += "Content-Type: text/html; charset=UTF-8\r\n"
	message += "\r\n"
	message += body

	auth := smtp.PlainAuth("", s.smtpUsername, s.smtpPassword, s.smtpHost)
	addr := fmt.Sprintf("%s:%s", s.smtpHost, s.smtpPort)

	if err := s.send(addr, auth, s.fromEmail, []string{toEmail}, []byte(message)); err != nil {
		return errl.Errorf("failed to send email: %w", err)
	}

	slog.Info("Issuance notice sent", "to", toEmail)
	return nil
}

// ValidateEmail validates email format
func (s *Service) ValidateEmail(email string) error {
	if email == "" {
		return errl.Errorf("email is required")
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return errl.Errorf("invalid email format")
	}

	if !strings.Contains(parts[1], ".") {
		return errl.Errorf("invalid email format")
	}

	return nil
}

// getEnvOrDefault gets an environment variable or returns a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

const issuanceNoticeTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Certificate issued - {{.AppName}}</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
            background-color: #f8f9fa;
        }
        .container {
            background-color: white;
            border-radius: 8px;
            padding: 30px;
            border-top: 6px solid #9333ea;
        }
        .fingerprint {
            background-color: #f3e8ff;
            border-radius: 8px;
            padding: 16px;
            font-family: 'Courier New', monospace;
            word-break: break-all;
        }
        .footer {
            margin-top: 30px;
            color: #6c757d;
            font-size: 12px;
        }
    </style>
</head>
<body>
    <div class="container">
        <h1>Congratulations, {{.RecipientName}}</h1>
        <p>A certificate{{if .Title}} for <strong>{{.Title}}</strong>{{end}} dated {{.IssueDate}} has been issued to you and recorded on the ledger.</p>

        <p>Its fingerprint ({{.Strategy}}) is:</p>
        <div class="fingerprint">{{.Fingerprint}}</div>

        <p>Ledger transaction: <code>{{.TxID}}</code></p>
        {{if .VerifyURL}}<p>Anyone can check it at <a href="{{.VerifyURL}}">{{.VerifyURL}}</a>.</p>{{end}}

        <div class="footer">
            <p>This is an automated message from {{.AppName}}. Please do not reply to this email.</p>
        </div>
    </div>
</body>
</html>`
