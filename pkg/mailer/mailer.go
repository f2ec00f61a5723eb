// Package mailer delivers one-time verification codes by email.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"time"

	"github.com/rs/zerolog"

	"timetrack-backend/pkg/config"
)

const resendEndpoint = "https://api.resend.com/emails"

// Sender delivers an OTP code to an email address.
type Sender interface {
	SendOTP(ctx context.Context, to, code string, ttl time.Duration) error
}

// New picks Resend when an API key is configured, SMTP when a host is, and
// otherwise a sender that only logs the code.
func New(cfg *config.Config, log zerolog.Logger) Sender {
	log = log.With().Str("component", "mailer").Logger()
	switch {
	case cfg.ResendAPIKey != "":
		return &Resend{
			APIKey:   cfg.ResendAPIKey,
			From:     cfg.MailFrom,
			Endpoint: resendEndpoint,
			Client:   &http.Client{Timeout: 10 * time.Second},
		}
	case cfg.SMTPHost != "":
		return &SMTP{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.MailFrom,
		}
	default:
		if cfg.IsProduction() {
			log.Warn().Msg("no mail transport configured, OTP codes will only be logged")
		}
		return &LogSender{log: log}
	}
}

func otpMessage(code string, ttl time.Duration) (subject, html string) {
	subject = "Your verification code"
	html = fmt.Sprintf(
		`<p>Your verification code is:</p>`+
			`<p style="font-size:24px;letter-spacing:4px"><strong>%s</strong></p>`+
			`<p>This code expires in %d minutes.</p>`,
		code, int(ttl.Minutes()),
	)
	return subject, html
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Resend sends through the Resend HTTP API.
type Resend struct {
	APIKey   string
	From     string
	Endpoint string
	Client   *http.Client
}

func (s *Resend) SendOTP(ctx context.Context, to, code string, ttl time.Duration) error {
	subject, html := otpMessage(code, ttl)
	jsonBody, err := json.Marshal(resendRequest{
		From:    s.From,
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("resend API error: status %d", resp.StatusCode)
	}
	return nil
}

// SMTP sends through a plain SMTP relay.
type SMTP struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

func (s *SMTP) SendOTP(_ context.Context, to, code string, ttl time.Duration) error {
	subject, html := otpMessage(code, ttl)
	msg := "From: " + s.From + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=\"UTF-8\"\r\n" +
		"\r\n" +
		html

	var auth smtp.Auth
	if s.User != "" {
		auth = smtp.PlainAuth("", s.User, s.Pass, s.Host)
	}
	if err := smtp.SendMail(s.Host+":"+s.Port, auth, s.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// LogSender writes the code to the log instead of mailing it.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) SendOTP(_ context.Context, to, code string, ttl time.Duration) error {
	s.log.Info().Str("to", to).Str("code", code).Dur("ttl", ttl).Msg("mail transport not configured, OTP logged")
	return nil
}
