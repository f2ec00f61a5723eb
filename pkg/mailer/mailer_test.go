package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"timetrack-backend/pkg/config"
)

func TestNewPicksTransport(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want string
	}{
		{"resend", config.Config{ResendAPIKey: "re_x", SMTPHost: "smtp.local"}, "*mailer.Resend"},
		{"smtp", config.Config{SMTPHost: "smtp.local", SMTPPort: "25"}, "*mailer.SMTP"},
		{"log", config.Config{}, "*mailer.LogSender"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(&tt.cfg, zerolog.Nop())
			if name := fmt.Sprintf("%T", got); name != tt.want {
				t.Fatalf("New() = %s, want %s", name, tt.want)
			}
		})
	}
}

func TestResendSendsCode(t *testing.T) {
	var got resendRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := &Resend{APIKey: "re_key", From: "no-reply@example.com", Endpoint: srv.URL, Client: srv.Client()}
	if err := s.SendOTP(context.Background(), "ann@example.com", "123456", 10*time.Minute); err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	if auth != "Bearer re_key" {
		t.Errorf("Authorization = %q", auth)
	}
	if len(got.To) != 1 || got.To[0] != "ann@example.com" || got.From != "no-reply@example.com" {
		t.Errorf("request = %+v", got)
	}
	if !strings.Contains(got.HTML, "123456") || !strings.Contains(got.HTML, "10 minutes") {
		t.Errorf("html = %q", got.HTML)
	}
}

func TestResendReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	s := &Resend{Endpoint: srv.URL, Client: srv.Client()}
	err := s.SendOTP(context.Background(), "ann@example.com", "123456", time.Minute)
	if err == nil || !strings.Contains(err.Error(), "422") {
		t.Fatalf("err = %v, want status 422", err)
	}
}
