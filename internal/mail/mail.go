// Package mail delivers OTP codes to users by email.
//
// The Sender interface keeps the auth service ignorant of SMTP: in tests a
// fake records the code, in development LogSender prints it, in production
// SMTPSender speaks to a real relay. Delivery either succeeds or fails
// atomically from the caller's point of view — there is no retry here.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"time"
)

// Sender dispatches a one-time passcode to an email address.
type Sender interface {
	SendOTP(ctx context.Context, email, code string) error
}

// dialTimeout bounds the SMTP connection attempt so a dead relay fails the
// request quickly instead of hanging it.
const dialTimeout = 10 * time.Second

// SMTPConfig holds the relay settings, usually loaded from the environment.
type SMTPConfig struct {
	Host     string // e.g. "smtp.gmail.com"
	Port     int    // e.g. 587
	Username string
	Password string
	From     string // sender address shown to the recipient
}

// SMTPSender sends OTP mail through an SMTP relay with PLAIN auth over
// STARTTLS (the net/smtp client upgrades automatically when the server
// advertises it).
type SMTPSender struct {
	cfg    SMTPConfig
	logger *slog.Logger

	// tlsConfig overrides the STARTTLS client config. nil means verify the
	// relay's certificate against cfg.Host; tests point this at a local
	// relay's self-signed certificate.
	tlsConfig *tls.Config
}

// NewSMTPSender creates an SMTPSender for the given relay.
func NewSMTPSender(cfg SMTPConfig, logger *slog.Logger) *SMTPSender {
	return &SMTPSender{cfg: cfg, logger: logger}
}

// SendOTP delivers the code. The message body mirrors what users of the
// original app received: the code plus its 5-minute validity note.
//
// The context is honoured for the dial; once the SMTP conversation starts
// it runs to completion (the protocol exchange is a handful of short
// round-trips on an already-established connection).
func (s *SMTPSender) SendOTP(ctx context.Context, email, code string) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("mail: dialing %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("mail: smtp handshake with %s: %w", addr, err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		tc := s.tlsConfig
		if tc == nil {
			// ServerName is mandatory for certificate verification.
			tc = &tls.Config{ServerName: s.cfg.Host}
		}
		if err := client.StartTLS(tc); err != nil {
			return fmt.Errorf("mail: starttls: %w", err)
		}
	}

	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("mail: authenticating: %w", err)
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("mail: MAIL FROM: %w", err)
	}
	if err := client.Rcpt(email); err != nil {
		return fmt.Errorf("mail: RCPT TO: %w", err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("mail: DATA: %w", err)
	}

	msg := fmt.Sprintf(
		"From: \"HD Notes\" <%s>\r\n"+
			"To: %s\r\n"+
			"Subject: Your OTP for HD Notes\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"<p>Your OTP is <b>%s</b>. It is valid for 5 minutes.</p>\r\n",
		s.cfg.From, email, code,
	)
	if _, err := wc.Write([]byte(msg)); err != nil {
		wc.Close()
		return fmt.Errorf("mail: writing message: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("mail: finishing message: %w", err)
	}

	if err := client.Quit(); err != nil {
		// Message already accepted at this point — log, don't fail.
		s.logger.Warn("smtp quit failed", slog.String("error", err.Error()))
	}

	s.logger.Info("otp mail sent", slog.String("email", email))
	return nil
}

// LogSender "delivers" the code by logging it. Used in development when no
// SMTP relay is configured, so the flow is testable end-to-end locally.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// SendOTP logs the code instead of mailing it.
func (s *LogSender) SendOTP(ctx context.Context, email, code string) error {
	s.logger.Info("otp issued (mail disabled — logging instead)",
		slog.String("email", email),
		slog.String("code", code),
	)
	return nil
}
